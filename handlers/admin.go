package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"socialhub/storage"
)

func (s *Server) stats(c *gin.Context) {
	stats, err := s.Store.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) adminDeletePost(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.Store.DeletePost(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	s.Log.Info("admin removed post", "admin_id", caller(c), "post_id", id)
	c.Status(http.StatusNoContent)
}

func (s *Server) adminDeleteComment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := s.Store.DeleteComment(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	s.Log.Info("admin removed comment", "admin_id", caller(c), "comment_id", id)
	c.Status(http.StatusNoContent)
}

func (s *Server) adminDeleteUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if id == caller(c) {
		s.fail(c, errors.Wrap(storage.ErrInvalid, "admins cannot delete their own account"))
		return
	}
	if err := s.Store.DeleteUser(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	s.Log.Info("admin removed user", "admin_id", caller(c), "user_id", id)
	c.Status(http.StatusNoContent)
}

type verifyRequest struct {
	Verified *bool `json:"verified" binding:"required"`
}

func (s *Server) adminVerify(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input verifyRequest
	if !bind(c, &input) {
		return
	}
	user, err := s.Store.SetVerified(c.Request.Context(), id, *input.Verified)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
