package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"socialhub/models"
)

func (s *Server) listUsers(c *gin.Context) {
	ctx := c.Request.Context()
	users, err := s.Store.ListUsers(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	ptrs := make([]*models.User, len(users))
	for i := range users {
		ptrs[i] = &users[i]
	}
	s.fillOnline(ctx, ptrs...)
	c.JSON(http.StatusOK, users)
}

// userProfile is a user plus the viewer's follow state.
type userProfile struct {
	models.User
	IsFollowing bool `json:"isFollowing"`
}

func (s *Server) getUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user, err := s.Store.GetUser(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.fillOnline(ctx, &user)

	profile := userProfile{User: user}
	if viewer := caller(c); viewer != 0 && viewer != id {
		profile.IsFollowing, err = s.Store.IsFollowing(ctx, viewer, id)
		if err != nil {
			s.fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) listUserPosts(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := s.Store.GetUser(ctx, id); err != nil {
		s.fail(c, err)
		return
	}
	posts, err := s.Store.GetUserPosts(ctx, id, caller(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.fillPostAuthors(c, posts)
	c.JSON(http.StatusOK, posts)
}

func (s *Server) updateMe(c *gin.Context) {
	var patch models.UserPatch
	if !bind(c, &patch) {
		return
	}
	user, err := s.Store.UpdateUser(c.Request.Context(), caller(c), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) heartbeat(c *gin.Context) {
	s.touch(c.Request.Context(), caller(c))
	c.Status(http.StatusNoContent)
}

func (s *Server) follow(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	result, err := s.Store.FollowUser(c.Request.Context(), caller(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.Metrics.Interaction("follow", direction(result.IsFollowing))
	c.JSON(http.StatusOK, result)
}

func direction(added bool) string {
	if added {
		return "add"
	}
	return "remove"
}
