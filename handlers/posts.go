package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"gorm.io/datatypes"

	"socialhub/models"
)

type createPostRequest struct {
	Content string        `json:"content" binding:"max=5000"`
	Image   string        `json:"image" binding:"omitempty,max=2048"`
	Music   *models.Music `json:"music"`
}

func (s *Server) fillPostAuthors(c *gin.Context, posts []models.Post) {
	users := make([]*models.User, 0, len(posts))
	for i := range posts {
		users = append(users, posts[i].User)
	}
	s.fillOnline(c.Request.Context(), users...)
}

func (s *Server) listPosts(c *gin.Context) {
	posts, err := s.Store.GetPosts(c.Request.Context(), caller(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.fillPostAuthors(c, posts)
	c.JSON(http.StatusOK, posts)
}

func (s *Server) getPost(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	post, err := s.Store.GetPost(c.Request.Context(), id, caller(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.fillOnline(c.Request.Context(), post.User)
	c.JSON(http.StatusOK, post)
}

func (s *Server) createPost(c *gin.Context) {
	var input createPostRequest
	if !bind(c, &input) {
		return
	}
	content := strings.TrimSpace(input.Content)
	if content == "" && input.Image == "" && input.Music == nil {
		badRequest(c, "a post needs content, an image or music")
		return
	}

	post := models.Post{UserID: caller(c), Content: content, Image: input.Image}
	if input.Music != nil {
		raw, err := json.Marshal(input.Music)
		if err != nil {
			s.fail(c, errors.Wrap(err, "encode music"))
			return
		}
		post.Music = datatypes.JSON(raw)
	}

	created, err := s.Store.CreatePost(c.Request.Context(), post)
	if err != nil {
		s.fail(c, err)
		return
	}
	if created.Comments == nil {
		created.Comments = []models.Comment{}
	}
	c.JSON(http.StatusCreated, created)
}

// deletePost lets owners remove their own posts; admins may remove any.
func (s *Server) deletePost(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	post, err := s.Store.GetPost(ctx, id, 0)
	if err != nil {
		s.fail(c, err)
		return
	}
	if userID := caller(c); post.UserID != userID {
		admin, err := s.isAdmin(ctx, userID)
		if err != nil {
			s.fail(c, err)
			return
		}
		if !admin {
			c.JSON(http.StatusForbidden, gin.H{"error": "only the author can delete this post"})
			return
		}
	}
	if err := s.Store.DeletePost(ctx, id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) likePost(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	result, err := s.Store.TogglePostLike(c.Request.Context(), id, caller(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.Metrics.Interaction("post_like", direction(result.IsLiked))
	c.JSON(http.StatusOK, result)
}

func (s *Server) sharePost(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	result, err := s.Store.SharePost(c.Request.Context(), id, caller(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	if result.Added {
		s.Metrics.Interaction("share", "add")
	}
	c.JSON(http.StatusOK, result)
}

type createCommentRequest struct {
	PostID  uint   `json:"postId" binding:"required"`
	Content string `json:"content" binding:"required,max=2000"`
}

func (s *Server) listComments(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	comments, err := s.Store.GetComments(c.Request.Context(), id, caller(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (s *Server) createComment(c *gin.Context) {
	var input createCommentRequest
	if !bind(c, &input) {
		return
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		badRequest(c, "content is required")
		return
	}
	comment, err := s.Store.CreateComment(c.Request.Context(), models.Comment{
		PostID:  input.PostID,
		UserID:  caller(c),
		Content: content,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.Metrics.Interaction("comment", "add")
	c.JSON(http.StatusCreated, comment)
}

func (s *Server) likeComment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	result, err := s.Store.ToggleCommentLike(c.Request.Context(), id, caller(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.Metrics.Interaction("comment_like", direction(result.IsLiked))
	c.JSON(http.StatusOK, result)
}
