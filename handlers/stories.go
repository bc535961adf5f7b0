package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"socialhub/models"
)

type createStoryRequest struct {
	Image string `json:"image" binding:"required,max=2048"`
}

func (s *Server) listStories(c *gin.Context) {
	ctx := c.Request.Context()
	stories, err := s.Store.GetStories(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	users := make([]*models.User, 0, len(stories))
	for i := range stories {
		users = append(users, stories[i].User)
	}
	s.fillOnline(ctx, users...)
	c.JSON(http.StatusOK, stories)
}

func (s *Server) createStory(c *gin.Context) {
	var input createStoryRequest
	if !bind(c, &input) {
		return
	}
	story, err := s.Store.CreateStory(c.Request.Context(), models.Story{UserID: caller(c), Image: input.Image})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, story)
}

func (s *Server) viewStory(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	story, err := s.Store.MarkStoryViewed(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}
