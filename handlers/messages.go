package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"socialhub/models"
)

type sendMessageRequest struct {
	ReceiverID uint   `json:"receiverId" binding:"required"`
	Content    string `json:"content" binding:"required,max=2000"`
}

func (s *Server) listConversations(c *gin.Context) {
	ctx := c.Request.Context()
	convs, err := s.Store.ListConversations(ctx, caller(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	partners := make([]*models.User, len(convs))
	for i := range convs {
		partners[i] = &convs[i].Partner
	}
	s.fillOnline(ctx, partners...)
	c.JSON(http.StatusOK, convs)
}

// getConversation returns the thread with :userId oldest first and marks
// the caller's incoming messages as read.
func (s *Server) getConversation(c *gin.Context) {
	otherID, ok := idParam(c, "userId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	userID := caller(c)
	if _, err := s.Store.GetUser(ctx, otherID); err != nil {
		s.fail(c, err)
		return
	}
	msgs, err := s.Store.GetConversation(ctx, userID, otherID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if _, err := s.Store.MarkConversationRead(ctx, userID, otherID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (s *Server) sendMessage(c *gin.Context) {
	var input sendMessageRequest
	if !bind(c, &input) {
		return
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		badRequest(c, "content is required")
		return
	}
	msg, err := s.Store.SendMessage(c.Request.Context(), models.Message{
		SenderID:   caller(c),
		ReceiverID: input.ReceiverID,
		Content:    content,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
