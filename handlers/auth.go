package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"socialhub/models"
	"socialhub/storage"
)

type credentials struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type registerRequest struct {
	credentials
	DisplayName string `json:"displayName" binding:"omitempty,max=128"`
	Avatar      string `json:"avatar" binding:"omitempty,max=2048"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func (s *Server) register(c *gin.Context) {
	var input registerRequest
	if !bind(c, &input) {
		return
	}
	username := strings.TrimSpace(input.Username)
	if strings.ContainsAny(username, " \t\n/") {
		badRequest(c, "username may not contain spaces or slashes")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		s.fail(c, errors.Wrap(err, "hash password"))
		return
	}
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = username
	}

	ctx := c.Request.Context()
	user, err := s.Store.CreateUser(ctx, models.User{
		Username:    username,
		Password:    string(hashedPassword),
		DisplayName: displayName,
		Avatar:      input.Avatar,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondWithToken(c, http.StatusCreated, user)
}

func (s *Server) login(c *gin.Context) {
	var input credentials
	if !bind(c, &input) {
		return
	}

	user, err := s.Store.GetUserByUsername(c.Request.Context(), strings.TrimSpace(input.Username))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}
	s.respondWithToken(c, http.StatusOK, user)
}

func (s *Server) respondWithToken(c *gin.Context, status int, user models.User) {
	token, err := s.Auth.Issue(user.ID)
	if err != nil {
		s.fail(c, errors.Wrap(err, "sign token"))
		return
	}
	ctx := c.Request.Context()
	s.touch(ctx, user.ID)
	s.fillOnline(ctx, &user)
	c.JSON(status, authResponse{Token: token, User: user})
}

func (s *Server) me(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := s.Store.GetUser(ctx, caller(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.fillOnline(ctx, &user)
	c.JSON(http.StatusOK, user)
}
