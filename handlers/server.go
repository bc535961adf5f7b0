// Package handlers exposes the social API over gin.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"socialhub/media"
	"socialhub/metrics"
	"socialhub/middleware"
	"socialhub/models"
	"socialhub/presence"
	"socialhub/storage"
)

// TrackSearcher finds music for the composer; *spotify.Client implements it.
type TrackSearcher interface {
	Search(ctx context.Context, query string) ([]models.Music, error)
}

type Server struct {
	Store    storage.Storage
	Auth     *middleware.Auth
	Media    media.Store
	Spotify  TrackSearcher
	Presence presence.Tracker
	Metrics  *metrics.Metrics
	Log      *slog.Logger

	MaxUploadBytes int64
	CORSOrigins    []string
	// Limiter is optional.
	Limiter *middleware.RateLimiter
	// TrustedProxies may set the client IP through X-Forwarded-For. Nil
	// trusts nobody.
	TrustedProxies []string
	// UploadDir is served under UploadURL when uploads are stored locally.
	UploadDir string
	UploadURL string
}

// Router builds the engine with the full middleware chain.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(s.TrustedProxies); err != nil {
		s.Log.Error("invalid trusted proxies, trusting none", "error", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(middleware.RequestLogger(s.Log), gin.Recovery(), s.Metrics.Middleware(), middleware.CORS(s.CORSOrigins))
	if s.Limiter != nil {
		r.Use(s.Limiter.Handler())
	}
	if s.UploadDir != "" {
		r.Static(s.UploadURL, s.UploadDir)
	}
	r.GET("/metrics", gin.WrapH(s.Metrics.Handler()))
	s.Register(r)
	return r
}

func (s *Server) Register(r gin.IRouter) {
	api := r.Group("/api")
	api.GET("/health", s.health)
	api.POST("/auth/register", s.register)
	api.POST("/auth/login", s.login)
	api.GET("/spotify/search", s.searchTracks)

	public := api.Group("", s.Auth.Optional())
	{
		public.GET("/posts", s.listPosts)
		public.GET("/posts/:id", s.getPost)
		public.GET("/posts/:id/comments", s.listComments)
		public.GET("/stories", s.listStories)
		public.GET("/users", s.listUsers)
		public.GET("/users/:id", s.getUser)
		public.GET("/users/:id/posts", s.listUserPosts)
	}

	auth := api.Group("", s.Auth.Required())
	{
		auth.GET("/auth/me", s.me)
		auth.PATCH("/users/me", s.updateMe)
		auth.POST("/users/me/heartbeat", s.heartbeat)
		auth.POST("/users/:id/follow", s.follow)

		auth.POST("/posts", s.createPost)
		auth.DELETE("/posts/:id", s.deletePost)
		auth.POST("/posts/:id/like", s.likePost)
		auth.POST("/posts/:id/share", s.sharePost)

		auth.POST("/comments", s.createComment)
		auth.POST("/comments/:id/like", s.likeComment)

		auth.POST("/stories", s.createStory)
		auth.POST("/stories/:id/view", s.viewStory)

		auth.POST("/upload", s.upload)

		auth.GET("/messages", s.listConversations)
		auth.GET("/messages/:userId", s.getConversation)
		auth.POST("/messages", s.sendMessage)
	}

	admin := api.Group("/admin", s.Auth.Required(), middleware.AdminOnly(s.isAdmin))
	{
		admin.GET("/stats", s.stats)
		admin.DELETE("/posts/:id", s.adminDeletePost)
		admin.DELETE("/comments/:id", s.adminDeleteComment)
		admin.DELETE("/users/:id", s.adminDeleteUser)
		admin.POST("/users/:id/verify", s.adminVerify)
	}
}

func (s *Server) health(c *gin.Context) {
	if err := s.Store.Ping(c.Request.Context()); err != nil {
		s.Log.Error("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) isAdmin(ctx context.Context, userID uint) (bool, error) {
	u, err := s.Store.GetUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.IsAdmin, nil
}

// fail maps err onto a status code and writes the error body.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, storage.ErrInvalid):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		s.Log.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// bind decodes the JSON body into dst and answers 400 on failure.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// caller returns the authenticated user id; Required guarantees it is set.
func caller(c *gin.Context) uint {
	id, _ := middleware.UserID(c)
	return id
}

// fillOnline sets IsOnline on users from the presence tracker. Lookup
// failures leave everyone offline.
func (s *Server) fillOnline(ctx context.Context, users ...*models.User) {
	if s.Presence == nil {
		return
	}
	ids := make([]uint, 0, len(users))
	for _, u := range users {
		if u != nil {
			ids = append(ids, u.ID)
		}
	}
	if len(ids) == 0 {
		return
	}
	online, err := s.Presence.Online(ctx, ids)
	if err != nil {
		s.Log.Warn("presence lookup failed", "error", err)
		return
	}
	for _, u := range users {
		if u != nil {
			u.IsOnline = online[u.ID]
		}
	}
}

func (s *Server) touch(ctx context.Context, userID uint) {
	if s.Presence == nil {
		return
	}
	if err := s.Presence.Touch(ctx, userID); err != nil {
		s.Log.Warn("presence update failed", "user_id", userID, "error", err)
	}
}
