package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"socialhub/media"
	"socialhub/spotify"
)

// multipartSlack covers the form framing around the file itself.
const multipartSlack = 64 << 10

func (s *Server) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.MaxUploadBytes+multipartSlack)

	file, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.rejectUpload(c, http.StatusRequestEntityTooLarge, "too_large", media.ErrTooLarge)
			return
		}
		badRequest(c, "multipart field \"image\" is required")
		return
	}
	if file.Size > s.MaxUploadBytes {
		s.rejectUpload(c, http.StatusRequestEntityTooLarge, "too_large", media.ErrTooLarge)
		return
	}

	src, err := file.Open()
	if err != nil {
		badRequest(c, "failed to open file")
		return
	}
	defer src.Close()

	img, err := media.ReadImage(src, s.MaxUploadBytes)
	switch {
	case errors.Is(err, media.ErrTooLarge):
		s.rejectUpload(c, http.StatusRequestEntityTooLarge, "too_large", err)
		return
	case errors.Is(err, media.ErrUnsupportedType):
		s.rejectUpload(c, http.StatusBadRequest, "rejected", err)
		return
	case err != nil:
		s.Metrics.Uploads.WithLabelValues("error").Inc()
		s.fail(c, err)
		return
	}

	url, err := media.Save(c.Request.Context(), s.Media, img)
	if err != nil {
		s.Metrics.Uploads.WithLabelValues("error").Inc()
		s.fail(c, errors.Wrap(err, "store upload"))
		return
	}
	s.Metrics.Uploads.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (s *Server) rejectUpload(c *gin.Context, status int, outcome string, err error) {
	s.Metrics.Uploads.WithLabelValues(outcome).Inc()
	c.JSON(status, gin.H{"error": err.Error()})
}

// searchTracks always answers with tracks: upstream failures fall back to
// the offline catalogue.
func (s *Server) searchTracks(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		badRequest(c, "query parameter q is required")
		return
	}
	if s.Spotify != nil {
		tracks, err := s.Spotify.Search(c.Request.Context(), query)
		if err == nil && len(tracks) > 0 {
			c.JSON(http.StatusOK, tracks)
			return
		}
		if err != nil && !errors.Is(err, spotify.ErrNotConfigured) {
			s.Log.Warn("spotify search failed, serving mock tracks", "query", query, "error", err)
		}
	}
	s.Metrics.SpotifyFallbacks.Inc()
	c.JSON(http.StatusOK, spotify.MockTracks(query))
}
