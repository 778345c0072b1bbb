package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	publish "reelcast/03_publish"
)

const (
	requestIDHeader    = "X-Request-ID"
	youtubeTokenHeader = "X-YouTube-Access-Token"
)

// accessLog logs every request once it completes.
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		start := s.now()

		c.Next()

		elapsed := s.now().Sub(start)
		status := c.Writer.Status()
		event := s.log.Info()
		switch {
		case status >= 500:
			event = s.log.Error()
		case status >= 400 || elapsed > s.cfg.SlowRequest:
			event = s.log.Warn()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.
			Str("request_id", id).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", elapsed).
			Bool("slow", elapsed > s.cfg.SlowRequest).
			Msg("request")
	}
}

// youtubeToken lets a caller bring its own YouTube access token.
func youtubeToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(youtubeTokenHeader))
		if token != "" {
			ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
			c.Request = c.Request.WithContext(publish.WithTokenSource(c.Request.Context(), ts))
		}
		c.Next()
	}
}
