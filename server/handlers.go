package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"reelcast/types"
)

const logContentLimit = 50

func (s *Server) generateAndPublish(c *gin.Context) {
	start := s.now()

	var req types.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body: " + err.Error()})
		return
	}
	s.log.Info().
		Str("content", types.Truncate(req.Content, logContentLimit)).
		Strs("platforms", req.Platforms).
		Bool("enhance", req.ShouldEnhance()).
		Msg("generate-and-publish")

	resp, err := s.deps.Pipeline.Run(c.Request.Context(), &req)
	switch {
	case errors.Is(err, types.ErrValidation):
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":         false,
			"error":           err.Error(),
			"processing_time": fmt.Sprintf("%dms", s.now().Sub(start).Milliseconds()),
			"timestamp":       s.now().UTC(),
		})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) platforms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "platforms": types.Platforms()})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"credentials": s.creds.Presence(),
		"platforms":   types.SupportedIDs(),
		"timestamp":   s.now().UTC(),
	})
}

func (s *Server) suggestions(c *gin.Context) {
	var body struct {
		Topic string `json:"topic"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Topic) == "" {
		_ = c.Error(&types.ValidationError{Reason: "topic is required"})
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "topic is required"})
		return
	}

	suggestions, err := s.deps.Suggester.SuggestTopics(c.Request.Context(), body.Topic)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"topic":       body.Topic,
		"suggestions": suggestions,
		"timestamp":   s.now().UTC(),
	})
}

func (s *Server) taskStatus(c *gin.Context) {
	task, err := s.deps.Tasks.TaskStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "task": task})
}

func (s *Server) instagramAccount(c *gin.Context) {
	account, err := s.deps.Instagram.AccountInfo(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "account": account})
}

// fail writes err with the status its kind maps to.
func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(statusFor(err), gin.H{"success": false, "error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrMissingCredential):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
