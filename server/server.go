// Package server exposes the publish pipeline over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	video "reelcast/02_video"
	publish "reelcast/03_publish"
	"reelcast/config"
	"reelcast/types"
)

// BasePath prefixes every pipeline route.
const BasePath = "/api/generate-and-publish"

// Runner runs one publish request across its platforms.
type Runner interface {
	Run(ctx context.Context, req *types.PublishRequest) (*types.AggregateResponse, error)
}

// Suggester proposes content angles for a topic.
type Suggester interface {
	SuggestTopics(ctx context.Context, topic string) (string, error)
}

// TaskLookup reports the state of a generation job.
type TaskLookup interface {
	TaskStatus(ctx context.Context, taskID string) (*video.Task, error)
}

// AccountLookup describes the Instagram account being published to.
type AccountLookup interface {
	AccountInfo(ctx context.Context) (*publish.Account, error)
}

// Deps are the components the routes call into.
type Deps struct {
	Pipeline  Runner
	Suggester Suggester
	Tasks     TaskLookup
	Instagram AccountLookup
}

// Server is the HTTP front end.
type Server struct {
	cfg    config.ServerConfig
	creds  *config.Credentials
	deps   Deps
	now    func() time.Time
	log    zerolog.Logger
	router *gin.Engine
}

// New builds the router with all routes registered.
func New(cfg *config.Config, creds *config.Credentials, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:   cfg.Server,
		creds: creds,
		deps:  deps,
		now:   time.Now,
		log:   logger.With().Str("stage", "http").Logger(),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog(), youtubeToken())

	r.GET("/health", s.health)
	api := r.Group(BasePath)
	{
		api.POST("", s.generateAndPublish)
		api.GET("/platforms", s.platforms)
		api.GET("/health", s.health)
		api.POST("/suggestions", s.suggestions)
		api.GET("/tasks/:id", s.taskStatus)
		api.GET("/instagram/account", s.instagramAccount)
	}
	s.router = r
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("🚀 listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
