// Package pipeline runs the enhance, generate and publish stages for every
// platform of a request and folds the outcomes into one response.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	publish "reelcast/03_publish"
	"reelcast/config"
	"reelcast/types"
)

// Enhancer rewrites content for a platform.
type Enhancer interface {
	Enhance(ctx context.Context, text string, platform types.PlatformID) (string, error)
}

// Generator turns a script into a finished video.
type Generator interface {
	Generate(ctx context.Context, script string, opts types.VideoOptions) (*types.VideoAsset, error)
}

// Publishers resolves the publisher for a platform.
type Publishers interface {
	Get(id types.PlatformID) (publish.Publisher, error)
}

// Orchestrator isolates platforms from each other: a failure in one is
// recorded and the rest carry on.
type Orchestrator struct {
	enhancer   Enhancer
	generator  Generator
	publishers Publishers
	parallel   bool
	now        func() time.Time
	log        zerolog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the clock used for timings and timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithParallel overrides whether platforms run concurrently.
func WithParallel(parallel bool) Option {
	return func(o *Orchestrator) { o.parallel = parallel }
}

// New creates an Orchestrator.
func New(cfg *config.Config, enhancer Enhancer, generator Generator, publishers Publishers, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		enhancer:   enhancer,
		generator:  generator,
		publishers: publishers,
		parallel:   cfg.Pipeline.Parallel,
		now:        time.Now,
		log:        logger.With().Str("stage", "pipeline").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// platformRun is the outcome of one platform: exactly one of result or
// failure is set.
type platformRun struct {
	platform types.PlatformID
	result   *types.PlatformResult
	failure  *types.PlatformError
}

// Run validates req and processes each requested platform. The only error
// returned is a validation error; everything after that is reported inside
// the response.
func (o *Orchestrator) Run(ctx context.Context, req *types.PublishRequest) (*types.AggregateResponse, error) {
	platforms, err := req.Validate()
	if err != nil {
		return nil, err
	}

	started := o.now()
	log := o.log.With().Str("run_id", uuid.NewString()[:8]).Logger()
	log.Info().
		Strs("platforms", req.Platforms).
		Bool("enhance", req.ShouldEnhance()).
		Msg("🎬 publish run starting")

	runs := make([]platformRun, len(platforms))
	if o.parallel {
		var wg sync.WaitGroup
		for i, id := range platforms {
			wg.Add(1)
			go func(i int, id types.PlatformID) {
				defer wg.Done()
				runs[i] = o.runPlatform(ctx, log, req, id)
			}(i, id)
		}
		wg.Wait()
	} else {
		for i, id := range platforms {
			runs[i] = o.runPlatform(ctx, log, req, id)
		}
	}

	resp := &types.AggregateResponse{}
	for _, run := range runs {
		if run.failure != nil {
			resp.Errors = append(resp.Errors, *run.failure)
			continue
		}
		resp.Results.Set(run.platform, *run.result)
	}
	finished := o.now()
	resp.Success = len(resp.Errors) == 0
	resp.ProcessingTime = fmt.Sprintf("%dms", finished.Sub(started).Milliseconds())
	resp.ProcessedAt = finished.UTC()

	log.Info().
		Bool("success", resp.Success).
		Int("results", resp.Results.Len()).
		Int("errors", len(resp.Errors)).
		Str("processing_time", resp.ProcessingTime).
		Msg("publish run finished")
	return resp, nil
}

func (o *Orchestrator) runPlatform(ctx context.Context, parent zerolog.Logger, req *types.PublishRequest, id types.PlatformID) (run platformRun) {
	log := parent.With().Str("platform", string(id)).Logger()
	started := o.now()
	stage := types.StagePending
	run.platform = id

	fail := func(err error) platformRun {
		log.Error().Err(err).Str("failed_stage", string(stage)).Str("state", string(types.StageFailed)).Msg("❌ platform failed")
		return platformRun{
			platform: id,
			failure: &types.PlatformError{
				Platform:  id,
				Error:     err.Error(),
				Stage:     stage,
				Timestamp: o.now().UTC(),
			},
		}
	}
	defer func() {
		if r := recover(); r != nil {
			run = fail(errors.Errorf("panic: %v", r))
		}
	}()

	pub, err := o.publishers.Get(id)
	if err != nil {
		return fail(err)
	}

	stage = types.StageEnhancing
	script := req.Content
	if req.ShouldEnhance() {
		log.Info().Msg("━━━ enhancing content")
		if script, err = o.enhancer.Enhance(ctx, req.Content, id); err != nil {
			return fail(err)
		}
	}

	stage = types.StageGenerating
	log.Info().Msg("━━━ generating video")
	asset, err := o.generator.Generate(ctx, script, pub.DeriveOptions(req.Duration))
	if err != nil {
		return fail(err)
	}

	stage = types.StagePublishing
	log.Info().Str("video_url", asset.VideoURL).Msg("━━━ publishing")
	outcome := pub.Publish(ctx, asset, script)
	if !outcome.Success {
		log.Warn().Str("error", outcome.Error).Msg("publish reported failure")
	}

	elapsed := o.now().Sub(started)
	log.Info().Dur("elapsed", elapsed).Msg("✅ platform done")
	run.result = &types.PlatformResult{
		EnhancedContent: script,
		Video:           asset,
		Publish:         outcome,
		Stage:           types.StageDone,
		ProcessingTime:  elapsed.Milliseconds(),
	}
	return run
}
