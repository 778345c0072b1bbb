// Package video turns an enhanced script into a short video through the
// Runway generation API.
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"reelcast/config"
	"reelcast/poll"
	"reelcast/types"
)

const provider = "runway"

// Task states reported by the provider.
const (
	TaskPending   = types.AssetPending
	TaskCompleted = types.AssetCompleted
	TaskFailed    = types.AssetFailed
)

// Generator submits generation jobs and waits for their assets.
type Generator struct {
	cfg        config.VideoConfig
	apiKey     string
	httpClient *http.Client
	sleep      poll.Sleeper
	now        func() time.Time
	log        zerolog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Generator) { g.httpClient = c }
}

// WithSleeper replaces the wait between status checks.
func WithSleeper(s poll.Sleeper) Option {
	return func(g *Generator) { g.sleep = s }
}

// WithClock sets the clock used for asset timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// New creates a Generator.
func New(cfg *config.Config, creds *config.Credentials, logger zerolog.Logger, opts ...Option) *Generator {
	g := &Generator{
		cfg:        cfg.Video,
		apiKey:     creds.RunwayAPIKey,
		httpClient: &http.Client{Timeout: cfg.Video.Timeout},
		sleep:      poll.Sleep,
		now:        time.Now,
		log:        logger.With().Str("stage", "video").Logger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type createRequest struct {
	Input struct {
		Prompt string `json:"prompt"`
		Style  string `json:"style"`
	} `json:"input"`
	Config struct {
		Duration    int    `json:"duration"`
		AspectRatio string `json:"aspect_ratio"`
		MotionLevel string `json:"motion_level"`
		Quality     string `json:"quality"`
	} `json:"config"`
}

// Task is the provider's view of a generation job.
type Task struct {
	ID     string            `json:"id"`
	Status types.AssetStatus `json:"status"`
	Output *struct {
		VideoURL     string  `json:"video_url"`
		ThumbnailURL string  `json:"thumbnail_url"`
		Duration     float64 `json:"duration"`
	} `json:"output,omitempty"`
	Error string `json:"error,omitempty"`
}

// Generate submits script for opts.Platform and blocks until the job reaches
// a terminal state or the attempt budget runs out.
func (g *Generator) Generate(ctx context.Context, script string, opts types.VideoOptions) (*types.VideoAsset, error) {
	platform, err := types.Lookup(opts.Platform)
	if err != nil {
		return nil, err
	}
	derived := platform.Derive(opts.Duration)

	taskID, err := g.submit(ctx, script, derived)
	if err != nil {
		return nil, err
	}
	log := g.log.With().Str("platform", string(derived.Platform)).Str("task_id", taskID).Logger()
	log.Info().Int("duration", derived.Duration).Str("aspect_ratio", derived.AspectRatio).Msg("generation submitted")

	task, err := poll.Until(ctx,
		func(ctx context.Context) (*Task, error) { return g.TaskStatus(ctx, taskID) },
		func(t *Task) bool { return t.Status == TaskCompleted },
		func(t *Task) (string, bool) { return t.Error, t.Status == TaskFailed },
		poll.Options{
			Provider:    provider,
			Interval:    g.cfg.PollInterval,
			MaxAttempts: g.cfg.MaxAttempts,
			Sleep:       g.sleep,
		},
	)
	if err != nil {
		log.Warn().Err(err).Msg("generation did not complete")
		return nil, errors.Wrapf(err, "generate video %s", taskID)
	}

	if task.Output == nil || task.Output.VideoURL == "" {
		return nil, &types.ProviderError{Kind: types.ErrJobFailed, Provider: provider, Message: "task " + taskID + " completed without a video_url"}
	}

	asset := &types.VideoAsset{
		ID:           taskID,
		Status:       types.AssetCompleted,
		VideoURL:     task.Output.VideoURL,
		ThumbnailURL: task.Output.ThumbnailURL,
		Duration:     task.Output.Duration,
		Platform:     derived.Platform,
		AspectRatio:  derived.AspectRatio,
		CreatedAt:    g.now().UTC(),
	}
	log.Info().Str("video_url", asset.VideoURL).Msg("✅ video ready")
	return asset, nil
}

func (g *Generator) submit(ctx context.Context, script string, opts types.VideoOptions) (string, error) {
	if g.apiKey == "" {
		return "", &types.ProviderError{Kind: types.ErrMissingCredential, Provider: provider, Message: "RUNWAY_API_KEY not set"}
	}

	var body createRequest
	body.Input.Prompt = script
	body.Input.Style = opts.Style
	body.Config.Duration = opts.Duration
	body.Config.AspectRatio = opts.AspectRatio
	body.Config.MotionLevel = g.cfg.MotionLevel
	body.Config.Quality = g.cfg.Quality

	payload, err := json.Marshal(body)
	if err != nil {
		return "", errors.Wrap(err, "marshal generation request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint("gen3", "text-to-video"), bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", types.Transport(provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.Transport(provider, errors.Wrap(err, "read response"))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &types.ProviderError{
			Kind:       types.ErrGenerationSubmitFailed,
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(respBytes)),
		}
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBytes, &created); err != nil || created.ID == "" {
		return "", &types.ProviderError{Kind: types.ErrGenerationSubmitFailed, Provider: provider, Message: "response carried no task id"}
	}
	return created.ID, nil
}

// TaskStatus fetches the current state of a generation task.
func (g *Generator) TaskStatus(ctx context.Context, taskID string) (*Task, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint("tasks", taskID), nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, types.Transport(provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.Transport(provider, errors.Wrap(err, "read response"))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &types.ProviderError{
			Kind:       types.ErrTransport,
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Message:    "task status request failed",
		}
	}

	var task Task
	if err := json.Unmarshal(respBytes, &task); err != nil {
		return nil, types.Transport(provider, errors.Wrap(err, "parse task status"))
	}
	if task.ID == "" {
		task.ID = taskID
	}
	return &task, nil
}

func (g *Generator) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return strings.TrimRight(g.cfg.BaseURL, "/") + "/" + strings.Join(escaped, "/")
}
