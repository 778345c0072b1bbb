package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	publish "reelcast/03_publish"
	"reelcast/config"
	"reelcast/types"
)

type fakeEnhancer struct {
	mu    sync.Mutex
	calls []types.PlatformID
	fail  map[types.PlatformID]error
}

func (f *fakeEnhancer) Enhance(_ context.Context, text string, platform types.PlatformID) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, platform)
	f.mu.Unlock()
	if err := f.fail[platform]; err != nil {
		return "", err
	}
	return text + " #" + string(platform), nil
}

type fakeGenerator struct {
	mu    sync.Mutex
	opts  map[types.PlatformID]types.VideoOptions
	fail  map[types.PlatformID]error
	delay map[types.PlatformID]time.Duration
}

func (f *fakeGenerator) Generate(_ context.Context, script string, opts types.VideoOptions) (*types.VideoAsset, error) {
	time.Sleep(f.delay[opts.Platform])
	f.mu.Lock()
	if f.opts == nil {
		f.opts = make(map[types.PlatformID]types.VideoOptions)
	}
	f.opts[opts.Platform] = opts
	f.mu.Unlock()
	if err := f.fail[opts.Platform]; err != nil {
		return nil, err
	}
	return &types.VideoAsset{
		ID:       "task-" + string(opts.Platform),
		Status:   types.AssetCompleted,
		VideoURL: "https://cdn.example/" + string(opts.Platform) + ".mp4",
		Platform: opts.Platform,
	}, nil
}

type fakePublisher struct {
	platform types.PlatformID
	fail     string
	scripts  []string
}

func (f *fakePublisher) Platform() types.PlatformID { return f.platform }

func (f *fakePublisher) DeriveOptions(requested int) types.VideoOptions {
	p, _ := types.Lookup(f.platform)
	return p.Derive(requested)
}

func (f *fakePublisher) Publish(_ context.Context, asset *types.VideoAsset, script string) types.PublishOutcome {
	f.scripts = append(f.scripts, script)
	if f.fail != "" {
		return types.PublishOutcome{Success: false, Platform: f.platform, Error: f.fail}
	}
	return types.PublishOutcome{Success: true, Platform: f.platform, MediaID: "m-" + asset.ID}
}

func newOrchestrator(enh *fakeEnhancer, gen *fakeGenerator, pubs ...publish.Publisher) *Orchestrator {
	return New(config.Default(), enh, gen, publish.NewRegistry(pubs...), zerolog.Nop())
}

func bothPublishers() (*fakePublisher, *fakePublisher) {
	return &fakePublisher{platform: types.Instagram}, &fakePublisher{platform: types.YouTube}
}

func TestRun_RejectsInvalidRequests(t *testing.T) {
	enh, gen := &fakeEnhancer{}, &fakeGenerator{}
	ig, yt := bothPublishers()
	o := newOrchestrator(enh, gen, ig, yt)

	for _, req := range []*types.PublishRequest{
		{Content: "   ", Platforms: []string{"instagram"}},
		{Content: "hello"},
		{Content: "hello", Platforms: []string{"tiktok"}},
	} {
		resp, err := o.Run(context.Background(), req)
		if !errors.Is(err, types.ErrValidation) {
			t.Errorf("%+v: expected validation error, got %v", req, err)
		}
		if resp != nil {
			t.Errorf("%+v: expected no response", req)
		}
	}
	if len(enh.calls) != 0 || len(gen.opts) != 0 {
		t.Error("no stage may run for an invalid request")
	}
}

func TestRun_AllPlatformsSucceed(t *testing.T) {
	enh, gen := &fakeEnhancer{}, &fakeGenerator{}
	ig, yt := bothPublishers()
	o := newOrchestrator(enh, gen, ig, yt)

	resp, err := o.Run(context.Background(), &types.PublishRequest{
		Content:   "ship it",
		Platforms: []string{"youtube", "instagram"},
		Duration:  120,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Success || len(resp.Errors) != 0 {
		t.Fatalf("expected success, got %+v", resp.Errors)
	}
	if got := resp.Results.Platforms(); len(got) != 2 || got[0] != types.YouTube || got[1] != types.Instagram {
		t.Errorf("results order = %v", got)
	}

	res, _ := resp.Results.Get(types.Instagram)
	if res.EnhancedContent != "ship it #instagram" || res.Stage != types.StageDone {
		t.Errorf("instagram result = %+v", res)
	}
	if res.Publish.MediaID != "m-task-instagram" || ig.scripts[0] != "ship it #instagram" {
		t.Errorf("publish should receive the enhanced script and asset: %+v", res.Publish)
	}
	if gen.opts[types.Instagram].Duration != 30 || gen.opts[types.YouTube].Duration != 60 {
		t.Errorf("durations not capped: %+v", gen.opts)
	}
	if !strings.HasSuffix(resp.ProcessingTime, "ms") || resp.ProcessedAt.IsZero() {
		t.Errorf("timing not recorded: %q %v", resp.ProcessingTime, resp.ProcessedAt)
	}
}

func TestRun_SkipsEnhancementWhenDisabled(t *testing.T) {
	enh, gen := &fakeEnhancer{}, &fakeGenerator{}
	ig, yt := bothPublishers()
	o := newOrchestrator(enh, gen, ig, yt)
	off := false

	resp, err := o.Run(context.Background(), &types.PublishRequest{Content: "Hello world", Platforms: []string{"instagram"}, Enhance: &off})
	if err != nil {
		t.Fatal(err)
	}
	if len(enh.calls) != 0 {
		t.Error("enhancer should not be called")
	}
	res, _ := resp.Results.Get(types.Instagram)
	if res.EnhancedContent != "Hello world" {
		t.Errorf("content = %q", res.EnhancedContent)
	}
}

func TestRun_IsolatesPlatformFailures(t *testing.T) {
	timeout := &types.ProviderError{Kind: types.ErrJobTimeout, Provider: "runway", Message: "no terminal state after 60 checks"}
	enh := &fakeEnhancer{}
	gen := &fakeGenerator{fail: map[types.PlatformID]error{types.Instagram: timeout}}
	ig, yt := bothPublishers()
	o := newOrchestrator(enh, gen, ig, yt)

	resp, err := o.Run(context.Background(), &types.PublishRequest{Content: "x", Platforms: []string{"instagram", "youtube"}})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Success {
		t.Error("success must be false when any platform fails")
	}
	if _, ok := resp.Results.Get(types.Instagram); ok {
		t.Error("failed platform must not have a result")
	}
	if res, ok := resp.Results.Get(types.YouTube); !ok || !res.Publish.Success {
		t.Errorf("youtube should still publish, got %+v", res)
	}
	if len(resp.Errors) != 1 {
		t.Fatalf("errors = %+v", resp.Errors)
	}
	e := resp.Errors[0]
	if e.Platform != types.Instagram || e.Stage != types.StageGenerating || !strings.Contains(e.Error, "job timed out") {
		t.Errorf("error = %+v", e)
	}
	if len(ig.scripts) != 0 {
		t.Error("instagram publish must not run after a generation failure")
	}
}

func TestRun_RecordsFailingStage(t *testing.T) {
	enh := &fakeEnhancer{fail: map[types.PlatformID]error{types.YouTube: errors.New("perplexity: content enhancement failed (status 401)")}}
	ig, yt := bothPublishers()
	o := newOrchestrator(enh, &fakeGenerator{}, ig)

	resp, err := o.Run(context.Background(), &types.PublishRequest{Content: "x", Platforms: []string{"instagram", "youtube"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Errors) != 1 || resp.Errors[0].Stage != types.StagePending {
		t.Fatalf("missing publisher should fail before enhancing: %+v", resp.Errors)
	}
	if !strings.Contains(resp.Errors[0].Error, "unsupported platform") {
		t.Errorf("error = %q", resp.Errors[0].Error)
	}

	o = newOrchestrator(enh, &fakeGenerator{}, ig, yt)
	resp, _ = o.Run(context.Background(), &types.PublishRequest{Content: "x", Platforms: []string{"youtube"}})
	if len(resp.Errors) != 1 || resp.Errors[0].Stage != types.StageEnhancing {
		t.Errorf("expected enhancing failure, got %+v", resp.Errors)
	}
}

func TestRun_PublishFailureStaysInResults(t *testing.T) {
	ig := &fakePublisher{platform: types.Instagram, fail: "instagram: media publish failed"}
	o := newOrchestrator(&fakeEnhancer{}, &fakeGenerator{}, ig)

	resp, err := o.Run(context.Background(), &types.PublishRequest{Content: "x", Platforms: []string{"instagram"}})
	if err != nil {
		t.Fatal(err)
	}
	res, ok := resp.Results.Get(types.Instagram)
	if !ok || res.Publish.Success || res.Publish.Error == "" {
		t.Errorf("publish failure should be recorded as data: %+v", res)
	}
	if !resp.Success || len(resp.Errors) != 0 {
		t.Errorf("success = %v errors = %+v", resp.Success, resp.Errors)
	}
}

func TestRun_AccountsForEveryPlatformOnce(t *testing.T) {
	cases := [][]string{
		{"instagram"},
		{"youtube", "instagram"},
		{"instagram", "youtube", "instagram"},
	}
	for _, platforms := range cases {
		gen := &fakeGenerator{fail: map[types.PlatformID]error{types.YouTube: errors.New("boom")}}
		ig, yt := bothPublishers()
		o := newOrchestrator(&fakeEnhancer{}, gen, ig, yt)

		resp, err := o.Run(context.Background(), &types.PublishRequest{Content: "x", Platforms: platforms})
		if err != nil {
			t.Fatal(err)
		}
		unique := map[string]bool{}
		for _, p := range platforms {
			unique[p] = true
		}
		if got := resp.Results.Len() + len(resp.Errors); got != len(unique) {
			t.Errorf("%v: accounted for %d platforms, want %d", platforms, got, len(unique))
		}
	}
}

func TestRun_ParallelKeepsRequestOrder(t *testing.T) {
	gen := &fakeGenerator{delay: map[types.PlatformID]time.Duration{types.Instagram: 30 * time.Millisecond}}
	ig, yt := bothPublishers()
	o := New(config.Default(), &fakeEnhancer{}, gen, publish.NewRegistry(ig, yt), zerolog.Nop(), WithParallel(true))

	resp, err := o.Run(context.Background(), &types.PublishRequest{Content: "x", Platforms: []string{"instagram", "youtube"}})
	if err != nil {
		t.Fatal(err)
	}
	got := resp.Results.Platforms()
	if len(got) != 2 || got[0] != types.Instagram || got[1] != types.YouTube {
		t.Errorf("results order = %v", got)
	}
	data, _ := json.Marshal(resp)
	if strings.Index(string(data), `"instagram"`) > strings.Index(string(data), `"youtube"`) {
		t.Errorf("json order = %s", data)
	}
}

type panickingGenerator struct{}

func (panickingGenerator) Generate(context.Context, string, types.VideoOptions) (*types.VideoAsset, error) {
	panic("nil asset")
}

func TestRun_RecoversFromStagePanic(t *testing.T) {
	ig, yt := bothPublishers()
	o := New(config.Default(), &fakeEnhancer{}, panickingGenerator{}, publish.NewRegistry(ig, yt), zerolog.Nop())

	resp, err := o.Run(context.Background(), &types.PublishRequest{Content: "x", Platforms: []string{"instagram", "youtube"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Errors) != 2 || resp.Errors[0].Stage != types.StageGenerating {
		t.Fatalf("errors = %+v", resp.Errors)
	}
	if resp.Errors[0].Platform != types.Instagram || resp.Errors[1].Platform != types.YouTube {
		t.Errorf("errors out of request order: %+v", resp.Errors)
	}
}

func TestRun_ParallelKeepsErrorOrder(t *testing.T) {
	gen := &fakeGenerator{
		fail: map[types.PlatformID]error{
			types.Instagram: errors.New("instagram render failed"),
			types.YouTube:   errors.New("youtube render failed"),
		},
		delay: map[types.PlatformID]time.Duration{types.Instagram: 30 * time.Millisecond},
	}
	ig, yt := bothPublishers()
	o := New(config.Default(), &fakeEnhancer{}, gen, publish.NewRegistry(ig, yt), zerolog.Nop(), WithParallel(true))

	resp, err := o.Run(context.Background(), &types.PublishRequest{Content: "x", Platforms: []string{"instagram", "youtube"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Errors) != 2 {
		t.Fatalf("errors = %+v", resp.Errors)
	}
	if resp.Errors[0].Platform != types.Instagram || resp.Errors[1].Platform != types.YouTube {
		t.Errorf("errors out of request order: %+v", resp.Errors)
	}
}
