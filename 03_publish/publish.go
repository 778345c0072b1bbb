// Package publish delivers finished videos to each platform's native API.
//
// Every Publisher converts its internal failures into a PublishOutcome with
// Success set to false; Publish never returns an error.
package publish

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"reelcast/types"
)

// Publisher is one platform's publish flow.
type Publisher interface {
	// Platform returns the platform this publisher serves.
	Platform() types.PlatformID

	// DeriveOptions returns the generation parameters for this platform.
	DeriveOptions(requestedDuration int) types.VideoOptions

	// Publish posts asset with script as its caption or description.
	Publish(ctx context.Context, asset *types.VideoAsset, script string) types.PublishOutcome
}

// Registry resolves publishers by platform.
type Registry struct {
	byID map[types.PlatformID]Publisher
}

// NewRegistry indexes pubs by platform. A later publisher for the same
// platform replaces an earlier one.
func NewRegistry(pubs ...Publisher) *Registry {
	r := &Registry{byID: make(map[types.PlatformID]Publisher, len(pubs))}
	for _, p := range pubs {
		r.byID[p.Platform()] = p
	}
	return r
}

// Get returns the publisher for id.
func (r *Registry) Get(id types.PlatformID) (Publisher, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, errors.Wrapf(types.ErrUnsupportedPlatform, "no publisher for %q", string(id))
	}
	return p, nil
}

// platformInfo supplies DeriveOptions from reference data.
type platformInfo struct {
	info types.Platform
}

func mustPlatform(id types.PlatformID) platformInfo {
	p, err := types.Lookup(id)
	if err != nil {
		panic(err)
	}
	return platformInfo{info: p}
}

func (p platformInfo) Platform() types.PlatformID { return p.info.ID }

func (p platformInfo) DeriveOptions(requested int) types.VideoOptions {
	return p.info.Derive(requested)
}

func failure(platform types.PlatformID, err error, now time.Time) types.PublishOutcome {
	return types.PublishOutcome{
		Success:   false,
		Platform:  platform,
		Error:     err.Error(),
		Timestamp: now.UTC(),
	}
}
