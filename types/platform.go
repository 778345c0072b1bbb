package types

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// PlatformID identifies a publishing destination.
type PlatformID string

const (
	Instagram PlatformID = "instagram"
	YouTube   PlatformID = "youtube"
)

// Platform is the fixed reference data for one destination.
type Platform struct {
	ID               PlatformID `json:"id"`
	Name             string     `json:"name"`
	MaxDuration      int        `json:"max_duration"`
	AspectRatio      string     `json:"aspect_ratio"`
	Style            string     `json:"-"`
	CaptionLimit     int        `json:"caption_limit,omitempty"`
	TitleLimit       int        `json:"title_limit,omitempty"`
	DescriptionLimit int        `json:"description_limit,omitempty"`
}

// VideoOptions are the generation parameters derived for a platform.
type VideoOptions struct {
	Duration    int        `json:"duration"`
	AspectRatio string     `json:"aspect_ratio"`
	Style       string     `json:"style"`
	Platform    PlatformID `json:"platform"`
}

var platforms = map[PlatformID]Platform{
	Instagram: {
		ID:           Instagram,
		Name:         "Instagram Reels",
		MaxDuration:  30,
		AspectRatio:  "9:16",
		Style:        "dynamic",
		CaptionLimit: 2200,
	},
	YouTube: {
		ID:               YouTube,
		Name:             "YouTube Shorts",
		MaxDuration:      60,
		AspectRatio:      "16:9",
		Style:            "professional",
		TitleLimit:       100,
		DescriptionLimit: 5000,
	},
}

// platformOrder keeps listings stable.
var platformOrder = []PlatformID{Instagram, YouTube}

// Lookup returns the reference data for id.
func Lookup(id PlatformID) (Platform, error) {
	p, ok := platforms[id]
	if !ok {
		return Platform{}, errors.Wrapf(ErrUnsupportedPlatform, "%q", string(id))
	}
	return p, nil
}

// Platforms returns every supported platform in a stable order.
func Platforms() []Platform {
	out := make([]Platform, 0, len(platformOrder))
	for _, id := range platformOrder {
		out = append(out, platforms[id])
	}
	return out
}

// SupportedIDs returns the supported platform ids as strings.
func SupportedIDs() []string {
	out := make([]string, 0, len(platformOrder))
	for _, id := range platformOrder {
		out = append(out, string(id))
	}
	return out
}

// ParsePlatformID normalizes s and checks it against the supported set.
func ParsePlatformID(s string) (PlatformID, error) {
	id := PlatformID(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := platforms[id]; !ok {
		return "", &ValidationError{Reason: fmt.Sprintf("unsupported platform %q (supported: %s)", s, strings.Join(SupportedIDs(), ", "))}
	}
	return id, nil
}

// Derive caps the requested duration to the platform ceiling and fixes the
// aspect ratio and style. A non-positive request means "as long as allowed".
func (p Platform) Derive(requested int) VideoOptions {
	duration := p.MaxDuration
	if requested > 0 && requested < duration {
		duration = requested
	}
	return VideoOptions{
		Duration:    duration,
		AspectRatio: p.AspectRatio,
		Style:       p.Style,
		Platform:    p.ID,
	}
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
