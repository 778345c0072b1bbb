package types

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// PublishRequest is one end-user request to publish a script.
type PublishRequest struct {
	Content   string   `json:"content"`
	Platforms []string `json:"platforms"`
	Enhance   *bool    `json:"enhance,omitempty"`
	Duration  int      `json:"duration,omitempty"`
}

// ShouldEnhance defaults to true when the field is absent.
func (r PublishRequest) ShouldEnhance() bool {
	return r.Enhance == nil || *r.Enhance
}

// Validate checks the request and returns its platforms in request order
// with duplicates removed.
func (r PublishRequest) Validate() ([]PlatformID, error) {
	if strings.TrimSpace(r.Content) == "" {
		return nil, &ValidationError{Reason: "content is required"}
	}
	if len(r.Platforms) == 0 {
		return nil, &ValidationError{Reason: "at least one platform is required"}
	}
	if r.Duration < 0 {
		return nil, &ValidationError{Reason: "duration must not be negative"}
	}

	seen := make(map[PlatformID]bool, len(r.Platforms))
	ids := make([]PlatformID, 0, len(r.Platforms))
	for _, raw := range r.Platforms {
		id, err := ParsePlatformID(raw)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// AssetStatus is the lifecycle state of a generated video.
type AssetStatus string

const (
	AssetPending   AssetStatus = "pending"
	AssetCompleted AssetStatus = "completed"
	AssetFailed    AssetStatus = "failed"
)

// VideoAsset is a video produced by the generation provider.
type VideoAsset struct {
	ID           string      `json:"id"`
	Status       AssetStatus `json:"status"`
	VideoURL     string      `json:"video_url"`
	ThumbnailURL string      `json:"thumbnail_url,omitempty"`
	Duration     float64     `json:"duration"`
	Platform     PlatformID  `json:"platform"`
	AspectRatio  string      `json:"aspect_ratio"`
	CreatedAt    time.Time   `json:"created_at"`
}

// PublishOutcome is the terminal result of publishing one asset.
type PublishOutcome struct {
	Success      bool       `json:"success"`
	Platform     PlatformID `json:"platform"`
	MediaID      string     `json:"media_id,omitempty"`
	ContainerID  string     `json:"container_id,omitempty"`
	VideoID      string     `json:"video_id,omitempty"`
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty"`
	URL          string     `json:"url,omitempty"`
	ThumbnailURL string     `json:"thumbnail_url,omitempty"`
	PublishedAt  string     `json:"published_at,omitempty"`
	Error        string     `json:"error,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}

// Stage is a step of the per-platform pipeline.
type Stage string

const (
	StagePending    Stage = "pending"
	StageEnhancing  Stage = "enhancing"
	StageGenerating Stage = "generating"
	StagePublishing Stage = "publishing"
	StageDone       Stage = "done"
	// StageFailed is the terminal state of a platform that recorded a
	// PlatformError. The error itself carries the stage that failed.
	StageFailed Stage = "failed"
)

// PlatformResult is recorded for a platform whose stages all returned.
type PlatformResult struct {
	EnhancedContent string         `json:"enhanced_content"`
	Video           *VideoAsset    `json:"video"`
	Publish         PublishOutcome `json:"publish"`
	Stage           Stage          `json:"stage"`
	ProcessingTime  int64          `json:"processing_time"`
}

// PlatformError is recorded instead of a result when a stage fails.
type PlatformError struct {
	Platform  PlatformID `json:"platform"`
	Error     string     `json:"error"`
	Stage     Stage      `json:"stage"`
	Timestamp time.Time  `json:"timestamp"`
}

// Results maps platforms to results and keeps insertion order.
type Results struct {
	order []PlatformID
	byID  map[PlatformID]PlatformResult
}

// Set records r for id. A repeated id keeps its first position.
func (rs *Results) Set(id PlatformID, r PlatformResult) {
	if rs.byID == nil {
		rs.byID = make(map[PlatformID]PlatformResult)
	}
	if _, ok := rs.byID[id]; !ok {
		rs.order = append(rs.order, id)
	}
	rs.byID[id] = r
}

// Get returns the result for id.
func (rs Results) Get(id PlatformID) (PlatformResult, bool) {
	r, ok := rs.byID[id]
	return r, ok
}

// Platforms returns the recorded platforms in insertion order.
func (rs Results) Platforms() []PlatformID {
	return append([]PlatformID(nil), rs.order...)
}

// Len returns the number of recorded results.
func (rs Results) Len() int { return len(rs.order) }

// MarshalJSON encodes the results as an object in insertion order.
func (rs Results) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range rs.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(id))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(rs.byID[id])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object of results, preserving key order.
func (rs *Results) UnmarshalJSON(data []byte) error {
	*rs = Results{}
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var r PlatformResult
		if err := dec.Decode(&r); err != nil {
			return err
		}
		rs.Set(PlatformID(key), r)
	}
	_, err := dec.Token()
	return err
}

// AggregateResponse is the answer to one PublishRequest.
type AggregateResponse struct {
	Success        bool            `json:"success"`
	Results        Results         `json:"results"`
	Errors         []PlatformError `json:"errors,omitempty"`
	ProcessingTime string          `json:"processing_time"`
	ProcessedAt    time.Time       `json:"processed_at"`
}
