package publish

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"reelcast/types"
)

// VideoSource opens a readable stream for a video URL or local path.
type VideoSource struct {
	httpClient *http.Client
}

// NewVideoSource creates a VideoSource whose downloads give up after timeout.
func NewVideoSource(timeout time.Duration) *VideoSource {
	return &VideoSource{httpClient: &http.Client{Timeout: timeout}}
}

// Open downloads location when it is an http(s) URL and opens it as a file
// otherwise. The caller must close the stream.
func (s *VideoSource) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if location == "" {
		return nil, errors.New("video location is empty")
	}

	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		f, err := os.Open(location) // #nosec G304 -- path comes from the generation stage
		if err != nil {
			return nil, errors.Wrap(err, "open video file")
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create download request")
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, types.Transport("video download", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &types.ProviderError{
			Kind:       types.ErrTransport,
			Provider:   "video download",
			StatusCode: resp.StatusCode,
		}
	}
	return resp.Body, nil
}
