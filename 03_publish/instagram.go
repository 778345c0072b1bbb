package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
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

const instagramProvider = "instagram"

// Container status codes reported by the Graph API.
const (
	ContainerFinished   = "FINISHED"
	ContainerError      = "ERROR"
	ContainerInProgress = "IN_PROGRESS"
)

// Instagram publishes Reels through the Graph API container flow:
// create container, wait until it finishes processing, then commit.
type Instagram struct {
	platformInfo
	cfg         config.InstagramConfig
	accessToken string
	accountID   string
	httpClient  *http.Client
	sleep       poll.Sleeper
	now         func() time.Time
	log         zerolog.Logger
}

// InstagramOption configures an Instagram publisher.
type InstagramOption func(*Instagram)

// WithInstagramHTTPClient sets a custom HTTP client.
func WithInstagramHTTPClient(c *http.Client) InstagramOption {
	return func(i *Instagram) { i.httpClient = c }
}

// WithInstagramSleeper replaces the wait between container checks.
func WithInstagramSleeper(s poll.Sleeper) InstagramOption {
	return func(i *Instagram) { i.sleep = s }
}

// WithInstagramClock sets the clock used for outcome timestamps.
func WithInstagramClock(now func() time.Time) InstagramOption {
	return func(i *Instagram) { i.now = now }
}

// NewInstagram creates an Instagram publisher.
func NewInstagram(cfg *config.Config, creds *config.Credentials, logger zerolog.Logger, opts ...InstagramOption) *Instagram {
	i := &Instagram{
		platformInfo: mustPlatform(types.Instagram),
		cfg:          cfg.Instagram,
		accessToken:  creds.InstagramAccessToken,
		accountID:    creds.InstagramBusinessID,
		httpClient:   &http.Client{Timeout: cfg.Instagram.Timeout},
		sleep:        poll.Sleep,
		now:          time.Now,
		log:          logger.With().Str("stage", "instagram").Logger(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

type containerStatus struct {
	ID         string `json:"id"`
	StatusCode string `json:"status_code"`
	Status     string `json:"status"`
}

// Account is the business account the publisher posts as.
type Account struct {
	ID                string `json:"id"`
	AccountType       string `json:"account_type"`
	Username          string `json:"username"`
	Name              string `json:"name"`
	ProfilePictureURL string `json:"profile_picture_url"`
}

// Publish posts asset as a Reel captioned with script.
func (i *Instagram) Publish(ctx context.Context, asset *types.VideoAsset, script string) types.PublishOutcome {
	outcome, err := i.publish(ctx, asset, script)
	if err != nil {
		i.log.Error().Err(err).Msg("publish failed")
		return failure(types.Instagram, err, i.now())
	}
	return outcome
}

func (i *Instagram) publish(ctx context.Context, asset *types.VideoAsset, script string) (types.PublishOutcome, error) {
	if err := i.checkCredentials(); err != nil {
		return types.PublishOutcome{}, err
	}
	if asset == nil || asset.VideoURL == "" {
		return types.PublishOutcome{}, errors.New("instagram: no video url to publish")
	}

	containerID, err := i.createContainer(ctx, asset.VideoURL, types.Truncate(script, i.info.CaptionLimit))
	if err != nil {
		return types.PublishOutcome{}, err
	}
	log := i.log.With().Str("container_id", containerID).Logger()
	log.Info().Msg("media container created")

	if _, err := poll.Until(ctx,
		func(ctx context.Context) (*containerStatus, error) { return i.containerStatus(ctx, containerID) },
		func(s *containerStatus) bool { return s.StatusCode == ContainerFinished },
		func(s *containerStatus) (string, bool) { return containerFailure(s), s.StatusCode == ContainerError },
		poll.Options{
			Provider:    instagramProvider,
			Interval:    i.cfg.PollInterval,
			MaxAttempts: i.cfg.MaxAttempts,
			Sleep:       i.sleep,
		},
	); err != nil {
		return types.PublishOutcome{}, errors.Wrapf(err, "container %s processing", containerID)
	}

	mediaID, err := i.commit(ctx, containerID)
	if err != nil {
		return types.PublishOutcome{}, err
	}

	now := i.now().UTC()
	log.Info().Str("media_id", mediaID).Msg("✅ reel published")
	return types.PublishOutcome{
		Success:     true,
		Platform:    types.Instagram,
		MediaID:     mediaID,
		ContainerID: containerID,
		URL:         fmt.Sprintf("https://www.instagram.com/p/%s/", mediaID),
		PublishedAt: now.Format(time.RFC3339),
		Timestamp:   now,
	}, nil
}

func (i *Instagram) checkCredentials() error {
	if i.accessToken == "" || i.accountID == "" {
		return &types.ProviderError{
			Kind:     types.ErrMissingCredential,
			Provider: instagramProvider,
			Message:  "INSTAGRAM_ACCESS_TOKEN and IG_BUSINESS_ID must be set",
		}
	}
	return nil
}

func (i *Instagram) createContainer(ctx context.Context, videoURL, caption string) (string, error) {
	body := map[string]interface{}{
		"media_type":    "REELS",
		"video_url":     videoURL,
		"caption":       caption,
		"share_to_feed": true,
		"thumb_offset":  i.cfg.ThumbOffset,
		"access_token":  i.accessToken,
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := i.post(ctx, i.endpoint(i.accountID, "media"), body, types.ErrContainerCreateFailed, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", &types.ProviderError{Kind: types.ErrContainerCreateFailed, Provider: instagramProvider, Message: "response carried no container id"}
	}
	return created.ID, nil
}

func (i *Instagram) commit(ctx context.Context, containerID string) (string, error) {
	body := map[string]interface{}{
		"creation_id":  containerID,
		"access_token": i.accessToken,
	}

	var published struct {
		ID string `json:"id"`
	}
	if err := i.post(ctx, i.endpoint(i.accountID, "media_publish"), body, types.ErrPublishCommitFailed, &published); err != nil {
		return "", err
	}
	if published.ID == "" {
		return "", &types.ProviderError{Kind: types.ErrPublishCommitFailed, Provider: instagramProvider, Message: "response carried no media id"}
	}
	return published.ID, nil
}

func (i *Instagram) containerStatus(ctx context.Context, containerID string) (*containerStatus, error) {
	q := url.Values{}
	q.Set("fields", "status_code,status")
	q.Set("access_token", i.accessToken)

	var status containerStatus
	if err := i.get(ctx, i.endpoint(containerID)+"?"+q.Encode(), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// AccountInfo returns the configured business account.
func (i *Instagram) AccountInfo(ctx context.Context) (*Account, error) {
	if err := i.checkCredentials(); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("fields", "account_type,username,name,profile_picture_url")
	q.Set("access_token", i.accessToken)

	var account Account
	if err := i.get(ctx, i.endpoint(i.accountID)+"?"+q.Encode(), &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (i *Instagram) post(ctx context.Context, endpoint string, body interface{}, kind error, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	return i.do(req, kind, out)
}

func (i *Instagram) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	return i.do(req, types.ErrTransport, out)
}

// do sends req and decodes a 2xx body into out. Non-2xx responses become a
// ProviderError of kind carrying the Graph API error message.
func (i *Instagram) do(req *http.Request, kind error, out interface{}) error {
	resp, err := i.httpClient.Do(req)
	if err != nil {
		return types.Transport(instagramProvider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Transport(instagramProvider, errors.Wrap(err, "read response"))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &types.ProviderError{
			Kind:       kind,
			Provider:   instagramProvider,
			StatusCode: resp.StatusCode,
			Message:    graphErrorMessage(data),
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return types.Transport(instagramProvider, errors.Wrap(err, "parse response"))
	}
	return nil
}

func (i *Instagram) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for n, p := range parts {
		escaped[n] = url.PathEscape(p)
	}
	return strings.TrimRight(i.cfg.BaseURL, "/") + "/" + i.cfg.APIVersion + "/" + strings.Join(escaped, "/")
}

func containerFailure(s *containerStatus) string {
	if s.Status != "" {
		return s.Status
	}
	return "video processing failed"
}

func graphErrorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return "unknown error"
}
