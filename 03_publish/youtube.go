package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"reelcast/config"
	"reelcast/types"
)

const youtubeProvider = "youtube"

type tokenSourceKey struct{}

// WithTokenSource attaches a caller-supplied YouTube credential to ctx. It
// takes precedence over the process-wide refresh token.
func WithTokenSource(ctx context.Context, ts oauth2.TokenSource) context.Context {
	return context.WithValue(ctx, tokenSourceKey{}, ts)
}

// TokenSourceFrom returns the credential attached by WithTokenSource.
func TokenSourceFrom(ctx context.Context) (oauth2.TokenSource, bool) {
	ts, ok := ctx.Value(tokenSourceKey{}).(oauth2.TokenSource)
	return ts, ok && ts != nil
}

// YouTube uploads Shorts through the Data API v3.
type YouTube struct {
	platformInfo
	cfg         config.YouTubeConfig
	tokenSource oauth2.TokenSource
	source      *VideoSource
	now         func() time.Time
	log         zerolog.Logger
}

// YouTubeOption configures a YouTube publisher.
type YouTubeOption func(*YouTube)

// WithVideoSource replaces how videos are opened for upload.
func WithVideoSource(s *VideoSource) YouTubeOption {
	return func(y *YouTube) { y.source = s }
}

// WithYouTubeClock sets the clock used for outcome timestamps.
func WithYouTubeClock(now func() time.Time) YouTubeOption {
	return func(y *YouTube) { y.now = now }
}

// NewYouTube creates a YouTube publisher. When creds carry a refresh token,
// it becomes the fallback credential for requests that bring none.
func NewYouTube(cfg *config.Config, creds *config.Credentials, logger zerolog.Logger, opts ...YouTubeOption) *YouTube {
	y := &YouTube{
		platformInfo: mustPlatform(types.YouTube),
		cfg:          cfg.YouTube,
		source:       NewVideoSource(cfg.YouTube.DownloadTimeout),
		now:          time.Now,
		log:          logger.With().Str("stage", "youtube").Logger(),
	}
	if creds.HasYouTubeRefresh() {
		conf := &oauth2.Config{
			ClientID:     creds.GoogleClientID,
			ClientSecret: creds.GoogleClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{youtube.YoutubeUploadScope, youtube.YoutubeScope},
		}
		y.tokenSource = conf.TokenSource(context.Background(), &oauth2.Token{
			RefreshToken: creds.GoogleRefreshToken,
			Expiry:       time.Now().Add(-time.Hour),
		})
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// Publish uploads asset with a title and description taken from script.
func (y *YouTube) Publish(ctx context.Context, asset *types.VideoAsset, script string) types.PublishOutcome {
	outcome, err := y.publish(ctx, asset, script)
	if err != nil {
		y.log.Error().Err(err).Msg("upload failed")
		return failure(types.YouTube, err, y.now())
	}
	return outcome
}

func (y *YouTube) publish(ctx context.Context, asset *types.VideoAsset, script string) (types.PublishOutcome, error) {
	ts, ok := TokenSourceFrom(ctx)
	if !ok {
		ts = y.tokenSource
	}
	if ts == nil {
		return types.PublishOutcome{}, &types.ProviderError{
			Kind:     types.ErrMissingCredential,
			Provider: youtubeProvider,
			Message:  "no OAuth2 credential supplied for upload",
		}
	}
	if asset == nil || asset.VideoURL == "" {
		return types.PublishOutcome{}, errors.New("youtube: no video to upload")
	}

	svc, err := y.service(ctx, ts)
	if err != nil {
		return types.PublishOutcome{}, err
	}

	description := types.Truncate(script, y.info.DescriptionLimit)
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:           Title(script, y.info.TitleLimit),
			Description:     description,
			CategoryId:      y.cfg.CategoryID,
			DefaultLanguage: y.cfg.DefaultLanguage,
			Tags:            Tags(script, y.cfg.BaseTags, y.cfg.MaxTags),
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           y.cfg.PrivacyStatus,
			SelfDeclaredMadeForKids: y.cfg.MadeForKids,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}

	body, err := y.source.Open(ctx, asset.VideoURL)
	if err != nil {
		return types.PublishOutcome{}, errors.Wrap(err, "fetch video for upload")
	}
	defer func() { _ = body.Close() }()

	y.log.Info().Str("title", video.Snippet.Title).Strs("tags", video.Snippet.Tags).Msg("uploading")

	uploaded, err := svc.Videos.Insert([]string{"snippet", "status"}, video).Media(body).Context(ctx).Do()
	if err != nil {
		return types.PublishOutcome{}, types.Transport(youtubeProvider, errors.Wrap(err, "videos.insert"))
	}

	outcome := types.PublishOutcome{
		Success:   true,
		Platform:  types.YouTube,
		VideoID:   uploaded.Id,
		URL:       fmt.Sprintf("https://www.youtube.com/watch?v=%s", uploaded.Id),
		Timestamp: y.now().UTC(),
	}
	if s := uploaded.Snippet; s != nil {
		outcome.Title = s.Title
		outcome.Description = s.Description
		outcome.PublishedAt = s.PublishedAt
		if s.Thumbnails != nil && s.Thumbnails.Default != nil {
			outcome.ThumbnailURL = s.Thumbnails.Default.Url
		}
	}

	y.log.Info().Str("video_id", uploaded.Id).Str("url", outcome.URL).Msg("✅ short uploaded")
	return outcome, nil
}

func (y *YouTube) service(ctx context.Context, ts oauth2.TokenSource) (*youtube.Service, error) {
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if y.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(y.cfg.Endpoint))
	}
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "youtube service")
	}
	return svc, nil
}
