// Package enhance adapts a raw script to a platform's tone and length
// through a chat-completion language model.
package enhance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"reelcast/config"
	"reelcast/types"
)

const provider = "perplexity"

// Enhancer rewrites scripts via the Perplexity chat completions API.
type Enhancer struct {
	cfg        config.EnhancerConfig
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

// Option configures an Enhancer.
type Option func(*Enhancer)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Enhancer) { e.httpClient = c }
}

// New creates an Enhancer.
func New(cfg *config.Config, creds *config.Credentials, logger zerolog.Logger, opts ...Option) *Enhancer {
	e := &Enhancer{
		cfg:        cfg.Enhancer,
		apiKey:     creds.PerplexityAPIKey,
		httpClient: &http.Client{Timeout: cfg.Enhancer.Timeout},
		log:        logger.With().Str("stage", "enhance").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Enhance rewrites text for platform. It makes exactly one provider call.
func (e *Enhancer) Enhance(ctx context.Context, text string, platform types.PlatformID) (string, error) {
	prompt, ok := systemPrompts[platform]
	if !ok {
		return "", errors.Wrapf(types.ErrUnsupportedPlatform, "no enhancement template for %q", string(platform))
	}

	e.log.Info().Str("platform", string(platform)).Int("chars", len([]rune(text))).Msg("enhancing script")

	content, err := e.complete(ctx, chatRequest{
		Model: e.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: text},
		},
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		TopP:        e.cfg.TopP,
	})
	if err != nil {
		return "", errors.Wrapf(err, "enhance for %s", platform)
	}

	e.log.Info().Str("platform", string(platform)).Int("chars", len([]rune(content))).Msg("✅ script enhanced")
	return content, nil
}

// SuggestTopics asks the model for per-platform content angles on topic.
func (e *Enhancer) SuggestTopics(ctx context.Context, topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", &types.ValidationError{Reason: "topic is required"}
	}

	content, err := e.complete(ctx, chatRequest{
		Model:       e.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: fmt.Sprintf(suggestPrompt, topic)}},
		MaxTokens:   e.cfg.SuggestMaxTokens,
		Temperature: e.cfg.SuggestTemp,
	})
	if err != nil {
		return "", errors.Wrap(err, "suggest topics")
	}
	return content, nil
}

func (e *Enhancer) complete(ctx context.Context, body chatRequest) (string, error) {
	if e.apiKey == "" {
		return "", &types.ProviderError{Kind: types.ErrMissingCredential, Provider: provider, Message: "PERPLEXITY_API_KEY not set"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", errors.Wrap(err, "marshal request")
	}

	url := strings.TrimRight(e.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "reelcast/1.0")

	resp, err := e.httpClient.Do(req)
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
			Kind:       types.ErrEnhancementFailed,
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Message:    providerMessage(respBytes),
		}
	}

	var chat chatResponse
	if err := json.Unmarshal(respBytes, &chat); err != nil {
		return "", &types.ProviderError{Kind: types.ErrEnhancementFailed, Provider: provider, Message: "unparseable response: " + err.Error()}
	}
	if chat.Error != nil {
		return "", &types.ProviderError{Kind: types.ErrEnhancementFailed, Provider: provider, Message: chat.Error.Message}
	}
	if len(chat.Choices) == 0 {
		return "", &types.ProviderError{Kind: types.ErrEnhancementFailed, Provider: provider, Message: "no choices returned"}
	}

	return strings.TrimSpace(chat.Choices[0].Message.Content), nil
}

// providerMessage extracts error.message from an error body when present.
func providerMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return ""
}
