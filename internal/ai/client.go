// Package ai wraps Gemini text generation behind a client that retries
// transient failures and fails over across an ordered list of models.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/Gargee-Buva/Finora/internal/retry"
)

// DefaultModels is the candidate order used when none is configured.
var DefaultModels = []string{"gemini-2.5-flash", "gemini-2.5-pro"}

// ErrNoModels is returned when a client has no candidate models.
var ErrNoModels = errors.New("no candidate models configured")

// BlobGenerator generates text from a prompt plus one inline file.
type BlobGenerator interface {
	GenerateWithBlob(ctx context.Context, prompt, mimeType string, data []byte) (string, error)
}

// Caller performs one generation request against one model.
type Caller func(ctx context.Context, model string, contents []*genai.Content) (string, error)

// Config configures New.
type Config struct {
	APIKey string
	Models []string
	Retry  retry.Policy
}

// Client generates text with Gemini.
type Client struct {
	models []string
	policy retry.Policy
	call   Caller
	log    zerolog.Logger
}

// New creates a Gemini-backed client.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("New: create genai client: %w", err)
	}
	return NewWithCaller(modelsCaller(gc), cfg.Models, cfg.Retry, log), nil
}

// NewWithCaller builds a client around an arbitrary caller.
func NewWithCaller(call Caller, models []string, policy retry.Policy, log zerolog.Logger) *Client {
	if len(models) == 0 {
		models = DefaultModels
	}
	normalized := make([]string, 0, len(models))
	for _, m := range models {
		if m = strings.TrimPrefix(strings.TrimSpace(m), "models/"); m != "" {
			normalized = append(normalized, m)
		}
	}
	return &Client{models: normalized, policy: policy, call: call, log: log}
}

// Models returns the candidate models in order.
func (c *Client) Models() []string {
	return append([]string(nil), c.models...)
}

func modelsCaller(gc *genai.Client) Caller {
	return func(ctx context.Context, model string, contents []*genai.Content) (string, error) {
		resp, err := gc.Models.GenerateContent(ctx, model, contents, nil)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
}

// Generate sends a text-only prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	return c.generate(ctx, contents)
}

// GenerateWithBlob sends the prompt followed by data as inline content.
func (c *Client) GenerateWithBlob(ctx context.Context, prompt, mimeType string, data []byte) (string, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     data,
					},
				},
			},
		},
	}
	return c.generate(ctx, contents)
}

func (c *Client) generate(ctx context.Context, contents []*genai.Content) (string, error) {
	if len(c.models) == 0 {
		return "", ErrNoModels
	}

	var lastErr error
	for _, model := range c.models {
		log := c.log.With().Str("model", model).Logger()
		text, err := retry.Do(ctx, c.policy, Classify, log, func(ctx context.Context) (string, error) {
			return c.call(ctx, model, contents)
		})
		if err == nil {
			log.Debug().Int("chars", len(text)).Msg("Model succeeded")
			return text, nil
		}

		lastErr = err
		if !errors.Is(err, retry.ErrExhausted) || ctx.Err() != nil {
			return "", fmt.Errorf("generate: model %s: %w", model, err)
		}
		log.Warn().Err(err).Msg("Model unavailable, trying next candidate")
	}
	return "", fmt.Errorf("generate: all models failed: %w", lastErr)
}

// Classify marks rate limits and server errors as transient and extracts the
// server's RetryInfo delay when present.
func Classify(err error) (bool, time.Duration) {
	apiErr, ok := asAPIError(err)
	if !ok {
		return false, 0
	}
	switch apiErr.Code {
	case 429, 500, 502, 503, 504:
		return true, retryDelay(apiErr.Details)
	}
	return false, 0
}

func asAPIError(err error) (genai.APIError, bool) {
	var value genai.APIError
	if errors.As(err, &value) {
		return value, true
	}
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return genai.APIError{}, false
}

func retryDelay(details []map[string]any) time.Duration {
	for _, d := range details {
		typ, _ := d["@type"].(string)
		if !strings.HasSuffix(typ, "google.rpc.RetryInfo") {
			continue
		}
		raw, _ := d["retryDelay"].(string)
		if delay, err := time.ParseDuration(raw); err == nil && delay > 0 {
			return delay
		}
	}
	return 0
}
