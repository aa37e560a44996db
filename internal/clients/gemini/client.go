package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"

	"github.com/yungbote/negotiator-backend/internal/pkg/httpx"
	"github.com/yungbote/negotiator-backend/internal/platform/logger"
)

const (
	defaultModel = "gemini-1.5-flash"
	maxRetries   = 3
	baseDelay    = time.Second
)

type Config struct {
	APIKey string
	Model  string
}

type Client struct {
	log    *logger.Logger
	client *genai.Client
	model  string
}

func NewClient(ctx context.Context, log *logger.Logger, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	c, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	return &Client{log: log.With("client", "GeminiClient"), client: c, model: model}, nil
}

func (c *Client) Name() string { return "gemini:" + c.model }

func (c *Client) Close() error { return c.client.Close() }

// GenerateText retries empty or failed generations with exponential backoff.
func (c *Client) GenerateText(ctx context.Context, system string, user string) (string, error) {
	ctx, span := otel.Tracer("clients/gemini").Start(ctx, "GenerateText")
	defer span.End()
	span.SetAttributes(attribute.Int("prompt.length", len(user)), attribute.String("model", c.model))

	m := c.client.GenerativeModel(c.model)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	m.SetTemperature(0.4)
	m.SetMaxOutputTokens(4000)

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		resp, err := m.GenerateContent(ctx, genai.Text(user))
		if err == nil {
			if text := responseText(resp); strings.TrimSpace(text) != "" {
				return text, nil
			}
			err = fmt.Errorf("empty gemini response")
		}
		lastErr = err
		span.RecordError(err)
		if attempt == maxRetries {
			break
		}
		delay := httpx.ExponentialBackoff(attempt, baseDelay, 10*time.Second)
		c.log.Warn("Gemini generation retrying", "attempt", attempt, "sleep", delay.String(), "error", err.Error())
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", lastErr
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		break
	}
	return b.String()
}
