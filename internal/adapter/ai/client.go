package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"log/slog"

	"github.com/fairyhunter13/intake-qa-agent/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/intake-qa-agent/internal/adapter/observability"
	"github.com/fairyhunter13/intake-qa-agent/internal/config"
	"github.com/fairyhunter13/intake-qa-agent/internal/domain"
)

// Client implements domain.DecisionClient against an OpenAI-compatible
// chat-completions endpoint. Temperature is pinned to 0 so repeated
// deliveries outside the dedup window still tend toward the same verdict.
type Client struct {
	cfg          config.Config
	hc           *http.Client
	systemPrompt string
	counter      *tokencount.Counter
}

// New constructs a decision client. A non-empty policy prompt overrides the
// built-in instruction text.
func New(cfg config.Config, pol config.Policy) *Client {
	prompt := defaultSystemPrompt
	if pol.SystemPrompt != "" {
		prompt = pol.SystemPrompt
	}
	return &Client{
		cfg: cfg,
		hc: &http.Client{
			Timeout:   cfg.CompletionTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		systemPrompt: prompt,
		counter:      tokencount.NewCounter(),
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Decide sends the rendered context report and returns the cleaned reply
// body. HTTP 429 and 5xx are retried with exponential backoff; 4xx is
// permanent. Exactly one logical decision is produced per call.
func (c *Client) Decide(ctx domain.Context, contextReport string) (string, error) {
	if c.cfg.CompletionAPIKey == "" {
		return "", fmt.Errorf("%w: COMPLETION_API_KEY missing", domain.ErrInvalidArgument)
	}

	promptTokens := c.counter.Count(c.cfg.CompletionModel, c.systemPrompt+contextReport)
	observability.DecisionPromptTokens.Observe(float64(promptTokens))

	body := map[string]any{
		"model":       c.cfg.CompletionModel,
		"temperature": 0,
		"max_tokens":  c.cfg.DecisionMaxTokens,
		"messages": []map[string]string{
			{"role": "system", "content": c.systemPrompt},
			{"role": "user", "content": contextReport},
		},
	}
	b, _ := json.Marshal(body)

	var out chatResponse
	op := func() error {
		start := time.Now()
		// Recreate the request each attempt so the body is never reused.
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.CompletionBaseURL+"/chat/completions", bytes.NewReader(b))
		if err != nil {
			return backoff.Permanent(err)
		}
		r.Header.Set("Authorization", "Bearer "+c.cfg.CompletionAPIKey)
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.hc.Do(r)
		observability.DecisionRequestDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			slog.Warn("decision service rate limited", slog.Int("status", resp.StatusCode))
			return fmt.Errorf("rate limited: 429")
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			slog.Warn("decision service 4xx", slog.Int("status", resp.StatusCode), slog.String("body", snippet(respBody)))
			return backoff.Permanent(fmt.Errorf("%w: chat status %d", domain.ErrUpstreamFailure, resp.StatusCode))
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			slog.Error("decision service non-2xx", slog.Int("status", resp.StatusCode), slog.String("body", snippet(respBody)))
			return fmt.Errorf("%w: chat status %d", domain.ErrUpstreamFailure, resp.StatusCode)
		}
		if err := json.Unmarshal(respBody, &out); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: decode reply: %v", domain.ErrSchemaInvalid, err))
		}
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.MaxElapsedTime, expo.InitialInterval, expo.MaxInterval, expo.Multiplier = c.cfg.GetBackoffConfig()
	if err := backoff.Retry(op, backoff.WithContext(expo, ctx)); err != nil {
		observability.DecisionRequestsTotal.WithLabelValues("error").Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: decision call: %v", domain.ErrUpstreamTimeout, err)
		}
		return "", fmt.Errorf("decision call: %w", err)
	}
	if len(out.Choices) == 0 {
		observability.DecisionRequestsTotal.WithLabelValues("empty").Inc()
		return "", fmt.Errorf("%w: empty choices from decision service", domain.ErrSchemaInvalid)
	}

	observability.DecisionRequestsTotal.WithLabelValues("ok").Inc()
	return CleanJSONResponse(out.Choices[0].Message.Content), nil
}

func snippet(b []byte) string {
	const n = 512
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
