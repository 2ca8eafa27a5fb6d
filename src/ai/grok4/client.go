package grok

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stake-plus/hermes/src/ai/core"
	"github.com/stake-plus/hermes/src/webclient"
)

const (
	providerKey             = "grok4"
	apiURL                  = "https://api.x.ai/v1/chat/completions"
	defaultModel            = "grok-4-fast-non-reasoning"
	defaultMaxTokens        = 500
	defaultTemperature      = 0.3
	defaultTopP             = 0.9
	defaultRequestTimeout   = 20 * time.Second
	defaultRetryBackoff     = time.Second
	minTopP                 = 0.01
	maxTopP                 = 1.0
	extraTopPKey            = "grok.top_p"
	extraRetryAttemptsKey   = "retry_attempts"
	completionsPathFragment = "/chat/completions"
)

func init() {
	core.RegisterProvider(providerKey, newClient, "grok")
}

type client struct {
	apiKey     string
	endpoint   string
	attempts   int
	httpClient *http.Client
	defaults   core.Options
	topP       float64
}

func newClient(cfg core.FactoryConfig) (core.Client, error) {
	if cfg.GrokKey == "" {
		return nil, fmt.Errorf("grok: API key not configured")
	}

	endpoint := apiURL
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		endpoint = base
		if !strings.HasSuffix(endpoint, completionsPathFragment) {
			endpoint += completionsPathFragment
		}
	}

	return &client{
		apiKey:     cfg.GrokKey,
		endpoint:   endpoint,
		attempts:   int(core.ExtraFloat(cfg.Extra, extraRetryAttemptsKey, 1)),
		httpClient: webclient.NewDefault(defaultRequestTimeout),
		defaults: core.Options{
			Model:               valueOrDefault(cfg.Model, defaultModel),
			Temperature:         orFloat(cfg.Temperature, defaultTemperature),
			MaxCompletionTokens: orInt(cfg.MaxCompletionTokens, defaultMaxTokens),
			SystemPrompt:        cfg.SystemPrompt,
		},
		topP: core.ClampFloat(core.ExtraFloat(cfg.Extra, extraTopPKey, defaultTopP), minTopP, maxTopP),
	}, nil
}

func (c *client) Respond(ctx context.Context, input string, opts core.Options) (string, error) {
	merged := c.merge(opts)
	return c.send(ctx, c.buildRequest(merged, input))
}

func (c *client) buildRequest(opts core.Options, userPrompt string) map[string]interface{} {
	messages := []map[string]string{}
	if strings.TrimSpace(opts.SystemPrompt) != "" {
		messages = append(messages, map[string]string{
			"role":    "system",
			"content": opts.SystemPrompt,
		})
	}
	messages = append(messages, map[string]string{
		"role":    "user",
		"content": userPrompt,
	})

	body := map[string]interface{}{
		"model":       opts.Model,
		"messages":    messages,
		"temperature": opts.Temperature,
		"max_tokens":  maxTokens(opts.MaxCompletionTokens),
		"stream":      false,
		"n":           1,
		"top_p":       c.topP,
	}
	if opts.JSONMode {
		body["response_format"] = map[string]string{"type": "json_object"}
	}
	return body
}

func (c *client) send(ctx context.Context, payload map[string]interface{}) (string, error) {
	bodyBytes, _ := json.Marshal(payload)
	_, body, err := webclient.DoWithRetry(ctx, c.attempts, defaultRetryBackoff, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(bodyBytes))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, b, fmt.Errorf("status %d: %s", resp.StatusCode, truncateErrorBody(b))
		}
		return resp.StatusCode, b, nil
	})
	if err != nil {
		return "", fmt.Errorf("grok API error: %w", err)
	}

	var result completionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}
	text := result.FirstMessage()
	if text == "" {
		return "", fmt.Errorf("grok: empty response")
	}
	return text, nil
}

func (c *client) merge(opts core.Options) core.Options {
	out := c.defaults
	if strings.TrimSpace(opts.Model) != "" {
		out.Model = opts.Model
	}
	if opts.Temperature != 0 {
		out.Temperature = opts.Temperature
	}
	if opts.MaxCompletionTokens != 0 {
		out.MaxCompletionTokens = opts.MaxCompletionTokens
	}
	if strings.TrimSpace(opts.SystemPrompt) != "" {
		out.SystemPrompt = opts.SystemPrompt
	}
	out.JSONMode = opts.JSONMode
	return out
}

func maxTokens(requested int) int {
	if requested <= 0 {
		return defaultMaxTokens
	}
	return requested
}

func truncateErrorBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "no response body"
	}
	const limit = 300
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (r completionResponse) FirstMessage() string {
	for _, choice := range r.Choices {
		content := strings.TrimSpace(choice.Message.Content)
		if content != "" {
			return content
		}
	}
	return ""
}

func valueOrDefault(val, def string) string {
	if strings.TrimSpace(val) != "" {
		return val
	}
	return def
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orFloat(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}
