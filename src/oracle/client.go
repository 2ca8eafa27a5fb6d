package oracle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/stake-plus/hermes/src/ai/core"
	"github.com/stake-plus/hermes/src/config"
	"github.com/stake-plus/hermes/src/data"
	"github.com/stake-plus/hermes/src/logging"
	"github.com/stake-plus/hermes/src/types"
	"golang.org/x/time/rate"
)

const (
	DefaultClassifyTimeout = 15 * time.Second
	SimilarityTimeout      = 15 * time.Second
	TemplateTimeout        = 10 * time.Second
	ModerationTimeout      = 10 * time.Second

	verdictTTL    = 24 * time.Hour
	verdictPrefix = "hermes:verdict:"
)

// FallbackExplanation is the explanation carried by the safe default verdict.
const FallbackExplanation = "Unable to analyze due to API errors. Please try again later."

// ErrNotConfigured is returned by Complete when no provider could be built.
var ErrNotConfigured = errors.New("oracle: no provider configured")

// SafeDefault is the verdict returned when every provider fails.
func SafeDefault() types.Verdict {
	return types.Verdict{
		IsMisinformation: false,
		Confidence:       0,
		Category:         types.CategoryGeneral,
		Explanation:      FallbackExplanation,
	}
}

type tier struct {
	name   string
	client core.Client
}

// Client fronts the configured model providers. Providers are tried in order
// (primary, then secondary) for every call.
type Client struct {
	tiers           []tier
	classifyTimeout time.Duration
	limiter         *rate.Limiter
	cache           *data.Cache
	log             *logging.Logger
}

type Option func(*Client)

// WithCache enables the Redis verdict cache.
func WithCache(c *data.Cache) Option { return func(o *Client) { o.cache = c } }

func WithLogger(l *logging.Logger) Option { return func(o *Client) { o.log = logging.OrNop(l) } }

// WithLimiter replaces the outbound pacing limiter.
func WithLimiter(l *rate.Limiter) Option { return func(o *Client) { o.limiter = l } }

// WithClassifyTimeout bounds each classify attempt.
func WithClassifyTimeout(d time.Duration) Option {
	return func(o *Client) {
		if d > 0 {
			o.classifyTimeout = d
		}
	}
}

// New builds providers from the registry. A provider that cannot be built
// (unknown name, missing key) is skipped; with none left the client still
// works and answers with fail-open moderation and the safe default verdict.
func New(cfg config.AI, opts ...Option) *Client {
	c := newClient(nil, opts...)
	if cfg.Timeout > 0 {
		c.classifyTimeout = cfg.Timeout
	}
	for i, name := range []string{cfg.Primary, cfg.Secondary} {
		if strings.TrimSpace(name) == "" {
			continue
		}
		fc := core.FactoryConfig{
			Provider:  name,
			GeminiKey: cfg.GeminiKey,
			GrokKey:   cfg.GrokKey,
		}
		if i == 0 {
			fc.Model = cfg.Model
		}
		client, err := core.NewClient(fc)
		if err != nil {
			c.log.Warn("oracle provider unavailable", "provider", name, "err", err)
			continue
		}
		c.tiers = append(c.tiers, tier{name: name, client: client})
	}
	return c
}

// NewWithClients wires pre-built providers; nil entries are skipped.
func NewWithClients(primary, secondary core.Client, opts ...Option) *Client {
	var tiers []tier
	if primary != nil {
		tiers = append(tiers, tier{name: "primary", client: primary})
	}
	if secondary != nil {
		tiers = append(tiers, tier{name: "secondary", client: secondary})
	}
	return newClient(tiers, opts...)
}

func newClient(tiers []tier, opts ...Option) *Client {
	c := &Client{
		tiers:           tiers,
		classifyTimeout: DefaultClassifyTimeout,
		limiter:         rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		log:             logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether at least one provider is available.
func (c *Client) Configured() bool { return c != nil && len(c.tiers) > 0 }

// Providers lists the provider names in fallback order.
func (c *Client) Providers() []string {
	out := make([]string, 0, len(c.tiers))
	for _, t := range c.tiers {
		out = append(out, t.name)
	}
	return out
}

// Complete sends prompt to each provider in turn and returns the first
// non-empty reply.
func (c *Client) Complete(ctx context.Context, prompt string, opts core.Options, timeout time.Duration) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	var lastErr error
	for _, t := range c.tiers {
		reply, err := c.ask(ctx, t, prompt, opts, timeout)
		if err == nil {
			return reply, nil
		}
		c.log.Warn("oracle call failed", "provider", t.name, "reason", logging.Reason(err), "err", err)
		lastErr = err
	}
	return "", lastErr
}

func (c *Client) ask(ctx context.Context, t tier, prompt string, opts core.Options, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	reply, err := t.client.Respond(ctx, prompt, opts)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("%s: empty reply", t.name)
	}
	return reply, nil
}

// Moderate decides whether text is fact-checkable content. It fails open:
// without a usable reply the text is accepted as unknown content.
func (c *Client) Moderate(ctx context.Context, text string) types.ContentDecision {
	open := types.ContentDecision{IsValid: true, ContentType: types.ContentUnknown}
	if !c.Configured() {
		return open
	}
	reply, err := c.Complete(ctx, moderatePrompt(text), core.Options{
		SystemPrompt:        moderateSystemPrompt,
		Temperature:         0.1,
		MaxCompletionTokens: 150,
		JSONMode:            true,
	}, ModerationTimeout)
	if err != nil {
		return open
	}
	var raw rawModeration
	if err := ExtractJSON(reply, &raw); err != nil {
		c.log.Warn("moderation reply unreadable", "err", err)
		return open
	}
	return raw.decision()
}

// Classify asks each provider in turn for a verdict and falls back to
// SafeDefault. It never fails.
func (c *Client) Classify(ctx context.Context, text string) types.Verdict {
	key := verdictKey(text)
	var cached types.Verdict
	if c.cache.GetJSON(ctx, key, &cached) {
		return cached
	}

	opts := core.Options{
		SystemPrompt:        classifySystemPrompt,
		Temperature:         0.3,
		MaxCompletionTokens: 500,
		JSONMode:            true,
	}
	for _, t := range c.tiers {
		reply, err := c.ask(ctx, t, classifyPrompt(text), opts, c.classifyTimeout)
		if err != nil {
			c.log.Warn("classify failed", "provider", t.name, "reason", logging.Reason(err), "err", err)
			continue
		}
		var raw rawVerdict
		if err := ExtractJSON(reply, &raw); err != nil {
			c.log.Warn("classify reply unreadable", "provider", t.name, "err", err)
			continue
		}
		v := raw.normalize()
		v.Provider = t.name
		if err := c.cache.SetJSON(ctx, key, v, verdictTTL); err != nil {
			c.log.Debug("verdict cache write failed", "err", err)
		}
		return v
	}
	c.log.Warn("all oracle providers failed, returning safe default", "providers", len(c.tiers))
	return SafeDefault()
}

func verdictKey(text string) string {
	h := xxhash.NewS64(0)
	_, _ = h.Write([]byte(strings.ToLower(strings.Join(strings.Fields(text), " "))))
	return verdictPrefix + strconv.FormatUint(h.Sum64(), 16)
}
