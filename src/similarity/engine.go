// Package similarity asks the oracle which stored reports carry the same
// claim as a new submission.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/stake-plus/hermes/src/ai/core"
	"github.com/stake-plus/hermes/src/data"
	"github.com/stake-plus/hermes/src/logging"
	"github.com/stake-plus/hermes/src/oracle"
	"github.com/stake-plus/hermes/src/types"
)

// Window is how many of the most recent reports are compared.
const Window = 100

// ErrUnavailable means similarity cannot run: no oracle provider or no
// database. Callers treat it as "no matches".
var ErrUnavailable = errors.New("similarity: unavailable")

// Oracle is the slice of oracle.Client the engine needs.
type Oracle interface {
	Configured() bool
	Complete(ctx context.Context, prompt string, opts core.Options, timeout time.Duration) (string, error)
}

// Store is the slice of data.ReportStore the engine needs.
type Store interface {
	Recent(ctx context.Context, limit int) ([]types.Report, error)
}

type Engine struct {
	oracle Oracle
	store  Store
	log    *logging.Logger
}

func New(o Oracle, s Store, log *logging.Logger) *Engine {
	return &Engine{oracle: o, store: s, log: logging.OrNop(log)}
}

// FindSimilar returns the recent reports the oracle judges to make the same
// claim as text, in the oracle's order. excludeID (usually the report just
// stored for text) is left out of the comparison window. No matches yields
// (nil, nil).
func (e *Engine) FindSimilar(ctx context.Context, text, excludeID string) ([]types.Report, error) {
	if e.oracle == nil || !e.oracle.Configured() {
		return nil, ErrUnavailable
	}
	recent, err := e.store.Recent(ctx, Window+1)
	if err != nil {
		if errors.Is(err, data.ErrNoDatabase) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("similarity: load recent: %w", err)
	}
	candidates := window(recent, excludeID)
	if len(candidates) == 0 {
		return nil, nil
	}

	texts := make([]string, len(candidates))
	for i, r := range candidates {
		texts[i] = r.Text
	}
	reply, err := e.oracle.Complete(ctx, oracle.SimilarityPrompt(text, texts), core.Options{
		Temperature:         0.1,
		MaxCompletionTokens: 100,
		JSONMode:            true,
	}, oracle.SimilarityTimeout)
	if err != nil {
		return nil, fmt.Errorf("similarity: oracle: %w", err)
	}

	var parsed struct {
		Similar []interface{} `json:"similar"`
	}
	if err := oracle.ExtractJSON(reply, &parsed); err != nil {
		return nil, fmt.Errorf("similarity: %w", err)
	}

	var matches []types.Report
	seen := make(map[int]bool, len(parsed.Similar))
	for _, raw := range parsed.Similar {
		idx, ok := index(raw)
		if !ok || idx < 1 || idx > len(candidates) || seen[idx] {
			e.log.Debug("dropping similarity index", "value", raw)
			continue
		}
		seen[idx] = true
		matches = append(matches, candidates[idx-1])
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches, nil
}

// GenerateTemplate summarises a cluster's texts into one bracketed template.
// It falls back to the first text when the oracle cannot help.
func (e *Engine) GenerateTemplate(ctx context.Context, texts []string) string {
	if len(texts) == 0 {
		return ""
	}
	if e.oracle == nil || !e.oracle.Configured() {
		return texts[0]
	}
	reply, err := e.oracle.Complete(ctx, oracle.TemplatePrompt(texts), core.Options{
		Temperature:         0.2,
		MaxCompletionTokens: 150,
	}, oracle.TemplateTimeout)
	if err != nil {
		e.log.Warn("template generation failed", "err", err)
		return texts[0]
	}
	template := stripQuotes(strings.TrimSpace(reply))
	if template == "" {
		return texts[0]
	}
	return template
}

func window(recent []types.Report, excludeID string) []types.Report {
	out := make([]types.Report, 0, len(recent))
	for _, r := range recent {
		if excludeID != "" && r.ID == excludeID {
			continue
		}
		out = append(out, r)
	}
	if len(out) > Window {
		out = out[:Window]
	}
	return out
}

// index accepts integral JSON numbers and numeric strings.
func index(v interface{}) (int, bool) {
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	}
	return 0, false
}

func stripQuotes(s string) string {
	if strings.HasPrefix(s, `"`) || strings.HasPrefix(s, "'") {
		s = s[1:]
	}
	if strings.HasSuffix(s, `"`) || strings.HasSuffix(s, "'") {
		s = s[:len(s)-1]
	}
	return strings.TrimSpace(s)
}
