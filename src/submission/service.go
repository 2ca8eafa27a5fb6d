// Package submission runs a piece of user text through moderation,
// classification, storage and clustering.
package submission

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/stake-plus/hermes/src/cluster"
	"github.com/stake-plus/hermes/src/data"
	"github.com/stake-plus/hermes/src/logging"
	"github.com/stake-plus/hermes/src/similarity"
	"github.com/stake-plus/hermes/src/types"
)

// MaxTextLength is the longest accepted submission, in characters.
const MaxTextLength = 5000

// ValidationError rejects a submission before any oracle call.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

type Oracle interface {
	Moderate(ctx context.Context, text string) types.ContentDecision
	Classify(ctx context.Context, text string) types.Verdict
}

type Store interface {
	Create(ctx context.Context, r *types.Report) error
}

type Matcher interface {
	FindSimilar(ctx context.Context, text, excludeID string) ([]types.Report, error)
}

type Assigner interface {
	AssignCluster(ctx context.Context, newID string, matches []types.Report) (string, error)
}

// Result is the outcome of one submission. When Rejected is set only
// ContentType and Reason are meaningful.
type Result struct {
	Rejected    bool
	ContentType types.ContentType
	Reason      string

	Verdict    types.Verdict
	AnalyzedAt time.Time
	ReportID   string
	ClusterID  string
}

type Service struct {
	oracle   Oracle
	store    Store
	matcher  Matcher
	assigner Assigner
	cache    *data.Cache
	policy   *bluemonday.Policy
	log      *logging.Logger
	now      func() time.Time
}

// Deps groups the collaborators of a Service. Cache may be nil.
type Deps struct {
	Oracle   Oracle
	Store    Store
	Matcher  Matcher
	Assigner Assigner
	Cache    *data.Cache
	Logger   *logging.Logger
}

func New(d Deps) *Service {
	return &Service{
		oracle:   d.Oracle,
		store:    d.Store,
		matcher:  d.Matcher,
		assigner: d.Assigner,
		cache:    d.Cache,
		policy:   bluemonday.StrictPolicy(),
		log:      logging.OrNop(d.Logger),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Validate trims and sanitises text, stripping any markup.
func (s *Service) Validate(text string) (string, error) {
	if !utf8.ValidString(text) {
		return "", &ValidationError{Msg: "Text must be valid UTF-8"}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &ValidationError{Msg: "Text is required"}
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return "", &ValidationError{Msg: fmt.Sprintf("Text must be %d characters or less", MaxTextLength)}
	}
	clean := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
	if clean == "" {
		return "", &ValidationError{Msg: "Text contains no readable content"}
	}
	return clean, nil
}

// Submit analyses text. Only validation failures are returned as errors;
// storage and clustering problems are logged and the verdict still returned.
func (s *Service) Submit(ctx context.Context, text string) (Result, error) {
	clean, err := s.Validate(text)
	if err != nil {
		return Result{}, err
	}

	decision := s.oracle.Moderate(ctx, clean)
	if !decision.IsValid {
		reason := decision.ContentType.RejectionReason()
		if decision.RejectionReason != nil {
			reason = *decision.RejectionReason
		}
		s.log.Info("submission rejected", "contentType", decision.ContentType)
		return Result{Rejected: true, ContentType: decision.ContentType, Reason: reason}, nil
	}

	res := Result{
		ContentType: decision.ContentType,
		Verdict:     s.oracle.Classify(ctx, clean),
		AnalyzedAt:  s.now(),
	}
	if !res.Verdict.IsMisinformation {
		return res, nil
	}

	report := &types.Report{
		Text:        clean,
		Category:    res.Verdict.Category,
		Confidence:  res.Verdict.Confidence,
		Explanation: res.Verdict.Explanation,
		Timestamp:   res.AnalyzedAt,
	}
	if err := s.store.Create(ctx, report); err != nil {
		if errors.Is(err, data.ErrNoDatabase) {
			s.log.Debug("database unavailable, report not stored")
		} else {
			s.log.Error("store report failed", "err", err)
		}
		return res, nil
	}
	res.ReportID = report.ID
	s.published(ctx, *report)

	res.ClusterID = s.cluster(ctx, report)
	return res, nil
}

func (s *Service) cluster(ctx context.Context, report *types.Report) string {
	if s.matcher == nil || s.assigner == nil {
		return ""
	}
	matches, err := s.matcher.FindSimilar(ctx, report.Text, report.ID)
	if err != nil {
		if !errors.Is(err, similarity.ErrUnavailable) {
			s.log.Warn("similarity lookup failed", "report", report.ID, "err", err)
		}
		return ""
	}
	if len(matches) == 0 {
		return ""
	}
	clusterID, err := s.assigner.AssignCluster(ctx, report.ID, matches)
	if err != nil {
		var cerr *cluster.Error
		if errors.As(err, &cerr) {
			s.log.Error("cluster update incomplete", "report", report.ID, "step", cerr.Step, "err", cerr.Err)
		} else {
			s.log.Error("cluster update failed", "report", report.ID, "err", err)
		}
		return ""
	}
	if err := s.cache.InvalidateLists(ctx); err != nil {
		s.log.Debug("listing cache invalidation failed", "err", err)
	}
	return clusterID
}

func (s *Service) published(ctx context.Context, r types.Report) {
	if err := s.cache.InvalidateLists(ctx); err != nil {
		s.log.Debug("listing cache invalidation failed", "err", err)
	}
	if err := s.cache.PublishReport(ctx, r); err != nil {
		s.log.Warn("publish report event failed", "report", r.ID, "err", err)
	}
}
