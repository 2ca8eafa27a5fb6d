// Package cluster groups reports that make the same claim. A cluster is the
// set of reports sharing a cluster id; exactly one of them is the head and
// carries the template and variation count.
package cluster

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stake-plus/hermes/src/logging"
	"github.com/stake-plus/hermes/src/types"
)

// ErrNoMatches is returned when AssignCluster is called without matches.
var ErrNoMatches = errors.New("cluster: no matches")

// Error reports which write of a cluster update failed. Earlier writes are
// not rolled back.
type Error struct {
	Step string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("cluster: %s: %v", e.Step, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Store is the slice of data.ReportStore the manager writes through.
type Store interface {
	Get(ctx context.Context, id string) (*types.Report, error)
	JoinCluster(ctx context.Context, id, clusterID string) error
	MakeClusterHead(ctx context.Context, id, clusterID, template string, variations int) error
	IncrementVariations(ctx context.Context, clusterID string) (bool, error)
}

// Templater produces a representative template for a set of texts.
type Templater interface {
	GenerateTemplate(ctx context.Context, texts []string) string
}

// Notifier is told when a new cluster forms.
type Notifier interface {
	ClusterFormed(ctx context.Context, c Formed) error
}

// Formed describes a freshly created cluster.
type Formed struct {
	ID         string
	HeadID     string
	Template   string
	Variations int
}

type Manager struct {
	store     Store
	templater Templater
	notifier  Notifier
	log       *logging.Logger
	newID     func() string
}

type Option func(*Manager)

func WithNotifier(n Notifier) Option { return func(m *Manager) { m.notifier = n } }

// WithIDs replaces the cluster id generator.
func WithIDs(gen func() string) Option { return func(m *Manager) { m.newID = gen } }

func New(store Store, templater Templater, log *logging.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		templater: templater,
		log:       logging.OrNop(log),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AssignCluster places the report newID into a cluster given the reports it
// matched, and returns the cluster id.
//
// If any match already belongs to a cluster, the first such match (in match
// order) decides the cluster: the new report joins it and the head's
// variation count grows by one. Otherwise a new cluster is formed with
// matches[0] as head, counting every match plus the new report.
func (m *Manager) AssignCluster(ctx context.Context, newID string, matches []types.Report) (string, error) {
	if len(matches) == 0 {
		return "", ErrNoMatches
	}
	for _, match := range matches {
		if match.ClusterID != nil && *match.ClusterID != "" {
			return m.join(ctx, newID, *match.ClusterID)
		}
	}
	return m.form(ctx, newID, matches)
}

func (m *Manager) join(ctx context.Context, newID, clusterID string) (string, error) {
	if err := m.store.JoinCluster(ctx, newID, clusterID); err != nil {
		return "", &Error{Step: "join new report", Err: err}
	}
	ok, err := m.store.IncrementVariations(ctx, clusterID)
	if err != nil {
		return "", &Error{Step: "increment variations", Err: err}
	}
	if !ok {
		m.log.Warn("cluster has no head, variations not updated", "cluster", clusterID)
	}
	m.log.Debug("report joined cluster", "report", newID, "cluster", clusterID)
	return clusterID, nil
}

func (m *Manager) form(ctx context.Context, newID string, matches []types.Report) (string, error) {
	created, err := m.store.Get(ctx, newID)
	if err != nil {
		return "", &Error{Step: "load new report", Err: err}
	}

	clusterID := m.newID()
	texts := make([]string, 0, len(matches)+1)
	for _, match := range matches {
		texts = append(texts, match.Text)
	}
	texts = append(texts, created.Text)
	template := m.templater.GenerateTemplate(ctx, texts)
	variations := len(matches) + 1

	head := matches[0]
	if err := m.store.MakeClusterHead(ctx, head.ID, clusterID, template, variations); err != nil {
		return "", &Error{Step: "mark head", Err: err}
	}
	for _, match := range matches[1:] {
		if err := m.store.JoinCluster(ctx, match.ID, clusterID); err != nil {
			return "", &Error{Step: "join match " + match.ID, Err: err}
		}
	}
	if err := m.store.JoinCluster(ctx, newID, clusterID); err != nil {
		return "", &Error{Step: "join new report", Err: err}
	}

	m.log.Info("cluster formed", "cluster", clusterID, "head", head.ID, "variations", variations)
	if m.notifier != nil {
		formed := Formed{ID: clusterID, HeadID: head.ID, Template: template, Variations: variations}
		if err := m.notifier.ClusterFormed(ctx, formed); err != nil {
			m.log.Warn("cluster notification failed", "cluster", clusterID, "err", err)
		}
	}
	return clusterID, nil
}
