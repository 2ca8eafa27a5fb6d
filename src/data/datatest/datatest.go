// Package datatest provides sqlite-backed report stores for tests.
package datatest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stake-plus/hermes/src/config"
	"github.com/stake-plus/hermes/src/data"
	"github.com/stake-plus/hermes/src/types"
)

// NewStore returns a store over a fresh sqlite file that is closed when the
// test ends.
func NewStore(tb testing.TB) (*data.ReportStore, *data.ConnManager) {
	tb.Helper()
	conn := data.NewConnManager(config.Database{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(tb.TempDir(), "hermes.db"),
	}, nil)
	if _, err := conn.EnsureConnected(context.Background()); err != nil {
		tb.Fatalf("connect sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = conn.Close() })
	return data.NewReportStore(conn), conn
}

// NewOfflineStore returns a store with no database configured.
func NewOfflineStore() *data.ReportStore {
	return data.NewReportStore(data.NewConnManager(config.Database{Driver: "sqlite"}, nil))
}

// SeedReport inserts a report with the given text, age relative to now and
// upvotes.
func SeedReport(tb testing.TB, store *data.ReportStore, text string, age time.Duration, upvotes int64) *types.Report {
	tb.Helper()
	r := &types.Report{
		Text:        text,
		Category:    types.CategoryHealth,
		Confidence:  0.9,
		Explanation: "seeded",
		Timestamp:   time.Now().UTC().Add(-age),
		Upvotes:     upvotes,
	}
	if err := store.Create(context.Background(), r); err != nil {
		tb.Fatalf("seed report: %v", err)
	}
	return r
}

// MustGet reloads a report or fails the test.
func MustGet(tb testing.TB, store *data.ReportStore, id string) *types.Report {
	tb.Helper()
	r, err := store.Get(context.Background(), id)
	if err != nil {
		tb.Fatalf("get report %s: %v", id, err)
	}
	return r
}
