// Package export renders the downloadable CSV report.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/stake-plus/hermes/src/data"
	"github.com/stake-plus/hermes/src/types"
)

const (
	TrendingCount  = 5
	RecentCount    = 25
	TrendingWindow = 7 * 24 * time.Hour
)

var header = []string{
	"ID", "Timestamp", "Category", "Content", "Verdict", "Confidence",
	"Explanation", "Upvotes", "Cluster ID", "Variations", "Type",
}

type Source interface {
	Trending(ctx context.Context, q data.TrendingQuery) ([]types.Report, error)
	Recent(ctx context.Context, limit int) ([]types.Report, error)
}

// Collect returns the week's most upvoted reports followed by the latest
// ones, each report at most once.
func Collect(ctx context.Context, src Source, now time.Time) ([]types.Report, error) {
	trending, err := src.Trending(ctx, data.TrendingQuery{
		Since:  now.Add(-TrendingWindow),
		SortBy: data.SortUpvotes,
		Limit:  TrendingCount,
	})
	if err != nil {
		return nil, fmt.Errorf("export: trending: %w", err)
	}
	recent, err := src.Recent(ctx, RecentCount)
	if err != nil {
		return nil, fmt.Errorf("export: recent: %w", err)
	}

	seen := make(map[string]bool, len(trending)+len(recent))
	out := make([]types.Report, 0, len(trending)+len(recent))
	for _, list := range [][]types.Report{trending, recent} {
		for _, r := range list {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			out = append(out, r)
		}
	}
	return out, nil
}

// WriteCSV writes reports with a header row. The first TrendingCount rows
// are labelled Trending, the rest Recent.
func WriteCSV(w io.Writer, reports []types.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, r := range reports {
		kind := "Recent"
		if i < TrendingCount {
			kind = "Trending"
		}
		clusterID := ""
		if r.ClusterID != nil {
			clusterID = *r.ClusterID
		}
		category := string(r.Category)
		if category == "" {
			category = string(types.CategoryGeneral)
		}
		row := []string{
			r.ID,
			r.Timestamp.UTC().Format(time.RFC3339),
			category,
			r.Text,
			"misinformation",
			strconv.FormatFloat(r.Confidence, 'f', -1, 64),
			r.Explanation,
			strconv.FormatInt(r.Upvotes, 10),
			clusterID,
			strconv.Itoa(r.Variations),
			kind,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Filename is the attachment name for an export taken at now.
func Filename(now time.Time) string {
	return fmt.Sprintf("hermes-report-%d.csv", now.UnixMilli())
}
