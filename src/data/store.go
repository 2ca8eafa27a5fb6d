package data

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stake-plus/hermes/src/types"
	"gorm.io/gorm"
)

// ErrNotFound is returned when an id matches no report.
var ErrNotFound = errors.New("report not found")

// Sort orders for Trending.
const (
	SortUpvotes    = "upvotes"
	SortRecent     = "recent"
	SortConfidence = "confidence"
)

// TrendingQuery filters and orders a listing.
type TrendingQuery struct {
	Since  time.Time
	SortBy string
	Limit  int
}

// Stats is the aggregate over all reports.
type Stats struct {
	Total        int64 `json:"total"`
	TotalUpvotes int64 `json:"totalUpvotes"`
}

// ReportStore is the persisted report collection. Every call goes through the
// connection manager, so a store created before the database is reachable
// starts working once a later dial succeeds.
type ReportStore struct {
	conn *ConnManager
}

func NewReportStore(conn *ConnManager) *ReportStore {
	return &ReportStore{conn: conn}
}

func (s *ReportStore) db(ctx context.Context) (*gorm.DB, error) {
	db, err := s.conn.EnsureConnected(ctx)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, ErrNoDatabase
	}
	return db.WithContext(ctx), nil
}

// Available reports whether a database handle can be obtained.
func (s *ReportStore) Available(ctx context.Context) bool {
	_, err := s.db(ctx)
	return err == nil
}

// Create assigns id and timestamp and inserts the report.
func (s *ReportStore) Create(ctx context.Context, r *types.Report) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	r.Category = types.ParseCategory(string(r.Category))
	return db.Create(r).Error
}

func (s *ReportStore) Get(ctx context.Context, id string) (*types.Report, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	var r types.Report
	if err := db.First(&r, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// Recent returns up to limit reports, newest first.
func (s *ReportStore) Recent(ctx context.Context, limit int) ([]types.Report, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	var out []types.Report
	err = db.Order("timestamp DESC").Limit(limit).Find(&out).Error
	return out, err
}

// Trending lists reports created since q.Since in the requested order.
func (s *ReportStore) Trending(ctx context.Context, q TrendingQuery) ([]types.Report, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	order := "upvotes DESC, timestamp DESC"
	switch q.SortBy {
	case SortRecent:
		order = "timestamp DESC"
	case SortConfidence:
		order = "confidence DESC, timestamp DESC"
	}
	var out []types.Report
	err = db.Where("timestamp >= ?", q.Since.UTC()).Order(order).Limit(q.Limit).Find(&out).Error
	return out, err
}

// Upvote increments the counter of one report.
func (s *ReportStore) Upvote(ctx context.Context, id string) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	res := db.Model(&types.Report{}).Where("id = ?", id).
		UpdateColumn("upvotes", gorm.Expr("upvotes + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ReportStore) Stats(ctx context.Context) (Stats, error) {
	db, err := s.db(ctx)
	if err != nil {
		return Stats{}, err
	}
	var st Stats
	err = db.Model(&types.Report{}).
		Select("COUNT(*) AS total, COALESCE(SUM(upvotes), 0) AS total_upvotes").
		Scan(&st).Error
	return st, err
}

// JoinCluster makes a report a non-head member of clusterID.
func (s *ReportStore) JoinCluster(ctx context.Context, id, clusterID string) error {
	return s.update(ctx, id, map[string]interface{}{
		"cluster_id":      clusterID,
		"is_cluster_head": false,
	})
}

// MakeClusterHead marks a report as head of clusterID with its template and
// member count.
func (s *ReportStore) MakeClusterHead(ctx context.Context, id, clusterID, template string, variations int) error {
	return s.update(ctx, id, map[string]interface{}{
		"cluster_id":       clusterID,
		"is_cluster_head":  true,
		"message_template": template,
		"variations":       variations,
	})
}

func (s *ReportStore) update(ctx context.Context, id string, fields map[string]interface{}) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	res := db.Model(&types.Report{}).Where("id = ?", id).UpdateColumns(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementVariations bumps the head's counter for clusterID. It reports
// false when the cluster currently has no head.
func (s *ReportStore) IncrementVariations(ctx context.Context, clusterID string) (bool, error) {
	db, err := s.db(ctx)
	if err != nil {
		return false, err
	}
	res := db.Model(&types.Report{}).
		Where("cluster_id = ? AND is_cluster_head = ?", clusterID, true).
		UpdateColumn("variations", gorm.Expr("variations + ?", 1))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ClusterMembers returns all reports of a cluster, head first, then oldest first.
func (s *ReportStore) ClusterMembers(ctx context.Context, clusterID string) ([]types.Report, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	var out []types.Report
	err = db.Where("cluster_id = ?", clusterID).
		Order("is_cluster_head DESC, timestamp ASC").
		Find(&out).Error
	return out, err
}
