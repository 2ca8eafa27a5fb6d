package cluster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stake-plus/hermes/src/data"
	"github.com/stake-plus/hermes/src/data/datatest"
	"github.com/stake-plus/hermes/src/types"
)

type staticTemplate struct {
	texts [][]string
}

func (s *staticTemplate) GenerateTemplate(ctx context.Context, texts []string) string {
	s.texts = append(s.texts, texts)
	return "Garlic [cures/prevents] covid"
}

type recordingNotifier struct {
	formed []Formed
}

func (r *recordingNotifier) ClusterFormed(ctx context.Context, c Formed) error {
	r.formed = append(r.formed, c)
	return errors.New("webhook down")
}

func fixedID(id string) Option { return WithIDs(func() string { return id }) }

func assertSingleHead(t *testing.T, store *data.ReportStore, clusterID string, wantMembers int) types.Report {
	t.Helper()
	members, err := store.ClusterMembers(context.Background(), clusterID)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != wantMembers {
		t.Fatalf("cluster %s has %d members, want %d", clusterID, len(members), wantMembers)
	}
	var heads []types.Report
	for _, m := range members {
		if m.IsClusterHead {
			heads = append(heads, m)
		} else if m.MessageTemplate != nil {
			t.Errorf("non-head %s carries a template", m.ID)
		}
	}
	if len(heads) != 1 {
		t.Fatalf("cluster %s has %d heads, want 1", clusterID, len(heads))
	}
	return heads[0]
}

func TestNewClusterScenario(t *testing.T) {
	ctx := context.Background()
	store, _ := datatest.NewStore(t)
	a := datatest.SeedReport(t, store, "garlic cures covid", 2*time.Hour, 0)
	b := datatest.SeedReport(t, store, "eating garlic prevents covid", time.Minute, 0)

	tmpl := &staticTemplate{}
	notes := &recordingNotifier{}
	m := New(store, tmpl, nil, fixedID("c-1"), WithNotifier(notes))

	id, err := m.AssignCluster(ctx, b.ID, []types.Report{*a})
	if err != nil {
		t.Fatal(err)
	}
	if id != "c-1" {
		t.Fatalf("cluster id = %q", id)
	}

	head := assertSingleHead(t, store, id, 2)
	if head.ID != a.ID || head.Variations != 2 || head.MessageTemplate == nil || *head.MessageTemplate != "Garlic [cures/prevents] covid" {
		t.Fatalf("head = %+v", head)
	}
	if got := datatest.MustGet(t, store, b.ID); got.IsClusterHead || got.ClusterID == nil || *got.ClusterID != id {
		t.Fatalf("new report = %+v", got)
	}
	if len(tmpl.texts) != 1 || len(tmpl.texts[0]) != 2 || tmpl.texts[0][1] != b.Text {
		t.Fatalf("template input = %v", tmpl.texts)
	}
	if len(notes.formed) != 1 || notes.formed[0].HeadID != a.ID || notes.formed[0].Variations != 2 {
		t.Fatalf("notifications = %+v", notes.formed)
	}
}

func TestClusterGrowthScenario(t *testing.T) {
	ctx := context.Background()
	store, _ := datatest.NewStore(t)
	a := datatest.SeedReport(t, store, "garlic cures covid", 3*time.Hour, 0)
	b := datatest.SeedReport(t, store, "garlic prevents covid", 2*time.Hour, 0)
	c := datatest.SeedReport(t, store, "covid is cured by garlic", time.Minute, 0)

	tmpl := &staticTemplate{}
	m := New(store, tmpl, nil, fixedID("c-1"))
	if _, err := m.AssignCluster(ctx, b.ID, []types.Report{*a}); err != nil {
		t.Fatal(err)
	}

	// Reload so matches carry the stored cluster id, as FindSimilar would.
	unclustered := datatest.SeedReport(t, store, "unrelated but matched", time.Hour, 0)
	matches := []types.Report{*unclustered, *datatest.MustGet(t, store, b.ID)}
	id, err := m.AssignCluster(ctx, c.ID, matches)
	if err != nil {
		t.Fatal(err)
	}
	if id != "c-1" {
		t.Fatalf("cluster id = %q, want existing cluster", id)
	}
	head := assertSingleHead(t, store, id, 3)
	if head.ID != a.ID || head.Variations != 3 {
		t.Fatalf("head = %+v", head)
	}
	if len(tmpl.texts) != 1 {
		t.Fatal("template regenerated on growth")
	}
	if got := datatest.MustGet(t, store, unclustered.ID); got.ClusterID != nil {
		t.Fatal("growth touched an unclustered match")
	}
}

func TestVariationAccountingWithManyMatches(t *testing.T) {
	ctx := context.Background()
	store, _ := datatest.NewStore(t)
	var matches []types.Report
	for i := 0; i < 4; i++ {
		matches = append(matches, *datatest.SeedReport(t, store, "claim variant", time.Duration(i+2)*time.Hour, 0))
	}
	fresh := datatest.SeedReport(t, store, "claim variant, again", time.Minute, 0)

	id, err := New(store, &staticTemplate{}, nil).AssignCluster(ctx, fresh.ID, matches)
	if err != nil {
		t.Fatal(err)
	}
	head := assertSingleHead(t, store, id, 5)
	if head.ID != matches[0].ID || head.Variations != 5 {
		t.Fatalf("head = %+v", head)
	}
}

func TestFirstClusteredMatchWins(t *testing.T) {
	ctx := context.Background()
	store, _ := datatest.NewStore(t)
	h1 := datatest.SeedReport(t, store, "one", 4*time.Hour, 0)
	h2 := datatest.SeedReport(t, store, "two", 3*time.Hour, 0)
	if err := store.MakeClusterHead(ctx, h1.ID, "c-1", "one", 1); err != nil {
		t.Fatal(err)
	}
	if err := store.MakeClusterHead(ctx, h2.ID, "c-2", "two", 1); err != nil {
		t.Fatal(err)
	}
	fresh := datatest.SeedReport(t, store, "new", time.Minute, 0)

	matches := []types.Report{*datatest.MustGet(t, store, h2.ID), *datatest.MustGet(t, store, h1.ID)}
	id, err := New(store, &staticTemplate{}, nil).AssignCluster(ctx, fresh.ID, matches)
	if err != nil || id != "c-2" {
		t.Fatalf("AssignCluster = (%q, %v), want c-2", id, err)
	}
	if datatest.MustGet(t, store, h2.ID).Variations != 2 || datatest.MustGet(t, store, h1.ID).Variations != 1 {
		t.Fatal("wrong head incremented")
	}
}

func TestJoinClusterWithoutHead(t *testing.T) {
	ctx := context.Background()
	store, _ := datatest.NewStore(t)
	orphan := datatest.SeedReport(t, store, "orphan", time.Hour, 0)
	if err := store.JoinCluster(ctx, orphan.ID, "headless"); err != nil {
		t.Fatal(err)
	}
	fresh := datatest.SeedReport(t, store, "new", time.Minute, 0)

	id, err := New(store, &staticTemplate{}, nil).AssignCluster(ctx, fresh.ID, []types.Report{*datatest.MustGet(t, store, orphan.ID)})
	if err != nil || id != "headless" {
		t.Fatalf("AssignCluster = (%q, %v)", id, err)
	}
	if got := datatest.MustGet(t, store, fresh.ID); got.ClusterID == nil || *got.ClusterID != "headless" {
		t.Fatalf("new report = %+v", got)
	}
}

func TestAssignClusterErrors(t *testing.T) {
	ctx := context.Background()
	store, _ := datatest.NewStore(t)
	m := New(store, &staticTemplate{}, nil)

	if _, err := m.AssignCluster(ctx, "x", nil); !errors.Is(err, ErrNoMatches) {
		t.Fatalf("err = %v, want ErrNoMatches", err)
	}

	a := datatest.SeedReport(t, store, "a", time.Hour, 0)
	_, err := m.AssignCluster(ctx, "missing", []types.Report{*a})
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Step != "load new report" || !errors.Is(err, data.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}

	offline := New(datatest.NewOfflineStore(), &staticTemplate{}, nil)
	if _, err := offline.AssignCluster(ctx, "x", []types.Report{*a}); !errors.Is(err, data.ErrNoDatabase) {
		t.Fatalf("err = %v, want ErrNoDatabase", err)
	}
}
