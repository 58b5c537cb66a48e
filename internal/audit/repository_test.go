package audit

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/signage-core/internal/infrastructure/database"
	_ "github.com/nerrad567/signage-core/migrations"
)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(database.Config{Path: t.TempDir() + "/audit.db", BusyTimeout: 5})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestCreate_FillsDefaults(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	e := &Entry{Action: ActionCreate, EntityType: EntityDisplay, EntityID: "dsp-1", Source: "api"}
	if err := repo.Create(ctx, e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(e.ID) != len("aud-")+8 || e.ID[:4] != "aud-" {
		t.Errorf("ID = %q", e.ID)
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	res, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 1 || res.Entries[0].Actor != "" || res.Entries[0].Details != nil {
		t.Errorf("List() = %+v", res)
	}
}

func TestList_FiltersAndPages(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seed := []Entry{
		{Action: ActionCreate, EntityType: EntityDisplay, EntityID: "dsp-1"},
		{Action: ActionCreate, EntityType: EntityView, EntityID: "view-1"},
		{Action: ActionReconcile, EntityType: EntityView, EntityID: "view-1", Actor: "dsp-1",
			Details: map[string]any{"slots_created": 2}},
		{Action: ActionDelete, EntityType: EntityView, EntityID: "view-2"},
	}
	for i := range seed {
		seed[i].Source = "api"
		seed[i].CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("Create(%d) error = %v", i, err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantFirst string
		wantLen   int
	}{
		{"all newest first", Filter{}, 4, "view-2", 4},
		{"by entity type", Filter{EntityType: EntityView}, 3, "view-2", 3},
		{"by entity id", Filter{EntityID: "view-1"}, 2, "view-1", 2},
		{"by action", Filter{Action: ActionReconcile}, 1, "view-1", 1},
		{"paged", Filter{Limit: 2, Offset: 1}, 4, "view-1", 2},
		{"negative offset", Filter{Offset: -5, Limit: 1}, 4, "view-2", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.wantTotal || len(res.Entries) != tt.wantLen {
				t.Fatalf("total = %d, len = %d, want %d, %d", res.Total, len(res.Entries), tt.wantTotal, tt.wantLen)
			}
			if res.Entries[0].EntityID != tt.wantFirst {
				t.Errorf("first entity = %q, want %q", res.Entries[0].EntityID, tt.wantFirst)
			}
		})
	}

	res, err := repo.List(ctx, Filter{Action: ActionReconcile})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	got := res.Entries[0]
	if got.Actor != "dsp-1" || got.Details["slots_created"] != float64(2) {
		t.Errorf("reconcile entry = %+v", got)
	}

	if res, _ := repo.List(ctx, Filter{Limit: 1000}); res.Limit != maxLimit {
		t.Errorf("limit = %d, want clamp to %d", res.Limit, maxLimit)
	}
}
