package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
)

func setupTestDB(t *testing.T) *SQLiteDB {
	db, err := NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	return db
}

var base = time.Date(2026, 7, 15, 14, 30, 0, 0, time.UTC)

func completedRun(id string, kind models.DisasterKind, created time.Time) models.RunView {
	return models.RunView{
		ID: id,
		Disaster: models.Disaster{
			Kind:      kind,
			Location:  models.Location{Lat: 43.7315, Lon: -79.8620},
			Severity:  models.SeverityHigh,
			Metadata:  map[string]any{"description": "test run"},
			CreatedAt: created,
		},
		Status: models.StatusComplete,
		Plan: &models.Plan{
			RunID:     id,
			Summary:   "Evacuate the north side",
			Templates: map[string]string{models.LangEnglish: "Leave now"},
			Source:    models.SourceLive,
		},
		UpdatedAt: created.Add(time.Minute),
	}
}

func TestSQLiteDB_SaveAndGetRun(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	run := completedRun("wildfire-1", models.KindWildfire, base)

	if err := db.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := db.GetRun(ctx, "wildfire-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected run, got nil")
	}
	if got.Status != models.StatusComplete {
		t.Errorf("expected status complete, got %s", got.Status)
	}
	if got.Disaster.Severity != models.SeverityHigh {
		t.Errorf("expected severity high, got %s", got.Disaster.Severity)
	}
	if got.Plan == nil || got.Plan.Summary != "Evacuate the north side" {
		t.Errorf("plan not round-tripped: %+v", got.Plan)
	}
	if got.Disaster.MetadataString("description") != "test run" {
		t.Errorf("metadata not round-tripped: %v", got.Disaster.Metadata)
	}
	if !got.Disaster.CreatedAt.Equal(base) {
		t.Errorf("expected created_at %v, got %v", base, got.Disaster.CreatedAt)
	}
	if got.Error != nil {
		t.Errorf("expected no error, got %+v", got.Error)
	}
}

func TestSQLiteDB_GetRunMissing(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	got, err := db.GetRun(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown id, got %+v", got)
	}
}

func TestSQLiteDB_Exists(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	exists, err := db.Exists(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("expected false for nonexistent ID")
	}

	db.SaveRun(ctx, completedRun("exists_test", models.KindFlood, base))

	exists, err = db.Exists(ctx, "exists_test")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected true for existing ID")
	}
}

func TestSQLiteDB_SaveRunOverwrites(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	run := completedRun("flood-1", models.KindFlood, base)
	run.Status = models.StatusFailed
	run.Plan = nil
	run.Error = &models.ErrorView{Kind: models.ErrStageExecution, Stage: "routing", Message: `analysis stage "routing" crashed`}

	if err := db.SaveRun(ctx, run); err != nil {
		t.Fatalf("first SaveRun failed: %v", err)
	}
	run.UpdatedAt = base.Add(time.Hour)
	if err := db.SaveRun(ctx, run); err != nil {
		t.Fatalf("second SaveRun failed: %v", err)
	}

	runs, err := db.ListRuns(ctx, Filter{})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run after overwrite, got %d", len(runs))
	}
	got := runs[0]
	if got.Error == nil || got.Error.Stage != "routing" || got.Error.Kind != models.ErrStageExecution {
		t.Errorf("error not round-tripped: %+v", got.Error)
	}
	if got.Plan != nil {
		t.Errorf("expected no plan for failed run, got %+v", got.Plan)
	}
	if !got.UpdatedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("expected updated_at to move, got %v", got.UpdatedAt)
	}
}

func TestSQLiteDB_ListRuns_WithFilters(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		db.SaveRun(ctx, completedRun(fmt.Sprintf("wildfire-%d", i), models.KindWildfire, base.Add(time.Duration(i)*time.Hour)))
	}
	failed := completedRun("flood-1", models.KindFlood, base.Add(10*time.Hour))
	failed.Status = models.StatusFailed
	failed.Plan = nil
	failed.Error = &models.ErrorView{Kind: models.ErrDataUnavailable, Message: "no live data could be obtained"}
	db.SaveRun(ctx, failed)

	all, err := db.ListRuns(ctx, Filter{})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 runs, got %d", len(all))
	}
	if all[0].ID != "flood-1" {
		t.Errorf("expected newest run first, got %s", all[0].ID)
	}

	wildfire := models.KindWildfire
	results, err := db.ListRuns(ctx, Filter{Kind: &wildfire})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 wildfires, got %d", len(results))
	}

	status := models.StatusFailed
	results, err = db.ListRuns(ctx, Filter{Status: &status})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(results) != 1 || results[0].Error == nil || results[0].Error.Kind != models.ErrDataUnavailable {
		t.Errorf("expected the failed flood, got %+v", results)
	}

	since := base.Add(90 * time.Minute)
	results, err = db.ListRuns(ctx, Filter{Since: &since})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 runs since %v, got %d", since, len(results))
	}

	results, err = db.ListRuns(ctx, Filter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(results) != 2 || results[0].ID != "wildfire-2" {
		t.Errorf("unexpected page: %+v", results)
	}
}
