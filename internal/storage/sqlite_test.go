//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"pixelppo/internal/model"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "pixelppo.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	run := model.RunRecord{VersionedRecord: CurrentVersion(), ID: "r1", Seed: 7, Rounds: 4, CreatedAtUTC: "2026-01-01T00:00:00Z"}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}
	loaded, ok, err := store.GetRun(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%v err=%v", ok, err)
	}
	if loaded.Seed != 7 || loaded.Rounds != 4 {
		t.Fatalf("unexpected run: %+v", loaded)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "r1" {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	history := []model.RoundMetrics{{Round: 1, CriticLoss: 0.2}}
	if err := store.SaveLossHistory(ctx, "r1", history); err != nil {
		t.Fatalf("save loss history: %v", err)
	}
	loadedHistory, ok, err := store.GetLossHistory(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("get loss history: ok=%v err=%v", ok, err)
	}
	if len(loadedHistory) != 1 || loadedHistory[0].CriticLoss != 0.2 {
		t.Fatalf("unexpected loss history: %+v", loadedHistory)
	}

	checkpoint := model.Checkpoint{VersionedRecord: CurrentVersion(), RunID: "r1", Round: 4, Parameters: map[string][]float64{"critic": {0.5}}}
	if err := store.SaveCheckpoint(ctx, checkpoint); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}
	loadedCheckpoint, ok, err := store.GetCheckpoint(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("get checkpoint: ok=%v err=%v", ok, err)
	}
	if loadedCheckpoint.Parameters["critic"][0] != 0.5 {
		t.Fatalf("unexpected checkpoint: %+v", loadedCheckpoint)
	}
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	if err := NewSQLiteStore("").Init(context.Background()); err == nil {
		t.Fatal("expected path error")
	}
}

func TestSQLiteStoreMissingRecords(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "pixelppo.db"))
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer store.Close()

	if _, ok, err := store.GetCheckpoint(ctx, "none"); err != nil || ok {
		t.Fatalf("expected missing checkpoint, ok=%v err=%v", ok, err)
	}
}
