package storage

import (
	"context"
	"testing"

	"pixelppo/internal/model"
)

func TestMemoryStoreRunRoundTripAndOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, run := range []model.RunRecord{
		{VersionedRecord: CurrentVersion(), ID: "b", CreatedAtUTC: "2026-01-02T00:00:00Z"},
		{VersionedRecord: CurrentVersion(), ID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z", Rounds: 3},
	} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run: %v", err)
		}
	}

	run, ok, err := store.GetRun(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%v err=%v", ok, err)
	}
	if run.Rounds != 3 {
		t.Fatalf("unexpected run: %+v", run)
	}
	if _, ok, _ := store.GetRun(ctx, "missing"); ok {
		t.Fatal("expected missing run")
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "a" || runs[1].ID != "b" {
		t.Fatalf("unexpected run order: %+v", runs)
	}
}

func TestMemoryStoreLossHistoryIsCopied(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := []model.RoundMetrics{{Round: 1, PolicyLoss: 0.5}, {Round: 2, PolicyLoss: 0.25}}
	if err := store.SaveLossHistory(ctx, "run-1", input); err != nil {
		t.Fatalf("save loss history: %v", err)
	}
	input[0].PolicyLoss = 9

	output, ok, err := store.GetLossHistory(ctx, "run-1")
	if err != nil {
		t.Fatalf("get loss history: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted loss history")
	}
	if len(output) != 2 || output[0].PolicyLoss != 0.5 {
		t.Fatalf("unexpected loss history: %+v", output)
	}
}

func TestMemoryStoreCheckpointIsCopied(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	params := []float64{1, 2, 3}
	checkpoint := model.Checkpoint{
		VersionedRecord: CurrentVersion(),
		RunID:           "run-1",
		Parameters:      map[string][]float64{"policy": params},
	}
	if err := store.SaveCheckpoint(ctx, checkpoint); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}
	params[0] = 42

	loaded, ok, err := store.GetCheckpoint(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get checkpoint: ok=%v err=%v", ok, err)
	}
	if loaded.Parameters["policy"][0] != 1 {
		t.Fatalf("checkpoint shares storage with caller: %v", loaded.Parameters["policy"])
	}
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveRun(context.Background(), model.RunRecord{ID: "r"}); err == nil {
		t.Fatal("expected error before init")
	}
}
