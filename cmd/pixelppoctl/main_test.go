package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pixelppo/internal/stats"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	workdir := t.TempDir()
	if err := os.Chdir(workdir); err != nil {
		t.Fatalf("chdir tempdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(origWD)
	})
	return workdir
}

var smallTrainArgs = []string{
	"--store", "memory",
	"--log-level", "disabled",
	"--samples", "8",
	"--height", "8",
	"--width", "8",
	"--capacity", "4",
	"--batch", "4",
	"--ppo-epochs", "1",
}

func TestTrainCommandWritesArtifactsAndIndex(t *testing.T) {
	chdirTemp(t)

	args := append([]string{"train", "--run-id", "cli-run", "--epochs", "2"}, smallTrainArgs...)
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("train command: %v", err)
	}

	entries, err := stats.ListRunIndex(artifactsDir)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 1 || entries[0].RunID != "cli-run" || entries[0].Rounds != 4 {
		t.Fatalf("unexpected index: %+v", entries)
	}
	for _, file := range []string{"config.json", "loss_history.json", "loss_history.csv"} {
		if _, err := os.Stat(filepath.Join(artifactsDir, "cli-run", file)); err != nil {
			t.Fatalf("expected artifact %s: %v", file, err)
		}
	}

	// A fresh memory store has no history, so this reads the CSV artifact.
	if err := run(context.Background(), []string{"losses", "--store", "memory", "--log-level", "disabled", "--latest"}); err != nil {
		t.Fatalf("losses command: %v", err)
	}
	if err := run(context.Background(), []string{"runs", "--store", "memory", "--json"}); err != nil {
		t.Fatalf("runs command: %v", err)
	}
	if err := run(context.Background(), []string{"export", "--store", "memory", "--latest"}); err != nil {
		t.Fatalf("export command: %v", err)
	}
	if _, err := os.Stat(filepath.Join(exportsDir, "cli-run", "loss_history.csv")); err != nil {
		t.Fatalf("expected exported csv: %v", err)
	}
}

func TestTrainCommandRejectsInvalidConfig(t *testing.T) {
	chdirTemp(t)

	args := append([]string{"train"}, smallTrainArgs...)
	args = append(args, "--discount", "1")
	err := run(context.Background(), args)
	if err == nil || !strings.Contains(err.Error(), "discount") {
		t.Fatalf("expected discount validation error, got %v", err)
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	err := run(context.Background(), []string{"evolve"})
	if err == nil || !strings.Contains(err.Error(), "usage: pixelppoctl") {
		t.Fatalf("expected usage error, got %v", err)
	}
	if err := run(context.Background(), nil); err == nil {
		t.Fatal("expected missing command error")
	}
}

func TestInvalidLogLevel(t *testing.T) {
	chdirTemp(t)
	if err := run(context.Background(), []string{"init", "--store", "memory", "--log-level", "loud"}); err == nil {
		t.Fatal("expected log level error")
	}
}
