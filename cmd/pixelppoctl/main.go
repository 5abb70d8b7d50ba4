package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"pixelppo/internal/storage"
	api "pixelppo/pkg/pixelppo"
)

const (
	artifactsDir = "runs"
	exportsDir   = "exports"
	dbPath       = "pixelppo.db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "train":
		return runTrain(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "losses":
		return runLosses(ctx, args[1:])
	case "checkpoint":
		return runCheckpoint(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// clientFlags are shared by every command that opens a client.
type clientFlags struct {
	storeKind    *string
	dbPath       *string
	artifactsDir *string
	logLevel     *string
}

func registerClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		storeKind:    fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:       fs.String("db-path", dbPath, "sqlite database path"),
		artifactsDir: fs.String("artifacts-dir", artifactsDir, "run artifacts directory"),
		logLevel:     fs.String("log-level", "info", "log level: debug|info|warn|error|disabled"),
	}
}

func (f clientFlags) open(logOut io.Writer) (*api.Client, error) {
	logger, err := newLogger(*f.logLevel, logOut)
	if err != nil {
		return nil, err
	}
	return api.New(api.Options{
		StoreKind:    *f.storeKind,
		DBPath:       *f.dbPath,
		ArtifactsDir: *f.artifactsDir,
		ExportsDir:   exportsDir,
		Logger:       &logger,
	})
}

func newLogger(level string, out io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	writer := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger(), nil
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open(os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *cf.storeKind)
	return nil
}

func runTrain(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	configPath := fs.String("config", "", "path to JSON train config")
	runID := fs.String("run-id", "", "explicit run id (generated when empty)")
	epochs := fs.Int("epochs", 1, "passes over the dataset")
	resumeFrom := fs.String("resume-from", "", "run id whose checkpoint seeds the networks")
	prefetch := fs.Int("prefetch", 8, "samples generated ahead of training")
	dataCSV := fs.String("data-csv", "", "CSV table of input and mask rows (replaces synthetic data)")
	csvHeader := fs.Bool("csv-header", false, "skip the first CSV row")
	channels := fs.Int("channels", 1, "input channels")
	samples := fs.Int("samples", 64, "synthetic samples per epoch")
	height := fs.Int("height", 16, "image height")
	width := fs.Int("width", 16, "image width")
	foreground := fs.Float64("foreground", 0.05, "target foreground fraction")
	noise := fs.Float64("noise", 0.5, "input noise standard deviation")
	dataSeed := fs.Int64("data-seed", 1, "synthetic data seed")
	capacity := fs.Int("capacity", 64, "transition store capacity")
	discount := fs.Float64("discount", 0.99, "discount factor in [0,1)")
	clip := fs.Float64("clip", 0.2, "PPO clip epsilon")
	advWeight := fs.Float64("adv-weight", 0.1, "adversarial loss weight")
	lrPolicy := fs.Float64("lr-policy", 0.01, "policy learning rate")
	lrCritic := fs.Float64("lr-critic", 0.01, "critic learning rate")
	lrDisc := fs.Float64("lr-disc", 0.005, "discriminator learning rate")
	batch := fs.Int("batch", 16, "minibatch size and update threshold")
	ppoEpochs := fs.Int("ppo-epochs", 4, "passes per update round")
	minorityBonus := fs.Float64("minority-bonus", 1.0, "reward magnitude on foreground pixels")
	majorityBonus := fs.Float64("majority-bonus", 0.01, "reward magnitude on background pixels")
	samplesPerStep := fs.Int("samples-per-step", 1, "samples acted on per step")
	seed := fs.Int64("seed", 1, "trainer seed")
	jsonOut := fs.Bool("json", false, "emit summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultTrainRequest(*configPath)
	if err != nil {
		return err
	}
	if err := overrideFromFlags(&req, setFlags, map[string]any{
		"run-id":           *runID,
		"epochs":           *epochs,
		"resume-from":      *resumeFrom,
		"prefetch":         *prefetch,
		"data-csv":         *dataCSV,
		"csv-header":       *csvHeader,
		"channels":         *channels,
		"samples":          *samples,
		"height":           *height,
		"width":            *width,
		"foreground":       *foreground,
		"noise":            *noise,
		"data-seed":        *dataSeed,
		"capacity":         *capacity,
		"discount":         *discount,
		"clip":             *clip,
		"adv-weight":       *advWeight,
		"lr-policy":        *lrPolicy,
		"lr-critic":        *lrCritic,
		"lr-disc":          *lrDisc,
		"batch":            *batch,
		"ppo-epochs":       *ppoEpochs,
		"minority-bonus":   *minorityBonus,
		"majority-bonus":   *majorityBonus,
		"samples-per-step": *samplesPerStep,
		"seed":             *seed,
	}); err != nil {
		return err
	}
	if req.Epochs <= 0 {
		return errors.New("epochs must be > 0")
	}

	client, err := cf.open(os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Train(ctx, req)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSONOut(map[string]any{
			"run_id":        summary.RunID,
			"artifacts_dir": summary.ArtifactsDir,
			"epochs":        summary.Epochs,
			"rounds":        summary.Rounds,
			"steps":         summary.Steps,
			"final_reward":  summary.FinalReward,
		})
	}
	fmt.Printf("run_id=%s epochs=%d rounds=%d steps=%d final_reward=%.6f artifacts=%s\n",
		summary.RunID, summary.Epochs, summary.Rounds, summary.Steps, summary.FinalReward, summary.ArtifactsDir)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := cf.open(os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, api.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		type runsItem struct {
			RunID        string  `json:"run_id"`
			CreatedAtUTC string  `json:"created_at_utc"`
			Source       string  `json:"source"`
			Seed         int64   `json:"seed"`
			Epochs       int     `json:"epochs"`
			Rounds       int     `json:"rounds"`
			BatchSize    int     `json:"batch_size"`
			FinalReward  float64 `json:"final_reward"`
		}
		items := make([]runsItem, 0, len(runs))
		for _, r := range runs {
			items = append(items, runsItem(r))
		}
		return writeJSONOut(items)
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("run_id=%s created_at=%s source=%s seed=%d epochs=%d rounds=%d batch=%d final_reward=%.6f\n",
			r.RunID, r.CreatedAtUTC, r.Source, r.Seed, r.Epochs, r.Rounds, r.BatchSize, r.FinalReward)
	}
	return nil
}

func runLosses(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("losses", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	limit := fs.Int("limit", 0, "max rounds to show (0 = all)")
	jsonOut := fs.Bool("json", false, "emit loss history as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open(os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.LossHistory(ctx, api.LossHistoryRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSONOut(history)
	}
	for _, m := range history {
		fmt.Printf("round=%d epoch=%d step=%d policy=%.6f adversarial=%.6f discriminator=%.6f critic=%.6f clip_fraction=%.4f\n",
			m.Round, m.Epoch, m.Step, m.PolicyLoss, m.AdversarialLoss, m.DiscriminatorLoss, m.CriticLoss, m.ClipFraction)
	}
	return nil
}

func runCheckpoint(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("checkpoint", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	jsonOut := fs.Bool("json", false, "emit full checkpoint as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open(os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	checkpoint, err := client.Checkpoint(ctx, api.CheckpointRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSONOut(checkpoint)
	}
	fmt.Printf("run_id=%s epoch=%d round=%d\n", checkpoint.RunID, checkpoint.Epoch, checkpoint.Round)
	for _, name := range []string{"policy", "critic", "discriminator"} {
		fmt.Printf("  %s parameters=%d\n", name, len(checkpoint.Parameters[name]))
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	cf := registerClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", exportsDir, "export destination")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open(os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, api.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
	return nil
}

func writeJSONOut(value any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: pixelppoctl <init|train|runs|losses|checkpoint|export> [flags]", msg)
}
