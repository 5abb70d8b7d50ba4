package pixelppo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pixelppo/internal/dataset"
	"pixelppo/internal/model"
	"pixelppo/internal/stats"
	"pixelppo/internal/storage"
	"pixelppo/internal/trainer"
)

const (
	defaultArtifactsDir  = "runs"
	defaultExportsDir    = "exports"
	defaultDBPath        = "pixelppo.db"
	defaultPrefetchDepth = 8

	// Fixed-width so run timestamps sort lexically.
	createdAtLayout = "2006-01-02T15:04:05.000000000Z"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *zerolog.Logger
}

type Client struct {
	store     storage.Store
	storeKind string
	logger    zerolog.Logger

	initOnce sync.Once
	initErr  error

	artifactsDir string
	exportsDir   string
}

type TrainRequest struct {
	// RunID is generated when empty.
	RunID string
	// Epochs defaults to 1.
	Epochs int
	// A zero Data selects dataset.DefaultSyntheticConfig. With DataCSV set only
	// the shape fields are read.
	Data dataset.SyntheticConfig
	// A zero Trainer selects trainer.DefaultConfig. A partial config is not
	// merged with the defaults; start from trainer.DefaultConfig to override
	// single fields.
	Trainer trainer.Config
	// PrefetchDepth bounds the number of samples generated ahead of training.
	PrefetchDepth int
	// ResumeFrom loads the network weights and optimiser state checkpointed
	// by an earlier run before training.
	ResumeFrom string
	// DataCSV replaces the synthetic source with a CSV table whose shape is
	// taken from Data.Channels, Data.Height and Data.Width.
	DataCSV      string
	CSVHasHeader bool
}

type TrainSummary struct {
	RunID        string
	ArtifactsDir string
	Epochs       int
	Rounds       int
	Steps        int
	FinalReward  float64
	LossHistory  []model.RoundMetrics
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Source       string
	Seed         int64
	Epochs       int
	Rounds       int
	BatchSize    int
	FinalReward  float64
}

type LossHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type CheckpointRequest struct {
	RunID  string
	Latest bool
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

// parameterized is implemented by the reference networks.
type parameterized interface {
	Name() string
	Parameters() []float64
	SetParameters([]float64) error
	OptimizerState() model.OptimizerState
	SetOptimizerState(model.OptimizerState) error
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		storeKind:    storeKind,
		logger:       logger.With().Str("component", "client").Logger(),
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.store.Init(ctx)
	})
	return c.initErr
}

func (c *Client) Train(ctx context.Context, req TrainRequest) (TrainSummary, error) {
	if req.Epochs <= 0 {
		req.Epochs = 1
	}
	if req.Data == (dataset.SyntheticConfig{}) {
		req.Data = dataset.DefaultSyntheticConfig()
	}
	var dataErr error
	if req.DataCSV != "" {
		dataErr = csvOptions(req).Validate()
	} else {
		dataErr = req.Data.Validate()
	}
	if req.Trainer == (trainer.Config{}) {
		req.Trainer = trainer.DefaultConfig()
	}
	if req.PrefetchDepth <= 0 {
		req.PrefetchDepth = defaultPrefetchDepth
	}
	if dataErr != nil {
		return TrainSummary{}, dataErr
	}
	if err := req.Trainer.Validate(); err != nil {
		return TrainSummary{}, err
	}
	if err := c.Init(ctx); err != nil {
		return TrainSummary{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	logger := c.logger.With().Str("run_id", runID).Logger()

	// Network initialisation draws from its own stream so that the trainer's
	// sampling sequence depends on Seed alone.
	nets, err := trainer.NewReferenceNetworks(req.Data.Channels, req.Trainer.LearningRates, rand.New(rand.NewSource(req.Trainer.Seed+1)))
	if err != nil {
		return TrainSummary{}, err
	}
	if req.ResumeFrom != "" {
		if err := c.restore(ctx, req.ResumeFrom, nets); err != nil {
			return TrainSummary{}, err
		}
		logger.Info().Str("resume_from", req.ResumeFrom).Msg("restored checkpoint")
	}

	var history []model.RoundMetrics
	orchestrator, err := trainer.New(req.Trainer, nets,
		trainer.WithLogger(logger),
		trainer.WithObserver(func(m model.RoundMetrics) {
			m.RunID = runID
			history = append(history, m)
		}),
	)
	if err != nil {
		return TrainSummary{}, err
	}

	src, err := openSource(req)
	if err != nil {
		return TrainSummary{}, err
	}
	prefetched := dataset.Prefetch(src, req.PrefetchDepth)
	defer prefetched.Close()

	logger.Info().
		Int("epochs", req.Epochs).
		Int("samples", req.Data.Samples).
		Int("batch_size", req.Trainer.BatchSize).
		Msg("training started")
	epochs, err := orchestrator.Run(ctx, prefetched, req.Epochs)
	if err != nil {
		return TrainSummary{}, fmt.Errorf("run %s: %w", runID, err)
	}

	summary := TrainSummary{
		RunID:       runID,
		Epochs:      len(epochs),
		Rounds:      orchestrator.Rounds(),
		LossHistory: append([]model.RoundMetrics(nil), history...),
	}
	for _, e := range epochs {
		summary.Steps += e.Steps
	}
	if len(epochs) > 0 {
		summary.FinalReward = epochs[len(epochs)-1].MeanReward
	}

	now := time.Now().UTC().Format(createdAtLayout)
	if err := c.persist(ctx, runID, now, src.Name(), req, summary, nets); err != nil {
		return TrainSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:     runID,
			Source:    src.Name(),
			Epochs:    req.Epochs,
			StoreKind: c.storeKind,
			Data:      req.Data,
			Trainer:   req.Trainer,
		},
		LossHistory: summary.LossHistory,
		FinalReward: summary.FinalReward,
	})
	if err != nil {
		return TrainSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:        runID,
		Source:       src.Name(),
		Epochs:       summary.Epochs,
		Rounds:       summary.Rounds,
		Seed:         req.Trainer.Seed,
		BatchSize:    req.Trainer.BatchSize,
		FinalReward:  summary.FinalReward,
		CreatedAtUTC: now,
	}); err != nil {
		return TrainSummary{}, err
	}
	summary.ArtifactsDir = filepath.Clean(runDir)

	logger.Info().
		Int("rounds", summary.Rounds).
		Int("steps", summary.Steps).
		Float64("final_reward", summary.FinalReward).
		Msg("training finished")
	return summary, nil
}

func (c *Client) persist(ctx context.Context, runID, createdAt, source string, req TrainRequest, summary TrainSummary, nets trainer.Networks) error {
	if err := c.store.SaveRun(ctx, model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		Source:          source,
		Seed:            req.Trainer.Seed,
		Epochs:          summary.Epochs,
		Rounds:          summary.Rounds,
		Steps:           summary.Steps,
		BatchSize:       req.Trainer.BatchSize,
		FinalReward:     summary.FinalReward,
		CreatedAtUTC:    createdAt,
	}); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if err := c.store.SaveLossHistory(ctx, runID, summary.LossHistory); err != nil {
		return fmt.Errorf("save loss history: %w", err)
	}

	checkpoint := model.Checkpoint{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           runID,
		Epoch:           summary.Epochs,
		Round:           summary.Rounds,
		Parameters:      make(map[string][]float64, 3),
		Optimizers:      make(map[string]model.OptimizerState, 3),
	}
	for _, net := range networkList(nets) {
		if p, ok := net.(parameterized); ok {
			checkpoint.Parameters[p.Name()] = p.Parameters()
			checkpoint.Optimizers[p.Name()] = p.OptimizerState()
		}
	}
	if err := c.store.SaveCheckpoint(ctx, checkpoint); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (c *Client) restore(ctx context.Context, runID string, nets trainer.Networks) error {
	checkpoint, ok, err := c.store.GetCheckpoint(ctx, runID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("checkpoint not found for run id: %s", runID)
	}
	for _, net := range networkList(nets) {
		p, ok := net.(parameterized)
		if !ok {
			continue
		}
		values, ok := checkpoint.Parameters[p.Name()]
		if !ok {
			return fmt.Errorf("checkpoint %s has no %s parameters", runID, p.Name())
		}
		if err := p.SetParameters(values); err != nil {
			return fmt.Errorf("restore %s: %w", p.Name(), err)
		}
		// Checkpoints written without optimiser state restart Adam from step 0.
		if state, ok := checkpoint.Optimizers[p.Name()]; ok {
			if err := p.SetOptimizerState(state); err != nil {
				return fmt.Errorf("restore %s optimizer: %w", p.Name(), err)
			}
		}
	}
	return nil
}

func openSource(req TrainRequest) (dataset.Source, error) {
	if req.DataCSV == "" {
		return dataset.NewSynthetic(req.Data)
	}
	file, err := os.Open(req.DataCSV)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return dataset.NewCSVSource(filepath.Base(req.DataCSV), file, csvOptions(req))
}

func csvOptions(req TrainRequest) dataset.CSVOptions {
	return dataset.CSVOptions{
		HasHeader: req.CSVHasHeader,
		Channels:  req.Data.Channels,
		Height:    req.Data.Height,
		Width:     req.Data.Width,
		Normalize: true,
	}
}

func networkList(nets trainer.Networks) []any {
	return []any{nets.Policy, nets.Critic, nets.Discriminator}
}

// Runs lists runs newest first from the store and falls back to the run
// index under the artifacts directory.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	out, err := c.listRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

func (c *Client) listRuns(ctx context.Context) ([]RunItem, error) {
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	records, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		out := make([]RunItem, 0, len(records))
		for i := len(records) - 1; i >= 0; i-- {
			r := records[i]
			out = append(out, RunItem{
				RunID:        r.ID,
				CreatedAtUTC: r.CreatedAtUTC,
				Source:       r.Source,
				Seed:         r.Seed,
				Epochs:       r.Epochs,
				Rounds:       r.Rounds,
				BatchSize:    r.BatchSize,
				FinalReward:  r.FinalReward,
			})
		}
		return out, nil
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			Source:       e.Source,
			Seed:         e.Seed,
			Epochs:       e.Epochs,
			Rounds:       e.Rounds,
			BatchSize:    e.BatchSize,
			FinalReward:  e.FinalReward,
		})
	}
	return out, nil
}

// LossHistory reads from the store and falls back to the run's CSV artifact.
func (c *Client) LossHistory(ctx context.Context, req LossHistoryRequest) ([]model.RoundMetrics, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, "loss history")
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}

	history, ok, err := c.store.GetLossHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		history, ok, err = stats.ReadLossHistoryCSV(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("loss history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return history, nil
}

func (c *Client) Checkpoint(ctx context.Context, req CheckpointRequest) (model.Checkpoint, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, "checkpoint")
	if err != nil {
		return model.Checkpoint{}, err
	}
	if err := c.Init(ctx); err != nil {
		return model.Checkpoint{}, err
	}
	checkpoint, ok, err := c.store.GetCheckpoint(ctx, runID)
	if err != nil {
		return model.Checkpoint{}, err
	}
	if !ok {
		return model.Checkpoint{}, fmt.Errorf("checkpoint not found for run id: %s", runID)
	}
	return checkpoint, nil
}

func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool, what string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if latest {
		runs, err := c.listRuns(ctx)
		if err != nil {
			return "", err
		}
		if len(runs) == 0 {
			return "", errors.New("no runs available")
		}
		return runs[0].RunID, nil
	}
	if runID == "" {
		return "", fmt.Errorf("%s requires run id or latest", what)
	}
	return runID, nil
}
