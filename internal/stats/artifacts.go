package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"pixelppo/internal/dataset"
	"pixelppo/internal/model"
	"pixelppo/internal/trainer"
)

const (
	runIndexFile       = "run_index.json"
	configFile         = "config.json"
	lossHistoryFile    = "loss_history.json"
	lossHistoryCSVFile = "loss_history.csv"
	summaryFile        = "loss_summary.json"
)

var lossColumns = []string{
	"round", "epoch", "step", "passes",
	"policy_loss", "adversarial_loss", "discriminator_loss", "critic_loss",
	"mean_advantage", "mean_reward", "clip_fraction",
}

type RunConfig struct {
	RunID     string                  `json:"run_id"`
	Source    string                  `json:"source"`
	Epochs    int                     `json:"epochs"`
	StoreKind string                  `json:"store_kind,omitempty"`
	Data      dataset.SyntheticConfig `json:"data"`
	Trainer   trainer.Config          `json:"trainer"`
}

type RunArtifacts struct {
	Config      RunConfig            `json:"config"`
	LossHistory []model.RoundMetrics `json:"loss_history"`
	FinalReward float64              `json:"final_reward"`
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	Source       string  `json:"source"`
	Epochs       int     `json:"epochs"`
	Rounds       int     `json:"rounds"`
	Seed         int64   `json:"seed"`
	BatchSize    int     `json:"batch_size"`
	FinalReward  float64 `json:"final_reward"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, lossHistoryFile), map[string]any{
		"rounds":       artifacts.LossHistory,
		"final_reward": artifacts.FinalReward,
	}); err != nil {
		return "", err
	}
	if err := WriteLossHistoryCSV(runDir, artifacts.LossHistory); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, summaryFile), SummarizeLosses(artifacts.LossHistory)); err != nil {
		return "", err
	}
	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns entries newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	order := make(map[string]int, len(entries))
	for i, entry := range entries {
		order[entry.RunID] = i
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CreatedAtUTC == entries[j].CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return order[entries[i].RunID] > order[entries[j].RunID]
		}
		return entries[i].CreatedAtUTC > entries[j].CreatedAtUTC
	})
	return entries, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}

	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

func WriteLossHistoryCSV(runDir string, history []model.RoundMetrics) error {
	file, err := os.Create(filepath.Join(runDir, lossHistoryCSVFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(lossColumns); err != nil {
		return err
	}
	for _, m := range history {
		if err := writer.Write([]string{
			strconv.Itoa(m.Round),
			strconv.Itoa(m.Epoch),
			strconv.Itoa(m.Step),
			strconv.Itoa(m.Passes),
			formatFloat(m.PolicyLoss),
			formatFloat(m.AdversarialLoss),
			formatFloat(m.DiscriminatorLoss),
			formatFloat(m.CriticLoss),
			formatFloat(m.MeanAdvantage),
			formatFloat(m.MeanReward),
			formatFloat(m.ClipFraction),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadLossHistoryCSV(baseDir, runID string) ([]model.RoundMetrics, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, lossHistoryCSVFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(lossColumns)
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return []model.RoundMetrics{}, true, nil
		}
		return nil, false, err
	}

	history := make([]model.RoundMetrics, 0, 64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		m, err := parseLossRow(record)
		if err != nil {
			return nil, false, err
		}
		m.RunID = runID
		history = append(history, m)
	}
	return history, true, nil
}

func parseLossRow(record []string) (model.RoundMetrics, error) {
	ints := make([]int, 4)
	for i := range ints {
		v, err := strconv.Atoi(record[i])
		if err != nil {
			return model.RoundMetrics{}, fmt.Errorf("column %s: %w", lossColumns[i], err)
		}
		ints[i] = v
	}
	floats := make([]float64, len(record)-4)
	for i := range floats {
		v, err := strconv.ParseFloat(record[i+4], 64)
		if err != nil {
			return model.RoundMetrics{}, fmt.Errorf("column %s: %w", lossColumns[i+4], err)
		}
		floats[i] = v
	}
	return model.RoundMetrics{
		Round:             ints[0],
		Epoch:             ints[1],
		Step:              ints[2],
		Passes:            ints[3],
		PolicyLoss:        floats[0],
		AdversarialLoss:   floats[1],
		DiscriminatorLoss: floats[2],
		CriticLoss:        floats[3],
		MeanAdvantage:     floats[4],
		MeanReward:        floats[5],
		ClipFraction:      floats[6],
	}, nil
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, lossHistoryFile, lossHistoryCSVFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	summaryPath := filepath.Join(src, summaryFile)
	if _, err := os.Stat(summaryPath); err == nil {
		if err := copyFile(summaryPath, filepath.Join(dst, summaryFile)); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}
	return dst, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
