package main

import (
	"encoding/json"
	"fmt"
	"os"

	"pixelppo/internal/dataset"
	"pixelppo/internal/trainer"
	api "pixelppo/pkg/pixelppo"
)

func defaultTrainRequest() api.TrainRequest {
	return api.TrainRequest{
		Epochs:  1,
		Data:    dataset.DefaultSyntheticConfig(),
		Trainer: trainer.DefaultConfig(),
	}
}

// loadTrainRequestFromConfig overlays the keys present in the JSON file on
// the defaults.
func loadTrainRequestFromConfig(path string) (api.TrainRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.TrainRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return api.TrainRequest{}, err
	}

	req := defaultTrainRequest()
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asInt(raw["epochs"]); ok {
		req.Epochs = v
	}
	if v, ok := asInt(raw["prefetch_depth"]); ok {
		req.PrefetchDepth = v
	}
	if v, ok := asString(raw["resume_from"]); ok {
		req.ResumeFrom = v
	}
	if v, ok := asString(raw["data_csv"]); ok {
		req.DataCSV = v
	}
	if v, ok := asBool(raw["csv_header"]); ok {
		req.CSVHasHeader = v
	}
	if m, ok := raw["data"].(map[string]any); ok {
		applyDataConfig(&req.Data, m)
	}
	if m, ok := raw["trainer"].(map[string]any); ok {
		applyTrainerConfig(&req.Trainer, m)
	}
	return req, nil
}

func applyDataConfig(cfg *dataset.SyntheticConfig, raw map[string]any) {
	if v, ok := asInt(raw["samples"]); ok {
		cfg.Samples = v
	}
	if v, ok := asInt(raw["channels"]); ok {
		cfg.Channels = v
	}
	if v, ok := asInt(raw["height"]); ok {
		cfg.Height = v
	}
	if v, ok := asInt(raw["width"]); ok {
		cfg.Width = v
	}
	if v, ok := asFloat64(raw["foreground_fraction"]); ok {
		cfg.ForegroundFraction = v
	}
	if v, ok := asFloat64(raw["noise"]); ok {
		cfg.Noise = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		cfg.Seed = v
	}
}

func applyTrainerConfig(cfg *trainer.Config, raw map[string]any) {
	if v, ok := asInt(raw["capacity"]); ok {
		cfg.Capacity = v
	}
	if v, ok := asFloat64(raw["discount"]); ok {
		cfg.Discount = v
	}
	if v, ok := asFloat64(raw["clip_epsilon"]); ok {
		cfg.ClipEpsilon = v
	}
	if v, ok := asFloat64(raw["adversarial_loss_weight"]); ok {
		cfg.AdversarialLossWeight = v
	}
	if rates, ok := raw["learning_rates"].(map[string]any); ok {
		if v, ok := asFloat64(rates["policy"]); ok {
			cfg.LearningRates.Policy = v
		}
		if v, ok := asFloat64(rates["critic"]); ok {
			cfg.LearningRates.Critic = v
		}
		if v, ok := asFloat64(rates["discriminator"]); ok {
			cfg.LearningRates.Discriminator = v
		}
	}
	if v, ok := asInt(raw["batch_size"]); ok {
		cfg.BatchSize = v
	}
	if v, ok := asInt(raw["ppo_epochs"]); ok {
		cfg.PPOEpochs = v
	}
	if v, ok := asFloat64(raw["minority_bonus"]); ok {
		cfg.MinorityBonus = v
	}
	if v, ok := asFloat64(raw["majority_bonus"]); ok {
		cfg.MajorityBonus = v
	}
	if v, ok := asInt(raw["samples_per_step"]); ok {
		cfg.SamplesPerStep = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		cfg.Seed = v
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// overrideFromFlags applies only flags the user set explicitly, so a config
// file value survives an unset flag's default.
func overrideFromFlags(req *api.TrainRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "epochs":
			req.Epochs = v.(int)
		case "resume-from":
			req.ResumeFrom = v.(string)
		case "prefetch":
			req.PrefetchDepth = v.(int)
		case "data-csv":
			req.DataCSV = v.(string)
		case "csv-header":
			req.CSVHasHeader = v.(bool)
		case "channels":
			req.Data.Channels = v.(int)
		case "samples":
			req.Data.Samples = v.(int)
		case "height":
			req.Data.Height = v.(int)
		case "width":
			req.Data.Width = v.(int)
		case "foreground":
			req.Data.ForegroundFraction = v.(float64)
		case "noise":
			req.Data.Noise = v.(float64)
		case "data-seed":
			req.Data.Seed = v.(int64)
		case "capacity":
			req.Trainer.Capacity = v.(int)
		case "discount":
			req.Trainer.Discount = v.(float64)
		case "clip":
			req.Trainer.ClipEpsilon = v.(float64)
		case "adv-weight":
			req.Trainer.AdversarialLossWeight = v.(float64)
		case "lr-policy":
			req.Trainer.LearningRates.Policy = v.(float64)
		case "lr-critic":
			req.Trainer.LearningRates.Critic = v.(float64)
		case "lr-disc":
			req.Trainer.LearningRates.Discriminator = v.(float64)
		case "batch":
			req.Trainer.BatchSize = v.(int)
		case "ppo-epochs":
			req.Trainer.PPOEpochs = v.(int)
		case "minority-bonus":
			req.Trainer.MinorityBonus = v.(float64)
		case "majority-bonus":
			req.Trainer.MajorityBonus = v.(float64)
		case "samples-per-step":
			req.Trainer.SamplesPerStep = v.(int)
		case "seed":
			req.Trainer.Seed = v.(int64)
		default:
			return fmt.Errorf("unsupported override flag: %s", name)
		}
	}
	return nil
}

func loadOrDefaultTrainRequest(configPath string) (api.TrainRequest, error) {
	if configPath == "" {
		return defaultTrainRequest(), nil
	}
	req, err := loadTrainRequestFromConfig(configPath)
	if err != nil {
		return api.TrainRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}
