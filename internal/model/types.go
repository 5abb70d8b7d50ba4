package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type RunRecord struct {
	VersionedRecord
	ID           string  `json:"id"`
	Source       string  `json:"source"`
	Seed         int64   `json:"seed"`
	Epochs       int     `json:"epochs"`
	Rounds       int     `json:"rounds"`
	Steps        int     `json:"steps"`
	BatchSize    int     `json:"batch_size"`
	FinalReward  float64 `json:"final_reward"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

// RoundMetrics are the scalar losses reported after one optimisation round.
// Loss values are means over the round's inner passes.
type RoundMetrics struct {
	RunID             string  `json:"run_id,omitempty"`
	Epoch             int     `json:"epoch"`
	Step              int     `json:"step"`
	Round             int     `json:"round"`
	Passes            int     `json:"passes"`
	PolicyLoss        float64 `json:"policy_loss"`
	AdversarialLoss   float64 `json:"adversarial_loss"`
	DiscriminatorLoss float64 `json:"discriminator_loss"`
	CriticLoss        float64 `json:"critic_loss"`
	MeanAdvantage     float64 `json:"mean_advantage"`
	MeanReward        float64 `json:"mean_reward"`
	ClipFraction      float64 `json:"clip_fraction"`
}

// OptimizerState is the Adam step count and moment estimates of one network.
type OptimizerState struct {
	Step         int       `json:"step"`
	FirstMoment  []float64 `json:"first_moment"`
	SecondMoment []float64 `json:"second_moment"`
}

func (s OptimizerState) Clone() OptimizerState {
	s.FirstMoment = append([]float64(nil), s.FirstMoment...)
	s.SecondMoment = append([]float64(nil), s.SecondMoment...)
	return s
}

// Checkpoint holds flat parameter vectors and optimiser state keyed by
// network name.
type Checkpoint struct {
	VersionedRecord
	RunID      string                    `json:"run_id"`
	Epoch      int                       `json:"epoch"`
	Round      int                       `json:"round"`
	Parameters map[string][]float64      `json:"parameters"`
	Optimizers map[string]OptimizerState `json:"optimizers,omitempty"`
}
