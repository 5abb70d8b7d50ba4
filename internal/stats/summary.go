package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"pixelppo/internal/model"
)

// SeriesSummary describes one loss column over a run.
type SeriesSummary struct {
	First float64 `json:"first"`
	Last  float64 `json:"last"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

type LossSummary struct {
	Rounds            int           `json:"rounds"`
	PolicyLoss        SeriesSummary `json:"policy_loss"`
	AdversarialLoss   SeriesSummary `json:"adversarial_loss"`
	DiscriminatorLoss SeriesSummary `json:"discriminator_loss"`
	CriticLoss        SeriesSummary `json:"critic_loss"`
	MeanReward        SeriesSummary `json:"mean_reward"`
	ClipFraction      SeriesSummary `json:"clip_fraction"`
}

func SummarizeLosses(history []model.RoundMetrics) LossSummary {
	column := func(pick func(model.RoundMetrics) float64) SeriesSummary {
		values := make([]float64, len(history))
		for i, m := range history {
			values[i] = pick(m)
		}
		return Summarize(values)
	}
	return LossSummary{
		Rounds:            len(history),
		PolicyLoss:        column(func(m model.RoundMetrics) float64 { return m.PolicyLoss }),
		AdversarialLoss:   column(func(m model.RoundMetrics) float64 { return m.AdversarialLoss }),
		DiscriminatorLoss: column(func(m model.RoundMetrics) float64 { return m.DiscriminatorLoss }),
		CriticLoss:        column(func(m model.RoundMetrics) float64 { return m.CriticLoss }),
		MeanReward:        column(func(m model.RoundMetrics) float64 { return m.MeanReward }),
		ClipFraction:      column(func(m model.RoundMetrics) float64 { return m.ClipFraction }),
	}
}

// Summarize reports zeros for an empty series. Std is zero for a single value.
func Summarize(values []float64) SeriesSummary {
	if len(values) == 0 {
		return SeriesSummary{}
	}
	out := SeriesSummary{
		First: values[0],
		Last:  values[len(values)-1],
		Min:   floats.Min(values),
		Max:   floats.Max(values),
	}
	if len(values) == 1 {
		out.Mean = values[0]
		return out
	}
	out.Mean, out.Std = stat.MeanStdDev(values, nil)
	if math.IsNaN(out.Std) {
		out.Std = 0
	}
	return out
}
