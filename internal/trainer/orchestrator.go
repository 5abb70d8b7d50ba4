// Package trainer drives the act, reward, store, update cycle and sequences
// the policy, discriminator and critic updates of each optimisation round.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"pixelppo/internal/dataset"
	"pixelppo/internal/model"
	"pixelppo/internal/ppo"
	"pixelppo/internal/replay"
	"pixelppo/internal/reward"
)

type Networks struct {
	Policy        ppo.Policy
	Critic        ppo.Approximator
	Discriminator ppo.Discriminator
}

// RoundObserver receives the metrics of every completed round.
type RoundObserver func(model.RoundMetrics)

type Option func(*Orchestrator)

func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger.With().Str("component", "trainer").Logger()
	}
}

func WithObserver(observer RoundObserver) Option {
	return func(o *Orchestrator) {
		o.observer = observer
	}
}

// WithRand replaces the seeded random source used for action sampling and
// minibatch draws.
func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) {
		if rng != nil {
			o.rng = rng
		}
	}
}

type EpochSummary struct {
	Epoch      int
	Steps      int
	Samples    int
	Rounds     int
	MeanReward float64
	Last       model.RoundMetrics
}

// Orchestrator owns the transition store. It is not safe for concurrent use;
// callers stop it only between steps.
type Orchestrator struct {
	cfg      Config
	nets     Networks
	store    *replay.Store
	shaper   reward.Shaper
	rng      *rand.Rand
	logger   zerolog.Logger
	observer RoundObserver

	seq   uint64
	steps int
	round int
	epoch int
}

func New(cfg Config, nets Networks, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if nets.Policy == nil || nets.Critic == nil || nets.Discriminator == nil {
		return nil, errors.New("policy, critic and discriminator are required")
	}

	o := &Orchestrator{
		cfg:    cfg,
		nets:   nets,
		shaper: reward.Shaper{MinorityBonus: cfg.MinorityBonus, MajorityBonus: cfg.MajorityBonus},
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	store, err := replay.NewStore(cfg.Capacity, o.rng)
	if err != nil {
		return nil, err
	}
	o.store = store
	return o, nil
}

func (o *Orchestrator) Config() Config {
	return o.cfg
}

func (o *Orchestrator) StoreSize() int {
	return o.store.Size()
}

func (o *Orchestrator) Rounds() int {
	return o.round
}

// Step acts on samples, stores the resulting transitions and runs an update
// round when enough transitions are present.
func (o *Orchestrator) Step(ctx context.Context, samples []model.Sample) (model.RoundMetrics, bool, error) {
	_, metrics, updated, err := o.step(ctx, samples)
	return metrics, updated, err
}

func (o *Orchestrator) step(ctx context.Context, samples []model.Sample) ([]model.Transition, model.RoundMetrics, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.RoundMetrics{}, false, err
	}
	transitions, err := o.Act(samples)
	if err != nil {
		return nil, model.RoundMetrics{}, false, err
	}
	for _, t := range transitions {
		o.store.Push(t)
	}
	o.steps++
	o.logger.Debug().
		Int("step", o.steps).
		Int("transitions", len(transitions)).
		Int("store_size", o.store.Size()).
		Msg("stored transitions")
	metrics, updated, err := o.MaybeUpdate(ctx)
	return transitions, metrics, updated, err
}

// Act samples an action for each input and scores it against the target.
func (o *Orchestrator) Act(samples []model.Sample) ([]model.Transition, error) {
	if len(samples) == 0 {
		return nil, nil
	}
	inputs := make([]model.Field, len(samples))
	for i, s := range samples {
		inputs[i] = s.Input
	}
	probs, err := o.nets.Policy.Predict(inputs)
	if err != nil {
		return nil, fmt.Errorf("policy predict: %w", err)
	}
	if len(probs) != len(samples) {
		return nil, fmt.Errorf("%w: policy returned %d outputs for %d inputs", ppo.ErrBatchLength, len(probs), len(samples))
	}

	out := make([]model.Transition, len(samples))
	for i, s := range samples {
		action, logProb, err := o.nets.Policy.SampleAction(probs[i], o.rng)
		if err != nil {
			return nil, fmt.Errorf("sample action: %w", err)
		}
		r, err := o.shaper.Reward(action, s.Target)
		if err != nil {
			return nil, fmt.Errorf("shape reward: %w", err)
		}
		o.seq++
		state := model.State{Input: s.Input.Clone(), Target: s.Target.Clone()}
		out[i] = model.Transition{
			Seq:       o.seq,
			State:     state,
			NextState: state,
			Action:    action,
			Reward:    r,
			LogProb:   logProb,
		}
	}
	return out, nil
}

// MaybeUpdate is a no-op below BatchSize transitions. Otherwise it runs
// PPOEpochs passes of sample, advantage, policy, discriminator and critic,
// then clears the store whether or not the round succeeded.
func (o *Orchestrator) MaybeUpdate(ctx context.Context) (model.RoundMetrics, bool, error) {
	if o.store.Size() < o.cfg.BatchSize {
		return model.RoundMetrics{}, false, nil
	}
	o.round++
	defer o.store.Clear()

	estimator := ppo.AdvantageEstimator{Critic: o.nets.Critic, Gamma: o.cfg.Discount}
	policy := ppo.PolicyEngine{
		Policy:                o.nets.Policy,
		Discriminator:         o.nets.Discriminator,
		ClipEpsilon:           o.cfg.ClipEpsilon,
		AdversarialLossWeight: o.cfg.AdversarialLossWeight,
	}
	discriminator := ppo.DiscriminatorEngine{Discriminator: o.nets.Discriminator}
	critic := ppo.CriticEngine{Critic: o.nets.Critic, Gamma: o.cfg.Discount}

	metrics := model.RoundMetrics{Epoch: o.epoch, Step: o.steps, Round: o.round}
	for pass := 0; pass < o.cfg.PPOEpochs; pass++ {
		batch, err := o.store.Sample(o.cfg.BatchSize)
		if errors.Is(err, replay.ErrInsufficientData) {
			o.logger.Warn().Err(err).Int("round", o.round).Msg("skipping update")
			return model.RoundMetrics{}, false, nil
		}
		if err != nil {
			return model.RoundMetrics{}, false, err
		}

		adv, err := estimator.Estimate(batch)
		if err != nil {
			return model.RoundMetrics{}, false, o.engineError(ppo.EngineAdvantage, pass, err)
		}
		pr, err := policy.Update(batch, adv)
		if err != nil {
			return model.RoundMetrics{}, false, o.engineError(ppo.EnginePolicy, pass, err)
		}
		dl, err := discriminator.Update(batch)
		if err != nil {
			return model.RoundMetrics{}, false, o.engineError(ppo.EngineDiscriminator, pass, err)
		}
		cl, err := critic.Update(batch)
		if err != nil {
			return model.RoundMetrics{}, false, o.engineError(ppo.EngineCritic, pass, err)
		}

		metrics.Passes++
		metrics.PolicyLoss += pr.SurrogateLoss
		metrics.AdversarialLoss += pr.AdversarialLoss
		metrics.ClipFraction += pr.ClipFraction
		metrics.DiscriminatorLoss += dl
		metrics.CriticLoss += cl
		metrics.MeanAdvantage += mean(adv.Advantage)
		metrics.MeanReward += mean(adv.MeanReward)
	}

	n := float64(metrics.Passes)
	metrics.PolicyLoss /= n
	metrics.AdversarialLoss /= n
	metrics.ClipFraction /= n
	metrics.DiscriminatorLoss /= n
	metrics.CriticLoss /= n
	metrics.MeanAdvantage /= n
	metrics.MeanReward /= n

	o.logger.Info().
		Int("round", metrics.Round).
		Int("step", metrics.Step).
		Float64("policy_loss", metrics.PolicyLoss).
		Float64("adversarial_loss", metrics.AdversarialLoss).
		Float64("discriminator_loss", metrics.DiscriminatorLoss).
		Float64("critic_loss", metrics.CriticLoss).
		Float64("clip_fraction", metrics.ClipFraction).
		Msg("update round complete")
	if o.observer != nil {
		o.observer(metrics)
	}
	return metrics, true, nil
}

func (o *Orchestrator) engineError(engine string, pass int, err error) error {
	if errors.Is(err, ppo.ErrNonFinite) {
		instability := &ppo.NumericalInstabilityError{Engine: engine, Round: o.round, Pass: pass, Err: err}
		o.logger.Error().Err(instability).Str("engine", engine).Int("round", o.round).Msg("update aborted")
		return instability
	}
	return fmt.Errorf("round %d pass %d %s update: %w", o.round, pass, engine, err)
}

// RunEpoch makes one full pass over src, then resets it.
func (o *Orchestrator) RunEpoch(ctx context.Context, src dataset.Source) (EpochSummary, error) {
	summary := EpochSummary{Epoch: o.epoch}
	var rewardSum float64
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		samples, pullErr := dataset.Pull(ctx, src, o.cfg.SamplesPerStep)
		if pullErr != nil && !errors.Is(pullErr, io.EOF) {
			return summary, fmt.Errorf("pull from %s: %w", src.Name(), pullErr)
		}
		if len(samples) > 0 {
			transitions, metrics, updated, err := o.step(ctx, samples)
			if err != nil {
				return summary, err
			}
			for _, t := range transitions {
				rewardSum += reward.MeanReward(t.Reward)
			}
			summary.Steps++
			summary.Samples += len(samples)
			if updated {
				summary.Rounds++
				summary.Last = metrics
			}
		}
		if pullErr != nil {
			break
		}
	}
	if summary.Samples == 0 {
		return summary, fmt.Errorf("%s: %w", src.Name(), dataset.ErrEmptySource)
	}
	summary.MeanReward = rewardSum / float64(summary.Samples)

	if err := src.Reset(ctx); err != nil {
		return summary, fmt.Errorf("reset %s: %w", src.Name(), err)
	}
	o.logger.Info().
		Int("epoch", summary.Epoch).
		Int("steps", summary.Steps).
		Int("rounds", summary.Rounds).
		Float64("mean_reward", summary.MeanReward).
		Msg("epoch complete")
	o.epoch++
	return summary, nil
}

// Run trains for epochs passes over src. A non-positive count runs until ctx
// is cancelled.
func (o *Orchestrator) Run(ctx context.Context, src dataset.Source, epochs int) ([]EpochSummary, error) {
	var out []EpochSummary
	for i := 0; epochs <= 0 || i < epochs; i++ {
		summary, err := o.RunEpoch(ctx, src)
		if err != nil {
			return out, err
		}
		out = append(out, summary)
	}
	return out, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}
