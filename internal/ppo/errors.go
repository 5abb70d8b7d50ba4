package ppo

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyBatch  = errors.New("empty batch")
	ErrNonFinite   = errors.New("non-finite value")
	ErrBatchLength = errors.New("batch length mismatch")
)

const (
	EnginePolicy        = "policy"
	EngineDiscriminator = "discriminator"
	EngineCritic        = "critic"
	EngineAdvantage     = "advantage"
)

// NumericalInstabilityError reports the engine and round whose update was
// aborted before any parameters were changed.
type NumericalInstabilityError struct {
	Engine string
	Round  int
	Pass   int
	Err    error
}

func (e *NumericalInstabilityError) Error() string {
	return fmt.Sprintf("%s update aborted in round %d pass %d: %v", e.Engine, e.Round, e.Pass, e.Err)
}

func (e *NumericalInstabilityError) Unwrap() error {
	return e.Err
}
