package replay

import (
	"errors"
	"fmt"
	"math/rand"

	"pixelppo/internal/model"
)

var ErrInsufficientData = errors.New("insufficient transitions in store")

// Store is a fixed-capacity ring of transitions. Once full, Push overwrites
// the oldest slot. It is not safe for concurrent use; the trainer owns it.
type Store struct {
	slots   []model.Transition
	head    int // index of the oldest transition
	count   int
	rng     *rand.Rand
	scratch []int
}

func NewStore(capacity int, rng *rand.Rand) (*Store, error) {
	if capacity <= 0 {
		return nil, errors.New("capacity must be greater than zero")
	}
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	return &Store{
		slots:   make([]model.Transition, capacity),
		rng:     rng,
		scratch: make([]int, capacity),
	}, nil
}

func (s *Store) Push(t model.Transition) {
	capacity := len(s.slots)
	if s.count < capacity {
		s.slots[(s.head+s.count)%capacity] = t
		s.count++
		return
	}
	s.slots[s.head] = t
	s.head = (s.head + 1) % capacity
}

// Sample draws n distinct transitions uniformly at random. The store is not
// consumed, so separate draws may overlap.
func (s *Store) Sample(n int) ([]model.Transition, error) {
	if n < 0 {
		return nil, fmt.Errorf("sample size must be >= 0, got %d", n)
	}
	if s.count < n {
		return nil, fmt.Errorf("%w: want %d, have %d", ErrInsufficientData, n, s.count)
	}

	idx := s.scratch[:s.count]
	for i := range idx {
		idx[i] = i
	}
	out := make([]model.Transition, n)
	for i := 0; i < n; i++ {
		j := i + s.rng.Intn(s.count-i)
		idx[i], idx[j] = idx[j], idx[i]
		out[i] = s.slots[(s.head+idx[i])%len(s.slots)]
	}
	return out, nil
}

func (s *Store) Size() int {
	return s.count
}

func (s *Store) Capacity() int {
	return len(s.slots)
}

func (s *Store) Clear() {
	if s.count == 0 {
		return
	}
	for i := range s.slots {
		s.slots[i] = model.Transition{}
	}
	s.head = 0
	s.count = 0
}

// Snapshot returns the stored transitions oldest first.
func (s *Store) Snapshot() []model.Transition {
	out := make([]model.Transition, s.count)
	for i := range out {
		out[i] = s.slots[(s.head+i)%len(s.slots)]
	}
	return out
}
