package dataset

import (
	"context"

	"pixelppo/internal/model"
)

type fetched struct {
	sample model.Sample
	err    error
}

// Prefetcher reads ahead from a source on a background goroutine. Callers
// still see a synchronous Source; the wrapped source is only touched by the
// goroutine while it runs.
type Prefetcher struct {
	src   Source
	depth int

	ch       chan fetched
	cancel   context.CancelFunc
	done     chan struct{}
	finished error
}

func Prefetch(src Source, depth int) *Prefetcher {
	if depth <= 0 {
		depth = 1
	}
	return &Prefetcher{src: src, depth: depth}
}

func (p *Prefetcher) Name() string {
	return p.src.Name()
}

func (p *Prefetcher) Next(ctx context.Context) (model.Sample, error) {
	if err := ctx.Err(); err != nil {
		return model.Sample{}, err
	}
	if p.finished != nil {
		return model.Sample{}, p.finished
	}
	if p.ch == nil {
		p.start()
	}
	select {
	case <-ctx.Done():
		return model.Sample{}, ctx.Err()
	case r := <-p.ch:
		if r.err != nil {
			p.finished = r.err
			return model.Sample{}, r.err
		}
		return r.sample, nil
	}
}

func (p *Prefetcher) Reset(ctx context.Context) error {
	p.stop()
	p.finished = nil
	return p.src.Reset(ctx)
}

func (p *Prefetcher) Close() error {
	p.stop()
	return nil
}

func (p *Prefetcher) start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.ch = make(chan fetched, p.depth)
	p.cancel = cancel
	p.done = make(chan struct{})

	go func(ch chan<- fetched, done chan<- struct{}) {
		defer close(done)
		for {
			sample, err := p.src.Next(ctx)
			select {
			case ch <- fetched{sample: sample, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}(p.ch, p.done)
}

func (p *Prefetcher) stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.ch = nil
	p.done = nil
}
