package dataset

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"pixelppo/internal/model"
)

func drain(t *testing.T, src Source) []model.Sample {
	t.Helper()
	var out []model.Sample
	for {
		sample, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		out = append(out, sample)
	}
}

func TestSyntheticIsImbalancedAndNormalised(t *testing.T) {
	cfg := DefaultSyntheticConfig()
	cfg.Samples = 8
	cfg.Channels = 2
	src, err := NewSynthetic(cfg)
	if err != nil {
		t.Fatalf("new synthetic: %v", err)
	}
	samples := drain(t, src)
	if len(samples) != 8 {
		t.Fatalf("expected 8 samples, got %d", len(samples))
	}
	for i, s := range samples {
		var fg float64
		for _, v := range s.Target.Data {
			if v != 0 && v != 1 {
				t.Fatalf("sample %d has non-binary target %f", i, v)
			}
			fg += v
		}
		frac := fg / float64(s.Target.Len())
		if frac <= 0 || frac > 0.2 {
			t.Fatalf("sample %d foreground fraction %f", i, frac)
		}
		if s.Input.Channels != 2 || s.Input.Plane() != 256 {
			t.Fatalf("unexpected input shape: %dx%dx%d", s.Input.Channels, s.Input.Height, s.Input.Width)
		}
		var mean float64
		for _, v := range s.Input.Data[:256] {
			mean += v / 256
		}
		if math.Abs(mean) > 1e-9 {
			t.Fatalf("sample %d channel 0 mean %f", i, mean)
		}
	}
}

func TestSyntheticEpochsRepeat(t *testing.T) {
	cfg := DefaultSyntheticConfig()
	cfg.Samples = 3
	src, _ := NewSynthetic(cfg)
	first := drain(t, src)
	if err := src.Reset(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	second := drain(t, src)
	for i := range first {
		for j := range first[i].Input.Data {
			if first[i].Input.Data[j] != second[i].Input.Data[j] {
				t.Fatalf("sample %d differs across epochs", i)
			}
		}
	}
}

func TestSyntheticValidation(t *testing.T) {
	cfg := DefaultSyntheticConfig()
	cfg.ForegroundFraction = 1
	if _, err := NewSynthetic(cfg); err == nil {
		t.Fatal("expected foreground fraction error")
	}
	cfg = DefaultSyntheticConfig()
	cfg.Samples = 0
	if _, err := NewSynthetic(cfg); err == nil {
		t.Fatal("expected samples error")
	}
}

func TestPrefetchPreservesOrderAndResets(t *testing.T) {
	cfg := DefaultSyntheticConfig()
	cfg.Samples = 5
	direct, _ := NewSynthetic(cfg)
	want := drain(t, direct)

	inner, _ := NewSynthetic(cfg)
	pf := Prefetch(inner, 2)
	defer pf.Close()

	for epoch := 0; epoch < 2; epoch++ {
		got := drain(t, pf)
		if len(got) != len(want) {
			t.Fatalf("epoch %d: got %d samples want %d", epoch, len(got), len(want))
		}
		for i := range want {
			if got[i].Input.Data[0] != want[i].Input.Data[0] {
				t.Fatalf("epoch %d sample %d out of order", epoch, i)
			}
		}
		if _, err := pf.Next(context.Background()); !errors.Is(err, io.EOF) {
			t.Fatalf("expected sticky EOF, got %v", err)
		}
		if err := pf.Reset(context.Background()); err != nil {
			t.Fatalf("reset: %v", err)
		}
	}
}

func TestPrefetchHonoursContext(t *testing.T) {
	pf := Prefetch(NewSliceSource("s", []model.Sample{{}}), 1)
	defer pf.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pf.Next(ctx); err == nil {
		t.Fatal("expected context error")
	}
}

func TestPull(t *testing.T) {
	src := NewSliceSource("s", make([]model.Sample, 5))
	batch, err := Pull(context.Background(), src, 3)
	if err != nil || len(batch) != 3 {
		t.Fatalf("first pull: n=%d err=%v", len(batch), err)
	}
	batch, err = Pull(context.Background(), src, 3)
	if !errors.Is(err, io.EOF) || len(batch) != 2 {
		t.Fatalf("second pull: n=%d err=%v", len(batch), err)
	}
}

func TestNormalizeConstantChannel(t *testing.T) {
	f, _ := model.FieldFrom(1, 1, 3, []float64{2, 2, 2})
	Normalize(f)
	for _, v := range f.Data {
		if v != 0 {
			t.Fatalf("expected centred constant channel, got %v", f.Data)
		}
	}
}
