package tension

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"hora/pkg/sched"
)

func TestNewFrequencyValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name                      string
		mean, tolerance, min, max time.Duration
		ok                        bool
	}{
		{name: "plain", mean: 24 * time.Hour, ok: true},
		{name: "full", mean: 24 * time.Hour, tolerance: 2 * time.Hour, min: 12 * time.Hour, max: 72 * time.Hour, ok: true},
		{name: "zero mean", mean: 0, ok: false},
		{name: "negative tolerance", mean: time.Hour, tolerance: -time.Minute, ok: false},
		{name: "max below mean", mean: 24 * time.Hour, max: 12 * time.Hour, ok: false},
		{name: "min above mean", mean: 12 * time.Hour, min: 24 * time.Hour, ok: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFrequency(tt.mean, tt.tolerance, tt.min, tt.max)
			if tt.ok {
				if err != nil {
					t.Fatalf("NewFrequency error: %v", err)
				}
				if f.Tolerance == 0 {
					t.Fatal("tolerance default not applied")
				}
				return
			}
			if !errors.Is(err, ErrBadFrequency) {
				t.Fatalf("error = %v, want ErrBadFrequency", err)
			}
		})
	}
}

func TestTensionCurve(t *testing.T) {
	t.Parallel()
	f, err := NewFrequency(24*time.Hour, 2*time.Hour, 6*time.Hour, 96*time.Hour)
	if err != nil {
		t.Fatalf("NewFrequency: %v", err)
	}

	if got := f.Tension(0); got != 0 {
		t.Fatalf("Tension(0) = %v, want 0", got)
	}
	if got := f.Tension(6 * time.Hour); got != 0 {
		t.Fatalf("Tension(min) = %v, want 0", got)
	}
	if got := f.Tension(24 * time.Hour); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("Tension(mean) = %v, want 0.5", got)
	}
	if got := f.Tension(96 * time.Hour); got != 1 {
		t.Fatalf("Tension(max) = %v, want 1", got)
	}
	if got := f.Tension(200 * time.Hour); got != 1 {
		t.Fatalf("Tension past max = %v, want 1", got)
	}

	// Strictly rising between min and max.
	prev := -1.0
	for h := 8; h <= 40; h += 4 {
		cur := f.Tension(time.Duration(h) * time.Hour)
		if cur <= prev {
			t.Fatalf("Tension not increasing at %dh: %v <= %v", h, cur, prev)
		}
		prev = cur
	}

	// A couple of tolerances past the mean is essentially fully tense.
	if got := f.Tension(30 * time.Hour); got < 0.99 {
		t.Fatalf("Tension(mean+3tol) = %v, want near 1", got)
	}
}

func TestBucket(t *testing.T) {
	t.Parallel()
	f, err := NewFrequency(24*time.Hour, 2*time.Hour, 0, 0)
	if err != nil {
		t.Fatalf("NewFrequency: %v", err)
	}
	tests := []struct {
		elapsed time.Duration
		want    int64
	}{
		{elapsed: time.Hour, want: RewardTooEarly},
		{elapsed: 22*time.Hour - time.Second, want: RewardTooEarly},
		{elapsed: 22 * time.Hour, want: RewardJustRight},
		{elapsed: 24 * time.Hour, want: RewardJustRight},
		{elapsed: 26 * time.Hour, want: RewardJustRight},
		{elapsed: 26*time.Hour + time.Second, want: RewardTooLate},
		{elapsed: 100 * time.Hour, want: RewardTooLate},
	}
	for _, tt := range tests {
		if got := f.Bucket(tt.elapsed); got != tt.want {
			t.Fatalf("Bucket(%v) = %d, want %d", tt.elapsed, got, tt.want)
		}
	}
}

func TestRewardMatchesBucket(t *testing.T) {
	t.Parallel()
	f, err := NewFrequency(24*time.Hour, 2*time.Hour, 0, 0)
	if err != nil {
		t.Fatalf("NewFrequency: %v", err)
	}

	for i, elapsed := range []time.Duration{time.Hour, 23 * time.Hour, 60 * time.Hour} {
		b := sched.NewBuilder()
		h := b.Constant(int64(elapsed / time.Second))
		score := f.Reward(b, fmt.Sprintf("chore_%d", i), h)

		asg, err := b.Solve(context.Background(), 5*time.Second)
		if err != nil {
			t.Fatalf("Solve: %v", err)
		}
		if got, want := asg.Value(b, score), f.Bucket(elapsed); got != want {
			t.Fatalf("Reward(%v) solved to %d, want bucket %d", elapsed, got, want)
		}
	}
}
