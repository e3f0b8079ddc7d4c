// Package tension scores how overdue a recurring obligation is.
//
// A Frequency describes the desired cadence of a recurring event: a
// mean interval, a tolerance around it, a minimum gap below which the
// event should never repeat, and an optional maximum gap at which it is
// unconditionally due. Tension maps elapsed time since the last
// occurrence onto [0, 1]: 0 below the minimum, 0.5 at the mean, rising
// along a normal CDF, clamped to 1 at the maximum.
//
// Two encodings of the same idea live here. The continuous Tension is
// for inspection, sorting and tests. Reward is the solver-compatible
// piecewise form: a staircase of three buckets (too early / just right
// / too late, rewarded 1 / 3 / 2) expressed as reified linear
// constraints, so the scheduler's linear objective can trade competing
// obligations off against each other. The bucket boundaries sit at
// mean-tolerance and mean+tolerance; both directions of each
// reification are asserted, so the bucket is forced by the elapsed
// value rather than left to the optimizer's choice.
package tension

import (
	"errors"
	"fmt"
	"math"
	"time"

	"hora/pkg/sched"
)

// ErrBadFrequency rejects malformed cadence parameters at construction.
var ErrBadFrequency = errors.New("tension: invalid frequency")

// Frequency is the cadence of a recurring obligation.
type Frequency struct {
	Mean      time.Duration
	Tolerance time.Duration
	Min       time.Duration
	Max       time.Duration // zero: no maximum
}

// NewFrequency validates and applies defaults: a missing tolerance
// becomes a tenth of the mean.
func NewFrequency(mean, tolerance, min, max time.Duration) (Frequency, error) {
	if mean <= 0 {
		return Frequency{}, fmt.Errorf("%w: mean must be positive", ErrBadFrequency)
	}
	if tolerance < 0 || min < 0 || max < 0 {
		return Frequency{}, fmt.Errorf("%w: negative parameter", ErrBadFrequency)
	}
	if tolerance == 0 {
		tolerance = mean / 10
	}
	if max != 0 && max < mean {
		return Frequency{}, fmt.Errorf("%w: max %s below mean %s", ErrBadFrequency, max, mean)
	}
	if min > mean {
		return Frequency{}, fmt.Errorf("%w: min %s above mean %s", ErrBadFrequency, min, mean)
	}
	return Frequency{Mean: mean, Tolerance: tolerance, Min: min, Max: max}, nil
}

// Every is NewFrequency with defaults for everything but the mean.
func Every(mean time.Duration) (Frequency, error) {
	return NewFrequency(mean, 0, 0, 0)
}

// Tension returns how tense the obligation is after the elapsed time,
// in [0, 1]. Exactly 0.5 at the mean.
func (f Frequency) Tension(elapsed time.Duration) float64 {
	if elapsed <= f.Min {
		return 0
	}
	if f.Max > 0 && elapsed >= f.Max {
		return 1
	}
	z := (elapsed.Seconds() - f.Mean.Seconds()) / f.Tolerance.Seconds()
	return normCDF(z)
}

// normCDF is the standard normal cumulative distribution.
func normCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}

// Bucket rewards. Just-right beats too-late so the objective favors
// keeping cadence over perpetually catching up, and too-late beats
// too-early so overdue obligations outrank fresh ones.
const (
	RewardTooEarly  = 1
	RewardTooLate   = 2
	RewardJustRight = 3
)

// Bucket returns the reward bucket the elapsed duration falls into,
// mirroring the solver encoding for tests and inspection.
func (f Frequency) Bucket(elapsed time.Duration) int64 {
	switch {
	case elapsed < f.Mean-f.Tolerance:
		return RewardTooEarly
	case elapsed > f.Mean+f.Tolerance:
		return RewardTooLate
	default:
		return RewardJustRight
	}
}

// Reward builds the piecewise bucket encoding on the given model
// builder and returns a handle holding the reward scalar in [1, 3].
// elapsed is any integer handle in seconds (often a constant). The
// three bucket indicators partition the elapsed axis, so exactly one
// is forced true regardless of presence; gating per-event scores on
// presence is the caller's concern.
func (f Frequency) Reward(b *sched.Builder, name string, elapsed sched.Handle) sched.Handle {
	loEdge := int64((f.Mean - f.Tolerance) / time.Second)
	hiEdge := int64((f.Mean + f.Tolerance) / time.Second)

	early := b.BoolVar(name + "_too_early")
	right := b.BoolVar(name + "_just_right")
	late := b.BoolVar(name + "_too_late")

	// Both directions of each bucket, so elapsed determines the bucket.
	b.Add(sched.LT(sched.V(elapsed), sched.K(loEdge)), sched.When(early))
	b.Add(sched.GE(sched.V(elapsed), sched.K(loEdge)), sched.Unless(early))
	b.Add(sched.GE(sched.V(elapsed), sched.K(loEdge)), sched.When(right))
	b.Add(sched.LE(sched.V(elapsed), sched.K(hiEdge)), sched.When(right))
	b.Add(sched.GT(sched.V(elapsed), sched.K(hiEdge)), sched.When(late))
	b.Add(sched.LE(sched.V(elapsed), sched.K(hiEdge)), sched.Unless(late))
	b.ExactlyOne([]sched.Lit{sched.When(early), sched.When(right), sched.When(late)})

	score := b.IntVar(name+"_tension", RewardTooEarly, RewardJustRight)
	b.Add(sched.EQ(sched.V(score),
		sched.Add(
			sched.Add(
				sched.Mul(RewardTooEarly, sched.V(early)),
				sched.Mul(RewardJustRight, sched.V(right))),
			sched.Mul(RewardTooLate, sched.V(late)))))
	return score
}
