// Package rate converts pairs of raw counter samples into bits-per-second
// rate samples, classifying counter wraparound, device resets, and clock
// anomalies on the way. The calculator is pure and stateless; baseline
// tracking lives with the per-target poll state in the scheduler.
package rate

import (
	"math"

	"github.com/netwatch/trafikwatch/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Policy
// ─────────────────────────────────────────────────────────────────────────────

// Policy holds the tunable thresholds separating a genuine counter wrap from
// a device reset or a reordered read. The boundaries are operational policy,
// not protocol-defined, so they are configuration rather than constants.
type Policy struct {
	// CeilingBps is the absolute upper bound on any emitted rate. A modular
	// delta implying more than this for the elapsed time is classified as a
	// reset and the sample marked invalid.
	CeilingBps float64

	// SpeedHeadroom multiplies a known interface speed to form a tighter
	// per-interface ceiling. Ignored when the speed is unknown (zero).
	SpeedHeadroom float64

	// WrapGuardFraction bounds how far a counter may step backwards, as a
	// fraction of the counter range, before the decrement is treated as a
	// wrap rather than a reordered or duplicate read. A backstep smaller
	// than this fraction of the range is an anomaly: real wraps land near
	// the top of the range.
	WrapGuardFraction float64
}

// DefaultPolicy returns the thresholds used when the configuration does not
// override them: 1 Tbps absolute ceiling, 2x speed headroom, 1% wrap guard.
func DefaultPolicy() Policy {
	return Policy{
		CeilingBps:        1e12,
		SpeedHeadroom:     2.0,
		WrapGuardFraction: 0.01,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.CeilingBps <= 0 {
		p.CeilingBps = d.CeilingBps
	}
	if p.SpeedHeadroom <= 0 {
		p.SpeedHeadroom = d.SpeedHeadroom
	}
	if p.WrapGuardFraction <= 0 {
		p.WrapGuardFraction = d.WrapGuardFraction
	}
	return p
}

// ─────────────────────────────────────────────────────────────────────────────
// Calculator
// ─────────────────────────────────────────────────────────────────────────────

// Calculator computes RateSamples from consecutive RawSamples under a fixed
// Policy. Safe for concurrent use.
type Calculator struct {
	policy Policy
}

// NewCalculator builds a Calculator; zero-valued policy fields fall back to
// DefaultPolicy.
func NewCalculator(policy Policy) *Calculator {
	return &Calculator{policy: policy.withDefaults()}
}

// Compute derives a RateSample from the previous and current raw samples for
// one interface. speedBps is the interface speed when known (0 otherwise) and
// only tightens the sanity ceiling.
//
// The sample is marked invalid — never negative, never a spike — when:
//   - prev is nil (first poll; no delta derivable yet),
//   - the clock did not advance between samples,
//   - either counter stepped backwards by less than the wrap guard
//     (a reordered or duplicate read, not a wrap),
//   - the modular delta implies a rate beyond the sanity ceiling
//     (a device reset masquerading as a wrap).
//
// Callers must store cur as the new baseline regardless of the outcome, so a
// single bad reading cannot poison every subsequent delta.
func (c *Calculator) Compute(prev *models.RawSample, cur models.RawSample, speedBps uint64) models.RateSample {
	invalid := models.RateSample{Timestamp: cur.Timestamp}

	if prev == nil {
		return invalid
	}

	elapsed := cur.Timestamp.Sub(prev.Timestamp).Seconds()
	if elapsed <= 0 {
		return invalid
	}

	inDelta, ok := c.counterDelta(prev.InOctets, cur.InOctets, cur.CounterBits)
	if !ok {
		return invalid
	}
	outDelta, ok := c.counterDelta(prev.OutOctets, cur.OutOctets, cur.CounterBits)
	if !ok {
		return invalid
	}

	inBps := float64(inDelta) * 8 / elapsed
	outBps := float64(outDelta) * 8 / elapsed

	ceiling := c.policy.CeilingBps
	if speedBps > 0 {
		if tight := float64(speedBps) * c.policy.SpeedHeadroom; tight < ceiling {
			ceiling = tight
		}
	}
	if inBps > ceiling || outBps > ceiling {
		return invalid
	}

	return models.RateSample{
		Timestamp: cur.Timestamp,
		InBps:     inBps,
		OutBps:    outBps,
		Valid:     true,
	}
}

// counterDelta returns the modular delta between two counter readings, and
// whether the delta is usable at all. A backwards step that is small relative
// to the counter range cannot be a wrap — wrapped counters reappear near
// zero after leaving the top of the range — so it is rejected as an anomaly
// instead of being folded into an enormous modular delta.
func (c *Calculator) counterDelta(prev, cur uint64, bits int) (uint64, bool) {
	counterRange := rangeForBits(bits)

	if cur >= prev {
		return cur - prev, true
	}

	backstep := prev - cur
	guard := uint64(float64(counterRange) * c.policy.WrapGuardFraction)
	if backstep < guard {
		return 0, false
	}

	// Genuine wrap: modular arithmetic over the counter width. The sanity
	// ceiling applied by Compute catches resets that land here.
	if bits == models.Counter32Bits {
		return counterRange - prev + cur, true
	}
	// 64-bit: counterRange is MaxUint64, delta is (2^64 - prev) + cur.
	return (math.MaxUint64 - prev) + cur + 1, true
}

// rangeForBits returns the counter range (2^bits - 1 for 64-bit to avoid
// overflow; exactly 2^32 fits in a uint64 for the 32-bit case).
func rangeForBits(bits int) uint64 {
	if bits == models.Counter32Bits {
		return 1 << 32
	}
	return math.MaxUint64
}
