package models

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Raw counter samples
// ─────────────────────────────────────────────────────────────────────────────

// Counter bit widths as reported by the poller. High-capacity IF-MIB counters
// (ifHCInOctets/ifHCOutOctets) are 64-bit; the legacy columns are 32-bit.
const (
	Counter32Bits = 32
	Counter64Bits = 64
)

// RawSample is one raw counter reading for a single interface: both octet
// counters from one protocol read, stamped with the read time. It is consumed
// immediately by the rate calculator and then discarded — only the most recent
// RawSample is retained per target, as the baseline for the next delta.
type RawSample struct {
	// Timestamp is the wall-clock time the response was received.
	Timestamp time.Time

	// InOctets and OutOctets are the monotonic byte counters.
	InOctets  uint64
	OutOctets uint64

	// CounterBits is the counter width: Counter32Bits or Counter64Bits.
	CounterBits int
}

// ─────────────────────────────────────────────────────────────────────────────
// Computed rate samples
// ─────────────────────────────────────────────────────────────────────────────

// RateSample is one computed data point: in/out rates in bits per second plus
// a validity flag. Invalid samples (first poll, clock anomaly, counter wrap
// that failed the sanity check, device reset) are still appended to history so
// charts show a gap rather than a fabricated spike. Immutable once created.
type RateSample struct {
	Timestamp time.Time

	// InBps and OutBps are non-negative bits-per-second rates.
	// Zero when Valid is false.
	InBps  float64
	OutBps float64

	// Valid reports whether the rates are derived from a clean counter delta.
	Valid bool
}

// OperStatus values from IF-MIB ifOperStatus.
const (
	OperUp      = 1
	OperDown    = 2
	OperTesting = 3
)

// OperStatusText renders an ifOperStatus value as the conventional short form.
func OperStatusText(status int) string {
	switch status {
	case OperUp:
		return "up"
	case OperDown:
		return "down"
	case OperTesting:
		return "testing"
	default:
		return "?"
	}
}

// Utilization returns the utilization percentage of the busier direction for
// a given link speed in bits/sec. Zero when the speed is unknown.
func Utilization(s RateSample, speedBps uint64) float64 {
	if speedBps == 0 || !s.Valid {
		return 0
	}
	in := s.InBps / float64(speedBps) * 100
	out := s.OutBps / float64(speedBps) * 100
	if out > in {
		return out
	}
	return in
}

// FormatRate renders a bits-per-second value in human form.
func FormatRate(bps float64) string {
	switch {
	case bps >= 1e9:
		return fmt.Sprintf("%.1f Gbps", bps/1e9)
	case bps >= 1e6:
		return fmt.Sprintf("%.1f Mbps", bps/1e6)
	case bps >= 1e3:
		return fmt.Sprintf("%.1f Kbps", bps/1e3)
	default:
		return fmt.Sprintf("%.0f bps", bps)
	}
}
