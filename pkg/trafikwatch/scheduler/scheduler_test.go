package scheduler_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/netwatch/trafikwatch/models"
	"github.com/netwatch/trafikwatch/pkg/trafikwatch/poller"
	"github.com/netwatch/trafikwatch/pkg/trafikwatch/scheduler"
)

// ─────────────────────────────────────────────────────────────────────────────
// Mock poller
// ─────────────────────────────────────────────────────────────────────────────

// mockPoller serves pre-scripted counter readings. Each Read consumes the
// next reading for the target; timestamps are scripted too, so rate math is
// deterministic regardless of how fast the test runs.
type mockPoller struct {
	mu       sync.Mutex
	readings map[string][]poller.InterfaceStats
	reads    map[string]int
	index    int
	resolves int
	readErr  error
	block    chan struct{} // when non-nil, Read waits on it
}

func (m *mockPoller) Read(ctx context.Context, target models.Target) (poller.InterfaceStats, error) {
	m.mu.Lock()
	block := m.block
	m.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return poller.InterfaceStats{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return poller.InterfaceStats{}, m.readErr
	}
	key := target.Key()
	n := m.reads[key]
	m.reads[key] = n + 1
	script := m.readings[key]
	if n >= len(script) {
		return poller.InterfaceStats{}, fmt.Errorf("no reading scripted for %s poll %d", key, n)
	}
	return script[n], nil
}

func (m *mockPoller) ResolveIndex(ctx context.Context, target models.Target) (int, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolves++
	if m.index == 0 {
		return 0, "", fmt.Errorf("interface %q not found", target.IfName)
	}
	return m.index, "uplink", nil
}

func (m *mockPoller) readCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads[key]
}

func newMockPoller() *mockPoller {
	return &mockPoller{
		readings: make(map[string][]poller.InterfaceStats),
		reads:    make(map[string]int),
		index:    4,
	}
}

func statsAt(t0 time.Time, offset time.Duration, in, out uint64) poller.InterfaceStats {
	return poller.InterfaceStats{
		Sample: models.RawSample{
			Timestamp:   t0.Add(offset),
			InOctets:    in,
			OutOctets:   out,
			CounterBits: models.Counter64Bits,
		},
		SpeedBps:   1_000_000_000,
		OperStatus: models.OperUp,
	}
}

func schedTarget(host, ifName string) models.Target {
	return models.Target{
		Host:   host,
		Port:   161,
		IfName: ifName,
		Identity: models.CredentialIdentity{
			Version:   "2c",
			Community: "public",
		},
	}
}

// waitFor polls cond until it reports true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func startScheduler(t *testing.T, s *scheduler.Scheduler) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(func() {
		cancel()
		s.Stop()
	})
	return cancel
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestPollCycleProducesRates(t *testing.T) {
	target := schedTarget("10.0.0.1", "eth0")
	key := target.Key()
	t0 := time.Now()

	mock := newMockPoller()
	mock.readings[key] = []poller.InterfaceStats{
		statsAt(t0, 0, 1000, 1000),
		statsAt(t0, 10*time.Second, 2000, 2000),
		statsAt(t0, 20*time.Second, 3500, 3500),
	}

	s := scheduler.New([]models.Target{target}, mock, scheduler.Options{
		Interval:   time.Hour, // ticks never fire; the test drives polls
		MaxHistory: 10,
	}, nil)
	startScheduler(t, s)

	// Run launches an immediate first round.
	waitFor(t, time.Second, func() bool { return mock.readCount(key) == 1 },
		"first poll did not complete")

	s.PollNow(key)
	waitFor(t, time.Second, func() bool { return mock.readCount(key) == 2 },
		"second poll did not complete")
	s.PollNow(key)
	waitFor(t, time.Second, func() bool { return mock.readCount(key) == 3 },
		"third poll did not complete")

	waitFor(t, time.Second, func() bool {
		return len(s.CurrentSnapshot()[0].History) == 3
	}, "history did not reach 3 samples")

	snap := s.CurrentSnapshot()[0]
	hist := snap.History

	if hist[0].Valid {
		t.Error("first sample should be invalid (no baseline)")
	}
	if !hist[1].Valid || hist[1].InBps != 800 {
		t.Errorf("second sample = %v valid=%v, want 800 valid", hist[1].InBps, hist[1].Valid)
	}
	if !hist[2].Valid || hist[2].InBps != 1200 {
		t.Errorf("third sample = %v valid=%v, want 1200 valid", hist[2].InBps, hist[2].Valid)
	}
	if snap.Phase != scheduler.PhaseSucceeded {
		t.Errorf("phase = %v, want succeeded", snap.Phase)
	}
	if snap.Target.IfIndex != 4 {
		t.Errorf("IfIndex = %d, want 4 from resolution", snap.Target.IfIndex)
	}
	if snap.Alias != "uplink" {
		t.Errorf("alias = %q, want uplink", snap.Alias)
	}
}

func TestIndexResolvedOncePerTarget(t *testing.T) {
	target := schedTarget("10.0.0.1", "eth0")
	key := target.Key()
	t0 := time.Now()

	mock := newMockPoller()
	mock.readings[key] = []poller.InterfaceStats{
		statsAt(t0, 0, 1000, 1000),
		statsAt(t0, 10*time.Second, 2000, 2000),
	}

	s := scheduler.New([]models.Target{target}, mock, scheduler.Options{
		Interval: time.Hour,
	}, nil)
	startScheduler(t, s)

	waitFor(t, time.Second, func() bool { return mock.readCount(key) == 1 }, "first poll")
	s.PollNow(key)
	waitFor(t, time.Second, func() bool { return mock.readCount(key) == 2 }, "second poll")

	mock.mu.Lock()
	resolves := mock.resolves
	mock.mu.Unlock()
	if resolves != 1 {
		t.Errorf("resolves = %d, want 1 (index cached after first poll)", resolves)
	}
}

func TestOverlappingPollIsSkippedAndCounted(t *testing.T) {
	target := schedTarget("10.0.0.1", "eth0")
	key := target.Key()
	t0 := time.Now()

	mock := newMockPoller()
	mock.index = 4
	mock.block = make(chan struct{})
	mock.readings[key] = []poller.InterfaceStats{
		statsAt(t0, 0, 1000, 1000),
		statsAt(t0, 10*time.Second, 2000, 2000),
	}

	s := scheduler.New([]models.Target{target}, mock, scheduler.Options{
		Interval: time.Hour,
		Timeout:  time.Hour,
	}, nil)
	startScheduler(t, s)

	// First poll is blocked inside Read. Fire two more requests at it.
	waitFor(t, time.Second, func() bool {
		return s.CurrentSnapshot()[0].Phase == scheduler.PhasePolling
	}, "target never entered polling phase")

	s.PollNow(key)
	s.PollNow(key)
	waitFor(t, time.Second, func() bool {
		return s.CurrentSnapshot()[0].MissedPolls == 2
	}, "overlapping polls were not counted as missed")

	close(mock.block)
	waitFor(t, time.Second, func() bool { return mock.readCount(key) == 1 }, "blocked poll")

	if n := mock.readCount(key); n != 1 {
		t.Errorf("reads = %d, want 1 (skipped cycles must not queue)", n)
	}
}

func TestFailedPollRecordsErrorAndRecovers(t *testing.T) {
	target := schedTarget("10.0.0.1", "eth0")
	key := target.Key()
	t0 := time.Now()

	mock := newMockPoller()
	mock.readErr = fmt.Errorf("request timeout")
	mock.readings[key] = []poller.InterfaceStats{
		statsAt(t0, 0, 1000, 1000),
	}

	s := scheduler.New([]models.Target{target}, mock, scheduler.Options{
		Interval: time.Hour,
	}, nil)
	startScheduler(t, s)

	waitFor(t, time.Second, func() bool {
		return s.CurrentSnapshot()[0].Phase == scheduler.PhaseFailed
	}, "target never entered failed phase")

	snap := s.CurrentSnapshot()[0]
	if snap.LastError == "" {
		t.Error("failed poll should record the error")
	}
	if len(snap.History) != 0 {
		t.Error("failed poll must not append a sample")
	}

	// Device comes back.
	mock.mu.Lock()
	mock.readErr = nil
	mock.mu.Unlock()

	s.PollNow(key)
	waitFor(t, time.Second, func() bool {
		return s.CurrentSnapshot()[0].Phase == scheduler.PhaseSucceeded
	}, "target did not recover")

	if s.CurrentSnapshot()[0].LastError != "" {
		t.Error("recovery should clear the error")
	}
}

func TestFailedResolutionRetriedNextPoll(t *testing.T) {
	target := schedTarget("10.0.0.1", "eth9")
	key := target.Key()
	t0 := time.Now()

	mock := newMockPoller()
	mock.index = 0 // resolution fails
	mock.readings[key] = []poller.InterfaceStats{
		statsAt(t0, 0, 1000, 1000),
	}

	s := scheduler.New([]models.Target{target}, mock, scheduler.Options{
		Interval: time.Hour,
	}, nil)
	startScheduler(t, s)

	waitFor(t, time.Second, func() bool {
		return s.CurrentSnapshot()[0].Phase == scheduler.PhaseFailed
	}, "unresolvable target should fail")

	mock.mu.Lock()
	mock.index = 4
	mock.mu.Unlock()

	s.PollNow(key)
	waitFor(t, time.Second, func() bool {
		return s.CurrentSnapshot()[0].Phase == scheduler.PhaseSucceeded
	}, "resolution was not retried")

	mock.mu.Lock()
	resolves := mock.resolves
	mock.mu.Unlock()
	if resolves != 2 {
		t.Errorf("resolves = %d, want 2", resolves)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	target := schedTarget("10.0.0.1", "eth0")
	key := target.Key()
	t0 := time.Now()

	mock := newMockPoller()
	mock.readings[key] = []poller.InterfaceStats{
		statsAt(t0, 0, 1000, 1000),
		statsAt(t0, 10*time.Second, 2000, 2000),
	}

	s := scheduler.New([]models.Target{target}, mock, scheduler.Options{
		Interval: time.Hour,
	}, nil)
	startScheduler(t, s)

	waitFor(t, time.Second, func() bool { return mock.readCount(key) == 1 }, "first poll")
	s.PollNow(key)
	waitFor(t, time.Second, func() bool { return mock.readCount(key) == 2 }, "second poll")

	snap := s.CurrentSnapshot()
	snap[0].History[0].InBps = 9999
	snap[0].MissedPolls = 42

	again := s.CurrentSnapshot()
	if again[0].History[0].InBps == 9999 {
		t.Error("mutating a snapshot's history leaked into the scheduler")
	}
	if again[0].MissedPolls == 42 {
		t.Error("mutating a snapshot leaked into the scheduler")
	}
}

func TestMultipleTargetsPollIndependently(t *testing.T) {
	a := schedTarget("10.0.0.1", "eth0")
	b := schedTarget("10.0.0.2", "eth0")
	t0 := time.Now()

	mock := newMockPoller()
	mock.readings[a.Key()] = []poller.InterfaceStats{statsAt(t0, 0, 1000, 1000)}
	mock.readings[b.Key()] = []poller.InterfaceStats{statsAt(t0, 0, 5000, 5000)}

	s := scheduler.New([]models.Target{a, b}, mock, scheduler.Options{
		Interval: time.Hour,
	}, nil)
	startScheduler(t, s)

	waitFor(t, time.Second, func() bool {
		return mock.readCount(a.Key()) == 1 && mock.readCount(b.Key()) == 1
	}, "both targets should poll on the first round")

	snaps := s.CurrentSnapshot()
	if len(snaps) != 2 {
		t.Fatalf("snapshot count = %d, want 2", len(snaps))
	}
	if snaps[0].Target.Key() != a.Key() || snaps[1].Target.Key() != b.Key() {
		t.Error("snapshot order should follow configuration order")
	}
}
