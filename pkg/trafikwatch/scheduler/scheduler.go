// Package scheduler drives the poll cycle. One scheduler owns every resolved
// target: on a fixed tick it reads each interface's counters, turns them into
// rate samples, and appends them to the per-target history window. Consumers
// observe progress only through copy-on-read snapshots.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/netwatch/trafikwatch/models"
	"github.com/netwatch/trafikwatch/pkg/trafikwatch/history"
	"github.com/netwatch/trafikwatch/pkg/trafikwatch/poller"
	"github.com/netwatch/trafikwatch/pkg/trafikwatch/rate"
)

// ─────────────────────────────────────────────────────────────────────────────
// Poller — interface for dependency injection
// ─────────────────────────────────────────────────────────────────────────────

// Poller is the subset of poller.SNMPReader the scheduler consumes. Using an
// interface lets tests inject a mock without touching the network.
type Poller interface {
	Read(ctx context.Context, target models.Target) (poller.InterfaceStats, error)
	ResolveIndex(ctx context.Context, target models.Target) (index int, alias string, err error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Target phases
// ─────────────────────────────────────────────────────────────────────────────

// Phase is where a target currently sits in its poll cycle. A target is
// polled at most once at a time; a tick arriving while a poll is still in
// flight is counted as missed, never queued.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePolling
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePolling:
		return "polling"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Options
// ─────────────────────────────────────────────────────────────────────────────

// Options configures the poll loop.
type Options struct {
	// Interval is the fixed tick between poll rounds (default 10s).
	Interval time.Duration

	// Timeout bounds each target's poll, including index resolution on the
	// first round (default Interval / 2).
	Timeout time.Duration

	// MaxHistory is the per-target rate sample window (default 60).
	MaxHistory int

	// Policy holds the rate sanity thresholds.
	Policy rate.Policy
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = 10 * time.Second
	}
	if o.Timeout <= 0 || o.Timeout > o.Interval {
		o.Timeout = o.Interval / 2
	}
	if o.MaxHistory <= 0 {
		o.MaxHistory = 60
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Per-target state
// ─────────────────────────────────────────────────────────────────────────────

// targetState is everything the scheduler tracks for one interface. Each
// state has its own lock so a slow poll on one target never blocks reads or
// polls of another.
type targetState struct {
	mu sync.Mutex

	target models.Target
	alias  string

	phase    Phase
	inFlight bool

	// prev is the raw counter baseline. Replaced after every completed read,
	// valid or not, so one bad reading cannot poison later deltas.
	prev *models.RawSample

	speedBps uint64
	oper     int

	last    models.RateSample
	history *history.Ring

	lastErr   error
	lastErrAt time.Time
	polledAt  time.Time
	missed    uint64
}

// TargetStatus is a copy-on-read view of one target's state.
type TargetStatus struct {
	Target     models.Target
	Alias      string
	Phase      Phase
	OperStatus int
	SpeedBps   uint64

	Last    models.RateSample
	History []models.RateSample

	LastError   string
	LastErrorAt time.Time
	PolledAt    time.Time
	MissedPolls uint64
}

// ─────────────────────────────────────────────────────────────────────────────
// Scheduler
// ─────────────────────────────────────────────────────────────────────────────

// Scheduler polls every target on a fixed tick. Run blocks until the context
// is cancelled; PollNow and CurrentSnapshot are safe from any goroutine.
type Scheduler struct {
	poller Poller
	calc   *rate.Calculator
	logger *slog.Logger
	opts   Options

	states []*targetState
	byKey  map[string]*targetState

	pollNow chan string // target key, or "" for every target

	wg   sync.WaitGroup
	done chan struct{}
}

// New creates a Scheduler over the given targets. It does not start polling;
// call Run.
func New(targets []models.Target, p Poller, opts Options, logger *slog.Logger) *Scheduler {
	opts.defaults()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	s := &Scheduler{
		poller:  p,
		calc:    rate.NewCalculator(opts.Policy),
		logger:  logger,
		opts:    opts,
		byKey:   make(map[string]*targetState, len(targets)),
		pollNow: make(chan string, len(targets)+1),
		done:    make(chan struct{}),
	}
	for _, t := range targets {
		st := &targetState{
			target:  t,
			history: history.NewRing(opts.MaxHistory),
		}
		s.states = append(s.states, st)
		s.byKey[t.Key()] = st
	}
	return s
}

// Run executes the poll loop: one immediate round, then one round per tick.
// PollNow requests fire between ticks without resetting the cadence. Run
// returns after ctx is cancelled and every in-flight poll has finished.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)
	defer s.wg.Wait()

	s.logger.Info("scheduler started",
		"targets", len(s.states),
		"interval", s.opts.Interval,
	)

	s.pollAll(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.pollAll(ctx)
		case key := <-s.pollNow:
			if key == "" {
				s.pollAll(ctx)
				continue
			}
			if st, ok := s.byKey[key]; ok {
				s.launch(ctx, st)
			}
		}
	}
}

// Stop blocks until Run has exited. Cancel Run's context first.
func (s *Scheduler) Stop() {
	<-s.done
}

// PollNow schedules an immediate out-of-band poll of the named target, or of
// every target when key is empty. It never blocks; requests arriving while
// the same target is still polling are counted as missed like any tick.
func (s *Scheduler) PollNow(key string) {
	select {
	case s.pollNow <- key:
	default:
	}
}

// CurrentSnapshot returns a copy of every target's state, ordered as the
// targets were configured. Mutating the result does not affect the
// scheduler.
func (s *Scheduler) CurrentSnapshot() []TargetStatus {
	out := make([]TargetStatus, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st.snapshot())
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Poll execution
// ─────────────────────────────────────────────────────────────────────────────

func (s *Scheduler) pollAll(ctx context.Context) {
	for _, st := range s.states {
		s.launch(ctx, st)
	}
}

// launch starts one poll goroutine for st unless one is already running, in
// which case the cycle is recorded as missed.
func (s *Scheduler) launch(ctx context.Context, st *targetState) {
	st.mu.Lock()
	if st.inFlight {
		st.missed++
		missed := st.missed
		key := st.target.Key()
		st.mu.Unlock()
		s.logger.Warn("poll still in flight, skipping cycle",
			"target", key,
			"missed_total", missed,
		)
		return
	}
	st.inFlight = true
	st.phase = PhasePolling
	st.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pollTarget(ctx, st)
	}()
}

func (s *Scheduler) pollTarget(ctx context.Context, st *targetState) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	st.mu.Lock()
	target := st.target
	st.mu.Unlock()

	if target.IfIndex <= 0 {
		index, alias, err := s.poller.ResolveIndex(ctx, target)
		if err != nil {
			s.finishFailed(st, err)
			return
		}
		target.IfIndex = index
		st.mu.Lock()
		st.target.IfIndex = index
		if alias != "" {
			st.alias = alias
		}
		st.mu.Unlock()
		s.logger.Info("interface index resolved",
			"target", target.Key(),
			"ifindex", index,
		)
	}

	stats, err := s.poller.Read(ctx, target)
	if err != nil {
		s.finishFailed(st, err)
		return
	}

	st.mu.Lock()
	sample := s.calc.Compute(st.prev, stats.Sample, stats.SpeedBps)
	raw := stats.Sample
	st.prev = &raw
	st.speedBps = stats.SpeedBps
	st.oper = stats.OperStatus
	st.last = sample
	st.history.Append(sample)
	st.phase = PhaseSucceeded
	st.lastErr = nil
	st.polledAt = time.Now()
	st.inFlight = false
	st.mu.Unlock()

	if !sample.Valid {
		s.logger.Debug("rate sample discarded",
			"target", target.Key(),
		)
	}
}

func (s *Scheduler) finishFailed(st *targetState, err error) {
	st.mu.Lock()
	st.phase = PhaseFailed
	st.lastErr = err
	st.lastErrAt = time.Now()
	st.polledAt = time.Now()
	st.inFlight = false
	key := st.target.Key()
	st.mu.Unlock()

	s.logger.Warn("poll failed",
		"target", key,
		"error", err,
	)
}

func (st *targetState) snapshot() TargetStatus {
	st.mu.Lock()
	defer st.mu.Unlock()

	status := TargetStatus{
		Target:      st.target,
		Alias:       st.alias,
		Phase:       st.phase,
		OperStatus:  st.oper,
		SpeedBps:    st.speedBps,
		Last:        st.last,
		History:     st.history.Snapshot(),
		PolledAt:    st.polledAt,
		MissedPolls: st.missed,
	}
	if st.lastErr != nil {
		status.LastError = st.lastErr.Error()
		status.LastErrorAt = st.lastErrAt
	}
	return status
}

// noopWriter discards log output.
type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
