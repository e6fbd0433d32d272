// Package export serialises poll snapshots for headless operation. Each
// completed poll round becomes one JSON Lines record per target, written to
// stdout or a rotating file, so the engine can feed scripts and log shippers
// without the dashboard.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/netwatch/trafikwatch/models"
	"github.com/netwatch/trafikwatch/pkg/trafikwatch/scheduler"
)

// ─────────────────────────────────────────────────────────────────────────────
// Record schema
// ─────────────────────────────────────────────────────────────────────────────

// Record is one JSONL line: the state of one target at one instant.
type Record struct {
	Timestamp   time.Time `json:"timestamp"`
	Host        string    `json:"host"`
	Interface   string    `json:"interface"`
	Label       string    `json:"label,omitempty"`
	Phase       string    `json:"phase"`
	OperStatus  string    `json:"oper_status"`
	InBps       float64   `json:"in_bps"`
	OutBps      float64   `json:"out_bps"`
	Valid       bool      `json:"valid"`
	Utilization float64   `json:"utilization_pct,omitempty"`
	Error       string    `json:"error,omitempty"`
	MissedPolls uint64    `json:"missed_polls,omitempty"`
}

// RecordFrom flattens a target snapshot into the wire record.
func RecordFrom(st scheduler.TargetStatus) Record {
	rec := Record{
		Timestamp:   st.Last.Timestamp,
		Host:        st.Target.Host,
		Interface:   st.Target.IfName,
		Label:       st.Target.Label,
		Phase:       st.Phase.String(),
		OperStatus:  models.OperStatusText(st.OperStatus),
		InBps:       st.Last.InBps,
		OutBps:      st.Last.OutBps,
		Valid:       st.Last.Valid,
		Utilization: models.Utilization(st.Last, st.SpeedBps),
		Error:       st.LastError,
		MissedPolls: st.MissedPolls,
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = st.PolledAt
	}
	return rec
}

// ─────────────────────────────────────────────────────────────────────────────
// Writer
// ─────────────────────────────────────────────────────────────────────────────

// Writer emits snapshot records as JSON Lines. Safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	enc    *json.Encoder
	logger *slog.Logger
}

// NewWriter wraps w. The writer never closes w; the caller owns it.
func NewWriter(w io.Writer, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Writer{enc: json.NewEncoder(w), logger: logger}
}

// WriteSnapshot emits one record per target. Targets that have never been
// polled yet are skipped so startup does not emit empty rows.
func (w *Writer) WriteSnapshot(statuses []scheduler.TargetStatus) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, st := range statuses {
		if st.PolledAt.IsZero() {
			continue
		}
		if err := w.enc.Encode(RecordFrom(st)); err != nil {
			return fmt.Errorf("export: encode %s: %w", st.Target.Key(), err)
		}
	}
	return nil
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
