// Package discover performs a one-shot interface inventory of a device. It
// walks the IF-MIB tables over an existing session and reports every
// interface with its index, name, alias, speed, and operational status, so
// an operator can pick interfaces to watch and paste ready-made YAML into
// the configuration.
package discover

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/gosnmp/gosnmp"
	"gopkg.in/yaml.v3"

	"github.com/netwatch/trafikwatch/models"
	"github.com/netwatch/trafikwatch/pkg/trafikwatch/poller"
)

const (
	oidIfDescr      = ".1.3.6.1.2.1.2.2.1.2"
	oidIfOperStatus = ".1.3.6.1.2.1.2.2.1.8"
	oidIfName       = ".1.3.6.1.2.1.31.1.1.1.1"
	oidIfHighSpeed  = ".1.3.6.1.2.1.31.1.1.1.15"
	oidIfAlias      = ".1.3.6.1.2.1.31.1.1.1.18"
)

// ─────────────────────────────────────────────────────────────────────────────
// Inventory model
// ─────────────────────────────────────────────────────────────────────────────

// Interface is one row of the device's interface table.
type Interface struct {
	Index      int
	Name       string
	Alias      string
	SpeedMbps  uint64
	OperStatus int
}

// Options filters the inventory.
type Options struct {
	// IncludeDown keeps interfaces whose oper status is not up.
	IncludeDown bool

	// IncludeLoopback keeps loopback-looking interfaces (lo, Loopback0, ...).
	IncludeLoopback bool
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanner
// ─────────────────────────────────────────────────────────────────────────────

// Scanner walks one device's interface tables.
type Scanner struct {
	sess   poller.Session
	logger *slog.Logger
}

// NewScanner wraps an already-connected session.
func NewScanner(sess poller.Session, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Scanner{sess: sess, logger: logger}
}

// Scan walks ifDescr, ifName, ifAlias, ifHighSpeed, and ifOperStatus and
// merges them into one inventory, sorted by interface index. ifName is
// preferred over ifDescr when both exist. ctx aborts between walks; a single
// walk runs to the session's own timeout.
func (s *Scanner) Scan(ctx context.Context, opts Options) ([]Interface, error) {
	rows := make(map[int]*Interface)

	row := func(idx int) *Interface {
		r, ok := rows[idx]
		if !ok {
			r = &Interface{Index: idx}
			rows[idx] = r
		}
		return r
	}

	// ifDescr is mandatory in IF-MIB; its failure means the device is
	// unreachable or not speaking SNMP at all.
	if err := s.walk(ctx, oidIfDescr, func(idx int, pdu gosnmp.SnmpPDU) {
		row(idx).Name = pduString(pdu)
	}); err != nil {
		return nil, fmt.Errorf("walk ifDescr: %w", err)
	}

	// The extended table is optional; devices without it just keep ifDescr
	// names and report no alias or speed.
	optional := []struct {
		oid   string
		apply func(idx int, pdu gosnmp.SnmpPDU)
	}{
		{oidIfName, func(idx int, pdu gosnmp.SnmpPDU) {
			if name := pduString(pdu); name != "" {
				row(idx).Name = name
			}
		}},
		{oidIfAlias, func(idx int, pdu gosnmp.SnmpPDU) {
			row(idx).Alias = pduString(pdu)
		}},
		{oidIfHighSpeed, func(idx int, pdu gosnmp.SnmpPDU) {
			if v, ok := pduUint(pdu); ok {
				row(idx).SpeedMbps = v
			}
		}},
	}
	for _, col := range optional {
		if err := s.walk(ctx, col.oid, col.apply); err != nil {
			s.logger.Debug("optional column walk failed", "oid", col.oid, "error", err)
		}
	}

	if err := s.walk(ctx, oidIfOperStatus, func(idx int, pdu gosnmp.SnmpPDU) {
		if v, ok := pduUint(pdu); ok {
			row(idx).OperStatus = int(v)
		}
	}); err != nil {
		return nil, fmt.Errorf("walk ifOperStatus: %w", err)
	}

	out := make([]Interface, 0, len(rows))
	for _, r := range rows {
		if !opts.IncludeDown && r.OperStatus != models.OperUp {
			continue
		}
		if !opts.IncludeLoopback && isLoopback(r.Name) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })

	s.logger.Info("device scanned", "interfaces", len(out), "total_rows", len(rows))
	return out, nil
}

func (s *Scanner) walk(ctx context.Context, column string, apply func(int, gosnmp.SnmpPDU)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pdus, err := s.sess.BulkWalkAll(column)
	if err != nil {
		return err
	}
	for _, pdu := range pdus {
		idx, err := indexFromOID(pdu.Name)
		if err != nil {
			continue
		}
		apply(idx, pdu)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Output helpers
// ─────────────────────────────────────────────────────────────────────────────

// FormatTable renders the inventory as an aligned text table.
func FormatTable(ifaces []Interface) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-7s %-24s %-10s %-8s %s\n", "INDEX", "NAME", "STATUS", "MBPS", "ALIAS")
	for _, i := range ifaces {
		speed := "-"
		if i.SpeedMbps > 0 {
			speed = fmt.Sprintf("%d", i.SpeedMbps)
		}
		fmt.Fprintf(&b, "%-7d %-24s %-10s %-8s %s\n",
			i.Index, i.Name, models.OperStatusText(i.OperStatus), speed, i.Alias)
	}
	return b.String()
}

// yamlTarget mirrors the configuration file's target schema.
type yamlTarget struct {
	Host       string   `yaml:"host"`
	Label      string   `yaml:"label,omitempty"`
	Interfaces []string `yaml:"interfaces"`
}

type yamlGroup struct {
	Name    string       `yaml:"name"`
	Targets []yamlTarget `yaml:"targets"`
}

type yamlSnippet struct {
	Groups []yamlGroup `yaml:"groups"`
}

// GenerateYAML renders the inventory as a configuration snippet for host,
// ready to merge into an existing file.
func GenerateYAML(host, label string, ifaces []Interface) ([]byte, error) {
	names := make([]string, 0, len(ifaces))
	for _, i := range ifaces {
		names = append(names, i.Name)
	}
	snippet := yamlSnippet{
		Groups: []yamlGroup{{
			Name: "discovered",
			Targets: []yamlTarget{{
				Host:       host,
				Label:      label,
				Interfaces: names,
			}},
		}},
	}
	return yaml.Marshal(snippet)
}

// isLoopback recognises the common loopback naming schemes.
func isLoopback(name string) bool {
	lower := strings.ToLower(name)
	return lower == "lo" || strings.HasPrefix(lower, "lo:") ||
		strings.HasPrefix(lower, "loopback")
}

func pduString(pdu gosnmp.SnmpPDU) string {
	switch v := pdu.Value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func pduUint(pdu gosnmp.SnmpPDU) (uint64, bool) {
	switch v := pdu.Value.(type) {
	case uint64:
		return v, true
	case uint32:
		return uint64(v), true
	case uint:
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}

func indexFromOID(oid string) (int, error) {
	dot := strings.LastIndex(oid, ".")
	if dot < 0 || dot == len(oid)-1 {
		return 0, fmt.Errorf("malformed OID %q", oid)
	}
	var idx int
	_, err := fmt.Sscanf(oid[dot+1:], "%d", &idx)
	return idx, err
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
