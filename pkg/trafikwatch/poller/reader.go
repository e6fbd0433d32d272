package poller

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/netwatch/trafikwatch/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// IF-MIB OIDs
// ─────────────────────────────────────────────────────────────────────────────

const (
	oidIfDescr       = ".1.3.6.1.2.1.2.2.1.2"
	oidIfOperStatus  = ".1.3.6.1.2.1.2.2.1.8"
	oidIfInOctets    = ".1.3.6.1.2.1.2.2.1.10"
	oidIfOutOctets   = ".1.3.6.1.2.1.2.2.1.16"
	oidIfName        = ".1.3.6.1.2.1.31.1.1.1.1"
	oidIfHCInOctets  = ".1.3.6.1.2.1.31.1.1.1.6"
	oidIfHCOutOctets = ".1.3.6.1.2.1.31.1.1.1.10"
	oidIfHighSpeed   = ".1.3.6.1.2.1.31.1.1.1.15"
	oidIfAlias       = ".1.3.6.1.2.1.31.1.1.1.18"
)

// ─────────────────────────────────────────────────────────────────────────────
// Reader interface
// ─────────────────────────────────────────────────────────────────────────────

// InterfaceStats is one complete reading for one interface.
type InterfaceStats struct {
	Sample     models.RawSample
	SpeedBps   uint64 // 0 when the device does not report a speed
	OperStatus int
}

// Reader fetches the current counters for a single target interface. The
// scheduler depends on this interface; tests substitute mocks.
type Reader interface {
	Read(ctx context.Context, target models.Target) (InterfaceStats, error)
}

// IndexResolver maps an interface name to its IF-MIB table index.
type IndexResolver interface {
	ResolveIndex(ctx context.Context, target models.Target) (index int, alias string, err error)
}

// ─────────────────────────────────────────────────────────────────────────────
// SNMPReader — production implementation
// ─────────────────────────────────────────────────────────────────────────────

// SNMPReader reads IF-MIB counters through sessions from a SessionCache.
// It prefers the 64-bit HC octet counters and falls back to the legacy
// 32-bit counters when the device does not implement them.
type SNMPReader struct {
	cache  *SessionCache
	logger *slog.Logger
}

// NewSNMPReader creates a reader backed by cache.
func NewSNMPReader(cache *SessionCache, logger *slog.Logger) *SNMPReader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &SNMPReader{cache: cache, logger: logger}
}

// Read fetches in/out octets, speed, and oper status for target.IfIndex in a
// single Get, retrying with the 32-bit counters when the HC columns are
// absent. Query errors invalidate the cached session so the next poll dials
// fresh.
func (r *SNMPReader) Read(ctx context.Context, target models.Target) (InterfaceStats, error) {
	var stats InterfaceStats

	if target.IfIndex <= 0 {
		return stats, transportErr(target.Key(), "read", fmt.Errorf("interface index not resolved"))
	}

	sess, err := r.cache.Get(ctx, target)
	if err != nil {
		return stats, err
	}

	idx := strconv.Itoa(target.IfIndex)
	started := time.Now()

	pkt, err := sess.Get([]string{
		oidIfHCInOctets + "." + idx,
		oidIfHCOutOctets + "." + idx,
		oidIfHighSpeed + "." + idx,
		oidIfOperStatus + "." + idx,
	})
	if err != nil {
		r.cache.Invalidate(target)
		return stats, transportErr(target.Key(), "get counters", err)
	}
	if len(pkt.Variables) < 4 {
		r.cache.Invalidate(target)
		return stats, transportErr(target.Key(), "get counters",
			fmt.Errorf("short response: %d varbinds", len(pkt.Variables)))
	}

	in, inOK := pduUint64(pkt.Variables[0])
	out, outOK := pduUint64(pkt.Variables[1])
	speedMbps, _ := pduUint64(pkt.Variables[2])
	oper, _ := pduUint64(pkt.Variables[3])

	bits := models.Counter64Bits
	if !inOK || !outOK {
		// HC columns missing. Legacy 32-bit counters.
		in, out, err = r.readLegacy(sess, target, idx)
		if err != nil {
			return stats, err
		}
		bits = models.Counter32Bits
	}

	stats = InterfaceStats{
		Sample: models.RawSample{
			Timestamp:   time.Now(),
			InOctets:    in,
			OutOctets:   out,
			CounterBits: bits,
		},
		SpeedBps:   speedMbps * 1_000_000, // ifHighSpeed is in Mbps
		OperStatus: int(oper),
	}

	r.logger.Debug("poll completed",
		"target", target.Key(),
		"counter_bits", bits,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return stats, nil
}

func (r *SNMPReader) readLegacy(sess Session, target models.Target, idx string) (in, out uint64, err error) {
	pkt, err := sess.Get([]string{
		oidIfInOctets + "." + idx,
		oidIfOutOctets + "." + idx,
	})
	if err != nil {
		r.cache.Invalidate(target)
		return 0, 0, transportErr(target.Key(), "get legacy counters", err)
	}
	if len(pkt.Variables) < 2 {
		return 0, 0, transportErr(target.Key(), "get legacy counters",
			fmt.Errorf("short response: %d varbinds", len(pkt.Variables)))
	}
	in, inOK := pduUint64(pkt.Variables[0])
	out, outOK := pduUint64(pkt.Variables[1])
	if !inOK || !outOK {
		return 0, 0, transportErr(target.Key(), "get legacy counters",
			fmt.Errorf("no octet counters for ifIndex %s", idx))
	}
	return in, out, nil
}

// ResolveIndex walks ifName for an exact match on the target's interface
// name, falling back to ifDescr for devices without the extended table. The
// matched row's ifAlias is returned as a display hint when present.
func (r *SNMPReader) ResolveIndex(ctx context.Context, target models.Target) (int, string, error) {
	sess, err := r.cache.Get(ctx, target)
	if err != nil {
		return 0, "", err
	}

	index, err := r.findIndex(sess, target, oidIfName)
	if err != nil {
		return 0, "", err
	}
	if index == 0 {
		index, err = r.findIndex(sess, target, oidIfDescr)
		if err != nil {
			return 0, "", err
		}
	}
	if index == 0 {
		return 0, "", transportErr(target.Key(), "resolve index",
			fmt.Errorf("interface %q not found on %s", target.IfName, target.Host))
	}

	alias := ""
	if pkt, err := sess.Get([]string{oidIfAlias + "." + strconv.Itoa(index)}); err == nil && len(pkt.Variables) > 0 {
		alias = pduString(pkt.Variables[0])
	}
	return index, alias, nil
}

func (r *SNMPReader) findIndex(sess Session, target models.Target, column string) (int, error) {
	pdus, err := sess.BulkWalkAll(column)
	if err != nil {
		r.cache.Invalidate(target)
		return 0, transportErr(target.Key(), "walk "+column, err)
	}
	for _, pdu := range pdus {
		if pduString(pdu) != target.IfName {
			continue
		}
		idx, err := indexFromOID(pdu.Name)
		if err != nil {
			continue
		}
		return idx, nil
	}
	return 0, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// PDU conversion
// ─────────────────────────────────────────────────────────────────────────────

// pduUint64 extracts an unsigned numeric value from a varbind. Exception
// types (NoSuchObject, NoSuchInstance) and non-numeric values report false.
func pduUint64(pdu gosnmp.SnmpPDU) (uint64, bool) {
	switch pdu.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		return 0, false
	}
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
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}

// pduString extracts a printable string from a varbind.
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

// indexFromOID returns the final sub-identifier of an OID, which in IF-MIB
// table columns is the ifIndex.
func indexFromOID(oid string) (int, error) {
	dot := strings.LastIndex(oid, ".")
	if dot < 0 || dot == len(oid)-1 {
		return 0, fmt.Errorf("malformed OID %q", oid)
	}
	return strconv.Atoi(oid[dot+1:])
}
