package poller_test

import (
	"context"
	"strings"
	"testing"

	"github.com/gosnmp/gosnmp"

	"github.com/netwatch/trafikwatch/models"
	"github.com/netwatch/trafikwatch/pkg/trafikwatch/poller"
)

func pdu(name string, typ gosnmp.Asn1BER, value interface{}) gosnmp.SnmpPDU {
	return gosnmp.SnmpPDU{Name: name, Type: typ, Value: value}
}

func packet(pdus ...gosnmp.SnmpPDU) *gosnmp.SnmpPacket {
	return &gosnmp.SnmpPacket{Variables: pdus}
}

func cacheWith(t *testing.T, sess *fakeSession) *poller.SessionCache {
	t.Helper()
	dial := func(models.Target) (poller.Session, error) { return sess, nil }
	cache := poller.NewSessionCache(dial, poller.SessionOptions{}, nil)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestReadPrefers64BitCounters(t *testing.T) {
	sess := &fakeSession{
		getFunc: func(oids []string) (*gosnmp.SnmpPacket, error) {
			return packet(
				pdu(oids[0], gosnmp.Counter64, uint64(1_000_000)),
				pdu(oids[1], gosnmp.Counter64, uint64(2_000_000)),
				pdu(oids[2], gosnmp.Gauge32, uint(1000)), // ifHighSpeed, Mbps
				pdu(oids[3], gosnmp.Integer, 1),
			), nil
		},
	}
	reader := poller.NewSNMPReader(cacheWith(t, sess), nil)

	target := testTarget("10.0.0.1", "eth0")
	target.IfIndex = 3

	stats, err := reader.Read(context.Background(), target)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if stats.Sample.InOctets != 1_000_000 || stats.Sample.OutOctets != 2_000_000 {
		t.Errorf("octets = %d/%d, want 1000000/2000000",
			stats.Sample.InOctets, stats.Sample.OutOctets)
	}
	if stats.Sample.CounterBits != models.Counter64Bits {
		t.Errorf("CounterBits = %d, want 64", stats.Sample.CounterBits)
	}
	if stats.SpeedBps != 1_000_000_000 {
		t.Errorf("SpeedBps = %d, want 1e9", stats.SpeedBps)
	}
	if stats.OperStatus != models.OperUp {
		t.Errorf("OperStatus = %d, want up", stats.OperStatus)
	}
}

func TestReadFallsBackTo32BitCounters(t *testing.T) {
	sess := &fakeSession{
		getFunc: func(oids []string) (*gosnmp.SnmpPacket, error) {
			if len(oids) == 4 {
				// HC columns absent on this device.
				return packet(
					pdu(oids[0], gosnmp.NoSuchObject, nil),
					pdu(oids[1], gosnmp.NoSuchObject, nil),
					pdu(oids[2], gosnmp.Gauge32, uint(100)),
					pdu(oids[3], gosnmp.Integer, 1),
				), nil
			}
			return packet(
				pdu(oids[0], gosnmp.Counter32, uint(40_000)),
				pdu(oids[1], gosnmp.Counter32, uint(50_000)),
			), nil
		},
	}
	reader := poller.NewSNMPReader(cacheWith(t, sess), nil)

	target := testTarget("10.0.0.1", "eth0")
	target.IfIndex = 2

	stats, err := reader.Read(context.Background(), target)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if stats.Sample.CounterBits != models.Counter32Bits {
		t.Errorf("CounterBits = %d, want 32", stats.Sample.CounterBits)
	}
	if stats.Sample.InOctets != 40_000 || stats.Sample.OutOctets != 50_000 {
		t.Errorf("octets = %d/%d, want 40000/50000",
			stats.Sample.InOctets, stats.Sample.OutOctets)
	}
}

func TestReadErrorInvalidatesSession(t *testing.T) {
	sess := &fakeSession{
		getFunc: func([]string) (*gosnmp.SnmpPacket, error) {
			return nil, context.DeadlineExceeded
		},
	}
	cache := cacheWith(t, sess)
	reader := poller.NewSNMPReader(cache, nil)

	target := testTarget("10.0.0.1", "eth0")
	target.IfIndex = 1

	if _, err := reader.Read(context.Background(), target); err == nil {
		t.Fatal("expected Read to fail")
	}
	if cache.Len() != 0 {
		t.Error("failed read should evict the session from the cache")
	}
}

func TestReadRequiresResolvedIndex(t *testing.T) {
	reader := poller.NewSNMPReader(cacheWith(t, &fakeSession{}), nil)

	target := testTarget("10.0.0.1", "eth0") // IfIndex zero
	if _, err := reader.Read(context.Background(), target); err == nil {
		t.Fatal("expected Read to reject an unresolved interface index")
	}
}

func TestResolveIndexByIfName(t *testing.T) {
	sess := &fakeSession{
		walkFunc: func(root string) ([]gosnmp.SnmpPDU, error) {
			if !strings.HasPrefix(root, ".1.3.6.1.2.1.31") {
				t.Fatalf("expected ifName walk first, got %s", root)
			}
			return []gosnmp.SnmpPDU{
				pdu(root+".1", gosnmp.OctetString, []byte("lo")),
				pdu(root+".4", gosnmp.OctetString, []byte("eth0")),
			}, nil
		},
		getFunc: func(oids []string) (*gosnmp.SnmpPacket, error) {
			return packet(pdu(oids[0], gosnmp.OctetString, []byte("uplink to core"))), nil
		},
	}
	reader := poller.NewSNMPReader(cacheWith(t, sess), nil)

	idx, alias, err := reader.ResolveIndex(context.Background(), testTarget("10.0.0.1", "eth0"))
	if err != nil {
		t.Fatalf("ResolveIndex: %v", err)
	}
	if idx != 4 {
		t.Errorf("index = %d, want 4", idx)
	}
	if alias != "uplink to core" {
		t.Errorf("alias = %q, want %q", alias, "uplink to core")
	}
}

func TestResolveIndexFallsBackToIfDescr(t *testing.T) {
	sess := &fakeSession{
		walkFunc: func(root string) ([]gosnmp.SnmpPDU, error) {
			if strings.HasPrefix(root, ".1.3.6.1.2.1.31") {
				return nil, nil // no ifName table
			}
			return []gosnmp.SnmpPDU{
				pdu(root+".7", gosnmp.OctetString, []byte("GigabitEthernet0/1")),
			}, nil
		},
		getFunc: func(oids []string) (*gosnmp.SnmpPacket, error) {
			return packet(pdu(oids[0], gosnmp.NoSuchInstance, nil)), nil
		},
	}
	reader := poller.NewSNMPReader(cacheWith(t, sess), nil)

	idx, _, err := reader.ResolveIndex(context.Background(), testTarget("10.0.0.1", "GigabitEthernet0/1"))
	if err != nil {
		t.Fatalf("ResolveIndex: %v", err)
	}
	if idx != 7 {
		t.Errorf("index = %d, want 7", idx)
	}
}

func TestResolveIndexUnknownInterface(t *testing.T) {
	sess := &fakeSession{
		walkFunc: func(string) ([]gosnmp.SnmpPDU, error) { return nil, nil },
	}
	reader := poller.NewSNMPReader(cacheWith(t, sess), nil)

	if _, _, err := reader.ResolveIndex(context.Background(), testTarget("10.0.0.1", "ge-0/0/0")); err == nil {
		t.Fatal("expected an error for an interface the device does not report")
	}
}
