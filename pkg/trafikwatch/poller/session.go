// Package poller talks SNMP to the monitored devices. It turns resolved
// credentials into live gosnmp sessions, caches one session per distinct
// (host, port, credential) combination, and reads the IF-MIB counters that
// feed the rate pipeline.
package poller

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/netwatch/trafikwatch/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Session abstraction
// ─────────────────────────────────────────────────────────────────────────────

// Session is the slice of a gosnmp connection the reader needs. Production
// sessions wrap *gosnmp.GoSNMP; tests substitute fakes.
type Session interface {
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	BulkWalkAll(rootOid string) ([]gosnmp.SnmpPDU, error)
	Close() error
}

// gosnmpSession adapts *gosnmp.GoSNMP to the Session interface.
type gosnmpSession struct {
	*gosnmp.GoSNMP
}

func (s gosnmpSession) Close() error {
	if s.Conn != nil {
		return s.Conn.Close()
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Session factory — Target → Session
// ─────────────────────────────────────────────────────────────────────────────

// SessionOptions tunes the transport parameters applied to every session.
type SessionOptions struct {
	Timeout time.Duration
	Retries int
}

func (o *SessionOptions) defaults() {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
}

// NewSession creates and connects a gosnmp session for the given target's
// host and credentials. The caller owns the session and must Close it.
func NewSession(target models.Target, opts SessionOptions) (Session, error) {
	opts.defaults()

	g := &gosnmp.GoSNMP{
		Target:  target.Host,
		Port:    uint16(target.Port),
		Timeout: opts.Timeout,
		Retries: opts.Retries,
		MaxOids: 60,
	}

	id := target.Identity
	switch id.Version {
	case "1":
		g.Version = gosnmp.Version1
		g.Community = id.Community
	case "2c":
		g.Version = gosnmp.Version2c
		g.Community = id.Community
	case "3":
		g.Version = gosnmp.Version3
		g.SecurityModel = gosnmp.UserSecurityModel
		g.MsgFlags = msgFlagsFor(id.SecurityLevel())
		g.SecurityParameters = &gosnmp.UsmSecurityParameters{
			UserName:                 id.Username,
			AuthenticationProtocol:   mapAuthProto(id.AuthProtocol),
			AuthenticationPassphrase: id.AuthPassphrase,
			PrivacyProtocol:          mapPrivProto(id.PrivProtocol),
			PrivacyPassphrase:        id.PrivPassphrase,
		}
	default:
		return nil, fmt.Errorf("unsupported SNMP version %q", id.Version)
	}

	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("snmp connect %s:%d: %w", target.Host, target.Port, err)
	}
	return gosnmpSession{g}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SNMPv3 helpers
// ─────────────────────────────────────────────────────────────────────────────

func msgFlagsFor(level models.SecurityLevel) gosnmp.SnmpV3MsgFlags {
	switch level {
	case models.AuthPriv:
		return gosnmp.AuthPriv
	case models.AuthNoPriv:
		return gosnmp.AuthNoPriv
	default:
		return gosnmp.NoAuthNoPriv
	}
}

func mapAuthProto(s string) gosnmp.SnmpV3AuthProtocol {
	switch strings.ToLower(s) {
	case "md5":
		return gosnmp.MD5
	case "sha":
		return gosnmp.SHA
	case "sha224":
		return gosnmp.SHA224
	case "sha256":
		return gosnmp.SHA256
	case "sha384":
		return gosnmp.SHA384
	case "sha512":
		return gosnmp.SHA512
	default:
		return gosnmp.NoAuth
	}
}

func mapPrivProto(s string) gosnmp.SnmpV3PrivProtocol {
	switch strings.ToLower(s) {
	case "des":
		return gosnmp.DES
	case "aes", "aes128":
		return gosnmp.AES
	case "aes192":
		return gosnmp.AES192
	case "aes256":
		return gosnmp.AES256
	case "aes192c":
		return gosnmp.AES192C
	case "aes256c":
		return gosnmp.AES256C
	default:
		return gosnmp.NoPriv
	}
}
