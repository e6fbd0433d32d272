// Package models defines the core data structures shared across all layers of
// trafikwatch. These types are the canonical in-memory form of everything the
// poller collects; every other package depends on this package and nothing
// here depends on any other internal package.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ─────────────────────────────────────────────────────────────────────────────
// Security level
// ─────────────────────────────────────────────────────────────────────────────

// SecurityLevel is the derived authentication/encryption tier of a polling
// credential. It is never configured directly — it is computed from which
// secrets are present on the resolved identity.
type SecurityLevel int

const (
	// NoAuthNoPriv is an unauthenticated, unencrypted identity.
	NoAuthNoPriv SecurityLevel = iota

	// AuthNoPriv is authenticated but unencrypted.
	AuthNoPriv

	// AuthPriv is authenticated and encrypted.
	AuthPriv
)

func (l SecurityLevel) String() string {
	switch l {
	case AuthPriv:
		return "authPriv"
	case AuthNoPriv:
		return "authNoPriv"
	default:
		return "noAuthNoPriv"
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// CredentialIdentity
// ─────────────────────────────────────────────────────────────────────────────

// CredentialIdentity is the effective polling identity for one target after
// resolution. Version discriminates the two credential families: "1" and "2c"
// use Community, "3" uses the user-based security fields.
type CredentialIdentity struct {
	// Version is the SNMP version: "1", "2c", or "3".
	Version string

	// Community is the community string (v1/v2c only).
	Community string

	// Username is the SNMPv3 security name.
	Username string

	// AuthProtocol is one of: sha, md5, none.
	AuthProtocol string

	// AuthPassphrase is the passphrase for the chosen auth protocol.
	AuthPassphrase string

	// PrivProtocol is one of: aes, aes128, aes192, aes256, des, none.
	PrivProtocol string

	// PrivPassphrase is the passphrase for the chosen privacy protocol.
	PrivPassphrase string
}

// UserBased reports whether the identity uses SNMPv3 user security.
func (c CredentialIdentity) UserBased() bool {
	return c.Version == "3"
}

// SecurityLevel derives the tier from which secrets are set: a privacy
// passphrase implies authPriv, an auth passphrase alone implies authNoPriv.
func (c CredentialIdentity) SecurityLevel() SecurityLevel {
	switch {
	case c.PrivPassphrase != "":
		return AuthPriv
	case c.AuthPassphrase != "":
		return AuthNoPriv
	default:
		return NoAuthNoPriv
	}
}

// Fingerprint returns a stable, opaque key identifying this exact identity.
// Two identities share a fingerprint iff every credential field matches, so
// the session cache can key on it. Secrets are hashed, never echoed.
func (c CredentialIdentity) Fingerprint() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf(
		"%s\x00%s\x00%s\x00%s\x00%s\x00%s\x00%s",
		c.Version, c.Community, c.Username,
		c.AuthProtocol, c.AuthPassphrase,
		c.PrivProtocol, c.PrivPassphrase,
	)))
	return c.Version + ":" + hex.EncodeToString(sum[:8])
}

// ─────────────────────────────────────────────────────────────────────────────
// Target
// ─────────────────────────────────────────────────────────────────────────────

// Target identifies one device-interface pair to poll. It is immutable after
// configuration resolution; one Target exists per configured interface.
type Target struct {
	// Host is the management address of the device.
	Host string

	// Port is the UDP port for SNMP requests (resolved, default 161).
	Port int

	// Identity is the resolved polling credential (version included).
	Identity CredentialIdentity

	// IfName is the configured interface name (e.g. "Ethernet1").
	IfName string

	// IfIndex is the IF-MIB table index for IfName. Zero until the startup
	// walk resolves it.
	IfIndex int

	// Label is the human label for the device; falls back to Host.
	Label string

	// Group is the config group this target belongs to, for display grouping.
	Group string
}

// Key returns the canonical "host:ifName" identity used to key per-interface
// state and history.
func (t Target) Key() string {
	return t.Host + ":" + t.IfName
}

// DisplayName returns the label when set, otherwise the host.
func (t Target) DisplayName() string {
	if t.Label != "" {
		return t.Label
	}
	return t.Host
}
