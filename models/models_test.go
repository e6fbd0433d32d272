package models_test

import (
	"testing"
	"time"

	"github.com/netwatch/trafikwatch/models"
)

func TestSecurityLevelDerivation(t *testing.T) {
	tests := []struct {
		name string
		id   models.CredentialIdentity
		want models.SecurityLevel
	}{
		{
			name: "priv passphrase implies authPriv",
			id:   models.CredentialIdentity{Version: "3", Username: "mon", AuthPassphrase: "a", PrivPassphrase: "p"},
			want: models.AuthPriv,
		},
		{
			name: "auth passphrase only implies authNoPriv",
			id:   models.CredentialIdentity{Version: "3", Username: "mon", AuthPassphrase: "a"},
			want: models.AuthNoPriv,
		},
		{
			name: "no secrets implies noAuthNoPriv",
			id:   models.CredentialIdentity{Version: "3", Username: "mon"},
			want: models.NoAuthNoPriv,
		},
		{
			name: "community identity is noAuthNoPriv",
			id:   models.CredentialIdentity{Version: "2c", Community: "public"},
			want: models.NoAuthNoPriv,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.SecurityLevel(); got != tt.want {
				t.Errorf("SecurityLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFingerprintStability(t *testing.T) {
	a := models.CredentialIdentity{Version: "3", Username: "mon", AuthProtocol: "sha", AuthPassphrase: "s3cret"}
	b := a
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical identities must share a fingerprint")
	}

	b.AuthPassphrase = "other"
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("differing secrets must yield differing fingerprints")
	}

	if f := a.Fingerprint(); contains(f, "s3cret") {
		t.Errorf("fingerprint %q leaks a secret", f)
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestTargetKey(t *testing.T) {
	tgt := models.Target{Host: "10.0.0.1", IfName: "Ethernet1"}
	if got := tgt.Key(); got != "10.0.0.1:Ethernet1" {
		t.Errorf("Key() = %q, want %q", got, "10.0.0.1:Ethernet1")
	}
}

func TestTargetDisplayName(t *testing.T) {
	tgt := models.Target{Host: "10.0.0.1"}
	if got := tgt.DisplayName(); got != "10.0.0.1" {
		t.Errorf("DisplayName() = %q, want host fallback", got)
	}
	tgt.Label = "agg1.iad1"
	if got := tgt.DisplayName(); got != "agg1.iad1" {
		t.Errorf("DisplayName() = %q, want label", got)
	}
}

func TestUtilizationBusierDirection(t *testing.T) {
	s := models.RateSample{Timestamp: time.Now(), InBps: 100e6, OutBps: 400e6, Valid: true}
	if got := models.Utilization(s, 1e9); got != 40 {
		t.Errorf("Utilization = %v, want 40", got)
	}
	if got := models.Utilization(s, 0); got != 0 {
		t.Errorf("Utilization with unknown speed = %v, want 0", got)
	}
	s.Valid = false
	if got := models.Utilization(s, 1e9); got != 0 {
		t.Errorf("Utilization of invalid sample = %v, want 0", got)
	}
}

func TestFormatRate(t *testing.T) {
	tests := []struct {
		bps  float64
		want string
	}{
		{bps: 120, want: "120 bps"},
		{bps: 12_400, want: "12.4 Kbps"},
		{bps: 98_500_000, want: "98.5 Mbps"},
		{bps: 40_000_000_000, want: "40.0 Gbps"},
	}
	for _, tt := range tests {
		if got := models.FormatRate(tt.bps); got != tt.want {
			t.Errorf("FormatRate(%v) = %q, want %q", tt.bps, got, tt.want)
		}
	}
}
