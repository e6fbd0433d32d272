package config

import (
	"fmt"
	"log/slog"

	"github.com/netwatch/trafikwatch/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// ConfigError
// ─────────────────────────────────────────────────────────────────────────────

// ConfigError reports an unresolvable credential or version for one target.
// It is fatal for that target only: the target is excluded from scheduling,
// the rest continue.
type ConfigError struct {
	// Target is the host (plus label when set) the error applies to.
	Target string

	// Reason describes the failed cross-field validation.
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("target %s: %s", e.Target, e.Reason)
}

// ─────────────────────────────────────────────────────────────────────────────
// Target resolution
// ─────────────────────────────────────────────────────────────────────────────

// ResolveTargets flattens the group/target hierarchy into one models.Target
// per configured interface, resolving each device's effective credential
// identity on the way. Targets that fail cross-field validation are returned
// as ConfigErrors and excluded; valid targets are unaffected.
//
// Resolution is a pure function of the Config value: resolving the same
// configuration twice yields identical output.
func ResolveTargets(cfg *Config, logger *slog.Logger) ([]models.Target, []error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	var (
		targets []models.Target
		errs    []error
	)
	for _, group := range cfg.Groups {
		for _, entry := range group.Targets {
			identity, err := ResolveIdentity(cfg, entry)
			if err != nil {
				logger.Warn("config: excluding target", "error", err.Error())
				errs = append(errs, err)
				continue
			}

			port := entry.Port
			if port == 0 {
				port = cfg.Port
			}

			for _, ifName := range entry.Interfaces {
				targets = append(targets, models.Target{
					Host:     entry.Host,
					Port:     port,
					Identity: identity,
					IfName:   ifName,
					Label:    entry.Label,
					Group:    group.Name,
				})
			}
		}
	}
	return targets, errs
}

// ResolveIdentity merges the global configuration with one target's overrides
// into a single effective CredentialIdentity. Every field cascades
// independently: the target's value wins when present, else the global value,
// else the built-in default. The security level is never inherited — it is
// re-derived from the resolved secrets (models.CredentialIdentity.SecurityLevel).
func ResolveIdentity(cfg *Config, entry TargetEntry) (models.CredentialIdentity, error) {
	name := entry.Host
	if entry.Label != "" {
		name = fmt.Sprintf("%s (%s)", entry.Host, entry.Label)
	}

	version := pick(entry.Version, cfg.Version, DefaultVersion)
	switch version {
	case "1", "2c":
		return models.CredentialIdentity{
			Version:   version,
			Community: pick(entry.Community, cfg.Community, DefaultCommunity),
		}, nil

	case "3":
		id := resolveV3(cfg.SNMPv3, entry.SNMPv3)
		id.Version = version

		if id.Username == "" {
			return models.CredentialIdentity{}, &ConfigError{
				Target: name,
				Reason: "version 3 requires a username in an snmpv3 block",
			}
		}
		// A privacy secret claims authPriv, which needs an authentication
		// secret too. Failing here is deliberate: silently downgrading the
		// security level would poll with weaker protection than configured.
		if id.PrivPassphrase != "" && id.AuthPassphrase == "" {
			return models.CredentialIdentity{}, &ConfigError{
				Target: name,
				Reason: "priv_password set without auth_password (authPriv requires both)",
			}
		}
		return id, nil

	default:
		return models.CredentialIdentity{}, &ConfigError{
			Target: name,
			Reason: fmt.Sprintf("unsupported SNMP version %q (expected 1, 2c or 3)", version),
		}
	}
}

// resolveV3 cascades each SNMPv3 field through target block → global block →
// built-in default. Either block may be nil.
func resolveV3(global, target *V3Block) models.CredentialIdentity {
	var g, t V3Block
	if global != nil {
		g = *global
	}
	if target != nil {
		t = *target
	}
	return models.CredentialIdentity{
		Username:       pick(t.Username, g.Username, ""),
		AuthProtocol:   pick(t.AuthProtocol, g.AuthProtocol, DefaultAuthProtocol),
		AuthPassphrase: pick(t.AuthPassword, g.AuthPassword, ""),
		PrivProtocol:   pick(t.PrivProtocol, g.PrivProtocol, DefaultPrivProtocol),
		PrivPassphrase: pick(t.PrivPassword, g.PrivPassword, ""),
	}
}

// pick returns the first non-empty value of the three-tier cascade.
func pick(target, global, fallback string) string {
	if target != "" {
		return target
	}
	if global != "" {
		return global
	}
	return fallback
}
