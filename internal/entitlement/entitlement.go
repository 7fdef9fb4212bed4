// Package entitlement resolves an owner's tier and the capabilities it
// grants. Capture is free for every tier; AI processing and grouping are
// gated here.
package entitlement

import (
	"stash/internal/config"
)

// Tier is a resolved entitlement level.
type Tier struct {
	Name       string
	BatchLimit int
	AIAllowed  bool
}

// Source answers entitlement questions for an owner.
type Source interface {
	TierFor(owner string) Tier
}

// ConfigSource resolves tiers from static configuration: a default tier
// plus optional per-owner overrides.
type ConfigSource struct {
	defaultTier string
	tiers       map[string]Tier
	owners      map[string]string
}

// NewConfigSource builds a source from entitlement configuration. Unknown
// tier names resolve to a free tier with no AI access.
func NewConfigSource(cfg config.Entitlement) *ConfigSource {
	tiers := make(map[string]Tier, len(cfg.Tiers))
	for name, t := range cfg.Tiers {
		tiers[name] = Tier{Name: name, BatchLimit: t.BatchLimit, AIAllowed: t.AIAllowed}
	}
	return &ConfigSource{
		defaultTier: cfg.DefaultTier,
		tiers:       tiers,
		owners:      cfg.Owners,
	}
}

// TierFor returns the owner's tier, falling back to the default tier and
// finally to a capture-only free tier.
func (s *ConfigSource) TierFor(owner string) Tier {
	name := s.defaultTier
	if override, ok := s.owners[owner]; ok {
		name = override
	}
	if t, ok := s.tiers[name]; ok {
		return t
	}
	return Tier{Name: "free", BatchLimit: 0, AIAllowed: false}
}

// Static is a fixed-tier source, useful in tests and single-user setups.
type Static struct {
	Tier Tier
}

func (s Static) TierFor(owner string) Tier { return s.Tier }
