// Package zone resolves the effective IANA time zone a rule's daily
// window is evaluated against (spec §4.2 Daily window semantics).
package zone

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// AreaZoneLookup reads the configured zone for an area, a thin read
// against the area table (an external collaborator per spec §1).
type AreaZoneLookup interface {
	GetAreaZone(ctx context.Context, orgID, areaID string) (string, error)
}

// Provider resolves the effective *time.Location for (orgId, areaId),
// falling back to UTC and metering every fallback so misconfiguration
// stays visible (spec §9 design notes — zone resolution must be
// defensive).
type Provider struct {
	lookup        AreaZoneLookup
	fallbackCount atomic.Uint64
	log           *zap.Logger
}

// NewProvider builds a Provider backed by lookup.
func NewProvider(lookup AreaZoneLookup, log *zap.Logger) *Provider {
	return &Provider{lookup: lookup, log: log}
}

// Resolve returns the *time.Location for the area, or UTC if the lookup
// fails, returns a blank zone, or the zone name does not load.
func (p *Provider) Resolve(ctx context.Context, orgID, areaID string) *time.Location {
	name, err := p.lookup.GetAreaZone(ctx, orgID, areaID)
	if err != nil || name == "" {
		p.fallback(orgID, areaID, "zone not configured")
		return time.UTC
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		p.fallback(orgID, areaID, "unknown zone name: "+name)
		return time.UTC
	}
	return loc
}

func (p *Provider) fallback(orgID, areaID, reason string) {
	p.fallbackCount.Add(1)
	p.log.Warn("zone resolution fell back to UTC",
		zap.String("organization_id", orgID),
		zap.String("area_id", areaID),
		zap.String("reason", reason),
	)
}

// FallbackCount returns how many times zone resolution has fallen back
// to UTC since process start — exported for the /metrics gauge.
func (p *Provider) FallbackCount() uint64 { return p.fallbackCount.Load() }
