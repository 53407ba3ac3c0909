// Package cache implements the in-process candidate rule cache the
// decision engine reads from (spec §4.5). Entries are immutable
// snapshots replaced wholesale under a copy-on-write map, so concurrent
// evaluate() calls never observe a torn candidate list while an
// invalidation or reload is in flight.
package cache

import (
	"sync/atomic"
	"time"

	"github.com/arc-self/access-core/internal/domain"
)

// Key identifies one candidate set.
type Key struct {
	OrganizationID string
	AreaID         string
	SubjectType    domain.SubjectType
}

type entry struct {
	rules     []domain.Rule
	expiresAt time.Time
}

// CandidateCache caches candidates(orgId, areaId, subjectType) snapshots.
// TTL is a safety net, not the primary invalidation mechanism — rule
// writes invalidate explicitly via Invalidate/InvalidateAll through the
// policy-change consumer.
type CandidateCache struct {
	snapshot atomic.Pointer[map[Key]entry]
	ttl      time.Duration
}

// NewCandidateCache constructs an empty cache with the given safety-net
// TTL. ttl <= 0 disables TTL expiry (invalidation-only).
func NewCandidateCache(ttl time.Duration) *CandidateCache {
	c := &CandidateCache{ttl: ttl}
	empty := map[Key]entry{}
	c.snapshot.Store(&empty)
	return c
}

// Get returns the cached candidate list for key and whether it was
// present and unexpired.
func (c *CandidateCache) Get(key Key) ([]domain.Rule, bool) {
	m := *c.snapshot.Load()
	e, ok := m[key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.rules, true
}

// Put installs a fresh candidate snapshot for key via copy-on-write:
// build a new map from the current one plus the update, then swap the
// pointer atomically so concurrent readers never see a partial map.
func (c *CandidateCache) Put(key Key, rules []domain.Rule) {
	for {
		old := c.snapshot.Load()
		next := make(map[Key]entry, len(*old)+1)
		for k, v := range *old {
			next[k] = v
		}
		exp := time.Time{}
		if c.ttl > 0 {
			exp = time.Now().Add(c.ttl)
		}
		next[key] = entry{rules: rules, expiresAt: exp}
		if c.snapshot.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Invalidate drops every cached candidate set for (orgId, areaId),
// across all subject types (spec §4.5 PolicyChanged handling).
func (c *CandidateCache) Invalidate(orgID, areaID string) {
	for {
		old := c.snapshot.Load()
		next := make(map[Key]entry, len(*old))
		changed := false
		for k, v := range *old {
			if k.OrganizationID == orgID && k.AreaID == areaID {
				changed = true
				continue
			}
			next[k] = v
		}
		if !changed {
			return
		}
		if c.snapshot.CompareAndSwap(old, &next) {
			return
		}
	}
}

// InvalidateAll drops every cached candidate set for an organization
// (spec §4.5 InvalidateAllRequested handling).
func (c *CandidateCache) InvalidateAll(orgID string) {
	for {
		old := c.snapshot.Load()
		next := make(map[Key]entry, len(*old))
		changed := false
		for k, v := range *old {
			if k.OrganizationID == orgID {
				changed = true
				continue
			}
			next[k] = v
		}
		if !changed {
			return
		}
		if c.snapshot.CompareAndSwap(old, &next) {
			return
		}
	}
}
