package cache

import (
	"context"

	"github.com/arc-self/access-core/internal/domain"
)

// RuleReader loads the full ACTIVE rule set for an area — the rule
// repository collaborator (spec §2 "Rule repository" component).
type RuleReader interface {
	ListActiveRulesByArea(ctx context.Context, orgID, areaID string) ([]domain.Rule, error)
}

// Provider serves candidates(orgId, areaId, subjectType) to the engine,
// filling CandidateCache from RuleReader on miss. The area-level rule
// set is loaded once and filtered in-process per subject type, since a
// single area query covers every subject-type candidate key (spec §4.2
// Candidate retrieval).
type Provider struct {
	cache  *CandidateCache
	reader RuleReader
}

// NewProvider builds a Provider over cache and reader.
func NewProvider(cache *CandidateCache, reader RuleReader) *Provider {
	return &Provider{cache: cache, reader: reader}
}

// Candidates returns the ACTIVE, time-agnostic rule set for
// (orgId, areaId, subjectType), loading and caching it on miss.
func (p *Provider) Candidates(ctx context.Context, orgID, areaID string, subjectType domain.SubjectType) ([]domain.Rule, error) {
	key := Key{OrganizationID: orgID, AreaID: areaID, SubjectType: subjectType}
	if rules, ok := p.cache.Get(key); ok {
		return rules, nil
	}

	all, err := p.reader.ListActiveRulesByArea(ctx, orgID, areaID)
	if err != nil {
		return nil, err
	}

	bySubject := map[domain.SubjectType][]domain.Rule{}
	for _, r := range all {
		bySubject[r.SubjectType] = append(bySubject[r.SubjectType], r)
	}
	for st, rules := range bySubject {
		p.cache.Put(Key{OrganizationID: orgID, AreaID: areaID, SubjectType: st}, rules)
	}

	return bySubject[subjectType], nil
}
