package db

import "context"

// ListActiveRulesByArea loads every ACTIVE rule scoped to an area in one
// query. cache.Provider splits the result by subject type into its
// (organizationId, areaId, subjectType) candidate keys; the engine
// narrows by device/direction/auth-method/time at match time rather than
// pushing that filtering into SQL (spec §4.2, §4.5).
const listActiveRulesByAreaSQL = `
SELECT id, organization_id, area_id, device_id, subject_type, direction,
	auth_method, action, priority, state, message, valid_from_utc,
	valid_to_utc, from_local_min, to_local_min, created_at, updated_at
FROM rule
WHERE organization_id = $1 AND area_id = $2 AND state = 'ACTIVE'
ORDER BY priority DESC, updated_at DESC NULLS LAST, created_at DESC`

func (q *Queries) ListActiveRulesByArea(ctx context.Context, orgID, areaID string) ([]Rule, error) {
	rows, err := q.db.Query(ctx, listActiveRulesByAreaSQL, orgID, areaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(
			&r.ID, &r.OrganizationID, &r.AreaID, &r.DeviceID, &r.SubjectType, &r.Direction,
			&r.AuthMethod, &r.Action, &r.Priority, &r.State, &r.Message, &r.ValidFromUTC,
			&r.ValidToUTC, &r.FromLocalMin, &r.ToLocalMin, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
