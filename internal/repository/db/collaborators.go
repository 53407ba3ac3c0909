package db

import "context"

// Device, Area, and zone lookups are thin reads against tables this
// service does not own the CRUD for (spec §1 Out of scope) — it only
// needs enough to scope an attempt to its tenant and resolve the area's
// time zone.

// DeviceRow is the minimal device snapshot the access pipeline needs.
type DeviceRow struct {
	ID             string
	OrganizationID string
	AreaID         string
}

const getDeviceSQL = `SELECT id, organization_id, area_id FROM device WHERE organization_id = $1 AND id = $2`

func (q *Queries) GetDevice(ctx context.Context, orgID, deviceID string) (DeviceRow, error) {
	var d DeviceRow
	err := q.db.QueryRow(ctx, getDeviceSQL, orgID, deviceID).Scan(&d.ID, &d.OrganizationID, &d.AreaID)
	return d, err
}

const getAreaZoneSQL = `SELECT COALESCE(iana_zone, '') FROM area WHERE organization_id = $1 AND id = $2`

// GetAreaZone implements zone.AreaZoneLookup.
func (q *Queries) GetAreaZone(ctx context.Context, orgID, areaID string) (string, error) {
	var zone string
	err := q.db.QueryRow(ctx, getAreaZoneSQL, orgID, areaID).Scan(&zone)
	return zone, err
}
