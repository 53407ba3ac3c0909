package db

import "context"

const getReasonSQL = `SELECT code, description FROM reason_catalog WHERE code = $1`

func (q *Queries) GetReason(ctx context.Context, code string) (ReasonCatalog, error) {
	var r ReasonCatalog
	err := q.db.QueryRow(ctx, getReasonSQL, code).Scan(&r.Code, &r.Description)
	return r, err
}

const listReasonsSQL = `SELECT code, description FROM reason_catalog ORDER BY code`

func (q *Queries) ListReasons(ctx context.Context) ([]ReasonCatalog, error) {
	rows, err := q.db.Query(ctx, listReasonsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReasonCatalog
	for rows.Next() {
		var r ReasonCatalog
		if err := rows.Scan(&r.Code, &r.Description); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
