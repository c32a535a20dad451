package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/intelrun/internal/models"
)

type impactRow struct {
	ClusterID   string   `db:"cluster_id"`
	Target      string   `db:"target"`
	TF          string   `db:"tf"`
	RealizedRet *float64 `db:"realized_ret"`
	RealizedZ   *float64 `db:"realized_z"`
	ComputedAt  string   `db:"computed_at"`
}

// UpsertEventImpact writes one realized impact keyed by (cluster, target, tf).
func (s *Store) UpsertEventImpact(ctx context.Context, imp models.EventImpact) error {
	q := s.rebind(`INSERT INTO event_impact (cluster_id, target, tf, realized_ret, realized_z, computed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (cluster_id, target, tf) DO UPDATE SET
		 realized_ret = excluded.realized_ret,
		 realized_z   = excluded.realized_z,
		 computed_at  = excluded.computed_at`)
	if _, err := s.db.ExecContext(ctx, q,
		imp.ClusterID, imp.Target, imp.TF, imp.RealizedRet, imp.RealizedZ, FormatTS(imp.ComputedAt)); err != nil {
		return fmt.Errorf("upsert event impact %s: %w", imp.ClusterID, err)
	}
	return nil
}

// ImpactsForClusters returns realized impacts for the given cluster IDs,
// keyed by cluster ID.
func (s *Store) ImpactsForClusters(ctx context.Context, clusterIDs []string) (map[string][]models.EventImpact, error) {
	out := make(map[string][]models.EventImpact)
	if len(clusterIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT cluster_id, target, tf, realized_ret, realized_z, computed_at
		FROM event_impact WHERE cluster_id IN (?)`, clusterIDs)
	if err != nil {
		return nil, fmt.Errorf("impacts query: %w", err)
	}
	var rows []impactRow
	if err := s.db.SelectContext(ctx, &rows, s.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("impacts select: %w", err)
	}
	for _, r := range rows {
		computed, err := ParseTS(r.ComputedAt)
		if err != nil {
			computed = time.Time{}
		}
		out[r.ClusterID] = append(out[r.ClusterID], models.EventImpact{
			ClusterID:   r.ClusterID,
			Target:      r.Target,
			TF:          r.TF,
			RealizedRet: r.RealizedRet,
			RealizedZ:   r.RealizedZ,
			ComputedAt:  computed,
		})
	}
	return out, nil
}
