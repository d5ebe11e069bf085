package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/vidocq/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VersionStore persists fact versions in PostgreSQL. Each version is a single
// INSERT, so it is visible to readers only once fully written.
type VersionStore struct {
	db *pgxpool.Pool
}

func NewVersionStore(db *pgxpool.Pool) *VersionStore {
	return &VersionStore{db: db}
}

const versionColumns = `fact_key, version, posterior, belief_class, zone, narrative_war, narratives, supporting_claim_ids, contradicting_claim_ids, change_reason, updated_at, recorded_at`

// Append inserts v only if it is exactly one past the latest stored version.
// A concurrent writer racing for the same number loses on the primary key.
func (s *VersionStore) Append(ctx context.Context, v *domain.FactVersion) error {
	narratives, err := json.Marshal(v.Narratives)
	if err != nil {
		return fmt.Errorf("marshal narratives: %w", err)
	}
	tag, err := s.db.Exec(ctx,
		`INSERT INTO fact_versions (`+versionColumns+`)
		 SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		 WHERE COALESCE((SELECT MAX(version) FROM fact_versions WHERE fact_key = $1), 0) = $2 - 1`,
		v.FactKey.String(), v.Version, v.Posterior, v.BeliefClass, v.Zone, v.NarrativeWar, narratives,
		v.SupportingClaimIDs, v.ContradictingClaimIDs, v.ChangeReason, v.UpdatedAt, v.RecordedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrVersionConflict
		}
		return fmt.Errorf("insert fact version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (s *VersionStore) Latest(ctx context.Context, key domain.FactKey) (*domain.FactVersion, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+versionColumns+` FROM fact_versions
		 WHERE fact_key = $1 ORDER BY version DESC LIMIT 1`,
		key.String(),
	)
	v, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// History returns versions in insertion order so that ordering violations in
// the underlying table remain observable to callers.
func (s *VersionStore) History(ctx context.Context, key domain.FactKey) ([]domain.FactVersion, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+versionColumns+` FROM fact_versions
		 WHERE fact_key = $1 ORDER BY seq`,
		key.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("version history query: %w", err)
	}
	defer rows.Close()

	var results []domain.FactVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version row: %w", err)
		}
		results = append(results, *v)
	}
	return results, rows.Err()
}

func (s *VersionStore) Keys(ctx context.Context) ([]domain.FactKey, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT fact_key FROM fact_versions ORDER BY fact_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.FactKey
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		if k, ok := domain.ParseFactKey(raw); ok {
			keys = append(keys, k)
		}
	}
	return keys, rows.Err()
}

// Reconcile records the anomaly for operators. Stored versions are never
// rewritten.
func (s *VersionStore) Reconcile(ctx context.Context, w *domain.InconsistentStateWarning) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO version_anomalies (fact_key, position, detail, detected_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (fact_key, position, detail) DO NOTHING`,
		w.FactKey.String(), w.Index, w.Detail, w.DetectedAt,
	)
	return err
}

func scanVersion(row pgx.Row) (*domain.FactVersion, error) {
	v := &domain.FactVersion{}
	var rawKey string
	var narratives []byte
	err := row.Scan(&rawKey, &v.Version, &v.Posterior, &v.BeliefClass, &v.Zone, &v.NarrativeWar, &narratives,
		&v.SupportingClaimIDs, &v.ContradictingClaimIDs, &v.ChangeReason, &v.UpdatedAt, &v.RecordedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(narratives, &v.Narratives); err != nil {
		return nil, fmt.Errorf("unmarshal narratives: %w", err)
	}
	key, ok := domain.ParseFactKey(rawKey)
	if !ok {
		return nil, fmt.Errorf("malformed fact key %q", rawKey)
	}
	v.FactKey = key
	return v, nil
}
