package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/vidocq/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ClaimStore persists claims in PostgreSQL. The table is insert-only.
type ClaimStore struct {
	db *pgxpool.Pool
}

func NewClaimStore(db *pgxpool.Pool) *ClaimStore {
	return &ClaimStore{db: db}
}

const claimColumns = `id, subject, relation, object, source_domain, source_weight, method, method_weight, evidence_snippet, extracted_at, camp, polarity, entity_type, recorded_at`

func (s *ClaimStore) Append(ctx context.Context, c *domain.Claim) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO claims (`+claimColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		c.ID, c.FactKey.Subject, c.FactKey.Relation, c.FactKey.Object, c.SourceDomain, c.SourceWeight,
		c.Method, c.MethodWeight, c.EvidenceSnippet, c.ExtractedAt, c.Camp, c.Polarity, c.EntityType, c.RecordedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateClaim
		}
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func (s *ClaimStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Claim, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE id = $1`,
		id,
	)
	c, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *ClaimStore) ListByFactKey(ctx context.Context, key domain.FactKey) ([]domain.Claim, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+claimColumns+` FROM claims
		 WHERE subject = $1 AND relation = $2 AND object = $3
		 ORDER BY recorded_at, id`,
		key.Subject, key.Relation, key.Object,
	)
	if err != nil {
		return nil, fmt.Errorf("list claims query: %w", err)
	}
	defer rows.Close()

	var results []domain.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim row: %w", err)
		}
		results = append(results, *c)
	}
	return results, rows.Err()
}

func (s *ClaimStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM claims`).Scan(&n)
	return n, err
}

func scanClaim(row pgx.Row) (*domain.Claim, error) {
	c := &domain.Claim{}
	err := row.Scan(&c.ID, &c.FactKey.Subject, &c.FactKey.Relation, &c.FactKey.Object, &c.SourceDomain,
		&c.SourceWeight, &c.Method, &c.MethodWeight, &c.EvidenceSnippet, &c.ExtractedAt, &c.Camp,
		&c.Polarity, &c.EntityType, &c.RecordedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}
