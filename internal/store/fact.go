package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Harshitk-cp/vidocq/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FactStore keeps the current FusedFact per key. The full fact, narratives
// included, is stored as JSONB next to the filterable columns.
type FactStore struct {
	db *pgxpool.Pool
}

func NewFactStore(db *pgxpool.Pool) *FactStore {
	return &FactStore{db: db}
}

func (s *FactStore) Put(ctx context.Context, f *domain.FusedFact) error {
	body, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal fused fact: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO current_facts (fact_key, posterior, belief_class, zone, narrative_war, version, updated_at, body)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (fact_key) DO UPDATE SET
		   posterior = EXCLUDED.posterior,
		   belief_class = EXCLUDED.belief_class,
		   zone = EXCLUDED.zone,
		   narrative_war = EXCLUDED.narrative_war,
		   version = EXCLUDED.version,
		   updated_at = EXCLUDED.updated_at,
		   body = EXCLUDED.body`,
		f.FactKey.String(), f.Posterior, f.BeliefClass, f.Zone, f.NarrativeWar, f.Version, f.UpdatedAt, body,
	)
	return err
}

func (s *FactStore) Get(ctx context.Context, key domain.FactKey) (*domain.FusedFact, error) {
	var body []byte
	err := s.db.QueryRow(ctx,
		`SELECT body FROM current_facts WHERE fact_key = $1`,
		key.String(),
	).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	f := &domain.FusedFact{}
	if err := json.Unmarshal(body, f); err != nil {
		return nil, fmt.Errorf("unmarshal fused fact: %w", err)
	}
	return f, nil
}

func (s *FactStore) List(ctx context.Context, opts domain.ListFactsOpts) ([]domain.FusedFact, error) {
	var conds []string
	var args []any
	if opts.Zone != nil {
		args = append(args, *opts.Zone)
		conds = append(conds, fmt.Sprintf("zone = $%d", len(args)))
	}
	if opts.NarrativeWar != nil {
		args = append(args, *opts.NarrativeWar)
		conds = append(conds, fmt.Sprintf("narrative_war = $%d", len(args)))
	}

	query := `SELECT body FROM current_facts`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY fact_key`
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list facts query: %w", err)
	}
	defer rows.Close()

	var results []domain.FusedFact
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan fact row: %w", err)
		}
		var f domain.FusedFact
		if err := json.Unmarshal(body, &f); err != nil {
			return nil, fmt.Errorf("unmarshal fused fact: %w", err)
		}
		results = append(results, f)
	}
	return results, rows.Err()
}
