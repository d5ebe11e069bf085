package domain

import (
	"context"

	"github.com/google/uuid"
)

// ClaimStore is append-only. Claims are never updated or deleted.
type ClaimStore interface {
	Append(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, id uuid.UUID) (*Claim, error)
	ListByFactKey(ctx context.Context, key FactKey) ([]Claim, error)
	Count(ctx context.Context) (int64, error)
}

// VersionStore holds the per-key version history. Append must be atomic:
// readers never observe a partially written version. An Append whose
// version number is not exactly one past the latest must be rejected.
type VersionStore interface {
	Append(ctx context.Context, v *FactVersion) error
	Latest(ctx context.Context, key FactKey) (*FactVersion, error)
	History(ctx context.Context, key FactKey) ([]FactVersion, error)
	Keys(ctx context.Context) ([]FactKey, error)
}

// Reconciler is optionally implemented by a VersionStore to receive
// inconsistent-state reports.
type Reconciler interface {
	Reconcile(ctx context.Context, w *InconsistentStateWarning) error
}

type ListFactsOpts struct {
	Zone         *Zone
	NarrativeWar *bool
	Limit        int
}

// FactStore holds the current FusedFact per key. Unlike versions, the current
// belief is replaced on every fusion.
type FactStore interface {
	Put(ctx context.Context, f *FusedFact) error
	Get(ctx context.Context, key FactKey) (*FusedFact, error)
	List(ctx context.Context, opts ListFactsOpts) ([]FusedFact, error)
}
