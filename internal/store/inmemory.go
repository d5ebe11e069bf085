package store

import (
	"context"
	"sort"
	"sync"

	"github.com/Harshitk-cp/vidocq/internal/domain"
	"github.com/google/uuid"
)

// InMemoryClaimStore is an append-only claim log kept in process memory.
type InMemoryClaimStore struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]domain.Claim
	byKey map[domain.FactKey][]uuid.UUID
}

func NewInMemoryClaimStore() *InMemoryClaimStore {
	return &InMemoryClaimStore{
		byID:  make(map[uuid.UUID]domain.Claim),
		byKey: make(map[domain.FactKey][]uuid.UUID),
	}
}

func (s *InMemoryClaimStore) Append(ctx context.Context, c *domain.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[c.ID]; ok {
		return ErrDuplicateClaim
	}
	s.byID[c.ID] = *c
	s.byKey[c.FactKey] = append(s.byKey[c.FactKey], c.ID)
	return nil
}

func (s *InMemoryClaimStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *InMemoryClaimStore) ListByFactKey(ctx context.Context, key domain.FactKey) ([]domain.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byKey[key]
	out := make([]domain.Claim, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id])
	}
	return out, nil
}

func (s *InMemoryClaimStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.byID)), nil
}

// InMemoryVersionStore keeps version histories in process memory. A version
// becomes visible only once Append has returned.
type InMemoryVersionStore struct {
	mu        sync.RWMutex
	histories map[domain.FactKey][]domain.FactVersion
	anomalies []domain.InconsistentStateWarning
}

func NewInMemoryVersionStore() *InMemoryVersionStore {
	return &InMemoryVersionStore{
		histories: make(map[domain.FactKey][]domain.FactVersion),
	}
}

func (s *InMemoryVersionStore) Append(ctx context.Context, v *domain.FactVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.histories[v.FactKey]
	if v.Version != len(h)+1 {
		return ErrVersionConflict
	}
	s.histories[v.FactKey] = append(h, v.Clone())
	return nil
}

func (s *InMemoryVersionStore) Latest(ctx context.Context, key domain.FactKey) (*domain.FactVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.histories[key]
	if len(h) == 0 {
		return nil, ErrNotFound
	}
	v := h[len(h)-1].Clone()
	return &v, nil
}

func (s *InMemoryVersionStore) History(ctx context.Context, key domain.FactKey) ([]domain.FactVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.histories[key]
	out := make([]domain.FactVersion, len(h))
	for i := range h {
		out[i] = h[i].Clone()
	}
	return out, nil
}

func (s *InMemoryVersionStore) Keys(ctx context.Context) ([]domain.FactKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]domain.FactKey, 0, len(s.histories))
	for k := range s.histories {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

// Reconcile records the warning once per key, position and detail.
// Versions themselves are never rewritten.
func (s *InMemoryVersionStore) Reconcile(ctx context.Context, w *domain.InconsistentStateWarning) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.anomalies {
		if a.FactKey == w.FactKey && a.Index == w.Index && a.Detail == w.Detail {
			return nil
		}
	}
	s.anomalies = append(s.anomalies, *w)
	return nil
}

func (s *InMemoryVersionStore) Anomalies() []domain.InconsistentStateWarning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.InconsistentStateWarning(nil), s.anomalies...)
}

// InMemoryFactStore holds the current belief per key.
type InMemoryFactStore struct {
	mu    sync.RWMutex
	facts map[domain.FactKey]*domain.FusedFact
}

func NewInMemoryFactStore() *InMemoryFactStore {
	return &InMemoryFactStore{facts: make(map[domain.FactKey]*domain.FusedFact)}
}

func (s *InMemoryFactStore) Put(ctx context.Context, f *domain.FusedFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facts[f.FactKey] = f.Clone()
	return nil
}

func (s *InMemoryFactStore) Get(ctx context.Context, key domain.FactKey) (*domain.FusedFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.facts[key]
	if !ok {
		return nil, ErrNotFound
	}
	return f.Clone(), nil
}

func (s *InMemoryFactStore) List(ctx context.Context, opts domain.ListFactsOpts) ([]domain.FusedFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.FusedFact, 0, len(s.facts))
	for _, f := range s.facts {
		if opts.Zone != nil && f.Zone != *opts.Zone {
			continue
		}
		if opts.NarrativeWar != nil && f.NarrativeWar != *opts.NarrativeWar {
			continue
		}
		out = append(out, *f.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FactKey.String() < out[j].FactKey.String() })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}
