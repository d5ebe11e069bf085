package service

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Harshitk-cp/vidocq/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FactState is the cached per-key working set of the incremental fusion path.
// It is owned by exactly one goroutine at a time (the key's coordinator
// worker) and is not safe for concurrent use.
type FactState struct {
	key     domain.FactKey
	scored  []domain.ScoredClaim
	domains map[domain.Polarity]map[string]struct{}
}

func (s *FactState) Key() domain.FactKey { return s.key }

func (s *FactState) Len() int { return len(s.scored) }

// Scored returns a copy of the scored claims in canonical order.
func (s *FactState) Scored() []domain.ScoredClaim {
	return append([]domain.ScoredClaim(nil), s.scored...)
}

type FusionEngine struct {
	policy *domain.TrustPolicy
	logger *zap.Logger
}

func NewFusionEngine(policy *domain.TrustPolicy, logger *zap.Logger) *FusionEngine {
	return &FusionEngine{policy: policy, logger: logger}
}

func (e *FusionEngine) Policy() *domain.TrustPolicy { return e.policy }

// Fuse recomputes the belief for key from the full claim set. The result is
// independent of the order of claims.
func (e *FusionEngine) Fuse(key domain.FactKey, claims []domain.Claim, at time.Time) (*domain.FusedFact, error) {
	state, err := e.Rebuild(key, claims)
	if err != nil {
		return nil, err
	}
	return e.Snapshot(state, at), nil
}

// Rebuild scores every claim from scratch and returns a fresh state.
func (e *FusionEngine) Rebuild(key domain.FactKey, claims []domain.Claim) (*FactState, error) {
	seen := make(map[uuid.UUID]struct{}, len(claims))
	unique := make([]domain.Claim, 0, len(claims))
	for _, c := range claims {
		if c.FactKey != key {
			return nil, fmt.Errorf("claim %s belongs to %s, not %s", c.ID, c.FactKey, key)
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		unique = append(unique, c)
	}

	scored, err := ScoreClaims(unique, e.policy)
	if err != nil {
		return nil, err
	}
	return &FactState{
		key:     key,
		scored:  scored,
		domains: corroboratingDomains(unique, e.policy),
	}, nil
}

// Apply folds one new claim into state. Only the polarity group whose
// independent-domain count changed is rescored; everything else keeps its
// cached score. Applying a claim already in state is a no-op.
func (e *FusionEngine) Apply(state *FactState, c domain.Claim) error {
	if c.FactKey != state.key {
		return fmt.Errorf("claim %s belongs to %s, not %s", c.ID, c.FactKey, state.key)
	}
	idx := sort.Search(len(state.scored), func(i int) bool {
		return !domain.ClaimIDLess(state.scored[i].ID, c.ID)
	})
	if idx < len(state.scored) && state.scored[idx].ID == c.ID {
		return nil
	}

	set := state.domains[c.Polarity]
	canonical := e.policy.CanonicalDomain(c.SourceDomain)
	_, known := set[canonical]
	count := len(set)
	if !known {
		count++
	}

	sc, err := ScoreClaim(&c, count, e.policy)
	if err != nil {
		return err
	}
	if set == nil {
		set = make(map[string]struct{})
		state.domains[c.Polarity] = set
	}
	set[canonical] = struct{}{}

	if !known {
		for i := range state.scored {
			if state.scored[i].Polarity != c.Polarity {
				continue
			}
			rescored, err := ScoreClaim(&state.scored[i].Claim, count, e.policy)
			if err != nil {
				return err
			}
			state.scored[i] = rescored
		}
	}

	state.scored = append(state.scored, domain.ScoredClaim{})
	copy(state.scored[idx+1:], state.scored[idx:])
	state.scored[idx] = sc
	return nil
}

// Snapshot derives the FusedFact for the current state. Log-odds are summed
// in canonical claim order so the float result does not depend on arrival
// order.
func (e *FusionEngine) Snapshot(state *FactState, at time.Time) *domain.FusedFact {
	th := e.policy.ThresholdsFor(state.key.Relation, entityTypeOf(state.scored))
	cluster := DetectNarratives(state.key, state.scored, e.policy.ActivationFor(th))

	damping := 1.0
	if cluster.NarrativeWar {
		damping = e.policy.NarrativeDamping
	}

	fact := &domain.FusedFact{
		FactKey:      state.key,
		NarrativeWar: cluster.NarrativeWar,
		Narratives:   cluster.Camps,
		ClaimCount:   len(state.scored),
		UpdatedAt:    at,
	}

	var logOdds, reliability float64
	maxSupport := -1.0
	for i := range state.scored {
		sc := &state.scored[i]
		reliability += sc.SourceWeight
		delta := sc.Polarity.Sign() * EvidenceWeight(sc.Confidence)
		logOdds += delta * damping

		if sc.Polarity == domain.PolarityNegates {
			fact.ContradictingClaimIDs = append(fact.ContradictingClaimIDs, sc.ID)
			continue
		}
		fact.SupportingClaimIDs = append(fact.SupportingClaimIDs, sc.ID)
		if sc.Confidence > maxSupport {
			maxSupport = sc.Confidence
		}
	}

	if len(state.scored) == 0 {
		fact.Posterior = 0.5
	} else {
		fact.Posterior = clampProbability(Sigmoid(logOdds))
	}
	fact.BeliefClass = domain.ComputeBeliefClass(fact.Posterior)
	if maxSupport < 0 {
		fact.Zone = domain.ZoneQuarantine
	} else {
		fact.Zone = domain.Classify(maxSupport, th)
	}
	fact.ConfidenceInterval, fact.EvidenceStrength = evidenceSpread(fact.Posterior, reliability, len(state.scored))
	fact.Agreement = agreement(len(state.domains[domain.PolaritySupports]), len(state.domains[domain.PolarityNegates]))

	e.logger.Debug("fused fact",
		zap.String("fact_key", state.key.String()),
		zap.Int("claims", fact.ClaimCount),
		zap.Float64("log_odds", logOdds),
		zap.Float64("posterior", fact.Posterior),
		zap.String("belief_class", string(fact.BeliefClass)),
		zap.String("zone", string(fact.Zone)),
		zap.Bool("narrative_war", fact.NarrativeWar))

	return fact
}

// agreement is 1 - minority/majority over independent domains by polarity.
func agreement(supporting, negating int) float64 {
	hi, lo := supporting, negating
	if lo > hi {
		hi, lo = lo, hi
	}
	if hi == 0 {
		return 1
	}
	return 1 - float64(lo)/float64(hi)
}

// evidenceSpread derives the interval around posterior and the overall
// evidence strength from the summed source reliability of n claims. The
// interval half-width is 0.3*(1-avg)/sqrt(n) and the strength avg*n/(n+2).
func evidenceSpread(posterior, reliability float64, n int) (domain.ConfidenceInterval, float64) {
	if n == 0 {
		return domain.ConfidenceInterval{Lower: 0, Upper: 1}, 0
	}
	avg := reliability / float64(n)
	width := 0.3 * (1 - avg) / math.Sqrt(float64(n))
	interval := domain.ConfidenceInterval{
		Lower: math.Max(0, posterior-width),
		Upper: math.Min(1, posterior+width),
	}
	return interval, avg * float64(n) / float64(n+2)
}

func entityTypeOf(scored []domain.ScoredClaim) string {
	for i := range scored {
		if scored[i].EntityType != "" {
			return scored[i].EntityType
		}
	}
	return ""
}
