package service

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Harshitk-cp/vidocq/internal/domain"
)

const (
	// MinPosterior and MaxPosterior bound every fused belief.
	MinPosterior = 0.01
	MaxPosterior = 0.99
)

var ErrWeightOutOfRange = errors.New("weight outside [0,1]")

func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// EvidenceWeight is the log-odds step one claim contributes before its
// polarity sign is applied: logit(0.5 + c/2). It is zero for c = 0 and grows
// with c, so polarity alone decides the direction of the step.
func EvidenceWeight(confidence float64) float64 {
	c := math.Max(0, math.Min(confidence, domain.MaxConfidence))
	return math.Log((1 + c) / (1 - c))
}

func clampProbability(p float64) float64 {
	if p < MinPosterior {
		return MinPosterior
	}
	if p > MaxPosterior {
		return MaxPosterior
	}
	return p
}

// Score computes min(0.99, sw*mw*(1+log10(max(n,1))/10)). It has no side
// effects and is safe for concurrent use.
func Score(sourceWeight, methodWeight float64, corroboration int) (float64, error) {
	if !domain.ValidWeight(sourceWeight) {
		return 0, &domain.ConfigurationError{
			Field:  "source_weight",
			Reason: fmt.Sprintf("%v: %v", sourceWeight, ErrWeightOutOfRange),
		}
	}
	if !domain.ValidWeight(methodWeight) {
		return 0, &domain.ConfigurationError{
			Field:  "method_weight",
			Reason: fmt.Sprintf("%v: %v", methodWeight, ErrWeightOutOfRange),
		}
	}
	if corroboration < 1 {
		corroboration = 1
	}
	boost := 1 + math.Log10(float64(corroboration))/domain.DefaultCorroborationDivisor
	return math.Min(domain.MaxConfidence, sourceWeight*methodWeight*boost), nil
}

// CorroborationCounts returns, per polarity, the number of distinct canonical
// source domains among claims.
func CorroborationCounts(claims []domain.Claim, policy *domain.TrustPolicy) map[domain.Polarity]int {
	domains := corroboratingDomains(claims, policy)
	counts := make(map[domain.Polarity]int, len(domains))
	for p, set := range domains {
		counts[p] = len(set)
	}
	return counts
}

func corroboratingDomains(claims []domain.Claim, policy *domain.TrustPolicy) map[domain.Polarity]map[string]struct{} {
	out := make(map[domain.Polarity]map[string]struct{}, 2)
	for i := range claims {
		c := &claims[i]
		set, ok := out[c.Polarity]
		if !ok {
			set = make(map[string]struct{})
			out[c.Polarity] = set
		}
		set[policy.CanonicalDomain(c.SourceDomain)] = struct{}{}
	}
	return out
}

// ScoreClaim scores a single claim given the corroboration count of its
// polarity group.
func ScoreClaim(c *domain.Claim, corroboration int, policy *domain.TrustPolicy) (domain.ScoredClaim, error) {
	conf, err := Score(c.SourceWeight, c.MethodWeight, corroboration)
	if err != nil {
		return domain.ScoredClaim{}, err
	}
	th := policy.ThresholdsFor(c.FactKey.Relation, c.EntityType)
	return domain.ScoredClaim{
		Claim:         *c,
		Confidence:    conf,
		Zone:          domain.Classify(conf, th),
		Corroboration: max(corroboration, 1),
	}, nil
}

// ScoreClaims scores every claim of one fact key and returns them in
// canonical claim-ID order.
func ScoreClaims(claims []domain.Claim, policy *domain.TrustPolicy) ([]domain.ScoredClaim, error) {
	counts := CorroborationCounts(claims, policy)
	scored := make([]domain.ScoredClaim, 0, len(claims))
	for i := range claims {
		sc, err := ScoreClaim(&claims[i], counts[claims[i].Polarity], policy)
		if err != nil {
			return nil, fmt.Errorf("score claim %s: %w", claims[i].ID, err)
		}
		scored = append(scored, sc)
	}
	sortScored(scored)
	return scored, nil
}

func sortScored(scored []domain.ScoredClaim) {
	sort.Slice(scored, func(i, j int) bool {
		return domain.ClaimIDLess(scored[i].ID, scored[j].ID)
	})
}
