package service

import (
	"sort"

	"github.com/Harshitk-cp/vidocq/internal/domain"
)

// DetectNarratives partitions the scored claims of one fact key by camp and
// flags a narrative war when two or more active camps take opposite stances.
//
// A camp's aggregate confidence is the max over its members, so volume alone
// cannot make a camp win. Its stance is the polarity of its strongest claim;
// ties go to the claim first in canonical order. Neutral claims form no camp.
// Camps that agree on polarity never conflict, however far apart their scores.
func DetectNarratives(key domain.FactKey, scored []domain.ScoredClaim, activation float64) domain.NarrativeCluster {
	byCamp := make(map[string]*domain.CampNarrative)
	sources := make(map[string]map[string]struct{})

	for i := range scored {
		sc := &scored[i]
		if sc.Neutral() {
			continue
		}
		camp, ok := byCamp[sc.Camp]
		if !ok {
			camp = &domain.CampNarrative{
				Camp:       sc.Camp,
				Stance:     sc.Polarity,
				Confidence: sc.Confidence,
			}
			byCamp[sc.Camp] = camp
			sources[sc.Camp] = make(map[string]struct{})
		} else if sc.Confidence > camp.Confidence {
			camp.Confidence = sc.Confidence
			camp.Stance = sc.Polarity
		}
		camp.ClaimIDs = append(camp.ClaimIDs, sc.ID)
		sources[sc.Camp][sc.SourceDomain] = struct{}{}
	}

	cluster := domain.NarrativeCluster{FactKey: key}
	if len(byCamp) == 0 {
		return cluster
	}

	names := make([]string, 0, len(byCamp))
	for name := range byCamp {
		names = append(names, name)
	}
	sort.Strings(names)

	var bestSupport, bestNegate float64
	var hasSupport, hasNegate bool
	var dominant *domain.CampNarrative

	for _, name := range names {
		camp := byCamp[name]
		camp.Sources = sortedKeys(sources[name])
		camp.Active = camp.Confidence >= activation
		cluster.Camps = append(cluster.Camps, *camp)

		if !camp.Active {
			continue
		}
		if camp.Stance == domain.PolarityNegates {
			hasNegate = true
			bestNegate = max(bestNegate, camp.Confidence)
		} else {
			hasSupport = true
			bestSupport = max(bestSupport, camp.Confidence)
		}
		if dominant == nil || camp.Confidence > dominant.Confidence {
			dominant = camp
		}
	}

	if dominant != nil {
		cluster.DominantCamp = dominant.Camp
	}
	if hasSupport && hasNegate {
		cluster.NarrativeWar = true
		cluster.Severity = min(bestSupport, bestNegate)
	}
	return cluster
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
