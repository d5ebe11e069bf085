package domain

import (
	"time"

	"github.com/google/uuid"
)

type BeliefClass string

const (
	BeliefHighlyLikely   BeliefClass = "HIGHLY_LIKELY"
	BeliefUncertain      BeliefClass = "UNCERTAIN"
	BeliefHighlyUnlikely BeliefClass = "HIGHLY_UNLIKELY"
)

const (
	HighlyLikelyThreshold = 0.85
	UncertainThreshold    = 0.4
)

func ComputeBeliefClass(posterior float64) BeliefClass {
	switch {
	case posterior >= HighlyLikelyThreshold:
		return BeliefHighlyLikely
	case posterior >= UncertainThreshold:
		return BeliefUncertain
	default:
		return BeliefHighlyUnlikely
	}
}

// ConfidenceInterval brackets a posterior. It narrows as more and more
// reliable sources report on the key.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// ChangeReason names the gates that caused a new FactVersion, joined by "+"
// when more than one fired.
type ChangeReason string

const (
	ChangeInitial      ChangeReason = "initial"
	ChangePosterior    ChangeReason = "posterior_moved"
	ChangeZone         ChangeReason = "zone_changed"
	ChangeNarrativeWar ChangeReason = "narrative_war_changed"
)

// CampNarrative is one camp's position on a fact key.
type CampNarrative struct {
	Camp       string      `json:"camp"`
	Stance     Polarity    `json:"stance"`
	Confidence float64     `json:"confidence"`
	Active     bool        `json:"active"`
	ClaimIDs   []uuid.UUID `json:"claim_ids"`
	Sources    []string    `json:"sources"`
}

// NarrativeCluster is the transient result of contradiction detection for one
// fact key. It is never versioned on its own.
type NarrativeCluster struct {
	FactKey      FactKey         `json:"fact_key"`
	Camps        []CampNarrative `json:"camps"`
	NarrativeWar bool            `json:"narrative_war"`
	Severity     float64         `json:"severity"`
	DominantCamp string          `json:"dominant_camp,omitempty"`
}

// ActiveCamps returns the camps at or above the activation threshold.
func (c *NarrativeCluster) ActiveCamps() []CampNarrative {
	var out []CampNarrative
	for _, camp := range c.Camps {
		if camp.Active {
			out = append(out, camp)
		}
	}
	return out
}

// FusedFact is the current belief for one fact key.
type FusedFact struct {
	FactKey               FactKey            `json:"fact_key"`
	Posterior             float64            `json:"posterior"`
	BeliefClass           BeliefClass        `json:"belief_class"`
	Zone                  Zone               `json:"zone"`
	NarrativeWar          bool               `json:"narrative_war"`
	Narratives            []CampNarrative    `json:"narratives,omitempty"`
	Agreement             float64            `json:"agreement"`
	ConfidenceInterval    ConfidenceInterval `json:"confidence_interval"`
	EvidenceStrength      float64            `json:"evidence_strength"`
	SupportingClaimIDs    []uuid.UUID        `json:"supporting_claim_ids"`
	ContradictingClaimIDs []uuid.UUID        `json:"contradicting_claim_ids"`
	ClaimCount            int                `json:"claim_count"`
	Version               int                `json:"version"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// FactVersion is an immutable snapshot of a FusedFact. Versions of one key are
// numbered 1..n without gaps and ordered by UpdatedAt.
type FactVersion struct {
	FactKey               FactKey         `json:"fact_key"`
	Version               int             `json:"version"`
	Posterior             float64         `json:"posterior"`
	BeliefClass           BeliefClass     `json:"belief_class"`
	Zone                  Zone            `json:"zone"`
	NarrativeWar          bool            `json:"narrative_war"`
	Narratives            []CampNarrative `json:"narratives,omitempty"`
	SupportingClaimIDs    []uuid.UUID     `json:"supporting_claim_ids"`
	ContradictingClaimIDs []uuid.UUID     `json:"contradicting_claim_ids"`
	ChangeReason          ChangeReason    `json:"change_reason"`
	UpdatedAt             time.Time       `json:"updated_at"`
	RecordedAt            time.Time       `json:"recorded_at"`
}

// NewFactVersion snapshots f as version number n. Claim IDs and narratives
// are copied so later changes to f cannot reach the version.
func NewFactVersion(f *FusedFact, n int, recordedAt time.Time) FactVersion {
	return FactVersion{
		FactKey:               f.FactKey,
		Version:               n,
		Posterior:             f.Posterior,
		BeliefClass:           f.BeliefClass,
		Zone:                  f.Zone,
		NarrativeWar:          f.NarrativeWar,
		Narratives:            cloneNarratives(f.Narratives),
		SupportingClaimIDs:    append([]uuid.UUID(nil), f.SupportingClaimIDs...),
		ContradictingClaimIDs: append([]uuid.UUID(nil), f.ContradictingClaimIDs...),
		UpdatedAt:             f.UpdatedAt,
		RecordedAt:            recordedAt,
	}
}

// Clone returns a deep copy of the version.
func (v FactVersion) Clone() FactVersion {
	v.SupportingClaimIDs = append([]uuid.UUID(nil), v.SupportingClaimIDs...)
	v.ContradictingClaimIDs = append([]uuid.UUID(nil), v.ContradictingClaimIDs...)
	v.Narratives = cloneNarratives(v.Narratives)
	return v
}

// Clone returns a deep copy of the fact.
func (f *FusedFact) Clone() *FusedFact {
	if f == nil {
		return nil
	}
	out := *f
	out.SupportingClaimIDs = append([]uuid.UUID(nil), f.SupportingClaimIDs...)
	out.ContradictingClaimIDs = append([]uuid.UUID(nil), f.ContradictingClaimIDs...)
	out.Narratives = cloneNarratives(f.Narratives)
	return &out
}

func cloneNarratives(in []CampNarrative) []CampNarrative {
	if in == nil {
		return nil
	}
	out := make([]CampNarrative, len(in))
	for i, n := range in {
		n.ClaimIDs = append([]uuid.UUID(nil), n.ClaimIDs...)
		n.Sources = append([]string(nil), n.Sources...)
		out[i] = n
	}
	return out
}
