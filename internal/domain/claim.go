package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Polarity string

const (
	PolaritySupports Polarity = "SUPPORTS"
	PolarityNegates  Polarity = "NEGATES"
)

func ValidPolarity(p string) bool {
	switch Polarity(p) {
	case PolaritySupports, PolarityNegates:
		return true
	}
	return false
}

// Sign is +1 for supporting claims and -1 for negating ones.
func (p Polarity) Sign() float64 {
	if p == PolarityNegates {
		return -1
	}
	return 1
}

// FactKey identifies "the same fact" across independently extracted claims.
// Construct it with NewFactKey so all three parts are normalized.
type FactKey struct {
	Subject  string `json:"subject"`
	Relation string `json:"relation"`
	Object   string `json:"object"`
}

func NewFactKey(subject, relation, object string) FactKey {
	return FactKey{
		Subject:  NormalizeKeyPart(subject),
		Relation: NormalizeKeyPart(relation),
		Object:   NormalizeKeyPart(object),
	}
}

// NormalizeKeyPart trims, collapses internal whitespace and lowercases.
func NormalizeKeyPart(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// FactKeySeparator joins the key parts in FactKey.String. It may not occur
// inside a part.
const FactKeySeparator = "|"

// Valid reports whether every part is non-empty and free of the separator.
func (k FactKey) Valid() bool {
	return validKeyPart(k.Subject) && validKeyPart(k.Relation) && validKeyPart(k.Object)
}

func validKeyPart(s string) bool {
	return s != "" && !strings.Contains(s, FactKeySeparator)
}

func (k FactKey) String() string {
	return k.Subject + FactKeySeparator + k.Relation + FactKeySeparator + k.Object
}

// ParseFactKey is the inverse of FactKey.String.
func ParseFactKey(s string) (FactKey, bool) {
	parts := strings.Split(s, FactKeySeparator)
	if len(parts) != 3 {
		return FactKey{}, false
	}
	k := NewFactKey(parts[0], parts[1], parts[2])
	return k, k.Valid()
}

// Claim is one source's assertion about a fact key. Claims are recorded once
// and never updated or removed; stores expose no mutation for them.
type Claim struct {
	ID              uuid.UUID `json:"id"`
	FactKey         FactKey   `json:"fact_key"`
	SourceDomain    string    `json:"source_domain"`
	SourceWeight    float64   `json:"source_weight"`
	Method          string    `json:"method,omitempty"`
	MethodWeight    float64   `json:"method_weight"`
	EvidenceSnippet string    `json:"evidence_snippet,omitempty"`
	ExtractedAt     time.Time `json:"extracted_at"`
	Camp            string    `json:"camp,omitempty"`
	Polarity        Polarity  `json:"polarity"`
	EntityType      string    `json:"entity_type,omitempty"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// Neutral reports whether the claim carries no camp tag.
func (c *Claim) Neutral() bool {
	return c.Camp == ""
}

// ScoredClaim is a Claim with its derived confidence and zone. It is always
// recomputed from the Claim and the current corroboration count.
type ScoredClaim struct {
	Claim
	Confidence    float64 `json:"confidence"`
	Zone          Zone    `json:"zone"`
	Corroboration int     `json:"corroboration"`
}

// ClaimIDLess orders claims canonically. Fusion sums log-odds in this order.
func ClaimIDLess(a, b uuid.UUID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
