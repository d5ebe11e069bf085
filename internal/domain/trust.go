package domain

import (
	"math"
	"net/url"
	"strings"
)

const (
	DefaultCampActivation       = 0.2
	DefaultNarrativeDamping     = 0.5
	DefaultVersionEpsilon       = 0.01
	DefaultSourceWeight         = 0.5
	DefaultMethodWeight         = 0.5
	DefaultCorroborationDivisor = 10.0
	MaxConfidence               = 0.99
)

// TrustPolicy is the injected configuration surface of the engine. It is
// loaded once, validated, and treated as read-only afterwards.
type TrustPolicy struct {
	Thresholds           Thresholds            `yaml:"thresholds"`
	RelationThresholds   map[string]Thresholds `yaml:"relation_thresholds"`
	EntityTypeThresholds map[string]Thresholds `yaml:"entity_type_thresholds"`

	// CampActivation is the aggregate confidence a camp needs to take part in
	// a narrative war. The default lies below the UNVERIFIED zone, so a
	// quarantined camp can still start a war. Zero means "use the key's
	// UNVERIFIED threshold".
	CampActivation   float64 `yaml:"camp_activation"`
	NarrativeDamping float64 `yaml:"narrative_damping"`
	VersionEpsilon   float64 `yaml:"version_epsilon"`

	// DomainAliases maps a normalized source domain to the canonical domain
	// used as the corroboration dedup key.
	DomainAliases map[string]string `yaml:"domain_aliases"`
	// Camps maps a normalized source domain to its narrative camp.
	Camps map[string]string `yaml:"camps"`

	SourceWeights       map[string]float64 `yaml:"source_weights"`
	DefaultSourceWeight float64            `yaml:"default_source_weight"`
	MethodWeights       map[string]float64 `yaml:"method_weights"`
	DefaultMethodWeight float64            `yaml:"default_method_weight"`
}

func DefaultTrustPolicy() TrustPolicy {
	return TrustPolicy{
		Thresholds:          DefaultThresholds(),
		CampActivation:      DefaultCampActivation,
		NarrativeDamping:    DefaultNarrativeDamping,
		VersionEpsilon:      DefaultVersionEpsilon,
		DefaultSourceWeight: DefaultSourceWeight,
		DefaultMethodWeight: DefaultMethodWeight,
	}
}

// Normalize lowercases every lookup key so lookups agree with claim
// normalization.
func (p *TrustPolicy) Normalize() {
	p.RelationThresholds = normalizeKeys(p.RelationThresholds, NormalizeKeyPart)
	p.EntityTypeThresholds = normalizeKeys(p.EntityTypeThresholds, NormalizeKeyPart)
	p.DomainAliases = normalizeKeys(p.DomainAliases, NormalizeDomain)
	for k, v := range p.DomainAliases {
		p.DomainAliases[k] = NormalizeDomain(v)
	}
	p.Camps = normalizeKeys(p.Camps, NormalizeDomain)
	for k, v := range p.Camps {
		p.Camps[k] = NormalizeKeyPart(v)
	}
	p.SourceWeights = normalizeKeys(p.SourceWeights, NormalizeDomain)
	p.MethodWeights = normalizeKeys(p.MethodWeights, NormalizeKeyPart)
}

func (p *TrustPolicy) Validate() error {
	if err := p.Thresholds.Validate("thresholds"); err != nil {
		return err
	}
	for rel, t := range p.RelationThresholds {
		if err := t.Validate("relation_thresholds." + rel); err != nil {
			return err
		}
	}
	for et, t := range p.EntityTypeThresholds {
		if err := t.Validate("entity_type_thresholds." + et); err != nil {
			return err
		}
	}
	if !inUnitInterval(p.CampActivation) {
		return &ConfigurationError{Field: "camp_activation", Reason: "must be within [0,1]"}
	}
	if !(p.NarrativeDamping > 0 && p.NarrativeDamping <= 1) {
		return &ConfigurationError{Field: "narrative_damping", Reason: "must be within (0,1]"}
	}
	if !(p.VersionEpsilon >= 0 && p.VersionEpsilon < 1) {
		return &ConfigurationError{Field: "version_epsilon", Reason: "must be within [0,1)"}
	}
	if !inUnitInterval(p.DefaultSourceWeight) {
		return &ConfigurationError{Field: "default_source_weight", Reason: "must be within [0,1]"}
	}
	if !inUnitInterval(p.DefaultMethodWeight) {
		return &ConfigurationError{Field: "default_method_weight", Reason: "must be within [0,1]"}
	}
	for d, w := range p.SourceWeights {
		if !inUnitInterval(w) {
			return &ConfigurationError{Field: "source_weights." + d, Reason: "must be within [0,1]"}
		}
	}
	for m, w := range p.MethodWeights {
		if !inUnitInterval(w) {
			return &ConfigurationError{Field: "method_weights." + m, Reason: "must be within [0,1]"}
		}
	}
	return nil
}

// ThresholdsFor resolves zone thresholds for a key. A relation override wins
// over an entity-type override, which wins over the global default.
func (p *TrustPolicy) ThresholdsFor(relation, entityType string) Thresholds {
	if t, ok := p.RelationThresholds[NormalizeKeyPart(relation)]; ok {
		return t
	}
	if entityType != "" {
		if t, ok := p.EntityTypeThresholds[NormalizeKeyPart(entityType)]; ok {
			return t
		}
	}
	return p.Thresholds
}

// ActivationFor is the aggregate confidence a camp needs to be active.
func (p *TrustPolicy) ActivationFor(t Thresholds) float64 {
	if p.CampActivation > 0 {
		return p.CampActivation
	}
	return t.Unverified
}

// CanonicalDomain is the corroboration dedup key for a source domain.
func (p *TrustPolicy) CanonicalDomain(domain string) string {
	d := NormalizeDomain(domain)
	if alias, ok := p.DomainAliases[d]; ok {
		return alias
	}
	return d
}

func (p *TrustPolicy) CampFor(domain string) string {
	return p.Camps[NormalizeDomain(domain)]
}

func (p *TrustPolicy) SourceWeightFor(domain string) float64 {
	if w, ok := p.SourceWeights[NormalizeDomain(domain)]; ok {
		return w
	}
	return p.DefaultSourceWeight
}

func (p *TrustPolicy) MethodWeightFor(method string) float64 {
	if w, ok := p.MethodWeights[NormalizeKeyPart(method)]; ok {
		return w
	}
	return p.DefaultMethodWeight
}

// NormalizeDomain reduces a URL or host to a bare lowercase host without
// scheme, port, path or leading "www.".
func NormalizeDomain(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil && u.Host != "" {
			s = u.Host
		}
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if host, port, ok := strings.Cut(s, ":"); ok && isDigits(port) {
		s = host
	}
	s = strings.TrimPrefix(s, "www.")
	return strings.TrimSuffix(s, ".")
}

// ValidWeight reports whether w is a usable reliability weight.
func ValidWeight(w float64) bool {
	return !math.IsNaN(w) && inUnitInterval(w)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func normalizeKeys[V any](m map[string]V, norm func(string) string) map[string]V {
	if m == nil {
		return nil
	}
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[norm(k)] = v
	}
	return out
}
