package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFactKey_Normalizes(t *testing.T) {
	a := NewFactKey("  Acme   Corp ", "FUNDS", "Beta\tLtd")
	b := NewFactKey("acme corp", "funds", "beta ltd")

	assert.Equal(t, a, b)
	assert.Equal(t, "acme corp|funds|beta ltd", a.String())
	assert.True(t, a.Valid())
	assert.False(t, NewFactKey("a", " ", "b").Valid())

	parsed, ok := ParseFactKey(a.String())
	require.True(t, ok)
	assert.Equal(t, a, parsed)

	_, ok = ParseFactKey("only|two")
	assert.False(t, ok)
}

func TestFactKey_SeparatorInPartIsInvalid(t *testing.T) {
	a := NewFactKey("acme|holdings", "funds", "b")
	b := NewFactKey("acme", "holdings|funds", "b")

	assert.NotEqual(t, a, b)
	assert.Equal(t, a.String(), b.String(), "the joined forms collide")
	assert.False(t, a.Valid())
	assert.False(t, b.Valid())
}

func TestNormalizeDomain(t *testing.T) {
	tests := map[string]string{
		"reuters.com":                         "reuters.com",
		"WWW.Reuters.com":                     "reuters.com",
		"https://www.reuters.com/world/x?y=1": "reuters.com",
		"rt.com:443":                          "rt.com",
		"  bbc.co.uk/news ":                   "bbc.co.uk",
		"":                                    "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeDomain(in), "input %q", in)
	}
}

func TestTrustPolicy_ThresholdsFor(t *testing.T) {
	p := DefaultTrustPolicy()
	p.RelationThresholds = map[string]Thresholds{"FUNDS": {Confirmed: 0.9, Unverified: 0.6}}
	p.EntityTypeThresholds = map[string]Thresholds{"Person": {Confirmed: 0.85, Unverified: 0.55}}
	p.Normalize()

	assert.Equal(t, Thresholds{Confirmed: 0.9, Unverified: 0.6}, p.ThresholdsFor("funds", "person"))
	assert.Equal(t, Thresholds{Confirmed: 0.85, Unverified: 0.55}, p.ThresholdsFor("owns", "PERSON"))
	assert.Equal(t, DefaultThresholds(), p.ThresholdsFor("owns", ""))
}

func TestTrustPolicy_Lookups(t *testing.T) {
	p := DefaultTrustPolicy()
	p.Camps = map[string]string{"RT.com": "Adverse"}
	p.DomainAliases = map[string]string{"edition.cnn.com": "CNN.com"}
	p.SourceWeights = map[string]float64{"reuters.com": 0.95}
	p.MethodWeights = map[string]float64{"GPT-4o": 0.9}
	p.Normalize()

	assert.Equal(t, "adverse", p.CampFor("https://www.rt.com/news"))
	assert.Equal(t, "", p.CampFor("reuters.com"))
	assert.Equal(t, "cnn.com", p.CanonicalDomain("edition.cnn.com"))
	assert.Equal(t, "bbc.com", p.CanonicalDomain("www.bbc.com"))
	assert.Equal(t, 0.95, p.SourceWeightFor("reuters.com"))
	assert.Equal(t, DefaultSourceWeight, p.SourceWeightFor("unknown.org"))
	assert.Equal(t, 0.9, p.MethodWeightFor("gpt-4o"))
	assert.Equal(t, DefaultMethodWeight, p.MethodWeightFor("regex"))

	assert.Equal(t, DefaultCampActivation, p.ActivationFor(DefaultThresholds()))
	p.CampActivation = 0
	assert.Equal(t, DefaultUnverifiedThreshold, p.ActivationFor(DefaultThresholds()))
	assert.Equal(t, 0.7, p.ActivationFor(Thresholds{Confirmed: 0.9, Unverified: 0.7}))
}

func TestTrustPolicy_Validate(t *testing.T) {
	valid := DefaultTrustPolicy()
	require.NoError(t, valid.Validate())

	cases := map[string]func(p *TrustPolicy){
		"damping zero":           func(p *TrustPolicy) { p.NarrativeDamping = 0 },
		"damping above one":      func(p *TrustPolicy) { p.NarrativeDamping = 1.5 },
		"negative epsilon":       func(p *TrustPolicy) { p.VersionEpsilon = -0.1 },
		"source weight too high": func(p *TrustPolicy) { p.SourceWeights = map[string]float64{"x.com": 1.1} },
		"method weight nan":      func(p *TrustPolicy) { p.MethodWeights = map[string]float64{"m": math.NaN()} },
		"bad relation": func(p *TrustPolicy) {
			p.RelationThresholds = map[string]Thresholds{"r": {Confirmed: 0.3, Unverified: 0.6}}
		},
		"camp activation": func(p *TrustPolicy) { p.CampActivation = 2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := DefaultTrustPolicy()
			mutate(&p)
			err := p.Validate()
			var cfgErr *ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
		})
	}
}
