package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Harshitk-cp/vidocq/internal/domain"
	"gopkg.in/yaml.v3"
)

// LoadTrustPolicy reads the YAML policy at path on top of the defaults. An
// empty path yields the defaults. The returned policy is normalized and
// validated; a bad value is reported as *domain.ConfigurationError.
func LoadTrustPolicy(path string) (*domain.TrustPolicy, error) {
	if path == "" {
		p := domain.DefaultTrustPolicy()
		return &p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trust policy: %w", err)
	}
	return ParseTrustPolicy(raw)
}

// thresholdOverride is a relation or entity-type override as written. A
// bound left out inherits the global threshold.
type thresholdOverride struct {
	Confirmed  *float64 `yaml:"confirmed"`
	Unverified *float64 `yaml:"unverified"`
}

type thresholdOverrides struct {
	Relation   map[string]thresholdOverride `yaml:"relation_thresholds"`
	EntityType map[string]thresholdOverride `yaml:"entity_type_thresholds"`
}

func (o thresholdOverride) onto(base domain.Thresholds) domain.Thresholds {
	if o.Confirmed != nil {
		base.Confirmed = *o.Confirmed
	}
	if o.Unverified != nil {
		base.Unverified = *o.Unverified
	}
	return base
}

func mergeOverrides(in map[string]thresholdOverride, base domain.Thresholds) map[string]domain.Thresholds {
	if in == nil {
		return nil
	}
	out := make(map[string]domain.Thresholds, len(in))
	for k, o := range in {
		out[k] = o.onto(base)
	}
	return out
}

// ParseTrustPolicy decodes a YAML document. Unknown fields are rejected so a
// misspelled threshold cannot silently fall back to its default.
func ParseTrustPolicy(raw []byte) (*domain.TrustPolicy, error) {
	p := domain.DefaultTrustPolicy()

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, &domain.ConfigurationError{Field: "trust_policy", Reason: err.Error()}
	}

	var overrides thresholdOverrides
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, &domain.ConfigurationError{Field: "trust_policy", Reason: err.Error()}
	}
	p.RelationThresholds = mergeOverrides(overrides.Relation, p.Thresholds)
	p.EntityTypeThresholds = mergeOverrides(overrides.EntityType, p.Thresholds)

	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
