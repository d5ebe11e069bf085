package domain

type Zone string

const (
	ZoneConfirmed  Zone = "CONFIRMED"
	ZoneUnverified Zone = "UNVERIFIED"
	ZoneQuarantine Zone = "QUARANTINE"
)

const (
	DefaultConfirmedThreshold  = 0.8
	DefaultUnverifiedThreshold = 0.5
)

// Thresholds are the lower bounds of the CONFIRMED and UNVERIFIED zones.
type Thresholds struct {
	Confirmed  float64 `yaml:"confirmed" json:"confirmed"`
	Unverified float64 `yaml:"unverified" json:"unverified"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Confirmed:  DefaultConfirmedThreshold,
		Unverified: DefaultUnverifiedThreshold,
	}
}

func (t Thresholds) Validate(field string) error {
	if !inUnitInterval(t.Unverified) || !inUnitInterval(t.Confirmed) {
		return &ConfigurationError{Field: field, Reason: "thresholds must be within [0,1]"}
	}
	if t.Unverified > t.Confirmed {
		return &ConfigurationError{Field: field, Reason: "unverified threshold exceeds confirmed threshold"}
	}
	return nil
}

func Classify(confidence float64, t Thresholds) Zone {
	switch {
	case confidence >= t.Confirmed:
		return ZoneConfirmed
	case confidence >= t.Unverified:
		return ZoneUnverified
	default:
		return ZoneQuarantine
	}
}

// Visible reports whether a zone is shown to consumers. Quarantined evidence
// is only hidden, never discarded.
func Visible(z Zone, showAll bool) bool {
	return showAll || z != ZoneQuarantine
}

func inUnitInterval(v float64) bool {
	return v >= 0 && v <= 1
}
