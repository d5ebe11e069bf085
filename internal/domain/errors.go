package domain

import (
	"fmt"
	"time"
)

// ValidationError reports a malformed claim at the ingestion boundary. Nothing
// has been recorded when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid claim: %s: %s", e.Field, e.Reason)
}

// ConfigurationError reports thresholds or weights outside their domain. It is
// fatal at startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// InconsistentStateWarning is raised when a version history violates its
// ordering contract. It is recoverable and is handed to the store's
// Reconciler; it never aborts a read.
type InconsistentStateWarning struct {
	FactKey    FactKey
	Index      int
	Detail     string
	DetectedAt time.Time
}

func (w *InconsistentStateWarning) Error() string {
	return fmt.Sprintf("inconsistent version history for %s at index %d: %s", w.FactKey, w.Index, w.Detail)
}
