package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Harshitk-cp/vidocq/internal/domain"
	"github.com/Harshitk-cp/vidocq/internal/metrics"
	"github.com/Harshitk-cp/vidocq/internal/store"
	"go.uber.org/zap"
)

const (
	FlipLevelNone         = "NONE"
	FlipLevelMonitor      = "MONITOR"
	FlipLevelManipulation = "POTENTIAL_MANIPULATION"

	flipMonitorThreshold      = 2
	flipManipulationThreshold = 3
)

// FlipFlopReport counts how often the belief for a key crossed 0.5.
type FlipFlopReport struct {
	FactKey  domain.FactKey `json:"fact_key"`
	Versions int            `json:"versions"`
	Flips    int            `json:"flips"`
	Level    string         `json:"level"`
}

type VersioningService struct {
	store   domain.VersionStore
	policy  *domain.TrustPolicy
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewVersioningService(vs domain.VersionStore, policy *domain.TrustPolicy, logger *zap.Logger) *VersioningService {
	return &VersioningService{
		store:  vs,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

func (s *VersioningService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// ShouldAppend reports whether next differs enough from prev to deserve a
// new version: a posterior move strictly greater than epsilon, or a change of
// zone or narrative war. The first version is always appended.
func ShouldAppend(prev *domain.FactVersion, next *domain.FusedFact, epsilon float64) bool {
	return ChangeReasonFor(prev, next, epsilon) != ""
}

// ChangeReasonFor names every gate next passes against prev. It is empty when
// next does not deserve a new version.
func ChangeReasonFor(prev *domain.FactVersion, next *domain.FusedFact, epsilon float64) domain.ChangeReason {
	if prev == nil {
		return domain.ChangeInitial
	}
	var reasons []string
	if math.Abs(next.Posterior-prev.Posterior) > epsilon {
		reasons = append(reasons, string(domain.ChangePosterior))
	}
	if next.Zone != prev.Zone {
		reasons = append(reasons, string(domain.ChangeZone))
	}
	if next.NarrativeWar != prev.NarrativeWar {
		reasons = append(reasons, string(domain.ChangeNarrativeWar))
	}
	return domain.ChangeReason(strings.Join(reasons, "+"))
}

// AppendVersion records fact as the next version of its key when it passes
// the epsilon gate. It returns the latest version either way and whether a
// new one was written. fact.Version is set to the latest version number.
//
// Only the Coordinator calls this; it serializes calls per key.
func (s *VersioningService) AppendVersion(ctx context.Context, fact *domain.FusedFact) (*domain.FactVersion, bool, error) {
	prev, err := s.store.Latest(ctx, fact.FactKey)
	if errors.Is(err, store.ErrNotFound) {
		prev, err = nil, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load latest version: %w", err)
	}

	reason := ChangeReasonFor(prev, fact, s.policy.VersionEpsilon)
	if reason == "" {
		fact.Version = prev.Version
		return prev, false, nil
	}

	next := 1
	if prev != nil {
		next = prev.Version + 1
	}
	v := domain.NewFactVersion(fact, next, s.now())
	v.ChangeReason = reason
	if prev != nil && v.UpdatedAt.Before(prev.UpdatedAt) {
		v.UpdatedAt = prev.UpdatedAt
	}

	if err := s.store.Append(ctx, &v); err != nil {
		return nil, false, fmt.Errorf("append version %d: %w", next, err)
	}
	fact.Version = v.Version
	s.metrics.IncrementVersions()

	s.logger.Info("fact version appended",
		zap.String("fact_key", fact.FactKey.String()),
		zap.Int("version", v.Version),
		zap.String("change_reason", string(v.ChangeReason)),
		zap.Float64("posterior", v.Posterior),
		zap.String("zone", string(v.Zone)),
		zap.Bool("narrative_war", v.NarrativeWar))

	return &v, true, nil
}

// AsOf returns the latest version with UpdatedAt <= ts. found is false when no
// belief existed yet; that is not an error.
func (s *VersioningService) AsOf(ctx context.Context, key domain.FactKey, ts time.Time) (v *domain.FactVersion, found bool, err error) {
	history, err := s.History(ctx, key)
	if err != nil {
		return nil, false, err
	}

	var best *domain.FactVersion
	for i := range history {
		h := &history[i]
		if h.UpdatedAt.After(ts) {
			continue
		}
		if best == nil || h.Version > best.Version {
			best = h
		}
	}
	if best == nil {
		return nil, false, nil
	}
	out := best.Clone()
	return &out, true, nil
}

// History returns every version of key in stored order, reporting any
// ordering violation it finds.
func (s *VersioningService) History(ctx context.Context, key domain.FactKey) ([]domain.FactVersion, error) {
	history, err := s.store.History(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load version history: %w", err)
	}
	s.report(ctx, CheckHistory(key, history, s.now()))
	return history, nil
}

func (s *VersioningService) FlipFlops(ctx context.Context, key domain.FactKey) (*FlipFlopReport, error) {
	history, err := s.History(ctx, key)
	if err != nil {
		return nil, err
	}
	return CountFlipFlops(key, history), nil
}

// Audit checks the history of every known key and returns the number of
// warnings raised.
func (s *VersioningService) Audit(ctx context.Context) (int, error) {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list version keys: %w", err)
	}
	total := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		history, err := s.store.History(ctx, key)
		if err != nil {
			s.logger.Warn("failed to load history for audit",
				zap.String("fact_key", key.String()),
				zap.Error(err))
			continue
		}
		warnings := CheckHistory(key, history, s.now())
		s.report(ctx, warnings)
		total += len(warnings)
	}
	return total, nil
}

func (s *VersioningService) report(ctx context.Context, warnings []*domain.InconsistentStateWarning) {
	if len(warnings) == 0 {
		return
	}
	reconciler, _ := s.store.(domain.Reconciler)
	for _, w := range warnings {
		s.metrics.IncrementInconsistentState()
		s.logger.Warn("inconsistent version history",
			zap.String("fact_key", w.FactKey.String()),
			zap.Int("index", w.Index),
			zap.String("detail", w.Detail))
		if reconciler == nil {
			continue
		}
		if err := reconciler.Reconcile(ctx, w); err != nil {
			s.logger.Error("reconcile failed",
				zap.String("fact_key", w.FactKey.String()),
				zap.Error(err))
		}
	}
}

// CheckHistory verifies that versions are numbered 1..n without gaps and
// that UpdatedAt never goes backwards.
func CheckHistory(key domain.FactKey, history []domain.FactVersion, now time.Time) []*domain.InconsistentStateWarning {
	var out []*domain.InconsistentStateWarning
	for i := range history {
		want := i + 1
		if history[i].Version != want {
			out = append(out, &domain.InconsistentStateWarning{
				FactKey:    key,
				Index:      i,
				Detail:     fmt.Sprintf("version %d at position %d, want %d", history[i].Version, i, want),
				DetectedAt: now,
			})
		}
		if i > 0 && history[i].UpdatedAt.Before(history[i-1].UpdatedAt) {
			out = append(out, &domain.InconsistentStateWarning{
				FactKey:    key,
				Index:      i,
				Detail:     fmt.Sprintf("version %d updated before version %d", history[i].Version, history[i-1].Version),
				DetectedAt: now,
			})
		}
	}
	return out
}

func CountFlipFlops(key domain.FactKey, history []domain.FactVersion) *FlipFlopReport {
	r := &FlipFlopReport{FactKey: key, Versions: len(history), Level: FlipLevelNone}
	for i := 1; i < len(history); i++ {
		if (history[i].Posterior >= 0.5) != (history[i-1].Posterior >= 0.5) {
			r.Flips++
		}
	}
	switch {
	case r.Flips >= flipManipulationThreshold:
		r.Level = FlipLevelManipulation
	case r.Flips >= flipMonitorThreshold:
		r.Level = FlipLevelMonitor
	}
	return r
}
