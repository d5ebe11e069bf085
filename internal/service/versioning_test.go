package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Harshitk-cp/vidocq/internal/domain"
	"github.com/Harshitk-cp/vidocq/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockVersionStore mocks the VersionStore and Reconciler interfaces.
type MockVersionStore struct {
	mock.Mock
}

func (m *MockVersionStore) Append(ctx context.Context, v *domain.FactVersion) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *MockVersionStore) Latest(ctx context.Context, key domain.FactKey) (*domain.FactVersion, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FactVersion), args.Error(1)
}

func (m *MockVersionStore) History(ctx context.Context, key domain.FactKey) ([]domain.FactVersion, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FactVersion), args.Error(1)
}

func (m *MockVersionStore) Keys(ctx context.Context) ([]domain.FactKey, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FactKey), args.Error(1)
}

func (m *MockVersionStore) Reconcile(ctx context.Context, w *domain.InconsistentStateWarning) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func fact(posterior float64, zone domain.Zone, war bool, at time.Time) *domain.FusedFact {
	return &domain.FusedFact{
		FactKey:      testKey,
		Posterior:    posterior,
		BeliefClass:  domain.ComputeBeliefClass(posterior),
		Zone:         zone,
		NarrativeWar: war,
		UpdatedAt:    at,
	}
}

func version(n int, posterior float64, at time.Time) domain.FactVersion {
	return domain.FactVersion{
		FactKey:     testKey,
		Version:     n,
		Posterior:   posterior,
		BeliefClass: domain.ComputeBeliefClass(posterior),
		Zone:        domain.ZoneUnverified,
		UpdatedAt:   at,
		RecordedAt:  at,
	}
}

func TestShouldAppend(t *testing.T) {
	prev := version(1, 0.40, t0)

	tests := []struct {
		name string
		prev *domain.FactVersion
		next *domain.FusedFact
		want bool
	}{
		{"first version", nil, fact(0.40, domain.ZoneUnverified, false, t0), true},
		{"move within epsilon", &prev, fact(0.405, domain.ZoneUnverified, false, t0), false},
		{"unchanged", &prev, fact(0.40, domain.ZoneUnverified, false, t0), false},
		{"move beyond epsilon", &prev, fact(0.42, domain.ZoneUnverified, false, t0), true},
		{"downward move beyond epsilon", &prev, fact(0.38, domain.ZoneUnverified, false, t0), true},
		{"zone change", &prev, fact(0.40, domain.ZoneConfirmed, false, t0), true},
		{"narrative war change", &prev, fact(0.40, domain.ZoneUnverified, true, t0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldAppend(tt.prev, tt.next, domain.DefaultVersionEpsilon))
		})
	}
}

func TestChangeReasonFor(t *testing.T) {
	prev := version(1, 0.40, t0)

	tests := []struct {
		name string
		prev *domain.FactVersion
		next *domain.FusedFact
		want domain.ChangeReason
	}{
		{"first version", nil, fact(0.40, domain.ZoneUnverified, false, t0), domain.ChangeInitial},
		{"no change", &prev, fact(0.405, domain.ZoneUnverified, false, t0), ""},
		{"posterior", &prev, fact(0.42, domain.ZoneUnverified, false, t0), domain.ChangePosterior},
		{"zone", &prev, fact(0.40, domain.ZoneConfirmed, false, t0), domain.ChangeZone},
		{"war", &prev, fact(0.40, domain.ZoneUnverified, true, t0), domain.ChangeNarrativeWar},
		{"several gates", &prev, fact(0.9, domain.ZoneConfirmed, true, t0), "posterior_moved+zone_changed+narrative_war_changed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChangeReasonFor(tt.prev, tt.next, domain.DefaultVersionEpsilon))
		})
	}
}

func TestAppendVersion_RecordsReasonAndNarratives(t *testing.T) {
	ctx := context.Background()
	vs := store.NewInMemoryVersionStore()
	svc := NewVersioningService(vs, testPolicy(), zap.NewNop())

	_, _, err := svc.AppendVersion(ctx, fact(0.7, domain.ZoneUnverified, false, t0))
	require.NoError(t, err)

	contested := fact(0.6, domain.ZoneUnverified, true, t0.Add(time.Hour))
	contested.Narratives = []domain.CampNarrative{
		{Camp: "adverse", Stance: domain.PolarityNegates, Confidence: 0.24, Active: true, Sources: []string{"rt.com"}},
		{Camp: "western", Stance: domain.PolaritySupports, Confidence: 0.72, Active: true, Sources: []string{"reuters.com"}},
	}
	_, appended, err := svc.AppendVersion(ctx, contested)
	require.NoError(t, err)
	require.True(t, appended)
	contested.Narratives[0].Sources[0] = "changed.example"

	at, found, err := svc.AsOf(ctx, testKey, t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.ChangeReason("posterior_moved+narrative_war_changed"), at.ChangeReason)
	require.Len(t, at.Narratives, 2)
	assert.Equal(t, []string{"rt.com"}, at.Narratives[0].Sources)

	first, found, err := svc.AsOf(ctx, testKey, t0)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.ChangeInitial, first.ChangeReason)
	assert.Empty(t, first.Narratives)
}

func TestAppendVersion(t *testing.T) {
	ctx := context.Background()
	vs := store.NewInMemoryVersionStore()
	svc := NewVersioningService(vs, testPolicy(), zap.NewNop())

	f := fact(0.40, domain.ZoneUnverified, false, t0)
	v, appended, err := svc.AppendVersion(ctx, f)
	require.NoError(t, err)
	assert.True(t, appended)
	assert.Equal(t, 1, v.Version)
	assert.Equal(t, 1, f.Version)

	f = fact(0.405, domain.ZoneUnverified, false, t0.Add(time.Hour))
	v, appended, err = svc.AppendVersion(ctx, f)
	require.NoError(t, err)
	assert.False(t, appended)
	assert.Equal(t, 1, v.Version)
	assert.Equal(t, 1, f.Version)

	f = fact(0.42, domain.ZoneUnverified, false, t0.Add(2*time.Hour))
	v, appended, err = svc.AppendVersion(ctx, f)
	require.NoError(t, err)
	assert.True(t, appended)
	assert.Equal(t, 2, v.Version)

	f = fact(0.42, domain.ZoneConfirmed, false, t0.Add(3*time.Hour))
	_, appended, err = svc.AppendVersion(ctx, f)
	require.NoError(t, err)
	assert.True(t, appended)

	history, err := vs.History(ctx, testKey)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Empty(t, CheckHistory(testKey, history, t0))
}

func TestAppendVersion_UpdatedAtNeverGoesBackwards(t *testing.T) {
	ctx := context.Background()
	vs := store.NewInMemoryVersionStore()
	svc := NewVersioningService(vs, testPolicy(), zap.NewNop())

	_, _, err := svc.AppendVersion(ctx, fact(0.4, domain.ZoneUnverified, false, t0.Add(time.Hour)))
	require.NoError(t, err)
	v, _, err := svc.AppendVersion(ctx, fact(0.9, domain.ZoneConfirmed, false, t0))
	require.NoError(t, err)

	assert.Equal(t, t0.Add(time.Hour), v.UpdatedAt)
}

func TestAppendVersion_StoreConflict(t *testing.T) {
	ms := new(MockVersionStore)
	ms.On("Latest", mock.Anything, testKey).Return(nil, store.ErrNotFound)
	ms.On("Append", mock.Anything, mock.AnythingOfType("*domain.FactVersion")).Return(store.ErrVersionConflict)

	svc := NewVersioningService(ms, testPolicy(), zap.NewNop())
	_, _, err := svc.AppendVersion(context.Background(), fact(0.6, domain.ZoneUnverified, false, t0))

	assert.True(t, errors.Is(err, store.ErrVersionConflict))
	ms.AssertExpectations(t)
}

func TestAsOf(t *testing.T) {
	ctx := context.Background()
	vs := store.NewInMemoryVersionStore()
	require.NoError(t, vs.Append(ctx, ptr(version(1, 0.3, t0))))
	require.NoError(t, vs.Append(ctx, ptr(version(2, 0.7, t0.Add(time.Hour)))))
	svc := NewVersioningService(vs, testPolicy(), zap.NewNop())

	_, found, err := svc.AsOf(ctx, testKey, t0.Add(-time.Second))
	require.NoError(t, err)
	assert.False(t, found)

	v, found, err := svc.AsOf(ctx, testKey, t0)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, v.Version)

	v, found, err = svc.AsOf(ctx, testKey, t0.Add(30*time.Minute))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, v.Version)

	v, found, err = svc.AsOf(ctx, testKey, t0.Add(24*time.Hour))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, v.Version)

	_, found, err = svc.AsOf(ctx, domain.NewFactKey("never", "seen", "key"), t0)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAsOf_OutOfOrderHistoryIsReported(t *testing.T) {
	history := []domain.FactVersion{
		version(1, 0.3, t0.Add(time.Hour)),
		version(2, 0.7, t0),
	}

	ms := new(MockVersionStore)
	ms.On("History", mock.Anything, testKey).Return(history, nil)
	ms.On("Reconcile", mock.Anything, mock.MatchedBy(func(w *domain.InconsistentStateWarning) bool {
		return w.FactKey == testKey && w.Index == 1
	})).Return(nil).Once()

	svc := NewVersioningService(ms, testPolicy(), zap.NewNop())
	v, found, err := svc.AsOf(context.Background(), testKey, t0.Add(2*time.Hour))

	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, v.Version, "highest version at or before the timestamp wins")
	ms.AssertExpectations(t)
}

func TestHistory_RepeatedReadsReconcileOnce(t *testing.T) {
	ctx := context.Background()
	vs := store.NewInMemoryVersionStore()
	require.NoError(t, vs.Append(ctx, ptr(version(1, 0.3, t0.Add(time.Hour)))))
	require.NoError(t, vs.Append(ctx, ptr(version(2, 0.7, t0))))
	svc := NewVersioningService(vs, testPolicy(), zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := svc.History(ctx, testKey)
		require.NoError(t, err)
	}
	assert.Len(t, vs.Anomalies(), 1)
}

func TestCheckHistory(t *testing.T) {
	t.Run("clean", func(t *testing.T) {
		h := []domain.FactVersion{version(1, 0.3, t0), version(2, 0.5, t0), version(3, 0.7, t0.Add(time.Minute))}
		assert.Empty(t, CheckHistory(testKey, h, t0))
	})

	t.Run("gap", func(t *testing.T) {
		h := []domain.FactVersion{version(1, 0.3, t0), version(3, 0.5, t0.Add(time.Minute))}
		warnings := CheckHistory(testKey, h, t0)
		require.Len(t, warnings, 1)
		assert.Equal(t, 1, warnings[0].Index)
		assert.Contains(t, warnings[0].Error(), "version 3")
	})

	t.Run("time goes backwards", func(t *testing.T) {
		h := []domain.FactVersion{version(1, 0.3, t0.Add(time.Minute)), version(2, 0.5, t0)}
		warnings := CheckHistory(testKey, h, t0)
		require.Len(t, warnings, 1)
		assert.Equal(t, 1, warnings[0].Index)
	})
}

func TestAudit(t *testing.T) {
	other := domain.NewFactKey("acme", "acquired", "widget inc")

	ms := new(MockVersionStore)
	ms.On("Keys", mock.Anything).Return([]domain.FactKey{testKey, other}, nil)
	ms.On("History", mock.Anything, testKey).Return([]domain.FactVersion{version(2, 0.3, t0)}, nil)
	ms.On("History", mock.Anything, other).Return(nil, errors.New("connection reset"))
	ms.On("Reconcile", mock.Anything, mock.AnythingOfType("*domain.InconsistentStateWarning")).Return(errors.New("read only"))

	svc := NewVersioningService(ms, testPolicy(), zap.NewNop())
	n, err := svc.Audit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	ms.AssertNumberOfCalls(t, "Reconcile", 1)
}

func TestAudit_InMemoryReconciler(t *testing.T) {
	ctx := context.Background()
	vs := store.NewInMemoryVersionStore()
	require.NoError(t, vs.Append(ctx, ptr(version(1, 0.3, t0))))

	auditor := NewAuditorService(NewVersioningService(vs, testPolicy(), zap.NewNop()), zap.NewNop())
	assert.Zero(t, auditor.RunOnce(ctx))
	assert.Empty(t, vs.Anomalies())
}

func TestCountFlipFlops(t *testing.T) {
	posteriors := func(ps ...float64) []domain.FactVersion {
		out := make([]domain.FactVersion, len(ps))
		for i, p := range ps {
			out[i] = version(i+1, p, t0)
		}
		return out
	}

	assert.Equal(t, FlipLevelNone, CountFlipFlops(testKey, posteriors(0.6, 0.7, 0.8)).Level)
	assert.Equal(t, FlipLevelMonitor, CountFlipFlops(testKey, posteriors(0.6, 0.4, 0.6)).Level)

	r := CountFlipFlops(testKey, posteriors(0.6, 0.4, 0.6, 0.4))
	assert.Equal(t, 3, r.Flips)
	assert.Equal(t, 4, r.Versions)
	assert.Equal(t, FlipLevelManipulation, r.Level)
}
