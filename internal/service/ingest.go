package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Harshitk-cp/vidocq/internal/domain"
	"github.com/Harshitk-cp/vidocq/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxEvidenceSnippet = 2000

// ClaimInput is a raw claim as handed over by the extraction pipeline. Nil
// weights and an empty camp are looked up in the trust policy.
type ClaimInput struct {
	Subject         string    `json:"subject"`
	Relation        string    `json:"relation"`
	Object          string    `json:"object"`
	SourceDomain    string    `json:"source_domain"`
	SourceWeight    *float64  `json:"source_weight,omitempty"`
	Method          string    `json:"method,omitempty"`
	MethodWeight    *float64  `json:"method_weight,omitempty"`
	EvidenceSnippet string    `json:"evidence_snippet,omitempty"`
	ExtractedAt     time.Time `json:"extracted_at"`
	Camp            string    `json:"camp,omitempty"`
	Polarity        string    `json:"polarity"`
	EntityType      string    `json:"entity_type,omitempty"`
}

// Enqueuer is the part of the Coordinator the ingestion boundary needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, claim domain.Claim) (*domain.FusedFact, error)
	EnqueueBatch(ctx context.Context, claims []domain.Claim) ([]BatchResult, error)
}

type IngestService struct {
	coordinator Enqueuer
	policy      *domain.TrustPolicy
	logger      *zap.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewIngestService(coordinator Enqueuer, policy *domain.TrustPolicy, logger *zap.Logger) *IngestService {
	return &IngestService{
		coordinator: coordinator,
		policy:      policy,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *IngestService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Submit validates in, turns it into a Claim and hands it to the coordinator.
// A *domain.ValidationError means nothing was recorded.
func (s *IngestService) Submit(ctx context.Context, in ClaimInput) (*domain.Claim, *domain.FusedFact, error) {
	claim, err := s.Build(in)
	if err != nil {
		return nil, nil, err
	}
	fact, err := s.coordinator.Enqueue(ctx, *claim)
	if err != nil {
		return claim, nil, err
	}
	s.metrics.IncrementIngested(string(fact.Zone))
	return claim, fact, nil
}

// SubmitBatch validates every input first; one invalid input rejects the
// whole batch before anything is enqueued.
func (s *IngestService) SubmitBatch(ctx context.Context, inputs []ClaimInput) ([]domain.Claim, []BatchResult, error) {
	claims := make([]domain.Claim, 0, len(inputs))
	for i, in := range inputs {
		c, err := s.Build(in)
		if err != nil {
			return nil, nil, fmt.Errorf("claim %d: %w", i, err)
		}
		claims = append(claims, *c)
	}

	results, err := s.coordinator.EnqueueBatch(ctx, claims)
	for _, r := range results {
		if r.Err == nil && r.Fact != nil {
			s.metrics.IncrementIngested(string(r.Fact.Zone))
		}
	}
	return claims, results, err
}

func separatorError(field string) *domain.ValidationError {
	return &domain.ValidationError{Field: field, Reason: fmt.Sprintf("must not contain %q", domain.FactKeySeparator)}
}

// Build validates and normalizes in without submitting it.
func (s *IngestService) Build(in ClaimInput) (*domain.Claim, error) {
	key := domain.NewFactKey(in.Subject, in.Relation, in.Object)
	sourceDomain := domain.NormalizeDomain(in.SourceDomain)
	polarity := strings.ToUpper(strings.TrimSpace(in.Polarity))

	var err *domain.ValidationError
	switch {
	case key.Subject == "":
		err = &domain.ValidationError{Field: "subject", Reason: "must not be empty"}
	case key.Relation == "":
		err = &domain.ValidationError{Field: "relation", Reason: "must not be empty"}
	case key.Object == "":
		err = &domain.ValidationError{Field: "object", Reason: "must not be empty"}
	case strings.Contains(key.Subject, domain.FactKeySeparator):
		err = separatorError("subject")
	case strings.Contains(key.Relation, domain.FactKeySeparator):
		err = separatorError("relation")
	case strings.Contains(key.Object, domain.FactKeySeparator):
		err = separatorError("object")
	case sourceDomain == "":
		err = &domain.ValidationError{Field: "source_domain", Reason: "must not be empty"}
	case !domain.ValidPolarity(polarity):
		err = &domain.ValidationError{Field: "polarity", Reason: fmt.Sprintf("unknown polarity %q", in.Polarity)}
	case in.SourceWeight != nil && !domain.ValidWeight(*in.SourceWeight):
		err = &domain.ValidationError{Field: "source_weight", Reason: "must be within [0,1]"}
	case in.MethodWeight != nil && !domain.ValidWeight(*in.MethodWeight):
		err = &domain.ValidationError{Field: "method_weight", Reason: "must be within [0,1]"}
	}
	if err != nil {
		s.metrics.IncrementRejected(err.Field)
		s.logger.Warn("claim rejected",
			zap.String("field", err.Field),
			zap.String("reason", err.Reason),
			zap.String("source_domain", in.SourceDomain))
		return nil, err
	}

	sw := s.policy.SourceWeightFor(sourceDomain)
	if in.SourceWeight != nil {
		sw = *in.SourceWeight
	}
	method := domain.NormalizeKeyPart(in.Method)
	mw := s.policy.MethodWeightFor(method)
	if in.MethodWeight != nil {
		mw = *in.MethodWeight
	}
	camp := domain.NormalizeKeyPart(in.Camp)
	if camp == "" {
		camp = s.policy.CampFor(sourceDomain)
	}

	now := s.now().UTC()
	extractedAt := in.ExtractedAt
	if extractedAt.IsZero() {
		extractedAt = now
	}
	snippet := in.EvidenceSnippet
	if len(snippet) > maxEvidenceSnippet {
		snippet = truncate(snippet, maxEvidenceSnippet)
	}

	return &domain.Claim{
		ID:              uuid.New(),
		FactKey:         key,
		SourceDomain:    sourceDomain,
		SourceWeight:    sw,
		Method:          method,
		MethodWeight:    mw,
		EvidenceSnippet: snippet,
		ExtractedAt:     extractedAt,
		Camp:            camp,
		Polarity:        domain.Polarity(polarity),
		EntityType:      domain.NormalizeKeyPart(in.EntityType),
		RecordedAt:      now,
	}, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	for n > 0 && n < len(s) && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
