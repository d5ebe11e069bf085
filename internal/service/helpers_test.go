package service

import (
	"time"

	"github.com/Harshitk-cp/vidocq/internal/domain"
	"github.com/google/uuid"
)

var (
	testKey       = domain.NewFactKey("Country A", "attacked", "Country B")
	testExtracted = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func testPolicy() *domain.TrustPolicy {
	p := domain.DefaultTrustPolicy()
	return &p
}

func newClaim(key domain.FactKey, source string, sw, mw float64, camp string, pol domain.Polarity) domain.Claim {
	return domain.Claim{
		ID:           uuid.New(),
		FactKey:      key,
		SourceDomain: domain.NormalizeDomain(source),
		SourceWeight: sw,
		MethodWeight: mw,
		ExtractedAt:  testExtracted,
		Camp:         camp,
		Polarity:     pol,
		RecordedAt:   testExtracted,
	}
}

func supports(source string, sw float64, camp string) domain.Claim {
	return newClaim(testKey, source, sw, 1, camp, domain.PolaritySupports)
}

func negates(source string, sw float64, camp string) domain.Claim {
	return newClaim(testKey, source, sw, 1, camp, domain.PolarityNegates)
}

func scoredClaim(camp string, pol domain.Polarity, conf float64) domain.ScoredClaim {
	c := newClaim(testKey, camp+".example", conf, 1, camp, pol)
	return domain.ScoredClaim{Claim: c, Confidence: conf, Zone: domain.Classify(conf, domain.DefaultThresholds()), Corroboration: 1}
}
