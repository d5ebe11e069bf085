package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Harshitk-cp/vidocq/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	policy := domain.DefaultTrustPolicy()
	policy.Camps = map[string]string{"rt.com": "russia", "reuters.com": "western"}

	app := NewApp(InMemoryStores(), &policy, nil, prometheus.NewRegistry(), zap.NewNop())
	t.Cleanup(app.Coordinator.Close)
	return app
}

func do(t *testing.T, app *App, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func keyQuery(extra url.Values) string {
	q := url.Values{"subject": {"Country A"}, "relation": {"attacked"}, "object": {"Country B"}}
	for k, v := range extra {
		q[k] = v
	}
	return q.Encode()
}

func claimBody(source, polarity string, sw, mw float64) map[string]any {
	return map[string]any{
		"subject":       "Country A",
		"relation":      "attacked",
		"object":        "Country B",
		"source_domain": source,
		"source_weight": sw,
		"method_weight": mw,
		"polarity":      polarity,
	}
}

func TestClaimsAndFacts(t *testing.T) {
	app := newTestApp(t)
	before := time.Now().UTC()

	rec := do(t, app, http.MethodPost, "/v1/claims", claimBody("https://www.reuters.com/world/1", "SUPPORTS", 0.95, 0.9))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Claim domain.Claim     `json:"claim"`
		Fact  domain.FusedFact `json:"fact"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, "reuters.com", created.Claim.SourceDomain)
	assert.Equal(t, "western", created.Claim.Camp)
	assert.Equal(t, domain.ZoneConfirmed, created.Fact.Zone)
	assert.Equal(t, 1, created.Fact.Version)

	rec = do(t, app, http.MethodPost, "/v1/claims", claimBody("rt.com", "NEGATES", 0.3, 0.8))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, app, http.MethodGet, "/v1/facts?"+keyQuery(nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fact domain.FusedFact
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&fact))
	assert.True(t, fact.NarrativeWar)
	assert.Equal(t, 2, fact.Version)
	assert.Len(t, fact.Narratives, 2)

	rec = do(t, app, http.MethodGet, "/v1/facts/claims?"+keyQuery(nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var visible struct {
		Claims []domain.ScoredClaim `json:"claims"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&visible))
	assert.Len(t, visible.Claims, 1)

	rec = do(t, app, http.MethodGet, "/v1/facts/claims?"+keyQuery(url.Values{"show_all": {"true"}}), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all struct {
		Claims []domain.ScoredClaim `json:"claims"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&all))
	assert.Len(t, all.Claims, 2)

	rec = do(t, app, http.MethodGet, "/v1/facts/history?"+keyQuery(nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Versions  []domain.FactVersion `json:"versions"`
		FlipFlops struct {
			Flips int `json:"flips"`
		} `json:"flip_flops"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&history))
	assert.Len(t, history.Versions, 2)

	at := before.Add(-time.Hour).Format(time.RFC3339)
	rec = do(t, app, http.MethodGet, "/v1/facts/as-of?"+keyQuery(url.Values{"at": {at}}), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	at = time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	rec = do(t, app, http.MethodGet, "/v1/facts/as-of?"+keyQuery(url.Values{"at": {at}}), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var v domain.FactVersion
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	assert.Equal(t, 2, v.Version)
	assert.True(t, v.NarrativeWar)
	assert.Len(t, v.Narratives, 2, "the war is visible as of that time")

	rec = do(t, app, http.MethodGet, "/v1/facts?narrative_war=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Facts []domain.FusedFact `json:"facts"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listed))
	assert.Len(t, listed.Facts, 1)
}

func TestCreateClaim_Invalid(t *testing.T) {
	app := newTestApp(t)

	rec := do(t, app, http.MethodPost, "/v1/claims", claimBody("reuters.com", "MAYBE", 0.9, 0.9))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "polarity")

	rec = do(t, app, http.MethodPost, "/v1/claims", claimBody("reuters.com", "SUPPORTS", 1.5, 0.9))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/claims", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	app.Router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rec = do(t, app, http.MethodGet, "/v1/facts?"+keyQuery(nil), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "rejected claims leave no trace")
}

func TestCreateBatch(t *testing.T) {
	app := newTestApp(t)

	body := map[string]any{"claims": []map[string]any{
		claimBody("reuters.com", "SUPPORTS", 0.95, 0.9),
		claimBody("apnews.com", "SUPPORTS", 0.9, 0.9),
		claimBody("rt.com", "NEGATES", 0.3, 0.8),
	}}
	rec := do(t, app, http.MethodPost, "/v1/claims/batch", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Accepted int `json:"accepted"`
		Failed   int `json:"failed"`
		Results  []struct {
			Fact *domain.FusedFact `json:"fact"`
		} `json:"results"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Accepted)
	assert.Zero(t, resp.Failed)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, 3, resp.Results[2].Fact.ClaimCount)

	rec = do(t, app, http.MethodPost, "/v1/claims/batch", map[string]any{"claims": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFactQueries_BadRequests(t *testing.T) {
	app := newTestApp(t)

	tests := []string{
		"/v1/facts?subject=a&relation=b",
		"/v1/facts?zone=MAYBE",
		"/v1/facts?narrative_war=perhaps",
		"/v1/facts?limit=-1",
		"/v1/facts/claims?subject=a",
		"/v1/facts/as-of?" + keyQuery(nil),
		"/v1/facts/as-of?" + keyQuery(url.Values{"at": {"yesterday"}}),
		"/v1/facts/history?object=x",
		"/v1/facts?subject=a%7Cb&relation=r&object=o",
	}
	for _, target := range tests {
		rec := do(t, app, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	rec := do(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"go_version"`)

	_ = do(t, app, http.MethodPost, "/v1/claims", claimBody("reuters.com", "SUPPORTS", 0.95, 0.9))

	rec = do(t, app, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "vidocq_claims_ingested_total")
	assert.Contains(t, body, "vidocq_fact_versions_appended_total")
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}
