// Seed script that posts a small contested news scenario to a running server.
// Run with: go run ./scripts/seed.go
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type claim struct {
	Subject         string   `json:"subject"`
	Relation        string   `json:"relation"`
	Object          string   `json:"object"`
	SourceDomain    string   `json:"source_domain"`
	SourceWeight    *float64 `json:"source_weight,omitempty"`
	Method          string   `json:"method,omitempty"`
	EvidenceSnippet string   `json:"evidence_snippet,omitempty"`
	Camp            string   `json:"camp,omitempty"`
	Polarity        string   `json:"polarity"`
}

func weight(w float64) *float64 { return &w }

func main() {
	envFile := os.Getenv("VIDOCQ_ENV")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	baseURL := os.Getenv("VIDOCQ_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	claims := []claim{
		{
			Subject: "Country A", Relation: "attacked", Object: "Country B",
			SourceDomain: "reuters.com", SourceWeight: weight(0.95), Method: "ner",
			EvidenceSnippet: "Forces of Country A crossed the border overnight.",
			Camp:            "western", Polarity: "SUPPORTS",
		},
		{
			Subject: "Country A", Relation: "attacked", Object: "Country B",
			SourceDomain: "apnews.com", SourceWeight: weight(0.9), Method: "ner",
			Camp: "western", Polarity: "SUPPORTS",
		},
		{
			Subject: "Country A", Relation: "attacked", Object: "Country B",
			SourceDomain: "rt.com", SourceWeight: weight(0.3), Method: "ner",
			EvidenceSnippet: "Reports of an attack are a provocation.",
			Camp:            "russia", Polarity: "NEGATES",
		},
		{
			Subject: "Acme Corp", Relation: "acquired", Object: "Widget Inc",
			SourceDomain: "https://www.bloomberg.com/news/acme", SourceWeight: weight(0.9), Method: "regex",
			Polarity: "SUPPORTS",
		},
		{
			Subject: "Acme Corp", Relation: "acquired", Object: "Widget Inc",
			SourceDomain: "random-blog.net", SourceWeight: weight(0.2),
			Polarity: "NEGATES",
		},
	}

	body, err := json.Marshal(map[string]any{"claims": claims})
	if err != nil {
		log.Fatalf("Failed to encode claims: %v", err)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(baseURL+"/v1/claims/batch", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("Failed to post claims: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		Accepted int `json:"accepted"`
		Failed   int `json:"failed"`
		Results  []struct {
			ClaimID string `json:"claim_id"`
			Error   string `json:"error"`
			Fact    *struct {
				Posterior    float64 `json:"posterior"`
				BeliefClass  string  `json:"belief_class"`
				Zone         string  `json:"zone"`
				NarrativeWar bool    `json:"narrative_war"`
				Version      int     `json:"version"`
			} `json:"fact"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatalf("Failed to decode response (status %d): %v", resp.StatusCode, err)
	}

	fmt.Printf("Seeded %d claims (%d failed)\n", out.Accepted, out.Failed)
	for i, r := range out.Results {
		if r.Error != "" || r.Fact == nil {
			fmt.Printf("  %s %s: error %s\n", claims[i].SourceDomain, claims[i].Polarity, r.Error)
			continue
		}
		fmt.Printf("  %-40s %-8s posterior=%.3f %s zone=%s war=%v v%d\n",
			claims[i].SourceDomain, claims[i].Polarity, r.Fact.Posterior, r.Fact.BeliefClass,
			r.Fact.Zone, r.Fact.NarrativeWar, r.Fact.Version)
	}
}
