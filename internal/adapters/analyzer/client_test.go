package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/planetforge/engine/internal/domain/model"
)

func sample() model.MetricsSample {
	return model.MetricsSample{
		Lines:      120,
		Functions:  6,
		Comments:   15,
		Complexity: 4.5,
		Language:   "go",
	}
}

func TestClient_Analyze(t *testing.T) {
	var gotAuth string
	var gotBody analyzeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(analyzeResponse{
			SkillDeltas: map[string]float64{
				"algorithm_mastery":     1.2,
				"web_development_skill": 0.4,
			},
			CodingStyle:  "methodical",
			TraitUpdates: map[string]float64{"curiosity": 0.5},
			Insights:     []string{"consider smaller functions"},
			ModelUsed:    "claude-sonnet",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-key", time.Second)
	analysis, err := c.Analyze(context.Background(), sample())
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	if gotAuth != "Bearer secret-key" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
	if gotBody.Lines != 120 || gotBody.Language != "go" {
		t.Errorf("unexpected request body %+v", gotBody)
	}

	if analysis.SkillDeltas[model.SkillAlgorithmMastery] != 1.2 {
		t.Errorf("expected delta 1.2, got %v", analysis.SkillDeltas[model.SkillAlgorithmMastery])
	}
	// Skills missing from the response map to zero.
	if analysis.SkillDeltas[model.SkillDevopsMaturity] != 0 {
		t.Errorf("expected zero delta, got %v", analysis.SkillDeltas[model.SkillDevopsMaturity])
	}
	if analysis.CodingStyle != "methodical" {
		t.Errorf("unexpected style %q", analysis.CodingStyle)
	}
	if len(analysis.Suggestions) != 1 {
		t.Errorf("expected 1 suggestion, got %d", len(analysis.Suggestions))
	}
	if analysis.Traits["curiosity"] != 0.5 {
		t.Errorf("unexpected traits %+v", analysis.Traits)
	}
}

func TestClient_AnalyzeNoAuthHeaderWithoutKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(analyzeResponse{
			SkillDeltas: map[string]float64{"algorithm_mastery": 0.1},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	if _, err := c.Analyze(context.Background(), sample()); err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("expected no auth header, got %q", gotAuth)
	}
}

func TestClient_AnalyzeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", time.Second)
	_, err := c.Analyze(context.Background(), sample())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestClient_AnalyzeMalformedResponse(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"invalid json", "{not json"},
		{"empty deltas", `{"skill_deltas":{},"coding_style":"pragmatic"}`},
		{"missing deltas", `{"coding_style":"pragmatic"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "key", time.Second)
			_, err := c.Analyze(context.Background(), sample())
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestClient_AnalyzeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, "key", 50*time.Millisecond)
	_, err := c.Analyze(context.Background(), sample())
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestClient_AnalyzeUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "key", time.Second)
	_, err := c.Analyze(context.Background(), sample())
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, ErrUnavailable) && !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrUnavailable or ErrTimeout, got %v", err)
	}
}
