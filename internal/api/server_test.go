package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/parleysim/parley/internal/bus"
	"github.com/parleysim/parley/internal/engine"
	"github.com/parleysim/parley/internal/negotiation"
	"github.com/parleysim/parley/internal/store"
)

// fakeLauncher runs nothing; it hands back canned results keyed by scenario.
type fakeLauncher struct {
	results map[string]engine.Result
	errs    map[string]error
}

func (f *fakeLauncher) Run(ctx context.Context, req bus.RunRequest) (engine.Result, error) {
	if err, ok := f.errs[req.Scenario]; ok {
		return f.results[req.Scenario], err
	}
	res, ok := f.results[req.Scenario]
	if !ok {
		return engine.Result{}, errors.New("unknown scenario " + req.Scenario)
	}
	return res, nil
}

func (f *fakeLauncher) Scenarios() []string {
	names := make([]string, 0, len(f.results))
	for name := range f.results {
		names = append(names, name)
	}
	return names
}

type fakeRunReader struct {
	records map[uuid.UUID]*store.RunRecord
	recent  []store.RunSummary
}

func (f *fakeRunReader) GetRun(ctx context.Context, id uuid.UUID) (*store.RunRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, store.ErrRunNotFound
	}
	return rec, nil
}

func (f *fakeRunReader) ListRecent(ctx context.Context, limit int) ([]store.RunSummary, error) {
	if limit < len(f.recent) {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func agreedResult() engine.Result {
	return engine.Result{
		ID:     uuid.New(),
		State:  engine.StateAgreed,
		Rounds: 2,
		Verdict: negotiation.Verdict{
			AgreementReached: true,
			AgreedTerms:      &negotiation.AgreedTerms{Price: 715},
			Winner:           negotiation.WinnerBoth,
			SatisfactionA:    negotiation.SatisfactionMedium,
			SatisfactionB:    negotiation.SatisfactionMedium,
		},
	}
}

func testServer(token string, launcher Launcher, runs RunReader) *Server {
	return NewServer(8760, token, launcher, runs)
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer("", &fakeLauncher{}, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	launcher := &fakeLauncher{results: map[string]engine.Result{"used_bike": agreedResult()}}
	srv := testServer("", launcher, nil)

	req := httptest.NewRequest("GET", "/api/v1/parley/status", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["agent"] != "parley" {
		t.Errorf("expected agent parley, got %q", body["agent"])
	}
	if body["scenarios"].(float64) != 1 {
		t.Errorf("expected 1 scenario, got %v", body["scenarios"])
	}
}

func TestPersonasEndpoint(t *testing.T) {
	srv := testServer("", &fakeLauncher{}, nil)

	req := httptest.NewRequest("GET", "/api/v1/personas", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body struct {
		Personas []string `json:"personas"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Personas) != 9 {
		t.Errorf("expected 9 personas, got %d", len(body.Personas))
	}
}

func TestStartNegotiation(t *testing.T) {
	res := agreedResult()
	launcher := &fakeLauncher{results: map[string]engine.Result{"used_bike": res}}
	srv := testServer("", launcher, nil)

	body := strings.NewReader(`{"scenario": "used_bike", "persona_a": "Fair"}`)
	req := httptest.NewRequest("POST", "/api/v1/negotiations/", body)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var got engine.Result
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID != res.ID {
		t.Errorf("expected run id %s, got %s", res.ID, got.ID)
	}
	if got.Verdict.AgreedTerms == nil || got.Verdict.AgreedTerms.Price != 715 {
		t.Errorf("expected agreed price 715, got %+v", got.Verdict.AgreedTerms)
	}
}

func TestStartNegotiation_Validation(t *testing.T) {
	srv := testServer("", &fakeLauncher{}, nil)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{scenario}`},
		{"missing scenario", `{}`},
		{"unknown scenario", `{"scenario": "missing"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/negotiations/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			srv.router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestStartNegotiation_RunFailure(t *testing.T) {
	failed := engine.Result{ID: uuid.New(), State: engine.StateFailed}
	launcher := &fakeLauncher{
		results: map[string]engine.Result{"used_bike": failed},
		errs:    map[string]error{"used_bike": errors.New("round 1: generation failed")},
	}
	srv := testServer("", launcher, nil)

	body := strings.NewReader(`{"scenario": "used_bike"}`)
	req := httptest.NewRequest("POST", "/api/v1/negotiations/", body)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	launcher := &fakeLauncher{results: map[string]engine.Result{"used_bike": agreedResult()}}
	srv := testServer("secret-token", launcher, nil)

	body := `{"scenario": "used_bike"}`

	// No token.
	req := httptest.NewRequest("POST", "/api/v1/negotiations/", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	// Wrong token.
	req = httptest.NewRequest("POST", "/api/v1/negotiations/", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", w.Code)
	}

	// Correct token.
	req = httptest.NewRequest("POST", "/api/v1/negotiations/", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret-token")
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("expected 201 with correct token, got %d", w.Code)
	}

	// Health stays open.
	req = httptest.NewRequest("GET", "/health", nil)
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected open health endpoint, got %d", w.Code)
	}
}

func TestGetNegotiation(t *testing.T) {
	id := uuid.New()
	runs := &fakeRunReader{records: map[uuid.UUID]*store.RunRecord{
		id: {ID: id, Scenario: "used_bike", State: "agreed", Rounds: 2},
	}}
	srv := testServer("", &fakeLauncher{}, runs)

	req := httptest.NewRequest("GET", "/api/v1/negotiations/"+id.String(), nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var rec store.RunRecord
	if err := json.NewDecoder(w.Body).Decode(&rec); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if rec.Scenario != "used_bike" {
		t.Errorf("expected scenario used_bike, got %q", rec.Scenario)
	}

	// Unknown ID.
	req = httptest.NewRequest("GET", "/api/v1/negotiations/"+uuid.New().String(), nil)
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown run, got %d", w.Code)
	}

	// Malformed ID.
	req = httptest.NewRequest("GET", "/api/v1/negotiations/not-a-uuid", nil)
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed id, got %d", w.Code)
	}
}

func TestListNegotiations(t *testing.T) {
	runs := &fakeRunReader{recent: []store.RunSummary{
		{ID: uuid.New(), Scenario: "used_bike", State: "agreed", Rounds: 2},
		{ID: uuid.New(), Scenario: "used_bike", State: "exhausted", Rounds: 10},
	}}
	srv := testServer("", &fakeLauncher{}, runs)

	req := httptest.NewRequest("GET", "/api/v1/negotiations/", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Negotiations []store.RunSummary `json:"negotiations"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Negotiations) != 2 {
		t.Errorf("expected 2 runs, got %d", len(body.Negotiations))
	}

	// Limit applies.
	req = httptest.NewRequest("GET", "/api/v1/negotiations/?limit=1", nil)
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Negotiations) != 1 {
		t.Errorf("expected 1 run with limit=1, got %d", len(body.Negotiations))
	}
}

func TestListNegotiations_NoStore(t *testing.T) {
	srv := testServer("", &fakeLauncher{}, nil)

	req := httptest.NewRequest("GET", "/api/v1/negotiations/", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without persistence, got %d", w.Code)
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := testServer("", &fakeLauncher{}, nil)

	req := httptest.NewRequest("GET", "/nonexistent", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
