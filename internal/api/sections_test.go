package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dkoval/workshop-labs/internal/autosave"
	"github.com/dkoval/workshop-labs/internal/config"
	"github.com/dkoval/workshop-labs/internal/identity"
	"github.com/dkoval/workshop-labs/internal/retry"
	"github.com/dkoval/workshop-labs/internal/store"
	"github.com/go-chi/chi/v5"
)

const testSessionID = "11111111-1111-4111-8111-111111111111"

func testConfig() *config.Config {
	return &config.Config{
		Port:      "8080",
		DBPath:    "unused",
		Debounce:  10 * time.Millisecond,
		StatusTTL: 50 * time.Millisecond,
		Retry:     config.RetryConfig{MaxAttempts: 3, Delay: time.Millisecond},
		OpenAI:    config.OpenAIConfig{Model: "gpt-4o-mini"},
	}
}

// testSession pins every request to a fixed session without running the full
// identity middleware.
func testSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(identity.WithSessionID(r.Context(), testSessionID)))
	})
}

func newTestServer(t *testing.T) (*httptest.Server, store.Repository) {
	t.Helper()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}

	cfg := testConfig()
	saves := autosave.NewManager(repo, autosave.Config{
		Debounce:  cfg.Debounce,
		StatusTTL: cfg.StatusTTL,
		Retry:     retry.Policy{MaxAttempts: cfg.Retry.MaxAttempts, Delay: cfg.Retry.Delay},
	}, nil)

	base := NewHandler(repo, saves, cfg)
	sections := NewSectionHandler(base, false)

	r := chi.NewRouter()
	r.Use(testSession)
	sections.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		saves.Close()
		if err := repo.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return srv, repo
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestGetConfig(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/config")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["ai_enabled"] != false {
		t.Errorf("expected ai_enabled false, got %v", body["ai_enabled"])
	}
}

func TestGetSectionUnknown(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/sections/nonsense")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown section, got %d", resp.StatusCode)
	}
}

func TestGetSectionEmptyState(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/sections/identity")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("a section with no record should be 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if fields, ok := body["fields"].(map[string]interface{}); ok && len(fields) != 0 {
		t.Errorf("expected empty fields, got %v", fields)
	}
	if body["persisted"] != false {
		t.Errorf("expected persisted false, got %v", body["persisted"])
	}
}

func TestPutSectionFlushPersists(t *testing.T) {
	srv, repo := newTestServer(t)

	payload := `{"fields":{"brand_name":"Acme Coffee","mission":"Better mornings"}}`
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/sections/identity?flush=1", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	fields, _ := body["fields"].(map[string]interface{})
	if fields["brand_name"] != "Acme Coffee" {
		t.Errorf("response should echo fields, got %v", fields)
	}

	rec, err := repo.GetSectionRecord(req.Context(), testSessionID, "identity")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if rec == nil {
		t.Fatal("flush should persist the record immediately")
	}
	if rec.InputData["brand_name"] != "Acme Coffee" {
		t.Errorf("persisted payload mismatch: %v", rec.InputData)
	}
}

func TestPutSectionDebounced(t *testing.T) {
	srv, repo := newTestServer(t)

	payload := `{"fields":{"brand_name":"Acme"}}`
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/sections/identity", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// The save runs after the debounce interval.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := repo.GetSectionRecord(req.Context(), testSessionID, "identity")
		if err != nil {
			t.Fatalf("read back: %v", err)
		}
		if rec != nil {
			if rec.InputData["brand_name"] != "Acme" {
				t.Errorf("persisted payload mismatch: %v", rec.InputData)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("debounced save never landed")
}

func TestPutSectionBadRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"fields":`},
		{"no fields", `{"fields":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/sections/identity", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("build request: %v", err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestListSections(t *testing.T) {
	srv, _ := newTestServer(t)

	// Start one section first.
	payload := `{"fields":{"brand_name":"Acme"}}`
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/sections/identity?flush=1", strings.NewReader(payload))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("seed request failed: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/sections")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	sections, ok := body["sections"].([]interface{})
	if !ok || len(sections) != 6 {
		t.Fatalf("expected all 6 sections listed, got %v", body["sections"])
	}

	first, _ := sections[0].(map[string]interface{})
	if first["section"] != "identity" {
		t.Errorf("identity should come first, got %v", first["section"])
	}
	if first["started"] != true {
		t.Errorf("identity should be marked started, got %v", first["started"])
	}
	second, _ := sections[1].(map[string]interface{})
	if second["started"] != false {
		t.Errorf("untouched section should not be started, got %v", second["started"])
	}
}

func TestGetSectionStatusIdle(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/sections/offer/status")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != string(autosave.StatusIdle) {
		t.Errorf("expected idle status, got %v", body["status"])
	}
}
