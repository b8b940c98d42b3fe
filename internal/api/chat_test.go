package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dkoval/workshop-labs/internal/autosave"
	"github.com/dkoval/workshop-labs/internal/chat"
	"github.com/dkoval/workshop-labs/internal/domain"
	"github.com/dkoval/workshop-labs/internal/retry"
	"github.com/dkoval/workshop-labs/internal/store"
	"github.com/go-chi/chi/v5"
)

// scriptedProvider answers every transcript with a fixed reply.
type scriptedProvider struct {
	reply string
	err   error
}

func (p *scriptedProvider) Complete(context.Context, string, []domain.ChatMessage) (string, error) {
	return p.reply, p.err
}

func newChatTestServer(t *testing.T, provider chat.Provider) (*httptest.Server, store.Repository) {
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

	seq := chat.NewSequencer(func(string) chat.Provider { return provider }, nil)
	base := NewHandler(repo, saves, cfg)
	handler := NewChatHandler(base, seq)

	r := chi.NewRouter()
	r.Use(testSession)
	handler.RegisterRoutes(r)

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

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestChatWithoutCredential(t *testing.T) {
	srv, _ := newChatTestServer(t, &scriptedProvider{reply: "hi"})

	resp := postJSON(t, srv.URL+"/api/chat/identity", `{"message":"hello"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without credential, got %d", resp.StatusCode)
	}
}

func TestChatCredentialFlow(t *testing.T) {
	srv, _ := newChatTestServer(t, &scriptedProvider{reply: "Nice to meet you!"})

	resp := postJSON(t, srv.URL+"/api/chat/credential", `{"api_key":"sk-test"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set credential: expected 200, got %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/api/chat/identity", `{"message":"we're called Acme"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("post message: expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	assistant, _ := body["assistant"].(string)
	if !strings.Contains(assistant, "Nice to meet you!") {
		t.Errorf("assistant turn missing model reply: %q", assistant)
	}
	if left, ok := body["follow_ups_left"].(float64); !ok || left != 1 {
		t.Errorf("expected 1 follow-up left, got %v", body["follow_ups_left"])
	}
}

func TestChatRejectsBlankCredential(t *testing.T) {
	srv, _ := newChatTestServer(t, &scriptedProvider{reply: "hi"})

	resp := postJSON(t, srv.URL+"/api/chat/credential", `{"api_key":"  "}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for blank credential, got %d", resp.StatusCode)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	srv, _ := newChatTestServer(t, &scriptedProvider{reply: "hi"})

	resp := postJSON(t, srv.URL+"/api/chat/identity", `{"message":""}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for empty message, got %d", resp.StatusCode)
	}
}

func TestChatUnknownSection(t *testing.T) {
	srv, _ := newChatTestServer(t, &scriptedProvider{reply: "hi"})

	resp, err := http.Get(srv.URL + "/api/chat/nonsense")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown section, got %d", resp.StatusCode)
	}
}

func TestChatTranscriptSeedsOpening(t *testing.T) {
	srv, _ := newChatTestServer(t, &scriptedProvider{reply: "hi"})

	resp, err := http.Get(srv.URL + "/api/chat/identity")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	messages, ok := body["messages"].([]interface{})
	if !ok || len(messages) != 1 {
		t.Fatalf("expected just the opening prompt, got %v", body["messages"])
	}
	if body["has_credential"] != false {
		t.Errorf("expected has_credential false, got %v", body["has_credential"])
	}
}

// An assistant reply carrying field lines lands in the section's auto-save
// state and is persisted from there.
func TestChatExtractionFeedsAutoSave(t *testing.T) {
	srv, repo := newChatTestServer(t, &scriptedProvider{
		reply: "Great!\nbrand name: Acme Coffee",
	})

	resp := postJSON(t, srv.URL+"/api/chat/credential", `{"api_key":"sk-test"}`)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/chat/identity", `{"message":"we're Acme Coffee"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("post message: expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	extracted, _ := body["extracted"].(map[string]interface{})
	if extracted["brand_name"] != "Acme Coffee" {
		t.Fatalf("expected brand_name extracted, got %v", body["extracted"])
	}

	// The extracted value flows through the debounced save.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := repo.GetSectionRecord(context.Background(), testSessionID, domain.SectionIdentity)
		if err != nil {
			t.Fatalf("read back: %v", err)
		}
		if rec != nil {
			if rec.InputData["brand_name"] != "Acme Coffee" {
				t.Errorf("persisted payload mismatch: %v", rec.InputData)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("extracted fields were never persisted")
}

func TestChatProviderFailure(t *testing.T) {
	srv, _ := newChatTestServer(t, &scriptedProvider{
		err: context.DeadlineExceeded,
	})

	resp := postJSON(t, srv.URL+"/api/chat/credential", `{"api_key":"sk-test"}`)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/chat/identity", `{"message":"hello"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502 when the provider fails, got %d", resp.StatusCode)
	}
}
