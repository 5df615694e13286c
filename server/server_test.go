package server

import (
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/keyvet-hq/keyvet/core"
	"github.com/keyvet-hq/keyvet/core/findings"
	"github.com/keyvet-hq/keyvet/core/storage"
	"github.com/keyvet-hq/keyvet/core/vault"
)

func testServer(t *testing.T, scanDir string) (*Server, *storage.Store) {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	cipher, err := vault.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	dbPath := filepath.Join(t.TempDir(), "credentials.db")
	store, err := storage.Open(dbPath, cipher)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cfg := &core.Config{
		ScanPaths: []string{scanDir},
		OpenAI:    core.OpenAIConfig{APIKeyEnv: "KEYVET_TEST_NO_LLM"},
	}
	scanner, err := core.NewScanner(cfg, store)
	if err != nil {
		t.Fatal(err)
	}
	return New(scanner, store, dbPath), store
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := testServer(t, t.TempDir())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["ok"] != true {
		t.Fatalf("body = %v", body)
	}
	if db, _ := body["db"].(string); db == "" {
		t.Fatal("status should report the db path")
	}
}

func TestScanStartAndFindings(t *testing.T) {
	scanDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(scanDir, "leak.txt"),
		[]byte("AKIAEXAMPLEEXAMPLE00\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	srv, _ := testServer(t, scanDir)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/scan/start", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("scan start status = %d", resp.StatusCode)
	}

	var summary core.ScanSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatal(err)
	}
	if summary.Status != "success" || summary.FindingsCount != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	fresp, err := http.Get(ts.URL + "/findings")
	if err != nil {
		t.Fatal(err)
	}
	defer fresp.Body.Close()

	var ff []findings.Finding
	if err := json.NewDecoder(fresp.Body).Decode(&ff); err != nil {
		t.Fatal(err)
	}
	if len(ff) != 1 {
		t.Fatalf("findings = %d, want 1", len(ff))
	}
	if ff[0].SecretHash == "" || ff[0].Preview == "" {
		t.Fatalf("finding incomplete: %+v", ff[0])
	}

	lresp, err := http.Get(ts.URL + "/scan/latest")
	if err != nil {
		t.Fatal(err)
	}
	defer lresp.Body.Close()
	var rec storage.ScanRecord
	if err := json.NewDecoder(lresp.Body).Decode(&rec); err != nil {
		t.Fatal(err)
	}
	if rec.Status != "success" || rec.NumFindings != 1 {
		t.Fatalf("latest scan = %+v", rec)
	}
}

func TestFindingsEmptyList(t *testing.T) {
	srv, _ := testServer(t, t.TempDir())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/findings")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var ff []findings.Finding
	if err := json.NewDecoder(resp.Body).Decode(&ff); err != nil {
		t.Fatal(err)
	}
	if len(ff) != 0 {
		t.Fatalf("findings = %d, want 0", len(ff))
	}
}

func TestScanLatestNone(t *testing.T) {
	srv, _ := testServer(t, t.TempDir())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/scan/latest")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "none" {
		t.Fatalf("body = %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := testServer(t, t.TempDir())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
}
