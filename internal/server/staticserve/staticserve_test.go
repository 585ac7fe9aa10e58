package staticserve

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lumiohq/webpanel-go/internal/server/config"
)

func TestNew_ServesEmbeddedAssets(t *testing.T) {
	h := New()

	if h.DocumentRoot() != config.EmbeddedRoot {
		t.Errorf("root = %q, want %q", h.DocumentRoot(), config.EmbeddedRoot)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "WebPanel") {
		t.Error("embedded index should mention WebPanel")
	}
}

func TestSetDocumentRoot_Directory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("custom panel"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}

	h := New()
	if err := h.SetDocumentRoot(dir); err != nil {
		t.Fatalf("SetDocumentRoot: %v", err)
	}
	if h.DocumentRoot() != dir {
		t.Errorf("root = %q, want %q", h.DocumentRoot(), dir)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(rec.Body.String(), "custom panel") {
		t.Errorf("body = %q, want custom content", rec.Body.String())
	}
}

func TestSetDocumentRoot_MissingKeepsPrevious(t *testing.T) {
	h := New()

	if err := h.SetDocumentRoot("/nonexistent/panel"); err == nil {
		t.Fatal("SetDocumentRoot should fail for a missing directory")
	}

	// Previous root still serves
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 from previous root", rec.Code)
	}
	if h.DocumentRoot() != config.EmbeddedRoot {
		t.Errorf("root = %q, want unchanged %q", h.DocumentRoot(), config.EmbeddedRoot)
	}
}

func TestNoDirectoryListing(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "assets")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "app.css"), []byte("body{}"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("home"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}

	h := New()
	if err := h.SetDocumentRoot(dir); err != nil {
		t.Fatalf("SetDocumentRoot: %v", err)
	}

	// Files are served
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/app.css", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("file status = %d, want 200", rec.Code)
	}

	// A directory without an index yields not-found, not a listing
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("listing status = %d, want 404", rec.Code)
	}
}

func TestSetDocumentRoot_File(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	h := New()
	if err := h.SetDocumentRoot(file); err == nil {
		t.Error("SetDocumentRoot should reject a regular file")
	}
}

func TestSetDocumentRoot_SwapAtRuntime(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	os.WriteFile(filepath.Join(a, "index.html"), []byte("root a"), 0o644)
	os.WriteFile(filepath.Join(b, "index.html"), []byte("root b"), 0o644)

	h := New()
	if err := h.SetDocumentRoot(a); err != nil {
		t.Fatalf("set root a: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rec.Body.String(), "root a") {
		t.Errorf("body = %q, want root a", rec.Body.String())
	}

	if err := h.SetDocumentRoot(b); err != nil {
		t.Fatalf("set root b: %v", err)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rec.Body.String(), "root b") {
		t.Errorf("body = %q, want root b", rec.Body.String())
	}
}
