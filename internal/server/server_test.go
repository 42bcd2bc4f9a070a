package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/newsforge/newsforge/internal/article"
	"github.com/newsforge/newsforge/internal/history"
	"github.com/newsforge/newsforge/internal/sources"
)

func testServer(t *testing.T) (*Server, *history.Store) {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv, err := New(store, sources.NewResolver(nil, nil))
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}
	return srv, store
}

func archivedArticle(t *testing.T, store *history.Store) *article.Article {
	t.Helper()
	a := article.New("fusion energy", article.LangEnglish)
	a.Title = "Fusion Breaks Even"
	a.Content = "## Milestone\n\nNet gain **achieved**."
	a.MetaDescription = "Net energy gain."
	a.Keywords = []string{"Energy"}
	a.Sources = []article.Source{
		{Title: "Nature", URI: "https://www.nature.com/articles/1"},
		{Title: "Nature follow-up", URI: "https://nature.com/articles/2"},
	}
	if err := store.Append(a); err != nil {
		t.Fatalf("Append: %v", err)
	}
	return a
}

func TestIndex(t *testing.T) {
	srv, store := testServer(t)
	a := archivedArticle(t, store)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), a.Title) {
		t.Error("index should list the archived article")
	}
}

func TestIndexUnknownPath(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestArticlePage(t *testing.T) {
	srv, store := testServer(t)
	a := archivedArticle(t, store)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/article/"+a.ID, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Fusion Breaks Even") {
		t.Error("article title missing")
	}
	// Markdown body is rendered to HTML.
	if !strings.Contains(body, "<strong>achieved</strong>") {
		t.Error("markdown body not rendered")
	}
	// Both nature.com links group under one domain.
	if !strings.Contains(body, "nature.com") {
		t.Error("source domain missing")
	}
}

func TestArticleNotFound(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/article/unknown-id", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestArticleExport(t *testing.T) {
	srv, store := testServer(t)
	a := archivedArticle(t, store)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/article/"+a.ID+"/export", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var out article.ExportedArticle
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding export: %v", err)
	}
	if out.Title != "Fusion Breaks Even" {
		t.Errorf("title = %q", out.Title)
	}
	if out.Excerpt != "Net energy gain." {
		t.Errorf("excerpt = %q", out.Excerpt)
	}
	if out.Category != "Energy" {
		t.Errorf("category = %q", out.Category)
	}
	if !strings.HasSuffix(out.ReadTime, "min read") {
		t.Errorf("readTime = %q", out.ReadTime)
	}
	if len(out.Sources) != 1 || out.Sources[0] != "nature.com" {
		t.Errorf("sources = %v", out.Sources)
	}
}

func TestAudio(t *testing.T) {
	srv, store := testServer(t)
	a := archivedArticle(t, store)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/audio/"+a.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing narration should 404, got %d", rec.Code)
	}

	if err := store.PutAudio(a.ID, []byte("RIFFxxxxWAVE")); err != nil {
		t.Fatalf("PutAudio: %v", err)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/audio/"+a.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("content type = %q", ct)
	}
	if rec.Body.String() != "RIFFxxxxWAVE" {
		t.Error("narration bytes should be served verbatim")
	}
}
