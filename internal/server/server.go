// Package server is the local review UI: browse archived articles, play
// back narration and export the JSON shape.
package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/newsforge/newsforge/internal/article"
	"github.com/newsforge/newsforge/internal/history"
	"github.com/newsforge/newsforge/internal/sources"
)

//go:embed templates/*.html
var templateFS embed.FS

var md = goldmark.New()

// Server serves the archived articles over HTTP.
type Server struct {
	store    *history.Store
	resolver *sources.Resolver
	pages    map[string]*template.Template
	mux      *http.ServeMux
}

// New creates a new Server.
func New(store *history.Store, resolver *sources.Resolver) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"date": func(ms int64) string {
			return time.UnixMilli(ms).Format("2006-01-02 15:04")
		},
	}

	// Each page gets its own clone of the base so {{define "content"}}
	// blocks don't collide.
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	pageNames := []string{"index.html", "article.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{store: store, resolver: resolver, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/article/", s.handleArticle)
	s.mux.HandleFunc("/audio/", s.handleAudio)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	articles, err := s.store.Load()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Articles": articles,
	})
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/article/")
	id, tail, _ := strings.Cut(rest, "/")
	if id == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	a, err := s.store.Get(id)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if a == nil {
		http.NotFound(w, r)
		return
	}

	if tail == "export" {
		s.writeExport(w, a)
		return
	}

	// Rehydrate the narration reference if a blob exists for this id.
	audio, _ := s.store.GetAudio(a.ID)
	hasAudio := len(audio) > 0

	s.render(w, "article.html", map[string]any{
		"Article":  a,
		"Groups":   s.resolver.GroupByDomain(a.Sources),
		"HasAudio": hasAudio,
	})
}

func (s *Server) writeExport(w http.ResponseWriter, a *article.Article) {
	exported := article.Export(a, s.resolver.DomainLabels(a.Sources))
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(exported); err != nil {
		log.Printf("server: encoding export: %v", err)
	}
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/audio/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	data, err := s.store.GetAudio(id)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if len(data) == 0 {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Write(data)
}

func (s *Server) render(w http.ResponseWriter, page string, data map[string]any) {
	tmpl, ok := s.pages[page]
	if !ok {
		http.Error(w, "Unknown page", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		log.Printf("server: rendering %s: %v", page, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	buf.WriteTo(w)
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String())
}
