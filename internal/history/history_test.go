package history

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/newsforge/newsforge/internal/article"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func archived(t *testing.T, s *Store, title string) *article.Article {
	t.Helper()
	a := article.New("topic", article.LangEnglish)
	a.Title = title
	a.Content = "Body."
	if err := s.Append(a); err != nil {
		t.Fatalf("Append(%q): %v", title, err)
	}
	return a
}

func TestAppendAndLoad(t *testing.T) {
	s := testStore(t)

	first := archived(t, s, "First")
	second := archived(t, s, "Second")

	entries, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// Most recent first.
	if entries[0].ID != second.ID || entries[1].ID != first.ID {
		t.Errorf("wrong order: %q, %q", entries[0].Title, entries[1].Title)
	}
}

func TestAppendEvictsBeyondBound(t *testing.T) {
	s := testStore(t)

	var oldest *article.Article
	for i := 0; i < maxEntries+3; i++ {
		a := archived(t, s, fmt.Sprintf("Article %d", i))
		if i == 0 {
			oldest = a
		}
	}

	entries, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != maxEntries {
		t.Fatalf("expected exactly %d entries, got %d", maxEntries, len(entries))
	}
	if entries[0].Title != fmt.Sprintf("Article %d", maxEntries+2) {
		t.Errorf("newest entry = %q", entries[0].Title)
	}

	got, err := s.Get(oldest.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Error("oldest entry should have been evicted")
	}
}

func TestEvictionPrunesAudio(t *testing.T) {
	s := testStore(t)

	first := archived(t, s, "First")
	if err := s.PutAudio(first.ID, []byte{1, 2, 3}); err != nil {
		t.Fatalf("PutAudio: %v", err)
	}
	for i := 0; i < maxEntries; i++ {
		archived(t, s, fmt.Sprintf("Filler %d", i))
	}

	blob, err := s.GetAudio(first.ID)
	if err != nil {
		t.Fatalf("GetAudio: %v", err)
	}
	if blob != nil {
		t.Error("narration of an evicted article should be pruned")
	}
}

func TestAppendStripsAudioReference(t *testing.T) {
	s := testStore(t)

	a := article.New("topic", article.LangEnglish)
	a.Title = "With Narration"
	a.AudioURL = "audio://" + a.ID
	if err := s.Append(a); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// The caller's copy keeps its reference.
	if a.AudioURL == "" {
		t.Error("Append must not mutate the caller's article")
	}

	var payload string
	if err := s.conn.QueryRow(`SELECT payload FROM history WHERE id = ?`, a.ID).Scan(&payload); err != nil {
		t.Fatalf("reading payload: %v", err)
	}
	if strings.Contains(payload, "audioUrl") {
		t.Errorf("persisted payload should omit the audio reference: %s", payload)
	}
}

func TestAppendSameIDReplaces(t *testing.T) {
	s := testStore(t)

	a := archived(t, s, "Original")
	a.Title = "Revised"
	if err := s.Append(a); err != nil {
		t.Fatalf("second Append: %v", err)
	}

	entries, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry after replace, got %d", len(entries))
	}
	if entries[0].Title != "Revised" {
		t.Errorf("title = %q", entries[0].Title)
	}
}

func TestLoadSkipsCorruptRows(t *testing.T) {
	s := testStore(t)
	archived(t, s, "Healthy")

	if _, err := s.conn.Exec(
		`INSERT INTO history (id, created_at, payload) VALUES (?, ?, ?)`,
		"broken", 0, "{not json",
	); err != nil {
		t.Fatalf("inserting corrupt row: %v", err)
	}

	entries, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 1 || entries[0].Title != "Healthy" {
		t.Errorf("expected only the healthy entry, got %d", len(entries))
	}
}

func TestGetAbsent(t *testing.T) {
	s := testStore(t)
	a, err := s.Get("nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a != nil {
		t.Error("absent id should return nil without error")
	}
}

func TestAudioRoundTrip(t *testing.T) {
	s := testStore(t)

	blob, err := s.GetAudio("nope")
	if err != nil || blob != nil {
		t.Errorf("absent audio should be nil, nil; got %v, %v", blob, err)
	}

	if err := s.PutAudio("a1", []byte{1, 2, 3}); err != nil {
		t.Fatalf("PutAudio: %v", err)
	}
	blob, err = s.GetAudio("a1")
	if err != nil {
		t.Fatalf("GetAudio: %v", err)
	}
	if len(blob) != 3 || blob[2] != 3 {
		t.Errorf("blob = %v", blob)
	}

	if err := s.DeleteAudio("a1"); err != nil {
		t.Fatalf("DeleteAudio: %v", err)
	}
	blob, err = s.GetAudio("a1")
	if err != nil || blob != nil {
		t.Errorf("deleted audio should be nil, nil; got %v, %v", blob, err)
	}
}

func TestSettings(t *testing.T) {
	s := testStore(t)

	v, err := s.GetSetting("theme")
	if err != nil || v != "" {
		t.Errorf("unset key should be empty; got %q, %v", v, err)
	}

	if err := s.PutSetting("theme", "dark"); err != nil {
		t.Fatalf("PutSetting: %v", err)
	}
	if err := s.PutSetting("theme", "light"); err != nil {
		t.Fatalf("PutSetting overwrite: %v", err)
	}

	v, err = s.GetSetting("theme")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if v != "light" {
		t.Errorf("value = %q", v)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	a := archived(t, s, "Persistent")
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := s2.Get(a.ID)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got == nil || got.Title != "Persistent" {
		t.Errorf("article lost across reopen: %+v", got)
	}
}
