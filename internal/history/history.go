// Package history is the bounded archive of finalized articles, plus the
// blob store for narration audio and the key/value settings table.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/newsforge/newsforge/internal/article"
)

// maxEntries bounds the archive; the oldest entry is evicted first.
const maxEntries = 10

// Store wraps the SQLite database holding archived articles.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates or opens the store at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &Store{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Append archives a finalized article at the front and evicts beyond the
// bound. The audio reference is stripped before persistence; narration
// bytes live in the audio table keyed by article id.
func (s *Store) Append(a *article.Article) error {
	stored := *a
	stored.AudioURL = ""

	payload, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("encoding article: %w", err)
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO history (id, created_at, payload) VALUES (?, ?, ?)`,
		stored.ID, stored.CreatedAt, string(payload),
	); err != nil {
		return fmt.Errorf("inserting article: %w", err)
	}

	// Evict oldest entries beyond the bound, and their audio with them.
	if _, err := tx.Exec(
		`DELETE FROM history WHERE rowid NOT IN
			(SELECT rowid FROM history ORDER BY rowid DESC LIMIT ?)`, maxEntries,
	); err != nil {
		return fmt.Errorf("trimming history: %w", err)
	}
	if _, err := tx.Exec(
		`DELETE FROM audio WHERE article_id NOT IN (SELECT id FROM history)`,
	); err != nil {
		return fmt.Errorf("pruning audio blobs: %w", err)
	}

	return tx.Commit()
}

// Load returns the archive, most recent first. Corrupt rows are skipped
// with a warning rather than failing the whole load.
func (s *Store) Load() ([]*article.Article, error) {
	rows, err := s.conn.Query(`SELECT id, payload FROM history ORDER BY rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*article.Article
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		var a article.Article
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			log.Printf("history: skipping corrupt entry %s: %v", id, err)
			continue
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// Get returns one archived article by id, or nil if absent.
func (s *Store) Get(id string) (*article.Article, error) {
	var payload string
	err := s.conn.QueryRow(`SELECT payload FROM history WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var a article.Article
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return nil, fmt.Errorf("decoding archived article: %w", err)
	}
	return &a, nil
}

// PutAudio stores the narration bytes for an article.
func (s *Store) PutAudio(articleID string, data []byte) error {
	_, err := s.conn.Exec(
		`INSERT OR REPLACE INTO audio (article_id, data) VALUES (?, ?)`,
		articleID, data,
	)
	return err
}

// GetAudio returns the narration bytes for an article. A missing blob is
// not an error: the article simply plays back without narration.
func (s *Store) GetAudio(articleID string) ([]byte, error) {
	var data []byte
	err := s.conn.QueryRow(`SELECT data FROM audio WHERE article_id = ?`, articleID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return data, err
}

// DeleteAudio removes the narration blob for an article.
func (s *Store) DeleteAudio(articleID string) error {
	_, err := s.conn.Exec(`DELETE FROM audio WHERE article_id = ?`, articleID)
	return err
}

// GetSetting returns a persisted setting value, or "" if unset.
func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.conn.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// PutSetting persists a setting value.
func (s *Store) PutSetting(key, value string) error {
	_, err := s.conn.Exec(
		`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`,
		key, value,
	)
	return err
}
