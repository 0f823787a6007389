// Package queries reads and writes the user's saved interest queries.
//
// The query file is owned by whoever edits it (the `carwatch queries`
// subcommands, or any external tool) and is re-read wholesale by the
// matcher once per batch. The store never caches: edits take effect
// within one batch interval of a running scrape.
package queries

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Query is a free-text interest expression with an optional brand filter.
// Queries are identified by their literal text.
type Query struct {
	Text  string `json:"query"`
	Brand string `json:"brand"`
}

// BrandTokens splits the brand filter into its whitespace-separated
// tokens. An empty filter yields nil, meaning "no brand restriction".
func (q Query) BrandTokens() []string {
	return strings.Fields(q.Brand)
}

// Store reads and writes a queries.json file.
type Store struct {
	path string
}

// NewStore points the store at a query file. The file does not have to
// exist yet.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the query file path.
func (s *Store) Path() string {
	return s.path
}

// Load re-reads the whole query file. A missing file is an empty query
// set; a malformed file is an error, so callers holding an earlier
// snapshot can keep using it rather than treating the failure as
// "no queries". Duplicate query texts collapse to the first occurrence.
func (s *Store) Load() ([]Query, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading queries: %w", err)
	}

	var raw []Query
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(s.path), err)
	}

	seen := map[string]bool{}
	queries := make([]Query, 0, len(raw))
	for _, q := range raw {
		q.Text = strings.TrimSpace(q.Text)
		q.Brand = strings.TrimSpace(q.Brand)
		if q.Text == "" || seen[q.Text] {
			continue
		}
		seen[q.Text] = true
		queries = append(queries, q)
	}

	return queries, nil
}

// Save writes the full query set back. The write goes through a temp
// file and a rename so a scrape reading mid-save never observes a torn
// file.
func (s *Store) Save(qs []Query) error {
	data, err := json.MarshalIndent(qs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding queries: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing queries: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing queries file: %w", err)
	}
	return nil
}

// Add appends a query. Texts are unique: an identical row reports
// false, and a row with the same text but a different brand filter is
// an error rather than a silent write Load would collapse away.
func (s *Store) Add(text, brand string) (bool, error) {
	qs, err := s.Load()
	if err != nil {
		return false, err
	}
	for _, q := range qs {
		if q.Text != text {
			continue
		}
		if q.Brand == brand {
			return false, nil
		}
		return false, fmt.Errorf("query %q already exists with brand filter %q; remove it first", text, q.Brand)
	}
	qs = append(qs, Query{Text: text, Brand: brand})
	return true, s.Save(qs)
}

// Remove deletes the query with the given text. Returns false when no
// such query existed.
func (s *Store) Remove(text string) (bool, error) {
	qs, err := s.Load()
	if err != nil {
		return false, err
	}
	kept := qs[:0]
	removed := false
	for _, q := range qs {
		if q.Text == text {
			removed = true
			continue
		}
		kept = append(kept, q)
	}
	if !removed {
		return false, nil
	}
	return true, s.Save(kept)
}
