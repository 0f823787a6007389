// Package archive persists every parsed listing into capped, rotating
// YAML shards. Shards are append-only: once one reaches its record cap
// it is sealed and never touched again, and a fresh shard takes over.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"carwatch/internal/listing"
)

const shardPattern = "listings_%04d.yaml"

// Writer appends listings to the currently active shard.
type Writer struct {
	dir      string
	cap      int
	shardNum int
	active   map[string]listing.Listing
}

// Open scans the archive directory and resumes the highest-numbered
// shard as the active one; the shard files themselves are the only
// cursor state. A fresh directory starts at shard 1.
func Open(dir string, shardCap int) (*Writer, error) {
	if shardCap <= 0 {
		return nil, fmt.Errorf("shard cap must be positive, got %d", shardCap)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	shards, err := shardNumbers(dir)
	if err != nil {
		return nil, err
	}

	w := &Writer{dir: dir, cap: shardCap, shardNum: 1, active: map[string]listing.Listing{}}
	if len(shards) == 0 {
		return w, nil
	}

	w.shardNum = shards[len(shards)-1]
	data, err := os.ReadFile(w.shardPath())
	if err != nil {
		return nil, fmt.Errorf("reading active shard: %w", err)
	}
	if err := yaml.Unmarshal(data, &w.active); err != nil {
		return nil, fmt.Errorf("parsing active shard %s: %w", filepath.Base(w.shardPath()), err)
	}
	if w.active == nil {
		w.active = map[string]listing.Listing{}
	}

	// A shard sealed exactly at the cap hands over to the next number.
	if len(w.active) >= w.cap {
		w.shardNum++
		w.active = map[string]listing.Listing{}
	}

	return w, nil
}

// Append writes the listing into the active shard and returns the shard
// file name it landed in. A URL already present in the active shard is
// left as-is; duplicates across sealed shards are expected and handled
// by the ledger, not here.
func (w *Writer) Append(l listing.Listing) (string, error) {
	shard := filepath.Base(w.shardPath())

	if _, ok := w.active[l.URL]; ok {
		return shard, nil
	}

	w.active[l.URL] = l
	if err := w.flush(); err != nil {
		return "", err
	}

	if len(w.active) >= w.cap {
		// Seal: the next record starts a new shard.
		w.shardNum++
		w.active = map[string]listing.Listing{}
	}

	return shard, nil
}

// ShardCount returns the number of shard files on disk.
func (w *Writer) ShardCount() (int, error) {
	shards, err := shardNumbers(w.dir)
	if err != nil {
		return 0, err
	}
	return len(shards), nil
}

// ActiveLen returns how many records the active shard holds.
func (w *Writer) ActiveLen() int {
	return len(w.active)
}

func (w *Writer) shardPath() string {
	return filepath.Join(w.dir, fmt.Sprintf(shardPattern, w.shardNum))
}

func (w *Writer) flush() error {
	data, err := yaml.Marshal(w.active)
	if err != nil {
		return fmt.Errorf("encoding shard: %w", err)
	}
	if err := os.WriteFile(w.shardPath(), data, 0o644); err != nil {
		return fmt.Errorf("writing shard: %w", err)
	}
	return nil
}

func shardNumbers(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading archive directory: %w", err)
	}

	var nums []int
	for _, e := range entries {
		var n int
		if _, err := fmt.Sscanf(e.Name(), shardPattern, &n); err == nil {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	return nums, nil
}
