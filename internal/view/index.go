package view

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hardcopy-dev/hardcopy/internal/fsatomic"
)

// indexFileName is the sidecar written to every view directory after each
// refresh. It is advisory only; no command reads it, and `status` does not
// report staleness.
const indexFileName = ".index"

// IndexSidecar is the JSON contents of a view directory's .index file.
type IndexSidecar struct {
	Loaded    int       `json:"loaded"`
	PageSize  int       `json:"page_size"`
	FetchedAt time.Time `json:"fetched_at"`
	TTL       string    `json:"ttl"`
}

func writeIndex(dir string, loaded, pageSize int, fetchedAt time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	idx := IndexSidecar{
		Loaded:    loaded,
		PageSize:  pageSize,
		FetchedAt: fetchedAt,
		TTL:       ttl.String(),
	}
	b, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("view: marshal index sidecar: %w", err)
	}
	return fsatomic.WriteFile(filepath.Join(dir, indexFileName), b, 0o644)
}

// ReadIndex loads the .index sidecar for a view directory without hitting
// the network. No command calls it.
func ReadIndex(dir string) (*IndexSidecar, error) {
	b, err := os.ReadFile(filepath.Join(dir, indexFileName))
	if err != nil {
		return nil, err
	}
	var idx IndexSidecar
	if err := json.Unmarshal(b, &idx); err != nil {
		return nil, fmt.Errorf("view: parse index sidecar: %w", err)
	}
	return &idx, nil
}

// Stale reports whether the sidecar's TTL has elapsed as of now.
func (idx *IndexSidecar) Stale(now time.Time) bool {
	ttl, err := time.ParseDuration(idx.TTL)
	if err != nil {
		ttl = defaultTTL
	}
	return now.After(idx.FetchedAt.Add(ttl))
}
