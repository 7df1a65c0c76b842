package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// GetFileSyncedAt returns the last-synced timestamp recorded for the given
// (node, path) pair, and whether a watermark exists at all. This is the
// per-file sync watermark table used by C4 to detect local edits since
// last sync.
func (s *Store) GetFileSyncedAt(ctx context.Context, nodeID, path string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var syncedAt string
	err := s.db.QueryRowContext(ctx, `SELECT synced_at FROM file_synced WHERE node_id = ? AND path = ?`, nodeID, path).Scan(&syncedAt)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("store: get file watermark %s/%s: %w", nodeID, path, err)
	}
	return parseTime(syncedAt), true, nil
}

// SetFileSyncedAt records that path was rendered/synced for nodeID at t.
func (s *Store) SetFileSyncedAt(ctx context.Context, nodeID, path string, t time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO file_synced (node_id, path, synced_at)
			VALUES (?, ?, ?)
			ON CONFLICT(node_id, path) DO UPDATE SET synced_at = excluded.synced_at
		`, nodeID, path, formatTime(t))
		if err != nil {
			return fmt.Errorf("store: set file watermark %s/%s: %w", nodeID, path, err)
		}
		return nil
	})
}

// FileWatermark is one (node, view-relative path) pair the store has a
// recorded sync watermark for.
type FileWatermark struct {
	NodeID   string
	Path     string
	SyncedAt time.Time
}

// ListFileWatermarks returns every recorded file watermark, used by the push
// pipeline to enumerate the candidate change sets to re-check against their
// base node.
func (s *Store) ListFileWatermarks(ctx context.Context) ([]FileWatermark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT node_id, path, synced_at FROM file_synced ORDER BY node_id, path`)
	if err != nil {
		return nil, fmt.Errorf("store: list file watermarks: %w", err)
	}
	defer rows.Close()

	var out []FileWatermark
	for rows.Next() {
		var w FileWatermark
		var syncedAt string
		if err := rows.Scan(&w.NodeID, &w.Path, &syncedAt); err != nil {
			continue
		}
		w.SyncedAt = parseTime(syncedAt)
		out = append(out, w)
	}
	return out, rows.Err()
}

// DeleteFileSyncedAt removes a watermark, used when a view orphans a
// previously-rendered file. When path is "", every watermark recorded for
// nodeID is removed instead of a single path, the node-wide form of
// delete_file_synced_at(node_id, path?) used when a node itself is gone
// rather than just one of its rendered files.
func (s *Store) DeleteFileSyncedAt(ctx context.Context, nodeID, path string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if path == "" {
			_, err = tx.ExecContext(ctx, `DELETE FROM file_synced WHERE node_id = ?`, nodeID)
		} else {
			_, err = tx.ExecContext(ctx, `DELETE FROM file_synced WHERE node_id = ? AND path = ?`, nodeID, path)
		}
		if err != nil {
			return fmt.Errorf("store: delete file watermark %s/%s: %w", nodeID, path, err)
		}
		return nil
	})
}
