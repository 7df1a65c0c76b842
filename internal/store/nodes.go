package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hardcopy-dev/hardcopy/internal/types"
)

// UpsertNode inserts or updates n by id. synced_at is supplied by the
// caller.
func (s *Store) UpsertNode(ctx context.Context, n *types.Node) error {
	return s.UpsertNodes(ctx, []*types.Node{n})
}

// UpsertNodes performs an atomic batch upsert: node upserts from a refresh
// are committed in one transaction.
func (s *Store) UpsertNodes(ctx context.Context, nodes []*types.Node) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, n := range nodes {
			if n.Type == "" {
				return fmt.Errorf("store: node %q has empty type", n.ID)
			}
			attrsJSON, err := json.Marshal(n.Attrs)
			if err != nil {
				return fmt.Errorf("store: marshal attrs for %s: %w", n.ID, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO nodes (id, type, attrs, synced_at, version_token, cursor)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					type = excluded.type,
					attrs = excluded.attrs,
					synced_at = excluded.synced_at,
					version_token = excluded.version_token,
					cursor = excluded.cursor
			`, n.ID, n.Type, string(attrsJSON), formatTime(n.SyncedAt), nullableString(n.VersionToken), nullableString(n.Cursor))
			if err != nil {
				return fmt.Errorf("store: upsert node %s: %w", n.ID, err)
			}
		}
		return nil
	})
}

// GetNode returns the node with the given id, or (nil, nil) if absent.
func (s *Store) GetNode(ctx context.Context, id string) (*types.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT id, type, attrs, synced_at, version_token, cursor FROM nodes WHERE id = ?`, id)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get node %s: %w", id, err)
	}
	return n, nil
}

// QueryNodes scans all nodes, optionally restricted to one type, in
// insertion (rowid) order. Corrupt attrs on a single row are skipped rather
// than failing the whole scan.
func (s *Store) QueryNodes(ctx context.Context, nodeType string) ([]*types.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows *sql.Rows
	var err error
	if nodeType == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT id, type, attrs, synced_at, version_token, cursor FROM nodes ORDER BY rowid`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT id, type, attrs, synced_at, version_token, cursor FROM nodes WHERE type = ? ORDER BY rowid`, nodeType)
	}
	if err != nil {
		return nil, fmt.Errorf("store: query nodes: %w", err)
	}
	defer rows.Close()

	var out []*types.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			continue // corrupt row: skip rather than fail the whole scan
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// DeleteNode removes the node and all edges incident to it.
func (s *Store) DeleteNode(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE from_id = ? OR to_id = ?`, id, id); err != nil {
			return fmt.Errorf("store: delete edges for node %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id); err != nil {
			return fmt.Errorf("store: delete node %s: %w", id, err)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(r rowScanner) (*types.Node, error) {
	var id, typ, attrsJSON, syncedAt string
	var versionToken, cursor sql.NullString
	if err := r.Scan(&id, &typ, &attrsJSON, &syncedAt, &versionToken, &cursor); err != nil {
		return nil, err
	}
	var attrs map[string]any
	if err := json.Unmarshal([]byte(attrsJSON), &attrs); err != nil {
		return nil, fmt.Errorf("unmarshal attrs for %s: %w", id, err)
	}
	n := &types.Node{
		ID:       id,
		Type:     typ,
		Attrs:    attrs,
		SyncedAt: parseTime(syncedAt),
	}
	if versionToken.Valid {
		v := versionToken.String
		n.VersionToken = &v
	}
	if cursor.Valid {
		c := cursor.String
		n.Cursor = &c
	}
	return n, nil
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.999999999Z")
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02T15:04:05.999999999Z", s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}
		}
	}
	return t.UTC()
}
