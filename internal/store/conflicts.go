package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/hardcopy-dev/hardcopy/internal/conflictfile"
	"github.com/hardcopy-dev/hardcopy/internal/types"
)

// ConflictsDir returns the directory conflict artifact files are written
// under: "conflicts" alongside the Store's own db file, so both live under
// the same <root>/.hardcopy/ tree.
func (s *Store) ConflictsDir() string {
	return filepath.Join(filepath.Dir(s.dbPath), "conflicts")
}

// SaveConflict persists a conflict artifact, replacing any existing one for
// the same node — a node has at most one open conflict at a time, the
// CONFLICT state in the node's state machine.
func (s *Store) SaveConflict(ctx context.Context, c *types.ConflictArtifact) error {
	fieldsJSON, err := json.Marshal(c.Fields)
	if err != nil {
		return fmt.Errorf("store: marshal conflict fields for %s: %w", c.NodeID, err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conflicts (node_id, node_type, file_path, view_rel_path, detected_at, fields, body)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(node_id) DO UPDATE SET
				node_type = excluded.node_type,
				file_path = excluded.file_path,
				view_rel_path = excluded.view_rel_path,
				detected_at = excluded.detected_at,
				fields = excluded.fields,
				body = excluded.body
		`, c.NodeID, c.NodeType, c.FilePath, c.ViewRelPath, formatTime(c.DetectedAt), string(fieldsJSON), c.Body)
		if err != nil {
			return fmt.Errorf("store: save conflict %s: %w", c.NodeID, err)
		}
		return nil
	})
}

// ListConflicts returns all open conflict artifacts, ordered by detection
// time.
func (s *Store) ListConflicts(ctx context.Context) ([]*types.ConflictArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT node_id, node_type, file_path, view_rel_path, detected_at, fields, body FROM conflicts ORDER BY detected_at`)
	if err != nil {
		return nil, fmt.Errorf("store: list conflicts: %w", err)
	}
	defer rows.Close()

	var out []*types.ConflictArtifact
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReadConflict returns the open conflict for nodeID, or (nil, nil) if none.
func (s *Store) ReadConflict(ctx context.Context, nodeID string) (*types.ConflictArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT node_id, node_type, file_path, view_rel_path, detected_at, fields, body FROM conflicts WHERE node_id = ?`, nodeID)
	c, err := scanConflict(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read conflict %s: %w", nodeID, err)
	}
	return c, nil
}

// RemoveConflict clears the conflict artifact for nodeID, used once
// resolve_conflict has been applied.
func (s *Store) RemoveConflict(ctx context.Context, nodeID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM conflicts WHERE node_id = ?`, nodeID)
		if err != nil {
			return fmt.Errorf("store: remove conflict %s: %w", nodeID, err)
		}
		return nil
	})
}

// ConflictArtifactPath returns the path of the conflict artifact file for
// nodeID (.hardcopy/conflicts/<urlencoded-node-id>.md), the file the user
// edits to resolve the conflict; it errors if no conflict is open.
func (s *Store) ConflictArtifactPath(ctx context.Context, nodeID string) (string, error) {
	c, err := s.ReadConflict(ctx, nodeID)
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", fmt.Errorf("store: no conflict recorded for %s", nodeID)
	}
	return conflictfile.ArtifactPath(s.ConflictsDir(), nodeID), nil
}

func scanConflict(r rowScanner) (*types.ConflictArtifact, error) {
	var nodeID, nodeType, filePath, viewRelPath, detectedAt, fieldsJSON, body string
	if err := r.Scan(&nodeID, &nodeType, &filePath, &viewRelPath, &detectedAt, &fieldsJSON, &body); err != nil {
		return nil, err
	}
	var fields map[string]types.ConflictField
	if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
		return nil, fmt.Errorf("unmarshal conflict fields for %s: %w", nodeID, err)
	}
	return &types.ConflictArtifact{
		NodeID:      nodeID,
		NodeType:    nodeType,
		FilePath:    filePath,
		ViewRelPath: viewRelPath,
		DetectedAt:  parseTime(detectedAt),
		Fields:      fields,
		Body:        body,
	}, nil
}
