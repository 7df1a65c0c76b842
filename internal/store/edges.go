package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hardcopy-dev/hardcopy/internal/types"
)

// UpsertEdge inserts or updates a single edge, keyed by (type, from, to).
func (s *Store) UpsertEdge(ctx context.Context, e *types.Edge) error {
	return s.UpsertEdges(ctx, []*types.Edge{e})
}

// UpsertEdges performs an atomic batch upsert of edges.
func (s *Store) UpsertEdges(ctx context.Context, edges []*types.Edge) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range edges {
			attrsJSON, err := json.Marshal(e.Attrs)
			if err != nil {
				return fmt.Errorf("store: marshal edge attrs %s: %w", e.Key(), err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO edges (type, from_id, to_id, attrs)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(type, from_id, to_id) DO UPDATE SET attrs = excluded.attrs
			`, e.Type, e.FromID, e.ToID, string(attrsJSON))
			if err != nil {
				return fmt.Errorf("store: upsert edge %s: %w", e.Key(), err)
			}
		}
		return nil
	})
}

// GetEdges returns edges matching the given (optional) filters: get_edges
// (from?, to?, type?), where an empty string means "any" for that field.
func (s *Store) GetEdges(ctx context.Context, from, to, edgeType string) ([]*types.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var clauses []string
	var args []any
	if from != "" {
		clauses = append(clauses, "from_id = ?")
		args = append(args, from)
	}
	if to != "" {
		clauses = append(clauses, "to_id = ?")
		args = append(args, to)
	}
	if edgeType != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, edgeType)
	}

	q := `SELECT type, from_id, to_id, attrs FROM edges`
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	q += " ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: get edges: %w", err)
	}
	defer rows.Close()

	var out []*types.Edge
	for rows.Next() {
		var typ, fromID, toID, attrsJSON string
		if err := rows.Scan(&typ, &fromID, &toID, &attrsJSON); err != nil {
			continue
		}
		var attrs map[string]any
		if err := json.Unmarshal([]byte(attrsJSON), &attrs); err != nil {
			continue
		}
		out = append(out, &types.Edge{Type: typ, FromID: fromID, ToID: toID, Attrs: attrs})
	}
	return out, rows.Err()
}

// DeleteEdge removes a single edge identified by its composite key.
func (s *Store) DeleteEdge(ctx context.Context, from, to, edgeType string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE from_id = ? AND to_id = ? AND type = ?`, from, to, edgeType)
		if err != nil {
			return fmt.Errorf("store: delete edge %s/%s/%s: %w", from, to, edgeType, err)
		}
		return nil
	})
}
