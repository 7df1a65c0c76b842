package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// CRDTDoc is the content-addressed-by-node-id CRDT replica of a node's text
// body and attrs, used by the semantic merge oracle (internal/mergeoracle)
// and by auto-merge to track the last common ancestor without relying
// solely on the base snapshot in nodes.attrs.
type CRDTDoc struct {
	NodeID    string
	Body      string
	Attrs     map[string]any
	Version   int64
	UpdatedAt time.Time
}

// LoadCRDT returns the CRDT doc for nodeID, or (nil, nil) if none exists.
func (s *Store) LoadCRDT(ctx context.Context, nodeID string) (*CRDTDoc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadCRDTLocked(ctx, nodeID)
}

func (s *Store) loadCRDTLocked(ctx context.Context, nodeID string) (*CRDTDoc, error) {
	var body, attrsJSON, updatedAt string
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT body, attrs, version, updated_at FROM crdt_docs WHERE node_id = ?`, nodeID).
		Scan(&body, &attrsJSON, &version, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load crdt doc %s: %w", nodeID, err)
	}
	var attrs map[string]any
	if err := json.Unmarshal([]byte(attrsJSON), &attrs); err != nil {
		return nil, fmt.Errorf("store: unmarshal crdt attrs %s: %w", nodeID, err)
	}
	return &CRDTDoc{NodeID: nodeID, Body: body, Attrs: attrs, Version: version, UpdatedAt: parseTime(updatedAt)}, nil
}

// LoadOrCreateCRDT returns the existing doc for nodeID, or creates an empty
// one at version 0 if none exists yet.
func (s *Store) LoadOrCreateCRDT(ctx context.Context, nodeID string) (*CRDTDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadCRDTLocked(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		return doc, nil
	}

	doc = &CRDTDoc{NodeID: nodeID, Attrs: map[string]any{}, Version: 0, UpdatedAt: time.Time{}}
	if err := s.saveCRDTLocked(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// SaveCRDT persists doc, bumping its version.
func (s *Store) SaveCRDT(ctx context.Context, doc *CRDTDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCRDTLocked(ctx, doc)
}

func (s *Store) saveCRDTLocked(ctx context.Context, doc *CRDTDoc) error {
	attrsJSON, err := json.Marshal(doc.Attrs)
	if err != nil {
		return fmt.Errorf("store: marshal crdt attrs %s: %w", doc.NodeID, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO crdt_docs (node_id, body, attrs, version, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(node_id) DO UPDATE SET
			body = excluded.body,
			attrs = excluded.attrs,
			version = version + 1,
			updated_at = excluded.updated_at
	`, doc.NodeID, doc.Body, string(attrsJSON), doc.Version, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("store: save crdt doc %s: %w", doc.NodeID, err)
	}
	return tx.Commit()
}

// DeleteCRDT removes the CRDT doc for nodeID (paired with node deletion).
func (s *Store) DeleteCRDT(ctx context.Context, nodeID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM crdt_docs WHERE node_id = ?`, nodeID)
		if err != nil {
			return fmt.Errorf("store: delete crdt doc %s: %w", nodeID, err)
		}
		return nil
	})
}

// MergeCRDT folds an externally observed (body, attrs) pair into the stored
// doc: list-valued attrs are unioned via types.UnionListMerge by the caller
// before calling this, so here we simply overwrite with the caller-resolved
// state and persist it as the new common ancestor.
func (s *Store) MergeCRDT(ctx context.Context, nodeID string, body string, attrs map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadCRDTLocked(ctx, nodeID)
	if err != nil {
		return err
	}
	if doc == nil {
		doc = &CRDTDoc{NodeID: nodeID}
	}
	doc.Body = body
	doc.Attrs = attrs
	return s.saveCRDTLocked(ctx, doc)
}
