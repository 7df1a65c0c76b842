package store

// schema is the SQLite-compatible table set backing the store: nodes,
// edges, per-file sync watermarks, conflict artifacts, and CRDT blobs.
const schema = `
CREATE TABLE IF NOT EXISTS nodes (
    id            TEXT PRIMARY KEY,
    type          TEXT NOT NULL,
    attrs         TEXT NOT NULL DEFAULT '{}',
    synced_at     TEXT NOT NULL,
    version_token TEXT,
    cursor        TEXT
);

CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(type);

CREATE TABLE IF NOT EXISTS edges (
    type    TEXT NOT NULL,
    from_id TEXT NOT NULL,
    to_id   TEXT NOT NULL,
    attrs   TEXT NOT NULL DEFAULT '{}',
    PRIMARY KEY (type, from_id, to_id)
);

CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_id);
CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_id);
CREATE INDEX IF NOT EXISTS idx_edges_type ON edges(type);

CREATE TABLE IF NOT EXISTS file_synced (
    node_id   TEXT NOT NULL,
    path      TEXT NOT NULL,
    synced_at TEXT NOT NULL,
    PRIMARY KEY (node_id, path)
);

CREATE INDEX IF NOT EXISTS idx_file_synced_node ON file_synced(node_id);

CREATE TABLE IF NOT EXISTS conflicts (
    node_id       TEXT PRIMARY KEY,
    node_type     TEXT NOT NULL,
    file_path     TEXT NOT NULL,
    view_rel_path TEXT NOT NULL,
    detected_at   TEXT NOT NULL,
    fields        TEXT NOT NULL,
    body          TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS crdt_docs (
    node_id    TEXT PRIMARY KEY,
    body       TEXT NOT NULL DEFAULT '',
    attrs      TEXT NOT NULL DEFAULT '{}',
    version    INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL
);
`
