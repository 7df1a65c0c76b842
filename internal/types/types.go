// Package types defines the core entities shared across every component of
// the sync core: nodes, edges, and the value-kind machinery used to compare
// them structurally.
package types

import (
	"encoding/json"
	"sort"
	"time"
)

// Node is the canonical server-side state of an entity, as last seen from
// its Provider.
type Node struct {
	ID           string                 `json:"id"`
	Type         string                 `json:"type"`
	Attrs        map[string]any         `json:"attrs"`
	SyncedAt     time.Time              `json:"synced_at"`
	VersionToken *string                `json:"version_token,omitempty"`
	Cursor       *string                `json:"cursor,omitempty"`
}

// Clone returns a deep-enough copy of n safe to mutate independently.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	clone := *n
	clone.Attrs = make(map[string]any, len(n.Attrs))
	for k, v := range n.Attrs {
		clone.Attrs[k] = v
	}
	return &clone
}

// Attr returns the named attribute and whether it was present.
func (n *Node) Attr(field string) (any, bool) {
	if n == nil || n.Attrs == nil {
		return nil, false
	}
	v, ok := n.Attrs[field]
	return v, ok
}

// Body returns the node's body field, or "" if absent or non-string.
func (n *Node) Body() string {
	v, ok := n.Attr("body")
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Edge is a directed, typed relation between two node ids. (type, from, to)
// is the natural key; referential integrity with nodes is not enforced.
type Edge struct {
	Type   string         `json:"type"`
	FromID string         `json:"from_id"`
	ToID   string         `json:"to_id"`
	Attrs  map[string]any `json:"attrs,omitempty"`
}

// Key returns the edge's natural key, suitable for map/set dedup.
func (e Edge) Key() [3]string {
	return [3]string{e.Type, e.FromID, e.ToID}
}

// FieldKind classifies the expected shape of an editable field, used by
// format handlers to declare what structural-equality and auto-merge rules
// apply to it.
type FieldKind int

const (
	KindScalar FieldKind = iota
	KindList
	KindText
)

func (k FieldKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// EditableField describes one field a format handler exposes for editing.
type EditableField struct {
	Name string
	Kind FieldKind
}

// StructuralEqual is the structural-equality relation used throughout the
// sync engine: scalar equality, array equality under element-order-ignoring
// canonical-JSON comparison, and canonical-JSON equality for objects. It
// never coerces between scalar types ("1" and 1 compare unequal).
func StructuralEqual(a, b any) bool {
	switch av := a.(type) {
	case []any:
		bv, ok := b.([]any)
		if !ok {
			return false
		}
		return equalAsSet(av, bv)
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok {
			return false
		}
		return canonicalJSON(av) == canonicalJSON(bv)
	default:
		return scalarEqual(a, b)
	}
}

func scalarEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	// Numbers decoded from JSON arrive as float64; compare same-typed values
	// directly and otherwise fall back to canonical-JSON identity so that
	// e.g. int(1) and float64(1) (both "numbers", never strings) still match.
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr != bIsStr {
		return false
	}
	if aIsStr {
		return as == bs
	}
	return canonicalJSON(a) == canonicalJSON(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// equalAsSet compares two arrays ignoring element order, sorting each
// side's canonical-JSON form before comparing.
func equalAsSet(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	as := canonicalStrings(a)
	bs := canonicalStrings(b)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func canonicalStrings(items []any) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = canonicalJSON(it)
	}
	return out
}

// canonicalJSON renders v as JSON with map keys sorted (the stdlib encoder
// already sorts map[string]any keys), giving a stable identity string for
// set-union / structural-equality comparisons.
func canonicalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// ConflictArtifact records an unresolvable three-way divergence detected by
// change classification and persisted by the store. Fields lists, per field
// name, the base/local/remote values that could not be reconciled; Body
// carries a diff3-marked merge of the text body when the body itself
// diverged.
type ConflictArtifact struct {
	NodeID      string                    `json:"node_id"`
	NodeType    string                    `json:"node_type"`
	FilePath    string                    `json:"file_path"`
	ViewRelPath string                    `json:"view_rel_path"`
	DetectedAt  time.Time                 `json:"detected_at"`
	Fields      map[string]ConflictField  `json:"fields"`
	Body        string                    `json:"body,omitempty"`
}

// ConflictField is one field's three-way divergence.
type ConflictField struct {
	Base   any `json:"base"`
	Local  any `json:"local"`
	Remote any `json:"remote"`
}

// UnionListMerge computes the auto-merge of a list-valued field: the
// order-preserving canonical-JSON union of base, local, remote.
func UnionListMerge(base, local, remote []any) []any {
	seen := make(map[string]bool)
	var out []any
	add := func(items []any) {
		for _, it := range items {
			key := canonicalJSON(it)
			if !seen[key] {
				seen[key] = true
				out = append(out, it)
			}
		}
	}
	add(base)
	add(local)
	add(remote)
	return out
}
