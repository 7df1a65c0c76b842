package format

import (
	"encoding/json"
	"fmt"

	"github.com/hardcopy-dev/hardcopy/internal/types"
)

// JSONHandler renders nodes as a single JSON document: {_id, _type, ...attrs,
// body}, for node types better served by structured data than markdown
// prose (e.g. CI/CD config beads).
type JSONHandler struct {
	Fields []types.EditableField
}

func NewJSONHandler(fields []types.EditableField) *JSONHandler {
	return &JSONHandler{Fields: fields}
}

func (h *JSONHandler) EditableFields() []types.EditableField {
	out := make([]types.EditableField, 0, len(h.Fields)+1)
	out = append(out, types.EditableField{Name: "body", Kind: types.KindText})
	out = append(out, h.Fields...)
	return out
}

func (h *JSONHandler) Render(n *types.Node) (string, error) {
	doc := map[string]any{"_id": n.ID, "_type": n.Type}
	for k, v := range n.Attrs {
		doc[k] = v
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format: marshal json node %s: %w", n.ID, err)
	}
	return string(b) + "\n", nil
}

func (h *JSONHandler) Parse(content string) (*Parsed, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("format: parse json: %w", err)
	}
	id, _ := raw["_id"].(string)
	typ, _ := raw["_type"].(string)
	attrs := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "_id" || k == "_type" {
			continue
		}
		attrs[k] = v
	}
	body, _ := attrs["body"].(string)
	return &Parsed{ID: id, Type: typ, Attrs: attrs, Body: body}, nil
}

var _ Handler = (*JSONHandler)(nil)
