package format

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hardcopy-dev/hardcopy/internal/types"
)

const frontMatterDelim = "---"

// MarkdownHandler renders nodes as YAML front matter + a free-text body,
// the default view-file shape: a text file with YAML front matter
// containing at minimum _id and _type, body as free text.
type MarkdownHandler struct {
	// Fields lists the non-body attrs this handler exposes for editing, in
	// the kind the diff detector and auto-merge need.
	Fields []types.EditableField
}

// NewMarkdownHandler builds a handler exposing the given editable fields
// (besides the always-present "body").
func NewMarkdownHandler(fields []types.EditableField) *MarkdownHandler {
	return &MarkdownHandler{Fields: fields}
}

func (h *MarkdownHandler) EditableFields() []types.EditableField {
	out := make([]types.EditableField, 0, len(h.Fields)+1)
	out = append(out, types.EditableField{Name: "body", Kind: types.KindText})
	out = append(out, h.Fields...)
	return out
}

func (h *MarkdownHandler) Render(n *types.Node) (string, error) {
	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		if k == "body" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf strings.Builder
	buf.WriteString(frontMatterDelim + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(orderedFrontMatter(n.ID, n.Type, keys, n.Attrs)); err != nil {
		return "", fmt.Errorf("format: encode front matter for %s: %w", n.ID, err)
	}
	_ = enc.Close()
	buf.WriteString(frontMatterDelim + "\n\n")
	buf.WriteString(strings.TrimRight(n.Body(), "\n"))
	buf.WriteString("\n")
	return buf.String(), nil
}

// orderedFrontMatter builds a yaml.Node so _id/_type sort first, then the
// rest of the declared attrs alphabetically — readable, deterministic diffs.
func orderedFrontMatter(id, typ string, keys []string, attrs map[string]any) *yaml.Node {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	put := func(k string, v any) {
		var kn, vn yaml.Node
		_ = kn.Encode(k)
		_ = vn.Encode(v)
		doc.Content = append(doc.Content, &kn, &vn)
	}
	put("_id", id)
	put("_type", typ)
	for _, k := range keys {
		put(k, attrs[k])
	}
	return doc
}

func (h *MarkdownHandler) Parse(content string) (*Parsed, error) {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontMatterDelim {
		return nil, fmt.Errorf("format: file has no YAML front matter")
	}
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontMatterDelim {
			end = i
			break
		}
	}
	if end == -1 {
		return nil, fmt.Errorf("format: unterminated YAML front matter")
	}

	fmBlock := strings.Join(lines[1:end], "\n")
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(fmBlock), &raw); err != nil {
		return nil, fmt.Errorf("format: parse front matter: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	id, _ := raw["_id"].(string)
	typ, _ := raw["_type"].(string)
	attrs := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "_id" || k == "_type" {
			continue
		}
		attrs[k] = jsonify(v)
	}

	body := ""
	if end+1 < len(lines) {
		bodyLines := lines[end+1:]
		for len(bodyLines) > 0 && bodyLines[0] == "" {
			bodyLines = bodyLines[1:]
		}
		body = strings.TrimRight(strings.Join(bodyLines, "\n"), "\n")
	}
	attrs["body"] = body

	return &Parsed{ID: id, Type: typ, Attrs: attrs, Body: body}, nil
}

// jsonify normalizes yaml.v3's decoded value shapes (map[string]interface{},
// []interface{}, scalars) to match what encoding/json would have produced,
// so structural equality comparisons with provider-fetched JSON attrs behave
// consistently.
func jsonify(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			out[k] = jsonify(val)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, val := range vv {
			out[i] = jsonify(val)
		}
		return out
	case int:
		return float64(vv)
	default:
		return v
	}
}

var _ Handler = (*MarkdownHandler)(nil)
