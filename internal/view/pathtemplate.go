package view

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hardcopy-dev/hardcopy/internal/types"
)

// exprPattern matches "{{dotted.path}}" placeholders, mirroring the
// {{variable}} substitution language used elsewhere in the stack rather
// than pulling in a general-purpose templating engine for single-value
// field interpolation.
var exprPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// evalTemplate substitutes every {{expr}} occurrence in tmpl with the
// string form of the value it resolves to against n. Supported paths are
// "id", "type", and "attrs.<name>" (optionally dotted further into nested
// maps). An unresolvable path makes evalTemplate return an error and no
// output; the materializer then skips only that one file, not the whole
// refresh.
func evalTemplate(tmpl string, n *types.Node) (string, error) {
	var firstErr error
	out := exprPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		path := exprPattern.FindStringSubmatch(m)[1]
		v, err := resolvePath(path, n)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return ""
		}
		return fmt.Sprint(v)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func resolvePath(path string, n *types.Node) (any, error) {
	parts := strings.Split(path, ".")
	switch parts[0] {
	case "id":
		return n.ID, nil
	case "type":
		return n.Type, nil
	case "attrs":
		if len(parts) < 2 {
			return nil, fmt.Errorf("view: %q requires a field after attrs.", path)
		}
		var cur any = n.Attrs
		for _, key := range parts[1:] {
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("view: %q: %q is not an object", path, key)
			}
			v, ok := m[key]
			if !ok {
				return nil, fmt.Errorf("view: %q: field %q not present", path, key)
			}
			cur = v
		}
		return cur, nil
	default:
		return nil, fmt.Errorf("view: unsupported template path %q", path)
	}
}
