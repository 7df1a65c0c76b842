// Package format provides the per-node-type render/parse/editable-fields
// descriptors the view materializer and diff detector depend on. The core
// treats format handlers as an outside contract; this package supplies the
// default handlers most deployments need so that the core is usable out of
// the box.
package format

import (
	"fmt"

	"github.com/hardcopy-dev/hardcopy/internal/types"
)

// Parsed is the on-disk representation of a node: front-matter attrs plus a
// free-text body.
type Parsed struct {
	ID     string
	Type   string
	Attrs  map[string]any
	Body   string
}

// Handler renders a Node to file content and parses file content back into
// attrs+body. EditableFields declares which attrs (plus the implicit "body")
// participate in change detection and conflict classification.
type Handler interface {
	Render(n *types.Node) (string, error)
	Parse(content string) (*Parsed, error)
	EditableFields() []types.EditableField
}

// Registry maps a node type to its Handler.
type Registry struct {
	handlers map[string]Handler
	fallback Handler
}

// NewRegistry creates a Registry whose fallback handler is used for any type
// without a specific registration.
func NewRegistry(fallback Handler) *Registry {
	return &Registry{handlers: make(map[string]Handler), fallback: fallback}
}

// Register installs h as the handler for nodeType.
func (r *Registry) Register(nodeType string, h Handler) {
	r.handlers[nodeType] = h
}

// For returns the handler for nodeType, falling back to the registry's
// default when none is registered.
func (r *Registry) For(nodeType string) (Handler, error) {
	if h, ok := r.handlers[nodeType]; ok {
		return h, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("format: no handler registered for type %q and no fallback set", nodeType)
}
