// Package view implements C3: the view materializer that evaluates a query,
// renders one file per selected node onto disk, and reconciles files that
// no longer match the query ("orphans").
package view

import "time"

// Definition describes one view: a query over the node graph, plus one or
// more render entries that each emit a file per selected node.
type Definition struct {
	Path      string         `yaml:"path" json:"path"`
	Query     string         `yaml:"query" json:"query"`
	Render    []RenderEntry  `yaml:"render" json:"render"`
	Partition *PartitionSpec `yaml:"partition,omitempty" json:"partition,omitempty"`
	TTL       time.Duration  `yaml:"ttl,omitempty" json:"ttl,omitempty"`
}

// RenderEntry describes one file-per-node render rule within a view.
// PathTemplate is a "{{expr}}"-substituted string evaluated against the
// node (e.g. "{{attrs.number}}.md"). Type, if set, overrides the format
// handler lookup (otherwise the handler registered for node.Type is used).
// Template, if set, is a body template string in the same substitution
// language; otherwise the format handler's default Render is used.
type RenderEntry struct {
	PathTemplate string `yaml:"path_template" json:"path_template"`
	Type         string `yaml:"type,omitempty" json:"type,omitempty"`
	Template     string `yaml:"template,omitempty" json:"template,omitempty"`
}

// PartitionSpec is a view's parsed `partition` block: an attribute name and
// a fallback bucket for nodes missing that attribute. The materializer does
// not read it; files are placed by each render entry's PathTemplate alone.
type PartitionSpec struct {
	By       string `yaml:"by" json:"by"`
	Fallback string `yaml:"fallback,omitempty" json:"fallback,omitempty"`
}

const defaultTTL = 5 * time.Minute
