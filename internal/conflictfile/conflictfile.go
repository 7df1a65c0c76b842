// Package conflictfile renders and parses the on-disk conflict artifact:
// a YAML front-matter block plus one diff3-style marker block per diverged
// field, written to .hardcopy/conflicts/<urlencoded-node-id>.md so a user
// can read and resolve a conflict the same way they edit any other file.
package conflictfile

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hardcopy-dev/hardcopy/internal/types"
)

const frontMatterDelim = "---"

// ArtifactPath returns the path conflict artifacts for nodeID are written
// to, under dir (the Store's conflicts directory).
func ArtifactPath(dir, nodeID string) string {
	return filepath.Join(dir, url.QueryEscape(nodeID)+".md")
}

type frontMatter struct {
	NodeID      string `yaml:"node_id"`
	NodeType    string `yaml:"node_type"`
	ViewRelPath string `yaml:"view_rel_path"`
	DetectedAt  string `yaml:"detected_at"`
}

// Render generates the artifact file content for a: YAML front matter
// naming the node and where it was detected, followed by one "## <field>"
// marker block per diverged field. The body field reuses the diff3-marked
// text already computed by the line merge (a.Body) rather than re-wrapping
// the whole field, since that text already pinpoints the conflicting
// hunks; every other field gets a whole-value marker block.
func Render(a *types.ConflictArtifact) (string, error) {
	var buf strings.Builder
	buf.WriteString(frontMatterDelim + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	fm := frontMatter{
		NodeID:      a.NodeID,
		NodeType:    a.NodeType,
		ViewRelPath: a.ViewRelPath,
		DetectedAt:  a.DetectedAt.UTC().Format(time.RFC3339),
	}
	if err := enc.Encode(fm); err != nil {
		return "", fmt.Errorf("conflictfile: encode front matter for %s: %w", a.NodeID, err)
	}
	_ = enc.Close()
	buf.WriteString(frontMatterDelim + "\n")

	fields := make([]string, 0, len(a.Fields))
	for f := range a.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, f := range fields {
		buf.WriteString("\n## " + f + "\n")
		if f == "body" && a.Body != "" {
			buf.WriteString(strings.TrimRight(a.Body, "\n"))
			buf.WriteString("\n")
			continue
		}
		fc := a.Fields[f]
		buf.WriteString(markerBlock(fc.Local, fc.Base, fc.Remote))
	}
	return buf.String(), nil
}

func markerBlock(local, base, remote any) string {
	var b strings.Builder
	b.WriteString("<<<<<<< LOCAL\n")
	b.WriteString(Stringify(local))
	b.WriteString("\n||||||| BASE\n")
	b.WriteString(Stringify(base))
	b.WriteString("\n=======\n")
	b.WriteString(Stringify(remote))
	b.WriteString("\n>>>>>>> REMOTE\n")
	return b.String()
}

// Stringify renders a field side the same way for both the generated
// marker block and the comparison resolve uses to tell which side a user
// kept: strings pass through verbatim, everything else is JSON-encoded so
// the text is unambiguous and round-trips.
func Stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// FieldMarkers is one "## <field>" block's parsed content. HasMarkers is
// true when the block still carries a full diff3 marker set (local/base/
// remote populated, matching what Render produced); once a user resolves a
// field by deleting the markers and keeping one side's text, HasMarkers is
// false and Resolved carries whatever text remains.
type FieldMarkers struct {
	HasMarkers bool
	Local      string
	Base       string
	Remote     string
	Resolved   string
}

// Parse splits an artifact file's body into its per-field marker blocks,
// delimited by "## " at column zero, and parses each block's diff3 markers
// (if present). Tolerant of CRLF line endings.
func Parse(content string) (map[string]FieldMarkers, error) {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	start := 0
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == frontMatterDelim {
		for i := 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == frontMatterDelim {
				start = i + 1
				break
			}
		}
	}

	out := make(map[string]FieldMarkers)
	var field string
	var block []string
	flush := func() {
		if field != "" {
			out[field] = parseFieldBlock(strings.Join(block, "\n"))
		}
	}
	for _, line := range lines[start:] {
		if strings.HasPrefix(line, "## ") {
			flush()
			field = strings.TrimSpace(strings.TrimPrefix(line, "## "))
			block = nil
			continue
		}
		if field != "" {
			block = append(block, line)
		}
	}
	flush()
	return out, nil
}

// parseFieldBlock extracts the diff3 markers from one field's block text.
// When no complete marker set is found, the block is treated as already
// resolved: Resolved holds its trimmed text.
func parseFieldBlock(text string) FieldMarkers {
	lines := strings.Split(text, "\n")
	localAt, baseAt, sepAt, remoteAt := -1, -1, -1, -1
	for i, l := range lines {
		switch {
		case strings.HasPrefix(l, "<<<<<<<"):
			localAt = i
		case strings.HasPrefix(l, "|||||||"):
			baseAt = i
		case strings.HasPrefix(l, "======="):
			sepAt = i
		case strings.HasPrefix(l, ">>>>>>>"):
			remoteAt = i
		}
	}
	if localAt < 0 || baseAt < 0 || sepAt < 0 || remoteAt < 0 ||
		!(localAt < baseAt && baseAt < sepAt && sepAt < remoteAt) {
		return FieldMarkers{Resolved: strings.TrimSpace(text)}
	}
	return FieldMarkers{
		HasMarkers: true,
		Local:      strings.Join(lines[localAt+1:baseAt], "\n"),
		Base:       strings.Join(lines[baseAt+1:sepAt], "\n"),
		Remote:     strings.Join(lines[sepAt+1:remoteAt], "\n"),
	}
}
