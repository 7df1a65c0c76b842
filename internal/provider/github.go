package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hardcopy-dev/hardcopy/internal/github"
	"github.com/hardcopy-dev/hardcopy/internal/types"
)

// GitHubProvider adapts internal/github.Client to the Provider contract.
// Node ids take the form "github:<owner>/<repo>#<number>".
type GitHubProvider struct {
	client *github.Client
}

// NewGitHubProvider wraps an already-configured github.Client.
func NewGitHubProvider(client *github.Client) *GitHubProvider {
	return &GitHubProvider{client: client}
}

func (p *GitHubProvider) Name() string { return "github" }

// parseGitHubID splits "github:owner/repo#42" into its issue number, trusting
// the caller (the registry routed on the "github" scheme already).
func parseGitHubID(id string) (int, error) {
	_, rest, ok := strings.Cut(id, ":")
	if !ok {
		return 0, fmt.Errorf("github: malformed id %q", id)
	}
	_, numStr, ok := strings.Cut(rest, "#")
	if !ok {
		return 0, fmt.Errorf("github: id %q missing #<number> fragment", id)
	}
	n, err := strconv.Atoi(numStr)
	if err != nil {
		return 0, fmt.Errorf("github: id %q has non-numeric issue number: %w", id, err)
	}
	return n, nil
}

func (p *GitHubProvider) FetchNode(ctx context.Context, id string) (*types.Node, error) {
	number, err := parseGitHubID(id)
	if err != nil {
		return nil, err
	}

	issue, err := p.client.FetchIssueByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("github: fetch node %s: %w", id, err)
	}
	if issue == nil {
		return nil, nil
	}
	return githubIssueToNode(id, issue), nil
}

func (p *GitHubProvider) Push(ctx context.Context, base *types.Node, changes map[string]any) (PushResult, error) {
	number, err := parseGitHubID(base.ID)
	if err != nil {
		return PushResult{}, err
	}

	updates := map[string]interface{}{}
	if v, ok := changes["body"]; ok {
		updates["body"] = v
	}
	if v, ok := changes["title"]; ok {
		updates["title"] = v
	}
	if v, ok := changes["status"]; ok {
		if s, ok := v.(string); ok {
			updates["state"] = githubStateFromStatus(s)
		}
	}
	if v, ok := changes["labels"]; ok {
		if list, ok := v.([]any); ok {
			labels := make([]string, 0, len(list))
			for _, l := range list {
				if s, ok := l.(string); ok {
					labels = append(labels, s)
				}
			}
			updates["labels"] = labels
		}
	}
	if len(updates) == 0 {
		return PushResult{OK: true}, nil
	}

	updated, err := p.client.UpdateIssue(ctx, number, updates)
	if err != nil {
		return PushResult{}, fmt.Errorf("github: push %s: %w", base.ID, err)
	}
	token := strconv.Itoa(updated.ID)
	return PushResult{OK: true, VersionToken: &token}, nil
}

func githubStateFromStatus(status string) string {
	if status == "closed" || status == "done" {
		return "closed"
	}
	return "open"
}

// githubIssueToNode maps a github.Issue onto the generic Node shape the
// core's diff/view layers operate on.
func githubIssueToNode(id string, issue *github.Issue) *types.Node {
	status := "open"
	if issue.State == "closed" {
		status = "closed"
	}

	attrs := map[string]any{
		"title":  issue.Title,
		"body":   issue.Body,
		"status": status,
		"labels": stringsToAny(github.LabelNames(issue.Labels)),
		"url":    issue.HTMLURL,
	}
	if issue.Assignee != nil {
		attrs["assignee"] = issue.Assignee.Login
	}

	syncedAt := time.Now().UTC()
	if issue.UpdatedAt != nil {
		syncedAt = issue.UpdatedAt.UTC()
	}

	token := strconv.Itoa(issue.ID)
	return &types.Node{
		ID:           id,
		Type:         "issue",
		Attrs:        attrs,
		SyncedAt:     syncedAt,
		VersionToken: &token,
	}
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
