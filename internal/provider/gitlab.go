package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hardcopy-dev/hardcopy/internal/types"
)

// gitlabIssue is the subset of the GitLab REST v4 issue shape this adapter
// needs.
type gitlabIssue struct {
	ID          int        `json:"id"`
	IID         int        `json:"iid"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	State       string     `json:"state"` // "opened", "closed"
	Labels      []string   `json:"labels"`
	UpdatedAt   *time.Time `json:"updated_at"`
	WebURL      string     `json:"web_url"`
}

// GitLabProvider adapts a GitLab REST v4 endpoint to the Provider contract.
// Node ids take the form "gitlab:<project>#<iid>", where <project> is the
// plain "group/project" path; it is URL-encoded only when the request URL
// is built.
type GitLabProvider struct {
	baseURL    string // e.g. "https://gitlab.com/api/v4"
	token      string
	httpClient *http.Client
}

// NewGitLabProvider creates a GitLabProvider against baseURL (the GitLab
// instance's API v4 root) authenticating with a personal access token.
func NewGitLabProvider(baseURL, token string) *GitLabProvider {
	return &GitLabProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *GitLabProvider) Name() string { return "gitlab" }

func parseGitLabID(id string) (project string, iid int, err error) {
	_, rest, ok := strings.Cut(id, ":")
	if !ok {
		return "", 0, fmt.Errorf("gitlab: malformed id %q", id)
	}
	proj, iidStr, ok := strings.Cut(rest, "#")
	if !ok {
		return "", 0, fmt.Errorf("gitlab: id %q missing #<iid> fragment", id)
	}
	n, err := strconv.Atoi(iidStr)
	if err != nil {
		return "", 0, fmt.Errorf("gitlab: id %q has non-numeric iid: %w", id, err)
	}
	return proj, n, nil
}

func (p *GitLabProvider) FetchNode(ctx context.Context, id string) (*types.Node, error) {
	project, iid, err := parseGitLabID(id)
	if err != nil {
		return nil, err
	}

	apiURL := fmt.Sprintf("%s/projects/%s/issues/%d", p.baseURL, url.PathEscape(project), iid)
	body, err := p.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		if isGitLabNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("gitlab: fetch node %s: %w", id, err)
	}

	var issue gitlabIssue
	if err := json.Unmarshal(body, &issue); err != nil {
		return nil, fmt.Errorf("gitlab: parse issue %s: %w", id, err)
	}
	return gitlabIssueToNode(id, &issue), nil
}

func (p *GitLabProvider) Push(ctx context.Context, base *types.Node, changes map[string]any) (PushResult, error) {
	project, iid, err := parseGitLabID(base.ID)
	if err != nil {
		return PushResult{}, err
	}

	params := url.Values{}
	if v, ok := changes["title"]; ok {
		if s, ok := v.(string); ok {
			params.Set("title", s)
		}
	}
	if v, ok := changes["body"]; ok {
		if s, ok := v.(string); ok {
			params.Set("description", s)
		}
	}
	if v, ok := changes["status"]; ok {
		if s, ok := v.(string); ok {
			if s == "closed" {
				params.Set("state_event", "close")
			} else {
				params.Set("state_event", "reopen")
			}
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
			params.Set("labels", strings.Join(labels, ","))
		}
	}
	if len(params) == 0 {
		return PushResult{OK: true}, nil
	}

	apiURL := fmt.Sprintf("%s/projects/%s/issues/%d?%s", p.baseURL, url.PathEscape(project), iid, params.Encode())
	if _, err := p.doRequest(ctx, http.MethodPut, apiURL, nil); err != nil {
		return PushResult{}, fmt.Errorf("gitlab: push %s: %w", base.ID, err)
	}
	return PushResult{OK: true}, nil
}

// doRequest performs an authenticated request, retrying transient failures
// with exponential backoff, the same generalization applied to the
// teacher's hand-rolled GitHub/GitLab retry loops.
func (p *GitLabProvider) doRequest(ctx context.Context, method, apiURL string, body []byte) ([]byte, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)

	var result []byte
	operation := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("PRIVATE-TOKEN", p.token)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(&gitlabNotFoundError{})
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("gitlab rate limited (status %d)", resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("gitlab API returned %d: %s", resp.StatusCode, string(respBody)))
		}

		result = respBody
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return result, nil
}

type gitlabNotFoundError struct{}

func (e *gitlabNotFoundError) Error() string { return "gitlab: issue not found" }

func isGitLabNotFound(err error) bool {
	_, ok := err.(*gitlabNotFoundError)
	return ok
}

func gitlabIssueToNode(id string, issue *gitlabIssue) *types.Node {
	status := "open"
	if issue.State == "closed" {
		status = "closed"
	}

	labels := make([]any, len(issue.Labels))
	for i, l := range issue.Labels {
		labels[i] = l
	}

	attrs := map[string]any{
		"title":  issue.Title,
		"body":   issue.Description,
		"status": status,
		"labels": labels,
		"url":    issue.WebURL,
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
