package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hardcopy-dev/hardcopy/internal/types"
)

// jiraSearchFields is the field set requested on every get/search call.
const jiraSearchFields = "summary,description,status,priority,issuetype,labels,created,updated"

// jiraIssue is the subset of the Jira REST v3 issue shape this adapter
// needs.
type jiraIssue struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Summary     string          `json:"summary"`
		Description json.RawMessage `json:"description"`
		Status      *struct {
			Name string `json:"name"`
		} `json:"status"`
		Labels  []string `json:"labels"`
		Updated string   `json:"updated"`
	} `json:"fields"`
}

// JiraProvider adapts a Jira Cloud/Server REST v3 endpoint to the Provider
// contract. Node ids take the form "jira:<project>#<issueKey>", e.g.
// "jira:PROJ#PROJ-123".
type JiraProvider struct {
	baseURL    string
	username   string
	apiToken   string
	httpClient *http.Client
}

// NewJiraProvider creates a JiraProvider against the given Jira base URL
// (e.g. "https://yourorg.atlassian.net"), authenticating with basic auth
// when username is set, bearer-token auth otherwise.
func NewJiraProvider(baseURL, username, apiToken string) *JiraProvider {
	return &JiraProvider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		username:   username,
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *JiraProvider) Name() string { return "jira" }

func parseJiraID(id string) (string, error) {
	_, rest, ok := strings.Cut(id, ":")
	if !ok {
		return "", fmt.Errorf("jira: malformed id %q", id)
	}
	_, key, ok := strings.Cut(rest, "#")
	if !ok {
		return "", fmt.Errorf("jira: id %q missing #<issue key> fragment", id)
	}
	return key, nil
}

func (p *JiraProvider) FetchNode(ctx context.Context, id string) (*types.Node, error) {
	key, err := parseJiraID(id)
	if err != nil {
		return nil, err
	}

	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s?fields=%s", p.baseURL, url.PathEscape(key), jiraSearchFields)
	body, err := p.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		if isJiraNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("jira: fetch node %s: %w", id, err)
	}

	var issue jiraIssue
	if err := json.Unmarshal(body, &issue); err != nil {
		return nil, fmt.Errorf("jira: parse issue %s: %w", id, err)
	}
	return jiraIssueToNode(id, &issue), nil
}

func (p *JiraProvider) Push(ctx context.Context, base *types.Node, changes map[string]any) (PushResult, error) {
	key, err := parseJiraID(base.ID)
	if err != nil {
		return PushResult{}, err
	}

	fields := map[string]interface{}{}
	if v, ok := changes["title"]; ok {
		fields["summary"] = v
	}
	if v, ok := changes["body"]; ok {
		if s, ok := v.(string); ok {
			fields["description"] = plainTextToADF(s)
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
			fields["labels"] = labels
		}
	}
	if len(fields) == 0 {
		return PushResult{OK: true}, nil
	}

	payload, err := json.Marshal(map[string]interface{}{"fields": fields})
	if err != nil {
		return PushResult{}, fmt.Errorf("jira: marshal update for %s: %w", base.ID, err)
	}

	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s", p.baseURL, url.PathEscape(key))
	if _, err := p.doRequest(ctx, http.MethodPut, apiURL, payload); err != nil {
		return PushResult{}, fmt.Errorf("jira: push %s: %w", base.ID, err)
	}
	return PushResult{OK: true}, nil
}

// doRequest performs an authenticated request, retrying transient failures
// with exponential backoff, same as the GitHub and GitLab adapters.
func (p *JiraProvider) doRequest(ctx context.Context, method, apiURL string, body []byte) ([]byte, error) {
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
		p.setAuth(req)
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

		if resp.StatusCode == http.StatusNoContent {
			result = nil
			return nil
		}
		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(&jiraNotFoundError{})
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("jira rate limited (status %d)", resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("jira API returned %d: %s", resp.StatusCode, string(respBody)))
		}

		result = respBody
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return result, nil
}

type jiraNotFoundError struct{}

func (e *jiraNotFoundError) Error() string { return "jira: issue not found" }

func isJiraNotFound(err error) bool {
	for err != nil {
		if _, ok := err.(*jiraNotFoundError); ok {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func (p *JiraProvider) setAuth(req *http.Request) {
	if p.username != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(p.username + ":" + p.apiToken))
		req.Header.Set("Authorization", "Basic "+auth)
		return
	}
	req.Header.Set("Authorization", "Bearer "+p.apiToken)
}

func jiraIssueToNode(id string, issue *jiraIssue) *types.Node {
	status := "open"
	if issue.Fields.Status != nil {
		status = strings.ToLower(strings.ReplaceAll(issue.Fields.Status.Name, " ", "_"))
	}

	labels := make([]any, len(issue.Fields.Labels))
	for i, l := range issue.Fields.Labels {
		labels[i] = l
	}

	attrs := map[string]any{
		"title":  issue.Fields.Summary,
		"body":   adfToPlainText(issue.Fields.Description),
		"status": status,
		"labels": labels,
	}

	syncedAt := time.Now().UTC()
	if t, err := time.Parse("2006-01-02T15:04:05.999-0700", issue.Fields.Updated); err == nil {
		syncedAt = t.UTC()
	}

	token := issue.ID
	return &types.Node{
		ID:           id,
		Type:         "issue",
		Attrs:        attrs,
		SyncedAt:     syncedAt,
		VersionToken: &token,
	}
}

// adfToPlainText extracts plain text from Jira's Atlassian Document Format
// description field, falling back to a plain string or the raw bytes.
func adfToPlainText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var doc struct {
		Type    string `json:"type"`
		Content []struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil || doc.Type != "doc" {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return string(raw)
	}

	var paragraphs []string
	for _, block := range doc.Content {
		var line []string
		for _, inline := range block.Content {
			if inline.Text != "" {
				line = append(line, inline.Text)
			}
		}
		paragraphs = append(paragraphs, strings.Join(line, ""))
	}
	return strings.Join(paragraphs, "\n")
}

// plainTextToADF converts plain text to the minimal ADF document shape the
// Jira v3 API requires for the description field.
func plainTextToADF(text string) map[string]interface{} {
	var content []interface{}
	for _, para := range strings.Split(text, "\n") {
		if para == "" {
			content = append(content, map[string]interface{}{"type": "paragraph", "content": []interface{}{}})
			continue
		}
		content = append(content, map[string]interface{}{
			"type": "paragraph",
			"content": []interface{}{
				map[string]interface{}{"type": "text", "text": para},
			},
		})
	}
	return map[string]interface{}{"type": "doc", "version": 1, "content": content}
}
