package provider

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseJiraIDExtractsIssueKey(t *testing.T) {
	key, err := parseJiraID("jira:PROJ#PROJ-123")
	require.NoError(t, err)
	require.Equal(t, "PROJ-123", key)
}

func TestParseJiraIDMissingFragmentErrors(t *testing.T) {
	_, err := parseJiraID("jira:PROJ")
	require.Error(t, err)
}

func TestAdfToPlainTextExtractsParagraphs(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "doc",
		"content": [
			{"content": [{"text": "first line"}]},
			{"content": [{"text": "second"}, {"text": " line"}]}
		]
	}`)
	require.Equal(t, "first line\nsecond line", adfToPlainText(raw))
}

func TestAdfToPlainTextFallsBackToPlainString(t *testing.T) {
	raw := json.RawMessage(`"just a string"`)
	require.Equal(t, "just a string", adfToPlainText(raw))
}

func TestAdfToPlainTextEmptyOrNull(t *testing.T) {
	require.Equal(t, "", adfToPlainText(nil))
	require.Equal(t, "", adfToPlainText(json.RawMessage(`null`)))
}

func TestPlainTextToADFRoundTripsThroughAdfToPlainText(t *testing.T) {
	doc := plainTextToADF("line one\nline two")
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	require.Equal(t, "line one\nline two", adfToPlainText(raw))
}

func TestJiraIssueToNodeMapsStatusWithUnderscore(t *testing.T) {
	var issue jiraIssue
	issue.ID = "10001"
	issue.Key = "PROJ-1"
	issue.Fields.Summary = "Title"
	issue.Fields.Labels = []string{"a"}
	issue.Fields.Status = &struct {
		Name string `json:"name"`
	}{Name: "In Progress"}

	n := jiraIssueToNode("jira:PROJ#PROJ-1", &issue)
	status, _ := n.Attr("status")
	require.Equal(t, "in_progress", status)
}

func TestIsJiraNotFoundUnwrapsWrappedError(t *testing.T) {
	require.True(t, isJiraNotFound(&jiraNotFoundError{}))
	require.True(t, isJiraNotFound(fmt.Errorf("fetch: %w", &jiraNotFoundError{})))
	require.False(t, isJiraNotFound(nil))
}
