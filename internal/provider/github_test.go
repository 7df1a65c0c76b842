package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hardcopy-dev/hardcopy/internal/github"
)

func TestParseGitHubIDExtractsIssueNumber(t *testing.T) {
	n, err := parseGitHubID("github:acme/widgets#42")
	require.NoError(t, err)
	require.Equal(t, 42, n)
}

func TestParseGitHubIDIgnoresSchemeAndOwnerRepo(t *testing.T) {
	// owner/repo is bound into the github.Client at construction, so the id
	// only needs the "<anything>:<anything>#<number>" shape to route.
	n, err := parseGitHubID("mirror:whatever-here#7")
	require.NoError(t, err)
	require.Equal(t, 7, n)
}

func TestParseGitHubIDMissingFragmentErrors(t *testing.T) {
	_, err := parseGitHubID("github:acme/widgets")
	require.Error(t, err)
}

func TestParseGitHubIDNonNumericFragmentErrors(t *testing.T) {
	_, err := parseGitHubID("github:acme/widgets#abc")
	require.Error(t, err)
}

func TestGithubStateFromStatus(t *testing.T) {
	require.Equal(t, "closed", githubStateFromStatus("closed"))
	require.Equal(t, "closed", githubStateFromStatus("done"))
	require.Equal(t, "open", githubStateFromStatus("open"))
	require.Equal(t, "open", githubStateFromStatus("in-progress"))
}

func TestGithubIssueToNodeMapsFields(t *testing.T) {
	updated := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	issue := &github.Issue{
		ID:        99,
		Title:     "Fix the thing",
		Body:      "details",
		State:     "open",
		HTMLURL:   "https://github.com/acme/widgets/issues/42",
		Labels:    []github.Label{{Name: "bug"}},
		Assignee:  &github.User{Login: "alice"},
		UpdatedAt: &updated,
	}

	n := githubIssueToNode("github:acme/widgets#42", issue)
	require.Equal(t, "github:acme/widgets#42", n.ID)
	require.Equal(t, "issue", n.Type)
	title, _ := n.Attr("title")
	require.Equal(t, "Fix the thing", title)
	status, _ := n.Attr("status")
	require.Equal(t, "open", status)
	assignee, _ := n.Attr("assignee")
	require.Equal(t, "alice", assignee)
	require.Equal(t, updated, n.SyncedAt)
	require.NotNil(t, n.VersionToken)
}
