package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hardcopy-dev/hardcopy/internal/types"
)

type stubProvider struct{ name string }

func (s *stubProvider) Name() string { return s.name }
func (s *stubProvider) FetchNode(ctx context.Context, id string) (*types.Node, error) {
	return nil, nil
}
func (s *stubProvider) Push(ctx context.Context, base *types.Node, changes map[string]any) (PushResult, error) {
	return PushResult{OK: true}, nil
}

func TestRegistryRoutesByScheme(t *testing.T) {
	r := NewRegistry()
	gh := &stubProvider{name: "github"}
	jira := &stubProvider{name: "jira"}
	r.Register("github", gh)
	r.Register("jira", jira)

	p, err := r.For("github:owner/repo#42")
	require.NoError(t, err)
	require.Equal(t, "github", p.Name())

	p, err = r.For("jira:PROJ-7")
	require.NoError(t, err)
	require.Equal(t, "jira", p.Name())
}

func TestRegistryForUnknownSchemeReturnsErrNoProvider(t *testing.T) {
	r := NewRegistry()
	r.Register("github", &stubProvider{name: "github"})

	_, err := r.For("gitlab:42")
	require.True(t, errors.Is(err, ErrNoProvider))
}

func TestRegistryForNoSchemePrefixReturnsErrNoProvider(t *testing.T) {
	r := NewRegistry()
	_, err := r.For("no-colon-here")
	require.True(t, errors.Is(err, ErrNoProvider))
}

func TestRegistryReRegisterReplacesProvider(t *testing.T) {
	r := NewRegistry()
	r.Register("github", &stubProvider{name: "first"})
	r.Register("github", &stubProvider{name: "second"})

	p, err := r.For("github:1")
	require.NoError(t, err)
	require.Equal(t, "second", p.Name())
}
