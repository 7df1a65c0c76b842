// Package provider defines the external-system contract that the push
// pipeline (internal/push) consumes, plus a scheme-keyed registry and the
// adapters that implement it.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hardcopy-dev/hardcopy/internal/types"
)

// ErrNoProvider is returned by Registry.For when no provider is registered
// for a node id's scheme.
var ErrNoProvider = errors.New("provider: no provider registered for id scheme")

// PushResult is the outcome of a successful Provider.Push call. VersionToken
// is opaque and, when present, is stored on the node for optimistic
// concurrency on the next push. Cached signals the provider served a fetch
// from a local cache rather than the network.
type PushResult struct {
	OK           bool
	VersionToken *string
	Cached       bool
}

// Provider is the push pipeline's only dependency on the outside world:
// name, fetch, push. Rate limiting, auth, and transport are the Provider's
// own responsibility.
type Provider interface {
	// Name identifies the provider for logging and error messages.
	Name() string
	// FetchNode retrieves the current remote state of id. A nil Node with a
	// nil error means the remote considers the node gone.
	FetchNode(ctx context.Context, id string) (*types.Node, error)
	// Push applies changes on top of base. On failure it returns a non-nil
	// error and the caller must not mutate any local state for the node.
	Push(ctx context.Context, base *types.Node, changes map[string]any) (PushResult, error)
}

// Registry dispatches a node id to the Provider registered for its scheme
// (the "<scheme>:<path>#<fragment>" convention — the core treats ids as
// opaque, but the registry needs the scheme prefix to route).
type Registry struct {
	byScheme map[string]Provider
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byScheme: make(map[string]Provider)}
}

// Register installs p as the Provider for the given id scheme (e.g.
// "github", "jira", "gitlab"). Re-registering a scheme replaces the prior
// provider.
func (r *Registry) Register(scheme string, p Provider) {
	r.byScheme[scheme] = p
}

// For returns the Provider registered for id's scheme, or ErrNoProvider if
// none is registered or id carries no recognizable scheme prefix.
func (r *Registry) For(id string) (Provider, error) {
	scheme, _, ok := strings.Cut(id, ":")
	if !ok {
		return nil, fmt.Errorf("%w: %q has no scheme prefix", ErrNoProvider, id)
	}
	p, ok := r.byScheme[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: scheme %q", ErrNoProvider, scheme)
	}
	return p, nil
}
