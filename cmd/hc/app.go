package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hardcopy-dev/hardcopy/internal/config"
	"github.com/hardcopy-dev/hardcopy/internal/diff"
	"github.com/hardcopy-dev/hardcopy/internal/format"
	"github.com/hardcopy-dev/hardcopy/internal/github"
	"github.com/hardcopy-dev/hardcopy/internal/mergeoracle"
	"github.com/hardcopy-dev/hardcopy/internal/nodelock"
	"github.com/hardcopy-dev/hardcopy/internal/provider"
	"github.com/hardcopy-dev/hardcopy/internal/push"
	"github.com/hardcopy-dev/hardcopy/internal/store"
	"github.com/hardcopy-dev/hardcopy/internal/telemetry"
	"github.com/hardcopy-dev/hardcopy/internal/types"
	"github.com/hardcopy-dev/hardcopy/internal/view"
)

// storeDir and dbFile fix the on-disk layout under <root>/.hardcopy/.
const (
	storeDir = ".hardcopy"
	dbFile   = "db.sqlite"
)

// App is the set of wired-up collaborators every hc verb operates against,
// built once in newApp so each command's RunE only has to drive it.
type App struct {
	Root         string
	Config       *config.Config
	Store        *store.Store
	Formats      *format.Registry
	Providers    *provider.Registry
	Materializer *view.Materializer
	Push         *push.Pipeline
	Locks        *nodelock.Manager
	Telemetry    *telemetry.PushCounters
	Log          *slog.Logger
}

// defaultEditableFields covers the attrs the bundled Provider adapters
// populate (title/body/status/labels/assignee/url), used by the default
// markdown handler for any node type without a more specific one.
func defaultEditableFields() []types.EditableField {
	return []types.EditableField{
		{Name: "title", Kind: types.KindScalar},
		{Name: "status", Kind: types.KindScalar},
		{Name: "labels", Kind: types.KindList},
		{Name: "assignee", Kind: types.KindScalar},
		{Name: "url", Kind: types.KindScalar},
	}
}

// newApp loads hardcopy.yaml, opens the Store, and wires every collaborator
// the CLI verbs need. root is the directory containing hardcopy.yaml and
// .hardcopy/.
func newApp(log *slog.Logger, root string) (*App, error) {
	cfg, err := config.Load(config.Path(root))
	if err != nil {
		return nil, err
	}

	dbPath := filepath.Join(root, storeDir, dbFile)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("hc: create store dir: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("hc: open store: %w", err)
	}

	formats := format.NewRegistry(format.NewMarkdownHandler(defaultEditableFields()))
	formats.Register("json", format.NewJSONHandler(defaultEditableFields()))

	providers := provider.NewRegistry()
	for _, src := range cfg.Sources {
		p, err := buildProvider(src)
		if err != nil {
			return nil, fmt.Errorf("hc: source %q: %w", src.Name, err)
		}
		providers.Register(src.Name, p)
		log.Debug("registered provider", "source", src.Name, "provider", src.Provider)
	}

	locks := nodelock.NewManager(dbPath)

	tel, err := telemetry.NewPushCounters()
	if err != nil {
		return nil, fmt.Errorf("hc: init telemetry: %w", err)
	}

	mat := &view.Materializer{Store: s, Formats: formats, RootDir: root}
	pp := &push.Pipeline{
		Store:     s,
		Formats:   formats,
		Providers: providers,
		Locks:     locks,
		RootDir:   root,
		Telemetry: tel,
		Oracle:    buildOracle(log),
	}

	return &App{
		Root:         root,
		Config:       cfg,
		Store:        s,
		Formats:      formats,
		Providers:    providers,
		Materializer: mat,
		Push:         pp,
		Locks:        locks,
		Telemetry:    tel,
		Log:          log,
	}, nil
}

// Close releases the App's resources; safe to call on a partially-built
// App (nil fields are skipped).
func (a *App) Close() error {
	var firstErr error
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(context.Background()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// buildOracle wires the optional semantic-merge fallback when
// ANTHROPIC_API_KEY is set in the environment; a push pipeline with no
// oracle simply leaves line-merge failures diverged, which is always a
// valid (if less convenient) outcome.
func buildOracle(log *slog.Logger) diff.SemanticMerger {
	oracle, err := mergeoracle.NewClient("")
	if err != nil {
		log.Debug("semantic merge oracle disabled", "reason", err)
		return nil
	}
	return oracle
}

// extraString reads a string field out of a Source's provider-specific
// extras, defaulting when absent.
func extraString(extra map[string]any, key, def string) string {
	if v, ok := extra[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

// buildProvider constructs the Provider adapter named by src.Provider,
// reading connection details out of src.Extra and credentials out of the
// environment variable it names (never out of hardcopy.yaml itself).
func buildProvider(src config.Source) (provider.Provider, error) {
	switch src.Provider {
	case "github":
		owner := extraString(src.Extra, "owner", "")
		repo := extraString(src.Extra, "repo", "")
		if owner == "" || repo == "" {
			return nil, fmt.Errorf("github provider requires owner and repo")
		}
		tokenEnv := extraString(src.Extra, "token_env", "GITHUB_TOKEN")
		client := github.NewClient(os.Getenv(tokenEnv), owner, repo)
		return provider.NewGitHubProvider(client), nil

	case "gitlab":
		baseURL := extraString(src.Extra, "base_url", "https://gitlab.com/api/v4")
		tokenEnv := extraString(src.Extra, "token_env", "GITLAB_TOKEN")
		return provider.NewGitLabProvider(baseURL, os.Getenv(tokenEnv)), nil

	case "jira":
		baseURL := extraString(src.Extra, "base_url", "")
		if baseURL == "" {
			return nil, fmt.Errorf("jira provider requires base_url")
		}
		username := extraString(src.Extra, "username", "")
		tokenEnv := extraString(src.Extra, "token_env", "JIRA_API_TOKEN")
		return provider.NewJiraProvider(baseURL, username, os.Getenv(tokenEnv)), nil

	default:
		return nil, fmt.Errorf("unknown provider type %q", src.Provider)
	}
}
