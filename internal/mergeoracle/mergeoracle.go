// Package mergeoracle implements an optional semantic-merge fallback: when
// the line-level diff3 merge still leaves conflict markers in a diverged
// body field, the base/local/remote text is handed to an LLM and its
// answer accepted only if it resolves every marker itself.
package mergeoracle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultModel   = anthropic.Model("claude-3-5-haiku-latest")
	maxRetries     = 3
	initialBackoff = 1 * time.Second
)

// errAPIKeyRequired is returned when no Anthropic API key is available.
var errAPIKeyRequired = errors.New("mergeoracle: API key required")

// Client wraps the Anthropic API for three-way semantic merging. It
// implements internal/diff.SemanticMerger.
type Client struct {
	client         anthropic.Client
	model          anthropic.Model
	maxRetries     int
	initialBackoff time.Duration
}

// NewClient builds an oracle client. ANTHROPIC_API_KEY, if set, takes
// precedence over an explicit apiKey argument.
func NewClient(apiKey string) (*Client, error) {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or pass a non-empty API key", errAPIKeyRequired)
	}

	return &Client{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:          defaultModel,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
	}, nil
}

// Merge asks the oracle to resolve a three-way body conflict. ok is true
// only when the model's answer itself contains no residual conflict
// markers — the caller (internal/diff) still re-checks this, but Merge
// enforces it too so a misbehaving model can't silently pass markers
// through as "resolved" text.
func (c *Client) Merge(ctx context.Context, base, local, remote string) (merged string, ok bool, err error) {
	prompt := renderMergePrompt(base, local, remote)

	text, err := c.callWithRetry(ctx, prompt)
	if err != nil {
		return "", false, fmt.Errorf("mergeoracle: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" || strings.Contains(text, "<<<<<<<") || strings.Contains(text, ">>>>>>>") {
		return "", false, nil
	}
	return text, true, nil
}

func (c *Client) callWithRetry(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		message, err := c.client.Messages.New(ctx, params)
		if err == nil {
			if len(message.Content) == 0 {
				return "", fmt.Errorf("unexpected response: no content blocks")
			}
			block := message.Content[0]
			if block.Type != "text" {
				return "", fmt.Errorf("unexpected response: not a text block (type=%s)", block.Type)
			}
			return block.Text, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			return "", fmt.Errorf("non-retryable error: %w", err)
		}
	}

	return "", fmt.Errorf("failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

func renderMergePrompt(base, local, remote string) string {
	var b strings.Builder
	b.WriteString("Three people edited the same text independently. Merge their changes into one final version that preserves both sets of intent where possible.\n\n")
	b.WriteString("Respond with ONLY the merged text. Do not include any conflict markers, explanation, or commentary.\n\n")
	b.WriteString("--- BASE (common ancestor) ---\n")
	b.WriteString(base)
	b.WriteString("\n\n--- LOCAL (first editor's version) ---\n")
	b.WriteString(local)
	b.WriteString("\n\n--- REMOTE (second editor's version) ---\n")
	b.WriteString(remote)
	b.WriteString("\n")
	return b.String()
}
