// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/pdiddy/hypothesis-engine/internal/mcp"
)

// Tool names served by the local caller.
const (
	ToolSearchWithFulltext = "pubmed_search_with_fulltext"
	ToolSearch             = "search_pubmed"
	ToolCheckAvailable     = "check_pubmed_available"
)

// LocalCaller serves the PubMed tools in process. It speaks the same JSON
// wire shapes as the remote tool server, so configured response formats
// apply unchanged whether a topic's tools run locally or remotely.
type LocalCaller struct {
	pool *Client
	log  *zap.Logger
}

var _ mcp.Caller = (*LocalCaller)(nil)

// NewLocalCaller wraps a pool client as a tool backend.
func NewLocalCaller(pool *Client, log *zap.Logger) *LocalCaller {
	return &LocalCaller{pool: pool, log: log}
}

// CallTool dispatches one tool invocation and returns its text payload.
func (c *LocalCaller) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case ToolCheckAvailable:
		return strconv.FormatBool(c.pool.CheckAvailable(ctx)), nil

	case ToolSearch:
		query := stringArg(args, "query")
		if query == "" {
			return "", fmt.Errorf("tool %s requires a query argument", name)
		}
		results, err := c.pool.Search(ctx, query, intArg(args, "max_papers", 10))
		if err != nil {
			return "", err
		}
		return marshalResult(map[string]any{
			"results": results,
			"count":   len(results),
		})

	case ToolSearchWithFulltext:
		query := stringArg(args, "query")
		if query == "" {
			return "", fmt.Errorf("tool %s requires a query argument", name)
		}
		papers, err := c.pool.SearchWithContent(ctx, SearchRequest{
			Query:        query,
			Slug:         stringArg(args, "slug"),
			MaxPapers:    intArg(args, "max_papers", 10),
			RecencyYears: intArg(args, "recency_years", 0),
			RunID:        stringArg(args, "run_id"),
		})
		if err != nil {
			return "", err
		}
		return marshalResult(papers)

	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}

// ListTools describes the served tools.
func (c *LocalCaller) ListTools(ctx context.Context) ([]mcp.ToolSchema, error) {
	return []mcp.ToolSchema{
		{
			Name:        ToolSearchWithFulltext,
			Description: "Search PubMed and return papers with pooled PMC fulltexts attached.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"},"slug":{"type":"string"},"max_papers":{"type":"integer"},"recency_years":{"type":"integer"},"run_id":{"type":"string"}},"required":["query","slug"]}`),
		},
		{
			Name:        ToolSearch,
			Description: "Search PubMed and return paper metadata.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"},"max_papers":{"type":"integer"}},"required":["query"]}`),
		},
		{
			Name:        ToolCheckAvailable,
			Description: "Report whether PubMed E-utilities are reachable.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
		},
	}, nil
}

// CheckAvailable reports whether the backing search source is reachable.
func (c *LocalCaller) CheckAvailable(ctx context.Context) bool {
	return c.pool.CheckAvailable(ctx)
}

func marshalResult(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshaling tool result: %w", err)
	}
	return string(data), nil
}

func stringArg(args map[string]any, key string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	return ""
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
