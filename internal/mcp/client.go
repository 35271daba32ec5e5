// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mcp implements a JSON-RPC client for Model Context Protocol
// servers reached over HTTP. The literature and generation stages call
// remote search tools through it.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/hypothesis-engine/internal/httputil"
)

const protocolVersion = "2024-11-05"

// Caller invokes tools on one MCP server. Consumers depend on this
// interface so tests can substitute a fake server.
type Caller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
	ListTools(ctx context.Context) ([]ToolSchema, error)
	CheckAvailable(ctx context.Context) bool
}

// ToolSchema describes a tool advertised by the server.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Client talks JSON-RPC 2.0 to a single MCP server endpoint.
type Client struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	log        *zap.Logger
	nextID     atomic.Int64
}

var _ Caller = (*Client)(nil)

// New returns a client for the server at baseURL. Transient HTTP failures
// are retried up to maxRetries times per call.
func New(baseURL string, timeout time.Duration, maxRetries int, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		log:        log,
	}
}

// rpcRequest is a JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC 2.0 response envelope.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// callResult is the result payload of a tools/call response.
type callResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// CallTool invokes a named tool and returns the text of its first text
// content block.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	result, err := c.call(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return "", fmt.Errorf("calling tool %s: %w", name, err)
	}

	var parsed callResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return "", fmt.Errorf("parsing result of tool %s: %w", name, err)
	}

	text := ""
	found := false
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text = block.Text
			found = true
			break
		}
	}
	if !found {
		return "", fmt.Errorf("tool %s returned no text content", name)
	}
	if parsed.IsError {
		return "", fmt.Errorf("tool %s reported an error: %s", name, text)
	}
	return text, nil
}

// ListTools retrieves the tools advertised by the server.
func (c *Client) ListTools(ctx context.Context) ([]ToolSchema, error) {
	result, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}

	var parsed struct {
		Tools []ToolSchema `json:"tools"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return nil, fmt.Errorf("parsing tool list: %w", err)
	}
	return parsed.Tools, nil
}

// CheckAvailable reports whether the server responds to initialize and
// advertises at least one tool.
func (c *Client) CheckAvailable(ctx context.Context) bool {
	if err := c.initialize(ctx); err != nil {
		c.log.Debug("MCP server unavailable", zap.String("url", c.baseURL), zap.Error(err))
		return false
	}
	tools, err := c.ListTools(ctx)
	if err != nil {
		c.log.Debug("MCP tool listing failed", zap.String("url", c.baseURL), zap.Error(err))
		return false
	}
	if len(tools) == 0 {
		c.log.Debug("MCP server advertises no tools", zap.String("url", c.baseURL))
		return false
	}
	return true
}

// initialize performs the MCP handshake.
func (c *Client) initialize(ctx context.Context) error {
	_, err := c.call(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]string{
			"name":    "hypothesis-engine",
			"version": "1.0.0",
		},
	})
	return err
}

// call performs one JSON-RPC exchange and returns the result payload.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := httputil.DoWithRetry(ctx, c.client, httpReq, c.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", method, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		msg, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("HTTP %d from %s: %s", httpResp.StatusCode, c.baseURL, string(msg))
	}

	var resp rpcResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", method, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("server error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}
