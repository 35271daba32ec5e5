// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tools executes registry-configured literature tools. A Runner
// binds the tool registry to per-server transport callers, applies
// parameter defaults and mappings, and normalizes responses into papers.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/pdiddy/hypothesis-engine/internal/llm"
	"github.com/pdiddy/hypothesis-engine/internal/mcp"
	"github.com/pdiddy/hypothesis-engine/internal/normalize"
	"github.com/pdiddy/hypothesis-engine/internal/registry"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// Runner executes registry tools against their servers.
type Runner struct {
	reg     *registry.Registry
	callers map[string]mcp.Caller
	norm    *normalize.Normalizer
	log     *zap.Logger
}

// New builds a Runner. callers maps server IDs to transport clients; a
// tool whose server has no caller fails at call time, not construction.
func New(reg *registry.Registry, callers map[string]mcp.Caller, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		reg:     reg,
		callers: callers,
		norm:    normalize.New(log),
		log:     log,
	}
}

// Registry exposes the underlying tool registry.
func (r *Runner) Registry() *registry.Registry { return r.reg }

// Call invokes a tool with canonical parameters. Declared defaults fill
// missing parameters, required parameters are enforced, the tool's
// parameter mapping renames or drops canonical names, and nil values are
// never sent.
func (r *Runner) Call(ctx context.Context, toolID string, params map[string]any) (string, error) {
	tool, ok := r.reg.Tool(toolID)
	if !ok {
		return "", fmt.Errorf("tool %q is not configured", toolID)
	}
	if !tool.IsEnabled() {
		return "", fmt.Errorf("tool %q is disabled", toolID)
	}
	caller, ok := r.callers[tool.Server]
	if !ok {
		return "", fmt.Errorf("tool %q: no transport for server %q", toolID, tool.Server)
	}

	merged := make(map[string]any, len(params))
	for k, v := range params {
		if v != nil {
			merged[k] = v
		}
	}
	for name, p := range tool.Parameters {
		if _, ok := merged[name]; !ok && p.Default != nil {
			merged[name] = p.Default
		}
	}
	for name, p := range tool.Parameters {
		if p.Required {
			if _, ok := merged[name]; !ok {
				return "", fmt.Errorf("tool %q: required parameter %q missing", toolID, name)
			}
		}
	}

	mapped := tool.MapParameters(merged)
	r.log.Debug("calling tool",
		zap.String("tool", toolID),
		zap.String("remote_name", tool.RemoteName),
		zap.String("server", tool.Server))
	out, err := caller.CallTool(ctx, tool.RemoteName, mapped)
	if err != nil {
		return "", fmt.Errorf("tool %q: %w", toolID, err)
	}
	return out, nil
}

// Papers invokes a search-shaped tool and normalizes its response into
// canonical papers using the tool's compiled format.
func (r *Runner) Papers(ctx context.Context, toolID string, params map[string]any) ([]types.Paper, error) {
	tool, ok := r.reg.Tool(toolID)
	if !ok {
		return nil, fmt.Errorf("tool %q is not configured", toolID)
	}
	raw, err := r.Call(ctx, toolID, params)
	if err != nil {
		return nil, err
	}
	return r.norm.Papers(raw, tool.Format)
}

// Bool invokes a boolean-string tool.
func (r *Runner) Bool(ctx context.Context, toolID string, params map[string]any) (bool, error) {
	raw, err := r.Call(ctx, toolID, params)
	if err != nil {
		return false, err
	}
	return r.norm.Bool(raw), nil
}

// SourceAvailable probes a workflow's availability-check tool. A workflow
// without a probe configured counts as available; a probe that errors
// counts as unavailable.
func (r *Runner) SourceAvailable(ctx context.Context, workflow string) bool {
	w, ok := r.reg.Workflow(workflow)
	if !ok || w.AvailabilityCheck == "" {
		return true
	}
	tool, ok := r.reg.Tool(w.AvailabilityCheck)
	if !ok || !tool.IsEnabled() {
		return true
	}
	avail, err := r.Bool(ctx, w.AvailabilityCheck, nil)
	if err != nil {
		r.log.Warn("availability probe failed",
			zap.String("workflow", workflow),
			zap.String("tool", w.AvailabilityCheck),
			zap.Error(err))
		return false
	}
	return avail
}

// AgentTools builds language-model tool definitions for the given tool
// IDs, skipping disabled or unknown tools.
func (r *Runner) AgentTools(ids []string) []llm.Tool {
	var defs []llm.Tool
	for _, id := range ids {
		tool, ok := r.reg.Tool(id)
		if !ok || !tool.IsEnabled() {
			continue
		}
		defs = append(defs, llm.Tool{
			Name:        tool.RemoteName,
			Description: tool.Description,
			InputSchema: parameterSchema(tool),
		})
	}
	return defs
}

// AgentExec returns a tool executor for agent conversations. Agent calls
// arrive under server-side names; fixed parameters overlay whatever the
// agent supplied, pinning run-scoped values like slug and run_id.
func (r *Runner) AgentExec(fixed map[string]any) llm.ToolFunc {
	return func(ctx context.Context, name string, args map[string]any) (string, error) {
		tool, ok := r.reg.ToolByRemoteName(name)
		if !ok {
			return "", fmt.Errorf("tool %q is not configured", name)
		}
		params := make(map[string]any, len(args)+len(fixed))
		for k, v := range args {
			params[k] = v
		}
		for k, v := range fixed {
			params[k] = v
		}
		return r.Call(ctx, tool.ID, params)
	}
}

// Instructions renders usage guidance for agent prompts: one line per
// tool, with its prompt snippet indented below.
func (r *Runner) Instructions(ids []string) string {
	var b strings.Builder
	for _, id := range ids {
		tool, ok := r.reg.Tool(id)
		if !ok || !tool.IsEnabled() {
			continue
		}
		fmt.Fprintf(&b, "- `%s`: %s\n", tool.RemoteName, strings.TrimSpace(tool.Description))
		if tool.PromptSnippet != "" {
			for _, line := range strings.Split(strings.TrimRight(tool.PromptSnippet, "\n"), "\n") {
				fmt.Fprintf(&b, "  %s\n", line)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// parameterSchema converts declared tool parameters to a JSON schema.
func parameterSchema(tool *registry.ToolConfig) jsonschema.Definition {
	props := make(map[string]jsonschema.Definition, len(tool.Parameters))
	var required []string
	for name, p := range tool.Parameters {
		props[name] = jsonschema.Definition{
			Type:        schemaType(p.Type),
			Description: p.Description,
		}
		if p.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	return jsonschema.Definition{
		Type:       jsonschema.Object,
		Properties: props,
		Required:   required,
	}
}

func schemaType(t string) jsonschema.DataType {
	switch t {
	case "int", "integer":
		return jsonschema.Integer
	case "float", "number":
		return jsonschema.Number
	case "bool", "boolean":
		return jsonschema.Boolean
	case "list", "array":
		return jsonschema.Array
	default:
		return jsonschema.String
	}
}
