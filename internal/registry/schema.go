// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry loads and serves literature-tool configuration: which
// servers exist, which tools they expose, how each tool's parameters and
// response shape map onto the canonical paper model, and which tools each
// workflow phase may use.
package registry

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/hypothesis-engine/internal/normalize"
)

// Flag is a bool that also accepts the string forms environment
// substitution produces ("true", "1", "yes", "on"). Unset flags report
// their caller-supplied default.
type Flag struct {
	val bool
	set bool
}

// Or returns the flag value, or def when the flag was never set.
func (f Flag) Or(def bool) bool {
	if f.set {
		return f.val
	}
	return def
}

// Set forces the flag to v.
func (f *Flag) Set(v bool) {
	f.val = v
	f.set = true
}

// UnmarshalYAML accepts booleans and bool-ish strings.
func (f *Flag) UnmarshalYAML(node *yaml.Node) error {
	var b bool
	if err := node.Decode(&b); err == nil {
		f.Set(b)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("flag must be a boolean or string, got %q", node.Tag)
	}
	f.Set(parseBoolString(s))
	return nil
}

func parseBoolString(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// ServerConfig describes one remote tool server.
type ServerConfig struct {
	// URL is the server endpoint.
	URL string `yaml:"url"`
	// Transport names the wire transport. Defaults to streamable_http.
	Transport string `yaml:"transport"`
	// TimeoutSeconds bounds a single tool call. Zero means the client
	// default.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// Enabled defaults to true.
	Enabled Flag `yaml:"enabled"`
}

// IsEnabled reports whether the server is enabled.
func (s ServerConfig) IsEnabled() bool { return s.Enabled.Or(true) }

// ResponseFormat declares how a tool's raw response maps onto papers.
type ResponseFormat struct {
	// Type is "json" or "boolean_string".
	Type string `yaml:"type"`
	// ResultsPath is a dotted path to the record collection. "." means
	// the response root.
	ResultsPath string `yaml:"results_path"`
	// IsDict marks id-keyed responses; otherwise records are a list.
	IsDict bool `yaml:"is_dict"`
	// FieldMapping maps canonical paper fields to extraction
	// expressions.
	FieldMapping map[string]string `yaml:"field_mapping"`
}

// ParameterConfig describes one tool parameter. A bare scalar in YAML is
// shorthand for a default value.
type ParameterConfig struct {
	// Type is the declared parameter type. Defaults to string.
	Type string `yaml:"type"`
	// Default is sent when the caller provides no value.
	Default any `yaml:"default"`
	// Required marks parameters the caller must supply.
	Required bool `yaml:"required"`
	// Description is shown in tool prompts.
	Description string `yaml:"description"`
}

// UnmarshalYAML accepts either a mapping or a scalar default.
func (p *ParameterConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		type plain ParameterConfig
		var raw plain
		if err := node.Decode(&raw); err != nil {
			return err
		}
		*p = ParameterConfig(raw)
	} else {
		var v any
		if err := node.Decode(&v); err != nil {
			return err
		}
		p.Default = v
	}
	if p.Type == "" {
		p.Type = "string"
	}
	return nil
}

// ToolConfig describes one tool exposed by a server.
type ToolConfig struct {
	// ID is the registry-internal identifier (the YAML key).
	ID string `yaml:"-"`
	// Category is the tool's category (the YAML section it lives under).
	Category string `yaml:"-"`
	// Server names the server that hosts the tool. Defaults to
	// "default".
	Server string `yaml:"server"`
	// RemoteName is the name the tool is invoked under on its server.
	// Defaults to the tool ID.
	RemoteName string `yaml:"mcp_tool_name"`
	// DisplayName is a human-readable name. Defaults to the tool ID.
	DisplayName string `yaml:"display_name"`
	// Description is shown when listing tools and in agent prompts.
	Description string `yaml:"description"`
	// SourceType tags the literature source ("academic", "preprint",
	// ...). It also fills the source field of papers whose mapping left
	// it empty.
	SourceType string `yaml:"source_type"`
	// Enabled defaults to true.
	Enabled Flag `yaml:"enabled"`
	// Response declares the response shape.
	Response ResponseFormat `yaml:"response_format"`
	// PromptSnippet is extra usage guidance injected into agent prompts.
	PromptSnippet string `yaml:"prompt_snippet"`
	// Parameters declares the tool's parameters.
	Parameters map[string]ParameterConfig `yaml:"parameters"`
	// ParameterMapping renames canonical parameters to tool-specific
	// ones. A null target drops the parameter.
	ParameterMapping map[string]*string `yaml:"parameter_mapping"`
	// AppliesTo scopes the tool to a pipeline area. Defaults to "all".
	AppliesTo string `yaml:"applies_to"`

	// Format is the compiled response format, built at load time.
	Format normalize.Format `yaml:"-"`
}

// IsEnabled reports whether the tool is enabled.
func (t *ToolConfig) IsEnabled() bool { return t.Enabled.Or(true) }

// MapParameters renames canonical parameters to the tool's own names.
// With no mapping configured the parameters pass through unchanged.
// recency_years mapped to starting_year is converted from a year span to
// an absolute year; non-positive spans drop the parameter.
func (t *ToolConfig) MapParameters(params map[string]any) map[string]any {
	if len(t.ParameterMapping) == 0 {
		return params
	}
	mapped := make(map[string]any, len(params))
	for name, value := range params {
		target, present := t.ParameterMapping[name]
		if !present {
			mapped[name] = value
			continue
		}
		if target == nil {
			continue
		}
		if name == "recency_years" && *target == "starting_year" {
			if years := intValue(value); years > 0 {
				mapped[*target] = time.Now().Year() - years
			}
			continue
		}
		mapped[*target] = value
	}
	return mapped
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// SearchSourceConfig configures one source in a multi-source literature
// search. A bare string in YAML is shorthand for the tool ID.
type SearchSourceConfig struct {
	// Tool is the search tool's registry ID.
	Tool string `yaml:"tool"`
	// PapersPerQuery caps results per query for this source. Defaults
	// to 3.
	PapersPerQuery int `yaml:"papers_per_query"`
	// Enabled defaults to true.
	Enabled Flag `yaml:"enabled"`
	// ContentTool overrides the workflow's content-fetch tool for this
	// source.
	ContentTool string `yaml:"content_tool"`
	// ContentURLField names the paper field holding the content URL.
	ContentURLField string `yaml:"content_url_field"`
	// ContentParams are extra content-tool parameters, may contain
	// {placeholder} values resolved at call time.
	ContentParams map[string]any `yaml:"content_params"`
	// PDFDiscoveryTool resolves landing-page URLs to direct PDF links.
	PDFDiscoveryTool string `yaml:"pdf_discovery_tool"`
	// PDFDiscoveryURLField names the paper field holding the landing
	// URL.
	PDFDiscoveryURLField string `yaml:"pdf_discovery_url_field"`
}

// IsEnabled reports whether the source is enabled.
func (s SearchSourceConfig) IsEnabled() bool { return s.Enabled.Or(true) }

// UnmarshalYAML accepts either a mapping or a bare tool ID.
func (s *SearchSourceConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var tool string
		if err := node.Decode(&tool); err != nil {
			return err
		}
		*s = SearchSourceConfig{Tool: tool}
	} else {
		type plain SearchSourceConfig
		var raw plain
		if err := node.Decode(&raw); err != nil {
			return err
		}
		*s = SearchSourceConfig(raw)
	}
	if s.PapersPerQuery == 0 {
		s.PapersPerQuery = 3
	}
	return nil
}

// WorkflowConfig assigns tools to one workflow phase.
type WorkflowConfig struct {
	// PrimarySearch is the single-source search tool.
	PrimarySearch string `yaml:"primary_search"`
	// FallbackSearch replaces PrimarySearch when it is unavailable.
	FallbackSearch string `yaml:"fallback_search"`
	// AvailabilityCheck names a probe tool returning a boolean.
	AvailabilityCheck string `yaml:"availability_check"`

	// SearchSources switches the phase to multi-source mode when
	// non-empty.
	SearchSources []SearchSourceConfig `yaml:"search_sources"`
	// MultiSourceStrategy is "parallel" or "sequential". Defaults to
	// parallel.
	MultiSourceStrategy string `yaml:"multi_source_strategy"`
	// DeduplicateAcrossSources drops cross-source title duplicates.
	// Defaults to true.
	DeduplicateAcrossSources Flag `yaml:"deduplicate_across_sources"`

	// SearchTools, ReadTools and UtilityTools are the generic tool
	// lists exposed to agent phases.
	SearchTools  []string `yaml:"search_tools"`
	ReadTools    []string `yaml:"read_tools"`
	UtilityTools []string `yaml:"utility_tools"`

	// QueryGenerationTool generates search queries remotely.
	QueryGenerationTool string `yaml:"query_generation_tool"`
	// QueryFormat is "boolean" (PubMed-style) or "natural_language".
	// Defaults to boolean.
	QueryFormat string `yaml:"query_format"`

	// ContentTool fetches fulltext for sources that return none.
	ContentTool string `yaml:"content_tool"`
	// ContentURLField defaults to pdf_url.
	ContentURLField string `yaml:"content_url_field"`
	// ContentParams are extra content-tool parameters.
	ContentParams map[string]any `yaml:"content_params"`

	// PDFDiscoveryTool resolves landing pages to PDF links.
	PDFDiscoveryTool string `yaml:"pdf_discovery_tool"`
	// PDFDiscoveryURLField defaults to url.
	PDFDiscoveryURLField string `yaml:"pdf_discovery_url_field"`
}

// EnabledSearchSources returns the enabled sources in declaration order.
func (w *WorkflowConfig) EnabledSearchSources() []SearchSourceConfig {
	var out []SearchSourceConfig
	for _, s := range w.SearchSources {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}

// IsMultiSource reports whether the phase declares any search sources.
func (w *WorkflowConfig) IsMultiSource() bool { return len(w.SearchSources) > 0 }

// Dedup reports whether cross-source title deduplication is on.
func (w *WorkflowConfig) Dedup() bool { return w.DeduplicateAcrossSources.Or(true) }

// AllTools returns every tool ID the workflow references, in a stable
// order. PDF-discovery tools are deliberately not included; they are
// invoked internally, never handed to an agent.
func (w *WorkflowConfig) AllTools() []string {
	var tools []string
	for _, id := range []string{w.PrimarySearch, w.FallbackSearch, w.AvailabilityCheck, w.QueryGenerationTool, w.ContentTool} {
		if id != "" {
			tools = append(tools, id)
		}
	}
	for _, s := range w.SearchSources {
		tools = append(tools, s.Tool)
		if s.ContentTool != "" {
			tools = append(tools, s.ContentTool)
		}
	}
	tools = append(tools, w.SearchTools...)
	tools = append(tools, w.ReadTools...)
	tools = append(tools, w.UtilityTools...)
	return tools
}

// Settings holds registry-global behavior switches.
type Settings struct {
	// AutoDiscover allows listing tools the config does not declare.
	// Defaults to true.
	AutoDiscover Flag `yaml:"auto_discover"`
	// MergeStrategy is override, extend or replace. Defaults to
	// override.
	MergeStrategy string `yaml:"merge_strategy"`
	// AllowDisableBuiltins permits overlays to disable built-in tools.
	// Defaults to true.
	AllowDisableBuiltins Flag `yaml:"allow_disable_builtins"`
}

// Config is the root registry document.
type Config struct {
	// Version of the document schema.
	Version string `yaml:"version"`
	// Servers by server ID.
	Servers map[string]ServerConfig `yaml:"servers"`
	// Tools by category, then tool ID.
	Tools map[string]map[string]*ToolConfig `yaml:"tools"`
	// Workflows by phase name.
	Workflows map[string]*WorkflowConfig `yaml:"workflows"`
	// Settings are registry-global switches.
	Settings Settings `yaml:"settings"`
}

// Tool finds a tool by ID across all categories.
func (c *Config) Tool(id string) (*ToolConfig, bool) {
	for _, category := range c.Tools {
		if t, ok := category[id]; ok {
			return t, true
		}
	}
	return nil, false
}

// AllTools returns every tool keyed by ID.
func (c *Config) AllTools() map[string]*ToolConfig {
	out := make(map[string]*ToolConfig)
	for _, category := range c.Tools {
		for id, t := range category {
			out[id] = t
		}
	}
	return out
}

// EnabledTools returns every enabled tool keyed by ID.
func (c *Config) EnabledTools() map[string]*ToolConfig {
	out := make(map[string]*ToolConfig)
	for id, t := range c.AllTools() {
		if t.IsEnabled() {
			out[id] = t
		}
	}
	return out
}

// ToolsByCategory returns the tools in one category.
func (c *Config) ToolsByCategory(category string) map[string]*ToolConfig {
	return c.Tools[category]
}

// ToolsForServer returns every tool hosted by a server.
func (c *Config) ToolsForServer(serverID string) map[string]*ToolConfig {
	out := make(map[string]*ToolConfig)
	for id, t := range c.AllTools() {
		if t.Server == serverID {
			out[id] = t
		}
	}
	return out
}

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// ResolveContentParams substitutes {placeholder} values in content-tool
// parameters from a runtime context. A value that is exactly one
// placeholder takes the context value with its type preserved; embedded
// placeholders are string-substituted. List values resolve element-wise.
// Placeholders missing from the context are left as-is.
func ResolveContentParams(params, context map[string]any) map[string]any {
	if len(params) == 0 {
		return map[string]any{}
	}
	resolved := make(map[string]any, len(params))
	for key, value := range params {
		switch v := value.(type) {
		case string:
			resolved[key] = resolveString(v, context)
		case []any:
			list := make([]any, len(v))
			for i, item := range v {
				if s, ok := item.(string); ok {
					list[i] = resolveString(s, context)
				} else {
					list[i] = item
				}
			}
			resolved[key] = list
		default:
			resolved[key] = value
		}
	}
	return resolved
}

func resolveString(s string, context map[string]any) any {
	matches := placeholderRe.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return s
	}
	out := s
	for _, m := range matches {
		name := m[1]
		val, ok := context[name]
		if !ok {
			continue
		}
		if s == "{"+name+"}" {
			return val
		}
		out = strings.ReplaceAll(out, "{"+name+"}", stringify(val))
	}
	return out
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
