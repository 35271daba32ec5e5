// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/hypothesis-engine/internal/normalize"
)

//go:embed tools.yaml
var defaultConfigYAML []byte

// userConfigDirs are searched for a tools.yaml overlay, in order.
var userConfigDirs = []string{
	".hypothesis-engine",
	filepath.Join(".config", "hypothesis-engine"),
}

// Options controls registry loading.
type Options struct {
	// Path points at a custom config overlay. Highest precedence.
	Path string
	// DisabledTools are tool IDs forced to disabled after loading.
	DisabledTools []string
	// SkipUserConfig ignores overlays under the home directory.
	SkipUserConfig bool
	// Log receives load diagnostics. Nil disables logging.
	Log *zap.Logger
}

// Registry serves the merged, compiled tool configuration.
type Registry struct {
	cfg *Config
	log *zap.Logger
}

// Load builds a registry from the built-in defaults, an optional user
// overlay and an optional custom overlay, in increasing precedence.
// Field-mapping expressions compile here, so a bad mapping fails the
// load.
func Load(opts Options) (*Registry, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	defaultData := map[string]any{}
	if err := yaml.Unmarshal(defaultConfigYAML, &defaultData); err != nil {
		return nil, fmt.Errorf("parsing built-in tool config: %w", err)
	}

	var userData map[string]any
	if !opts.SkipUserConfig {
		if home, err := os.UserHomeDir(); err == nil {
			for _, dir := range userConfigDirs {
				path := filepath.Join(home, dir, "tools.yaml")
				if data, ok := loadYAMLMap(path, log); ok {
					log.Info("loaded user tool config", zap.String("path", path))
					userData = data
					break
				}
			}
		}
	}

	var customData map[string]any
	if opts.Path != "" {
		if data, ok := loadYAMLMap(opts.Path, log); ok {
			log.Info("loaded custom tool config", zap.String("path", opts.Path))
			customData = data
		} else {
			log.Warn("custom tool config not found", zap.String("path", opts.Path))
		}
	}

	strategy := "override"
	if s, ok := mergeStrategyOf(customData); ok {
		strategy = s
	} else if s, ok := mergeStrategyOf(userData); ok {
		strategy = s
	}

	merged := defaultData
	if userData != nil {
		merged = mergeMaps(merged, userData, strategy)
	}
	if customData != nil {
		merged = mergeMaps(merged, customData, strategy)
	}
	merged, _ = substituteEnv(merged, log).(map[string]any)

	text, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("re-encoding merged tool config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(text, cfg); err != nil {
		return nil, fmt.Errorf("parsing merged tool config: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}

	r := &Registry{cfg: cfg, log: log}
	for _, id := range opts.DisabledTools {
		if t, ok := cfg.Tool(id); ok {
			t.Enabled.Set(false)
			log.Debug("disabled tool", zap.String("tool", id))
		}
	}

	log.Info("tool registry initialized",
		zap.Int("servers", len(cfg.Servers)),
		zap.Int("enabled_tools", len(cfg.EnabledTools())))
	return r, nil
}

// finalize applies schema defaults and compiles response formats.
func (c *Config) finalize() error {
	if c.Version == "" {
		c.Version = "1.0"
	}
	for id, s := range c.Servers {
		if s.Transport == "" {
			s.Transport = "streamable_http"
			c.Servers[id] = s
		}
	}
	for category, tools := range c.Tools {
		for id, t := range tools {
			if t == nil {
				t = &ToolConfig{}
				tools[id] = t
			}
			t.ID = id
			t.Category = category
			if t.Server == "" {
				t.Server = "default"
			}
			if t.RemoteName == "" {
				t.RemoteName = id
			}
			if t.DisplayName == "" {
				t.DisplayName = id
			}
			if t.SourceType == "" {
				t.SourceType = "academic"
			}
			if t.AppliesTo == "" {
				t.AppliesTo = "all"
			}
			if t.Response.Type == "" {
				t.Response.Type = normalize.FormatJSON
			}
			if t.Response.ResultsPath == "" {
				t.Response.ResultsPath = "."
			}
			f, err := normalize.CompileFormat(
				t.Response.Type, t.Response.ResultsPath, t.Response.IsDict,
				t.Response.FieldMapping, t.SourceType)
			if err != nil {
				return fmt.Errorf("tool %q: %w", id, err)
			}
			t.Format = f
		}
	}
	for _, w := range c.Workflows {
		if w == nil {
			continue
		}
		if w.MultiSourceStrategy == "" {
			w.MultiSourceStrategy = "parallel"
		}
		if w.QueryFormat == "" {
			w.QueryFormat = "boolean"
		}
		if w.ContentURLField == "" {
			w.ContentURLField = "pdf_url"
		}
		if w.PDFDiscoveryURLField == "" {
			w.PDFDiscoveryURLField = "url"
		}
	}
	return nil
}

// Config returns the merged configuration.
func (r *Registry) Config() *Config { return r.cfg }

// Server returns a server config by ID.
func (r *Registry) Server(id string) (ServerConfig, bool) {
	s, ok := r.cfg.Servers[id]
	return s, ok
}

// EnabledServers returns the enabled servers keyed by ID.
func (r *Registry) EnabledServers() map[string]ServerConfig {
	out := make(map[string]ServerConfig)
	for id, s := range r.cfg.Servers {
		if s.IsEnabled() {
			out[id] = s
		}
	}
	return out
}

// Tool returns a tool config by ID.
func (r *Registry) Tool(id string) (*ToolConfig, bool) { return r.cfg.Tool(id) }

// EnabledTools returns the enabled tools keyed by ID.
func (r *Registry) EnabledTools() map[string]*ToolConfig { return r.cfg.EnabledTools() }

// Workflow returns a workflow phase config by name.
func (r *Registry) Workflow(name string) (*WorkflowConfig, bool) {
	w, ok := r.cfg.Workflows[name]
	if !ok || w == nil {
		return nil, false
	}
	return w, true
}

// WorkflowTools returns the enabled tool IDs a workflow references.
func (r *Registry) WorkflowTools(name string) []string {
	w, ok := r.Workflow(name)
	if !ok {
		r.log.Warn("workflow not found", zap.String("workflow", name))
		return nil
	}
	var ids []string
	for _, id := range w.AllTools() {
		if t, ok := r.Tool(id); ok && t.IsEnabled() {
			ids = append(ids, id)
		} else if id != "" {
			r.log.Debug("workflow tool disabled or missing",
				zap.String("workflow", name), zap.String("tool", id))
		}
	}
	return ids
}

// RemoteNames maps tool IDs to their server-side names, skipping
// disabled or unknown tools.
func (r *Registry) RemoteNames(ids []string) []string {
	var names []string
	for _, id := range ids {
		if t, ok := r.Tool(id); ok && t.IsEnabled() {
			names = append(names, t.RemoteName)
		}
	}
	return names
}

// ToolByRemoteName finds the tool invoked under a server-side name.
func (r *Registry) ToolByRemoteName(name string) (*ToolConfig, bool) {
	for _, t := range r.cfg.AllTools() {
		if t.RemoteName == name {
			return t, true
		}
	}
	return nil, false
}

func loadYAMLMap(path string, log *zap.Logger) (map[string]any, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Error("failed to read tool config", zap.String("path", path), zap.Error(err))
		}
		return nil, false
	}
	data := map[string]any{}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		log.Error("failed to parse tool config", zap.String("path", path), zap.Error(err))
		return nil, false
	}
	return data, true
}

// mergeStrategyOf reads settings.merge_strategy from a raw overlay. The
// bool reports whether the overlay declared a settings section at all;
// an overlay with settings but no strategy pins the default.
func mergeStrategyOf(data map[string]any) (string, bool) {
	if data == nil {
		return "", false
	}
	raw, ok := data["settings"]
	if !ok {
		return "", false
	}
	if m, ok := raw.(map[string]any); ok {
		if s, ok := m["merge_strategy"].(string); ok && s != "" {
			return s, true
		}
	}
	return "override", true
}

// mergeMaps merges overlay into base. override replaces matching keys,
// extend appends lists and keeps existing scalars, replace discards base
// entirely.
func mergeMaps(base, overlay map[string]any, strategy string) map[string]any {
	if strategy == "replace" {
		out := make(map[string]any, len(overlay))
		for k, v := range overlay {
			out[k] = v
		}
		return out
	}
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		existing, ok := out[k]
		if !ok {
			out[k] = v
			continue
		}
		vm, vIsMap := v.(map[string]any)
		em, eIsMap := existing.(map[string]any)
		if vIsMap && eIsMap {
			out[k] = mergeMaps(em, vm, strategy)
			continue
		}
		switch strategy {
		case "extend":
			vl, vIsList := v.([]any)
			el, eIsList := existing.([]any)
			if vIsList && eIsList {
				out[k] = append(append([]any{}, el...), vl...)
			}
			// extend keeps existing scalars
		default: // override
			out[k] = v
		}
	}
	return out
}

var envVarRe = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// substituteEnv replaces ${VAR} and ${VAR:-default} in every string of a
// decoded YAML tree. Unset variables without a default become empty
// strings.
func substituteEnv(v any, log *zap.Logger) any {
	switch val := v.(type) {
	case string:
		return envVarRe.ReplaceAllStringFunc(val, func(m string) string {
			sub := envVarRe.FindStringSubmatch(m)
			if env, ok := os.LookupEnv(sub[1]); ok {
				return env
			}
			if strings.Contains(m, ":-") {
				return sub[2]
			}
			log.Warn("environment variable not set and no default provided",
				zap.String("var", sub[1]))
			return ""
		})
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = substituteEnv(item, log)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = substituteEnv(item, log)
		}
		return out
	}
	return v
}
