// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package literature

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pdiddy/hypothesis-engine/internal/registry"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// collect runs the workflow's searches and returns the merged papers.
// In multi-source mode the second return maps paper IDs to the source
// that produced them, so later phases can apply per-source overrides.
func (o *Orchestrator) collect(ctx context.Context, req Request, queries []string, slug string) ([]types.Paper, map[string]registry.SearchSourceConfig) {
	w, ok := o.runner.Registry().Workflow(workflowName)
	if !ok {
		o.log.Warn("no literature_review workflow configured")
		return nil, nil
	}
	if w.IsMultiSource() {
		return o.collectMultiSource(ctx, req, w, queries, slug)
	}
	return o.collectSingleSource(ctx, req, w, queries, slug), nil
}

// collectMultiSource searches every enabled source. Sources run
// concurrently (unless the workflow asks for sequential), queries run in
// order within a source so each source's rate limits see a steady
// stream. Results merge in source declaration order; title duplicates
// across sources keep the first source's copy.
func (o *Orchestrator) collectMultiSource(ctx context.Context, req Request, w *registry.WorkflowConfig, queries []string, slug string) ([]types.Paper, map[string]registry.SearchSourceConfig) {
	sources := w.EnabledSearchSources()
	if len(sources) == 0 {
		o.log.Warn("multi-source workflow has no enabled sources")
		return nil, nil
	}

	perSource := make([][]types.Paper, len(sources))
	search := func(i int, src registry.SearchSourceConfig) {
		seen := make(map[string]bool)
		var collected []types.Paper
		for _, query := range queries {
			papers, err := o.runner.Papers(ctx, src.Tool, map[string]any{
				"query":         query,
				"slug":          slug,
				"max_papers":    src.PapersPerQuery,
				"recency_years": o.cfg.RecencyYears,
				"run_id":        req.RunID,
			})
			if err != nil {
				o.log.Warn("source search failed",
					zap.String("tool", src.Tool),
					zap.String("query", query),
					zap.Error(err))
				continue
			}
			for _, p := range papers {
				if seen[p.ID] {
					continue
				}
				seen[p.ID] = true
				collected = append(collected, p)
			}
		}
		perSource[i] = collected
	}

	if w.MultiSourceStrategy == "sequential" {
		for i, src := range sources {
			search(i, src)
		}
	} else {
		var wg sync.WaitGroup
		for i, src := range sources {
			wg.Add(1)
			go func(i int, src registry.SearchSourceConfig) {
				defer wg.Done()
				search(i, src)
			}(i, src)
		}
		wg.Wait()
	}

	var merged []types.Paper
	bySource := make(map[string]registry.SearchSourceConfig)
	titles := make(map[string]bool)
	for i, papers := range perSource {
		for _, p := range papers {
			if w.Dedup() {
				key := strings.ToLower(strings.TrimSpace(p.Title))
				if titles[key] {
					continue
				}
				titles[key] = true
			}
			merged = append(merged, p)
			bySource[p.ID] = sources[i]
		}
	}
	o.log.Info("collected papers",
		zap.Int("papers", len(merged)),
		zap.Int("sources", len(sources)))
	return merged, bySource
}

// collectSingleSource fans the queries out against the primary search
// tool, falling back to the configured alternate when the primary is
// missing or disabled. The paper budget is split across queries; merge
// order follows query order with ID duplicates dropped.
func (o *Orchestrator) collectSingleSource(ctx context.Context, req Request, w *registry.WorkflowConfig, queries []string, slug string) []types.Paper {
	toolID := o.searchTool(w)
	if toolID == "" {
		o.log.Warn("no search tool configured for literature review")
		return nil
	}

	total := o.cfg.MaxPapers
	if total <= 0 {
		total = 10
	}
	quotas := queryQuotas(total, len(queries))

	perQuery := make([][]types.Paper, len(queries))
	var wg sync.WaitGroup
	for i, query := range queries {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			papers, err := o.runner.Papers(ctx, toolID, map[string]any{
				"query":         query,
				"slug":          slug,
				"max_papers":    quotas[i],
				"recency_years": o.cfg.RecencyYears,
				"run_id":        req.RunID,
			})
			if err != nil {
				o.log.Warn("search failed",
					zap.String("tool", toolID),
					zap.String("query", query),
					zap.Error(err))
				return
			}
			perQuery[i] = papers
		}(i, query)
	}
	wg.Wait()

	var merged []types.Paper
	seen := make(map[string]bool)
	for _, papers := range perQuery {
		for _, p := range papers {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			merged = append(merged, p)
		}
	}
	o.log.Info("collected papers", zap.Int("papers", len(merged)), zap.String("tool", toolID))
	return merged
}

// searchTool picks the workflow's search tool, preferring the primary.
func (o *Orchestrator) searchTool(w *registry.WorkflowConfig) string {
	for _, id := range []string{w.PrimarySearch, w.FallbackSearch} {
		if id == "" {
			continue
		}
		if t, ok := o.runner.Registry().Tool(id); ok && t.IsEnabled() {
			return id
		}
	}
	return ""
}

// queryQuotas splits a paper budget across n queries: an even share with
// the remainder going to the earliest queries, and never below two so a
// lopsided split cannot starve a query entirely.
func queryQuotas(total, n int) []int {
	quotas := make([]int, n)
	base := total / n
	rem := total % n
	for i := range quotas {
		q := base
		if i < rem {
			q++
		}
		if q < 2 {
			q = 2
		}
		quotas[i] = q
	}
	return quotas
}

// discoverPDFs resolves landing-page URLs to direct PDF links for papers
// that have none. Discovery is best effort; failures leave the paper
// untouched.
func (o *Orchestrator) discoverPDFs(ctx context.Context, papers []types.Paper, bySource map[string]registry.SearchSourceConfig) {
	w, ok := o.runner.Registry().Workflow(workflowName)
	if !ok {
		return
	}
	var wg sync.WaitGroup
	for i := range papers {
		if papers[i].PDFURL != "" || len(papers[i].PDFLinks) > 0 {
			continue
		}
		toolID, urlField := discoveryFor(w, bySource[papers[i].ID])
		if toolID == "" {
			continue
		}
		value, _ := papers[i].Field(urlField)
		landing := stringValue(value)
		if landing == "" {
			continue
		}
		wg.Add(1)
		go func(i int, toolID, landing string) {
			defer wg.Done()
			raw, err := o.runner.Call(ctx, toolID, map[string]any{"url": landing})
			if err != nil {
				o.log.Debug("pdf discovery failed",
					zap.String("paper", papers[i].ID), zap.Error(err))
				return
			}
			links := pdfLinks(raw)
			if len(links) == 0 {
				return
			}
			papers[i].PDFLinks = links
			papers[i].PDFURL = links[0]
		}(i, toolID, landing)
	}
	wg.Wait()
}

func discoveryFor(w *registry.WorkflowConfig, src registry.SearchSourceConfig) (toolID, urlField string) {
	toolID = src.PDFDiscoveryTool
	if toolID == "" {
		toolID = w.PDFDiscoveryTool
	}
	urlField = src.PDFDiscoveryURLField
	if urlField == "" {
		urlField = w.PDFDiscoveryURLField
	}
	if urlField == "" {
		urlField = "url"
	}
	return toolID, urlField
}

// pdfLinks parses a discovery response: a JSON list of links, an object
// carrying pdf_links or links, or a bare URL.
func pdfLinks(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return []string{raw}
	}
	switch v := decoded.(type) {
	case string:
		if v != "" {
			return []string{v}
		}
	case []any:
		return stringSlice(v)
	case map[string]any:
		for _, key := range []string{"pdf_links", "links"} {
			switch inner := v[key].(type) {
			case []any:
				return stringSlice(inner)
			case string:
				if inner != "" {
					return []string{inner}
				}
			}
		}
	}
	return nil
}

// fetchContent pulls fulltext for papers that expose a content URL but
// returned none from search. Fetching is best effort; failures leave the
// paper without fulltext and eligibility is re-judged afterwards.
func (o *Orchestrator) fetchContent(ctx context.Context, goal string, papers []types.Paper, bySource map[string]registry.SearchSourceConfig) {
	w, ok := o.runner.Registry().Workflow(workflowName)
	if !ok {
		return
	}
	var wg sync.WaitGroup
	for i := range papers {
		if papers[i].Fulltext != "" {
			continue
		}
		toolID, urlField, params := contentFor(w, bySource[papers[i].ID])
		if toolID == "" {
			continue
		}
		value, _ := papers[i].Field(urlField)
		contentURL := stringValue(value)
		if contentURL == "" {
			continue
		}
		callParams := registry.ResolveContentParams(params, map[string]any{
			"research_goal": goal,
			"url":           contentURL,
			"title":         papers[i].Title,
			"paper_id":      papers[i].ID,
		})
		if _, present := callParams["url"]; !present {
			callParams["url"] = contentURL
		}
		wg.Add(1)
		go func(i int, toolID string, callParams map[string]any) {
			defer wg.Done()
			raw, err := o.runner.Call(ctx, toolID, callParams)
			if err != nil {
				o.log.Debug("content fetch failed",
					zap.String("paper", papers[i].ID), zap.Error(err))
				return
			}
			if content := contentText(raw); content != "" {
				papers[i].Fulltext = content
			}
		}(i, toolID, callParams)
	}
	wg.Wait()
}

func contentFor(w *registry.WorkflowConfig, src registry.SearchSourceConfig) (toolID, urlField string, params map[string]any) {
	toolID = src.ContentTool
	if toolID == "" {
		toolID = w.ContentTool
	}
	urlField = src.ContentURLField
	if urlField == "" {
		urlField = w.ContentURLField
	}
	if urlField == "" {
		urlField = "pdf_url"
	}
	params = src.ContentParams
	if params == nil {
		params = w.ContentParams
	}
	return toolID, urlField, params
}

// contentText parses a content-tool response: an object carrying content
// or text, a JSON string, or raw text.
func contentText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return trimmed
	}
	switch v := decoded.(type) {
	case string:
		return v
	case map[string]any:
		for _, key := range []string{"content", "text"} {
			if s, ok := v[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func stringSlice(list []any) []string {
	var out []string
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []string:
		if len(s) > 0 {
			return s[0]
		}
	case []any:
		if len(s) > 0 {
			if str, ok := s[0].(string); ok {
				return str
			}
		}
	}
	return ""
}
