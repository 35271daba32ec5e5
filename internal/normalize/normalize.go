// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize turns raw literature-tool responses into canonical
// papers. Every search backend returns a different shape; a declarative
// field mapping compiled into a Format describes how to pull canonical
// fields out of each one.
package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// Response format types.
const (
	FormatJSON = "json"
	FormatBool = "boolean_string"
)

// FieldExpr binds a canonical paper field name to its compiled expression.
type FieldExpr struct {
	Name string
	Expr *Expr
}

// Format is a compiled response format for one tool.
type Format struct {
	// Type is FormatJSON or FormatBool.
	Type string
	// ResultsPath locates the record collection inside the decoded
	// response. An empty path means the root.
	ResultsPath Path
	// IsDict marks responses shaped as id->record maps rather than lists.
	IsDict bool
	// Fields are the canonical field mappings, ordered by name.
	Fields []FieldExpr
	// DefaultSource fills the source field when the mapping leaves it
	// empty.
	DefaultSource string
}

// CompileFormat compiles a field mapping into a Format. A malformed
// expression fails the compile so configuration errors surface at load
// time.
func CompileFormat(typ, resultsPath string, isDict bool, mapping map[string]string, defaultSource string) (Format, error) {
	if typ == "" {
		typ = FormatJSON
	}
	if typ != FormatJSON && typ != FormatBool {
		return Format{}, fmt.Errorf("unknown response format type %q", typ)
	}
	f := Format{
		Type:          typ,
		ResultsPath:   ParsePath(resultsPath),
		IsDict:        isDict,
		DefaultSource: defaultSource,
	}
	names := make([]string, 0, len(mapping))
	for name := range mapping {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		expr, err := ParseExpr(mapping[name])
		if err != nil {
			return Format{}, fmt.Errorf("field %q: %w", name, err)
		}
		f.Fields = append(f.Fields, FieldExpr{Name: name, Expr: expr})
	}
	return f, nil
}

// Normalizer maps tool responses onto canonical papers.
type Normalizer struct {
	log *zap.Logger
}

// New returns a Normalizer. A nil logger disables logging.
func New(log *zap.Logger) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Normalizer{log: log}
}

// Bool interprets a boolean_string response.
func (n *Normalizer) Bool(raw string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), "true")
}

// decode parses a JSON response body. Unparseable bodies are returned as
// the raw string so downstream mappings can still treat the response as a
// single value.
func (n *Normalizer) decode(raw string) any {
	raw = strings.TrimSpace(raw)
	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		n.log.Warn("response is not valid JSON, treating as plain string",
			zap.Error(err))
		return raw
	}
	return data
}

// Papers normalizes a raw tool response into canonical papers, in a
// deterministic order. Records without a title are dropped. Every returned
// paper has a non-empty ID.
func (n *Normalizer) Papers(raw string, f Format) ([]types.Paper, error) {
	if f.Type == FormatBool {
		return nil, fmt.Errorf("format type %q yields a boolean, not papers", f.Type)
	}
	data := n.decode(raw)
	if data == nil {
		return nil, nil
	}
	results := f.ResultsPath.Navigate(data)
	if results == nil {
		n.log.Warn("response has no results", zap.String("path", pathString(f.ResultsPath)))
		return nil, nil
	}

	var papers []types.Paper
	if f.IsDict {
		m, ok := results.(map[string]any)
		if !ok {
			n.log.Warn("expected id-keyed results", zap.String("got", fmt.Sprintf("%T", results)))
			return nil, nil
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			p, ok := n.mapRecord(m[k], k, f)
			if !ok {
				continue
			}
			if p.ID == "" {
				p.ID = k
			}
			papers = append(papers, p)
		}
		return papers, nil
	}

	items, ok := results.([]any)
	if !ok {
		items = []any{results}
	}
	for _, item := range items {
		p, ok := n.mapRecord(item, "", f)
		if !ok {
			continue
		}
		if p.ID == "" {
			p.ID = fallbackID(item, len(papers))
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// mapRecord applies the field mapping to a single record. The second
// return is false when the record must be dropped.
func (n *Normalizer) mapRecord(item any, key string, f Format) (types.Paper, bool) {
	record, ok := item.(map[string]any)
	if !ok {
		n.log.Warn("skipping non-object record", zap.String("got", fmt.Sprintf("%T", item)))
		return types.Paper{}, false
	}
	var p types.Paper
	for _, fe := range f.Fields {
		v := fe.Expr.Eval(record, key)
		if v == nil {
			n.log.Debug("field not present in record",
				zap.String("field", fe.Name),
				zap.String("expr", fe.Expr.String()))
			continue
		}
		p.SetField(fe.Name, v)
	}
	if p.Title == "" {
		n.log.Warn("dropping record without a title", zap.String("key", key))
		return types.Paper{}, false
	}
	if p.Source == "" {
		p.Source = f.DefaultSource
	}
	return p, true
}

// fallbackID derives an identifier for records whose mapping produced
// none: a raw arxiv_id or id field, else the record's position.
func fallbackID(item any, position int) string {
	if record, ok := item.(map[string]any); ok {
		for _, k := range []string{"arxiv_id", "id"} {
			if v, ok := record[k]; ok {
				if s := anyToID(v); s != "" {
					return s
				}
			}
		}
	}
	return strconv.Itoa(position)
}

func anyToID(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	}
	return ""
}

func pathString(p Path) string {
	if len(p) == 0 {
		return "."
	}
	parts := make([]string, len(p))
	for i, step := range p {
		if step.hasIndex {
			parts[i] = fmt.Sprintf("%s[%d]", step.field, step.index)
		} else {
			parts[i] = step.field
		}
	}
	return strings.Join(parts, ".")
}

// ArticleFromPaper projects a paper onto the article shape reported to
// callers.
func ArticleFromPaper(p types.Paper, usedInAnalysis bool) types.Article {
	a := types.Article{
		Title:          p.Title,
		Authors:        p.Authors,
		Year:           articleYear(p),
		Venue:          p.Venue,
		Abstract:       p.Abstract,
		URL:            articleURL(p),
		Source:         p.Source,
		UsedInAnalysis: usedInAnalysis,
		PDFLinks:       p.PDFLinks,
	}
	if len(a.PDFLinks) == 0 && p.PDFURL != "" {
		a.PDFLinks = []string{p.PDFURL}
	}
	return a
}

// articleYear falls back to the revision date's year when the record has
// no publication year.
func articleYear(p types.Paper) string {
	if y := strings.TrimSpace(p.Year); y != "" {
		return y
	}
	if p.DateRevised != "" {
		first := strings.SplitN(p.DateRevised, "/", 2)[0]
		if _, err := strconv.Atoi(first); err == nil {
			return first
		}
	}
	return ""
}

// articleURL picks the best link for an article: an explicit URL, a
// PubMed link for numeric identifiers, a DOI link for DOI identifiers,
// else the identifier itself.
func articleURL(p types.Paper) string {
	if p.URL != "" {
		return p.URL
	}
	if p.ID == "" {
		return ""
	}
	if _, err := strconv.Atoi(p.ID); err == nil {
		return "https://pubmed.ncbi.nlm.nih.gov/" + p.ID + "/"
	}
	if strings.HasPrefix(p.ID, "10.") {
		return "https://doi.org/" + p.ID
	}
	return p.ID
}
