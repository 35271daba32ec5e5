// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Expression language for field mappings:
//
//	'pubmed'                          quoted literal
//	@key                              the record's own key
//	@url_from_key                     PubMed URL built from the key
//	metadata.title                    dotted nested path
//	authors[0]                        array index
//	date_revised|split:/|index:0|int  transform chain
//
// Expressions are compiled once when a tool configuration is loaded, so a
// typo in a mapping fails the load instead of silently dropping fields at
// runtime.

type exprKind int

const (
	exprField exprKind = iota
	exprLiteral
	exprKey
	exprURLFromKey
)

type transformOp int

const (
	opSplit transformOp = iota
	opIndex
	opInt
	opFloat
	opDefault
	opWrapList
)

type transform struct {
	op  transformOp
	arg string
	idx int
}

// Expr is a compiled field-mapping expression.
type Expr struct {
	kind       exprKind
	literal    string
	fieldIsKey bool
	path       Path
	transforms []transform
	raw        string
}

// ParseExpr compiles a field-mapping expression.
func ParseExpr(s string) (*Expr, error) {
	if s == "" {
		return nil, fmt.Errorf("empty field expression")
	}
	if len(s) >= 2 && strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") {
		return &Expr{kind: exprLiteral, literal: s[1 : len(s)-1], raw: s}, nil
	}
	if s == "@key" {
		return &Expr{kind: exprKey, raw: s}, nil
	}
	if s == "@url_from_key" {
		return &Expr{kind: exprURLFromKey, raw: s}, nil
	}
	if strings.HasPrefix(s, "@") {
		return nil, fmt.Errorf("unknown special expression %q", s)
	}

	parts := strings.Split(s, "|")
	e := &Expr{kind: exprField, raw: s}
	if parts[0] == "@key" {
		e.fieldIsKey = true
	} else if parts[0] == "" {
		return nil, fmt.Errorf("expression %q has an empty field part", s)
	} else {
		e.path = ParsePath(parts[0])
	}
	for _, spec := range parts[1:] {
		t, err := parseTransform(spec)
		if err != nil {
			return nil, fmt.Errorf("expression %q: %w", s, err)
		}
		e.transforms = append(e.transforms, t)
	}
	return e, nil
}

func parseTransform(spec string) (transform, error) {
	switch {
	case strings.HasPrefix(spec, "split:"):
		delim := spec[len("split:"):]
		if delim == "" {
			return transform{}, fmt.Errorf("split transform requires a delimiter")
		}
		return transform{op: opSplit, arg: delim}, nil
	case strings.HasPrefix(spec, "index:"):
		idx, err := strconv.Atoi(spec[len("index:"):])
		if err != nil {
			return transform{}, fmt.Errorf("index transform requires an integer: %w", err)
		}
		return transform{op: opIndex, idx: idx}, nil
	case spec == "int":
		return transform{op: opInt}, nil
	case spec == "float":
		return transform{op: opFloat}, nil
	case strings.HasPrefix(spec, "default:"):
		return transform{op: opDefault, arg: spec[len("default:"):]}, nil
	case spec == "wrap_list":
		return transform{op: opWrapList}, nil
	}
	return transform{}, fmt.Errorf("unknown transform %q", spec)
}

// Eval evaluates the expression against a record. key is the record's dict
// key, empty for list-shaped responses. A nil result means the field could
// not be produced; callers leave the target field at its zero value.
func (e *Expr) Eval(item map[string]any, key string) any {
	switch e.kind {
	case exprLiteral:
		return e.literal
	case exprKey:
		if key == "" {
			return nil
		}
		return key
	case exprURLFromKey:
		if key == "" {
			return nil
		}
		return "https://pubmed.ncbi.nlm.nih.gov/" + key + "/"
	}

	var v any
	if e.fieldIsKey {
		if key != "" {
			v = key
		}
	} else {
		v = e.path.Navigate(item)
	}
	for _, t := range e.transforms {
		v = applyTransform(t, v)
	}
	return v
}

// Literal returns the expression's constant value when it is a quoted
// literal.
func (e *Expr) Literal() (string, bool) {
	if e.kind == exprLiteral {
		return e.literal, true
	}
	return "", false
}

func (e *Expr) String() string { return e.raw }

func applyTransform(t transform, v any) any {
	if v == nil {
		if t.op == opDefault {
			return parseDefaultValue(t.arg)
		}
		return nil
	}
	switch t.op {
	case opSplit:
		s, ok := v.(string)
		if !ok {
			return v
		}
		parts := strings.Split(s, t.arg)
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return out
	case opIndex:
		switch list := v.(type) {
		case []any:
			if t.idx < len(list) {
				return list[t.idx]
			}
		case []string:
			if t.idx < len(list) {
				return list[t.idx]
			}
		}
		return nil
	case opInt:
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case string:
			i, err := strconv.Atoi(strings.TrimSpace(n))
			if err != nil {
				return nil
			}
			return i
		}
		return nil
	case opFloat:
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return nil
			}
			return f
		}
		return nil
	case opDefault:
		return v
	case opWrapList:
		switch v.(type) {
		case []any, []string:
			return v
		}
		return []any{v}
	}
	return v
}

// parseDefaultValue mirrors how configured defaults are interpreted:
// integers stay numeric, everything else is a string.
func parseDefaultValue(s string) any {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	return s
}

var pathIndexRe = regexp.MustCompile(`^(\w+)\[(\d+)\]$`)

type pathStep struct {
	field    string
	index    int
	hasIndex bool
}

// Path is a compiled dotted field path with optional array indexes
// ("results.items[0].title"). "." and "" resolve to the value itself.
type Path []pathStep

// ParsePath compiles a dotted path.
func ParsePath(s string) Path {
	if s == "" || s == "." {
		return nil
	}
	parts := strings.Split(s, ".")
	path := make(Path, 0, len(parts))
	for _, part := range parts {
		if m := pathIndexRe.FindStringSubmatch(part); m != nil {
			idx, _ := strconv.Atoi(m[2])
			path = append(path, pathStep{field: m[1], index: idx, hasIndex: true})
			continue
		}
		path = append(path, pathStep{field: part})
	}
	return path
}

// Navigate walks the path through decoded JSON data, returning nil when any
// step is missing. An index step on a non-list value passes the value
// through unchanged.
func (p Path) Navigate(data any) any {
	cur := data
	for _, step := range p {
		if cur == nil {
			return nil
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[step.field]
		if step.hasIndex {
			if list, ok := cur.([]any); ok {
				if step.index >= len(list) {
					return nil
				}
				cur = list[step.index]
			}
		}
	}
	return cur
}
