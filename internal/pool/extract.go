// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pool

import (
	"encoding/xml"
	"regexp"
	"strings"

	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// extractFailed is returned when no readable text can be recovered.
const extractFailed = "[error: could not extract text from HTML]"

// Elements stripped before extraction. These hold references, figures,
// tables, and footnotes rather than prose.
var skipElements = map[string]bool{
	"back":       true,
	"ref-list":   true,
	"ack":        true,
	"fn-group":   true,
	"fig":        true,
	"table-wrap": true,
}

// ExtractText converts a JATS fulltext document into plain text with
// lightweight section headings, truncated to the analysis size limit.
// Unparseable input degrades to tag-stripped raw text.
func ExtractText(raw []byte) string {
	root, err := parseTree(raw)
	if err != nil {
		return fallbackText(raw)
	}

	var parts []string
	if abstract := findElement(root, "abstract"); abstract != nil {
		if text := collectText(abstract); text != "" {
			parts = append(parts, "# abstract\n\n"+text)
		}
	}
	if body := findElement(root, "body"); body != nil {
		for _, child := range body.children {
			sec, ok := child.(*element)
			if !ok || sec.name != "sec" {
				continue
			}
			heading := ""
			if title := findElement(sec, "title"); title != nil {
				heading = collectText(title)
			}
			text := collectParagraphs(sec)
			if text == "" {
				continue
			}
			if heading != "" {
				parts = append(parts, "## "+heading+"\n\n"+text)
			} else {
				parts = append(parts, text)
			}
		}
	}

	if len(parts) == 0 {
		return fallbackText(raw)
	}
	return types.TruncateContent(strings.Join(parts, "\n\n"))
}

// element is a minimal parsed XML node. children holds *element and
// string (character data) values in document order.
type element struct {
	name     string
	children []any
}

func parseTree(raw []byte) (*element, error) {
	decoder := xml.NewDecoder(strings.NewReader(string(raw)))
	decoder.Strict = false
	root := &element{}
	stack := []*element{root}

	for {
		tok, err := decoder.Token()
		if tok == nil {
			break
		}
		if err != nil {
			return nil, err
		}
		top := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			child := &element{name: t.Name.Local}
			top.children = append(top.children, child)
			stack = append(stack, child)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			top.children = append(top.children, string(t))
		}
	}
	if len(root.children) == 0 {
		return nil, errEmptyDocument
	}
	return root, nil
}

var errEmptyDocument = xml.UnmarshalError("empty document")

// findElement returns the first descendant with the given name, skipping
// stripped subtrees.
func findElement(n *element, name string) *element {
	for _, child := range n.children {
		el, ok := child.(*element)
		if !ok || skipElements[el.name] {
			continue
		}
		if el.name == name {
			return el
		}
		if found := findElement(el, name); found != nil {
			return found
		}
	}
	return nil
}

// collectText gathers all character data under a node, skipping stripped
// subtrees and collapsing whitespace.
func collectText(n *element) string {
	var b strings.Builder
	appendText(&b, n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func appendText(b *strings.Builder, n *element) {
	for _, child := range n.children {
		switch c := child.(type) {
		case string:
			b.WriteString(c)
			b.WriteByte(' ')
		case *element:
			if skipElements[c.name] {
				continue
			}
			appendText(b, c)
		}
	}
}

// collectParagraphs gathers the text of every paragraph under a section,
// one paragraph per line.
func collectParagraphs(n *element) string {
	var paras []string
	var walk func(*element)
	walk = func(el *element) {
		for _, child := range el.children {
			c, ok := child.(*element)
			if !ok || skipElements[c.name] {
				continue
			}
			if c.name == "p" {
				if text := collectText(c); text != "" {
					paras = append(paras, text)
				}
				continue
			}
			walk(c)
		}
	}
	walk(n)
	return strings.Join(paras, "\n\n")
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// fallbackText strips markup without parsing. Last resort for documents
// the XML decoder rejects.
func fallbackText(raw []byte) string {
	text := tagPattern.ReplaceAllString(string(raw), " ")
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return extractFailed
	}
	return types.TruncateContent(text)
}
