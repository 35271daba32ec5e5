// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package literature

import (
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// FormatBibTeX writes a review's articles as BibTeX @article entries to w.
// Citation keys derive from the same IDs FormatCSL emits, squashed to
// BibTeX's key alphabet.
func FormatBibTeX(articles []types.Article, w io.Writer) error {
	for i, a := range articles {
		if _, err := io.WriteString(w, bibtexEntry(a, i)); err != nil {
			return fmt.Errorf("writing BibTeX entry %d: %w", i+1, err)
		}
	}
	return nil
}

// bibtexEntry renders one @article block.
func bibtexEntry(a types.Article, idx int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "@article{%s,\n", bibtexKey(a, idx))
	fmt.Fprintf(&b, "  title = {%s},\n", a.Title)
	if len(a.Authors) > 0 {
		fmt.Fprintf(&b, "  author = {%s},\n", strings.Join(a.Authors, " and "))
	}
	if y := yearNumber(a.Year); y > 0 {
		fmt.Fprintf(&b, "  year = {%d},\n", y)
	}
	if a.Venue != "" {
		fmt.Fprintf(&b, "  journal = {%s},\n", a.Venue)
	}
	if a.URL != "" {
		fmt.Fprintf(&b, "  url = {%s},\n", a.URL)
	}
	b.WriteString("}\n\n")
	return b.String()
}

// bibtexKey maps the article's CSL ID onto characters BibTeX keys accept.
func bibtexKey(a types.Article, idx int) string {
	var b strings.Builder
	for _, r := range itemID(a, idx) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.', r == ':':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
