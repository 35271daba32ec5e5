// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package literature

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

// CSLItem represents a bibliographic entry in CSL (Citation Style
// Language) format. The field names and structure follow the
// CSL-JSON/CSL-YAML schema so that output is consumable by Pandoc and
// reference managers.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
}

// CSLName represents a person's name in CSL format.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate represents a date in CSL format using date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// FormatCSL writes a review's articles as a CSL-YAML list to w.
func FormatCSL(articles []types.Article, w io.Writer) error {
	items := make([]CSLItem, len(articles))
	for i, a := range articles {
		items[i] = toCSLItem(a, i)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

// toCSLItem converts an Article to a CSLItem. idx seeds the fallback ID
// for articles whose URL yields none.
func toCSLItem(a types.Article, idx int) CSLItem {
	item := CSLItem{
		ID:             itemID(a, idx),
		Type:           "article-journal",
		Title:          a.Title,
		Abstract:       a.Abstract,
		ContainerTitle: a.Venue,
		URL:            a.URL,
	}

	for _, name := range a.Authors {
		item.Author = append(item.Author, parseAuthorName(name))
	}

	if y := yearNumber(a.Year); y > 0 {
		item.Issued = &CSLDate{DateParts: [][]int{{y}}}
	}

	if doi, ok := strings.CutPrefix(a.URL, "https://doi.org/"); ok {
		item.DOI = doi
	}

	return item
}

// yearNumber parses a source-reported year string. Zero means unknown.
func yearNumber(year string) int {
	n, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// itemID derives a citation key from the article's URL, falling back to
// a positional key when the URL has no usable tail.
func itemID(a types.Article, idx int) string {
	if doi, ok := strings.CutPrefix(a.URL, "https://doi.org/"); ok {
		return doi
	}
	trimmed := strings.TrimSuffix(a.URL, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		if tail := trimmed[i+1:]; tail != "" {
			return tail
		}
	}
	return fmt.Sprintf("ref-%d", idx+1)
}

// parseAuthorName splits a full name string into CSL family/given parts.
// It splits on the last space: everything before is given, the last token
// is family. Single-token names use the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{
		Given:  name[:idx],
		Family: name[idx+1:],
	}
}
