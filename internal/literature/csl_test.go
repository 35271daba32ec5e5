// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package literature

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

func TestToCSLItemArticle(t *testing.T) {
	a := types.Article{
		Title:    "Repair pathway choice at Cas9 breaks",
		Authors:  []string{"Marie Curie", "Rosalind Franklin"},
		Year:     "2023",
		Venue:    "Nature",
		Abstract: "We profile end joining outcomes.",
		URL:      "https://pubmed.ncbi.nlm.nih.gov/38012345/",
	}

	item := toCSLItem(a, 0)

	if item.ID != "38012345" {
		t.Errorf("ID = %q, want %q", item.ID, "38012345")
	}
	if item.Type != "article-journal" {
		t.Errorf("Type = %q, want %q", item.Type, "article-journal")
	}
	if item.ContainerTitle != "Nature" {
		t.Errorf("ContainerTitle = %q, want %q", item.ContainerTitle, "Nature")
	}
	if item.DOI != "" {
		t.Errorf("DOI should be empty for PubMed URLs, got %q", item.DOI)
	}
	if len(item.Author) != 2 {
		t.Fatalf("len(Author) = %d, want 2", len(item.Author))
	}
	if item.Author[0].Given != "Marie" || item.Author[0].Family != "Curie" {
		t.Errorf("Author[0] = %+v, want Marie/Curie", item.Author[0])
	}
	if item.Issued == nil || item.Issued.DateParts[0][0] != 2023 {
		t.Errorf("Issued year should be 2023")
	}
}

func TestToCSLItemDOIURL(t *testing.T) {
	a := types.Article{
		Title: "Base editing outcomes",
		URL:   "https://doi.org/10.1038/s41586-023-0001",
	}

	item := toCSLItem(a, 0)

	if item.DOI != "10.1038/s41586-023-0001" {
		t.Errorf("DOI = %q, want %q", item.DOI, "10.1038/s41586-023-0001")
	}
	if item.ID != "10.1038/s41586-023-0001" {
		t.Errorf("ID = %q, want the DOI", item.ID)
	}
}

func TestToCSLItemFallbackID(t *testing.T) {
	item := toCSLItem(types.Article{Title: "No URL"}, 2)
	if item.ID != "ref-3" {
		t.Errorf("ID = %q, want %q", item.ID, "ref-3")
	}
	if item.Issued != nil {
		t.Errorf("Issued should be nil without a year")
	}
}

func TestFormatCSL(t *testing.T) {
	articles := []types.Article{
		{
			Title:   "Repair pathway choice at Cas9 breaks",
			Authors: []string{"Marie Curie"},
			Year:    "2023",
			Venue:   "Nature",
			URL:     "https://pubmed.ncbi.nlm.nih.gov/38012345/",
		},
		{
			Title: "Base editing outcomes",
			URL:   "https://doi.org/10.1038/s41586-023-0001",
		},
	}

	var buf bytes.Buffer
	if err := FormatCSL(articles, &buf); err != nil {
		t.Fatalf("FormatCSL: %v", err)
	}
	s := buf.String()

	for _, want := range []string{
		"id: \"38012345\"",
		"type: article-journal",
		"container-title: Nature",
		"family: Curie",
		"DOI: 10.1038/s41586-023-0001",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("CSL output missing %q:\n%s", want, s)
		}
	}
}

func TestParseAuthorName(t *testing.T) {
	tests := []struct {
		name string
		want CSLName
	}{
		{"Marie Curie", CSLName{Given: "Marie", Family: "Curie"}},
		{"Ludwig van Beethoven", CSLName{Given: "Ludwig van", Family: "Beethoven"}},
		{"Plato", CSLName{Literal: "Plato"}},
		{"", CSLName{}},
	}
	for _, tt := range tests {
		if got := parseAuthorName(tt.name); got != tt.want {
			t.Errorf("parseAuthorName(%q) = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}
