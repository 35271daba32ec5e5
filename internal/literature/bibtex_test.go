// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package literature

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

func TestFormatBibTeX(t *testing.T) {
	articles := []types.Article{
		{
			Title:   "Repair pathway choice at Cas9 breaks",
			Authors: []string{"Marie Curie", "Rosalind Franklin"},
			Year:    "2023",
			Venue:   "Nature",
			URL:     "https://pubmed.ncbi.nlm.nih.gov/38012345/",
		},
		{Title: "No URL"},
	}

	var buf bytes.Buffer
	if err := FormatBibTeX(articles, &buf); err != nil {
		t.Fatalf("FormatBibTeX: %v", err)
	}
	s := buf.String()

	for _, want := range []string{
		"@article{38012345,",
		"  title = {Repair pathway choice at Cas9 breaks},",
		"  author = {Marie Curie and Rosalind Franklin},",
		"  year = {2023},",
		"  journal = {Nature},",
		"  url = {https://pubmed.ncbi.nlm.nih.gov/38012345/},",
		"@article{ref-2,",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("BibTeX output missing %q:\n%s", want, s)
		}
	}

	if strings.Contains(s, "author = {}") || strings.Contains(s, "journal = {},") {
		t.Errorf("empty fields should be omitted:\n%s", s)
	}
}

func TestBibtexKeySanitizesDOI(t *testing.T) {
	a := types.Article{URL: "https://doi.org/10.1038/s41586-023-0001"}
	if got := bibtexKey(a, 0); got != "10.1038-s41586-023-0001" {
		t.Errorf("bibtexKey = %q, want the DOI with slashes squashed", got)
	}
}
