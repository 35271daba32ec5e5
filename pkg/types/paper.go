// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// Paper holds metadata and content for a single literature search result.
// Papers are transient: they live for the duration of one review run and are
// keyed by their source-specific identifier (PMID, DOI, arXiv id, ...).
type Paper struct {
	// ID is the source-specific identifier (e.g. "38012345" for PubMed).
	ID string `json:"id" yaml:"id"`

	// Source names the search source that produced this paper
	// (e.g. "pubmed", "biorxiv"). Set by the orchestrator after collection.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Title is the paper title. Papers without a title are dropped during
	// normalization; downstream code may assume it is non-empty.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Year is the publication year as reported by the source. Kept as a
	// string because sources disagree on numeric vs. textual representation.
	Year string `json:"year,omitempty" yaml:"year,omitempty"`

	// Venue is the journal or preprint server name.
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Fulltext is the retrieved full text, when content fetch succeeded.
	Fulltext string `json:"fulltext,omitempty" yaml:"fulltext,omitempty"`

	// URL is the landing-page URL.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// PDFURL is a direct PDF link, when one was reported or discovered.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// PDFLinks lists all discovered direct PDF links.
	PDFLinks []string `json:"pdf_links,omitempty" yaml:"pdf_links,omitempty"`

	// PMCID is the PubMed Central identifier that resolves to full text.
	PMCID string `json:"pmc_full_text_id,omitempty" yaml:"pmc_full_text_id,omitempty"`

	// DateRevised is the source's last-revision date in "YYYY/MM/DD" form.
	DateRevised string `json:"date_revised,omitempty" yaml:"date_revised,omitempty"`

	// HasFulltext is set by sources that report fulltext availability as a
	// flag rather than by shipping content.
	HasFulltext bool `json:"has_fulltext,omitempty" yaml:"has_fulltext,omitempty"`

	// Extra carries source fields outside the canonical set, so that
	// configured field mappings can reference them by name.
	Extra map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Canonical field names accepted by Field and SetField. Tool response formats
// reference these names in their field mappings.
const (
	FieldTitle       = "title"
	FieldAuthors     = "authors"
	FieldYear        = "year"
	FieldVenue       = "venue"
	FieldAbstract    = "abstract"
	FieldFulltext    = "fulltext"
	FieldURL         = "url"
	FieldPDFURL      = "pdf_url"
	FieldPDFLinks    = "pdf_links"
	FieldPMCID       = "pmc_full_text_id"
	FieldDateRevised = "date_revised"
	FieldHasFulltext = "has_fulltext"
)

// Field returns the named field's value. Canonical names resolve to the
// typed fields; anything else is looked up in Extra. The second return
// reports whether the field is present and non-empty.
func (p *Paper) Field(name string) (any, bool) {
	switch name {
	case "id", "source_id":
		return p.ID, p.ID != ""
	case "source":
		return p.Source, p.Source != ""
	case FieldTitle:
		return p.Title, p.Title != ""
	case FieldAuthors:
		return p.Authors, len(p.Authors) > 0
	case FieldYear:
		return p.Year, p.Year != ""
	case FieldVenue:
		return p.Venue, p.Venue != ""
	case FieldAbstract:
		return p.Abstract, p.Abstract != ""
	case FieldFulltext, "content":
		return p.Fulltext, p.Fulltext != ""
	case FieldURL:
		return p.URL, p.URL != ""
	case FieldPDFURL:
		return p.PDFURL, p.PDFURL != ""
	case FieldPDFLinks:
		return p.PDFLinks, len(p.PDFLinks) > 0
	case FieldPMCID:
		return p.PMCID, p.PMCID != ""
	case FieldDateRevised:
		return p.DateRevised, p.DateRevised != ""
	case FieldHasFulltext:
		return p.HasFulltext, p.HasFulltext
	}
	v, ok := p.Extra[name]
	return v, ok && v != nil
}

// SetField assigns the named field. Canonical names land in the typed
// fields with best-effort coercion; unknown names go to Extra.
func (p *Paper) SetField(name string, v any) {
	switch name {
	case "id", "source_id":
		p.ID = toString(v)
	case "source":
		p.Source = toString(v)
	case FieldTitle:
		p.Title = toString(v)
	case FieldAuthors:
		p.Authors = toStringSlice(v)
	case FieldYear:
		p.Year = toString(v)
	case FieldVenue:
		p.Venue = toString(v)
	case FieldAbstract:
		p.Abstract = toString(v)
	case FieldFulltext, "content":
		p.Fulltext = toString(v)
	case FieldURL:
		p.URL = toString(v)
	case FieldPDFURL:
		p.PDFURL = toString(v)
	case FieldPDFLinks:
		p.PDFLinks = toStringSlice(v)
	case FieldPMCID:
		p.PMCID = toString(v)
	case FieldDateRevised:
		p.DateRevised = toString(v)
	case FieldHasFulltext:
		p.HasFulltext = toBool(v)
	default:
		if p.Extra == nil {
			p.Extra = make(map[string]any)
		}
		p.Extra[name] = v
	}
}

// FulltextAvailable reports whether any fulltext indicator is set: a PMC id,
// retrieved fulltext, an availability flag, or a direct PDF link.
func (p *Paper) FulltextAvailable() bool {
	return p.PMCID != "" || p.Fulltext != "" || p.HasFulltext || p.PDFURL != ""
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; render integers without a dot.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toStringSlice(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, toString(e))
		}
		return out
	default:
		return []string{toString(v)}
	}
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "true")
	default:
		return false
	}
}

// Article is the durable projection of a Paper returned to callers after a
// literature review. Unlike Paper it never carries full text, only whether
// the paper's content informed the analysis.
type Article struct {
	// Title is the paper title. Always non-empty.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Year is the publication year.
	Year string `json:"year,omitempty" yaml:"year,omitempty"`

	// Venue is the journal or preprint server name.
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// URL points at the paper: the source URL when reported, otherwise a
	// URL derived from the identifier.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Source names the search source the paper came from.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// UsedInAnalysis reports whether the paper's content was available to
	// the analysis stage. Articles with false are informational only.
	UsedInAnalysis bool `json:"used_in_analysis" yaml:"used_in_analysis"`

	// PDFLinks lists discovered direct PDF links.
	PDFLinks []string `json:"pdf_links,omitempty" yaml:"pdf_links,omitempty"`
}
