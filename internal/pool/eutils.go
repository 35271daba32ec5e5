// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pool

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// eutilsBase is the NCBI E-utilities endpoint. Package-level var for test
// substitution.
var eutilsBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// Sentinel values stored when a metadata field is absent upstream.
const (
	absentAbstract = "<not found>"
	absentDOI      = "<not found>"
)

// esearch runs a PubMed search and returns matching PMIDs in rank order.
// recencyYears > 0 restricts by publication date.
func (c *Client) esearch(ctx context.Context, query string, retmax, recencyYears int, sortByDate bool) ([]string, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("retmax", strconv.Itoa(retmax))
	params.Set("retmode", "json")
	if sortByDate {
		params.Set("sort", "pub_date")
	}
	if recencyYears > 0 {
		year := time.Now().Year()
		params.Set("mindate", fmt.Sprintf("%d/01/01", year-recencyYears))
		params.Set("maxdate", fmt.Sprintf("%d/12/31", year))
		params.Set("datetype", "pdat")
	}

	body, err := c.get(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("searching PubMed: %w", err)
	}

	var parsed struct {
		Result struct {
			IDs []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	return parsed.Result.IDs, nil
}

// PubMed efetch XML structures.
type pubmedArticleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation pubmedCitation `xml:"MedlineCitation"`
	Data     pubmedData     `xml:"PubmedData"`
}

type pubmedCitation struct {
	PMID        string            `xml:"PMID"`
	DateRevised pubmedDate        `xml:"DateRevised"`
	Article     pubmedArticleInfo `xml:"Article"`
}

type pubmedDate struct {
	Year  string `xml:"Year"`
	Month string `xml:"Month"`
	Day   string `xml:"Day"`
}

type pubmedArticleInfo struct {
	Title    string `xml:"ArticleTitle"`
	Abstract struct {
		Sections []string `xml:"AbstractText"`
	} `xml:"Abstract"`
	Authors []pubmedAuthor `xml:"AuthorList>Author"`
	Journal struct {
		Title string `xml:"Title"`
	} `xml:"Journal"`
}

type pubmedAuthor struct {
	LastName string `xml:"LastName"`
	ForeName string `xml:"ForeName"`
}

type pubmedData struct {
	ArticleIDs []pubmedArticleID `xml:"ArticleIdList>ArticleId"`
}

type pubmedArticleID struct {
	Type  string `xml:"IdType,attr"`
	Value string `xml:",chardata"`
}

// efetchMetadata retrieves the metadata record for one PMID.
func (c *Client) efetchMetadata(ctx context.Context, pmid string) (PaperMeta, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", pmid)
	params.Set("retmode", "xml")

	body, err := c.get(ctx, "efetch.fcgi", params)
	if err != nil {
		return PaperMeta{}, fmt.Errorf("fetching metadata for %s: %w", pmid, err)
	}

	var set pubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return PaperMeta{}, fmt.Errorf("parsing metadata for %s: %w", pmid, err)
	}
	if len(set.Articles) == 0 {
		return PaperMeta{}, fmt.Errorf("no article record for %s", pmid)
	}

	article := set.Articles[0]
	meta := PaperMeta{
		Title:       strings.TrimSpace(article.Citation.Article.Title),
		Publication: strings.TrimSpace(article.Citation.Article.Journal.Title),
		DateRevised: formatRevised(article.Citation.DateRevised),
		Abstract:    absentAbstract,
		DOI:         absentDOI,
	}

	if sections := article.Citation.Article.Abstract.Sections; len(sections) > 0 {
		parts := make([]string, 0, len(sections))
		for _, s := range sections {
			if t := strings.TrimSpace(s); t != "" {
				parts = append(parts, t)
			}
		}
		if len(parts) > 0 {
			meta.Abstract = strings.Join(parts, " ")
		}
	}

	for _, a := range article.Citation.Article.Authors {
		name := strings.TrimSpace(a.ForeName + " " + a.LastName)
		if name != "" {
			meta.Authors = append(meta.Authors, name)
		}
	}

	for _, id := range article.Data.ArticleIDs {
		if id.Type == "doi" {
			meta.DOI = strings.TrimSpace(id.Value)
			break
		}
	}

	return meta, nil
}

func formatRevised(d pubmedDate) string {
	if d.Year == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s", d.Year, d.Month, d.Day)
}

// elinkPMC resolves the PMC fulltext identifier for a PMID. Empty means
// no fulltext deposit exists.
func (c *Client) elinkPMC(ctx context.Context, pmid string) (string, error) {
	params := url.Values{}
	params.Set("dbfrom", "pubmed")
	params.Set("db", "pmc")
	params.Set("id", pmid)
	params.Set("retmode", "json")

	body, err := c.get(ctx, "elink.fcgi", params)
	if err != nil {
		return "", fmt.Errorf("resolving PMC link for %s: %w", pmid, err)
	}

	var parsed struct {
		LinkSets []struct {
			LinkSetDBs []struct {
				LinkName string   `json:"linkname"`
				Links    []string `json:"links"`
			} `json:"linksetdbs"`
		} `json:"linksets"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parsing PMC link for %s: %w", pmid, err)
	}

	for _, set := range parsed.LinkSets {
		for _, db := range set.LinkSetDBs {
			// elink also reports citation links (pubmed_pmc_refs); only
			// the direct deposit counts as fulltext.
			if db.LinkName == "pubmed_pmc" && len(db.Links) > 0 {
				return db.Links[0], nil
			}
		}
	}
	return "", nil
}

// efetchPMC downloads the JATS XML fulltext for a PMC identifier.
func (c *Client) efetchPMC(ctx context.Context, pmcID string) ([]byte, error) {
	params := url.Values{}
	params.Set("db", "pmc")
	params.Set("id", pmcID)
	params.Set("retmode", "xml")

	body, err := c.get(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("fetching fulltext %s: %w", pmcID, err)
	}
	if strings.Contains(string(body), "Result too long") {
		return nil, fmt.Errorf("fulltext %s exceeds the upstream response limit", pmcID)
	}
	return body, nil
}
