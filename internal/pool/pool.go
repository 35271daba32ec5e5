// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pool maintains a shared on-disk pool of PubMed papers and their
// PMC fulltexts. Searches write metadata and fulltext files once under a
// shared directory and expose per-run views of them through symlinks, so
// repeated runs against the same topic reuse prior downloads instead of
// refetching from NCBI.
package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/hypothesis-engine/internal/httputil"
	"github.com/pdiddy/hypothesis-engine/pkg/types"
)

const (
	// searchMultiplier oversamples the search so enough candidates with
	// PMC deposits remain after filtering.
	searchMultiplier = 3

	metadataSuffix = ".metadata.json"
	fulltextSuffix = ".fulltext.html"
	manifestName   = ".manifest.json"
)

// PaperMeta is the stored metadata record for one pooled paper. Field
// names match the on-disk JSON and the tool wire format.
type PaperMeta struct {
	DateRevised string   `json:"date_revised"`
	Title       string   `json:"title"`
	Abstract    string   `json:"abstract"`
	DOI         string   `json:"doi"`
	Authors     []string `json:"authors,omitempty"`
	Publication string   `json:"publication"`
	PMCID       string   `json:"pmc_full_text_id,omitempty"`
	Fulltext    string   `json:"fulltext,omitempty"`
}

// SearchResult is one lightweight search hit, shaped like the remote
// search tool's result records.
type SearchResult struct {
	SourceID string   `json:"source_id"`
	Title    string   `json:"title"`
	Authors  []string `json:"authors,omitempty"`
	Year     string   `json:"year,omitempty"`
	Venue    string   `json:"venue,omitempty"`
	Abstract string   `json:"abstract,omitempty"`
	URL      string   `json:"url"`
}

// SearchRequest parameterizes a pooled fulltext search.
type SearchRequest struct {
	Query        string
	Slug         string // topic directory under the pool root
	MaxPapers    int
	RecencyYears int    // 0 means no date restriction
	RunID        string // generated when empty
}

// Client talks to NCBI E-utilities and manages the paper pool directory.
type Client struct {
	cfg    types.PoolConfig
	client *http.Client
	apiKey string
	log    *zap.Logger
	sem    chan struct{}
}

// New builds a pool client. apiKey may be empty; NCBI then applies its
// anonymous rate limits.
func New(cfg types.PoolConfig, apiKey string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	concurrent := cfg.MaxConcurrent
	if concurrent <= 0 {
		concurrent = 3
	}
	return &Client{
		cfg:    cfg,
		client: httputil.NewClient(cfg.HTTPConfig),
		apiKey: apiKey,
		log:    log,
		sem:    make(chan struct{}, concurrent),
	}
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	u := fmt.Sprintf("%s/%s?%s", eutilsBase, endpoint, params.Encode())
	return httputil.Get(ctx, c.client, u, c.cfg.UserAgent, c.cfg.MaxRetries)
}

// CheckAvailable probes E-utilities with a minimal search.
func (c *Client) CheckAvailable(ctx context.Context) bool {
	_, err := c.esearch(ctx, "test", 0, 0, false)
	if err != nil {
		c.log.Debug("PubMed availability probe failed", zap.Error(err))
		return false
	}
	return true
}

// Search runs a metadata-only PubMed search without touching the pool.
func (c *Client) Search(ctx context.Context, query string, maxPapers int) ([]SearchResult, error) {
	if maxPapers <= 0 {
		maxPapers = 10
	}
	ids, err := c.esearch(ctx, query, maxPapers, 0, false)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, len(ids))
	var wg sync.WaitGroup
	for i, pmid := range ids {
		wg.Add(1)
		go func(i int, pmid string) {
			defer wg.Done()
			c.sem <- struct{}{}
			defer func() { <-c.sem }()

			meta, err := c.efetchMetadata(ctx, pmid)
			if err != nil {
				c.log.Warn("dropping search hit", zap.String("pmid", pmid), zap.Error(err))
				return
			}
			results[i] = SearchResult{
				SourceID: pmid,
				Title:    meta.Title,
				Authors:  meta.Authors,
				Year:     revisedYear(meta.DateRevised),
				Venue:    meta.Publication,
				Abstract: meta.Abstract,
				URL:      "https://pubmed.ncbi.nlm.nih.gov/" + pmid + "/",
			}
		}(i, pmid)
	}
	wg.Wait()

	kept := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if r.SourceID != "" {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

// SearchWithContent searches PubMed, pools metadata and fulltexts on disk,
// and returns the selected papers keyed by PMID with extracted fulltext
// attached where a PMC deposit exists. Papers already pooled for the topic
// are reused without refetching; when fewer than MaxPapers fresh hits have
// fulltexts, prior pooled papers supplement the run, newest first.
func (c *Client) SearchWithContent(ctx context.Context, req SearchRequest) (map[string]PaperMeta, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("search query is required")
	}
	if req.Slug == "" {
		req.Slug = "default"
	}
	if req.MaxPapers <= 0 {
		req.MaxPapers = 10
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	sharedDir := filepath.Join(c.cfg.Dir, "pubmed", req.Slug, "shared")
	runDir := filepath.Join(c.cfg.Dir, "pubmed", req.Slug, "runs", req.RunID)
	for _, dir := range []string{sharedDir, runDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating pool directory: %w", err)
		}
	}

	ids, err := c.esearch(ctx, req.Query, req.MaxPapers*searchMultiplier, req.RecencyYears, true)
	if err != nil {
		return nil, err
	}
	c.log.Info("pooled search",
		zap.String("query", req.Query),
		zap.String("slug", req.Slug),
		zap.Int("candidates", len(ids)))
	if len(ids) == 0 {
		return map[string]PaperMeta{}, nil
	}

	metas := c.collectMetadata(ctx, ids, sharedDir, runDir)

	// Select candidates with a PMC deposit, preserving search rank.
	selected := make([]string, 0, req.MaxPapers)
	for _, pmid := range ids {
		if len(selected) == req.MaxPapers {
			break
		}
		meta, ok := metas[pmid]
		if !ok || meta.PMCID == "" {
			continue
		}
		selected = append(selected, pmid)
	}

	c.downloadFulltexts(ctx, selected, metas, sharedDir, runDir)

	if shortfall := req.MaxPapers - len(selected); shortfall > 0 {
		extra := c.supplementFromPool(sharedDir, runDir, selected, metas, shortfall)
		selected = append(selected, extra...)
	}

	if err := c.writeManifest(runDir, req, selected, metas); err != nil {
		c.log.Warn("writing run manifest", zap.Error(err))
	}

	papers := make(map[string]PaperMeta, len(selected))
	for _, pmid := range selected {
		meta := metas[pmid]
		if meta.PMCID != "" {
			if raw, err := os.ReadFile(filepath.Join(runDir, meta.PMCID+fulltextSuffix)); err == nil {
				meta.Fulltext = ExtractText(raw)
			}
		}
		papers[pmid] = meta
	}
	return papers, nil
}

// collectMetadata ensures a pooled metadata file and run symlink exist for
// every candidate PMID, fetching from NCBI only for papers not yet pooled.
// Fetch failures drop the candidate.
func (c *Client) collectMetadata(ctx context.Context, ids []string, sharedDir, runDir string) map[string]PaperMeta {
	metas := make(map[string]PaperMeta, len(ids))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, pmid := range ids {
		wg.Add(1)
		go func(pmid string) {
			defer wg.Done()
			c.sem <- struct{}{}
			defer func() { <-c.sem }()

			name := pmid + metadataSuffix
			meta, err := readMetadata(filepath.Join(sharedDir, name))
			if err != nil {
				meta, err = c.fetchMetadata(ctx, pmid)
				if err != nil {
					c.log.Warn("dropping candidate", zap.String("pmid", pmid), zap.Error(err))
					return
				}
				if err := writeMetadata(filepath.Join(sharedDir, name), meta); err != nil {
					c.log.Warn("pooling metadata", zap.String("pmid", pmid), zap.Error(err))
					return
				}
			}
			if err := linkShared(runDir, name); err != nil {
				c.log.Warn("linking metadata", zap.String("pmid", pmid), zap.Error(err))
			}

			mu.Lock()
			metas[pmid] = meta
			mu.Unlock()
		}(pmid)
	}
	wg.Wait()
	return metas
}

// fetchMetadata builds a full metadata record, including the PMC fulltext
// identifier when one exists.
func (c *Client) fetchMetadata(ctx context.Context, pmid string) (PaperMeta, error) {
	meta, err := c.efetchMetadata(ctx, pmid)
	if err != nil {
		return PaperMeta{}, err
	}
	pmcID, err := c.elinkPMC(ctx, pmid)
	if err != nil {
		return PaperMeta{}, err
	}
	meta.PMCID = pmcID
	return meta, nil
}

// downloadFulltexts pools the PMC fulltext for each selected paper and
// links it into the run. Download failures leave the paper selected with
// metadata only.
func (c *Client) downloadFulltexts(ctx context.Context, selected []string, metas map[string]PaperMeta, sharedDir, runDir string) {
	var wg sync.WaitGroup
	for _, pmid := range selected {
		meta := metas[pmid]
		if meta.PMCID == "" {
			continue
		}
		wg.Add(1)
		go func(pmid, pmcID string) {
			defer wg.Done()
			c.sem <- struct{}{}
			defer func() { <-c.sem }()

			name := pmcID + fulltextSuffix
			shared := filepath.Join(sharedDir, name)
			if _, err := os.Stat(shared); err != nil {
				body, err := c.efetchPMC(ctx, pmcID)
				if err != nil {
					c.log.Warn("fulltext unavailable", zap.String("pmid", pmid), zap.Error(err))
					return
				}
				if err := writeFileAtomic(shared, body); err != nil {
					c.log.Warn("pooling fulltext", zap.String("pmid", pmid), zap.Error(err))
					return
				}
			}
			if err := linkShared(runDir, name); err != nil {
				c.log.Warn("linking fulltext", zap.String("pmid", pmid), zap.Error(err))
			}
		}(pmid, meta.PMCID)
	}
	wg.Wait()
}

// supplementFromPool fills a shortfall with previously pooled papers that
// have a fulltext on disk, newest revision first. It never pads with
// fulltext-less entries.
func (c *Client) supplementFromPool(sharedDir, runDir string, selected []string, metas map[string]PaperMeta, shortfall int) []string {
	entries, err := os.ReadDir(sharedDir)
	if err != nil {
		return nil
	}

	chosen := make(map[string]bool, len(selected))
	for _, pmid := range selected {
		chosen[pmid] = true
	}

	type pooled struct {
		pmid string
		meta PaperMeta
		year int
	}
	var candidates []pooled
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, metadataSuffix) {
			continue
		}
		pmid := strings.TrimSuffix(name, metadataSuffix)
		if chosen[pmid] {
			continue
		}
		meta, err := readMetadata(filepath.Join(sharedDir, name))
		if err != nil || meta.PMCID == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(sharedDir, meta.PMCID+fulltextSuffix)); err != nil {
			continue
		}
		year, _ := strconv.Atoi(revisedYear(meta.DateRevised))
		candidates = append(candidates, pooled{pmid: pmid, meta: meta, year: year})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].year > candidates[j].year
	})
	if len(candidates) > shortfall {
		candidates = candidates[:shortfall]
	}

	extra := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		if err := linkShared(runDir, cand.pmid+metadataSuffix); err != nil {
			c.log.Warn("linking pooled metadata", zap.String("pmid", cand.pmid), zap.Error(err))
			continue
		}
		if err := linkShared(runDir, cand.meta.PMCID+fulltextSuffix); err != nil {
			c.log.Warn("linking pooled fulltext", zap.String("pmid", cand.pmid), zap.Error(err))
			continue
		}
		metas[cand.pmid] = cand.meta
		extra = append(extra, cand.pmid)
	}
	if len(extra) > 0 {
		c.log.Info("supplemented run from pool", zap.Int("papers", len(extra)))
	}
	return extra
}

type runManifest struct {
	RunID     string   `json:"run_id"`
	PaperIDs  []string `json:"paper_ids"`
	PMCIDs    []string `json:"pmc_ids"`
	Query     string   `json:"query"`
	Timestamp string   `json:"timestamp"`
}

func (c *Client) writeManifest(runDir string, req SearchRequest, selected []string, metas map[string]PaperMeta) error {
	m := runManifest{
		RunID:     req.RunID,
		PaperIDs:  selected,
		PMCIDs:    []string{},
		Query:     req.Query,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	for _, pmid := range selected {
		if pmcID := metas[pmid].PMCID; pmcID != "" {
			m.PMCIDs = append(m.PMCIDs, pmcID)
		}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(runDir, manifestName), data)
}

func readMetadata(path string) (PaperMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PaperMeta{}, err
	}
	var meta PaperMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return PaperMeta{}, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return meta, nil
}

func writeMetadata(path string, meta PaperMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic writes via a temp file and rename so readers never see
// partial content.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// linkShared points a run-relative symlink at the shared copy. The target
// is relative so the pool directory can move as a unit.
func linkShared(runDir, name string) error {
	link := filepath.Join(runDir, name)
	target := filepath.Join("..", "..", "shared", name)
	err := os.Symlink(target, link)
	if err != nil && os.IsExist(err) {
		return nil
	}
	return err
}

func revisedYear(dateRevised string) string {
	year, _, _ := strings.Cut(dateRevised, "/")
	return year
}
