// Copyright 2025 Lexeme Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pmc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/lexemelabs/semsearch/core"
	"github.com/lexemelabs/semsearch/storage"
)

// Default PMC endpoints.
const (
	DefaultSearchURL = "https://www.ebi.ac.uk/europepmc/webservices/rest/search"
	DefaultFetchURL  = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi"

	articleURLFormat = "https://pmc.ncbi.nlm.nih.gov/articles/%s/"
)

// Client searches Europe PMC for open-access articles and fetches their
// full-text XML from NCBI efetch. Fetched XML is cached in an optional
// response store so repeated queries do not re-hit NCBI.
type Client struct {
	searchURL  string
	fetchURL   string
	httpClient *http.Client
	limiter    *rate.Limiter
	responses  storage.ResponseStore
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithEndpoints overrides the search and fetch endpoints.
func WithEndpoints(searchURL, fetchURL string) Option {
	return func(c *Client) {
		if searchURL != "" {
			c.searchURL = searchURL
		}
		if fetchURL != "" {
			c.fetchURL = fetchURL
		}
	}
}

// WithResponseStore caches fetched article XML across queries.
func WithResponseStore(store storage.ResponseStore) Option {
	return func(c *Client) {
		c.responses = store
	}
}

// WithRateLimit bounds the request rate against the PMC endpoints.
// Default is one request per 200ms with a burst of 5.
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(c *Client) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a PMC client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		searchURL:  DefaultSearchURL,
		fetchURL:   DefaultFetchURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// searchResponse is the Europe PMC search response envelope.
type searchResponse struct {
	ResultList struct {
		Result []struct {
			ID    string `json:"id"`
			PMCID string `json:"pmcid"`
		} `json:"result"`
	} `json:"resultList"`
}

// Search queries Europe PMC for open-access articles and returns up to
// limit normalized, deduplicated PMCIDs. Query filters become
// additional fielded clauses (e.g. AUTH:"smith").
func (c *Client) Search(ctx context.Context, query core.Query, limit int) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"query":      {buildQuery(query)},
		"format":     {"json"},
		"pageSize":   {strconv.Itoa(limit)},
		"resultType": {"core"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: search returned %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var pmcids []string
	for _, item := range parsed.ResultList.Result {
		raw := item.PMCID
		if raw == "" {
			raw = item.ID
		}
		pmcid, err := NormalizePMCID(raw)
		if err != nil {
			continue
		}
		if _, dup := seen[pmcid]; dup {
			continue
		}
		seen[pmcid] = struct{}{}
		pmcids = append(pmcids, pmcid)
	}

	if len(pmcids) > limit {
		pmcids = pmcids[:limit]
	}
	c.logger.Debug("pmc search complete", "query", query.Text, "found", len(pmcids))
	return pmcids, nil
}

// Fetch retrieves an article's full-text XML and extracts the title and
// body text. A cached response is used when available; a cached
// response that no longer parses is discarded and refetched.
func (c *Client) Fetch(ctx context.Context, id string) (*core.Document, error) {
	pmcid, err := NormalizePMCID(id)
	if err != nil {
		return nil, err
	}

	if c.responses != nil {
		cached, err := c.responses.GetResponse(ctx, pmcid)
		if err == nil {
			doc, parseErr := c.buildDocument(pmcid, cached)
			if parseErr == nil {
				return doc, nil
			}
			c.logger.Warn("discarding unparseable cached article", "pmcid", pmcid, "err", parseErr)
		} else if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Warn("article cache read failed", "pmcid", pmcid, "err", err)
		}
	}

	data, err := c.fetchXML(ctx, pmcid)
	if err != nil {
		return nil, err
	}

	doc, err := c.buildDocument(pmcid, data)
	if err != nil {
		return nil, err
	}

	if c.responses != nil {
		if putErr := c.responses.PutResponse(ctx, pmcid, data); putErr != nil {
			c.logger.Warn("article cache write failed", "pmcid", pmcid, "err", putErr)
		}
	}
	return doc, nil
}

// fetchXML downloads the article XML from the efetch endpoint.
func (c *Client) fetchXML(ctx context.Context, pmcid string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"db":      {"pmc"},
		"id":      {strings.TrimPrefix(pmcid, "PMC")},
		"retmode": {"xml"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.fetchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: efetch returned %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// buildDocument parses article XML into a Document.
func (c *Client) buildDocument(pmcid string, data []byte) (*core.Document, error) {
	parsed, err := parseArticle(data)
	if err != nil {
		return nil, err
	}
	return &core.Document{
		ID:        pmcid,
		Title:     parsed.Title,
		SourceURI: fmt.Sprintf(articleURLFormat, pmcid),
		Text:      parsed.fullText(),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// buildQuery renders the Europe PMC query string: the free text, the
// open-access restriction, and any fielded filters in stable order.
func buildQuery(query core.Query) string {
	clauses := []string{"(" + query.Text + ")", "OPEN_ACCESS:Y"}

	fields := make([]string, 0, len(query.Filters))
	for field := range query.Filters {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		clauses = append(clauses, fmt.Sprintf("%s:%q", strings.ToUpper(field), query.Filters[field]))
	}
	return strings.Join(clauses, " AND ")
}

// NormalizePMCID canonicalizes a PMC identifier: case-insensitive
// "pmc1234567" and bare digit forms both become "PMC1234567".
func NormalizePMCID(id string) (string, error) {
	v := strings.ToUpper(strings.TrimSpace(id))
	if v == "" {
		return "", ErrInvalidPMCID
	}
	digits := strings.TrimPrefix(v, "PMC")
	if digits == "" {
		return "", ErrInvalidPMCID
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidPMCID, id)
		}
	}
	return "PMC" + digits, nil
}
