// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package crossref searches the Crossref works API for publications
// matching a bibliography record.
package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/kmccurley/cryptobib/internal/doi"
	"github.com/kmccurley/cryptobib/internal/httputil"
	"github.com/kmccurley/cryptobib/internal/observability"
	"github.com/kmccurley/cryptobib/pkg/types"
)

// worksBase is the Crossref works endpoint used when no base URL is configured.
const worksBase = "https://api.crossref.org/works"

// StrippedKeys are the high-volume metadata keys removed from every
// retained work before it is persisted.
var StrippedKeys = []string{
	"abstract",
	"content-domain",
	"deposited",
	"funder",
	"indexed",
	"isbn-type",
	"ISBN",
	"ISSN",
	"issn-type",
	"issued",
	"is-referenced-by-count",
	"language",
	"license",
	"member",
	"publisher-location",
	"reference",
	"reference-count",
	"source",
	"references-count",
	"update-policy",
}

// Query is one bibliographic search.
type Query struct {
	// Bibliographic is free citation text, normally the decoded title.
	Bibliographic string

	// Author is the comma-joined decoded author list.
	Author string
}

// Result holds the retained works for one query.
type Result struct {
	Candidates []types.SearchCandidate

	// URL is the first page request, kept for manual review.
	URL string

	// Scanned counts the works read before filtering.
	Scanned int
}

// Client queries the Crossref works API.
type Client struct {
	HTTP *http.Client

	// BaseURL overrides the works endpoint.
	BaseURL string

	// Mailto is sent as the mailto parameter for polite pool access.
	Mailto string

	// PlusToken is sent as a Crossref Plus bearer token when set.
	PlusToken string

	UserAgent  string
	MaxRetries int
	MaxPages   int

	Limiter *rate.Limiter
	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

// NewClient builds a client from configuration. A zero RateLimit disables
// client-side limiting.
func NewClient(cfg types.CrossrefConfig, logger zerolog.Logger, m *observability.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		HTTP:       &http.Client{Timeout: timeout},
		BaseURL:    cfg.BaseURL,
		Mailto:     cfg.Mailto,
		PlusToken:  cfg.PlusToken,
		UserAgent:  cfg.UserAgent,
		MaxRetries: cfg.MaxRetries,
		MaxPages:   cfg.MaxPages,
		Metrics:    m,
		Logger:     logger,
	}
	if cfg.RateLimit > 0 {
		c.Limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

// QueryURL returns the works request for one page of a query.
func (c *Client) QueryURL(q Query, rows, offset int) string {
	params := url.Values{}
	if q.Bibliographic != "" {
		params.Set("query.bibliographic", q.Bibliographic)
	}
	if q.Author != "" {
		params.Set("query.author", q.Author)
	}
	params.Set("rows", strconv.Itoa(rows))
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	if c.Mailto != "" {
		params.Set("mailto", c.Mailto)
	}
	base := c.BaseURL
	if base == "" {
		base = worksBase
	}
	return base + "?" + params.Encode()
}

// Search returns up to k works, in rank order, that carry both a title and
// an author list. Pages are read until k works are kept, the results run
// out, or MaxPages pages have been read. Any transport, status or decoding
// failure is returned as an error.
func (c *Client) Search(ctx context.Context, q Query, k int) (Result, error) {
	if k <= 0 {
		return Result{}, fmt.Errorf("crossref: result count must be positive, got %d", k)
	}
	maxPages := c.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	res := Result{URL: c.QueryURL(q, k, 0)}
	for page := 0; page < maxPages && len(res.Candidates) < k; page++ {
		body, err := c.fetch(ctx, c.QueryURL(q, k, page*k))
		if err != nil {
			return Result{}, err
		}

		items := gjson.GetBytes(body, "message.items")
		n := 0
		var walkErr error
		items.ForEach(func(_, item gjson.Result) bool {
			n++
			if len(res.Candidates) >= k {
				return false
			}
			if !keep(item) {
				return true
			}
			cand, err := candidate(item)
			if err != nil {
				walkErr = err
				return false
			}
			res.Candidates = append(res.Candidates, cand)
			return true
		})
		if walkErr != nil {
			return Result{}, walkErr
		}
		res.Scanned += n

		// A short page means the result list is exhausted.
		if n < k {
			break
		}
	}
	return res, nil
}

// keep reports whether a work has a non-empty title and author list.
func keep(item gjson.Result) bool {
	return item.Get("title.#").Int() > 0 && item.Get("author.#").Int() > 0
}

// candidate strips the unused keys from a work and decodes it. The registrant
// prefix is derived from the DOI when Crossref omits it.
func candidate(item gjson.Result) (types.SearchCandidate, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(item.Raw), &fields); err != nil {
		return types.SearchCandidate{}, fmt.Errorf("crossref: decoding work: %w", err)
	}
	for _, k := range StrippedKeys {
		delete(fields, k)
	}
	if _, ok := fields["prefix"]; !ok {
		if p := doi.Prefix(item.Get("DOI").String()); p != "" {
			fields["prefix"], _ = json.Marshal(p)
		}
	}

	stripped, err := json.Marshal(fields)
	if err != nil {
		return types.SearchCandidate{}, fmt.Errorf("crossref: encoding work: %w", err)
	}
	var cand types.SearchCandidate
	if err := json.Unmarshal(stripped, &cand); err != nil {
		return types.SearchCandidate{}, fmt.Errorf("crossref: decoding work %s: %w", item.Get("DOI").String(), err)
	}
	return cand, nil
}

func (c *Client) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent())
	if c.PlusToken != "" {
		req.Header.Set("Crossref-Plus-API-Token", "Bearer "+c.PlusToken)
	}

	onRetry := func(attempt int, wait time.Duration) {
		c.Metrics.RecordCrossrefRequest(http.StatusTooManyRequests)
		c.Logger.Warn().Int("attempt", attempt).Dur("wait", wait).Msg("crossref rate limited")
	}
	resp, err := httputil.DoWithRetry(ctx, c.client(), req, c.MaxRetries, onRetry)
	if err != nil {
		return nil, fmt.Errorf("crossref request: %w", err)
	}
	defer resp.Body.Close()
	c.Metrics.RecordCrossrefRequest(resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("crossref returned HTTP %d for %s", resp.StatusCode, reqURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading crossref response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("crossref returned invalid JSON for %s", reqURL)
	}
	return body, nil
}

func (c *Client) client() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// userAgent follows Crossref etiquette: tool name, project URL and a
// contact address.
func (c *Client) userAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	ua := "doitools (https://github.com/kmccurley/cryptobib"
	if c.Mailto != "" {
		ua += "; mailto:" + c.Mailto
	}
	return ua + ")"
}
