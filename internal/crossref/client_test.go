// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmccurley/cryptobib/internal/httputil"
	"github.com/kmccurley/cryptobib/internal/observability"
	"github.com/kmccurley/cryptobib/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

func work(doi, title string, authors int, extra string) string {
	var as []string
	for i := 0; i < authors; i++ {
		as = append(as, fmt.Sprintf(`{"given":"G%d","family":"F%d"}`, i, i))
	}
	titles := "[]"
	if title != "" {
		titles = fmt.Sprintf("[%q]", title)
	}
	s := fmt.Sprintf(`{"DOI":%q,"title":%s,"author":[%s],"abstract":"long","reference":[{"key":"r1"}],"ISSN":["1234"],"member":"297"`,
		doi, titles, strings.Join(as, ","))
	if extra != "" {
		s += "," + extra
	}
	return s + "}"
}

func page(items ...string) string {
	return `{"status":"ok","message-type":"work-list","message":{"items":[` + strings.Join(items, ",") + `]}}`
}

func newTestClient(ts *httptest.Server) *Client {
	return &Client{
		HTTP:     ts.Client(),
		BaseURL:  ts.URL,
		Mailto:   "dev@example.org",
		MaxPages: 3,
		Logger:   zerolog.Nop(),
	}
}

func TestQueryURL(t *testing.T) {
	c := &Client{Mailto: "dev@example.org"}
	got := c.QueryURL(Query{Bibliographic: "Foo Bar", Author: "Boaz Barak, Jane Doe"}, 5, 10)
	require.True(t, strings.HasPrefix(got, worksBase+"?"))
	assert.Contains(t, got, "query.bibliographic=Foo+Bar")
	assert.Contains(t, got, "query.author=Boaz+Barak%2C+Jane+Doe")
	assert.Contains(t, got, "rows=5")
	assert.Contains(t, got, "offset=10")
	assert.Contains(t, got, "mailto=dev%40example.org")

	c.BaseURL = "http://localhost/works"
	got = c.QueryURL(Query{}, 1, 0)
	assert.True(t, strings.HasPrefix(got, "http://localhost/works?"))
	assert.NotContains(t, got, "offset")
}

func TestSearchFiltersAndStrips(t *testing.T) {
	var gotUA, gotToken string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotToken = r.Header.Get("Crossref-Plus-API-Token")
		assert.Equal(t, "Foo Bar", r.URL.Query().Get("query.bibliographic"))
		assert.Equal(t, "dev@example.org", r.URL.Query().Get("mailto"))
		fmt.Fprint(w, page(
			work("10.1007/a", "", 2, ""),
			work("10.1007/b", "Foo Bar", 0, ""),
			work("10.1007/c", "Foo Bar", 2, `"prefix":"10.1007"`),
			work("10.1145/d", "Foo Bar Baz", 1, ""),
		))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	c.PlusToken = "secret"
	res, err := c.Search(context.Background(), Query{Bibliographic: "Foo Bar"}, 2)
	require.NoError(t, err)

	assert.Contains(t, gotUA, "mailto:dev@example.org")
	assert.Equal(t, "Bearer secret", gotToken)

	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "10.1007/c", res.Candidates[0].DOI)
	assert.Equal(t, "10.1007", res.Candidates[0].Prefix)
	assert.Equal(t, "10.1145/d", res.Candidates[1].DOI)
	assert.Equal(t, "10.1145", res.Candidates[1].Prefix)
	assert.Equal(t, 4, res.Scanned)
	assert.Contains(t, res.URL, "rows=2")

	raw, err := json.Marshal(res.Candidates[0])
	require.NoError(t, err)
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, k := range StrippedKeys {
		assert.NotContains(t, fields, k)
	}
	assert.Contains(t, fields, "DOI")
	assert.Contains(t, fields, "author")
}

func TestSearchTruncatesToK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page(
			work("10.1007/1", "A", 1, ""),
			work("10.1007/2", "B", 1, ""),
			work("10.1007/3", "C", 1, ""),
		))
	}))
	defer ts.Close()

	res, err := newTestClient(ts).Search(context.Background(), Query{Bibliographic: "x"}, 1)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "10.1007/1", res.Candidates[0].DOI)
}

func TestSearchPagesWhenFilteringDropsResults(t *testing.T) {
	var offsets []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset := r.URL.Query().Get("offset")
		offsets = append(offsets, offset)
		switch offset {
		case "":
			fmt.Fprint(w, page(work("10.1007/x", "", 1, ""), work("10.1007/y", "Y", 1, "")))
		case "2":
			fmt.Fprint(w, page(work("10.1007/z", "Z", 1, "")))
		default:
			t.Errorf("unexpected offset %q", offset)
		}
	}))
	defer ts.Close()

	res, err := newTestClient(ts).Search(context.Background(), Query{Bibliographic: "x"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"", "2"}, offsets)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "10.1007/y", res.Candidates[0].DOI)
	assert.Equal(t, "10.1007/z", res.Candidates[1].DOI)
}

func TestSearchRespectsMaxPages(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, page(work("10.1007/x", "", 1, "")))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	c.MaxPages = 2
	res, err := c.Search(context.Background(), Query{Bibliographic: "x"}, 1)
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSearchErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"invalid json", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"message":`)
		}},
		{"rate limited past retries", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			c := newTestClient(ts)
			c.MaxRetries = 1
			_, err := c.Search(context.Background(), Query{Bibliographic: "x"}, 1)
			assert.Error(t, err)
		})
	}
}

func TestSearchRejectsNonPositiveK(t *testing.T) {
	_, err := (&Client{}).Search(context.Background(), Query{}, 0)
	assert.Error(t, err)
}

func TestSearchRetriesAndCountsRequests(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, page(work("10.1007/ok", "T", 1, "")))
	}))
	defer ts.Close()

	m := observability.NewMetrics("test")
	c := newTestClient(ts)
	c.Metrics = m
	res, err := c.Search(context.Background(), Query{Bibliographic: "x"}, 1)
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)

	count := func(status int) float64 {
		return testutil.ToFloat64(m.CrossrefRequests.WithLabelValues(strconv.Itoa(status)))
	}
	assert.Equal(t, 1.0, count(http.StatusTooManyRequests))
	assert.Equal(t, 1.0, count(http.StatusOK))
}

func TestNewClient(t *testing.T) {
	c := NewClient(types.CrossrefConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "ua/1"},
		BaseURL:    "http://localhost:1/works",
		Mailto:     "a@b.c",
		RateLimit:  2,
		MaxRetries: 3,
		MaxPages:   4,
	}, zerolog.Nop(), nil)

	assert.Equal(t, 5*time.Second, c.HTTP.Timeout)
	assert.Equal(t, "ua/1", c.userAgent())
	assert.Equal(t, "http://localhost:1/works", c.BaseURL)
	require.NotNil(t, c.Limiter)
	assert.InDelta(t, 2.0, float64(c.Limiter.Limit()), 1e-9)

	c = NewClient(types.CrossrefConfig{}, zerolog.Nop(), nil)
	assert.Nil(t, c.Limiter)
	assert.Equal(t, 30*time.Second, c.HTTP.Timeout)
	assert.Equal(t, "doitools (https://github.com/kmccurley/cryptobib)", c.userAgent())
}
