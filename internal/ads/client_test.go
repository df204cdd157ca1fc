package ads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeADS serves total synthetic records in pages.
func fakeADS(t *testing.T, total int, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		require.Equal(t, "/search/query", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		rows, _ := strconv.Atoi(r.URL.Query().Get("rows"))
		var docs []map[string]any
		for i := start; i < total && i < start+rows; i++ {
			docs = append(docs, map[string]any{
				"id":             strconv.Itoa(i),
				"bibcode":        fmt.Sprintf("2015Test..%03d", i),
				"citation_count": i,
			})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"response": map[string]any{"numFound": total, "start": start, "docs": docs},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(url string, opts ...ClientOption) *Client {
	base := []ClientOption{WithToken("secret"), WithBaseURL(url), WithRateLimit(1000)}
	return NewClient(append(base, opts...)...)
}

func TestSearchPages(t *testing.T) {
	var requests atomic.Int32
	srv := fakeADS(t, 7, &requests)
	c := newTestClient(srv.URL, WithRows(3))

	docs, err := c.Search(context.Background(), "ack:\"Kepler mission\"")
	require.NoError(t, err)
	require.Len(t, docs, 7)
	require.Equal(t, int32(3), requests.Load())
	require.Equal(t, "2015Test..006", docs[6].Bibcode())

	n, ok := docs[4].Int("citation_count")
	require.True(t, ok)
	require.Equal(t, 4, n)
}

func TestSearchEmpty(t *testing.T) {
	var requests atomic.Int32
	srv := fakeADS(t, 0, &requests)
	c := newTestClient(srv.URL)

	docs, err := c.Search(context.Background(), "nothing")
	require.NoError(t, err)
	require.Empty(t, docs)
	require.Equal(t, int32(1), requests.Load())
}

func TestCount(t *testing.T) {
	var requests atomic.Int32
	srv := fakeADS(t, 42, &requests)
	c := newTestClient(srv.URL)

	n, err := c.Count(context.Background(), "anything")
	require.NoError(t, err)
	require.Equal(t, 42, n)
}

func TestGetByIdentifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == `identifier:"arXiv:1501.00001"` {
			w.Write([]byte(`{"response":{"numFound":1,"docs":[{"id":"9","bibcode":"2015arXiv150100001X"}]}}`))
			return
		}
		w.Write([]byte(`{"response":{"numFound":0,"docs":[]}}`))
	}))
	defer srv.Close()
	c := newTestClient(srv.URL)

	doc, err := c.GetByIdentifier(context.Background(), "arXiv:1501.00001")
	require.NoError(t, err)
	require.Equal(t, "2015arXiv150100001X", doc.Bibcode())

	_, err = c.GetByIdentifier(context.Background(), "2099Nope...1")
	require.True(t, IsNotFound(err))
}

func TestHTTPErrors(t *testing.T) {
	cases := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusUnauthorized, IsAuthError},
		{http.StatusForbidden, IsAuthError},
		{http.StatusTooManyRequests, IsRateLimited},
		{http.StatusBadRequest, func(err error) bool {
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.StatusCode == 400 && apiErr.Message == "bad query"
		}},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad query", tc.status)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Search(context.Background(), "q")
			require.Error(t, err)
			require.True(t, tc.check(err), "unexpected error: %v", err)
		})
	}
}

func TestInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Search(context.Background(), "q")
	require.ErrorIs(t, err, ErrInvalidResponse)
}

func TestMissingToken(t *testing.T) {
	c := NewClient(WithBaseURL("http://127.0.0.1:1"))
	_, err := c.Search(context.Background(), "q")
	require.ErrorIs(t, err, ErrNotConfigured)
	require.True(t, IsAuthError(err))
}

func TestCanceledContext(t *testing.T) {
	var requests atomic.Int32
	srv := fakeADS(t, 1, &requests)
	c := newTestClient(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Search(ctx, "q")
	require.Error(t, err)
	require.Equal(t, int32(0), requests.Load())
}

func TestURL(t *testing.T) {
	require.Equal(t, "https://ui.adsabs.harvard.edu/abs/2015ApJ...800...1A/abstract", URL("2015ApJ...800...1A"))
}
