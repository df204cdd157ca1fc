package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/kpub/internal/database"
)

func TestArxivID(t *testing.T) {
	cases := []struct {
		name string
		doc  database.Document
		want string
	}{
		{"identifier", database.Document{"identifier": []any{"2015ApJ...1", "arXiv:1501.00001"}}, "1501.00001"},
		{"doi form", database.Document{"identifier": []any{"10.48550/arXiv.2101.12345"}}, "2101.12345"},
		{"old style", database.Document{"identifier": []any{"arXiv:astro-ph/0601001"}}, "astro-ph/0601001"},
		{"bibcode only", database.Document{"bibcode": "2015arXiv150100001X"}, ""},
		{"none", database.Document{"identifier": []any{"2015ApJ...1"}}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ArxivID(tc.doc))
		})
	}
}

func TestFetchAbstract(t *testing.T) {
	abstract := strings.Repeat("We present photometry of a transiting planet observed by K2. ", 5)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/1501.00001" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`<html><head><title>A K2 planet</title></head><body>
<article><h1>A K2 planet</h1><blockquote class="abstract"><p>` + abstract + `</p></blockquote></article>
</body></html>`))
	}))
	defer srv.Close()

	f := NewAbstractFetcher(0).WithBaseURL(srv.URL)
	doc := database.Document{"bibcode": "2015X", "identifier": []any{"arXiv:1501.00001"}}
	text, err := f.FetchAbstract(context.Background(), doc)
	require.NoError(t, err)
	require.Contains(t, text, "transiting planet observed by K2")

	_, err = f.FetchAbstract(context.Background(), database.Document{"bibcode": "2015Y", "identifier": []any{"arXiv:1501.99999"}})
	require.Error(t, err)

	_, err = f.FetchAbstract(context.Background(), database.Document{"bibcode": "2015Z"})
	require.ErrorIs(t, err, ErrNoArxivID)
}
