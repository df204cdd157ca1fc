package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/TobiSchelling/kpub/internal/database"
)

// ErrNoArxivID is returned for records without an arXiv identifier.
var ErrNoArxivID = errors.New("no arXiv identifier")

const arxivAbsURL = "https://arxiv.org/abs/"

var arxivIDPattern = regexp.MustCompile(`(?i)arxiv[:.](\d{4}\.\d{4,5}|[a-z\-]+(?:\.[A-Z]{2})?/\d{7})`)

// AbstractFetcher fills in abstracts that ADS does not carry yet, using the
// arXiv abstract page of the preprint.
type AbstractFetcher struct {
	client  *http.Client
	baseURL string
}

// NewAbstractFetcher creates a new abstract fetcher.
func NewAbstractFetcher(timeout time.Duration) *AbstractFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &AbstractFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		baseURL: arxivAbsURL,
	}
}

// WithBaseURL points the fetcher at another abstract page host (for testing).
func (f *AbstractFetcher) WithBaseURL(u string) *AbstractFetcher {
	f.baseURL = strings.TrimRight(u, "/") + "/"
	return f
}

// ArxivID returns the arXiv identifier of a record, or "".
func ArxivID(doc database.Document) string {
	for _, id := range doc.Strings("identifier") {
		if m := arxivIDPattern.FindStringSubmatch(id); m != nil {
			return m[1]
		}
	}
	return ""
}

// FetchAbstract returns the text of the arXiv abstract page of doc.
func (f *AbstractFetcher) FetchAbstract(ctx context.Context, doc database.Document) (string, error) {
	id := ArxivID(doc)
	if id == "" {
		return "", fmt.Errorf("%w: %s", ErrNoArxivID, doc.Bibcode())
	}

	pageURL := f.baseURL + id
	text, err := f.fetchPageText(ctx, pageURL)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("no extractable abstract at %s", pageURL)
	}
	log.Printf("Fetched abstract for %s from %s", doc.Bibcode(), pageURL)
	return text, nil
}

func (f *AbstractFetcher) fetchPageText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "kpub/1.0 (publication database)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode, url: pageURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return "", err
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	text = strings.TrimPrefix(text, "Abstract: ")
	if len(text) > 100 {
		return text, nil
	}
	return "", nil
}

type httpError struct {
	code int
	url  string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("%s: %s", e.url, http.StatusText(e.code))
}
