package ads

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/TobiSchelling/kpub/internal/database"
)

const (
	// BaseURL is the ADS API base URL.
	BaseURL = "https://api.adsabs.harvard.edu/v1"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultRateLimit keeps well clear of the per-second burst limit.
	DefaultRateLimit = 2.0

	// DefaultRows is the page size of search requests.
	DefaultRows = 200
)

// Fields are the metadata fields requested for every record.
var Fields = []string{
	"date", "pub", "id", "volume", "links_data", "citation", "doi",
	"eid", "keyword_schema", "citation_count", "data", "data_facet",
	"year", "identifier", "keyword_norm", "reference", "abstract", "recid",
	"alternate_bibcode", "arxiv_class", "bibcode", "first_author_norm",
	"pubdate", "reader", "doctype", "doctype_facet_hier", "title", "pub_raw", "property",
	"author", "email", "orcid", "keyword", "author_norm",
	"cite_read_boost", "database", "classic_factor", "ack", "page",
	"first_author", "read_count", "indexstamp", "issue", "keyword_facet",
	"aff", "facility", "simbid",
}

// Client is a rate-limited HTTP client for the ADS search API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	token      string
	baseURL    string
	rows       int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithToken sets the API token.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithRateLimit sets the maximum number of requests per second.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithRows sets the page size used by Search.
func WithRows(rows int) ClientOption {
	return func(c *Client) {
		if rows > 0 {
			c.rows = rows
		}
	}
}

// NewClient creates a new ADS API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		baseURL:    BaseURL,
		rows:       DefaultRows,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchResponse struct {
	Response struct {
		NumFound int               `json:"numFound"`
		Start    int               `json:"start"`
		Docs     []json.RawMessage `json:"docs"`
	} `json:"response"`
	Error *struct {
		Msg  string `json:"msg"`
		Code int    `json:"code"`
	} `json:"error,omitempty"`
}

// Search runs query and returns every matching record, paging through the
// result set.
func (c *Client) Search(ctx context.Context, query string) ([]database.Document, error) {
	var docs []database.Document
	start := 0
	for {
		page, err := c.search(ctx, query, start, c.rows)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Response.Docs {
			doc, err := decodeDocument(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
			}
			docs = append(docs, doc)
		}
		start += len(page.Response.Docs)
		if len(page.Response.Docs) == 0 || start >= page.Response.NumFound {
			break
		}
	}
	return docs, nil
}

// Count returns the number of records matching query without fetching them.
func (c *Client) Count(ctx context.Context, query string) (int, error) {
	page, err := c.search(ctx, query, 0, 0)
	if err != nil {
		return 0, err
	}
	return page.Response.NumFound, nil
}

// GetByIdentifier looks up a single record by bibcode, DOI or arXiv id
// ("arXiv:1501.00001").
func (c *Client) GetByIdentifier(ctx context.Context, id string) (database.Document, error) {
	query := fmt.Sprintf("identifier:%q", id)
	page, err := c.search(ctx, query, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(page.Response.Docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	doc, err := decodeDocument(page.Response.Docs[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return doc, nil
}

func (c *Client) search(ctx context.Context, query string, start, rows int) (*searchResponse, error) {
	if c.token == "" {
		return nil, ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("fl", strings.Join(Fields, ","))
	params.Set("start", strconv.Itoa(start))
	params.Set("rows", strconv.Itoa(rows))
	params.Set("sort", "date desc, bibcode desc")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/search/query?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp, query); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if result.Error != nil {
		return nil, &APIError{StatusCode: result.Error.Code, Message: result.Error.Msg, Query: query}
	}
	return &result, nil
}

// checkHTTPErrors returns an error if the HTTP response indicates a problem.
func checkHTTPErrors(resp *http.Response, query string) error {
	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		return fmt.Errorf("%w: status %d", ErrAuthError, resp.StatusCode)
	}
	if resp.StatusCode == 429 {
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		message := strings.TrimSpace(string(msg))
		if message == "" {
			message = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: message, Query: query}
	}
	return nil
}

// decodeDocument keeps numbers as json.Number so integer counts survive
// the round trip into the store unchanged.
func decodeDocument(raw json.RawMessage) (database.Document, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var doc database.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// URL returns the ADS abstract page of a bibcode.
func URL(bibcode string) string {
	return "https://ui.adsabs.harvard.edu/abs/" + url.PathEscape(bibcode) + "/abstract"
}
