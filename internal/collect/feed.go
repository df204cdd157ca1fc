package collect

import (
	"context"
	"html"
	"log"
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

// FeedEntry is a preprint announced in an arXiv feed.
type FeedEntry struct {
	URL     string
	Title   string
	Content string
	Source  string
	ArxivID string
}

// FeedConfig represents a single feed configuration.
type FeedConfig struct {
	URL  string
	Name string
}

var (
	arxivIDInLink = regexp.MustCompile(`(\d{4}\.\d{4,5})(?:v\d+)?`)
	textPolicy    = bluemonday.StrictPolicy()
)

// FeedParser reads arXiv RSS/Atom feeds and keeps entries mentioning one of
// the keywords.
type FeedParser struct {
	feeds    []FeedConfig
	keywords []*regexp.Regexp
	parser   *gofeed.Parser
}

// NewFeedParser creates a new FeedParser. Keywords match whole words,
// case-insensitively.
func NewFeedParser(feeds []FeedConfig, keywords []string) *FeedParser {
	fp := &FeedParser{feeds: feeds, parser: gofeed.NewParser()}
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		fp.keywords = append(fp.keywords, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(k)+`\b`))
	}
	return fp
}

// ParseAll parses all configured feeds and returns matching entries, one
// per arXiv id.
func (fp *FeedParser) ParseAll(ctx context.Context) []FeedEntry {
	seen := make(map[string]struct{})
	var all []FeedEntry

	for _, fc := range fp.feeds {
		name := fc.Name
		if name == "" {
			name = extractSourceName(fc.URL)
		}

		entries, err := fp.parseFeed(ctx, fc.URL, name)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", fc.URL, err)
			continue
		}

		kept := 0
		for _, e := range entries {
			if _, dup := seen[e.ArxivID]; dup {
				continue
			}
			seen[e.ArxivID] = struct{}{}
			all = append(all, e)
			kept++
		}
		log.Printf("Parsed %d matching entries from %s", kept, name)
	}

	return all
}

func (fp *FeedParser) parseFeed(ctx context.Context, feedURL, sourceName string) ([]FeedEntry, error) {
	feed, err := fp.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	var entries []FeedEntry
	for _, item := range feed.Items {
		entry := parseItem(item, sourceName)
		if entry == nil || !fp.matches(entry) {
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

func (fp *FeedParser) matches(e *FeedEntry) bool {
	if len(fp.keywords) == 0 {
		return true
	}
	for _, re := range fp.keywords {
		if re.MatchString(e.Title) || re.MatchString(e.Content) {
			return true
		}
	}
	return false
}

func parseItem(item *gofeed.Item, source string) *FeedEntry {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}

	id := arxivIDInLink.FindStringSubmatch(itemURL)
	if id == nil {
		id = arxivIDInLink.FindStringSubmatch(item.GUID)
	}
	if id == nil {
		return nil
	}

	title := stripHTML(item.Title)
	if title == "" {
		return nil
	}

	var content string
	if item.Content != "" {
		content = stripHTML(item.Content)
	} else if item.Description != "" {
		content = stripHTML(item.Description)
	}

	return &FeedEntry{
		URL:     itemURL,
		Title:   title,
		Content: content,
		Source:  source,
		ArxivID: id[1],
	}
}

func stripHTML(text string) string {
	s := html.UnescapeString(textPolicy.Sanitize(text))
	return strings.Join(strings.Fields(s), " ")
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}
	// arXiv feeds are named after their category: .../rss/astro-ph.EP
	if base := strings.Trim(u.Path, "/"); base != "" {
		parts := strings.Split(base, "/")
		return "arXiv " + parts[len(parts)-1]
	}
	return u.Hostname()
}
