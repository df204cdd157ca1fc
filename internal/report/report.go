// Package report renders the publication list and overview as Markdown
// and HTML.
package report

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/TobiSchelling/kpub/internal/ads"
	"github.com/TobiSchelling/kpub/internal/database"
)

//go:embed templates/*
var templateFS embed.FS

var (
	funcs = template.FuncMap{
		"percent": func(f float64) string { return strconv.FormatFloat(f*100, 'f', 1, 64) + "%" },
	}
	listTmpl     = template.Must(template.New("list.md").Funcs(funcs).ParseFS(templateFS, "templates/list.md"))
	overviewTmpl = template.Must(template.New("overview.md").Funcs(funcs).ParseFS(templateFS, "templates/overview.md"))
	pageTmpl     = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/page.html"))

	md = goldmark.New(goldmark.WithExtensions(extension.Table))

	policy = bluemonday.UGCPolicy()

	titleConverter = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)

	titleCase = cases.Title(language.English)
)

// ListOptions controls PublicationList.
type ListOptions struct {
	Title        string
	GroupByMonth bool
}

// Entry is one publication as shown in a report.
type Entry struct {
	Index     int
	Title     string
	Authors   string
	Pub       string
	Refereed  bool
	Citations string
	Bibcode   string
	URL       string
}

// Group is a run of publications sharing a year or month.
type Group struct {
	Key     string
	Label   string
	Entries []Entry
}

// GroupRows groups query rows by year, or by month, keeping query order.
// An unknown month ("2015-00") is shown as January.
func GroupRows(rows []database.Row, byMonth bool) []Group {
	var groups []Group
	index := make(map[string]int)
	for _, row := range rows {
		key := row.Year
		label := row.Year
		if byMonth {
			key = database.NormalizeMonth(row.Month)
			label = database.FormatMonthDisplay(key)
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key, Label: label})
		}
		g := &groups[i]
		entry := NewEntry(row.Metrics)
		entry.Index = len(g.Entries) + 1
		g.Entries = append(g.Entries, entry)
	}
	return groups
}

// NewEntry prepares a document for display.
func NewEntry(doc database.Document) Entry {
	e := Entry{
		Title:    MarkdownTitle(doc.Title()),
		Authors:  authorLine(doc),
		Pub:      doc.String("pub"),
		Refereed: doc.IsRefereed(),
		Bibcode:  doc.Bibcode(),
		URL:      ads.URL(doc.Bibcode()),
	}
	if n, ok := doc.Int("citation_count"); ok {
		e.Citations = strconv.Itoa(n)
	}
	return e
}

// MarkdownTitle converts an ADS title, which may carry HTML markup such as
// <SUP> or <i>, to Markdown.
func MarkdownTitle(title string) string {
	if !strings.Contains(title, "<") {
		return strings.TrimSpace(title)
	}
	out, err := titleConverter.ConvertString(title)
	if err != nil {
		return strings.TrimSpace(title)
	}
	return strings.Join(strings.Fields(out), " ")
}

func authorLine(doc database.Document) string {
	authors := doc.Strings("author_norm")
	if len(authors) == 0 {
		authors = doc.Strings("author")
	}
	switch len(authors) {
	case 0:
		return "Unknown author"
	case 1:
		return authors[0]
	case 2:
		return authors[0] + " & " + authors[1]
	}
	return authors[0] + " et al."
}

// PublicationList renders query rows as a Markdown publication list.
func PublicationList(rows []database.Row, opts ListOptions) (string, error) {
	title := opts.Title
	if title == "" {
		title = "Publications"
	}
	data := struct {
		Title  string
		Total  int
		Groups []Group
	}{title, len(rows), GroupRows(rows, opts.GroupByMonth)}

	var buf bytes.Buffer
	if err := listTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering publication list: %w", err)
	}
	return buf.String(), nil
}

// OverviewData feeds the overview page.
type OverviewData struct {
	Metrics                *database.Metrics
	MostCited              []database.Document
	MostActiveFirstAuthors []database.AuthorCount
	Now                    time.Time
}

// Overview renders the overview page: headline metrics, the most cited
// publications and the most active first authors.
func Overview(data OverviewData) (string, error) {
	if data.Metrics == nil {
		data.Metrics = &database.Metrics{}
	}
	cited := make([]Entry, len(data.MostCited))
	for i, doc := range data.MostCited {
		cited[i] = NewEntry(doc)
		cited[i].Index = i + 1
		if cited[i].Citations == "" {
			cited[i].Citations = "0"
		}
	}

	view := struct {
		Metrics                *database.Metrics
		MostCited              []Entry
		MostActiveFirstAuthors []database.AuthorCount
		Now                    time.Time
	}{data.Metrics, cited, data.MostActiveFirstAuthors, data.Now}

	var buf bytes.Buffer
	if err := overviewTmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("rendering overview: %w", err)
	}
	return buf.String(), nil
}

// RenderMarkdown converts Markdown to sanitized HTML.
func RenderMarkdown(markdown string) (htmltemplate.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return htmltemplate.HTML(policy.SanitizeBytes(buf.Bytes())), nil
}

// ToHTML renders Markdown as a standalone HTML page.
func ToHTML(title, markdown string) (string, error) {
	body, err := RenderMarkdown(markdown)
	if err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	var buf bytes.Buffer
	err = pageTmpl.Execute(&buf, struct {
		Title string
		Body  htmltemplate.HTML
	}{title, body})
	if err != nil {
		return "", fmt.Errorf("rendering page: %w", err)
	}
	return buf.String(), nil
}

// MissionTitle returns the display name of a mission, e.g. "Kepler".
func MissionTitle(m database.Mission) string {
	return titleCase.String(string(m))
}
