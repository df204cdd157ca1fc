package report

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TobiSchelling/kpub/internal/database"
)

// MostCitedCount is how many publications the overview lists.
const MostCitedCount = 20

// MinFirstAuthorPapers is the threshold for the most active first authors.
const MinFirstAuthorPapers = 6

// Writer saves the full set of reports to a directory.
type Writer struct {
	db  *database.DB
	now func() time.Time
}

// NewWriter creates a new report writer.
func NewWriter(db *database.DB) *Writer {
	return &Writer{db: db, now: time.Now}
}

type listItem struct {
	file   string
	title  string
	filter database.Filter
}

// lists returns every publication list SaveAll writes.
func lists() []listItem {
	var items []listItem
	for _, byMonth := range []bool{true, false} {
		suffix, titleSuffix := "", ""
		if byMonth {
			suffix, titleSuffix = "-by-month", " by month"
		}
		items = append(items, listItem{
			file:  "kpub" + suffix,
			title: "Kepler/K2 publications" + titleSuffix,
		})
		for _, s := range database.Sciences {
			items = append(items, listItem{
				file:   fmt.Sprintf("kpub-%s%s", s, suffix),
				title:  fmt.Sprintf("Kepler/K2 %s publications%s", s, titleSuffix),
				filter: database.Filter{Science: s},
			})
		}
		for _, m := range database.Missions {
			items = append(items, listItem{
				file:   fmt.Sprintf("kpub-%s%s", m, suffix),
				title:  fmt.Sprintf("%s publications%s", MissionTitle(m), titleSuffix),
				filter: database.Filter{Mission: m},
			})
		}
	}
	return items
}

// SaveAll writes the publication lists, grouped by year and by month and
// split by science and mission, plus the overview page. Each Markdown file
// gets an HTML twin. It returns the paths written.
func (w *Writer) SaveAll(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var written []string
	for _, item := range lists() {
		rows, err := w.db.Query(item.filter)
		if err != nil {
			return written, err
		}
		markdown, err := PublicationList(rows, ListOptions{
			Title:        item.title,
			GroupByMonth: strings.HasSuffix(item.file, "-by-month"),
		})
		if err != nil {
			return written, err
		}
		paths, err := save(dir, item.file, item.title, markdown)
		written = append(written, paths...)
		if err != nil {
			return written, err
		}
	}

	markdown, err := w.overview()
	if err != nil {
		return written, err
	}
	paths, err := save(dir, "publications", "Kepler/K2 publications overview", markdown)
	written = append(written, paths...)
	return written, err
}

func (w *Writer) overview() (string, error) {
	metrics, err := w.db.GetMetrics(0)
	if err != nil {
		return "", err
	}
	cited, err := w.db.GetMostCited(database.Filter{}, MostCitedCount)
	if err != nil {
		return "", err
	}
	authors, err := w.db.GetMostActiveFirstAuthors(MinFirstAuthorPapers)
	if err != nil {
		return "", err
	}
	return Overview(OverviewData{
		Metrics:                metrics,
		MostCited:              cited,
		MostActiveFirstAuthors: authors,
		Now:                    w.now(),
	})
}

func save(dir, name, title, markdown string) ([]string, error) {
	mdPath := filepath.Join(dir, name+".md")
	log.Printf("Writing %s", mdPath)
	if err := os.WriteFile(mdPath, []byte(markdown), 0o644); err != nil {
		return nil, err
	}

	page, err := ToHTML(title, markdown)
	if err != nil {
		return []string{mdPath}, err
	}
	htmlPath := filepath.Join(dir, name+".html")
	log.Printf("Writing %s", htmlPath)
	if err := os.WriteFile(htmlPath, []byte(page), 0o644); err != nil {
		return []string{mdPath}, err
	}
	return []string{mdPath, htmlPath}, nil
}
