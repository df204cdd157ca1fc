package importer

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/kpub/internal/database"
)

// SpreadsheetColumns is the header of the spreadsheet export.
var SpreadsheetColumns = []string{
	"bibcode", "year", "date", "mission", "science", "refereed",
	"citation_count", "citations_per_year", "read_count", "first_author_norm",
	"title", "keyword_norm", "abstract", "co_author_norm",
}

// ExportSpreadsheet writes one CSV row per kepler/k2 publication, ordered by
// bibcode. now anchors the citations-per-year column.
func ExportSpreadsheet(db *database.DB, w io.Writer, now time.Time) error {
	rows, err := db.GetSpreadsheetRows()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(SpreadsheetColumns); err != nil {
		return err
	}
	for _, r := range rows {
		doc := r.Metrics
		record := []string{
			r.Bibcode,
			r.Year,
			r.Date,
			string(r.Mission),
			string(r.Science),
			refereedLabel(doc),
			intField(doc, "citation_count"),
			strconv.FormatFloat(citationsPerYear(doc, r.Date, now), 'f', 2, 64),
			intField(doc, "read_count"),
			doc.String("first_author_norm"),
			doc.Title(),
			strings.Join(doc.Strings("keyword_norm"), "; "),
			doc.String("abstract"),
			strings.Join(doc.Strings("author_norm"), "; "),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func refereedLabel(doc database.Document) string {
	switch {
	case doc.HasProperty("REFEREED"):
		return "REFEREED"
	case doc.HasProperty("NOT REFEREED"):
		return "NOT REFEREED"
	}
	return ""
}

func intField(doc database.Document, key string) string {
	n, ok := doc.Int(key)
	if !ok {
		return ""
	}
	return strconv.Itoa(n)
}

// citationsPerYear divides the citation count by the age of the
// publication in years, rounded to two decimals. Missing counts and
// publications younger than a day yield 0.
func citationsPerYear(doc database.Document, date string, now time.Time) float64 {
	citations, ok := doc.Int("citation_count")
	if !ok {
		return 0
	}
	published, err := database.PublicationTime(date)
	if err != nil {
		return 0
	}
	days := int(now.Sub(published).Hours() / 24)
	if days <= 0 {
		return 0
	}
	return math.Round(float64(citations)/(float64(days)/365)*100) / 100
}
