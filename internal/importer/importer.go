// Package importer moves classifications in and out of the store as CSV.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/TobiSchelling/kpub/internal/ads"
	"github.com/TobiSchelling/kpub/internal/classify"
	"github.com/TobiSchelling/kpub/internal/collect"
	"github.com/TobiSchelling/kpub/internal/database"
)

// MaxAttempts is how often a row is tried before it is given up.
const MaxAttempts = 5

// Adder resolves a bibcode and stores it with the classifier's tags.
type Adder interface {
	AddByBibcode(ctx context.Context, bibcode string, cl classify.Classifier) (*collect.Result, error)
}

// Result holds the results of an import run.
type Result struct {
	Rows       int
	Added      int
	Duplicates int
	Failed     []string
}

// Importer batch-imports "bibcode,mission,science" rows.
type Importer struct {
	adder Adder
	delay time.Duration
}

// New creates an Importer. delay is the pause between rows and between
// retries.
func New(adder Adder, delay time.Duration) *Importer {
	return &Importer{adder: adder, delay: delay}
}

// Import reads CSV rows from r and adds each one. A malformed row or a row
// that keeps failing is recorded in the result and skipped.
func (im *Importer) Import(ctx context.Context, r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	res := &Result{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			res.Rows++
			log.Printf("Warning: skipping malformed row: %v", err)
			res.Failed = append(res.Failed, fmt.Sprintf("line %d: %v", parseErr.Line, parseErr.Err))
			continue
		}
		if err != nil {
			return res, fmt.Errorf("reading csv: %w", err)
		}
		if len(record) == 0 || strings.TrimSpace(record[0]) == "" {
			continue
		}
		res.Rows++

		if err := im.importRow(ctx, record, res); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Printf("Warning: giving up on %s: %v", record[0], err)
			res.Failed = append(res.Failed, fmt.Sprintf("%s: %v", record[0], err))
		}
		im.sleep(ctx)
	}

	log.Printf("Import complete: %d rows, %d added, %d duplicates, %d failed",
		res.Rows, res.Added, res.Duplicates, len(res.Failed))
	return res, nil
}

func (im *Importer) importRow(ctx context.Context, record []string, res *Result) error {
	bibcode := strings.TrimSpace(record[0])
	mission, science := field(record, 1), field(record, 2)
	cl, err := classify.NewFixed(mission, science)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		r, err := im.adder.AddByBibcode(ctx, bibcode, cl)
		if err == nil {
			res.Added += r.Added
			res.Duplicates += r.Duplicates
			if len(r.Errors) > 0 {
				return errors.New(strings.Join(r.Errors, "; "))
			}
			return nil
		}
		lastErr = err
		if ads.IsNotFound(err) || ads.IsAuthError(err) || ctx.Err() != nil {
			break
		}
		log.Printf("Warning: attempt #%d for %s: %v", attempt, bibcode, err)
		im.sleep(ctx)
	}
	return lastErr
}

func (im *Importer) sleep(ctx context.Context) {
	if im.delay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(im.delay):
	}
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// ExportCSV writes "bibcode,mission,science" for every stored publication,
// unrelated ones included, ordered by bibcode.
func ExportCSV(db *database.DB, w io.Writer) error {
	classes, err := db.GetClassifications()
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	for _, c := range classes {
		if err := cw.Write([]string{c.Bibcode, string(c.Mission), string(c.Science)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
