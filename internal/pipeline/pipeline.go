package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/TobiSchelling/kpub/internal/collect"
	"github.com/TobiSchelling/kpub/internal/database"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
	// Optional steps report errors as warnings; the run still completes.
	Optional bool
}

// Result holds the results of a full update run.
type Result struct {
	Month  string
	Steps  []StepResult
	Totals collect.Result
}

// Failed reports whether a required step failed.
func (r *Result) Failed() bool {
	for _, s := range r.Steps {
		if s.Err != nil && !s.Optional {
			return true
		}
	}
	return false
}

// Pipeline runs the monthly update: acknowledgements, then titles and
// abstracts, then the arXiv feeds, then records the run.
type Pipeline struct {
	db        *database.DB
	collector *collect.Collector
}

// New creates a new pipeline.
func New(db *database.DB, collector *collect.Collector) *Pipeline {
	return &Pipeline{db: db, collector: collector}
}

// Run reviews the candidates of month. A failing ADS step stops the run
// before anything is recorded; a failing feed step does not.
func (p *Pipeline) Run(ctx context.Context, month string) *Result {
	r := &Result{Month: month}

	log.Printf("Step 1/4: Papers of %s that acknowledge Kepler/K2...", month)
	res, err := p.collector.ReviewAcknowledgements(ctx, month)
	r.Steps = append(r.Steps, p.step("Acknowledgements", res, err, r))
	if err != nil {
		return r
	}

	log.Printf("Step 2/4: Papers of %s that mention Kepler/K2 in the title or abstract...", month)
	res, err = p.collector.ReviewAbstracts(ctx, month)
	r.Steps = append(r.Steps, p.step("Titles & abstracts", res, err, r))
	if err != nil {
		return r
	}

	log.Println("Step 3/4: Recent arXiv preprints...")
	res, err = p.collector.ReviewFeeds(ctx)
	feeds := p.step("arXiv feeds", res, err, r)
	feeds.Optional = true
	r.Steps = append(r.Steps, feeds)

	log.Println("Step 4/4: Recording update run...")
	r.Steps = append(r.Steps, p.record(month, r.Totals))
	return r
}

// DryRun reports how many candidates each search would return.
func (p *Pipeline) DryRun(ctx context.Context, month string) *Result {
	r := &Result{Month: month}

	ack, abs, err := p.collector.Preview(ctx, month)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Preview", Err: err})
		return r
	}

	r.Steps = append(r.Steps,
		StepResult{
			Name:    "Acknowledgements",
			Summary: fmt.Sprintf("[dry-run] %d papers acknowledge Kepler/K2 in %s", ack, month),
		},
		StepResult{
			Name:    "Titles & abstracts",
			Summary: fmt.Sprintf("[dry-run] %d papers mention Kepler/K2 in %s", abs, month),
		},
	)

	last, err := p.db.GetLastUpdateRun()
	switch {
	case err != nil:
		r.Steps = append(r.Steps, StepResult{Name: "Record", Err: err})
	case last != nil:
		r.Steps = append(r.Steps, StepResult{
			Name:    "Record",
			Summary: fmt.Sprintf("[dry-run] Last update reviewed %s", last.Month),
		})
	default:
		r.Steps = append(r.Steps, StepResult{
			Name:    "Record",
			Summary: "[dry-run] No previous update runs",
		})
	}
	return r
}

func (p *Pipeline) step(name string, res *collect.Result, err error, r *Result) StepResult {
	if res != nil {
		r.Totals.Merge(res)
	}
	if err != nil {
		return StepResult{Name: name, Err: err}
	}
	for _, e := range res.Errors {
		log.Printf("Warning: %s", e)
	}
	return StepResult{
		Name: name,
		Summary: fmt.Sprintf("Found %d, reviewed %d, added %d (%d duplicates, %d ignored, %d skipped)",
			res.TotalFound, res.Reviewed, res.Added, res.Duplicates, res.Ignored, res.Skipped),
	}
}

func (p *Pipeline) record(month string, totals collect.Result) StepResult {
	if err := p.db.RecordUpdateRun(month, totals.Reviewed, totals.Added); err != nil {
		return StepResult{Name: "Record", Err: fmt.Errorf("recording update run: %w", err)}
	}
	return StepResult{
		Name:    "Record",
		Summary: fmt.Sprintf("Recorded %s: %d reviewed, %d added", month, totals.Reviewed, totals.Added),
	}
}
