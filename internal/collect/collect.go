package collect

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/kpub/internal/ads"
	"github.com/TobiSchelling/kpub/internal/classify"
	"github.com/TobiSchelling/kpub/internal/config"
	"github.com/TobiSchelling/kpub/internal/database"
)

// Searcher is the part of the ADS client the collector needs.
type Searcher interface {
	Search(ctx context.Context, query string) ([]database.Document, error)
	Count(ctx context.Context, query string) (int, error)
	GetByIdentifier(ctx context.Context, id string) (database.Document, error)
}

// AbstractFetcher looks up an abstract ADS does not have.
type AbstractFetcher interface {
	FetchAbstract(ctx context.Context, doc database.Document) (string, error)
}

// Result holds the results of a review run.
type Result struct {
	TotalFound int
	Reviewed   int
	Added      int
	Duplicates int
	Ignored    int
	Skipped    int
	Errors     []string
}

// Merge adds the counts of o to r.
func (r *Result) Merge(o *Result) {
	r.TotalFound += o.TotalFound
	r.Reviewed += o.Reviewed
	r.Added += o.Added
	r.Duplicates += o.Duplicates
	r.Ignored += o.Ignored
	r.Skipped += o.Skipped
	r.Errors = append(r.Errors, o.Errors...)
}

// Collector finds candidate publications and hands them to a classifier.
type Collector struct {
	db          *database.DB
	ads         Searcher
	classifier  classify.Classifier
	rules       IgnoreRules
	adsDatabase string
	fetcher     AbstractFetcher
	feedParser  *FeedParser
}

// NewCollector creates a new publication collector.
func NewCollector(cfg *config.Config, db *database.DB, searcher Searcher, classifier classify.Classifier) *Collector {
	c := &Collector{
		db:          db,
		ads:         searcher,
		classifier:  classifier,
		rules:       IgnoreRules{Exclude: cfg.Update.Exclude},
		adsDatabase: cfg.Update.Database,
	}
	if c.adsDatabase == "" {
		c.adsDatabase = "astronomy"
	}

	if len(cfg.Feeds.Sources) > 0 {
		feeds := make([]FeedConfig, len(cfg.Feeds.Sources))
		for i, f := range cfg.Feeds.Sources {
			feeds[i] = FeedConfig{URL: f.URL, Name: f.Name}
		}
		c.feedParser = NewFeedParser(feeds, cfg.Feeds.Keywords)
	}

	return c
}

// SetAbstractFetcher enables the abstract fallback for keyword results
// that arrive without one.
func (c *Collector) SetAbstractFetcher(f AbstractFetcher) {
	c.fetcher = f
}

// ReviewAcknowledgements reviews every paper of month that acknowledges
// the missions. Only papers already in the store are passed over.
func (c *Collector) ReviewAcknowledgements(ctx context.Context, month string) (*Result, error) {
	log.Printf("Querying ADS for acknowledgements (month=%s)", month)
	docs, err := c.ads.Search(ctx, AcknowledgementQuery(month, c.adsDatabase))
	if err != nil {
		return nil, fmt.Errorf("searching acknowledgements: %w", err)
	}

	r := &Result{TotalFound: len(docs)}
	for i, doc := range docs {
		status := fmt.Sprintf("Showing article %d out of %d that mentions Kepler in the acknowledgements.", i+1, len(docs))
		if err := c.review(doc, status, r); err != nil {
			return r, err
		}
	}
	return r, nil
}

// ReviewAbstracts reviews the papers of month whose title or abstract
// mentions a Kepler or K2 target, after applying the ignore rules.
func (c *Collector) ReviewAbstracts(ctx context.Context, month string) (*Result, error) {
	log.Printf("Querying ADS for titles and abstracts (month=%s)", month)
	docs, err := c.ads.Search(ctx, AbstractQuery(month, c.adsDatabase))
	if err != nil {
		return nil, fmt.Errorf("searching abstracts: %w", err)
	}

	r := &Result{TotalFound: len(docs)}
	for i, doc := range docs {
		if !c.worthReviewing(ctx, doc, r) {
			continue
		}
		status := fmt.Sprintf("(Reviewing article %d out of %d.)", i+1, len(docs))
		if err := c.review(doc, status, r); err != nil {
			return r, err
		}
	}
	log.Printf("Finished reviewing all articles for %s", month)
	return r, nil
}

// ReviewFeeds reviews preprints from the configured arXiv feeds that
// mention a keyword, resolving each through ADS. An entry that cannot be
// resolved is recorded and skipped; auth and rate-limit errors end the run.
func (c *Collector) ReviewFeeds(ctx context.Context) (*Result, error) {
	r := &Result{}
	if c.feedParser == nil {
		return r, nil
	}

	log.Println("Collecting from arXiv feeds...")
	entries := c.feedParser.ParseAll(ctx)
	r.TotalFound = len(entries)

	for i, entry := range entries {
		doc, err := c.ads.GetByIdentifier(ctx, "arXiv:"+entry.ArxivID)
		if ads.IsNotFound(err) {
			log.Printf("Warning: arXiv:%s is not indexed by ADS yet", entry.ArxivID)
			r.Ignored++
			continue
		}
		if err != nil {
			if ads.IsAuthError(err) || ads.IsRateLimited(err) || ctx.Err() != nil {
				return r, fmt.Errorf("resolving arXiv:%s: %w", entry.ArxivID, err)
			}
			log.Printf("Warning: resolving arXiv:%s: %v", entry.ArxivID, err)
			r.Errors = append(r.Errors, fmt.Sprintf("arXiv:%s: %v", entry.ArxivID, err))
			continue
		}
		if !c.worthReviewing(ctx, doc, r) {
			continue
		}
		status := fmt.Sprintf("(Reviewing preprint %d out of %d from %s.)", i+1, len(entries), entry.Source)
		if err := c.review(doc, status, r); err != nil {
			return r, err
		}
	}
	return r, nil
}

// AddByBibcode looks up a bibcode and classifies it with cl, or with the
// collector's classifier when cl is nil.
func (c *Collector) AddByBibcode(ctx context.Context, bibcode string, cl classify.Classifier) (*Result, error) {
	if cl == nil {
		cl = c.classifier
	}

	doc, err := c.ads.GetByIdentifier(ctx, bibcode)
	if err != nil {
		return nil, err
	}

	r := &Result{TotalFound: 1}
	if doc.Bibcode() != bibcode {
		log.Printf("Warning: requested %s but ADS API returned %s", bibcode, doc.Bibcode())
	}
	if doc.HasProperty("NONARTICLE") {
		log.Printf("Warning: %s is not an article", doc.Bibcode())
	}

	if err := c.reviewWith(cl, doc, "", r); err != nil {
		return r, err
	}
	return r, nil
}

// Preview counts the candidates of month without reviewing them. Both
// searches run concurrently; the client's rate limiter still applies.
func (c *Collector) Preview(ctx context.Context, month string) (acknowledgements, abstracts int, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := c.ads.Count(gctx, AcknowledgementQuery(month, c.adsDatabase))
		acknowledgements = n
		return err
	})
	g.Go(func() error {
		n, err := c.ads.Count(gctx, AbstractQuery(month, c.adsDatabase))
		abstracts = n
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}
	return acknowledgements, abstracts, nil
}

// worthReviewing applies the ignore rules, fetching a missing abstract
// first when a fetcher is set.
func (c *Collector) worthReviewing(ctx context.Context, doc database.Document, r *Result) bool {
	if doc.String("abstract") == "" && c.fetcher != nil {
		if abstract, err := c.fetcher.FetchAbstract(ctx, doc); err == nil {
			doc["abstract"] = abstract
		} else {
			log.Printf("No abstract for %s: %v", doc.Bibcode(), err)
		}
	}

	if reason := c.rules.Reason(doc); reason != "" {
		log.Printf("Ignoring %s: %s", doc.Bibcode(), reason)
		r.Ignored++
		return false
	}
	return true
}

func (c *Collector) review(doc database.Document, status string, r *Result) error {
	return c.reviewWith(c.classifier, doc, status, r)
}

// reviewWith classifies one candidate and stores it. Store failures are
// recorded in r; classifier failures abort the review.
func (c *Collector) reviewWith(cl classify.Classifier, doc database.Document, status string, r *Result) error {
	known, err := c.db.Contains(doc)
	if err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", doc.Bibcode(), err))
		return nil
	}
	if known {
		log.Printf("%s is already in the database, skipping", doc.Bibcode())
		r.Duplicates++
		return nil
	}

	r.Reviewed++
	d, err := cl.Classify(doc, status)
	if err != nil {
		return fmt.Errorf("classifying %s: %w", doc.Bibcode(), err)
	}
	if d.Skip {
		r.Skipped++
		return nil
	}

	added, err := c.db.Insert(doc, d.Mission, d.Science)
	if err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", doc.Bibcode(), err))
		return nil
	}
	if added {
		r.Added++
	} else {
		r.Duplicates++
	}
	return nil
}
