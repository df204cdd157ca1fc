package collect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/kpub/internal/ads"
	"github.com/TobiSchelling/kpub/internal/classify"
	"github.com/TobiSchelling/kpub/internal/config"
	"github.com/TobiSchelling/kpub/internal/database"
)

type fakeADS struct {
	results map[string][]database.Document
	byID    map[string]database.Document
	idErrs  map[string]error
	queries []string
}

func (f *fakeADS) Search(_ context.Context, query string) ([]database.Document, error) {
	f.queries = append(f.queries, query)
	return f.results[query], nil
}

func (f *fakeADS) Count(_ context.Context, query string) (int, error) {
	return len(f.results[query]), nil
}

func (f *fakeADS) GetByIdentifier(_ context.Context, id string) (database.Document, error) {
	if err, ok := f.idErrs[id]; ok {
		return nil, err
	}
	doc, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ads.ErrNotFound, id)
	}
	return doc, nil
}

// scripted answers with the given decisions in order and records what it saw.
type scripted struct {
	answers []classify.Decision
	seen    []string
}

func (s *scripted) Classify(doc database.Document, _ string) (classify.Decision, error) {
	s.seen = append(s.seen, doc.Bibcode())
	if len(s.answers) == 0 {
		return classify.Decision{}, io.EOF
	}
	d := s.answers[0]
	s.answers = s.answers[1:]
	return d, nil
}

type fakeFetcher map[string]string

func (f fakeFetcher) FetchAbstract(_ context.Context, doc database.Document) (string, error) {
	if text, ok := f[doc.Bibcode()]; ok {
		return text, nil
	}
	return "", errors.New("not found")
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testConfig() *config.Config {
	return &config.Config{Update: config.Update{
		Database: "astronomy",
		Exclude:  []string{"keplerian", "kepler's equation"},
	}}
}

func paper(bibcode, abstract string, props ...string) database.Document {
	if len(props) == 0 {
		props = []string{"REFEREED", "ARTICLE"}
	}
	list := make([]any, len(props))
	for i, p := range props {
		list[i] = p
	}
	doc := database.Document{
		"id":       "id-" + bibcode,
		"bibcode":  bibcode,
		"year":     "2016",
		"pubdate":  "2016-03-00",
		"title":    []any{"Paper " + bibcode},
		"property": list,
	}
	if abstract != "" {
		doc["abstract"] = abstract
	}
	return doc
}

var (
	keplerExo = classify.Decision{Mission: database.MissionKepler, Science: database.ScienceExoplanets}
	k2Astro   = classify.Decision{Mission: database.MissionK2, Science: database.ScienceAstrophysics}
)

func TestQueries(t *testing.T) {
	ack := AcknowledgementQuery("2016-03", "astronomy")
	require.Contains(t, ack, `ack:"Kepler mission" OR ack:"K2 mission" OR ack:"Kepler team" OR ack:"K2 team"`)
	require.Contains(t, ack, `-ack:"partial support from"`)
	require.Contains(t, ack, `pubdate:"2016-03" database:"astronomy"`)

	abs := AbstractQuery("2016-03", "astronomy")
	require.True(t, strings.HasPrefix(abs, `(abs:"Kepler" OR abs:"K2"`))
	require.Contains(t, abs, `OR full:"K2 lightcurve") pubdate:"2016-03" database:"astronomy"`)
	require.Contains(t, abs, `abs:"NGC 6819"`)
}

func TestIgnoreRules(t *testing.T) {
	rules := IgnoreRules{Exclude: []string{"Keplerian", "xmm-newton"}}
	arxiv := paper("2016arXiv160300001A", "A K2 planet.", "NOT REFEREED", "EPRINT_OPENACCESS")
	arxiv["pub"] = "arXiv e-prints"
	unrefereed := paper("2016AAS...22712345A", "A K2 planet.", "NOT REFEREED")
	unrefereed["pub"] = "American Astronomical Society Meeting Abstracts"

	cases := []struct {
		name   string
		doc    database.Document
		reason string
	}{
		{"plain", paper("2016ApJ...1A", "Kepler photometry of a star."), ""},
		{"no abstract", paper("2016ApJ...2A", ""), "no abstract"},
		{"excluded term any case", paper("2016ApJ...3A", "Solving KEPLERIAN orbits."), `abstract mentions "Keplerian"`},
		{"unrefereed arxiv kept", arxiv, ""},
		{"unrefereed meeting", unrefereed, "not refereed"},
		{"proposal", paper("2016hst..prop.1234A", "K2 targets."), "proposal or COSPAR abstract"},
		{"cospar", paper("2016cosp...41E..1A", "K2 targets."), "proposal or COSPAR abstract"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.reason, rules.Reason(tc.doc))
		})
	}
}

func TestReviewAcknowledgements(t *testing.T) {
	db := openTestDB(t)
	known := paper("2016KNOWN", "")
	ok, err := db.Insert(known, database.MissionKepler, database.ScienceExoplanets)
	require.NoError(t, err)
	require.True(t, ok)

	fake := &fakeADS{results: map[string][]database.Document{
		AcknowledgementQuery("2016-03", "astronomy"): {
			paper("2016A", ""), known, paper("2016B", ""), paper("2016C", ""),
		},
	}}
	cl := &scripted{answers: []classify.Decision{keplerExo, classify.Skip, k2Astro}}
	c := NewCollector(testConfig(), db, fake, cl)

	r, err := c.ReviewAcknowledgements(context.Background(), "2016-03")
	require.NoError(t, err)
	require.Equal(t, 4, r.TotalFound)
	require.Equal(t, 3, r.Reviewed)
	require.Equal(t, 2, r.Added)
	require.Equal(t, 1, r.Skipped)
	require.Equal(t, 1, r.Duplicates)
	require.Equal(t, []string{"2016A", "2016B", "2016C"}, cl.seen)

	rows, err := db.Query(database.Filter{Mission: database.MissionK2})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "2016C", rows[0].Bibcode)
}

func TestReviewAbstractsAppliesRules(t *testing.T) {
	db := openTestDB(t)
	fake := &fakeADS{results: map[string][]database.Document{
		AbstractQuery("2016-03", "astronomy"): {
			paper("2016GOOD", "We use K2 photometry."),
			paper("2016NOABS", ""),
			paper("2016ORBIT", "A keplerian disk."),
			paper("2016FETCH", ""),
			paper("2016hst..prop.1A", "K2 targets."),
		},
	}}
	cl := &scripted{answers: []classify.Decision{k2Astro, keplerExo}}
	c := NewCollector(testConfig(), db, fake, cl)
	c.SetAbstractFetcher(fakeFetcher{"2016FETCH": "Kepler asteroseismology."})

	r, err := c.ReviewAbstracts(context.Background(), "2016-03")
	require.NoError(t, err)
	require.Equal(t, 5, r.TotalFound)
	require.Equal(t, 3, r.Ignored)
	require.Equal(t, 2, r.Added)
	require.Equal(t, []string{"2016GOOD", "2016FETCH"}, cl.seen)

	docs, err := db.GetAll(database.Filter{Mission: database.MissionKepler})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "Kepler asteroseismology.", docs[0].String("abstract"))
}

func TestReviewStopsWhenClassifierFails(t *testing.T) {
	db := openTestDB(t)
	fake := &fakeADS{results: map[string][]database.Document{
		AcknowledgementQuery("2016-03", "astronomy"): {paper("2016A", ""), paper("2016B", "")},
	}}
	cl := &scripted{answers: []classify.Decision{keplerExo}}
	c := NewCollector(testConfig(), db, fake, cl)

	r, err := c.ReviewAcknowledgements(context.Background(), "2016-03")
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, 1, r.Added)
}

func TestReviewRecordsInvalidRecords(t *testing.T) {
	db := openTestDB(t)
	broken := paper("2016BROKEN", "")
	delete(broken, "year")
	fake := &fakeADS{results: map[string][]database.Document{
		AcknowledgementQuery("2016-03", "astronomy"): {broken, paper("2016OK", "")},
	}}
	cl := &scripted{answers: []classify.Decision{keplerExo, keplerExo}}
	c := NewCollector(testConfig(), db, fake, cl)

	r, err := c.ReviewAcknowledgements(context.Background(), "2016-03")
	require.NoError(t, err)
	require.Len(t, r.Errors, 1)
	require.Contains(t, r.Errors[0], "2016BROKEN")
	require.Equal(t, 1, r.Added)
}

func TestAddByBibcode(t *testing.T) {
	db := openTestDB(t)
	fake := &fakeADS{byID: map[string]database.Document{
		"2016ApJ...1A": paper("2016ApJ...1A", ""),
		"2016OLD":      paper("2016NEW", ""),
	}}
	c := NewCollector(testConfig(), db, fake, &scripted{})

	fixed, err := classify.NewFixed("k2", "exoplanets")
	require.NoError(t, err)

	r, err := c.AddByBibcode(context.Background(), "2016ApJ...1A", fixed)
	require.NoError(t, err)
	require.Equal(t, 1, r.Added)

	r, err = c.AddByBibcode(context.Background(), "2016ApJ...1A", fixed)
	require.NoError(t, err)
	require.Equal(t, 0, r.Added)
	require.Equal(t, 1, r.Duplicates)

	// ADS may resolve an old bibcode to its canonical one.
	r, err = c.AddByBibcode(context.Background(), "2016OLD", fixed)
	require.NoError(t, err)
	require.Equal(t, 1, r.Added)
	found, _ := db.Contains(database.Document{"bibcode": "2016NEW"})
	require.True(t, found)

	_, err = c.AddByBibcode(context.Background(), "2099MISSING", fixed)
	require.True(t, ads.IsNotFound(err))
}

func TestPreview(t *testing.T) {
	db := openTestDB(t)
	fake := &fakeADS{results: map[string][]database.Document{
		AcknowledgementQuery("2016-03", "astronomy"): {paper("A", "")},
		AbstractQuery("2016-03", "astronomy"):        {paper("B", ""), paper("C", "")},
	}}
	c := NewCollector(testConfig(), db, fake, &scripted{})

	ack, abs, err := c.Preview(context.Background(), "2016-03")
	require.NoError(t, err)
	require.Equal(t, 1, ack)
	require.Equal(t, 2, abs)
}

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>astro-ph.EP updates on arXiv.org</title>
<link>http://arxiv.org/</link>
<item>
  <title>A hot Jupiter from Kepler</title>
  <link>https://arxiv.org/abs/2401.00001</link>
  <description>&lt;p&gt;We characterize a planet.&lt;/p&gt;</description>
  <guid>oai:arXiv.org:2401.00001v1</guid>
</item>
<item>
  <title>Dust in protoplanetary disks</title>
  <link>https://arxiv.org/abs/2401.00002</link>
  <description>Nothing relevant.</description>
</item>
<item>
  <title>Stellar rotation</title>
  <link>https://arxiv.org/abs/2401.00003</link>
  <description>Using &lt;b&gt;K2&lt;/b&gt; light curves.</description>
</item>
<item>
  <title>Keplerian orbits revisited</title>
  <link>https://arxiv.org/abs/2401.00004</link>
  <description>Celestial mechanics.</description>
</item>
</channel>
</rss>`

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testFeed))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFeedParser(t *testing.T) {
	srv := feedServer(t)
	fp := NewFeedParser([]FeedConfig{{URL: srv.URL + "/rss/astro-ph.EP"}, {URL: srv.URL + "/rss/astro-ph.EP"}}, []string{"Kepler", "K2"})

	entries := fp.ParseAll(context.Background())
	require.Len(t, entries, 2)
	require.Equal(t, "2401.00001", entries[0].ArxivID)
	require.Equal(t, "We characterize a planet.", entries[0].Content)
	require.Equal(t, "arXiv astro-ph.EP", entries[0].Source)
	require.Equal(t, "2401.00003", entries[1].ArxivID)
	require.Equal(t, "Using K2 light curves.", entries[1].Content)
}

func TestReviewFeeds(t *testing.T) {
	srv := feedServer(t)
	db := openTestDB(t)

	preprint := paper("2024arXiv240100001A", "We characterize a Kepler planet.", "NOT REFEREED")
	preprint["pub"] = "arXiv e-prints"
	fake := &fakeADS{byID: map[string]database.Document{"arXiv:2401.00001": preprint}}
	cl := &scripted{answers: []classify.Decision{keplerExo}}

	cfg := testConfig()
	cfg.Feeds = config.Feeds{
		Sources:  []config.Feed{{URL: srv.URL + "/rss/astro-ph.EP", Name: "EP"}},
		Keywords: []string{"Kepler", "K2"},
	}
	c := NewCollector(cfg, db, fake, cl)

	r, err := c.ReviewFeeds(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, r.TotalFound)
	require.Equal(t, 1, r.Added)
	require.Equal(t, 1, r.Ignored)
}

func feedCollector(t *testing.T, fake *fakeADS, cl classify.Classifier) *Collector {
	t.Helper()
	srv := feedServer(t)
	cfg := testConfig()
	cfg.Feeds = config.Feeds{
		Sources:  []config.Feed{{URL: srv.URL + "/rss/astro-ph.EP", Name: "EP"}},
		Keywords: []string{"Kepler", "K2"},
	}
	return NewCollector(cfg, openTestDB(t), fake, cl)
}

func TestReviewFeedsSkipsUnresolvableEntry(t *testing.T) {
	preprint := paper("2024arXiv240100003C", "Rotation periods from K2.", "NOT REFEREED")
	preprint["pub"] = "arXiv e-prints"
	fake := &fakeADS{
		byID:   map[string]database.Document{"arXiv:2401.00003": preprint},
		idErrs: map[string]error{"arXiv:2401.00001": errors.New("connection reset by peer")},
	}
	cl := &scripted{answers: []classify.Decision{k2Astro}}

	r, err := feedCollector(t, fake, cl).ReviewFeeds(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, r.TotalFound)
	require.Equal(t, 1, r.Added)
	require.Len(t, r.Errors, 1)
	require.Contains(t, r.Errors[0], "arXiv:2401.00001")
	require.Equal(t, []string{"2024arXiv240100003C"}, cl.seen)
}

func TestReviewFeedsStopsOnRateLimit(t *testing.T) {
	fake := &fakeADS{idErrs: map[string]error{"arXiv:2401.00001": ads.ErrRateLimited}}
	cl := &scripted{}

	_, err := feedCollector(t, fake, cl).ReviewFeeds(context.Background())
	require.ErrorIs(t, err, ads.ErrRateLimited)
	require.Empty(t, cl.seen)
}
