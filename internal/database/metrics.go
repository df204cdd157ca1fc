package database

import (
	"log"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// GetMetrics computes publication statistics in a single pass over the
// kepler and k2 publications of the given year (0 for all years).
//
// Records without a citation count are logged and left out of the citation
// sums. Fractions are 0 when there are no publications.
func (db *DB) GetMetrics(year int) (*Metrics, error) {
	rows, err := db.Query(Filter{Year: year})
	if err != nil {
		return nil, err
	}

	m := &Metrics{}
	authors := newNameSet()
	firstAuthors := newNameSet()
	perMission := map[Mission]*missionTally{
		MissionKepler: newMissionTally(),
		MissionK2:     newMissionTally(),
	}
	// Rows of other missions only appear when one is queried explicitly.
	other := newMissionTally()
	tallyFor := func(mission Mission) *missionTally {
		if t, ok := perMission[mission]; ok {
			return t
		}
		return other
	}

	for _, row := range rows {
		doc := row.Metrics
		bibcode := row.Bibcode
		t := tallyFor(doc.Mission())

		m.PublicationCount++
		t.count++

		if doc.IsPhDThesis() {
			m.PhDCount++
			t.phd++
		}

		switch doc.Science() {
		case ScienceExoplanets:
			m.ExoplanetsCount++
		case ScienceAstrophysics:
			m.AstrophysicsCount++
		default:
			log.Printf("Warning: %s: no science category", bibcode)
		}

		names := authorNames(doc)
		first := firstAuthorName(doc, names)
		authors.add(names...)
		firstAuthors.add(first)
		t.authors.add(names...)
		t.firstAuthors.add(first)

		if doc.IsRefereed() {
			m.RefereedCount++
			t.refereed++
		}

		citations, ok := doc.Int("citation_count")
		if !ok {
			log.Printf("Warning: %s: no citation_count", bibcode)
			m.MissingCitationCount++
			continue
		}
		m.CitationCount += citations
		t.citations += citations
	}

	kepler, k2 := perMission[MissionKepler], perMission[MissionK2]
	m.KeplerCount, m.K2Count = kepler.count, k2.count
	m.KeplerPhDCount, m.K2PhDCount = kepler.phd, k2.phd
	m.KeplerRefereedCount, m.K2RefereedCount = kepler.refereed, k2.refereed
	m.KeplerCitationCount, m.K2CitationCount = kepler.citations, k2.citations

	m.AuthorCount = authors.len()
	m.FirstAuthorCount = firstAuthors.len()
	m.KeplerAuthorCount = kepler.authors.len()
	m.KeplerFirstAuthorCount = kepler.firstAuthors.len()
	m.K2AuthorCount = k2.authors.len()
	m.K2FirstAuthorCount = k2.firstAuthors.len()

	m.KeplerFraction = fraction(m.KeplerCount, m.PublicationCount)
	m.K2Fraction = fraction(m.K2Count, m.PublicationCount)
	m.ExoplanetsFraction = fraction(m.ExoplanetsCount, m.PublicationCount)
	m.AstrophysicsFraction = fraction(m.AstrophysicsCount, m.PublicationCount)

	return m, nil
}

type missionTally struct {
	count, phd, refereed, citations int
	authors, firstAuthors           nameSet
}

func newMissionTally() *missionTally {
	return &missionTally{authors: newNameSet(), firstAuthors: newNameSet()}
}

func fraction(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// normalizeName trims an author name and puts it in Unicode NFC form so
// that composed and decomposed spellings compare equal.
func normalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// authorNames returns the normalized author list, preferring ADS's
// normalized "author_norm" field over the raw "author" list.
func authorNames(doc Document) []string {
	raw := doc.Strings("author_norm")
	if len(raw) == 0 {
		raw = doc.Strings("author")
	}
	names := make([]string, 0, len(raw))
	for _, n := range raw {
		if n = normalizeName(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// firstAuthorName returns the normalized first author.
func firstAuthorName(doc Document, names []string) string {
	if first := normalizeName(doc.String("first_author_norm")); first != "" {
		return first
	}
	if len(names) > 0 {
		return names[0]
	}
	return ""
}

type nameSet map[string]struct{}

func newNameSet() nameSet { return make(nameSet) }

func (s nameSet) add(names ...string) {
	for _, n := range names {
		if n != "" {
			s[n] = struct{}{}
		}
	}
}

func (s nameSet) len() int { return len(s) }
