package database

import (
	"log"
	"sort"
)

// GetMostCited returns up to top documents matching the filter, ordered by
// descending citation count. Missing counts rank as zero; ties keep query
// order (most recent first).
func (db *DB) GetMostCited(f Filter, top int) ([]Document, error) {
	return db.rankBy(f, top, "citation_count", false)
}

// GetMostRead returns up to top documents matching the filter, ordered by
// descending read count. Missing read counts rank as zero and are logged.
func (db *DB) GetMostRead(f Filter, top int) ([]Document, error) {
	return db.rankBy(f, top, "read_count", true)
}

func (db *DB) rankBy(f Filter, top int, key string, warnMissing bool) ([]Document, error) {
	rows, err := db.Query(f)
	if err != nil {
		return nil, err
	}

	type ranked struct {
		doc   Document
		score int
	}
	items := make([]ranked, len(rows))
	for i, r := range rows {
		score, ok := r.Metrics.Int(key)
		if !ok && warnMissing {
			log.Printf("Warning: %s: no %s, ranking as 0", r.Bibcode, key)
		}
		items[i] = ranked{doc: r.Metrics, score: score}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].score > items[j].score })

	if top < 0 {
		top = 0
	}
	if top > len(items) {
		top = len(items)
	}
	docs := make([]Document, top)
	for i := range docs {
		docs[i] = items[i].doc
	}
	return docs, nil
}

// GetMostActiveFirstAuthors returns first authors with at least minPapers
// kepler/k2 publications, most prolific first.
func (db *DB) GetMostActiveFirstAuthors(minPapers int) ([]AuthorCount, error) {
	rows, err := db.Query(Filter{})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, r := range rows {
		first := firstAuthorName(r.Metrics, authorNames(r.Metrics))
		if first == "" {
			continue
		}
		counts[first]++
	}

	ranking := sortCounts(counts)
	out := ranking[:0]
	for _, a := range ranking {
		if a.Count >= minPapers {
			out = append(out, a)
		}
	}
	return out, nil
}

// GetTopAuthors returns the top authors by number of kepler/k2
// publications, counting every position in the author list.
func (db *DB) GetTopAuthors(top int) ([]AuthorCount, error) {
	rows, err := db.Query(Filter{})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, r := range rows {
		for _, name := range authorNames(r.Metrics) {
			counts[name]++
		}
	}

	ranking := sortCounts(counts)
	if top >= 0 && top < len(ranking) {
		ranking = ranking[:top]
	}
	return ranking, nil
}

// sortCounts orders by descending count, then by name.
func sortCounts(counts map[string]int) []AuthorCount {
	out := make([]AuthorCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, AuthorCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
