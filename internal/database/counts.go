package database

import "fmt"

// GetAnnualPublicationCount returns the number of publications per year for
// each mission and for both combined. Every year in [begin, end] is present,
// with 0 where nothing was published.
func (db *DB) GetAnnualPublicationCount(begin, end int) (AnnualCounts, error) {
	result := newAnnualCounts(begin, end)
	for _, mission := range Missions {
		rows, err := db.conn.Query(
			`SELECT CAST(year AS INTEGER), COUNT(*) FROM pubs
			WHERE mission = ? GROUP BY CAST(year AS INTEGER)`,
			string(mission),
		)
		if err != nil {
			return nil, fmt.Errorf("counting %s publications: %w", mission, err)
		}
		for rows.Next() {
			var year, count int
			if err := rows.Scan(&year, &count); err != nil {
				rows.Close()
				return nil, err
			}
			if year >= begin && year <= end {
				result[string(mission)][year] = count
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	result.sumBoth(begin, end)
	return result, nil
}

// GetAnnualPublicationCountCumulative returns, for each year in
// [begin, end], the number of publications up to and including that year.
// Each year is counted independently rather than as a running sum.
func (db *DB) GetAnnualPublicationCountCumulative(begin, end int) (AnnualCounts, error) {
	result := newAnnualCounts(begin, end)
	for _, mission := range Missions {
		for year := begin; year <= end; year++ {
			var count int
			err := db.conn.QueryRow(
				`SELECT COUNT(*) FROM pubs
				WHERE mission = ? AND CAST(year AS INTEGER) <= ?`,
				string(mission), year,
			).Scan(&count)
			if err != nil {
				return nil, fmt.Errorf("counting %s publications up to %d: %w", mission, year, err)
			}
			result[string(mission)][year] = count
		}
	}
	result.sumBoth(begin, end)
	return result, nil
}

func newAnnualCounts(begin, end int) AnnualCounts {
	result := make(AnnualCounts, len(Missions)+1)
	for _, key := range append(missionKeys(), Both) {
		years := make(map[int]int, end-begin+1)
		for year := begin; year <= end; year++ {
			years[year] = 0
		}
		result[key] = years
	}
	return result
}

func (c AnnualCounts) sumBoth(begin, end int) {
	for year := begin; year <= end; year++ {
		total := 0
		for _, mission := range Missions {
			total += c[string(mission)][year]
		}
		c[Both][year] = total
	}
}

func missionKeys() []string {
	keys := make([]string, len(Missions))
	for i, m := range Missions {
		keys[i] = string(m)
	}
	return keys
}
