package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
)

// Insert adds a publication with the given classification. The mission and
// science tags are stamped into a copy of the document before it is stored.
//
// A record whose id or bibcode is already present is not inserted: a warning
// is logged and Insert returns false with a nil error, so re-ingesting the
// same record is always safe.
func (db *DB) Insert(doc Document, mission Mission, science Science) (bool, error) {
	if _, err := ParseMission(string(mission)); err != nil {
		return false, err
	}
	if _, err := ParseScience(string(science)); err != nil {
		return false, err
	}

	id, bibcode := doc.ID(), doc.Bibcode()
	date := doc.PubDate()
	year := normalizeYear(doc.String("year"))
	switch {
	case id == "":
		return false, fmt.Errorf("%w: missing id", ErrInvalidRecord)
	case bibcode == "":
		return false, fmt.Errorf("%w: missing bibcode (id %s)", ErrInvalidRecord, id)
	case year == "":
		return false, fmt.Errorf("%w: %s has no year", ErrInvalidRecord, bibcode)
	case len(date) < 7:
		return false, fmt.Errorf("%w: %s has no publication date", ErrInvalidRecord, bibcode)
	}
	month := date[:7]

	stamped := doc.clone()
	stamped["mission"] = string(mission)
	stamped["science"] = string(science)
	blob, err := json.Marshal(stamped)
	if err != nil {
		return false, fmt.Errorf("encoding %s: %w", bibcode, err)
	}

	log.Printf("Ingesting %s", bibcode)
	result, err := db.conn.Exec(
		`INSERT INTO pubs (id, bibcode, year, month, date, mission, science, metrics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, bibcode, year, month, date, string(mission), string(science), string(blob),
	)
	if isUniqueViolation(err) {
		log.Printf("Warning: %s was already ingested", bibcode)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inserting %s: %w", bibcode, err)
	}
	n, _ := result.RowsAffected()
	log.Printf("Inserted %d row(s)", n)
	return true, nil
}

// Contains reports whether a publication with the same id or bibcode exists.
func (db *DB) Contains(doc Document) (bool, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM pubs WHERE id = ? OR bibcode = ?",
		doc.ID(), doc.Bibcode(),
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteByBibcode removes every row with the given bibcode and returns the
// number of rows removed. Deleting an unknown bibcode is not an error.
func (db *DB) DeleteByBibcode(bibcode string) (int64, error) {
	result, err := db.conn.Exec("DELETE FROM pubs WHERE bibcode = ?", bibcode)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	log.Printf("Deleted %d row(s)", n)
	return n, nil
}

// Query returns publications matching the filter, most recent first.
// Unless a mission is given, only kepler and k2 publications are returned.
func (db *DB) Query(f Filter) ([]Row, error) {
	query := "SELECT year, month, metrics, bibcode FROM pubs WHERE "
	var args []any
	if f.Mission == "" {
		query += "mission IN (?, ?)"
		args = append(args, string(MissionKepler), string(MissionK2))
	} else {
		query += "mission = ?"
		args = append(args, string(f.Mission))
	}
	if f.Science != "" {
		query += " AND science = ?"
		args = append(args, string(f.Science))
	}
	if f.Year != 0 {
		query += " AND year = ?"
		args = append(args, strconv.Itoa(f.Year))
	}
	// rowid breaks ties between identical dates deterministically.
	query += " ORDER BY date DESC, rowid DESC"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// GetAll returns the documents of every publication matching the filter.
func (db *DB) GetAll(f Filter) ([]Document, error) {
	rows, err := db.Query(f)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, len(rows))
	for i, r := range rows {
		docs[i] = r.Metrics
	}
	return docs, nil
}

// GetClassifications returns the tags of every stored publication,
// unrelated ones included, ordered by bibcode.
func (db *DB) GetClassifications() ([]Classification, error) {
	rows, err := db.conn.Query("SELECT bibcode, mission, science FROM pubs ORDER BY bibcode")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Classification
	for rows.Next() {
		var c Classification
		var mission, science sql.NullString
		if err := rows.Scan(&c.Bibcode, &mission, &science); err != nil {
			return nil, err
		}
		c.Mission = Mission(mission.String)
		c.Science = Science(science.String)
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetSpreadsheetRows returns every kepler and k2 publication ordered by
// bibcode, with its document.
func (db *DB) GetSpreadsheetRows() ([]SpreadsheetRow, error) {
	rows, err := db.conn.Query(
		`SELECT bibcode, year, date, mission, science, metrics
		FROM pubs WHERE mission != ? ORDER BY bibcode`, string(MissionUnrelated),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SpreadsheetRow
	for rows.Next() {
		var r SpreadsheetRow
		var year, date, mission, science, metrics sql.NullString
		if err := rows.Scan(&r.Bibcode, &year, &date, &mission, &science, &metrics); err != nil {
			return nil, err
		}
		doc, err := parseDocument(metrics.String)
		if err != nil {
			return nil, fmt.Errorf("decoding metrics of %s: %w", r.Bibcode, err)
		}
		r.Year, r.Date = year.String, date.String
		r.Mission, r.Science = Mission(mission.String), Science(science.String)
		r.Metrics = doc
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of stored rows, unrelated ones included.
func (db *DB) Count() (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM pubs").Scan(&n)
	return n, err
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM pubs", &s.TotalPublications},
		{"SELECT COUNT(*) FROM pubs WHERE mission = 'kepler'", &s.Kepler},
		{"SELECT COUNT(*) FROM pubs WHERE mission = 'k2'", &s.K2},
		{"SELECT COUNT(*) FROM pubs WHERE mission = 'unrelated'", &s.Unrelated},
		{"SELECT COUNT(*) FROM pubs WHERE mission IN ('kepler', 'k2') AND (science IS NULL OR science = '')", &s.Unclassified},
		{"SELECT COUNT(*) FROM update_runs", &s.UpdateRuns},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	var out []Row
	for rows.Next() {
		var r Row
		var year, month, metrics sql.NullString
		if err := rows.Scan(&year, &month, &metrics, &r.Bibcode); err != nil {
			return nil, err
		}
		doc, err := parseDocument(metrics.String)
		if err != nil {
			return nil, fmt.Errorf("decoding metrics of %s: %w", r.Bibcode, err)
		}
		r.Year, r.Month, r.Metrics = year.String, month.String, doc
		out = append(out, r)
	}
	return out, rows.Err()
}

// normalizeYear keeps the leading four-digit year of an ADS year value.
func normalizeYear(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 4 {
		s = s[:4]
	}
	if _, err := strconv.Atoi(s); err != nil {
		return ""
	}
	return s
}
