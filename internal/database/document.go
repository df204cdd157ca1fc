package database

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Document is the free-form metadata blob of a publication, as returned by
// the bibliographic API. Fields vary between records, so it is kept as a
// map and read through the tolerant accessors below.
type Document map[string]any

// String returns the value at key as a string. Lists yield their first
// element. Missing and null values yield "".
func (d Document) String(key string) string {
	switch v := d[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		if len(v) == 0 {
			return ""
		}
		return fmt.Sprint(v[0])
	case []string:
		if len(v) == 0 {
			return ""
		}
		return v[0]
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Strings returns the value at key as a list of strings. A scalar string
// becomes a one-element list; missing and null values yield nil.
func (d Document) Strings(key string) []string {
	switch v := d[key].(type) {
	case nil:
		return nil
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		return []string{v}
	default:
		return []string{fmt.Sprint(v)}
	}
}

// Int returns the value at key as an integer. ok is false when the key is
// absent, null, or not numeric.
func (d Document) Int(key string) (n int, ok bool) {
	switch v := d[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return 0, false
			}
			return int(f), true
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

// Has reports whether key is present with a non-null value.
func (d Document) Has(key string) bool {
	v, ok := d[key]
	return ok && v != nil
}

// ID returns the external identifier.
func (d Document) ID() string { return d.String("id") }

// Bibcode returns the bibliographic code.
func (d Document) Bibcode() string { return d.String("bibcode") }

// Title returns the first title.
func (d Document) Title() string { return d.String("title") }

// PubDate returns the full publication date ("YYYY-MM-DD"). ADS reports it
// as "pubdate"; "date" is used as a fallback.
func (d Document) PubDate() string {
	if s := d.String("pubdate"); s != "" {
		return s
	}
	s := d.String("date")
	if len(s) > 10 {
		s = s[:10]
	}
	return s
}

// Properties returns the property flags (REFEREED, NONARTICLE, ...).
func (d Document) Properties() []string { return d.Strings("property") }

// HasProperty reports whether the property list contains flag exactly.
func (d Document) HasProperty(flag string) bool {
	for _, p := range d.Properties() {
		if p == flag {
			return true
		}
	}
	return false
}

// IsRefereed reports whether the publication carries the REFEREED flag.
func (d Document) IsRefereed() bool { return d.HasProperty("REFEREED") }

// IsPhDThesis is a heuristic: ADS thesis bibcodes carry "PhDT".
func (d Document) IsPhDThesis() bool {
	return strings.Contains(d.Bibcode(), "PhDT") || d.String("doctype") == "phdthesis"
}

// Mission returns the mission stamped into the document at insert time.
func (d Document) Mission() Mission { return Mission(d.String("mission")) }

// Science returns the science category stamped into the document.
func (d Document) Science() Science { return Science(d.String("science")) }

func (d Document) clone() Document {
	out := make(Document, len(d)+2)
	for k, v := range d {
		out[k] = v
	}
	return out
}

func parseDocument(raw string) (Document, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
