package database

import (
	"encoding/json"
	"testing"
)

func TestNormalizeMonth(t *testing.T) {
	cases := map[string]string{
		"2015-00": "2015-01",
		"2015-06": "2015-06",
		"":        "",
	}
	for in, want := range cases {
		if got := NormalizeMonth(in); got != want {
			t.Errorf("NormalizeMonth(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestFormatMonthDisplay(t *testing.T) {
	if got := FormatMonthDisplay("2015-06"); got != "Jun 2015" {
		t.Errorf("expected 'Jun 2015', got %q", got)
	}
	if got := FormatMonthDisplay("2015-00"); got != "Jan 2015" {
		t.Errorf("expected 'Jan 2015', got %q", got)
	}
	if got := FormatMonthDisplay("garbage"); got != "garbage" {
		t.Errorf("expected input back, got %q", got)
	}
}

func TestParseMonth(t *testing.T) {
	if _, err := ParseMonth("2016-03"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, bad := range []string{"2016-13", "2016", "March"} {
		if _, err := ParseMonth(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestPublicationTime(t *testing.T) {
	got, err := PublicationTime("2015-06-00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Format("2006-01-02") != "2015-06-01" {
		t.Errorf("expected 2015-06-01, got %s", got.Format("2006-01-02"))
	}

	got, _ = PublicationTime("2015-00-00")
	if got.Format("2006-01-02") != "2015-01-01" {
		t.Errorf("expected 2015-01-01, got %s", got.Format("2006-01-02"))
	}

	if _, err := PublicationTime("15"); err == nil {
		t.Error("expected error for short date")
	}
}

func TestDocumentAccessors(t *testing.T) {
	doc := Document{
		"bibcode":        "2014PhDT.......123X",
		"title":          []any{"First", "Second"},
		"citation_count": json.Number("17"),
		"read_count":     "8",
		"year":           float64(2014),
		"property":       []any{"NOT REFEREED", "ARTICLE"},
		"author":         "Solo, H.",
		"empty":          nil,
	}

	if doc.Title() != "First" {
		t.Errorf("expected first title, got %q", doc.Title())
	}
	if n, ok := doc.Int("citation_count"); !ok || n != 17 {
		t.Errorf("expected 17, got %d (%v)", n, ok)
	}
	if n, ok := doc.Int("read_count"); !ok || n != 8 {
		t.Errorf("expected 8, got %d (%v)", n, ok)
	}
	if _, ok := doc.Int("empty"); ok {
		t.Error("expected null value to be missing")
	}
	if doc.String("year") != "2014" {
		t.Errorf("expected '2014', got %q", doc.String("year"))
	}
	if doc.IsRefereed() {
		t.Error("expected NOT REFEREED to not count as refereed")
	}
	if !doc.IsPhDThesis() {
		t.Error("expected PhDT bibcode to be a thesis")
	}
	if got := doc.Strings("author"); len(got) != 1 || got[0] != "Solo, H." {
		t.Errorf("expected scalar author as one-element list, got %v", got)
	}
	if doc.Has("empty") || doc.Has("missing") {
		t.Error("expected null and absent keys to be reported missing")
	}
}

func TestNormalizeYear(t *testing.T) {
	cases := map[string]string{
		"2015":    "2015",
		"2015-06": "2015",
		" 2015 ":  "2015",
		"":        "",
		"unknown": "",
	}
	for in, want := range cases {
		if got := normalizeYear(in); got != want {
			t.Errorf("normalizeYear(%q): expected %q, got %q", in, want, got)
		}
	}
}
