package database

import (
	"fmt"
	"strings"
	"time"
)

// CurrentMonth returns the current month as YYYY-MM.
func CurrentMonth() string {
	return time.Now().Format("2006-01")
}

// CurrentYear returns the current calendar year.
func CurrentYear() int {
	return time.Now().Year()
}

// ParseMonth validates a YYYY-MM month string.
func ParseMonth(month string) (string, error) {
	if _, err := time.Parse("2006-01", month); err != nil {
		return "", fmt.Errorf("invalid month %q, expected YYYY-MM", month)
	}
	return month, nil
}

// NormalizeMonth maps the ADS "unknown month" form YYYY-00 to YYYY-01.
func NormalizeMonth(month string) string {
	if strings.HasSuffix(month, "-00") {
		return month[:len(month)-3] + "-01"
	}
	return month
}

// FormatMonthDisplay formats a YYYY-MM month for display, e.g. "Jun 2015".
// Unparseable input is returned unchanged.
func FormatMonthDisplay(month string) string {
	t, err := time.Parse("2006-01", NormalizeMonth(month))
	if err != nil {
		return month
	}
	return t.Format("Jan 2006")
}

// PublicationTime parses an ADS publication date such as "2015-06-00".
// Unknown day or month components are read as the first.
func PublicationTime(date string) (time.Time, error) {
	if len(date) < 4 {
		return time.Time{}, fmt.Errorf("invalid publication date %q", date)
	}
	year, month, day := date[:4], "01", "01"
	if len(date) >= 7 && date[5:7] != "00" {
		month = date[5:7]
	}
	if len(date) >= 10 && date[8:10] != "00" {
		day = date[8:10]
	}
	return time.Parse("2006-01-02", year+"-"+month+"-"+day)
}
