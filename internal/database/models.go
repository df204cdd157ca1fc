package database

import "fmt"

// Mission is the coarse classification tag assigned by a reviewer.
type Mission string

const (
	MissionKepler    Mission = "kepler"
	MissionK2        Mission = "k2"
	MissionUnrelated Mission = "unrelated"
)

// Science is the secondary classification tag. It is empty for unrelated
// publications.
type Science string

const (
	ScienceExoplanets   Science = "exoplanets"
	ScienceAstrophysics Science = "astrophysics"
	ScienceNone         Science = ""
)

// Missions are the missions that appear in reports.
var Missions = []Mission{MissionKepler, MissionK2}

// Sciences are the science categories that appear in reports.
var Sciences = []Science{ScienceExoplanets, ScienceAstrophysics}

// ParseMission validates a mission tag.
func ParseMission(s string) (Mission, error) {
	switch m := Mission(s); m {
	case MissionKepler, MissionK2, MissionUnrelated:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown mission %q", ErrInvalidRecord, s)
}

// ParseScience validates a science tag. The empty string is allowed.
func ParseScience(s string) (Science, error) {
	switch sc := Science(s); sc {
	case ScienceExoplanets, ScienceAstrophysics, ScienceNone:
		return sc, nil
	}
	return "", fmt.Errorf("%w: unknown science %q", ErrInvalidRecord, s)
}

// Filter narrows a publication query. Zero values mean "unspecified";
// an empty Mission selects kepler and k2 only.
type Filter struct {
	Mission Mission
	Science Science
	Year    int
}

// Row is a single query result: enough to aggregate without a second lookup.
type Row struct {
	Year    string
	Month   string
	Metrics Document
	Bibcode string
}

// Metrics holds aggregate publication statistics.
type Metrics struct {
	PublicationCount       int     `json:"publication_count"`
	KeplerCount            int     `json:"kepler_count"`
	K2Count                int     `json:"k2_count"`
	ExoplanetsCount        int     `json:"exoplanets_count"`
	AstrophysicsCount      int     `json:"astrophysics_count"`
	RefereedCount          int     `json:"refereed_count"`
	KeplerRefereedCount    int     `json:"kepler_refereed_count"`
	K2RefereedCount        int     `json:"k2_refereed_count"`
	CitationCount          int     `json:"citation_count"`
	KeplerCitationCount    int     `json:"kepler_citation_count"`
	K2CitationCount        int     `json:"k2_citation_count"`
	MissingCitationCount   int     `json:"missing_citation_count"`
	PhDCount               int     `json:"phd_count"`
	KeplerPhDCount         int     `json:"kepler_phd_count"`
	K2PhDCount             int     `json:"k2_phd_count"`
	AuthorCount            int     `json:"author_count"`
	FirstAuthorCount       int     `json:"first_author_count"`
	KeplerAuthorCount      int     `json:"kepler_author_count"`
	KeplerFirstAuthorCount int     `json:"kepler_first_author_count"`
	K2AuthorCount          int     `json:"k2_author_count"`
	K2FirstAuthorCount     int     `json:"k2_first_author_count"`
	KeplerFraction         float64 `json:"kepler_fraction"`
	K2Fraction             float64 `json:"k2_fraction"`
	ExoplanetsFraction     float64 `json:"exoplanets_fraction"`
	AstrophysicsFraction   float64 `json:"astrophysics_fraction"`
}

// AuthorCount pairs an author name with a number of papers.
type AuthorCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// AnnualCounts maps a mission (or "both") to per-year publication counts.
type AnnualCounts map[string]map[int]int

// Both is the AnnualCounts key holding kepler + k2.
const Both = "both"

// Classification is the reviewer-assigned tag pair of a publication.
type Classification struct {
	Bibcode string
	Mission Mission
	Science Science
}

// SpreadsheetRow is one publication as exported to a spreadsheet.
type SpreadsheetRow struct {
	Bibcode string
	Year    string
	Date    string
	Mission Mission
	Science Science
	Metrics Document
}

// UpdateRun records a completed review of one month of ADS results.
type UpdateRun struct {
	Month       string
	Reviewed    int
	Added       int
	CompletedAt *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalPublications int
	Kepler            int
	K2                int
	Unrelated         int
	Unclassified      int
	UpdateRuns        int
}
