package collect

import "fmt"

// AcknowledgementQuery finds papers of a month that thank the Kepler or K2
// mission or team in their acknowledgements.
func AcknowledgementQuery(month, adsDatabase string) string {
	return fmt.Sprintf(`(ack:"Kepler mission" OR ack:"K2 mission" OR ack:"Kepler team" OR ack:"K2 team") `+
		`-ack:"partial support from" pubdate:"%s" database:"%s"`, month, adsDatabase)
}

var abstractTerms = []string{
	`abs:"Kepler"`, `abs:"K2"`, `abs:"KIC"`, `abs:"EPIC"`, `abs:"KOI"`,
	`abs:"8462852"`, `abs:"1145+017"`, `abs:"NGC 6791"`, `abs:"NGC 6819"`,
	`title:"Kepler"`, `title:"K2"`, `title:"8462852"`, `title:"1145+017"`,
	`full:"K2-ESPRINT"`, `full:"Kepler photometry"`, `full:"K2 photometry"`,
	`full:"Kepler lightcurve"`, `full:"K2 lightcurve"`,
}

// AbstractQuery finds papers of a month that mention Kepler or K2 targets
// in their title, abstract or full text.
func AbstractQuery(month, adsDatabase string) string {
	q := "("
	for i, term := range abstractTerms {
		if i > 0 {
			q += " OR "
		}
		q += term
	}
	return q + fmt.Sprintf(`) pubdate:"%s" database:"%s"`, month, adsDatabase)
}
