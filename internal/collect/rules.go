package collect

import (
	"fmt"
	"strings"

	"github.com/TobiSchelling/kpub/internal/database"
)

// IgnoreRules decide which keyword-search results are not worth a review.
type IgnoreRules struct {
	Exclude []string
}

// Reason returns why doc should be ignored, or "" to review it. The store
// lookup is not part of the rules.
func (r IgnoreRules) Reason(doc database.Document) string {
	abstract := doc.String("abstract")
	if abstract == "" {
		return "no abstract"
	}

	lower := strings.ToLower(abstract)
	for _, term := range r.Exclude {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			return fmt.Sprintf("abstract mentions %q", term)
		}
	}

	if doc.HasProperty("NOT REFEREED") && !isArxiv(doc) {
		return "not refereed"
	}

	bibcode := doc.Bibcode()
	if strings.Contains(bibcode, ".prop.") || strings.Contains(bibcode, "cosp..") {
		return "proposal or COSPAR abstract"
	}
	return ""
}

// ADS has spelled the preprint venue both "ArXiv e-prints" and
// "arXiv e-prints".
func isArxiv(doc database.Document) bool {
	return strings.EqualFold(doc.String("pub"), "arXiv e-prints")
}
