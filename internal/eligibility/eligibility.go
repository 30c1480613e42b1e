// Rule-based eligibility classification for parent vacancy records.
// Missing qualification, deadline or post count are never grounds for
// rejection; only the five checks below archive a record.

package eligibility

import (
	"strings"
	"unicode"

	"go-vacancy-pipeline/internal/listing"
)

// Rejection reasons recorded as removed_reason suffixes.
const (
	ReasonHindiTitle   = "Hindi_title"
	ReasonInvalidTitle = "Invalid_title"
	ReasonTeacher      = "Teacher_position"
	ReasonTech         = "Tech_position"
	ReasonPostgraduate = "Postgraduate_position"
	ReasonSkills       = "Specialty_skills_required"
	ReasonDomicile     = "Wrong_domicile"
	ReasonEligible     = "Eligible"
)

// Config holds the policy knobs. Zero values fall back to defaults.
type Config struct {
	// NonLatinRatio is the share of non-basic-Latin characters in a title
	// above which it is rejected as corrupted/Hindi. Default 0.3.
	NonLatinRatio float64
	// AllowedRegion is the domicile the user qualifies for. Default "bihar".
	AllowedRegion string
	// MinTitleLen rejects shorter titles as corrupted. Default 4.
	MinTitleLen int
}

func (c Config) withDefaults() Config {
	if c.NonLatinRatio <= 0 {
		c.NonLatinRatio = 0.3
	}
	if c.AllowedRegion == "" {
		c.AllowedRegion = "bihar"
	}
	if c.MinTitleLen <= 0 {
		c.MinTitleLen = 4
	}
	return c
}

// Occupational streams the user is not eligible for. Single words match
// whole tokens; entries with spaces or dots match as substrings.
var (
	teacherTokens  = []string{"teacher", "tgt", "pgt", "prt", "faculty", "lecturer", "professor", "ctet", "tet"}
	teacherPhrases = []string{"assistant professor", "b.ed"}

	techTokens  = []string{"btech", "mca", "bca", "engineer", "developer", "scientist", "architect", "analyst", "devops", "nursing", "iti", "polytechnic", "diploma"}
	techPhrases = []string{"b.tech", "b.e.", "m.tech", "m.e.", "pharmac"}

	pgTokens  = []string{"mba", "phd", "mcom", "msc"}
	pgPhrases = []string{"post graduate", "postgraduate", "m.phil", "m.com", "m.sc", "m.a."}

	skillTokens  = []string{"cad", "sap", "oracle", "aws", "azure", "docker", "kubernetes"}
	skillPhrases = []string{"steno", "shorthand", "trade test", "tally erp"}

	// Domicile markers. open allows a record outright, closed asserts a
	// residency restriction.
	openMarkers = []string{
		"all india", "any state", "open to all", "pan india", "indian citizens",
		"across india", "from any state", "other state candidates", "outside state",
	}
	closedMarkers = []string{
		"domicile", "resident", "locals only", "local candidates", "state quota", "only for domicile",
	}
)

// Classify applies the layered eligibility checks in order, short-circuiting
// on the first failure. It is a pure function of the record and config.
func Classify(rec listing.Record, cfg Config) (bool, string) {
	cfg = cfg.withDefaults()
	title := strings.TrimSpace(rec.Title)

	if nonLatinRatio(title) > cfg.NonLatinRatio {
		return false, ReasonHindiTitle
	}
	if !validTitle(title, cfg.MinTitleLen) {
		return false, ReasonInvalidTitle
	}

	t := strings.ToLower(title)
	tokens := tokenSet(t)
	switch {
	case hasToken(tokens, teacherTokens) || hasPhrase(t, teacherPhrases):
		return false, ReasonTeacher
	case hasToken(tokens, techTokens) || hasPhrase(t, techPhrases):
		return false, ReasonTech
	case hasToken(tokens, pgTokens) || hasPhrase(t, pgPhrases):
		return false, ReasonPostgraduate
	}
	if hasToken(tokens, skillTokens) || hasPhrase(t, skillPhrases) {
		return false, ReasonSkills
	}
	if !allowDomicile(t, rec.Domicile, cfg.AllowedRegion) {
		return false, ReasonDomicile
	}
	return true, ReasonEligible
}

// nonLatinRatio is the share of runes outside the basic Latin range.
func nonLatinRatio(title string) float64 {
	if title == "" {
		return 0
	}
	total, outside := 0, 0
	for _, r := range title {
		total++
		if r > unicode.MaxASCII {
			outside++
		}
	}
	return float64(outside) / float64(total)
}

// validTitle rejects empty and too-short titles, except all-caps acronyms.
func validTitle(title string, minLen int) bool {
	if title == "" {
		return false
	}
	if len(title) >= minLen {
		return true
	}
	return len(title) >= 3 && isAcronym(title)
}

func isAcronym(s string) bool {
	for _, r := range s {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

func tokenSet(t string) map[string]struct{} {
	var b strings.Builder
	for _, r := range t {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	out := map[string]struct{}{}
	for _, w := range strings.Fields(b.String()) {
		out[w] = struct{}{}
	}
	return out
}

func hasToken(tokens map[string]struct{}, keywords []string) bool {
	for _, k := range keywords {
		if _, ok := tokens[k]; ok {
			return true
		}
	}
	return false
}

func hasPhrase(t string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}

// allowDomicile accepts a record when the title or domicile field names the
// allowed region or an explicit open-to-all marker. A title asserting a
// residency restriction without the allowed region is rejected, as is a
// domicile field naming some other state. Missing data defaults to allow.
func allowDomicile(title, domicile, region string) bool {
	d := strings.ToLower(strings.TrimSpace(domicile))

	if strings.Contains(title, region) && !hasPhrase(title, closedMarkers) {
		return true
	}
	if hasPhrase(title, openMarkers) {
		return true
	}
	if d != "" && !strings.EqualFold(d, listing.NA) {
		if !strings.Contains(d, region) && !strings.Contains(d, "all") {
			return false
		}
		return true
	}
	if hasPhrase(title, closedMarkers) && !strings.Contains(title, region) {
		return false
	}
	return true
}
