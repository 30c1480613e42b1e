package listing

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Deadline arithmetic runs in IST because the listings are India-centric.
// Callers inject "now" so the policy is testable.
var IST = time.FixedZone("IST", 5*3600+1800)

// NA is the sentinel for an unknown deadline.
const NA = "N/A"

// NormalizeURL strips query/fragment, lowercases scheme+host+path and drops
// a trailing slash. Malformed input gets a best-effort lowercase trim
// instead of an error.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		s := strings.ToLower(raw)
		if i := strings.IndexAny(s, "?#"); i >= 0 {
			s = s[:i]
		}
		return strings.TrimRight(s, "/")
	}
	u.RawQuery = ""
	u.Fragment = ""
	s := strings.TrimRight(u.String(), "/")
	return strings.ToLower(s)
}

// StableID derives the content-addressed listing identity: a sha1 digest of
// the normalized apply link, truncated to 12 hex chars. Same input, same
// output, across processes and runs.
func StableID(applyLink string) string {
	sum := sha1.Sum([]byte(NormalizeURL(applyLink)))
	return "job_" + hex.EncodeToString(sum[:])[:12]
}

// Host extracts the lowercased host of a URL, "" when unparsable.
func Host(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// PathTokens splits a URL path into lowercase non-empty segments.
func PathTokens(raw string) []string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	var out []string
	for _, seg := range strings.Split(strings.ToLower(u.Path), "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

// TitleTokens splits a title into lowercase alphanumeric tokens.
func TitleTokens(title string) []string {
	var out []string
	for _, tok := range nonAlnumRe.Split(strings.ToLower(title), -1) {
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// Slugify turns a title into a stable dash-separated slug, capped at 80.
func Slugify(text string) string {
	t := nonAlnumRe.ReplaceAllString(strings.ToLower(text), "-")
	t = strings.Trim(t, "-")
	if len(t) > 80 {
		t = t[:80]
	}
	return t
}

var spacesRe = regexp.MustCompile(`\s+`)

// NormalizeSpaces collapses runs of whitespace to single spaces.
func NormalizeSpaces(s string) string {
	return spacesRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Layouts accepted for scraped deadline strings. Single-digit layouts also
// match zero-padded values.
var dateLayouts = []string{"2/1/2006", "2006-1-2", "2-1-2006", "2 January 2006", "2 Jan 2006"}

// ParseDateAny parses the deadline formats seen in the wild. Returns the
// zero time for empty input, the N/A sentinel or anything unparsable.
func ParseDateAny(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, NA) {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if d, err := time.ParseInLocation(layout, s, IST); err == nil {
			return d
		}
	}
	return time.Time{}
}

// FormatDate renders a date in the canonical DD/MM/YYYY deadline format.
func FormatDate(d time.Time) string {
	return d.Format("02/01/2006")
}

// NormalizeDeadline canonicalizes a deadline string to DD/MM/YYYY, keeping
// the raw value when unparsable and N/A when empty.
func NormalizeDeadline(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return NA
	}
	if d := ParseDateAny(s); !d.IsZero() {
		return FormatDate(d)
	}
	return s
}

// DaysLeft computes the signed day count from now (IST) to the deadline.
// Negative means the deadline has passed. ok is false when the deadline is
// unknown.
func DaysLeft(deadline string, now time.Time) (days int, ok bool) {
	d := ParseDateAny(deadline)
	if d.IsZero() {
		return 0, false
	}
	nowIST := now.In(IST)
	today := time.Date(nowIST.Year(), nowIST.Month(), nowIST.Day(), 0, 0, 0, 0, IST)
	return int(d.Sub(today).Hours() / 24), true
}

var postsRe = regexp.MustCompile(`(?i)(\d{1,6})\s*(posts?|vacanc(?:y|ies)|seats?)`)

// ParsePostsFromText extracts a post count like "120 posts" from free text,
// 0 when absent.
func ParsePostsFromText(text string) int {
	m := postsRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

var (
	bracketRe  = regexp.MustCompile(`[\(\)\[\]\{\}]`)
	fuzzyJunk  = regexp.MustCompile(`[^\w\s/:-]`)
	stopwordRe = regexp.MustCompile(`\b(notice|notification|advertisement|advt|recruitment|online\s*form|apply\s*online|corrigendum|extension|extended|addendum|amendment|revised|rectified)\b`)
)

// stripDiacritics removes combining marks so accented and plain spellings
// compare equal.
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, _ := transform.String(t, s)
	return out
}

// FuzzyTitle reduces a title to its comparable core: lowercase, diacritics
// and boilerplate words removed, whitespace collapsed.
func FuzzyTitle(title string) string {
	t := strings.ToLower(stripDiacritics(title))
	t = bracketRe.ReplaceAllString(t, " ")
	t = fuzzyJunk.ReplaceAllString(t, " ")
	t = stopwordRe.ReplaceAllString(t, " ")
	return NormalizeSpaces(t)
}

// CrossRunKey is the coarse dedup key used when merging a fresh batch
// against the previously persisted document. It survives tracking-parameter
// URL changes by hashing fuzzy title + query-stripped link + deadline.
func (r *Record) CrossRunKey() string {
	link := r.DetailLink
	if link == "" {
		link = r.ApplyLink
	}
	link = strings.ToLower(link)
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		link = link[:i]
	}
	raw := FuzzyTitle(r.Title) + "|" + link + "|" + strings.ToLower(NormalizeDeadline(r.Deadline))
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}

// NewRecord materializes a canonical record from a raw candidate. The id is
// assigned here and never changes afterwards.
func NewRecord(c Candidate) Record {
	src := c.Source
	if src == "" {
		src = SourceOfficial
	}
	typ := c.Type
	if typ == "" {
		typ = TypeVacancy
	}
	rec := Record{
		ID:                 StableID(c.ApplyLink),
		Title:              NormalizeSpaces(c.Title),
		QualificationLevel: NormalizeSpaces(c.QualificationLevel),
		Domicile:           NormalizeSpaces(c.Domicile),
		Deadline:           NormalizeDeadline(c.Deadline),
		ApplyLink:          strings.TrimSpace(c.ApplyLink),
		DetailLink:         strings.TrimSpace(c.DetailLink),
		Source:             src,
		Type:               typ,
		NumberOfPosts:      c.NumberOfPosts,
	}
	if len(c.Flags) > 0 {
		rec.Flags = MergeFlags(nil, c.Flags)
	}
	if rec.NumberOfPosts == 0 {
		rec.NumberOfPosts = ParsePostsFromText(rec.Title)
	}
	return rec
}
