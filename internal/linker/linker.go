// Separate corrigendum/extension notices from real vacancies and fold each
// update into the parent listing it amends.

package linker

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"go-vacancy-pipeline/internal/learner"
	"go-vacancy-pipeline/internal/listing"
)

// Titles containing any of these mark a record as an update, not a vacancy.
var updateKeywords = []string{
	"corrigendum", "extension", "extended", "addendum", "amendment",
	"revised", "rectified", "notice", "last date", "reopen", "re-open", "reopened",
}

var (
	stemStripRe = regexp.MustCompile(`(?i)(corrigendum|corr|extension|extended|addendum|amendment|notice|revised|rectified|reopen|re-open|reopened)`)
	nonWordRe   = regexp.MustCompile(`[\W_]+`)
	advRe       = regexp.MustCompile(`(?i)(advt|advertisement|notice)\s*(no\.?|number)?\s*[:\-]?\s*([A-Za-z0-9/\-._]+)`)
	datePatRe   = regexp.MustCompile(`(\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|\d{1,2}\s+[A-Za-z]{3,9}\s+\d{2,4})`)
)

// Similarity score parts and the fold threshold.
const (
	scoreURLRoot  = 0.45
	scorePDFStem  = 0.35
	scoreAdvNo    = 0.25
	FoldThreshold = 0.6
)

// IsUpdateTitle reports whether a title reads as a correction/extension of
// an existing vacancy rather than a new one.
func IsUpdateTitle(title string) bool {
	t := strings.ToLower(title)
	for _, k := range updateKeywords {
		if strings.Contains(t, k) {
			return true
		}
	}
	return false
}

// urlRoot is scheme+host+path with the final path segment removed.
func urlRoot(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return raw
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[:i]
	}
	return u.Scheme + "://" + u.Host + path
}

// pdfStem reduces a document filename to its comparable core: update
// keywords stripped, punctuation removed, lowercased.
func pdfStem(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	fn := u.Path
	if i := strings.LastIndex(fn, "/"); i >= 0 {
		fn = fn[i+1:]
	}
	fn = stemStripRe.ReplaceAllString(strings.ToLower(fn), "")
	return nonWordRe.ReplaceAllString(fn, "")
}

// advNo extracts an advertisement/notice number token from a title.
func advNo(title string) string {
	m := advRe.FindStringSubmatch(title)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[3])
}

// extractDates pulls every parseable date out of free text.
func extractDates(text string) []time.Time {
	var out []time.Time
	for _, raw := range datePatRe.FindAllString(text, -1) {
		if d := listing.ParseDateAny(strings.ReplaceAll(raw, "-", "/")); !d.IsZero() {
			out = append(out, d)
		}
	}
	return out
}

// score rates how plausibly upd amends parent.
func score(upd, parent listing.Record) float64 {
	s := 0.0
	if urlRoot(upd.ApplyLink) == urlRoot(parent.ApplyLink) {
		s += scoreURLRoot
	}
	if stem := pdfStem(upd.ApplyLink); stem != "" && stem == pdfStem(parent.ApplyLink) {
		s += scorePDFStem
	}
	if no := advNo(upd.Title); no != "" && no == advNo(parent.Title) {
		s += scoreAdvNo
	}
	return s
}

// Result of one linking pass.
type Result struct {
	Parents    []listing.Record // vacancies, with folded updates attached
	Standalone []listing.Record // updates that matched no parent
	Merged     int              // updates folded into a parent
}

// Link splits records into parents and updates, scores each update against
// every parent and folds matches in: the update is appended to the parent's
// update list, a strictly later date extracted from the update title
// advances the parent's deadline, and a post count fills a missing one.
// Updates are never matched against other updates. Unmatched updates are
// kept standalone, tagged UPDATE with no_parent_found.
func Link(recs []listing.Record, reg *learner.Registry, threshold float64, now time.Time) Result {
	if threshold <= 0 {
		threshold = FoldThreshold
	}
	var res Result
	var updates []listing.Record
	for _, r := range recs {
		if IsUpdateTitle(r.Title) {
			updates = append(updates, r)
		} else {
			res.Parents = append(res.Parents, r)
		}
	}

	for _, upd := range updates {
		bestIdx, best := -1, 0.0
		for i := range res.Parents {
			if s := score(upd, res.Parents[i]); s > best {
				best, bestIdx = s, i
			}
		}
		if bestIdx < 0 || best < threshold {
			upd.Type = listing.TypeUpdate
			upd.SetFlag("no_parent_found", true)
			res.Standalone = append(res.Standalone, upd)
			continue
		}

		parent := &res.Parents[bestIdx]
		parent.AppendUpdate(listing.Update{
			Title:      upd.Title,
			Link:       upd.ApplyLink,
			CapturedAt: now.UTC().Format(time.RFC3339),
		})
		foldDeadline(parent, upd, reg, now)
		if parent.NumberOfPosts == 0 {
			if posts := listing.ParsePostsFromText(upd.Title); posts > 0 {
				parent.NumberOfPosts = posts
				reg.SetSlugHint(listing.Slugify(parent.Title), map[string]any{"posts": posts}, now)
			}
		}
		res.Merged++
	}
	return res
}

// foldDeadline advances the parent deadline to the latest date found in the
// update title, only if strictly later than the current one. Ties keep the
// existing deadline.
func foldDeadline(parent *listing.Record, upd listing.Record, reg *learner.Registry, now time.Time) {
	dates := extractDates(upd.Title)
	if len(dates) == 0 {
		return
	}
	latest := dates[0]
	for _, d := range dates[1:] {
		if d.After(latest) {
			latest = d
		}
	}
	cur := listing.ParseDateAny(parent.Deadline)
	if cur.IsZero() || latest.After(cur) {
		parent.Deadline = listing.FormatDate(latest)
		reg.SetSlugHint(listing.Slugify(parent.Title), map[string]any{"lastDate": parent.Deadline}, now)
	}
}
