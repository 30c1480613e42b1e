// The reconciliation core: takes one batch of deduplicated candidates plus
// the previously persisted document and produces the next canonical set of
// active and archived listings. User "applied" markings always win over
// automated archival, subject to the exam_done grace window.

package reconcile

import (
	"log"
	"sort"
	"strconv"
	"time"

	"go-vacancy-pipeline/internal/dedup"
	"go-vacancy-pipeline/internal/eligibility"
	"go-vacancy-pipeline/internal/learner"
	"go-vacancy-pipeline/internal/linker"
	"go-vacancy-pipeline/internal/listing"
)

// DefaultGraceDays is the exam_done grace window.
const DefaultGraceDays = 7

// Options are the per-run policy knobs.
type Options struct {
	RunMode       string
	Now           time.Time
	GraceDays     int
	LinkThreshold float64
	Eligibility   eligibility.Config
}

func (o Options) withDefaults() Options {
	if o.RunMode == "" {
		o.RunMode = "nightly"
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.GraceDays <= 0 {
		o.GraceDays = DefaultGraceDays
	}
	return o
}

// Input bundles everything one run consumes. Rules and Registry are mutated
// in place (capture hints, learned patterns, slug hints); everything else
// is read-only.
type Input struct {
	Document    *listing.Document
	Candidates  []listing.Candidate
	UserState   listing.UserState
	Reports     []listing.Report
	Submissions []listing.Submission
	Votes       []listing.Vote
	Rules       *listing.Rules
	Registry    *learner.Registry
}

// Run executes one full reconciliation pass:
// dedup → link → submissions → filter/learn/reports → section → summarize.
func Run(in Input, opts Options) *listing.Document {
	opts = opts.withDefaults()
	now := opts.Now
	reg := in.Registry
	if reg == nil {
		reg = learner.NewRegistry()
	}
	prior := in.Document
	if prior == nil {
		prior = &listing.Document{}
	}

	archivedIDs := make(map[string]bool, len(prior.ArchivedListings))
	for _, a := range prior.ArchivedListings {
		archivedIDs[a.ID] = true
	}

	// Phase 1: collapse the batch, merge against the prior document and
	// drop anything already archived — archived listings never return
	// automatically.
	all, _, _ := dedup.MergeWithPrior(prior.JobListings, dedup.Collapse(in.Candidates))
	active := all[:0:0]
	for _, rec := range all {
		if !archivedIDs[rec.ID] {
			active = append(active, rec)
		}
	}

	// Phase 2: fold corrigendum/extension notices into their parents.
	linked := linker.Link(active, reg, opts.LinkThreshold, now)
	parents := linked.Parents

	// Phase 3: user-submitted missing listings become trusted vacancies.
	parents = ingestSubmissions(parents, in.Submissions, in.Rules, archivedIDs)

	reports := indexReports(in.Reports)
	applied, otherMarked := partitionUserState(in.UserState, now, opts.GraceDays)

	archived := append([]listing.Record(nil), prior.ArchivedListings...)
	archive := func(rec listing.Record, reason string) {
		if archivedIDs[rec.ID] {
			return
		}
		rec.SetFlag("removed_reason", reason)
		archivedIDs[rec.ID] = true
		archived = append(archived, rec)
	}

	var primary, other []listing.Record
	stats := &runStats{merged: linked.Merged}

	// Phase 4: per-record reconciliation.
	for _, rec := range parents {
		host := listing.Host(rec.ApplyLink)

		// Applied markings protect a record from every automated filter.
		if applied[rec.ID] {
			finishRecord(&rec, now)
			primary = append(primary, rec)
			continue
		}

		if ok, reason := eligibility.Classify(rec, opts.Eligibility); !ok {
			rec.SetFlag("auto_filtered", reason)
			archive(rec, "auto_filtered_"+reason)
			if reason == eligibility.ReasonHindiTitle {
				stats.rejectedHindi++
			} else {
				stats.rejectedIneligible++
			}
			continue
		}

		if reg.MatchesNonVacancy(host, rec.Title, rec.ApplyLink) {
			// A record carrying both a post count and a parseable deadline
			// is strong positive evidence that beats a weak learned signal.
			if !(rec.NumberOfPosts > 0 && !listing.ParseDateAny(rec.Deadline).IsZero()) {
				rec.SetFlag("auto_filtered", "learn_non_vacancy")
				archive(rec, "auto_filtered_learn_non_vacancy")
				stats.rejectedIneligible++
				continue
			}
		}

		if rep := findReport(reports, rec); rep != nil {
			if removed := applyReport(&rec, rep, reg, host, now); removed != "" {
				archive(rec, removed)
				continue
			}
		}

		if reason, expired := examDoneExpired(in.UserState, rec.ID, now, opts.GraceDays); expired {
			archive(rec, reason)
			continue
		}

		finishRecord(&rec, now)

		// Expired deadline alone never archives, only demotes to other.
		if d := listing.ParseDateAny(rec.Deadline); !d.IsZero() && rec.DaysLeft != nil && *rec.DaysLeft < 0 {
			other = append(other, rec)
		} else if otherMarked[rec.ID] {
			other = append(other, rec)
		} else {
			primary = append(primary, rec)
		}
	}

	// Phase 5: unmatched updates flow through as metadata, never filtered.
	for _, upd := range linked.Standalone {
		if archivedIDs[upd.ID] {
			continue
		}
		finishRecord(&upd, now)
		if upd.DaysLeft != nil && *upd.DaysLeft < 0 {
			other = append(other, upd)
		} else {
			primary = append(primary, upd)
		}
	}

	primary = qcDedup(primary)
	other = qcDedup(other)
	sortListings(primary)
	sortListings(other)

	doc := &listing.Document{
		JobListings:      append(append([]listing.Record(nil), primary...), other...),
		ArchivedListings: archived,
	}
	doc.Sections = buildSections(primary, other, applied)
	doc.TransparencyInfo = buildTransparency(doc, in, stats, opts, reg)
	return doc
}

type runStats struct {
	merged             int
	rejectedHindi      int
	rejectedIneligible int
}

// finishRecord derives daysLeft (signed, negative when the deadline has
// passed) and promotes a post count from the title or flags when missing.
func finishRecord(rec *listing.Record, now time.Time) {
	if days, ok := listing.DaysLeft(rec.Deadline, now); ok {
		d := days
		rec.DaysLeft = &d
	}
	if rec.NumberOfPosts == 0 {
		if posts := listing.ParsePostsFromText(rec.Title); posts > 0 {
			rec.NumberOfPosts = posts
		} else if posts := flagPosts(rec.Flags); posts > 0 {
			rec.NumberOfPosts = posts
		}
	}
}

// flagPosts reads a posts hint out of the open flag map, tolerating the
// number/string ambiguity of scraped JSON.
func flagPosts(f listing.Flags) int {
	if f == nil {
		return 0
	}
	switch v := f["posts"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

// partitionUserState splits user state into protected ids (applied, or
// exam_done inside the grace window) and other-marked ids (sectioning
// only). Malformed timestamps fail open: the record stays protected.
func partitionUserState(state listing.UserState, now time.Time, graceDays int) (applied, otherMarked map[string]bool) {
	applied = map[string]bool{}
	otherMarked = map[string]bool{}
	for id, entry := range state {
		switch entry.Action {
		case listing.ActionApplied:
			applied[id] = true
		case listing.ActionExamDone:
			days, ok := daysSince(entry.TS, now)
			if !ok {
				log.Printf("⚠️ Unparsable timestamp %q for %s, keeping record", entry.TS, id)
				applied[id] = true
			} else if days <= graceDays {
				applied[id] = true
			}
		case listing.ActionOther, listing.ActionNotInterested:
			otherMarked[id] = true
		}
	}
	return applied, otherMarked
}

// examDoneExpired reports whether a non-protected record should be archived
// because its exam_done grace window has elapsed.
func examDoneExpired(state listing.UserState, id string, now time.Time, graceDays int) (string, bool) {
	entry, ok := state[id]
	if !ok || entry.Action != listing.ActionExamDone {
		return "", false
	}
	days, ok := daysSince(entry.TS, now)
	if !ok {
		return "", false // fails open
	}
	if days > graceDays {
		return "auto_archived_exam_done_7d", true
	}
	return "", false
}

// daysSince computes whole days between a recorded timestamp and now, both
// truncated to IST dates.
func daysSince(ts string, now time.Time) (int, bool) {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return 0, false
	}
	a := t.In(listing.IST)
	b := now.In(listing.IST)
	aDay := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, listing.IST)
	bDay := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, listing.IST)
	return int(bDay.Sub(aDay).Hours() / 24), true
}

// ingestSubmissions adds user-reported missing listings as trusted vacancy
// records when their URL is not already known. New official sites are
// appended to the collector's capture hints.
func ingestSubmissions(parents []listing.Record, subs []listing.Submission, rules *listing.Rules, archivedIDs map[string]bool) []listing.Record {
	seen := make(map[string]bool, len(parents))
	for _, p := range parents {
		seen[listing.NormalizeURL(p.ApplyLink)] = true
	}
	for _, s := range subs {
		if s.Type != "missing" {
			continue
		}
		if rules != nil && s.OfficialSite != "" {
			rules.AddCaptureHint(s.OfficialSite)
		}
		title := listing.NormalizeSpaces(s.Title)
		url := listing.NormalizeURL(s.URL)
		if title == "" || url == "" || seen[url] {
			continue
		}
		rec := listing.Record{
			ID:                 listing.StableID(url),
			Title:              title,
			QualificationLevel: "Any graduate",
			Domicile:           "All India",
			Deadline:           listing.NormalizeDeadline(s.LastDate),
			ApplyLink:          url,
			DetailLink:         url,
			Source:             listing.SourceOfficial,
			Type:               listing.TypeVacancy,
			Flags:              listing.Flags{"added_from_missing": true, "trusted": true},
		}
		if archivedIDs[rec.ID] {
			continue
		}
		if n, err := strconv.Atoi(s.Posts); err == nil && n > 0 {
			rec.NumberOfPosts = n
		}
		seen[url] = true
		parents = append(parents, rec)
	}
	return parents
}

// indexReports collapses the append-only report log to one entry per
// listing id: later reports override earlier ones field by field.
func indexReports(reports []listing.Report) map[string]*listing.Report {
	out := map[string]*listing.Report{}
	for _, r := range reports {
		if r.Type != "report" || r.JobID == "" {
			continue
		}
		rep := out[r.JobID]
		if rep == nil {
			cp := r
			out[r.JobID] = &cp
			continue
		}
		if r.ReasonCode != "" {
			rep.ReasonCode = r.ReasonCode
		}
		if r.LastDate != "" {
			rep.LastDate = r.LastDate
		}
		if r.Eligibility != "" {
			rep.Eligibility = r.Eligibility
		}
		if r.EvidenceURL != "" {
			rep.EvidenceURL = r.EvidenceURL
		}
		if r.Posts != "" {
			rep.Posts = r.Posts
		}
		if r.URL != "" {
			rep.URL = r.URL
		}
	}
	return out
}

// findReport matches a report by listing id, falling back to normalized URL
// comparison for reports filed before the id stabilized.
func findReport(reports map[string]*listing.Report, rec listing.Record) *listing.Report {
	if rep, ok := reports[rec.ID]; ok {
		return rep
	}
	want := listing.NormalizeURL(rec.ApplyLink)
	for _, rep := range reports {
		if rep.URL != "" && listing.NormalizeURL(rep.URL) == want {
			return rep
		}
	}
	return nil
}

// applyReport folds user-reported corrections into the record. A reason of
// duplicate, not_vacancy or last_date_over returns a non-empty removal
// reason forcing archival; not_vacancy additionally teaches the learner.
func applyReport(rec *listing.Record, rep *listing.Report, reg *learner.Registry, host string, now time.Time) (removed string) {
	slug := listing.Slugify(rec.Title)
	switch rep.ReasonCode {
	case listing.ReasonWrongLastDate:
		if rep.LastDate != "" {
			rec.Deadline = listing.NormalizeDeadline(rep.LastDate)
			reg.SetSlugHint(slug, map[string]any{"lastDate": rec.Deadline}, now)
		}
	case listing.ReasonWrongEligibility:
		if rep.Eligibility != "" {
			rec.QualificationLevel = rep.Eligibility
			reg.SetSlugHint(slug, map[string]any{"eligibility": rec.QualificationLevel}, now)
		}
	case listing.ReasonBadLink:
		if rep.EvidenceURL != "" {
			rec.ApplyLink = rep.EvidenceURL
			rec.DetailLink = rep.EvidenceURL
			rec.SetFlag("fixed_link", true)
			reg.SetSlugHint(slug, map[string]any{"fixedLink": rec.ApplyLink}, now)
		}
	case listing.ReasonNotVacancy:
		reg.AddPattern(host, rec.Title, rec.ApplyLink, now)
		return "reported_" + rep.ReasonCode
	case listing.ReasonDuplicate, listing.ReasonLastDateOver:
		return "reported_" + rep.ReasonCode
	}
	if rec.NumberOfPosts == 0 && rep.Posts != "" {
		if n, err := strconv.Atoi(rep.Posts); err == nil && n > 0 {
			rec.NumberOfPosts = n
			reg.SetSlugHint(slug, map[string]any{"posts": n}, now)
		}
	}
	return ""
}

// qcDedup resolves duplicate ids in a final section, keeping the record
// with the more complete title.
func qcDedup(recs []listing.Record) []listing.Record {
	idx := make(map[string]int, len(recs))
	out := recs[:0:0]
	for _, rec := range recs {
		if i, ok := idx[rec.ID]; ok {
			if len(rec.Title) > len(out[i].Title) {
				out[i] = rec
			}
			continue
		}
		idx[rec.ID] = len(out)
		out = append(out, rec)
	}
	return out
}

// sortListings orders records by deadline (unknown last), then title, so
// output is stable across runs.
func sortListings(recs []listing.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		di := listing.ParseDateAny(recs[i].Deadline)
		dj := listing.ParseDateAny(recs[j].Deadline)
		switch {
		case di.IsZero() && dj.IsZero():
			return recs[i].Title < recs[j].Title
		case di.IsZero():
			return false
		case dj.IsZero():
			return true
		case !di.Equal(dj):
			return di.Before(dj)
		}
		return recs[i].Title < recs[j].Title
	})
}

// buildSections partitions active listing ids for the dashboard. Applied
// ids are listed separately and excluded from primary.
func buildSections(primary, other []listing.Record, applied map[string]bool) listing.Sections {
	s := listing.Sections{Applied: []string{}, Other: []string{}, Primary: []string{}}
	for _, rec := range primary {
		if applied[rec.ID] {
			s.Applied = append(s.Applied, rec.ID)
		} else {
			s.Primary = append(s.Primary, rec.ID)
		}
	}
	for _, rec := range other {
		if applied[rec.ID] {
			s.Applied = append(s.Applied, rec.ID)
			continue
		}
		s.Other = append(s.Other, rec.ID)
	}
	return s
}
