package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-vacancy-pipeline/internal/learner"
	"go-vacancy-pipeline/internal/listing"
)

var testNow = time.Date(2025, 11, 1, 9, 0, 0, 0, listing.IST)

func testOpts() Options {
	return Options{RunMode: "nightly", Now: testNow}
}

func candidate(title, link, deadline string) listing.Candidate {
	return listing.Candidate{Title: title, ApplyLink: link, Deadline: deadline, Source: listing.SourceOfficial}
}

func TestRunBasicPass(t *testing.T) {
	in := Input{
		Candidates: []listing.Candidate{
			candidate("Clerk Recruitment 2025 for 120 Posts", "https://bssc.bihar.gov.in/advt-12.pdf", "10/12/2025"),
			candidate("Peon Recruitment 2025", "https://csbc.bihar.gov.in/advt-7.pdf", "20/11/2025"),
		},
		Rules:    &listing.Rules{CaptureHints: []string{"https://bssc.bihar.gov.in"}},
		Registry: learner.NewRegistry(),
	}

	doc := Run(in, testOpts())

	require.Len(t, doc.JobListings, 2)
	assert.Empty(t, doc.ArchivedListings)
	assert.Len(t, doc.Sections.Primary, 2)

	// Sorted by deadline: the earlier deadline first.
	assert.Equal(t, "Peon Recruitment 2025", doc.JobListings[0].Title)
	require.NotNil(t, doc.JobListings[0].DaysLeft)
	assert.Equal(t, 19, *doc.JobListings[0].DaysLeft)
	assert.Equal(t, 120, doc.JobListings[1].NumberOfPosts)

	tr := doc.TransparencyInfo
	assert.Equal(t, SchemaVersion, tr.SchemaVersion)
	assert.Equal(t, "nightly", tr.RunMode)
	assert.Equal(t, 2, tr.TotalListings)
	require.Len(t, tr.SourcesByStatus, 1)
	assert.Equal(t, listing.SourceStatus{Host: "bssc.bihar.gov.in", Items: 1}, tr.SourcesByStatus[0])
}

func TestRunIsIdempotent(t *testing.T) {
	in := Input{
		Candidates: []listing.Candidate{
			candidate("Clerk Recruitment 2025", "https://bssc.bihar.gov.in/advt-12.pdf", "10/12/2025"),
			candidate("Corrigendum Advt 12 — last date extended to 20/12/2025", "https://bssc.bihar.gov.in/corr-advt-12.pdf", ""),
		},
		Registry: learner.NewRegistry(),
	}

	first := Run(in, testOpts())
	in.Document = first
	second := Run(in, testOpts())

	assert.Equal(t, first.JobListings, second.JobListings)
	assert.Equal(t, first.ArchivedListings, second.ArchivedListings)
	assert.Equal(t, first.Sections, second.Sections)

	require.Len(t, second.JobListings, 1)
	assert.Len(t, second.JobListings[0].Updates, 1, "re-running must not duplicate folded updates")
	assert.Equal(t, "20/12/2025", second.JobListings[0].Deadline)
}

func TestRunAppliedProtectionBeatsFilters(t *testing.T) {
	// Title that every automated filter would reject.
	link := "https://site.gov.in/advt-9.pdf"
	id := listing.StableID(link)
	in := Input{
		Candidates: []listing.Candidate{candidate("शिक्षक भर्ती पद", link, "10/12/2025")},
		UserState:  listing.UserState{id: {Action: listing.ActionApplied, TS: testNow.Format(time.RFC3339)}},
		Registry:   learner.NewRegistry(),
	}

	doc := Run(in, testOpts())

	require.Len(t, doc.JobListings, 1)
	assert.Empty(t, doc.ArchivedListings)
	assert.Equal(t, []string{id}, doc.Sections.Applied)
	assert.Empty(t, doc.Sections.Primary, "applied ids are excluded from primary")
	assert.Equal(t, 1, doc.TransparencyInfo.AppliedCount)
	assert.Equal(t, 0, doc.TransparencyInfo.RejectedHindi)
}

func TestRunEligibilityArchival(t *testing.T) {
	in := Input{
		Candidates: []listing.Candidate{
			candidate("शिक्षक भर्ती पद", "https://a.gov.in/1", "10/12/2025"),
			candidate("Junior Engineer Recruitment 2025", "https://b.gov.in/2", "10/12/2025"),
			candidate("Clerk Recruitment 2025", "https://c.gov.in/3", "10/12/2025"),
		},
		Registry: learner.NewRegistry(),
	}

	doc := Run(in, testOpts())

	require.Len(t, doc.JobListings, 1)
	assert.Equal(t, "Clerk Recruitment 2025", doc.JobListings[0].Title)
	require.Len(t, doc.ArchivedListings, 2)
	assert.Equal(t, "auto_filtered_Hindi_title", doc.ArchivedListings[0].Flags.String("removed_reason"))
	assert.Equal(t, "auto_filtered_Tech_position", doc.ArchivedListings[1].Flags.String("removed_reason"))
	assert.Equal(t, 1, doc.TransparencyInfo.RejectedHindi)
	assert.Equal(t, 1, doc.TransparencyInfo.RejectedIneligible)
}

func TestRunArchivedNeverReturns(t *testing.T) {
	link := "https://a.gov.in/1"
	prior := &listing.Document{
		ArchivedListings: []listing.Record{{
			ID:        listing.StableID(link),
			Title:     "Old Listing",
			ApplyLink: link,
			Flags:     listing.Flags{"removed_reason": "reported_duplicate"},
		}},
	}
	in := Input{
		Document:   prior,
		Candidates: []listing.Candidate{candidate("Old Listing", link, "10/12/2025")},
		Registry:   learner.NewRegistry(),
	}

	doc := Run(in, testOpts())

	assert.Empty(t, doc.JobListings)
	require.Len(t, doc.ArchivedListings, 1, "re-archiving must not duplicate the entry")
}

func TestRunExpiredDeadlineDemotesToOther(t *testing.T) {
	in := Input{
		Candidates: []listing.Candidate{candidate("Clerk Recruitment 2025", "https://a.gov.in/1", "15/10/2025")},
		Registry:   learner.NewRegistry(),
	}

	doc := Run(in, testOpts())

	require.Len(t, doc.JobListings, 1, "expired deadline alone never archives")
	assert.Empty(t, doc.ArchivedListings)
	assert.Empty(t, doc.Sections.Primary)
	require.Len(t, doc.Sections.Other, 1)
	require.NotNil(t, doc.JobListings[0].DaysLeft)
	assert.Negative(t, *doc.JobListings[0].DaysLeft)
}

func TestRunExamDoneGraceWindow(t *testing.T) {
	inside := "https://a.gov.in/inside"
	outside := "https://a.gov.in/outside"
	in := Input{
		Candidates: []listing.Candidate{
			candidate("Clerk Recruitment Phase 1", inside, "10/12/2025"),
			candidate("Clerk Recruitment Phase 2", outside, "10/12/2025"),
		},
		UserState: listing.UserState{
			listing.StableID(inside):  {Action: listing.ActionExamDone, TS: testNow.AddDate(0, 0, -3).Format(time.RFC3339)},
			listing.StableID(outside): {Action: listing.ActionExamDone, TS: testNow.AddDate(0, 0, -10).Format(time.RFC3339)},
		},
		Registry: learner.NewRegistry(),
	}

	doc := Run(in, testOpts())

	require.Len(t, doc.JobListings, 1)
	assert.Equal(t, "Clerk Recruitment Phase 1", doc.JobListings[0].Title)
	require.Len(t, doc.ArchivedListings, 1)
	assert.Equal(t, "auto_archived_exam_done_7d", doc.ArchivedListings[0].Flags.String("removed_reason"))
}

func TestRunMalformedTimestampFailsOpen(t *testing.T) {
	link := "https://a.gov.in/1"
	in := Input{
		Candidates: []listing.Candidate{candidate("Clerk Recruitment 2025", link, "10/12/2025")},
		UserState:  listing.UserState{listing.StableID(link): {Action: listing.ActionExamDone, TS: "not-a-timestamp"}},
		Registry:   learner.NewRegistry(),
	}

	doc := Run(in, testOpts())

	require.Len(t, doc.JobListings, 1, "unparsable timestamp must keep the record")
	assert.Empty(t, doc.ArchivedListings)
}

func TestRunReportCorrectsLastDate(t *testing.T) {
	link := "https://a.gov.in/advt.pdf"
	id := listing.StableID(link)
	reg := learner.NewRegistry()
	in := Input{
		Candidates: []listing.Candidate{candidate("Clerk Recruitment 2025", link, "10/12/2025")},
		Reports: []listing.Report{{
			Type: "report", JobID: id, ReasonCode: listing.ReasonWrongLastDate, LastDate: "25/12/2025",
		}},
		Registry: reg,
	}

	doc := Run(in, testOpts())

	require.Len(t, doc.JobListings, 1)
	assert.Equal(t, "25/12/2025", doc.JobListings[0].Deadline)
	assert.Equal(t, "25/12/2025", reg.BySlug["clerk-recruitment-2025"]["lastDate"])
}

func TestRunNotVacancyReportArchivesAndTeaches(t *testing.T) {
	link := "https://site.gov.in/docs/holiday-calendar.pdf"
	id := listing.StableID(link)
	reg := learner.NewRegistry()
	in := Input{
		Candidates: []listing.Candidate{candidate("Holiday Calendar 2025", link, "")},
		Reports:    []listing.Report{{Type: "report", JobID: id, ReasonCode: listing.ReasonNotVacancy}},
		Registry:   reg,
	}

	doc := Run(in, testOpts())

	assert.Empty(t, doc.JobListings)
	require.Len(t, doc.ArchivedListings, 1)
	assert.Equal(t, "reported_not_vacancy", doc.ArchivedListings[0].Flags.String("removed_reason"))
	assert.Len(t, reg.Patterns["site.gov.in"], 1, "not_vacancy reports teach the learner")

	// Next run: a sibling document on the same host is filtered by the
	// learned pattern without a fresh report.
	in2 := Input{
		Candidates: []listing.Candidate{candidate("Holiday Calendar 2026", "https://site.gov.in/docs/holiday-calendar.pdf?v=2026", "")},
		Registry:   reg,
	}
	doc2 := Run(in2, testOpts())
	assert.Empty(t, doc2.JobListings)
	require.Len(t, doc2.ArchivedListings, 1)
	assert.Equal(t, "auto_filtered_learn_non_vacancy", doc2.ArchivedListings[0].Flags.String("removed_reason"))
}

func TestRunLearnedPatternYieldsToStrongEvidence(t *testing.T) {
	reg := learner.NewRegistry()
	reg.AddPattern("site.gov.in", "Recruitment Notification", "https://site.gov.in/docs", testNow)

	// Post count plus parseable deadline overrides the weak learned signal.
	in := Input{
		Candidates: []listing.Candidate{candidate("Recruitment Notification for 80 Posts", "https://site.gov.in/docs/advt.pdf", "10/12/2025")},
		Registry:   reg,
	}

	doc := Run(in, testOpts())
	require.Len(t, doc.JobListings, 1)
	assert.Empty(t, doc.ArchivedListings)
}

func TestRunIngestsMissingSubmissions(t *testing.T) {
	rules := &listing.Rules{}
	in := Input{
		Candidates: []listing.Candidate{candidate("Known Clerk Recruitment 2025", "https://a.gov.in/known.pdf", "10/12/2025")},
		Submissions: []listing.Submission{
			{Type: "missing", Title: "Forest Guard Recruitment 2025", URL: "https://forest.bihar.gov.in/advt-3.pdf", OfficialSite: "https://forest.bihar.gov.in", Posts: "88", LastDate: "15/12/2025"},
			{Type: "missing", Title: "Known Clerk Recruitment 2025", URL: "https://a.gov.in/known.pdf"},
		},
		Rules:    rules,
		Registry: learner.NewRegistry(),
	}

	doc := Run(in, testOpts())

	require.Len(t, doc.JobListings, 2, "already-known URLs are not re-added")
	var sub *listing.Record
	for i := range doc.JobListings {
		if doc.JobListings[i].Flags.Bool("added_from_missing") {
			sub = &doc.JobListings[i]
		}
	}
	require.NotNil(t, sub)
	assert.Equal(t, "Forest Guard Recruitment 2025", sub.Title)
	assert.Equal(t, 88, sub.NumberOfPosts)
	assert.True(t, sub.Flags.Bool("trusted"))
	assert.Contains(t, rules.CaptureHints, "https://forest.bihar.gov.in")
}

func TestRunStandaloneUpdateFlowsThrough(t *testing.T) {
	in := Input{
		Candidates: []listing.Candidate{
			candidate("Corrigendum regarding typing test", "https://lonely.gov.in/corr-99.pdf", ""),
		},
		Registry: learner.NewRegistry(),
	}

	doc := Run(in, testOpts())

	require.Len(t, doc.JobListings, 1)
	assert.Equal(t, listing.TypeUpdate, doc.JobListings[0].Type)
	assert.True(t, doc.JobListings[0].Flags.Bool("no_parent_found"))
	assert.Empty(t, doc.ArchivedListings, "standalone updates are never filtered")
}

func TestRunCountsVotes(t *testing.T) {
	in := Input{
		Votes: []listing.Vote{
			{Type: "vote", Vote: "right", JobID: "job_x"},
			{Type: "vote", Vote: "wrong", JobID: "job_y"},
			{Type: "state", JobID: "job_z"},
		},
		Registry: learner.NewRegistry(),
	}

	doc := Run(in, testOpts())
	assert.Equal(t, 2, doc.TransparencyInfo.VotesRecorded)
}

func TestPartitionUserState(t *testing.T) {
	state := listing.UserState{
		"job_applied":  {Action: listing.ActionApplied, TS: testNow.Format(time.RFC3339)},
		"job_fresh":    {Action: listing.ActionExamDone, TS: testNow.AddDate(0, 0, -2).Format(time.RFC3339)},
		"job_stale":    {Action: listing.ActionExamDone, TS: testNow.AddDate(0, 0, -30).Format(time.RFC3339)},
		"job_other":    {Action: listing.ActionOther, TS: testNow.Format(time.RFC3339)},
		"job_notInt":   {Action: listing.ActionNotInterested, TS: testNow.Format(time.RFC3339)},
		"job_badStamp": {Action: listing.ActionExamDone, TS: "garbage"},
	}

	applied, otherMarked := partitionUserState(state, testNow, DefaultGraceDays)

	assert.True(t, applied["job_applied"])
	assert.True(t, applied["job_fresh"])
	assert.False(t, applied["job_stale"])
	assert.True(t, applied["job_badStamp"], "malformed timestamps fail open")
	assert.True(t, otherMarked["job_other"])
	assert.True(t, otherMarked["job_notInt"])
}

func TestQCDedupKeepsLongerTitle(t *testing.T) {
	recs := []listing.Record{
		{ID: "job_a", Title: "Clerk"},
		{ID: "job_b", Title: "Peon"},
		{ID: "job_a", Title: "Clerk Recruitment 2025"},
	}
	out := qcDedup(recs)
	require.Len(t, out, 2)
	assert.Equal(t, "Clerk Recruitment 2025", out[0].Title)
	assert.Equal(t, "Peon", out[1].Title)
}

func TestSortListings(t *testing.T) {
	recs := []listing.Record{
		{Title: "B", Deadline: "N/A"},
		{Title: "C", Deadline: "10/12/2025"},
		{Title: "A", Deadline: "N/A"},
		{Title: "D", Deadline: "20/11/2025"},
	}
	sortListings(recs)
	titles := []string{recs[0].Title, recs[1].Title, recs[2].Title, recs[3].Title}
	assert.Equal(t, []string{"D", "C", "A", "B"}, titles, "dated first ascending, unknown deadlines last by title")
}
