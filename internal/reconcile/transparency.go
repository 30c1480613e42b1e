package reconcile

import (
	"sort"
	"strings"
	"time"

	"go-vacancy-pipeline/internal/learner"
	"go-vacancy-pipeline/internal/listing"
)

// SchemaVersion of the persisted document format.
const SchemaVersion = "2.0"

// buildTransparency recomputes the full run summary. It is pure aggregation
// over the final partitions; nothing here feeds back into filtering.
func buildTransparency(doc *listing.Document, in Input, stats *runStats, opts Options, reg *learner.Registry) listing.Transparency {
	t := listing.Transparency{
		SchemaVersion:      SchemaVersion,
		RunMode:            opts.RunMode,
		LastUpdated:        opts.Now.UTC().Format(time.RFC3339),
		MergedUpdates:      stats.merged,
		TotalListings:      len(doc.JobListings),
		ArchivedCount:      len(doc.ArchivedListings),
		AppliedCount:       len(doc.Sections.Applied),
		RejectedHindi:      stats.rejectedHindi,
		RejectedIneligible: stats.rejectedIneligible,
		Learning:           reg.Stats(),
	}
	for _, v := range in.Votes {
		if v.Type == "vote" {
			t.VotesRecorded++
		}
	}
	t.SourcesByStatus = sourceCoverage(in.Rules, doc.JobListings)
	return t
}

// sourceCoverage counts active listings per configured capture-hint host.
func sourceCoverage(rules *listing.Rules, active []listing.Record) []listing.SourceStatus {
	if rules == nil {
		return []listing.SourceStatus{}
	}
	perHost := map[string]int{}
	for _, rec := range active {
		if h := listing.Host(rec.ApplyLink); h != "" {
			perHost[h]++
		}
	}
	hosts := map[string]bool{}
	for _, hint := range rules.CaptureHints {
		h := listing.Host(hint)
		if h == "" {
			// Bare domain hints have no scheme; take them as-is.
			h = strings.ToLower(strings.TrimSpace(hint))
		}
		if h != "" {
			hosts[h] = true
		}
	}
	sorted := make([]string, 0, len(hosts))
	for h := range hosts {
		sorted = append(sorted, h)
	}
	sort.Strings(sorted)

	out := make([]listing.SourceStatus, 0, len(sorted))
	for _, h := range sorted {
		out = append(out, listing.SourceStatus{Host: h, Items: perHost[h]})
	}
	return out
}
