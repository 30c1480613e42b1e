// Collapse duplicate scrape observations into canonical listing records.
// Two layers: exact normalized-URL identity within one batch, then a coarse
// fuzzy key against the previously persisted document.

package dedup

import (
	"go-vacancy-pipeline/internal/listing"
)

// Collapse groups one batch of raw candidates by normalized apply link and
// resolves each group to a single canonical record: official sources beat
// aggregators, longer titles beat shorter ones, flag maps are unioned with
// the later observation winning. Records seen more than once are marked
// corroborated. Output order follows first appearance in the batch.
func Collapse(batch []listing.Candidate) []listing.Record {
	byURL := make(map[string]*listing.Record, len(batch))
	var order []string

	for _, c := range batch {
		key := listing.NormalizeURL(c.ApplyLink)
		if key == "" {
			continue
		}
		rec := listing.NewRecord(c)

		existing, ok := byURL[key]
		if !ok {
			r := rec
			byURL[key] = &r
			order = append(order, key)
			continue
		}

		// Conflict: pick the better observation, keep both flag maps.
		flags := listing.MergeFlags(existing.Flags, rec.Flags)
		if better(rec, *existing) {
			rec.Flags = flags
			byURL[key] = &rec
		} else {
			existing.Flags = flags
			listing.Enrich(existing, rec)
		}
		byURL[key].SetFlag("corroborated", true)
	}

	out := make([]listing.Record, 0, len(order))
	for _, key := range order {
		out = append(out, *byURL[key])
	}
	return out
}

// better reports whether a should replace b as the canonical observation.
func better(a, b listing.Record) bool {
	if a.Source == listing.SourceOfficial && b.Source != listing.SourceOfficial {
		return true
	}
	if b.Source == listing.SourceOfficial && a.Source != listing.SourceOfficial {
		return false
	}
	return len(a.Title) > len(b.Title)
}

// MergeWithPrior folds a collapsed batch into the previously persisted
// listing set. Matching is by stable id first, then by the coarse cross-run
// key, which catches near-duplicates whose URLs differ only by tracking
// parameters. Matches enrich the existing record (fill-empty-only); the
// rest are appended as new listings.
func MergeWithPrior(prior, fresh []listing.Record) (merged []listing.Record, added, enriched int) {
	merged = make([]listing.Record, len(prior))
	copy(merged, prior)

	byID := make(map[string]int, len(merged))
	byKey := make(map[string]int, len(merged))
	for i := range merged {
		byID[merged[i].ID] = i
		byKey[merged[i].CrossRunKey()] = i
	}

	for _, rec := range fresh {
		if i, ok := byID[rec.ID]; ok {
			listing.Enrich(&merged[i], rec)
			enriched++
			continue
		}
		if i, ok := byKey[rec.CrossRunKey()]; ok {
			listing.Enrich(&merged[i], rec)
			enriched++
			continue
		}
		byID[rec.ID] = len(merged)
		byKey[rec.CrossRunKey()] = len(merged)
		merged = append(merged, rec)
		added++
	}
	return merged, added, enriched
}
