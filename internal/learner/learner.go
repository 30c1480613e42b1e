// Persistent, append-only registry of learned non-vacancy signatures and
// per-listing correction hints, grown from user reports. The only mutation
// surface is AddPattern / SetSlugHint; entries are never deleted
// automatically.

package learner

import (
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"go-vacancy-pipeline/internal/listing"
)

const (
	maxTitleTokens = 8
	maxPathTokens  = 6
	maxPathTokLen  = 40
	maxNotes       = 50
)

// Pattern describes a class of URLs empirically confirmed non-vacancy for
// one host.
type Pattern struct {
	Kind        string   `json:"kind"`
	TitleTokens []string `json:"titleTokens"`
	PathTokens  []string `json:"pathTokens"`
	AddedAt     string   `json:"addedAt"`
}

// Registry is the learning document persisted as learn_registry.json.
type Registry struct {
	ByHost   map[string]map[string]any `json:"byHost"`
	BySlug   map[string]map[string]any `json:"bySlug"`
	Patterns map[string][]Pattern      `json:"patterns"`
	Notes    []map[string]any          `json:"notes"`
}

// NewRegistry returns an empty registry with all maps allocated.
func NewRegistry() *Registry {
	return &Registry{
		ByHost:   map[string]map[string]any{},
		BySlug:   map[string]map[string]any{},
		Patterns: map[string][]Pattern{},
	}
}

// Normalize repairs nil maps after a JSON load of a partial document.
func (r *Registry) Normalize() {
	if r.ByHost == nil {
		r.ByHost = map[string]map[string]any{}
	}
	if r.BySlug == nil {
		r.BySlug = map[string]map[string]any{}
	}
	if r.Patterns == nil {
		r.Patterns = map[string][]Pattern{}
	}
}

// note prepends a recent-event record, capped at maxNotes.
func (r *Registry) note(ev map[string]any, now time.Time) {
	ev["at"] = now.UTC().Format(time.RFC3339)
	r.Notes = append([]map[string]any{ev}, r.Notes...)
	if len(r.Notes) > maxNotes {
		r.Notes = r.Notes[:maxNotes]
	}
}

func uniqueHead(tokens []string, limit int) []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	var out []string
	for _, t := range tokens {
		if seen.Contains(t) {
			continue
		}
		seen.Add(t)
		out = append(out, t)
		if len(out) == limit {
			break
		}
	}
	return out
}

// AddPattern records a non-vacancy signature for the URL's host: up to 8
// title tokens and 6 short path tokens. Insert-if-absent: an identical
// pattern for the host is a no-op. Returns true when a new entry was added.
func (r *Registry) AddPattern(host, title, url string, now time.Time) bool {
	if host == "" {
		return false
	}
	tt := uniqueHead(listing.TitleTokens(title), maxTitleTokens)
	var pt []string
	for _, tok := range listing.PathTokens(url) {
		if len(tok) <= maxPathTokLen {
			pt = append(pt, tok)
		}
		if len(pt) == maxPathTokens {
			break
		}
	}
	pat := Pattern{Kind: "non_vacancy", TitleTokens: tt, PathTokens: pt, AddedAt: now.UTC().Format(time.RFC3339)}

	for _, existing := range r.Patterns[host] {
		if samePattern(existing, pat) {
			return false
		}
	}
	r.Patterns[host] = append(r.Patterns[host], pat)
	r.note(map[string]any{"learned": "non_vacancy_pattern", "host": host, "titleTokens": tt, "pathTokens": pt}, now)
	return true
}

func samePattern(a, b Pattern) bool {
	return a.Kind == b.Kind &&
		mapset.NewThreadUnsafeSet(a.TitleTokens...).Equal(mapset.NewThreadUnsafeSet(b.TitleTokens...)) &&
		mapset.NewThreadUnsafeSet(a.PathTokens...).Equal(mapset.NewThreadUnsafeSet(b.PathTokens...))
}

// MatchesNonVacancy checks the host's learned patterns against a candidate.
// A match requires the URL path tokens to cover the pattern's path tokens
// and at least half of the pattern's title tokens (minimum one) to appear
// in the candidate title.
func (r *Registry) MatchesNonVacancy(host, title, url string) bool {
	patterns := r.Patterns[host]
	if len(patterns) == 0 {
		return false
	}
	tt := mapset.NewThreadUnsafeSet(listing.TitleTokens(title)...)
	pt := mapset.NewThreadUnsafeSet(listing.PathTokens(url)...)

	for _, p := range patterns {
		if p.Kind != "non_vacancy" {
			continue
		}
		needPT := mapset.NewThreadUnsafeSet(p.PathTokens...)
		if needPT.Cardinality() > 0 && !needPT.IsSubset(pt) {
			continue
		}
		needTT := mapset.NewThreadUnsafeSet(p.TitleTokens...)
		if needTT.Cardinality() == 0 {
			return true
		}
		required := needTT.Cardinality() / 2
		if required < 1 {
			required = 1
		}
		if tt.Intersect(needTT).Cardinality() >= required {
			return true
		}
	}
	return false
}

// SetSlugHint stores per-listing corrections (lastDate, posts, eligibility,
// fixedLink) under the listing's slug. Only changed, non-empty values are
// written; any change stamps updatedAt and records a note.
func (r *Registry) SetSlugHint(slug string, hints map[string]any, now time.Time) {
	if slug == "" || len(hints) == 0 {
		return
	}
	rec := r.BySlug[slug]
	if rec == nil {
		rec = map[string]any{}
	}
	changed := false
	for k, v := range hints {
		if v == nil || v == "" {
			continue
		}
		if rec[k] != v {
			rec[k] = v
			changed = true
		}
	}
	if changed {
		rec["updatedAt"] = now.UTC().Format(time.RFC3339)
		r.BySlug[slug] = rec
		ev := map[string]any{"slug_hint": slug}
		for k, v := range hints {
			ev[k] = v
		}
		r.note(ev, now)
	}
}

// Stats reports registry sizes for the transparency summary.
func (r *Registry) Stats() listing.LearningStats {
	patterns := make(map[string]int, len(r.Patterns))
	for host, v := range r.Patterns {
		patterns[host] = len(v)
	}
	return listing.LearningStats{Hosts: len(r.ByHost), Slugs: len(r.BySlug), Patterns: patterns}
}
