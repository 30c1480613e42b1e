package eligibility

import (
	"testing"

	"go-vacancy-pipeline/internal/listing"
)

func classify(t *testing.T, title, domicile string) (bool, string) {
	t.Helper()
	return Classify(listing.Record{Title: title, Domicile: domicile}, Config{})
}

func TestClassifyRejections(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		reason string
	}{
		{"devanagari title", "शिक्षक भर्ती पद", ReasonHindiTitle},
		{"empty title", "", ReasonInvalidTitle},
		{"too short", "ab", ReasonInvalidTitle},
		{"teacher stream", "TGT Teacher Recruitment 2025", ReasonTeacher},
		{"assistant professor phrase", "Assistant Professor posts in Patna University", ReasonTeacher},
		{"tech stream", "Junior Engineer Recruitment 2025", ReasonTech},
		{"btech phrase", "Vacancy for B.Tech graduates", ReasonTech},
		{"pg stream", "MBA Trainee Recruitment", ReasonPostgraduate},
		{"pg phrase", "Recruitment of Post Graduate degree holders", ReasonPostgraduate},
		{"specialty skills", "Stenographer Grade C (steno test required)", ReasonSkills},
		{"domicile restricted", "Clerk (Domicile required, UP only)", ReasonDomicile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := classify(t, tt.title, "")
			if ok || reason != tt.reason {
				t.Errorf("Classify(%q) = %v, %s; want false, %s", tt.title, ok, reason, tt.reason)
			}
		})
	}
}

func TestClassifyAccepts(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		domicile string
	}{
		{"plain clerk", "Clerk Recruitment 2025 for 120 Posts", ""},
		{"all india marker", "Clerk — All India eligible", ""},
		{"allowed region in title", "Bihar Police Constable Recruitment", ""},
		{"allowed region in domicile field", "Constable Recruitment 2025", "Bihar domicile only"},
		{"open domicile field", "Peon Recruitment", "All states"},
		{"acronym title", "SSC", ""},
		{"missing everything else", "Office Attendant", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := classify(t, tt.title, tt.domicile)
			if !ok || reason != ReasonEligible {
				t.Errorf("Classify(%q, dom=%q) = %v, %s; want true, Eligible", tt.title, tt.domicile, ok, reason)
			}
		})
	}
}

func TestClassifyDomicileField(t *testing.T) {
	// A domicile field naming another state rejects.
	ok, reason := classify(t, "Constable Recruitment 2025", "Uttar Pradesh residents")
	if ok || reason != ReasonDomicile {
		t.Errorf("other-state domicile: got %v, %s", ok, reason)
	}
	// N/A behaves like missing data.
	ok, _ = classify(t, "Constable Recruitment 2025", "N/A")
	if !ok {
		t.Error("N/A domicile must not reject")
	}
}

func TestTokenMatchingDoesNotCatchSubstrings(t *testing.T) {
	// "cadre" must not trip the "cad" skill token, and "mail" must not
	// trip "ma"-style postgraduate abbreviations.
	ok, reason := classify(t, "State Cadre Clerk Recruitment", "")
	if !ok {
		t.Errorf("cadre wrongly matched a blocked token: %s", reason)
	}
	ok, reason = classify(t, "Mail Guard Recruitment 2025", "")
	if !ok {
		t.Errorf("mail wrongly matched a blocked token: %s", reason)
	}
}

func TestMixedScriptBelowThresholdPasses(t *testing.T) {
	// A mostly-Latin title with a short Hindi suffix stays under 0.3.
	ok, _ := classify(t, "Clerk Recruitment 2025 Apply Online (पद)", "")
	if !ok {
		t.Error("short Devanagari suffix must not reject")
	}
}

func TestConfigOverrides(t *testing.T) {
	rec := listing.Record{Title: "Jharkhand Staff Nursing Grade A"}
	ok, reason := Classify(rec, Config{AllowedRegion: "jharkhand"})
	if ok || reason != ReasonTech {
		t.Errorf("nursing token should reject regardless of region: %v %s", ok, reason)
	}

	rec = listing.Record{Title: "Jharkhand Clerk (domicile required)"}
	ok, _ = Classify(rec, Config{AllowedRegion: "jharkhand"})
	if !ok {
		t.Error("allowed region in title should satisfy a residency restriction")
	}
}
