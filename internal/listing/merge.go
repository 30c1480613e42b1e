package listing

// MergeFlags unions two flag maps into a fresh map. Precedence is explicit:
// on key collision the overlay value wins. Neither input is mutated.
func MergeFlags(base, overlay Flags) Flags {
	out := make(Flags, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

func emptyField(s string) bool {
	return s == "" || s == NA
}

// Enrich fills empty fields of dst from src. Existing data is never
// overwritten with emptier data; flags are unioned with src winning on
// collision. The id is untouched.
func Enrich(dst *Record, src Record) {
	if emptyField(dst.Title) && !emptyField(src.Title) {
		dst.Title = src.Title
	}
	if emptyField(dst.QualificationLevel) && !emptyField(src.QualificationLevel) {
		dst.QualificationLevel = src.QualificationLevel
	}
	if emptyField(dst.Domicile) && !emptyField(src.Domicile) {
		dst.Domicile = src.Domicile
	}
	if emptyField(dst.Deadline) && !emptyField(src.Deadline) {
		dst.Deadline = src.Deadline
	}
	if dst.ApplyLink == "" && src.ApplyLink != "" {
		dst.ApplyLink = src.ApplyLink
	}
	if dst.DetailLink == "" && src.DetailLink != "" {
		dst.DetailLink = src.DetailLink
	}
	if dst.Source == "" {
		dst.Source = src.Source
	}
	if dst.Type == "" {
		dst.Type = src.Type
	}
	if dst.NumberOfPosts == 0 && src.NumberOfPosts > 0 {
		dst.NumberOfPosts = src.NumberOfPosts
	}
	if len(src.Flags) > 0 {
		dst.Flags = MergeFlags(dst.Flags, src.Flags)
	}
}
