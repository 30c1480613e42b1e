// Shared data model for the vacancy pipeline.
// Field names mirror the persisted data.json / event log formats.

package listing

// Source of a scraped record
type Source string

const (
	SourceOfficial   Source = "official"
	SourceAggregator Source = "aggregator"
)

// Type separates real vacancies from corrigendum/extension notices
type Type string

const (
	TypeVacancy Type = "VACANCY"
	TypeUpdate  Type = "UPDATE"
)

// User state actions recorded by the dashboard
const (
	ActionApplied       = "applied"
	ActionExamDone      = "exam_done"
	ActionNotInterested = "not_interested"
	ActionOther         = "other"
	ActionUndo          = "undo"
)

// Report reason codes accepted from the dashboard report form
const (
	ReasonWrongLastDate    = "wrong_last_date"
	ReasonWrongEligibility = "wrong_eligibility"
	ReasonBadLink          = "bad_link"
	ReasonDuplicate        = "duplicate"
	ReasonNotVacancy       = "not_vacancy"
	ReasonLastDateOver     = "last_date_over"
)

// Flags is an open string-keyed map of booleans/strings attached to a record.
type Flags map[string]any

// Bool reads a flag as a boolean, tolerating absence.
func (f Flags) Bool(key string) bool {
	if f == nil {
		return false
	}
	v, ok := f[key].(bool)
	return ok && v
}

// String reads a flag as a string, tolerating absence.
func (f Flags) String(key string) string {
	if f == nil {
		return ""
	}
	s, _ := f[key].(string)
	return s
}

// Candidate is one freshly scraped observation, newline-delimited JSON on
// the candidate stream. Ephemeral: it never reaches the persisted document
// without going through dedup.
type Candidate struct {
	Title              string `json:"title"`
	ApplyLink          string `json:"applyLink"`
	DetailLink         string `json:"detailLink"`
	Source             Source `json:"source"`
	Domicile           string `json:"domicile"`
	QualificationLevel string `json:"qualificationLevel"`
	Type               Type   `json:"type"`
	Deadline           string `json:"deadline,omitempty"`
	NumberOfPosts      int    `json:"numberOfPosts,omitempty"`
	Flags              Flags  `json:"flags,omitempty"`
}

// Update summarizes a corrigendum/extension folded into a parent vacancy.
type Update struct {
	Title      string `json:"title"`
	Link       string `json:"link"`
	CapturedAt string `json:"capturedAt"`
}

// Record is the canonical persisted listing. Identity is content-addressed:
// the id is a pure function of the normalized apply link and never changes.
type Record struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	QualificationLevel string   `json:"qualificationLevel,omitempty"`
	Domicile           string   `json:"domicile,omitempty"`
	Deadline           string   `json:"deadline"`
	ApplyLink          string   `json:"applyLink"`
	DetailLink         string   `json:"detailLink"`
	Source             Source   `json:"source"`
	Type               Type     `json:"type"`
	NumberOfPosts      int      `json:"numberOfPosts,omitempty"`
	DaysLeft           *int     `json:"daysLeft,omitempty"`
	Flags              Flags    `json:"flags,omitempty"`
	Updates            []Update `json:"updates,omitempty"`
}

// SetFlag writes a flag, allocating the map on first use.
func (r *Record) SetFlag(key string, value any) {
	if r.Flags == nil {
		r.Flags = Flags{}
	}
	r.Flags[key] = value
}

// AppendUpdate records a folded update, skipping links already present so
// that re-running the same batch cannot grow the list.
func (r *Record) AppendUpdate(u Update) {
	for _, ex := range r.Updates {
		if ex.Link == u.Link {
			return
		}
	}
	r.Updates = append(r.Updates, u)
}

// StateEntry is one user-state record, keyed by listing id.
type StateEntry struct {
	Action string `json:"action"`
	TS     string `json:"ts"`
}

// UserState maps listing id to the user's latest action.
type UserState map[string]StateEntry

// Report is an append-only dashboard event flagging a bad listing.
type Report struct {
	Type        string `json:"type"`
	JobID       string `json:"jobId"`
	Title       string `json:"title,omitempty"`
	URL         string `json:"url,omitempty"`
	ReasonCode  string `json:"reasonCode"`
	EvidenceURL string `json:"evidenceUrl,omitempty"`
	Posts       string `json:"posts,omitempty"`
	LastDate    string `json:"lastDate,omitempty"`
	Eligibility string `json:"eligibility,omitempty"`
	Note        string `json:"note,omitempty"`
	TS          string `json:"ts,omitempty"`
}

// Submission is a user-supplied missing listing.
type Submission struct {
	Type         string `json:"type"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	OfficialSite string `json:"officialSite,omitempty"`
	Posts        string `json:"posts,omitempty"`
	LastDate     string `json:"lastDate,omitempty"`
	Note         string `json:"note,omitempty"`
	TS           string `json:"ts,omitempty"`
}

// Vote is a right/wrong confidence vote on a listing.
type Vote struct {
	Type  string `json:"type"`
	Vote  string `json:"vote"`
	JobID string `json:"jobId"`
	URL   string `json:"url,omitempty"`
	TS    string `json:"ts,omitempty"`
}

// Rules is the collector-facing rules document. The pipeline appends new
// capture hints from submissions but never rewrites the document wholesale.
type Rules struct {
	CaptureHints     []string           `json:"captureHints"`
	AggregatorScores map[string]float64 `json:"aggregatorScores"`
}

// AddCaptureHint appends a hint if absent, returning true when added.
func (r *Rules) AddCaptureHint(site string) bool {
	for _, h := range r.CaptureHints {
		if h == site {
			return false
		}
	}
	r.CaptureHints = append(r.CaptureHints, site)
	return true
}

// Sections partition active listing ids for the dashboard.
type Sections struct {
	Applied []string `json:"applied"`
	Other   []string `json:"other"`
	Primary []string `json:"primary"`
}

// SourceStatus is per-host coverage against the configured capture hints.
type SourceStatus struct {
	Host  string `json:"host"`
	Items int    `json:"items"`
}

// LearningStats summarizes the learning registry sizes.
type LearningStats struct {
	Hosts    int            `json:"hosts"`
	Slugs    int            `json:"slugs"`
	Patterns map[string]int `json:"patterns"`
}

// Transparency is the fully recomputed per-run summary.
type Transparency struct {
	SchemaVersion      string         `json:"schemaVersion"`
	RunMode            string         `json:"runMode"`
	LastUpdated        string         `json:"lastUpdated"`
	MergedUpdates      int            `json:"mergedUpdates"`
	TotalListings      int            `json:"totalListings"`
	SourcesByStatus    []SourceStatus `json:"sourcesByStatus"`
	ArchivedCount      int            `json:"archivedCount"`
	AppliedCount       int            `json:"appliedCount"`
	RejectedHindi      int            `json:"rejectedHindi"`
	RejectedIneligible int            `json:"rejectedIneligible"`
	VotesRecorded      int            `json:"votesRecorded"`
	Learning           LearningStats  `json:"learning"`
}

// Document is the persisted listing set, rewritten atomically every run.
type Document struct {
	JobListings      []Record     `json:"jobListings"`
	ArchivedListings []Record     `json:"archivedListings"`
	Sections         Sections     `json:"sections"`
	TransparencyInfo Transparency `json:"transparencyInfo"`
}

// Health mirrors the transparency summary for external monitoring.
type Health struct {
	OK bool `json:"ok"`
	Transparency
}
