// File-backed document store for the pipeline. Missing files substitute
// empty defaults with a warning; corrupt JSONL lines are skipped; every
// document write goes through a temp file and an atomic rename so a reader
// never observes a partially written document.

package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"go-vacancy-pipeline/internal/learner"
	"go-vacancy-pipeline/internal/listing"
)

// Well-known file names inside the data directory.
const (
	DataFile        = "data.json"
	RulesFile       = "rules.json"
	UserStateFile   = "user_state.json"
	RegistryFile    = "learn_registry.json"
	HealthFile      = "health.json"
	CandidatesFile  = "candidates.jsonl"
	VotesFile       = "votes.jsonl"
	ReportsFile     = "reports.jsonl"
	SubmissionsFile = "submissions.jsonl"
)

// Store reads and writes the pipeline documents under one directory.
type Store struct {
	Dir string
}

// New creates the data directory if needed and returns a store over it.
func New(dir string) *Store {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("⚠️ Failed to create data directory %s: %v", dir, err)
	}
	return &Store{Dir: dir}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.Dir, name)
}

// loadJSON reads a JSON document into out. Missing files and corrupt
// documents leave out untouched and return false with a warning logged —
// never fatal to the run.
func (s *Store) loadJSON(name string, out any) bool {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("⚠️ Failed to read %s: %v", name, err)
		} else {
			log.Printf("⚠️ %s missing, starting from empty default", name)
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Printf("⚠️ Failed to parse %s: %v", name, err)
		return false
	}
	return true
}

// writeJSONAtomic commits a document via temp file + rename. On write
// failure the temp file is discarded and the previously committed document
// stays authoritative.
func (s *Store) writeJSONAtomic(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	final := s.path(name)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", final, err)
	}
	return nil
}

// readLines streams a JSONL file, invoking fn per raw line. Blank and
// malformed lines are skipped, never fatal.
func readLines(path string, fn func([]byte)) {
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("⚠️ Failed to open %s: %v", path, err)
		}
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		fn(line)
	}
	if err := sc.Err(); err != nil {
		log.Printf("⚠️ Error reading %s: %v", path, err)
	}
}

// LoadDocument returns the persisted listing document, or an empty one.
func (s *Store) LoadDocument() *listing.Document {
	doc := &listing.Document{}
	s.loadJSON(DataFile, doc)
	return doc
}

// SaveDocument atomically rewrites the listing document.
func (s *Store) SaveDocument(doc *listing.Document) error {
	return s.writeJSONAtomic(DataFile, doc)
}

// LoadRules returns the collector rules document, or an empty one.
func (s *Store) LoadRules() *listing.Rules {
	rules := &listing.Rules{CaptureHints: []string{}, AggregatorScores: map[string]float64{}}
	s.loadJSON(RulesFile, rules)
	if rules.CaptureHints == nil {
		rules.CaptureHints = []string{}
	}
	if rules.AggregatorScores == nil {
		rules.AggregatorScores = map[string]float64{}
	}
	return rules
}

// SaveRules atomically rewrites the rules document.
func (s *Store) SaveRules(rules *listing.Rules) error {
	return s.writeJSONAtomic(RulesFile, rules)
}

// LoadUserState returns the user state map, or an empty one. The pipeline
// only reads this document; the ingest server is its writer.
func (s *Store) LoadUserState() listing.UserState {
	state := listing.UserState{}
	s.loadJSON(UserStateFile, &state)
	return state
}

// SaveUserState atomically rewrites the user state document.
func (s *Store) SaveUserState(state listing.UserState) error {
	return s.writeJSONAtomic(UserStateFile, state)
}

// LoadRegistry returns the learning registry, repaired to a usable shape.
func (s *Store) LoadRegistry() *learner.Registry {
	reg := learner.NewRegistry()
	s.loadJSON(RegistryFile, reg)
	reg.Normalize()
	return reg
}

// SaveRegistry atomically rewrites the learning registry.
func (s *Store) SaveRegistry(reg *learner.Registry) error {
	return s.writeJSONAtomic(RegistryFile, reg)
}

// SaveHealth mirrors the transparency summary for external monitoring.
func (s *Store) SaveHealth(t listing.Transparency) error {
	return s.writeJSONAtomic(HealthFile, listing.Health{OK: true, Transparency: t})
}

// LoadCandidates reads the newline-delimited candidate stream.
func (s *Store) LoadCandidates() []listing.Candidate {
	var out []listing.Candidate
	skipped := 0
	readLines(s.path(CandidatesFile), func(line []byte) {
		var c listing.Candidate
		if err := json.Unmarshal(line, &c); err != nil {
			skipped++
			return
		}
		out = append(out, c)
	})
	if skipped > 0 {
		log.Printf("⚠️ Skipped %d malformed candidate lines", skipped)
	}
	return out
}

// LoadReports reads the append-only report event log.
func (s *Store) LoadReports() []listing.Report {
	var out []listing.Report
	readLines(s.path(ReportsFile), func(line []byte) {
		var r listing.Report
		if err := json.Unmarshal(line, &r); err == nil {
			out = append(out, r)
		}
	})
	return out
}

// LoadSubmissions reads the append-only missing-listing log.
func (s *Store) LoadSubmissions() []listing.Submission {
	var out []listing.Submission
	readLines(s.path(SubmissionsFile), func(line []byte) {
		var sub listing.Submission
		if err := json.Unmarshal(line, &sub); err == nil {
			out = append(out, sub)
		}
	})
	return out
}

// LoadVotes reads the append-only vote log.
func (s *Store) LoadVotes() []listing.Vote {
	var out []listing.Vote
	readLines(s.path(VotesFile), func(line []byte) {
		var v listing.Vote
		if err := json.Unmarshal(line, &v); err == nil {
			out = append(out, v)
		}
	})
	return out
}

// AppendEvent appends one JSON line to an event log. Used by the ingest
// server; the pipeline never writes events.
func (s *Store) AppendEvent(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	f, err := os.OpenFile(s.path(name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append %s: %w", name, err)
	}
	return nil
}

// Touch stamps a marker file with the run time, mirroring the original
// learn.json generation marker.
func (s *Store) Touch(runMode string, now time.Time) error {
	return s.writeJSONAtomic("learn.json", map[string]string{
		"generatedAt": now.UTC().Format(time.RFC3339),
		"runMode":     runMode,
	})
}
