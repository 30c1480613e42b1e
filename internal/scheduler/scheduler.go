// Package scheduler wires up the cron job that periodically triggers a
// reconciliation run. One-shot invocation stays the default; this exists
// for deployments without an external cron.
package scheduler

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps robfig/cron around a single run function.
type Scheduler struct {
	cron *cron.Cron
	run  func()
	spec string // cron spec, e.g. "@daily" or "@every 6h"
}

// New creates a Scheduler firing run on the given cron spec.
func New(spec string, run func()) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLogger(cron.DefaultLogger)),
		run:  run,
		spec: spec,
	}
}

// Start registers the job and starts the scheduler. Also runs once
// immediately so the document is fresh without waiting for the first tick.
// Overlapping invocations against the same data directory are the external
// operator's problem; one Scheduler never overlaps itself because the run
// executes inline on the cron goroutine.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.run)
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.run()
	s.cron.Start()
	log.Printf("⏰ Cron started — spec: %s", s.spec)
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("⏰ Cron stopped")
}
