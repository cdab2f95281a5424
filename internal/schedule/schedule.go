// Package schedule drives recurring analysis runs from a cron spec.
package schedule

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/compintel/compradar/internal/logger"
)

// Scheduler owns a single recurring job. Re-scheduling replaces the
// previous entry.
type Scheduler struct {
	cron    *cron.Cron
	mu      sync.Mutex
	entryID cron.EntryID
	started bool
}

func New() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// Schedule installs the job under the given cron spec (standard five-field
// format). An empty spec is rejected; validate before calling.
func (s *Scheduler) Schedule(spec string, job func()) error {
	if spec == "" {
		return fmt.Errorf("empty cron spec")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
	}
	id, err := s.cron.AddFunc(spec, job)
	if err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	s.entryID = id
	logger.Log.Infof("recurring analysis scheduled: %s", spec)
	return nil
}

// Start begins firing scheduled jobs. Idempotent.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.cron.Start()
		s.started = true
	}
}

// Stop halts the scheduler; a running job finishes on its own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.cron.Stop()
		s.started = false
	}
}
