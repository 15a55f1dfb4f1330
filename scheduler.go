// scheduler.go: cron-backed background job scheduling with ownership tags
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

package mailbot

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps a cron runner and tags every entry with the extension key
// that scheduled it. The unloader itself never cancels jobs (that is the
// extension teardown's duty), but the loader uses the tags to roll back jobs
// scheduled by a Setup that failed partway.
type Scheduler struct {
	cron   *cron.Cron
	logger Logger

	mu    sync.Mutex
	owned map[string][]cron.EntryID
}

// NewScheduler creates a stopped scheduler; call Start to begin running jobs.
func NewScheduler(logger Logger) *Scheduler {
	if logger == nil {
		logger = DefaultLogger()
	}
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
		owned:  make(map[string][]cron.EntryID),
	}
}

// Start begins executing scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Task scheduler has been started")
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Task scheduler has been stopped")
}

// Schedule adds a job under a cron spec (e.g. "@every 30s"), tagged with the
// owner key.
func (s *Scheduler) Schedule(owner, spec string, job func()) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, job)
	if err != nil {
		return 0, NewScheduleError(owner, "invalid cron spec "+spec, err)
	}
	s.track(owner, id)
	return id, nil
}

// Every adds a fixed-interval job tagged with the owner key.
func (s *Scheduler) Every(owner string, interval time.Duration, job func()) cron.EntryID {
	id := s.cron.Schedule(cron.Every(interval), cron.FuncJob(job))
	s.track(owner, id)
	return id
}

// Remove cancels a single entry and forgets its ownership tag.
func (s *Scheduler) Remove(id cron.EntryID) {
	s.cron.Remove(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	for owner, ids := range s.owned {
		for i, candidate := range ids {
			if candidate == id {
				s.owned[owner] = append(ids[:i], ids[i+1:]...)
				return
			}
		}
	}
}

// RemoveOwned cancels every entry scheduled under the owner key and returns
// how many were cancelled.
func (s *Scheduler) RemoveOwned(owner string) int {
	s.mu.Lock()
	ids := s.owned[owner]
	delete(s.owned, owner)
	s.mu.Unlock()

	for _, id := range ids {
		s.cron.Remove(id)
	}
	return len(ids)
}

// Owned returns the entry IDs currently tagged with the owner key.
func (s *Scheduler) Owned(owner string) []cron.EntryID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]cron.EntryID, len(s.owned[owner]))
	copy(out, s.owned[owner])
	return out
}

func (s *Scheduler) track(owner string, id cron.EntryID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owned[owner] = append(s.owned[owner], id)
}
