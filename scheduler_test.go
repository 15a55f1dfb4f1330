// scheduler_test.go: job ownership tracking tests
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

package mailbot

import (
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerTracksOwnership(t *testing.T) {
	s := NewScheduler(NewTestLogger())

	id1, err := s.Schedule("mail", "@every 1h", func() {})
	require.NoError(t, err)
	id2 := s.Every("mail", time.Hour, func() {})
	s.Every("other", time.Hour, func() {})

	assert.ElementsMatch(t, []cron.EntryID{id1, id2}, s.Owned("mail"))
	assert.Len(t, s.Owned("other"), 1)
}

func TestSchedulerInvalidSpec(t *testing.T) {
	s := NewScheduler(NewTestLogger())

	_, err := s.Schedule("mail", "not a spec", func() {})
	require.Error(t, err)
	assert.Empty(t, s.Owned("mail"))
}

func TestSchedulerRemoveForgetsTag(t *testing.T) {
	s := NewScheduler(NewTestLogger())
	id, err := s.Schedule("mail", "@every 1h", func() {})
	require.NoError(t, err)

	s.Remove(id)
	assert.Empty(t, s.Owned("mail"))
}

func TestSchedulerRemoveOwned(t *testing.T) {
	s := NewScheduler(NewTestLogger())
	s.Every("mail", time.Hour, func() {})
	s.Every("mail", time.Hour, func() {})
	s.Every("other", time.Hour, func() {})

	assert.Equal(t, 2, s.RemoveOwned("mail"))
	assert.Empty(t, s.Owned("mail"))
	assert.Len(t, s.Owned("other"), 1)
	assert.Equal(t, 0, s.RemoveOwned("mail"), "second removal finds nothing")
}

func TestSchedulerRunsScheduledJob(t *testing.T) {
	s := NewScheduler(NewTestLogger())
	fired := make(chan struct{}, 1)
	s.Every("tick", 10*time.Millisecond, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	s.Start()
	defer s.Stop()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled job never fired")
	}
}
