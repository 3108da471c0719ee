package api

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingRebuilder struct {
	calls atomic.Int32
	err   error
}

func (c *countingRebuilder) RebuildFavorites(context.Context) (int, error) {
	c.calls.Add(1)
	return 3, c.err
}

func TestFavoritesScheduler_RunsOnStart(t *testing.T) {
	// GIVEN: a scheduler with a long interval
	rb := &countingRebuilder{}
	s := NewFavoritesScheduler(rb, zap.NewNop())
	s.Interval = time.Hour

	// WHEN: it is started and stopped
	s.Start()
	require.Eventually(t, func() bool { return rb.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	// THEN: the immediate rebuild ran and no tick followed
	assert.Equal(t, int32(1), rb.calls.Load())
	last, err := s.LastRun()
	assert.NoError(t, err)
	assert.False(t, last.IsZero())

	// AND: stopping twice is harmless
	s.Stop()
}

func TestFavoritesScheduler_TicksRepeatedly(t *testing.T) {
	rb := &countingRebuilder{}
	s := NewFavoritesScheduler(rb, zap.NewNop())
	s.Interval = 10 * time.Millisecond

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool { return rb.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestFavoritesScheduler_Disabled(t *testing.T) {
	rb := &countingRebuilder{}
	s := NewFavoritesScheduler(rb, zap.NewNop())
	s.Enabled = false

	s.Start()
	s.Stop()

	assert.Equal(t, int32(0), rb.calls.Load())
}

func TestFavoritesScheduler_RunNowReportsError(t *testing.T) {
	rb := &countingRebuilder{err: errors.New("disk full")}
	s := NewFavoritesScheduler(rb, zap.NewNop())

	err := s.RunNow()

	assert.EqualError(t, err, "disk full")
	_, lastErr := s.LastRun()
	assert.Error(t, lastErr)
}
