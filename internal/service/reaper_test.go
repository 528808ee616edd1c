package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagescope/scraper-engine/config"
)

// stubReaperRepo returns scripted batch counts in order.
type stubReaperRepo struct {
	mu      sync.Mutex
	batches []int
	err     error
	calls   int
	cutoffs []time.Time
	limits  []int
}

func (s *stubReaperRepo) DeleteJobsOlderThan(_ context.Context, cutoff time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.cutoffs = append(s.cutoffs, cutoff)
	s.limits = append(s.limits, limit)
	if s.err != nil {
		return 0, s.err
	}
	if len(s.batches) == 0 {
		return 0, nil
	}
	count := s.batches[0]
	s.batches = s.batches[1:]
	return count, nil
}

func TestNewReaperService_RequiresRepo(t *testing.T) {
	_, err := NewReaperService(ReaperServiceOptions{})
	assert.ErrorContains(t, err, "ReaperRepository is required")
}

func TestReaperService_Run_SweepsInBatchesUntilEmpty(t *testing.T) {
	repo := &stubReaperRepo{batches: []int{500, 500, 42}}
	svc := MustNewReaperService(ReaperServiceOptions{
		Repo: repo,
		Config: config.ReaperConfig{
			Interval:  time.Hour,
			Retention: 24 * time.Hour,
			BatchSize: 500,
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	// Initial sweep drains three batches then gets an empty one.
	assert.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return repo.calls >= 4
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after cancel")
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.NotEmpty(t, repo.cutoffs)
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), repo.cutoffs[0], time.Minute)
	assert.Equal(t, 500, repo.limits[0])
}

func TestReaperService_Run_SurvivesSweepErrors(t *testing.T) {
	repo := &stubReaperRepo{err: errors.New("db down")}
	svc := MustNewReaperService(ReaperServiceOptions{
		Repo: repo,
		Config: config.ReaperConfig{
			Interval:  10 * time.Millisecond,
			Retention: time.Hour,
			BatchSize: 100,
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	// Several failing sweeps should not terminate the loop.
	assert.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return repo.calls >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}
