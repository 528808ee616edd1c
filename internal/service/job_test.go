package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagescope/scraper-engine/internal/domain/model"
)

// stubJobRepo is a hand-written double for core.JobRepository with func-field
// overrides; unset methods return zero values.
type stubJobRepo struct {
	createFn      func(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	getByIDFn     func(ctx context.Context, id string) (*model.Job, error)
	reserveNextFn func(ctx context.Context, leaseSeconds int) (*model.Job, error)
	heartbeatFn   func(ctx context.Context, jobID string, leaseSeconds int) (bool, error)
	completeFn    func(ctx context.Context, id string) (bool, error)
	failFn        func(ctx context.Context, id, errMsg string) (bool, error)
	statsFn       func(ctx context.Context) (*model.JobStats, error)
	requeueFn     func(ctx context.Context, limit int) (int, error)

	reserveLeaseSeconds   []int
	heartbeatLeaseSeconds []int
}

func (s *stubJobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if s.createFn != nil {
		return s.createFn(ctx, req)
	}
	return &model.Job{ID: "new-job", Type: req.Type, Status: model.JobStatusQueued}, nil
}

func (s *stubJobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	if s.getByIDFn != nil {
		return s.getByIDFn(ctx, id)
	}
	return &model.Job{ID: id, Status: model.JobStatusQueued}, nil
}

func (s *stubJobRepo) ReserveNext(ctx context.Context, leaseSeconds int) (*model.Job, error) {
	s.reserveLeaseSeconds = append(s.reserveLeaseSeconds, leaseSeconds)
	if s.reserveNextFn != nil {
		return s.reserveNextFn(ctx, leaseSeconds)
	}
	return nil, model.ErrNoJobsAvailable
}

func (s *stubJobRepo) WaitForNotification(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s *stubJobRepo) Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error) {
	s.heartbeatLeaseSeconds = append(s.heartbeatLeaseSeconds, leaseSeconds)
	if s.heartbeatFn != nil {
		return s.heartbeatFn(ctx, jobID, leaseSeconds)
	}
	return true, nil
}

func (s *stubJobRepo) Complete(ctx context.Context, id string) (bool, error) {
	if s.completeFn != nil {
		return s.completeFn(ctx, id)
	}
	return true, nil
}

func (s *stubJobRepo) Fail(ctx context.Context, id, errMsg string) (bool, error) {
	if s.failFn != nil {
		return s.failFn(ctx, id, errMsg)
	}
	return true, nil
}

func (s *stubJobRepo) Stats(ctx context.Context) (*model.JobStats, error) {
	if s.statsFn != nil {
		return s.statsFn(ctx)
	}
	return &model.JobStats{}, nil
}

func (s *stubJobRepo) RequeueExpired(ctx context.Context, limit int) (int, error) {
	if s.requeueFn != nil {
		return s.requeueFn(ctx, limit)
	}
	return 0, nil
}

func newTestJobService(t *testing.T, repo *stubJobRepo) *JobService {
	t.Helper()
	return MustNewJobService(JobServiceOptions{
		Repo:         repo,
		DefaultLease: 30 * time.Second,
	})
}

func TestNewJobService_RequiresRepoAndLease(t *testing.T) {
	_, err := NewJobService(JobServiceOptions{DefaultLease: time.Minute})
	assert.ErrorContains(t, err, "JobRepository is required")

	_, err = NewJobService(JobServiceOptions{Repo: &stubJobRepo{}})
	assert.ErrorContains(t, err, "DefaultLease must be positive")
}

func TestJobService_Create(t *testing.T) {
	repo := &stubJobRepo{}
	svc := newTestJobService(t, repo)

	job, err := svc.Create(context.Background(), &model.CreateJobRequest{
		Type:      model.JobTypeScrape,
		SourceURL: "https://example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, job.Status)
}

func TestJobService_ReserveNext_UsesDefaultLease(t *testing.T) {
	repo := &stubJobRepo{
		reserveNextFn: func(_ context.Context, _ int) (*model.Job, error) {
			return &model.Job{ID: "j1", Status: model.JobStatusStarted}, nil
		},
	}
	svc := newTestJobService(t, repo)

	job, err := svc.ReserveNext(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "j1", job.ID)
	require.Len(t, repo.reserveLeaseSeconds, 1)
	assert.Equal(t, 30, repo.reserveLeaseSeconds[0])
}

func TestJobService_ReserveNext_WrapsNoJobs(t *testing.T) {
	svc := newTestJobService(t, &stubJobRepo{})

	_, err := svc.ReserveNext(context.Background(), time.Minute)
	assert.ErrorIs(t, err, model.ErrNoJobsAvailable)
}

func TestJobService_Heartbeat_ConvertsLeaseToSeconds(t *testing.T) {
	repo := &stubJobRepo{}
	svc := newTestJobService(t, repo)

	ok, err := svc.Heartbeat(context.Background(), "j1", 90*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, repo.heartbeatLeaseSeconds, 1)
	assert.Equal(t, 90, repo.heartbeatLeaseSeconds[0])
}

func TestJobService_Complete_ReportsNoop(t *testing.T) {
	repo := &stubJobRepo{
		completeFn: func(_ context.Context, _ string) (bool, error) { return false, nil },
	}
	svc := newTestJobService(t, repo)

	ok, err := svc.Complete(context.Background(), "j1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJobService_Fail_RequiresMessage(t *testing.T) {
	svc := newTestJobService(t, &stubJobRepo{})

	_, err := svc.Fail(context.Background(), "j1", "")
	assert.ErrorContains(t, err, "error message required")
}

func TestJobService_Fail_PropagatesRepoError(t *testing.T) {
	repoErr := errors.New("connection lost")
	repo := &stubJobRepo{
		failFn: func(_ context.Context, _ string, _ string) (bool, error) { return false, repoErr },
	}
	svc := newTestJobService(t, repo)

	_, err := svc.Fail(context.Background(), "j1", "boom")
	assert.ErrorIs(t, err, repoErr)
}

func TestJobService_GetStatus(t *testing.T) {
	lastError := "fetch failed"
	repo := &stubJobRepo{
		getByIDFn: func(_ context.Context, id string) (*model.Job, error) {
			return &model.Job{ID: id, Status: model.JobStatusFailed, LastError: &lastError}, nil
		},
	}
	svc := newTestJobService(t, repo)

	status, err := svc.GetStatus(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, "j1", status.JobID)
	assert.Equal(t, model.JobStatusFailed, status.Status)
	require.NotNil(t, status.Error)
	assert.Equal(t, lastError, *status.Error)
}

func TestJobService_Subscribe_DeliversWakeups(t *testing.T) {
	svc := newTestJobService(t, &stubJobRepo{})
	defer svc.StopListeners()

	unsub, ch := svc.Subscribe()
	defer unsub()

	require.NotNil(t, ch)
}
