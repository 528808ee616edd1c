package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagescope/scraper-engine/internal/domain/model"
)

// memoryResultStore is an in-memory write-once result store.
type memoryResultStore struct {
	mu      sync.Mutex
	results map[string]json.RawMessage
}

func newMemoryResultStore() *memoryResultStore {
	return &memoryResultStore{results: make(map[string]json.RawMessage)}
}

func (m *memoryResultStore) Put(_ context.Context, jobID string, snapshot json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.results[jobID]; exists {
		return model.ErrResultExists
	}
	m.results[jobID] = snapshot
	return nil
}

func (m *memoryResultStore) Get(_ context.Context, jobID string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, exists := m.results[jobID]
	if !exists {
		return nil, model.ErrResultNotReady
	}
	return raw, nil
}

func (m *memoryResultStore) Delete(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.results, jobID)
	return nil
}

func TestResultService_StoreAndGet(t *testing.T) {
	svc := MustNewResultService(ResultServiceOptions{Repo: newMemoryResultStore()})
	ctx := context.Background()

	name := "Acme"
	raw, err := svc.Store(ctx, "job-1", &model.ProductSnapshot{ProductName: &name})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"product_name":"Acme"`)

	got, err := svc.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(got))
}

func TestResultService_Store_IsWriteOnce(t *testing.T) {
	svc := MustNewResultService(ResultServiceOptions{Repo: newMemoryResultStore()})
	ctx := context.Background()

	_, err := svc.Store(ctx, "job-1", &model.ProductSnapshot{})
	require.NoError(t, err)

	_, err = svc.Store(ctx, "job-1", &model.ProductSnapshot{})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrResultExists)
}

func TestResultService_Store_RequiresSnapshot(t *testing.T) {
	svc := MustNewResultService(ResultServiceOptions{Repo: newMemoryResultStore()})

	_, err := svc.Store(context.Background(), "job-1", nil)
	assert.ErrorContains(t, err, "snapshot is required")
}

func TestResultService_Get_NotReady(t *testing.T) {
	svc := MustNewResultService(ResultServiceOptions{Repo: newMemoryResultStore()})

	_, err := svc.Get(context.Background(), "job-1")
	assert.ErrorIs(t, err, model.ErrResultNotReady)
}

func TestResultService_Discard(t *testing.T) {
	svc := MustNewResultService(ResultServiceOptions{Repo: newMemoryResultStore()})
	ctx := context.Background()

	_, err := svc.Store(ctx, "job-1", &model.ProductSnapshot{})
	require.NoError(t, err)

	require.NoError(t, svc.Discard(ctx, "job-1"))

	_, err = svc.Get(ctx, "job-1")
	assert.ErrorIs(t, err, model.ErrResultNotReady)

	// Discarding an absent result is a no-op.
	assert.NoError(t, svc.Discard(ctx, "job-1"))
}
