package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
	"github.com/vladislavdragonenkov/shopbilling/internal/storage/memory"
)

var _ domain.OutboxPurger = (*stubPurger)(nil)

func TestCleanupWorker_Purge_Batches(t *testing.T) {
	t.Parallel()

	repo := &stubPurger{results: []int{2, 2, 1}}
	worker := NewCleanupWorker(repo, WithCleanupBatchSize(2))

	deleted, err := worker.Purge(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, 5, deleted)
	require.Equal(t, 3, repo.calls())
}

func TestCleanupWorker_Purge_Error(t *testing.T) {
	t.Parallel()

	repo := &stubPurger{errs: []error{errors.New("boom")}}
	worker := NewCleanupWorker(repo, WithCleanupBatchSize(10))

	deleted, err := worker.Purge(context.Background(), time.Now().UTC())
	require.Error(t, err)
	require.Zero(t, deleted)
}

func TestCleanupWorker_UsesRetentionCutoff(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := &stubPurger{}
	worker := NewCleanupWorker(repo, WithRetention(48*time.Hour))
	worker.now = func() time.Time { return now }

	worker.cleanup(context.Background())

	require.Equal(t, now.Add(-48*time.Hour), repo.lastBefore())
}

func TestCleanupWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &stubPurger{}
	worker := NewCleanupWorker(repo, WithCleanupInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup worker did not stop on context cancel")
	}
	require.Positive(t, repo.calls())
}

func TestCleanupWorker_KeepsPendingMessages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore()
	repo := store.Outbox()

	sent, err := repo.Enqueue(ctx, domain.OutboxMessage{AggregateType: "bill", AggregateID: "B1", EventType: "bill.created", Payload: []byte(`{}`)})
	require.NoError(t, err)
	_, err = repo.Enqueue(ctx, domain.OutboxMessage{AggregateType: "bill", AggregateID: "B2", EventType: "bill.created", Payload: []byte(`{}`)})
	require.NoError(t, err)
	require.NoError(t, repo.MarkSent(ctx, sent.ID))

	worker := NewCleanupWorker(store.OutboxPurger(), WithRetention(0))
	deleted, err := worker.Purge(ctx, time.Now().UTC().Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.PendingCount)
}

type stubPurger struct {
	mu sync.Mutex

	results []int
	errs    []error
	count   int
	before  time.Time
}

func (s *stubPurger) PurgeProcessed(_ context.Context, before time.Time, _ int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	s.before = before

	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return 0, err
		}
	}
	if len(s.results) == 0 {
		return 0, nil
	}
	result := s.results[0]
	s.results = s.results[1:]
	return result, nil
}

func (s *stubPurger) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *stubPurger) lastBefore() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.before
}
