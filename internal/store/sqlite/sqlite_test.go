package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/eventledger/internal/model"
	"github.com/alfredjeanlab/eventledger/internal/store"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore opens a fresh database file under t.TempDir().
func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err, "Open() failed")
	t.Cleanup(func() { s.Close() })
	return s
}

func claim(t *testing.T, s *SQLiteStore, id string, now time.Time) store.ClaimResult {
	t.Helper()
	res, err := s.Claim(context.Background(), store.ClaimParams{
		EventID:     id,
		EventType:   "invoice.paid",
		MaxAttempts: 3,
		Now:         now,
	})
	require.NoError(t, err)
	return res
}

func TestOpen_CreatesAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	s1, err := Open(path)
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err, "database file was not created")
	claim(t, s1, "evt_1", baseTime)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err, "reopen should be idempotent")
	defer s2.Close()

	rec, err := s2.GetRecord(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, rec.Status)
}

func TestClaim_NewThenInFlight(t *testing.T) {
	s := createTestStore(t)

	first := claim(t, s, "evt_1", baseTime)
	require.True(t, first.Granted)
	assert.Equal(t, 1, first.Record.Attempts)
	assert.Equal(t, model.StatusProcessing, first.Record.Status)
	assert.True(t, first.Record.CreatedAt.Equal(baseTime))

	second := claim(t, s, "evt_1", baseTime.Add(time.Second))
	assert.False(t, second.Granted)
	require.NotNil(t, second.Record)
	assert.Equal(t, model.StatusProcessing, second.Record.Status)
	assert.Equal(t, 1, second.Record.Attempts, "denied claim must not bump attempts")
}

func TestClaim_ConcurrentSingleWinner(t *testing.T) {
	s := createTestStore(t)

	const n = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
		errs    []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := s.Claim(context.Background(), store.ClaimParams{
				EventID: "evt_race", EventType: "invoice.paid", MaxAttempts: 3, Now: baseTime,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if res.Granted {
				granted++
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Empty(t, errs)
	assert.Equal(t, 1, granted, "exactly one concurrent claim must win")

	rec, err := s.GetRecord(context.Background(), "evt_race")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Attempts)
}

func TestClaim_BoundedRetry(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	now := baseTime

	for attempt := 1; attempt <= 3; attempt++ {
		res := claim(t, s, "evt_1", now)
		require.True(t, res.Granted, "attempt %d should be granted", attempt)
		assert.Equal(t, attempt, res.Record.Attempts)

		got, found, err := s.MarkFailed(ctx, "evt_1", "boom")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, attempt, got)
		now = now.Add(time.Minute)
	}

	res := claim(t, s, "evt_1", now)
	assert.False(t, res.Granted, "claim past the budget must be denied")
	require.NotNil(t, res.Record)
	assert.Equal(t, model.StatusFailed, res.Record.Status)
	assert.Equal(t, 3, res.Record.Attempts)
	assert.True(t, res.Record.Exhausted(3))
}

// readFailer runs writes normally and fails every plain SELECT, as a
// connection dropped right after the claim statement would.
type readFailer struct{ executor }

func (r readFailer) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	if strings.HasPrefix(strings.TrimSpace(query), "SELECT") {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		return r.executor.QueryRowContext(canceled, query, args...)
	}
	return r.executor.QueryRowContext(ctx, query, args...)
}

func TestClaim_DeniedReadFailsStaysDenied(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	claim(t, s, "evt_done", baseTime)
	_, err := s.MarkProcessed(ctx, "evt_done", baseTime.Add(time.Second))
	require.NoError(t, err)

	res, err := queryClaim(ctx, readFailer{s.db}, store.ClaimParams{
		EventID: "evt_done", EventType: "invoice.paid", MaxAttempts: 3,
		Now: baseTime.Add(time.Minute),
	})
	require.NoError(t, err, "denial must stand when the follow-up read fails")
	assert.False(t, res.Granted)
	assert.Nil(t, res.Record)

	rec, err := s.GetRecord(ctx, "evt_done")
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessed, rec.Status)
	assert.Equal(t, 1, rec.Attempts)
}

func TestMarkProcessed_Terminal(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	claim(t, s, "evt_1", baseTime)
	_, _, err := s.MarkFailed(ctx, "evt_1", "first try")
	require.NoError(t, err)
	claim(t, s, "evt_1", baseTime.Add(time.Second))

	doneAt := baseTime.Add(2 * time.Second)
	found, err := s.MarkProcessed(ctx, "evt_1", doneAt)
	require.NoError(t, err)
	require.True(t, found)

	rec, err := s.GetRecord(ctx, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessed, rec.Status)
	assert.Empty(t, rec.LastError, "success clears last_error")
	require.NotNil(t, rec.ProcessedAt)
	assert.True(t, rec.ProcessedAt.Equal(doneAt))

	// A processed record never changes again.
	_, found, err = s.MarkFailed(ctx, "evt_1", "late failure")
	require.NoError(t, err)
	assert.False(t, found)

	found, err = s.MarkProcessed(ctx, "evt_1", doneAt.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, found)

	res := claim(t, s, "evt_1", doneAt.Add(time.Hour))
	assert.False(t, res.Granted)

	rec, err = s.GetRecord(ctx, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessed, rec.Status)
	assert.Equal(t, 2, rec.Attempts)
	assert.True(t, rec.ProcessedAt.Equal(doneAt))
}

func TestClaim_StaleLease(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	claim(t, s, "evt_1", baseTime)

	// Lease not yet expired.
	res, err := s.Claim(ctx, store.ClaimParams{
		EventID: "evt_1", EventType: "invoice.paid", MaxAttempts: 3,
		Now: baseTime.Add(time.Minute), StaleBefore: baseTime,
	})
	require.NoError(t, err)
	assert.False(t, res.Granted)

	res, err = s.Claim(ctx, store.ClaimParams{
		EventID: "evt_1", EventType: "invoice.paid", MaxAttempts: 3,
		Now: baseTime.Add(time.Hour), StaleBefore: baseTime.Add(time.Minute),
	})
	require.NoError(t, err)
	require.True(t, res.Granted)
	assert.Equal(t, 2, res.Record.Attempts)
	assert.True(t, res.Record.ClaimedAt.Equal(baseTime.Add(time.Hour)))
	assert.True(t, res.Record.CreatedAt.Equal(baseTime), "re-claim keeps created_at")
}

func TestMark_MissingRecord(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	found, err := s.MarkProcessed(ctx, "missing", baseTime)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = s.MarkFailed(ctx, "missing", "boom")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = s.GetRecord(ctx, "missing")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestReads_EmptyLedger(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c, err := s.Counts(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, model.Counts{}, c)

	recent, err := s.Recent(ctx, 20)
	require.NoError(t, err)
	assert.NotNil(t, recent)
	assert.Empty(t, recent)

	byType, err := s.CountsByType(ctx, baseTime)
	require.NoError(t, err)
	assert.NotNil(t, byType)
	assert.Empty(t, byType)

	w, err := s.WindowCounts(ctx, baseTime)
	require.NoError(t, err)
	assert.Zero(t, w.Total)
	assert.Zero(t, w.FailureRate())
}

func seed(t *testing.T, s *SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	types := []string{"invoice.paid", "customer.created"}
	for i, id := range []string{"evt_a", "evt_b", "evt_c", "evt_d"} {
		_, err := s.Claim(ctx, store.ClaimParams{
			EventID:     id,
			EventType:   types[i%2],
			MaxAttempts: 3,
			Now:         baseTime.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	_, err := s.MarkProcessed(ctx, "evt_a", baseTime.Add(time.Hour))
	require.NoError(t, err)
	_, _, err = s.MarkFailed(ctx, "evt_b", "boom")
	require.NoError(t, err)
}

func TestReads_Aggregates(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seed(t, s)

	c, err := s.Counts(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.Counts{Total: 4, Processed: 1, Failed: 1, Processing: 2, Exhausted: 1}, c)

	recent, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "evt_d", recent[0].EventID, "newest first")
	assert.Equal(t, "evt_c", recent[1].EventID)

	byType, err := s.CountsByType(ctx, baseTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []model.TypeCount{
		{EventType: "customer.created", Count: 2},
		{EventType: "invoice.paid", Count: 1},
	}, byType)

	w, err := s.WindowCounts(ctx, baseTime)
	require.NoError(t, err)
	assert.Equal(t, 4, w.Total)
	assert.Equal(t, 1, w.Failed)
	assert.InDelta(t, 0.25, w.FailureRate(), 1e-9)
}

func TestListRecords(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seed(t, s)

	all, err := s.ListRecords(ctx, model.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "evt_a", all[0].EventID, "oldest first by default")

	processing, err := s.ListRecords(ctx, model.RecordFilter{Status: []model.Status{model.StatusProcessing}})
	require.NoError(t, err)
	require.Len(t, processing, 2)

	offsetOnly, err := s.ListRecords(ctx, model.RecordFilter{Offset: 3})
	require.NoError(t, err)
	require.Len(t, offsetOnly, 1)
	assert.Equal(t, "evt_d", offsetOnly[0].EventID)

	page, err := s.ListRecords(ctx, model.RecordFilter{EventType: "invoice.paid", Newest: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "evt_c", page[0].EventID)
}
