package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	signals chan struct{}
}

func (f *fakeNotifier) Subscribe(_ context.Context, _ uuid.UUID) (<-chan struct{}, func(), error) {
	return f.signals, func() {}, nil
}

func TestPosition(t *testing.T) {
	assert.Equal(t, 4, Position(12, 8))
	assert.Equal(t, 0, Position(8, 8), "the token being served has nobody ahead")
	assert.Equal(t, 0, Position(5, 8), "already-served tokens clamp to zero")
	assert.Equal(t, 1, Position(9, 8))
}

func TestEstimatedWait(t *testing.T) {
	p := NewProjection(newMemStore(), &fakeNotifier{}, 5*time.Minute, zerolog.Nop())
	assert.Equal(t, 20*time.Minute, p.EstimatedWait(4))
	assert.Equal(t, time.Duration(0), p.EstimatedWait(0))

	// Zero config falls back to the five minute default.
	p = NewProjection(newMemStore(), &fakeNotifier{}, 0, zerolog.Nop())
	assert.Equal(t, 15*time.Minute, p.EstimatedWait(3))
}

func TestServingToken(t *testing.T) {
	entries := []Entry{
		{TokenNumber: 4, Status: StatusServing},
		{TokenNumber: 5, Status: StatusNext},
		{TokenNumber: 6, Status: StatusWaiting},
	}
	token, ok := ServingToken(entries)
	require.True(t, ok)
	assert.Equal(t, 4, token)

	_, ok = ServingToken([]Entry{{TokenNumber: 6, Status: StatusWaiting}})
	assert.False(t, ok)
}

func TestSnapshotOrderedByToken(t *testing.T) {
	store := newMemStore()
	doctorID := uuid.New()
	addEntry(store, doctorID, 7, StatusWaiting)
	addEntry(store, doctorID, 4, StatusServing)
	addEntry(store, doctorID, 5, StatusNext)
	done := addEntry(store, doctorID, 3, StatusWaiting)
	store.entries[done.ID].Status = StatusCompleted

	p := NewProjection(store, &fakeNotifier{}, 5*time.Minute, zerolog.Nop())

	snap, err := p.Snapshot(context.Background(), doctorID)
	require.NoError(t, err)
	require.Len(t, snap, 3, "completed entries are excluded")

	var tokens []int
	for _, e := range snap {
		tokens = append(tokens, e.TokenNumber)
	}
	assert.Equal(t, []int{4, 5, 7}, tokens)
}

func recvSnapshot(t *testing.T, sub *Subscription) []Entry {
	t.Helper()
	select {
	case snap, ok := <-sub.C:
		require.True(t, ok, "subscription closed unexpectedly")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestSubscribeEmitsInitialAndUpdatedSnapshots(t *testing.T) {
	store := newMemStore()
	doctorID := uuid.New()
	e4 := addEntry(store, doctorID, 4, StatusServing)
	notifier := &fakeNotifier{signals: make(chan struct{}, 1)}

	p := NewProjection(store, notifier, 5*time.Minute, zerolog.Nop())

	sub, err := p.Subscribe(context.Background(), doctorID)
	require.NoError(t, err)
	defer sub.Close()

	initial := recvSnapshot(t, sub)
	require.Len(t, initial, 1)
	assert.Equal(t, 4, initial[0].TokenNumber)

	store.mu.Lock()
	store.entries[e4.ID].Status = StatusCompleted
	store.mu.Unlock()
	notifier.signals <- struct{}{}

	updated := recvSnapshot(t, sub)
	assert.Empty(t, updated)
}

func TestSubscribeCloseEndsFeed(t *testing.T) {
	store := newMemStore()
	doctorID := uuid.New()
	addEntry(store, doctorID, 4, StatusServing)
	notifier := &fakeNotifier{signals: make(chan struct{})}

	p := NewProjection(store, notifier, 5*time.Minute, zerolog.Nop())

	sub, err := p.Subscribe(context.Background(), doctorID)
	require.NoError(t, err)

	recvSnapshot(t, sub)
	sub.Close()
	sub.Close() // idempotent

	_, ok := <-sub.C
	assert.False(t, ok, "channel stays open after Close")
}

func TestSubscribeCoalescesBurstsToLatest(t *testing.T) {
	store := newMemStore()
	doctorID := uuid.New()
	notifier := &fakeNotifier{signals: make(chan struct{}, 8)}

	p := NewProjection(store, notifier, 5*time.Minute, zerolog.Nop())

	sub, err := p.Subscribe(context.Background(), doctorID)
	require.NoError(t, err)
	defer sub.Close()

	require.Empty(t, recvSnapshot(t, sub))

	// Let several mutations land before the reader catches up. The reader
	// may see intermediate snapshots but the final one must be current.
	for token := 1; token <= 4; token++ {
		store.mu.Lock()
		addEntry(store, doctorID, token, StatusWaiting)
		store.mu.Unlock()
		notifier.signals <- struct{}{}
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-sub.C:
			require.True(t, ok)
			if len(snap) == 4 {
				return
			}
		case <-deadline:
			t.Fatal("never observed the final snapshot")
		}
	}
}
