package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testListener implements the Listener interface, mock for unit tests.
type testListener struct {
	received []Notification
	expired  []uint64
	failAt   int // when > 0, Receive returns an error from this call on
	calls    int
}

func (l *testListener) Receive(n Notification) error {
	l.calls++
	l.received = append(l.received, n)
	if l.failAt > 0 && l.calls >= l.failAt {
		return errors.New("listener gone")
	}
	return nil
}

func (l *testListener) Expire(id uint64) error {
	l.expired = append(l.expired, id)
	return nil
}

func startQueue(t *testing.T, ttl time.Duration) *Queue {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	q := New(ttl)
	go q.Start(ctx)
	return q
}

func TestQueuePushOrder(t *testing.T) {
	q := startQueue(t, time.Minute)
	q.Push(Error, "first")
	q.Push(Info, "second")
	q.Push(Success, "third")

	active := q.Active()
	require.Len(t, active, 3)
	assert.Equal(t, "first", active[0].Message)
	assert.Equal(t, "second", active[1].Message)
	assert.Equal(t, "third", active[2].Message)
	assert.Equal(t, Error, active[0].Kind)
	assert.Equal(t, Info, active[1].Kind)
	assert.Equal(t, Success, active[2].Kind)
}

func TestQueueMonotonicIDs(t *testing.T) {
	q := startQueue(t, time.Minute)
	for i := 0; i < 20; i++ {
		q.Push(Info, fmt.Sprintf("n%d", i))
	}
	active := q.Active()
	require.Len(t, active, 20)
	for i := 1; i < len(active); i++ {
		assert.Greater(t, active[i].ID, active[i-1].ID)
	}
}

func TestQueueExpiry(t *testing.T) {
	q := startQueue(t, 50*time.Millisecond)
	q.Push(Success, "short lived")
	require.Len(t, q.Active(), 1)

	// Just past the TTL the entry must be gone.
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, q.Active())
}

func TestQueueExpiryIndependent(t *testing.T) {
	q := startQueue(t, 80*time.Millisecond)
	q.Push(Info, "old")
	time.Sleep(50 * time.Millisecond)
	q.Push(Info, "young")

	// Old entry expires, young entry holds its position.
	time.Sleep(50 * time.Millisecond)
	active := q.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "young", active[0].Message)
}

func TestQueueDismiss(t *testing.T) {
	q := startQueue(t, time.Minute)
	q.Push(Error, "a")
	q.Push(Error, "b")
	active := q.Active()
	require.Len(t, active, 2)

	q.Dismiss(active[0].ID)
	q.Sync()
	active = q.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "b", active[0].Message)

	// Dismissing an unknown ID is a no-op.
	q.Dismiss(9999)
	q.Sync()
	assert.Len(t, q.Active(), 1)
}

func TestQueueListener(t *testing.T) {
	q := startQueue(t, 50*time.Millisecond)
	l := &testListener{}
	q.AddListener(l)
	q.Sync()

	q.Push(Info, "hello")
	q.Sync()
	require.Len(t, l.received, 1)
	assert.Equal(t, "hello", l.received[0].Message)

	time.Sleep(60 * time.Millisecond)
	q.Sync()
	require.Len(t, l.expired, 1)
	assert.Equal(t, l.received[0].ID, l.expired[0])
}

func TestQueueListenerErrorDrops(t *testing.T) {
	q := startQueue(t, time.Minute)
	l := &testListener{failAt: 1}
	q.AddListener(l)
	q.Sync()

	q.Push(Info, "one")
	q.Push(Info, "two")
	q.Sync()
	assert.Len(t, l.received, 1, "listener should be dropped after first error")
}

func TestQueueRemoveListener(t *testing.T) {
	q := startQueue(t, time.Minute)
	l := &testListener{}
	q.AddListener(l)
	q.RemoveListener(l)
	q.Push(Info, "unseen")
	q.Sync()
	assert.Empty(t, l.received)
}

func TestQueueStoppedIsSafe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := New(10 * time.Millisecond)
	go q.Start(ctx)
	q.Push(Info, "doomed")
	q.Sync()
	cancel()

	// Give the loop a moment to exit, then exercise every entry point.
	time.Sleep(10 * time.Millisecond)
	q.Push(Info, "ignored")
	q.Dismiss(1)
	q.Sync()
	assert.Nil(t, q.Active())

	// Pending expiry timers fire without panicking.
	time.Sleep(20 * time.Millisecond)
}
