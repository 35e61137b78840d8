package ws

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRelay struct {
	mu    sync.Mutex
	users []string
	gate  chan struct{}
}

func (r *recordingRelay) Publish(ctx context.Context, userID string, _ []byte) error {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
	return nil
}

func (r *recordingRelay) published() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.users...)
}

func TestSendToUser_OfflineReturnsFalse(t *testing.T) {
	d := NewDispatcher(NewRegistry(), nil)
	assert.False(t, d.SendToUser("nobody", map[string]string{"type": "notification"}))
}

func TestSendToUser_DeliversToEveryHandleOfUser(t *testing.T) {
	reg := NewRegistry()
	a, b, other := &fakeHandle{}, &fakeHandle{}, &fakeHandle{}
	reg.Register("u1", a)
	reg.Register("u1", b)
	reg.Register("u2", other)

	d := NewDispatcher(reg, nil)
	require.True(t, d.SendToUser("u1", map[string]string{"type": "MARK_ALL_READ"}))

	assert.Equal(t, [][]byte{[]byte(`{"type":"MARK_ALL_READ"}`)}, a.received())
	assert.Equal(t, [][]byte{[]byte(`{"type":"MARK_ALL_READ"}`)}, b.received())
	assert.Empty(t, other.received())
}

func TestSendToUser_FailingHandleIsIsolated(t *testing.T) {
	reg := NewRegistry()
	bad := &fakeHandle{err: errors.New("broken pipe")}
	good := &fakeHandle{}
	reg.Register("u1", bad)
	reg.Register("u1", good)

	d := NewDispatcher(reg, nil)
	assert.True(t, d.SendToUser("u1", map[string]int{"n": 1}))
	assert.Len(t, good.received(), 1)
}

func TestBroadcast_ReachesEveryone(t *testing.T) {
	reg := NewRegistry()
	a, b := &fakeHandle{}, &fakeHandle{}
	reg.Register("u1", a)
	reg.Register("u2", b)

	d := NewDispatcher(reg, nil)
	d.Broadcast(map[string]string{"type": "notification"})
	assert.Len(t, a.received(), 1)
	assert.Len(t, b.received(), 1)
}

func TestRelay_ReceivesUserAndBroadcastPushes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	relay := &recordingRelay{}
	d := NewDispatcher(NewRegistry(), nil)
	d.StartRelay(ctx, relay)

	d.SendToUser("u1", "x")
	d.Broadcast("y")
	assert.Eventually(t, func() bool {
		return len(relay.published()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"u1", ""}, relay.published())
}

func TestRelay_SlowPublishDoesNotDelayLocalDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg := NewRegistry()
	h := &fakeHandle{}
	reg.Register("u1", h)

	relay := &recordingRelay{gate: make(chan struct{})}
	d := NewDispatcher(reg, nil)
	d.StartRelay(ctx, relay)

	done := make(chan bool, 1)
	go func() { done <- d.SendToUser("u1", "x") }()
	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("SendToUser blocked on the relay")
	}
	assert.Len(t, h.received(), 1)
	assert.Empty(t, relay.published())

	close(relay.gate)
	assert.Eventually(t, func() bool {
		return len(relay.published()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSendToUser_UnmarshalablePayload(t *testing.T) {
	reg := NewRegistry()
	h := &fakeHandle{}
	reg.Register("u1", h)
	d := NewDispatcher(reg, nil)
	assert.False(t, d.SendToUser("u1", make(chan int)))
	assert.Empty(t, h.received())
}
