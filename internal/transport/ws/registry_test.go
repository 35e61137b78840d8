package ws

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeHandle struct {
	mu   sync.Mutex
	msgs [][]byte
	err  error
}

func (f *fakeHandle) Send(msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeHandle) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.msgs...)
}

func TestRegistry_RegisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandle{}
	r.Register("u1", h)
	r.Register("u1", h)
	assert.Len(t, r.ActiveHandles("u1"), 1)
	assert.Equal(t, 1, r.Users())
}

func TestRegistry_UnregisterDropsEmptyUser(t *testing.T) {
	r := NewRegistry()
	a, b := &fakeHandle{}, &fakeHandle{}
	r.Register("u1", a)
	r.Register("u1", b)

	r.Unregister(a)
	assert.Len(t, r.ActiveHandles("u1"), 1)

	r.Unregister(b)
	assert.Empty(t, r.ActiveHandles("u1"))
	assert.Equal(t, 0, r.Users())
	assert.Empty(t, r.All())

	r.Unregister(b)
	r.Unregister(&fakeHandle{})
}

func TestRegistry_ReRegisterUnderOtherUserMovesHandle(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandle{}
	r.Register("u1", h)
	r.Register("u2", h)
	assert.Empty(t, r.ActiveHandles("u1"))
	assert.Len(t, r.ActiveHandles("u2"), 1)
	assert.Equal(t, 1, r.Users())
}

func TestRegistry_ConcurrentRegisterUnregister(t *testing.T) {
	r := NewRegistry()
	const users, perUser = 20, 25

	handles := make([][]*fakeHandle, users)
	for u := range handles {
		handles[u] = make([]*fakeHandle, perUser)
		for i := range handles[u] {
			handles[u][i] = &fakeHandle{}
		}
	}

	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		for i := 0; i < perUser; i++ {
			wg.Add(1)
			go func(u, i int) {
				defer wg.Done()
				r.Register(fmt.Sprintf("u%d", u), handles[u][i])
				_ = r.ActiveHandles(fmt.Sprintf("u%d", u))
			}(u, i)
		}
	}
	wg.Wait()

	assert.Equal(t, users, r.Users())
	assert.Len(t, r.All(), users*perUser)
	for u := 0; u < users; u++ {
		assert.Len(t, r.ActiveHandles(fmt.Sprintf("u%d", u)), perUser)
	}

	for u := 0; u < users; u++ {
		for i := 0; i < perUser; i++ {
			wg.Add(1)
			go func(u, i int) {
				defer wg.Done()
				r.Unregister(handles[u][i])
			}(u, i)
		}
	}
	wg.Wait()
	assert.Equal(t, 0, r.Users())
	assert.Empty(t, r.All())
}
