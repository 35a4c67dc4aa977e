package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rowsync-core/internal/changefeed"
	"rowsync-core/internal/transport"
)

type fakeChannel struct {
	mu     sync.Mutex
	out    chan transport.Delivery
	closed bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{out: make(chan transport.Delivery, 64)}
}

func (c *fakeChannel) Deliveries() <-chan transport.Delivery { return c.out }

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.out)
	}
	return nil
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// send 通道关闭后返回 false
func (c *fakeChannel) send(d transport.Delivery) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.out <- d
	return true
}

func (c *fakeChannel) status(s transport.Status) bool {
	return c.send(transport.StatusDelivery(s, nil))
}

func (c *fakeChannel) record(kind string, row map[string]any) bool {
	rec := changefeed.Record{Type: kind, Table: "posts"}
	if kind == "DELETE" {
		rec.OldRecord = row
	} else {
		rec.Record = row
	}
	return c.send(transport.RecordDelivery(rec))
}

type fakeTransport struct {
	mu       sync.Mutex
	channels []*fakeChannel
	errs     []error
	gate     chan struct{}
	opened   chan *fakeChannel
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{opened: make(chan *fakeChannel, 32)}
}

// failNext 设置后续 Subscribe 调用返回的错误
func (f *fakeTransport) failNext(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, errs...)
}

func (f *fakeTransport) Subscribe(ctx context.Context, topic string) (transport.Channel, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		f.mu.Unlock()
		return nil, err
	}
	ch := newFakeChannel()
	f.channels = append(f.channels, ch)
	f.mu.Unlock()

	f.opened <- ch
	return ch, nil
}

func (f *fakeTransport) expect(t *testing.T) *fakeChannel {
	t.Helper()
	select {
	case ch := <-f.opened:
		return ch
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for a channel to open")
		return nil
	}
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.channels)
}

func (f *fakeTransport) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ch := range f.channels {
		if !ch.isClosed() {
			n++
		}
	}
	return n
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}
