package dispose

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDispose(t *testing.T) {
	called := false
	d := NewDispose(context.Background(), func() error {
		called = true
		return nil
	})

	require.NotNil(t, d.Ctx())
	assert.False(t, d.IsClosed())

	result := d.Close()
	assert.False(t, result.HasErrors())
	assert.True(t, called)
	assert.True(t, d.IsClosed())
	assert.Error(t, d.Ctx().Err(), "context should be cancelled after Close")
}

func TestDispose_CloseIsIdempotent(t *testing.T) {
	var calls int32
	d := NewDispose(context.Background(), func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	for i := 0; i < 5; i++ {
		d.Close()
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDispose_HandlersRunInOrder(t *testing.T) {
	var order []int
	d := NewDispose(context.Background(), func() error {
		order = append(order, 0)
		return nil
	})
	d.AddCleanHandler(func() error {
		order = append(order, 1)
		return nil
	})
	d.AddCleanHandler(func() error {
		order = append(order, 2)
		return nil
	})

	d.Close()
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestDispose_CollectsErrors(t *testing.T) {
	boom := errors.New("boom")
	d := NewDispose(context.Background(), func() error { return boom })
	d.AddCleanHandler(func() error { return nil })

	result := d.Close()
	require.True(t, result.HasErrors())
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, 0, result.Errors[0].HandlerIndex)
	assert.Equal(t, boom, d.CloseWithError(), "repeated close keeps the first result")
}

func TestDispose_ParentCancelRunsHandlers(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	d := NewDispose(parent, func() error {
		close(done)
		return nil
	})

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("clean handler did not run after parent cancel")
	}
	assert.Eventually(t, d.IsClosed, time.Second, 10*time.Millisecond)
}

func TestDispose_SetCtxOnce(t *testing.T) {
	d := &Dispose{}
	d.SetCtx(context.Background(), nil)
	first := d.Ctx()
	d.SetCtx(context.Background(), nil)
	assert.Equal(t, first, d.Ctx())
}

func TestServiceBase(t *testing.T) {
	svc := NewService("broker", context.Background())
	assert.Equal(t, "broker", svc.GetName())
	assert.NoError(t, svc.CloseWithError())
	assert.True(t, svc.IsClosed())
}

func TestResourceManager_DisposeAllReverseOrder(t *testing.T) {
	rm := NewResourceManager()
	var order []string
	for _, name := range []string{"broker", "registry", "api"} {
		name := name
		require.NoError(t, rm.Register(name, DisposableFunc(func() error {
			order = append(order, name)
			return nil
		})))
	}
	assert.Error(t, rm.Register("api", DisposableFunc(func() error { return nil })))
	assert.Equal(t, 3, rm.Count())

	result := rm.DisposeAll()
	assert.False(t, result.HasErrors())
	assert.Equal(t, []string{"api", "registry", "broker"}, order)
	assert.Equal(t, 0, rm.Count())
}

func TestResourceManager_DisposeWithTimeout(t *testing.T) {
	rm := NewResourceManager()
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, rm.Register("stuck", DisposableFunc(func() error {
		<-release
		return nil
	})))

	result := rm.DisposeWithTimeout(20 * time.Millisecond)
	require.True(t, result.HasErrors())
	assert.Equal(t, "timeout", result.Errors[0].ResourceName)
}
