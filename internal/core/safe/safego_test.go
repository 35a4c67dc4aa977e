package safe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGo_RunsFunction(t *testing.T) {
	before := GetStats()
	done := make(chan struct{})
	Go("test", func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("function did not run")
	}
	assert.GreaterOrEqual(t, GetStats().Total, before.Total+1)
}

func TestGoWithCallback_RecoversPanic(t *testing.T) {
	before := GetStats()
	recovered := make(chan interface{}, 1)
	GoWithCallback("panicky", func() { panic("boom") }, func(r interface{}) { recovered <- r })

	select {
	case r := <-recovered:
		assert.Equal(t, "boom", r)
	case <-time.After(time.Second):
		t.Fatal("panic was not reported")
	}
	require.Eventually(t, func() bool {
		return GetStats().PanicCount >= before.PanicCount+1
	}, time.Second, 5*time.Millisecond)
}
