// Package safe 提供安全的 Goroutine 管理
package safe

import (
	"runtime/debug"
	"sync/atomic"

	corelog "rowsync-core/internal/core/log"
)

var (
	activeCount atomic.Int64
	totalCount  atomic.Int64
	panicCount  atomic.Int64
)

// Stats Goroutine 统计信息
type Stats struct {
	Active     int64 `json:"active"`
	Total      int64 `json:"total"`
	PanicCount int64 `json:"panics"`
}

// GetStats 获取统计信息
func GetStats() Stats {
	return Stats{
		Active:     activeCount.Load(),
		Total:      totalCount.Load(),
		PanicCount: panicCount.Load(),
	}
}

// Go 安全启动 goroutine，panic 会被恢复并连同堆栈记录日志
func Go(name string, fn func()) {
	GoWithCallback(name, fn, nil)
}

// GoWithCallback 安全启动 goroutine，恢复 panic 后调用 onPanic
func GoWithCallback(name string, fn func(), onPanic func(recovered interface{})) {
	totalCount.Add(1)
	activeCount.Add(1)

	go func() {
		defer func() {
			activeCount.Add(-1)
			if r := recover(); r != nil {
				panicCount.Add(1)
				corelog.Errorf("SafeGo[%s]: panic recovered: %v\n%s", name, r, string(debug.Stack()))
				if onPanic != nil {
					onPanic(r)
				}
			}
		}()
		fn()
	}()
}
