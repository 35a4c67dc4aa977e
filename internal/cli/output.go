// Package cli 提供终端输出
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"rowsync-core/internal/changefeed"
	"rowsync-core/internal/projection"
	"rowsync-core/internal/realtime"
)

// IsTerminal 检查 w 是否为交互式终端
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Output 终端输出工具
type Output struct {
	w io.Writer

	success *color.Color
	failure *color.Color
	warning *color.Color
	info    *color.Color
	bold    *color.Color
	faint   *color.Color
	insert  *color.Color
	update  *color.Color
	remove  *color.Color

	now func() time.Time
}

// NewOutput 创建输出工具
// 仅在 w 为终端且未设置 noColor 时使用颜色
func NewOutput(w io.Writer, noColor bool) *Output {
	o := &Output{
		w:       w,
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed),
		warning: color.New(color.FgYellow),
		info:    color.New(color.FgCyan),
		bold:    color.New(color.Bold),
		faint:   color.New(color.Faint),
		insert:  color.New(color.FgGreen, color.Bold),
		update:  color.New(color.FgYellow, color.Bold),
		remove:  color.New(color.FgRed, color.Bold),
		now:     time.Now,
	}
	o.setColor(!noColor && IsTerminal(w))
	return o
}

func (o *Output) setColor(enabled bool) {
	for _, c := range []*color.Color{o.success, o.failure, o.warning, o.info, o.bold, o.faint, o.insert, o.update, o.remove} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

func (o *Output) printf(format string, args ...interface{}) {
	fmt.Fprintf(o.w, format, args...)
}

// Success 输出成功信息（绿色）
func (o *Output) Success(format string, args ...interface{}) {
	o.printf("%s %s\n", o.success.Sprint("✓"), fmt.Sprintf(format, args...))
}

// Error 输出错误信息（红色）
func (o *Output) Error(format string, args ...interface{}) {
	o.printf("%s %s\n", o.failure.Sprint("✗"), fmt.Sprintf(format, args...))
}

// Warning 输出警告信息（黄色）
func (o *Output) Warning(format string, args ...interface{}) {
	o.printf("%s %s\n", o.warning.Sprint("!"), fmt.Sprintf(format, args...))
}

// Info 输出提示信息（青色）
func (o *Output) Info(format string, args ...interface{}) {
	o.printf("%s %s\n", o.info.Sprint("i"), fmt.Sprintf(format, args...))
}

// KeyValue 输出对齐的键值对
func (o *Output) KeyValue(key, value string) {
	o.printf("  %s %s\n", o.bold.Sprintf("%-18s", key+":"), value)
}

// Header 输出标题
func (o *Output) Header(title string) {
	o.printf("\n%s\n%s\n", o.bold.Sprint(title), o.faint.Sprint(strings.Repeat("─", len(title))))
}

func (o *Output) stamp() string {
	return o.faint.Sprint(o.now().Format("15:04:05.000"))
}

func (o *Output) kindColor(k changefeed.Kind) *color.Color {
	switch k {
	case changefeed.KindInsert:
		return o.insert
	case changefeed.KindUpdate:
		return o.update
	default:
		return o.remove
	}
}

// Change 输出一条投影变更
// 重置时输出重载后的条目数 size
func (o *Output) Change(topic string, c projection.Change, size int) {
	if c.Reset {
		o.printf("%s %s %s %s reloaded, %d items\n",
			o.stamp(), o.faint.Sprintf("v%-4d", c.Version), o.info.Sprintf("%-6s", "RESYNC"), topic, size)
		return
	}

	ev := c.Event
	line := fmt.Sprintf("%s %s %s %s id=%s",
		o.stamp(), o.faint.Sprintf("v%-4d", c.Version), o.kindColor(ev.Kind).Sprintf("%-6s", ev.Kind), topic, ev.EntityID)
	if len(ev.Payload) > 0 {
		if data, err := json.Marshal(ev.Payload); err == nil {
			line += " " + string(data)
		}
	}
	o.printf("%s\n", line)
}

// Status 输出通道状态转换
func (o *Output) Status(st realtime.Status) {
	var c *color.Color
	switch {
	case st.State == realtime.StateSubscribed:
		c = o.success
	case st.State.Reconnecting():
		c = o.failure
	default:
		c = o.info
	}

	line := fmt.Sprintf("%s %s %s %s", o.stamp(), o.faint.Sprint("     "), c.Sprintf("%-6s", strings.ToUpper(st.State.String())), st.Topic)
	if st.State.Reconnecting() {
		line += fmt.Sprintf(" retry #%d in %s", st.Attempt, st.NextDelay)
	}
	o.printf("%s\n", line)
}

// Snapshot 输出所有实体（最新在前）
func (o *Output) Snapshot(topic string, items []changefeed.Entity, version uint64) {
	o.Header(fmt.Sprintf("%s @ v%d (%d items)", topic, version, len(items)))
	for _, item := range items {
		id, _ := item.ID()
		data, err := json.Marshal(item)
		if err != nil {
			continue
		}
		o.printf("  %s %s\n", o.bold.Sprintf("%-12s", id), string(data))
	}
}
