package log

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()

	logger.Debug("test")
	logger.Info("test")
	logger.Warn("test")
	logger.Error("test")
	logger.Debugf("test %s", "arg")
	logger.Infof("test %s", "arg")
	logger.Warnf("test %s", "arg")
	logger.Errorf("test %s", "arg")

	if _, ok := logger.WithField("key", "value").(NopLogger); !ok {
		t.Error("WithField should return NopLogger")
	}
	if _, ok := logger.WithFields(map[string]interface{}{"key": "value"}).(NopLogger); !ok {
		t.Error("WithFields should return NopLogger")
	}
	if _, ok := logger.WithError(nil).(NopLogger); !ok {
		t.Error("WithError should return NopLogger")
	}
	if _, ok := logger.WithContext(context.Background()).(NopLogger); !ok {
		t.Error("WithContext should return NopLogger")
	}
}

type mockTestingT struct {
	logs []string
}

func (m *mockTestingT) Log(args ...interface{}) {
	m.logs = append(m.logs, args[0].(string))
}

func (m *mockTestingT) Logf(format string, args ...interface{}) {
	m.logs = append(m.logs, format)
}

func TestTestLogger(t *testing.T) {
	mock := &mockTestingT{}
	logger := NewTestLogger(mock)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")
	if len(mock.logs) != 4 {
		t.Fatalf("expected 4 logs, got %d", len(mock.logs))
	}

	mock.logs = nil
	logger.Warnf("warn %s", "formatted")
	if len(mock.logs) != 1 || !strings.HasPrefix(mock.logs[0], "[WARN]") {
		t.Errorf("unexpected formatted log: %v", mock.logs)
	}
}

func TestTestLogger_FieldsAreCopied(t *testing.T) {
	base := NewTestLogger(&mockTestingT{}).WithField("topic", "posts")
	child := base.WithError(errors.New("boom"))

	if _, ok := base.(*TestLogger).Fields()["error"]; ok {
		t.Error("WithError must not mutate the parent logger")
	}
	fields := child.(*TestLogger).Fields()
	if fields["topic"] != "posts" || fields["error"] == nil {
		t.Errorf("unexpected child fields: %v", fields)
	}
}

func TestLogrusLogger_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	NewLogrusLogger(l).WithField("topic", "posts").Infof("subscribed after %d attempts", 3)

	out := buf.String()
	if !strings.Contains(out, "topic=posts") || !strings.Contains(out, "subscribed after 3 attempts") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	defer SetDefault(prev)

	mock := &mockTestingT{}
	SetDefault(NewTestLogger(mock))
	Infof("hello %s", "world")

	if len(mock.logs) != 1 {
		t.Fatalf("expected default logger to be replaced, got %d logs", len(mock.logs))
	}
}

func TestOrDefault(t *testing.T) {
	if OrDefault(nil) == nil {
		t.Error("OrDefault(nil) should return the default logger")
	}
	nop := NewNopLogger()
	if OrDefault(nop) != nop {
		t.Error("OrDefault should keep a non-nil logger")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    logrus.Level
		wantErr bool
	}{
		{"", logrus.InfoLevel, false},
		{"debug", logrus.DebugLevel, false},
		{"warning", logrus.WarnLevel, false},
		{"ERROR", logrus.ErrorLevel, false},
		{"loud", logrus.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConfigure_RejectsUnknownFormat(t *testing.T) {
	prev := Default()
	defer SetDefault(prev)

	if _, err := Configure(Config{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := Configure(Config{Output: "file"}); err == nil {
		t.Error("expected error for file output without path")
	}
	closer, err := Configure(Config{Level: "debug", Format: "json", Output: "discard"})
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	_ = closer.Close()
}
