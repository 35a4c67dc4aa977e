package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "without cause",
			err:      New(CodeMalformedRecord, "record has no id"),
			expected: "[MALFORMED_RECORD] record has no id",
		},
		{
			name:     "with cause",
			err:      Wrap(errors.New("connection reset"), CodeChannelError, "receive failed"),
			expected: "[CHANNEL_ERROR] receive failed: connection reset",
		},
		{
			name:     "formatted message",
			err:      Newf(CodeInvalidParam, "invalid jitter: %.1f", 1.5),
			expected: "[INVALID_PARAM] invalid jitter: 1.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	err1 := New(CodeTimeout, "subscribe timed out")
	err2 := New(CodeTimeout, "ping timed out")
	err3 := New(CodeChannelClosed, "closed")

	if !errors.Is(err1, err2) {
		t.Error("errors with same code should match")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different code should not match")
	}
	if !errors.Is(fmt.Errorf("outer: %w", err1), ErrTimeout) {
		t.Error("should match sentinel through fmt wrapping")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("original error")
	wrapped := Wrap(cause, CodeInternal, "wrapped")

	if errors.Unwrap(wrapped) != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestError_WithDetail(t *testing.T) {
	err := New(CodeMalformedRecord, "missing id").
		WithDetail("topic", "posts").
		WithDetail("kind", "UPDATE")

	if err.Detail("topic") != "posts" || err.Detail("kind") != "UPDATE" {
		t.Errorf("unexpected details: %v", err.Details)
	}
	if err.Detail("absent") != "" {
		t.Error("absent detail should be empty")
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{"custom error", New(CodeNotFound, "not found"), CodeNotFound},
		{"wrapped error", Wrap(errors.New("redis"), CodeTransportError, "publish"), CodeTransportError},
		{"standard error", errors.New("standard"), CodeInternal},
		{"nil error", nil, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		application bool
		transport   bool
	}{
		{"malformed record", ErrMalformedRecord, true, false},
		{"unknown kind", Newf(CodeUnknownKind, "kind %q", "TRUNCATE"), true, false},
		{"channel error", ErrChannelError, false, true},
		{"timeout", ErrTimeout, false, true},
		{"closed", ErrChannelClosed, false, true},
		{"slow consumer", ErrSlowConsumer, false, true},
		{"internal", ErrInternal, false, false},
		{"nil", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsApplicationError(tt.err); got != tt.application {
				t.Errorf("IsApplicationError() = %v, want %v", got, tt.application)
			}
			if got := IsTransportError(tt.err); got != tt.transport {
				t.Errorf("IsTransportError() = %v, want %v", got, tt.transport)
			}
		})
	}
}
