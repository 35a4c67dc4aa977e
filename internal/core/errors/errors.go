// Package errors 提供统一的错误处理机制
//
// 每个错误都带有错误码，可用 errors.Is 与同码哨兵错误比较分类。
// 同步子系统关注两类错误：
// 传输错误（由退避重连在本地恢复）和应用错误
// （单条格式错误的记录，记录日志后丢弃）
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode 错误码
type ErrorCode string

const (
	// 请求 / 配置
	CodeInvalidParam ErrorCode = "INVALID_PARAM"
	CodeMissingParam ErrorCode = "MISSING_PARAM"
	CodeConfigError  ErrorCode = "CONFIG_ERROR"
	CodeNotFound     ErrorCode = "NOT_FOUND"

	// 应用错误：变更记录格式错误
	CodeMalformedRecord ErrorCode = "MALFORMED_RECORD"
	CodeUnknownKind     ErrorCode = "UNKNOWN_KIND"

	// 传输错误
	CodeTransportError ErrorCode = "TRANSPORT_ERROR"
	CodeChannelError   ErrorCode = "CHANNEL_ERROR"
	CodeTimeout        ErrorCode = "TIMEOUT"
	CodeChannelClosed  ErrorCode = "CHANNEL_CLOSED"
	CodeSlowConsumer   ErrorCode = "SLOW_CONSUMER"

	// 系统
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeStorageError   ErrorCode = "STORAGE_ERROR"
	CodeResourceClosed ErrorCode = "RESOURCE_CLOSED"
	CodeCancelled      ErrorCode = "CANCELLED"
)

// Error 统一错误类型
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Details map[string]string
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 支持 errors.Unwrap
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 错误码相同即视为匹配
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail 添加详情键值对，返回 e 以便链式调用
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Detail 获取详情
func (e *Error) Detail(key string) string {
	if e.Details == nil {
		return ""
	}
	return e.Details[key]
}

// New 创建错误
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf 创建格式化消息的错误
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Cause: err}
}

// Wrapf 包装错误（格式化消息）
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// GetCode 获取错误码，非 *Error 返回 CodeInternal
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode 检查错误链中是否包含指定错误码
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Is 导出标准库 errors.Is
var Is = errors.Is

// As 导出标准库 errors.As
var As = errors.As
