package errors

// 哨兵错误，用于 errors.Is 比较，不携带上下文
var (
	ErrInvalidParam = New(CodeInvalidParam, "invalid parameter")
	ErrMissingParam = New(CodeMissingParam, "missing required parameter")
	ErrConfigError  = New(CodeConfigError, "configuration error")
	ErrNotFound     = New(CodeNotFound, "not found")

	ErrMalformedRecord = New(CodeMalformedRecord, "malformed mutation record")
	ErrUnknownKind     = New(CodeUnknownKind, "unknown operation kind")

	ErrTransport     = New(CodeTransportError, "transport error")
	ErrChannelError  = New(CodeChannelError, "channel error")
	ErrTimeout       = New(CodeTimeout, "operation timeout")
	ErrChannelClosed = New(CodeChannelClosed, "channel closed")
	ErrSlowConsumer  = New(CodeSlowConsumer, "subscriber too slow, buffer overflow")

	ErrInternal       = New(CodeInternal, "internal error")
	ErrStorageError   = New(CodeStorageError, "storage error")
	ErrResourceClosed = New(CodeResourceClosed, "resource closed")
	ErrCancelled      = New(CodeCancelled, "operation cancelled")
)

// IsApplicationError 是否为变更记录错误
// 此类错误只丢弃单个事件，不影响通道健康
func IsApplicationError(err error) bool {
	return IsCode(err, CodeMalformedRecord) || IsCode(err, CodeUnknownKind)
}

// IsTransportError 是否为订阅传输错误
// 此类错误通过重连恢复
func IsTransportError(err error) bool {
	switch GetCode(err) {
	case CodeTransportError, CodeChannelError, CodeTimeout, CodeChannelClosed, CodeSlowConsumer:
		return err != nil
	default:
		return false
	}
}

// IsTimeout 是否为超时错误
func IsTimeout(err error) bool {
	return IsCode(err, CodeTimeout)
}
