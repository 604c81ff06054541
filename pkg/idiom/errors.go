package idiom

import (
	"errors"
	"fmt"
)

// ErrorCode 标识一次运行中可能出现的失败类型
type ErrorCode string

const (
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeMalformedInput ErrorCode = "MALFORMED_INPUT"
	CodeTypeMismatch   ErrorCode = "TYPE_MISMATCH"
	CodeWrite          ErrorCode = "IO_WRITE"
)

// Error 是带错误码的结构化错误，可用 errors.Is 与下面的哨兵错误比较
type Error struct {
	Code    ErrorCode
	Message string
	Path    string // 相关文件路径，可为空
	Cause   error
}

var (
	ErrNotFound       = &Error{Code: CodeNotFound, Message: "input file not found"}
	ErrMalformedInput = &Error{Code: CodeMalformedInput, Message: "malformed input"}
	ErrTypeMismatch   = &Error{Code: CodeTypeMismatch, Message: "field is not a string"}
	ErrWrite          = &Error{Code: CodeWrite, Message: "failed to write output"}
)

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 按错误码匹配，使 errors.Is(err, ErrNotFound) 对任意 NOT_FOUND 错误成立
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError 创建一个新的结构化错误
func NewError(code ErrorCode, path string, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Path:    path,
		Cause:   cause,
	}
}

// CodeOf 返回错误链中第一个结构化错误的错误码
func CodeOf(err error) (ErrorCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
