package errorutil

import (
	"errors"
	"fmt"
)

// Kind 失败类别
type Kind int

const (
	// KindTransport 网络/超时/非 2xx
	KindTransport Kind = iota
	// KindParse 响应格式异常
	KindParse
	// KindValidation 前置条件不满足（转移执行被拒绝等）
	KindValidation
	// KindPersistence 快照文件不可读
	KindPersistence
)

// String 类别名称
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindParse:
		return "parse"
	case KindValidation:
		return "validation"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error 错误结构（包含失败类别与可重试标记）
type Error struct {
	Kind      Kind   `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Cause     error  `json:"-"`
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 支持 errors.Is / errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// Transport 创建传输错误（网络抖动、超时，可重试）
func Transport(message string, cause error) *Error {
	return &Error{
		Kind:      KindTransport,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// Parse 创建解析错误（响应畸形，重试无意义）
func Parse(message string, cause error) *Error {
	return &Error{
		Kind:      KindParse,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// Validation 创建校验错误（业务前置条件不满足）
func Validation(message string) *Error {
	return &Error{
		Kind:      KindValidation,
		Message:   message,
		Retryable: false,
	}
}

// Persistence 创建持久化错误（单个文件级别，跳过不致命）
func Persistence(message string, cause error) *Error {
	return &Error{
		Kind:      KindPersistence,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// KindOf 提取错误类别；非本包错误返回 ok=false
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
