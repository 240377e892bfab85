package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so cloned errors still compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Sentinels returned by storage layers.
var (
	ErrCacheMiss      = errors.New("cache miss")
	ErrRecordNotFound = errors.New("record not found")
)

// Predefined errors for common scenarios. Messages are the user-facing copy
// rendered by both consoles.
var (
	ErrInvalidCredentials  = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "用户名或密码错误")
	ErrInvalidStudentLogin = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "身份证号或密码错误")
	ErrDecryptPassword     = New("DECRYPT_FAILED", http.StatusBadRequest, "密码解密失败，请确保密码已使用RSA公钥加密")
	ErrEmptyBody           = New("EMPTY_BODY", http.StatusBadRequest, "请求体不能为空")
	ErrNotFound            = New("NOT_FOUND", http.StatusNotFound, "请求资源不存在")
	ErrForbidden           = New("FORBIDDEN", http.StatusForbidden, "拒绝访问")
	ErrUnauthorized        = New("UNAUTHORIZED", http.StatusUnauthorized, "未授权，请重新登录")
	ErrConflict            = New("CONFLICT", http.StatusConflict, "资源冲突")
	ErrGone                = New("GONE", http.StatusGone, "资源已被清理")
	ErrValidation          = New("VALIDATION_ERROR", http.StatusBadRequest, "请求参数错误")
	ErrInternal            = New("INTERNAL_ERROR", http.StatusInternalServerError, "服务器内部错误")
	ErrAlreadyInitialized  = New("ALREADY_INITIALIZED", http.StatusBadRequest, "系统已初始化")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Clonef is Clone with a formatted message.
func Clonef(err *Error, format string, args ...interface{}) *Error {
	return Clone(err, fmt.Sprintf(format, args...))
}

// WithDetails returns a copy of err carrying field level details.
func WithDetails(err *Error, details interface{}) *Error {
	clone := Clone(err, "")
	if clone != nil {
		clone.Details = details
	}
	return clone
}
