package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

// DefaultStatusMessages is the fallback text shown when a failed response
// carries no message of its own.
var DefaultStatusMessages = map[int]string{
	http.StatusBadRequest:            "请求参数错误",
	http.StatusUnauthorized:          "未授权，请重新登录",
	http.StatusForbidden:             "拒绝访问",
	http.StatusNotFound:              "请求资源不存在",
	http.StatusMethodNotAllowed:      "请求方法不允许",
	http.StatusRequestTimeout:        "请求超时",
	http.StatusConflict:              "资源冲突",
	http.StatusGone:                  "资源已被清理",
	http.StatusRequestEntityTooLarge: "上传文件过大",
	http.StatusInternalServerError:   "服务器内部错误",
	http.StatusBadGateway:            "网关错误",
	http.StatusServiceUnavailable:    "服务不可用",
	http.StatusGatewayTimeout:        "网关超时",
}

const (
	msgSessionExpired = "登录已过期，请重新登录"
	msgBadCredentials = "身份证号或密码错误"
	msgNetwork        = "网络异常，请稍后重试"
)

// Error is returned for every failed call. Status is the HTTP status (zero
// for transport failures) and Code the business code when the body carried one.
type Error struct {
	Status  int
	Code    int
	Message string
	Body    map[string]interface{}
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// Unwrap returns the transport error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// IsUnauthorized reports whether err is an HTTP or business 401.
func IsUnauthorized(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Status == http.StatusUnauthorized || e.Code == http.StatusUnauthorized
}

// bodyMessage returns the first non-empty of error, message, msg.
func bodyMessage(body map[string]interface{}) string {
	for _, key := range []string{"error", "message", "msg"} {
		if s, ok := body[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func messageOr(body map[string]interface{}, fallback string) string {
	if msg := bodyMessage(body); msg != "" {
		return msg
	}
	return fallback
}

func statusFallback(table map[int]string, status int, format string) string {
	if msg, ok := table[status]; ok && msg != "" {
		return msg
	}
	return fmt.Sprintf(format, status)
}
