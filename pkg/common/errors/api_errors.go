// Package errors 定义接口层的错误分类，以及到 HTTP 状态码和响应体的映射。
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	hzte "github.com/cloudwego/hertz/pkg/common/errors"
)

// NonFieldErrors 跨字段校验错误使用的键
const NonFieldErrors = "non_field_errors"

// 原始错误
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrUnauthenticated  = errors.New("authentication credentials were not provided")
	ErrInvalidToken     = errors.New("token is invalid or expired")
	ErrPermissionDenied = errors.New("you do not have permission to perform this action")
	ErrDuplicateEntry   = errors.New("duplicate entry")
	ErrMailDelivery     = errors.New("mail delivery failed")
	ErrDatabaseInternal = errors.New("database internal error")
)

// FieldErrors 按字段聚合的校验错误，直接作为响应体返回
type FieldErrors map[string][]string

// Field 单字段错误
func Field(field, msg string) FieldErrors {
	return FieldErrors{field: {msg}}
}

// NonField 跨字段错误
func NonField(msg string) FieldErrors {
	return Field(NonFieldErrors, msg)
}

func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(fe[f], ", ")))
	}
	return strings.Join(parts, "; ")
}

func (fe FieldErrors) Unwrap() error {
	return ErrValidation
}

// NotFound 带资源名的 404 错误
func NotFound(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}

// Public 包装成 Hertz 公开错误，渲染时可以把消息返回给调用方
func Public(err error) *hzte.Error {
	return hzte.New(err, hzte.ErrorTypePublic, nil)
}

// StatusOf 错误到 HTTP 状态码
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrDuplicateEntry):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMailDelivery):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Render 生成状态码和响应体。verbose 为 false 时隐藏 500 的细节。
func Render(err error, verbose bool) (int, interface{}) {
	status := StatusOf(err)

	var fe FieldErrors
	if errors.As(err, &fe) {
		return status, fe
	}

	if status == http.StatusInternalServerError && !verbose {
		return status, map[string]interface{}{"detail": "internal server error"}
	}
	return status, map[string]interface{}{"detail": err.Error()}
}
