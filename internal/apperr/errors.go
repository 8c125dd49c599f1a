// Package apperr 定义账本核心的错误分类，调用方（HTTP 层）据此映射状态码。
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误类别
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindForbidden       Kind = "forbidden"
	KindInvalidArgument Kind = "invalid_argument"
	KindConflict        Kind = "conflict"
	KindAlreadyCharging Kind = "already_charging"
	KindNoActiveSession Kind = "no_active_session"
	KindStorage         Kind = "storage_failure"
)

// 类别哨兵，配合 errors.Is 使用；仓库层直接返回 ErrNotFound / ErrConflict
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrAlreadyCharging = &Error{Kind: KindAlreadyCharging}
	ErrNoActiveSession = &Error{Kind: KindNoActiveSession}
	ErrStorage         = &Error{Kind: KindStorage}
)

// Error 带类别、可读消息和相关 ID 的错误
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 同类别即匹配（哨兵没有消息）
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

func newError(kind Kind, msg string, kv []any) *Error {
	e := &Error{Kind: kind, Message: msg}
	if len(kv) > 0 {
		e.Fields = make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			key, ok := kv[i].(string)
			if !ok {
				key = fmt.Sprint(kv[i])
			}
			e.Fields[key] = kv[i+1]
		}
	}
	return e
}

// NotFound 资源不存在；kv 为成对的字段名和值
func NotFound(msg string, kv ...any) *Error {
	return newError(KindNotFound, msg, kv)
}

func Forbidden(msg string, kv ...any) *Error {
	return newError(KindForbidden, msg, kv)
}

func InvalidArgument(msg string, kv ...any) *Error {
	return newError(KindInvalidArgument, msg, kv)
}

func Conflict(msg string, kv ...any) *Error {
	return newError(KindConflict, msg, kv)
}

func AlreadyCharging(msg string, kv ...any) *Error {
	return newError(KindAlreadyCharging, msg, kv)
}

func NoActiveSession(msg string, kv ...any) *Error {
	return newError(KindNoActiveSession, msg, kv)
}

// Storage 包装底层持久化错误，消息本身不含存储细节
func Storage(err error, msg string, kv ...any) *Error {
	e := newError(KindStorage, msg, kv)
	e.Err = err
	return e
}

// WithContext 为不带消息的哨兵补充消息和字段，已有消息的错误原样返回
func WithContext(err *Error, msg string, kv ...any) *Error {
	if err.Message != "" {
		return err
	}
	e := newError(err.Kind, msg, kv)
	e.Err = err.Err
	return e
}

// KindOf 返回错误类别，非 *Error 视为存储错误
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// HTTPStatus 错误类别对应的 HTTP 状态码
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindConflict, KindAlreadyCharging, KindNoActiveSession:
		return http.StatusConflict
	case "":
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage 对外可见的错误消息，存储错误不暴露底层原因
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal storage failure"
	}
	if e.Kind == KindStorage {
		if e.Message != "" {
			return e.Message
		}
		return "internal storage failure"
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// PublicFields 对外可见的字段
func PublicFields(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
