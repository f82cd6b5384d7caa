package xtrace

import (
	"errors"
	"fmt"
)

// ErrPanic 下游阶段 panic 时返回的错误，原始 panic 值附在错误消息中
var ErrPanic = errors.New("xtrace: panic in next stage")

// ErrorMeta 逃逸出追踪周期的错误所携带的诊断信息
type ErrorMeta struct {
	ResTime   string `json:"resTime"`
	RequestID string `json:"requestId"`
}

// MetaSetter 可原地接收 ErrorMeta 的错误类型
//
// 业务错误实现此接口并直接返回时，WithMeta 原地写入而不再包装，保留其余字段。
type MetaSetter interface {
	SetMeta(meta ErrorMeta)
}

// MetaGetter 可读取 ErrorMeta 的错误类型
type MetaGetter interface {
	Meta() ErrorMeta
}

// Error 为任意错误附加 ErrorMeta 的包装类型，保留 errors.Is / errors.As 链
type Error struct {
	Err      error
	MetaInfo ErrorMeta
}

var (
	_ MetaSetter = (*Error)(nil)
	_ MetaGetter = (*Error)(nil)
)

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("xtrace: request %s failed after %s", e.MetaInfo.RequestID, e.MetaInfo.ResTime)
	}
	return e.Err.Error()
}

// Unwrap 返回原始错误
func (e *Error) Unwrap() error {
	return e.Err
}

// SetMeta 替换附加的 ErrorMeta
func (e *Error) SetMeta(meta ErrorMeta) {
	e.MetaInfo = meta
}

// Meta 返回附加的 ErrorMeta
func (e *Error) Meta() ErrorMeta {
	return e.MetaInfo
}

// WithMeta 为 err 附加 meta，nil 返回 nil
//
// err 本身实现 MetaSetter（包括已有的 *Error）时原地更新并返回原错误；
// 否则包装为 *Error，链中更深处的错误保持不变。
func WithMeta(err error, meta ErrorMeta) error {
	if err == nil {
		return nil
	}
	if setter, ok := err.(MetaSetter); ok {
		setter.SetMeta(meta)
		return err
	}
	return &Error{Err: err, MetaInfo: meta}
}

// MetaOf 从错误链中读取 ErrorMeta
func MetaOf(err error) (ErrorMeta, bool) {
	var getter MetaGetter
	if errors.As(err, &getter) {
		return getter.Meta(), true
	}
	return ErrorMeta{}, false
}

// panicError 将 recover 得到的值转为错误，保留 error 类型 panic 的链
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrPanic, r)
}
