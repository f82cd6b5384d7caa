package xctx

import (
	"errors"

	"github.com/omeyang/xreqtrace/pkg/context/xscope"
)

var (
	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xctx: nil context")

	// ErrMissingRequestID request_id 缺失
	ErrMissingRequestID = errors.New("xctx: missing request_id")

	// ErrMissingHeaders 传播作用域缺失
	ErrMissingHeaders = errors.New("xctx: missing propagation headers")
)

// mapScopeErr 将 xscope 错误映射为本包哨兵错误。
func mapScopeErr(err, missing error) error {
	if errors.Is(err, xscope.ErrNilContext) {
		return ErrNilContext
	}
	return missing
}
