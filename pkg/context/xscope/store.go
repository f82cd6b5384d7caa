package xscope

import (
	"context"
	"errors"
)

var (
	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xscope: nil context")

	// ErrAbsent 表示当前调用位置没有激活的作用域。
	ErrAbsent = errors.New("xscope: no active scope")
)

// storeKey 每个 Store 独有的 context key。
//
// 使用指针身份区分，同名 Store 也不会互相覆盖。
type storeKey struct {
	name string
}

// Store 一个独立的环境作用域槽位。
//
// Store 本身无可变状态，可安全地被多个 goroutine 并发使用。
type Store[T any] struct {
	key *storeKey
}

// New 创建新的 Store，name 仅用于调试输出。
func New[T any](name string) *Store[T] {
	return &Store[T]{key: &storeKey{name: name}}
}

// Name 返回 Store 名称。
func (s *Store[T]) Name() string {
	return s.key.name
}

// With 返回携带 value 的派生 context。
//
// 如果 ctx 为 nil，返回 ErrNilContext。
func (s *Store[T]) With(ctx context.Context, value T) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, s.key, value), nil
}

// Run 在 value 激活的作用域内执行 fn。
//
// fn 收到的 context 以及由它派生的所有 context 都能读到 value。
// fn 启动的 goroutine 只要使用该 context，在 Run 返回后仍然看到同一个值。
// ctx 为 nil 时以 context.Background() 为父 context。
func (s *Store[T]) Run(ctx context.Context, value T, fn func(ctx context.Context)) {
	if ctx == nil {
		ctx = context.Background()
	}
	if fn == nil {
		return
	}
	fn(context.WithValue(ctx, s.key, value))
}

// Get 返回当前调用位置激活的值。
//
// 没有激活的作用域（或 ctx 为 nil）时返回零值和 false。
func (s *Store[T]) Get(ctx context.Context) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(s.key).(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Require 与 Get 相同，但缺失时返回错误。
func (s *Store[T]) Require(ctx context.Context) (T, error) {
	var zero T
	if ctx == nil {
		return zero, ErrNilContext
	}
	v, ok := s.Get(ctx)
	if !ok {
		return zero, ErrAbsent
	}
	return v, nil
}

// Active 报告当前调用位置是否存在激活的作用域。
func (s *Store[T]) Active(ctx context.Context) bool {
	_, ok := s.Get(ctx)
	return ok
}
