package xid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sony/sonyflake/v2"
)

var (
	// ErrInvalidConfig 配置参数无效。
	ErrInvalidConfig = errors.New("xid: invalid config")

	// ErrUnknownKind 未知的生成器类型。
	ErrUnknownKind = errors.New("xid: unknown generator kind")
)

// Generator 唯一标识生成器。
//
// 实现必须并发安全，返回值在实际使用中不应碰撞。
type Generator interface {
	NewID() string
}

// GeneratorFunc 将函数适配为 Generator。
type GeneratorFunc func() string

// NewID 实现 Generator 接口。
func (f GeneratorFunc) NewID() string {
	return f()
}

// =============================================================================
// UUID
// =============================================================================

// UUID 生成 UUID v4 字符串。
type UUID struct{}

// NewID 实现 Generator 接口。
func (UUID) NewID() string {
	return uuid.NewString()
}

// =============================================================================
// Sonyflake
// =============================================================================

// Sonyflake 基于 Sonyflake v2 的有序 ID 生成器，输出十进制字符串。
type Sonyflake struct {
	sf       *sonyflake.Sonyflake
	fallback Generator
	failures atomic.Uint64
}

// SonyflakeOption Sonyflake 配置选项
type SonyflakeOption func(*sonyflakeOptions)

type sonyflakeOptions struct {
	machineID func() (uint16, error)
}

// WithMachineID 设置自定义机器 ID 获取函数，默认使用 [DefaultMachineID]。
func WithMachineID(fn func() (uint16, error)) SonyflakeOption {
	return func(o *sonyflakeOptions) {
		o.machineID = fn
	}
}

// NewSonyflake 创建 Sonyflake 生成器。
func NewSonyflake(opts ...SonyflakeOption) (*Sonyflake, error) {
	cfg := &sonyflakeOptions{machineID: DefaultMachineID}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.machineID == nil {
		return nil, fmt.Errorf("%w: nil machine id func", ErrInvalidConfig)
	}

	machineID := cfg.machineID
	sf, err := sonyflake.New(sonyflake.Settings{
		MachineID: func() (int, error) {
			id, err := machineID()
			return int(id), err
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &Sonyflake{sf: sf, fallback: UUID{}}, nil
}

// NewID 实现 Generator 接口。
//
// Sonyflake 时间分量溢出时退化为 UUID，保证总能返回非空标识；
// 退化次数可通过 Failures 观测。
func (s *Sonyflake) NewID() string {
	id, err := s.sf.NextID()
	if err != nil {
		s.failures.Add(1)
		return s.fallback.NewID()
	}
	return strconv.FormatInt(id, 10)
}

// Failures 返回退化为 UUID 的次数。
func (s *Sonyflake) Failures() uint64 {
	return s.failures.Load()
}

// =============================================================================
// 按名称构建
// =============================================================================

// 生成器类型名称，用于配置文件。
const (
	KindUUID      = "uuid"
	KindSonyflake = "sonyflake"
)

// FromKind 根据名称创建生成器。空字符串等价于 "uuid"。
func FromKind(kind string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindUUID:
		return UUID{}, nil
	case KindSonyflake:
		return NewSonyflake()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// =============================================================================
// 全局生成器
// =============================================================================

var defaultGenerator atomic.Pointer[Generator]

// Default 返回全局默认生成器（未设置时为 UUID）。
func Default() Generator {
	if g := defaultGenerator.Load(); g != nil {
		return *g
	}
	return UUID{}
}

// SetDefault 替换全局默认生成器。nil 会被忽略。
func SetDefault(g Generator) {
	if g == nil {
		return
	}
	defaultGenerator.Store(&g)
}

// ResetDefault 恢复为 UUID 生成器（仅用于测试）。
func ResetDefault() {
	defaultGenerator.Store(nil)
}

// NewID 使用全局默认生成器生成标识。
func NewID() string {
	return Default().NewID()
}
