// Process-wide hooks for rxzip
// 终止之后到达的信号和协议违规不会传给下游，而是交给进程级钩子
package rxzip

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Hooks 进程级钩子，字段为nil时使用默认实现（写日志）
type Hooks struct {
	// ErrorDropped 终止后到达的错误
	ErrorDropped func(err error)
	// NextDropped 无法投递的数据项
	NextDropped func(value interface{})
	// ProtocolViolation 重复订阅、非法请求量、超量发射等协议违规
	ProtocolViolation func(err error)
}

var hooks atomic.Pointer[Hooks]

func init() {
	ResetHooks()
}

// SetHooks 安装钩子
func SetHooks(h Hooks) {
	if h.ErrorDropped == nil {
		h.ErrorDropped = defaultErrorDropped
	}
	if h.NextDropped == nil {
		h.NextDropped = defaultNextDropped
	}
	if h.ProtocolViolation == nil {
		h.ProtocolViolation = defaultProtocolViolation
	}
	hooks.Store(&h)
}

// ResetHooks 恢复默认钩子
func ResetHooks() {
	SetHooks(Hooks{})
}

func defaultErrorDropped(err error) {
	Logger().Warn("终止后收到错误，已丢弃", zap.Error(err))
}

func defaultNextDropped(value interface{}) {
	Logger().Debug("数据项已丢弃", zap.Any("value", value))
}

func defaultProtocolViolation(err error) {
	Logger().Warn("Reactive Streams协议违规", zap.Error(err))
}

func reportErrorDropped(err error) {
	hooks.Load().ErrorDropped(err)
}

func reportNextDropped(value interface{}) {
	hooks.Load().NextDropped(value)
}

func reportProtocolViolation(err error) {
	hooks.Load().ProtocolViolation(err)
}
