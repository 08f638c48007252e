// Package rxzip provides a backpressured zip operator for reactive streams in Go
// 基于Reactive Streams协议的多路压缩(zip)操作符，支持背压、队列融合与标量快速路径
package rxzip

import (
	"context"
	"math"
	"sync/atomic"

	"go.uber.org/zap"
)

// ============================================================================
// 核心类型定义
// ============================================================================

// Unbounded 表示无界需求，请求量达到该值后不再递减
const Unbounded int64 = math.MaxInt64

// Item 表示流中的一个数据项，包含值或错误
type Item struct {
	Value interface{} // 数据值，可以合法地为nil
	Error error       // 错误信息
}

// IsError 检查项目是否包含错误
func (item Item) IsError() bool {
	return item.Error != nil
}

// CreateItem 创建包含值的项目
func CreateItem(value interface{}) Item {
	return Item{Value: value}
}

// CreateErrorItem 创建包含错误的项目
func CreateErrorItem(err error) Item {
	return Item{Error: err}
}

// ============================================================================
// 函数类型定义
// ============================================================================

// OnNext 处理下一个值的函数
type OnNext func(value interface{})

// OnError 处理错误的函数
type OnError func(err error)

// OnComplete 处理完成的函数
type OnComplete func()

// ============================================================================
// 生命周期管理
// ============================================================================

// Disposable 可释放资源的接口
type Disposable interface {
	// Dispose 释放资源
	Dispose()
	// IsDisposed 检查是否已释放
	IsDisposed() bool
}

// baseDisposable 基础可释放资源实现
type baseDisposable struct {
	disposed int32
	action   func()
}

// NewBaseDisposable 创建基础可释放资源
func NewBaseDisposable(action func()) Disposable {
	return &baseDisposable{
		action: action,
	}
}

// Dispose 释放资源
func (d *baseDisposable) Dispose() {
	if atomic.CompareAndSwapInt32(&d.disposed, 0, 1) {
		if d.action != nil {
			d.action()
		}
	}
}

// IsDisposed 检查是否已释放
func (d *baseDisposable) IsDisposed() bool {
	return atomic.LoadInt32(&d.disposed) == 1
}

// ============================================================================
// 调度器接口
// ============================================================================

// Scheduler 调度器接口，控制订阅动作在哪个goroutine上执行
type Scheduler interface {
	// Schedule 调度一个任务
	Schedule(action func()) Disposable
}

// ============================================================================
// 需求计数工具
// ============================================================================

// addCap 饱和加法，结果不超过Unbounded
func addCap(a, b int64) int64 {
	r := a + b
	if r < 0 {
		return Unbounded
	}
	return r
}

// getAndAddCap 原子地把n累加到需求计数上并返回旧值
func getAndAddCap(requested *atomic.Int64, n int64) int64 {
	for {
		r := requested.Load()
		if r == Unbounded {
			return Unbounded
		}
		if requested.CompareAndSwap(r, addCap(r, n)) {
			return r
		}
	}
}

// produced 原子地扣减已发射数量，无界需求保持不变
func produced(requested *atomic.Int64, n int64) int64 {
	for {
		r := requested.Load()
		if r == Unbounded {
			return Unbounded
		}
		u := r - n
		if u < 0 {
			reportProtocolViolation(ErrOverProduction)
			u = 0
		}
		if requested.CompareAndSwap(r, u) {
			return u
		}
	}
}

// validateRequest 校验下游请求量，非正数视为协议违规
func validateRequest(n int64) bool {
	if n <= 0 {
		reportProtocolViolation(invalidRequest(n))
		return false
	}
	return true
}

// ============================================================================
// 配置选项
// ============================================================================

// Option 配置选项接口
type Option interface {
	Apply(config *Config)
}

// Config 配置结构
type Config struct {
	// Prefetch 每条rail预取的数量，同时决定补充阈值
	Prefetch int
	// QueueSupplier 为未融合的rail创建缓冲区，为nil时按Prefetch选择
	QueueSupplier QueueSupplier
	// Logger 协调器日志，为nil时使用包级日志
	Logger *zap.Logger
	// Metrics Prometheus指标，为nil时不记录
	Metrics *Metrics
	// Context 订阅上下文，结束时取消上游订阅
	Context context.Context
}

// DefaultConfig 默认配置，预取量取自环境设置
func DefaultConfig() *Config {
	return &Config{
		Prefetch: currentSettings().Prefetch,
		Context:  context.Background(),
	}
}

// newConfig 应用选项后返回配置
func newConfig(options []Option) *Config {
	config := DefaultConfig()
	for _, opt := range options {
		if opt != nil {
			opt.Apply(config)
		}
	}
	return config
}

// logger 返回配置的日志或包级日志
func (c *Config) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return Logger()
}

// queueSupplier 返回配置的缓冲区工厂
func (c *Config) queueSupplier() QueueSupplier {
	if c.QueueSupplier != nil {
		return c.QueueSupplier
	}
	if c.Prefetch == math.MaxInt {
		return UnboundedQueueSupplier()
	}
	return BoundedQueueSupplier(c.Prefetch)
}

// optionFunc 函数式选项
type optionFunc func(config *Config)

// Apply 应用选项
func (f optionFunc) Apply(config *Config) {
	f(config)
}

// WithPrefetch 设置每条rail的预取数量，math.MaxInt表示无界
func WithPrefetch(prefetch int) Option {
	return optionFunc(func(config *Config) {
		config.Prefetch = prefetch
	})
}

// WithQueueSupplier 设置rail缓冲区工厂
func WithQueueSupplier(supplier QueueSupplier) Option {
	return optionFunc(func(config *Config) {
		config.QueueSupplier = supplier
	})
}

// WithLogger 设置协调器日志
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(config *Config) {
		config.Logger = logger
	})
}

// WithMetrics 设置Prometheus指标
func WithMetrics(metrics *Metrics) Option {
	return optionFunc(func(config *Config) {
		config.Metrics = metrics
	})
}

// WithContext 设置订阅上下文
func WithContext(ctx context.Context) Option {
	return optionFunc(func(config *Config) {
		if ctx != nil {
			config.Context = ctx
		}
	})
}
