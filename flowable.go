// Flowable implementation for rxzip
// 支持背压处理的数据流接口，基于Reactive Streams规范
package rxzip

import (
	"context"
	"sync/atomic"
)

// ============================================================================
// Subscriber 接口定义
// ============================================================================

// FlowableSubscription 订阅接口，支持请求管理
type FlowableSubscription interface {
	// Request 请求指定数量的数据项
	Request(n int64)
	// Cancel 取消订阅
	Cancel()
	// IsCancelled 检查是否已取消
	IsCancelled() bool
}

// Subscriber Flowable的订阅者接口
type Subscriber interface {
	// OnSubscribe 订阅开始时调用
	OnSubscribe(subscription FlowableSubscription)
	// OnNext 接收到新数据时调用
	OnNext(item Item)
	// OnError 发生错误时调用
	OnError(err error)
	// OnComplete 数据流完成时调用
	OnComplete()
}

// Publisher 发布者接口，符合Reactive Streams规范
type Publisher interface {
	// Subscribe 订阅Subscriber
	Subscribe(subscriber Subscriber)
}

// ============================================================================
// Flowable 接口定义
// ============================================================================

// Flowable 支持背压的响应式数据流接口
type Flowable interface {
	Publisher

	// SubscribeWithCallbacks 使用回调函数订阅，返回的订阅可以立即Request
	SubscribeWithCallbacks(onNext OnNext, onError OnError, onComplete OnComplete) FlowableSubscription

	// SubscribeOn 指定订阅操作运行的调度器
	SubscribeOn(scheduler Scheduler) Flowable

	// ZipWith 与另一个源逐项组合
	ZipWith(other Publisher, zipper BiZipper, options ...Option) Flowable

	// BlockingToSlice 阻塞收集全部数据项
	BlockingToSlice(ctx context.Context) ([]interface{}, error)

	// BlockingFirst 阻塞获取第一个数据项
	BlockingFirst(ctx context.Context) (interface{}, error)
}

// ============================================================================
// 内部实现结构
// ============================================================================

// subscriptionImpl FlowableSubscription的基础实现，校验请求量后转发给onRequest
type subscriptionImpl struct {
	cancelled atomic.Bool
	onRequest func(int64)
	onCancel  func()
}

// NewFlowableSubscription 创建新的FlowableSubscription
func NewFlowableSubscription(onRequest func(int64), onCancel func()) FlowableSubscription {
	return &subscriptionImpl{
		onRequest: onRequest,
		onCancel:  onCancel,
	}
}

// Request 请求指定数量的数据项
func (s *subscriptionImpl) Request(n int64) {
	if !validateRequest(n) || s.IsCancelled() {
		return
	}
	if s.onRequest != nil {
		s.onRequest(n)
	}
}

// Cancel 取消订阅
func (s *subscriptionImpl) Cancel() {
	if s.cancelled.CompareAndSwap(false, true) {
		if s.onCancel != nil {
			s.onCancel()
		}
	}
}

// IsCancelled 检查是否已取消
func (s *subscriptionImpl) IsCancelled() bool {
	return s.cancelled.Load()
}

// emptySubscription 不产生任何数据的订阅，用于立即终止的场景
type emptySubscription struct{}

func (emptySubscription) Request(n int64) {}
func (emptySubscription) Cancel()         {}
func (emptySubscription) IsCancelled() bool {
	return false
}

// completeImmediately 订阅后立即完成
func completeImmediately(subscriber Subscriber) {
	subscriber.OnSubscribe(emptySubscription{})
	subscriber.OnComplete()
}

// errorImmediately 订阅后立即发出错误
func errorImmediately(subscriber Subscriber, err error) {
	subscriber.OnSubscribe(emptySubscription{})
	subscriber.OnError(err)
}

// ============================================================================
// 一次性订阅引用
// ============================================================================

// subscriptionRef 包装上游订阅，便于原子替换
type subscriptionRef struct {
	s FlowableSubscription
}

// cancelledRef 已取消的哨兵
var cancelledRef = &subscriptionRef{}

// setOnce 仅在引用为空时设置订阅；已取消时立即取消新订阅，重复设置视为协议违规
func setOnce(ref *atomic.Pointer[subscriptionRef], s FlowableSubscription) bool {
	if ref.CompareAndSwap(nil, &subscriptionRef{s: s}) {
		return true
	}
	s.Cancel()
	if ref.Load() != cancelledRef {
		reportProtocolViolation(ErrDuplicateSubscription)
	}
	return false
}

// terminateRef 把引用置为已取消并取消原订阅，可重复调用
func terminateRef(ref *atomic.Pointer[subscriptionRef]) bool {
	old := ref.Swap(cancelledRef)
	if old == cancelledRef {
		return false
	}
	if old != nil {
		old.s.Cancel()
	}
	return true
}

// requestRef 向当前订阅请求数据
func requestRef(ref *atomic.Pointer[subscriptionRef], n int64) {
	if cur := ref.Load(); cur != nil && cur != cancelledRef {
		cur.s.Request(n)
	}
}

// ============================================================================
// deferredSubscription 延迟订阅
// ============================================================================

// deferredSubscription 在上游订阅到达之前累积请求，到达后一次性转发
type deferredSubscription struct {
	ref     atomic.Pointer[subscriptionRef]
	pending atomic.Int64
}

// set 设置上游订阅并补发累积的请求
func (d *deferredSubscription) set(s FlowableSubscription) bool {
	if !setOnce(&d.ref, s) {
		return false
	}
	if r := d.pending.Swap(0); r != 0 {
		s.Request(r)
	}
	return true
}

// Request 请求指定数量的数据项
func (d *deferredSubscription) Request(n int64) {
	if !validateRequest(n) {
		return
	}
	if cur := d.ref.Load(); cur != nil {
		if cur != cancelledRef {
			cur.s.Request(n)
		}
		return
	}
	getAndAddCap(&d.pending, n)
	// 上游可能在累积期间到达
	if cur := d.ref.Load(); cur != nil && cur != cancelledRef {
		if r := d.pending.Swap(0); r != 0 {
			cur.s.Request(r)
		}
	}
}

// Cancel 取消订阅
func (d *deferredSubscription) Cancel() {
	terminateRef(&d.ref)
}

// IsCancelled 检查是否已取消
func (d *deferredSubscription) IsCancelled() bool {
	return d.ref.Load() == cancelledRef
}
