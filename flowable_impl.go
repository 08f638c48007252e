// Flowable core implementation for rxzip
// Flowable核心实现，支持背压处理的响应式数据流
package rxzip

import (
	"context"
	"sync"
	"sync/atomic"
)

// ============================================================================
// Flowable 核心实现
// ============================================================================

// flowableImpl Flowable的核心实现
type flowableImpl struct {
	source func(subscriber Subscriber)
	config *Config
	// self 外层包装（标量源、zip源），作为Publisher传给组合操作符时保留其能力
	self Flowable
}

// NewFlowable 创建新的Flowable
func NewFlowable(source func(subscriber Subscriber), options ...Option) Flowable {
	return newFlowableImpl(source, options)
}

func newFlowableImpl(source func(subscriber Subscriber), options []Option) *flowableImpl {
	f := &flowableImpl{
		source: source,
		config: newConfig(options),
	}
	f.self = f
	return f
}

// Subscribe 订阅Subscriber
func (f *flowableImpl) Subscribe(subscriber Subscriber) {
	if subscriber == nil {
		reportProtocolViolation(ErrNullSource)
		return
	}

	if ctx := f.config.Context; ctx != nil && ctx.Done() != nil {
		subscriber = &contextSubscriber{
			delegate: subscriber,
			ctx:      ctx,
		}
	}

	f.source(subscriber)
}

// SubscribeWithCallbacks 使用回调函数订阅
func (f *flowableImpl) SubscribeWithCallbacks(onNext OnNext, onError OnError, onComplete OnComplete) FlowableSubscription {
	subscription := &deferredSubscription{}

	f.Subscribe(&callbackSubscriber{
		subscription: subscription,
		onNext:       onNext,
		onError:      onError,
		onComplete:   onComplete,
	})

	return subscription
}

// SubscribeOn 指定订阅操作运行的调度器，上游的融合能力对下游隐藏
func (f *flowableImpl) SubscribeOn(scheduler Scheduler) Flowable {
	return NewFlowable(func(subscriber Subscriber) {
		scheduler.Schedule(func() {
			f.Subscribe(&hidingSubscriber{Subscriber: subscriber})
		})
	})
}

// ZipWith 与另一个源逐项组合
func (f *flowableImpl) ZipWith(other Publisher, zipper BiZipper, options ...Option) Flowable {
	return Zip2(f.self, other, zipper, options...)
}

// BlockingToSlice 阻塞收集全部数据项
func (f *flowableImpl) BlockingToSlice(ctx context.Context) ([]interface{}, error) {
	var (
		mu    sync.Mutex
		items []interface{}
		err   error
		once  sync.Once
	)
	done := make(chan struct{})
	finish := func() { once.Do(func() { close(done) }) }

	subscription := f.SubscribeWithCallbacks(
		func(value interface{}) {
			mu.Lock()
			items = append(items, value)
			mu.Unlock()
		},
		func(e error) {
			mu.Lock()
			err = e
			mu.Unlock()
			finish()
		},
		finish,
	)
	subscription.Request(Unbounded)

	select {
	case <-done:
	case <-ctx.Done():
		subscription.Cancel()
		return nil, ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	result := make([]interface{}, len(items))
	copy(result, items)
	return result, err
}

// BlockingFirst 阻塞获取第一个数据项
func (f *flowableImpl) BlockingFirst(ctx context.Context) (interface{}, error) {
	var (
		mu     sync.Mutex
		result interface{}
		err    error
		once   sync.Once
	)
	done := make(chan struct{})

	subscription := f.SubscribeWithCallbacks(
		func(value interface{}) {
			once.Do(func() {
				mu.Lock()
				result = value
				mu.Unlock()
				close(done)
			})
		},
		func(e error) {
			once.Do(func() {
				mu.Lock()
				err = e
				mu.Unlock()
				close(done)
			})
		},
		func() {
			once.Do(func() {
				mu.Lock()
				err = ErrEmpty
				mu.Unlock()
				close(done)
			})
		},
	)
	subscription.Request(1)

	select {
	case <-done:
	case <-ctx.Done():
		subscription.Cancel()
		return nil, ctx.Err()
	}
	subscription.Cancel()

	mu.Lock()
	defer mu.Unlock()
	return result, err
}

// ============================================================================
// 辅助结构体
// ============================================================================

// contextSubscriber 带上下文的订阅者包装器，上下文结束时取消上游并丢弃后续信号
type contextSubscriber struct {
	delegate Subscriber
	ctx      context.Context
	stop     func() bool
}

func (cs *contextSubscriber) OnSubscribe(subscription FlowableSubscription) {
	cs.stop = context.AfterFunc(cs.ctx, subscription.Cancel)
	cs.delegate.OnSubscribe(subscription)
}

func (cs *contextSubscriber) OnNext(item Item) {
	if cs.ctx.Err() != nil {
		reportNextDropped(item.Value)
		return
	}
	cs.delegate.OnNext(item)
}

func (cs *contextSubscriber) OnError(err error) {
	cs.release()
	if cs.ctx.Err() != nil {
		reportErrorDropped(err)
		return
	}
	cs.delegate.OnError(err)
}

func (cs *contextSubscriber) OnComplete() {
	cs.release()
	if cs.ctx.Err() != nil {
		return
	}
	cs.delegate.OnComplete()
}

func (cs *contextSubscriber) release() {
	if cs.stop != nil {
		cs.stop()
	}
}

// hidingSubscriber 只把普通的FlowableSubscription交给下游
type hidingSubscriber struct {
	Subscriber
}

func (h *hidingSubscriber) OnSubscribe(subscription FlowableSubscription) {
	h.Subscriber.OnSubscribe(hiddenSubscription{subscription})
}

type hiddenSubscription struct {
	FlowableSubscription
}

// callbackSubscriber 回调订阅者
type callbackSubscriber struct {
	subscription *deferredSubscription
	onNext       OnNext
	onError      OnError
	onComplete   OnComplete
	done         atomic.Bool
}

func (cs *callbackSubscriber) OnSubscribe(subscription FlowableSubscription) {
	cs.subscription.set(subscription)
}

func (cs *callbackSubscriber) OnNext(item Item) {
	if cs.done.Load() {
		reportNextDropped(item.Value)
		return
	}
	if item.IsError() {
		cs.subscription.Cancel()
		cs.OnError(item.Error)
		return
	}
	if cs.onNext != nil {
		cs.onNext(item.Value)
	}
}

func (cs *callbackSubscriber) OnError(err error) {
	if !cs.done.CompareAndSwap(false, true) {
		reportErrorDropped(err)
		return
	}
	if cs.onError != nil {
		cs.onError(err)
	}
}

func (cs *callbackSubscriber) OnComplete() {
	if !cs.done.CompareAndSwap(false, true) {
		return
	}
	if cs.onComplete != nil {
		cs.onComplete()
	}
}
