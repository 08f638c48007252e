package rxzip

import (
	"sync/atomic"
)

// ============================================================================
// Assembly-Time优化系统
// 订阅时即可同步求值的源，组合操作符可以绕过缓冲直接取值
// ============================================================================

// ScalarCallable 标量可调用接口
// 表示一个在订阅时即可同步得到结果的源：单个值(ok)、没有值(!ok)或错误
type ScalarCallable interface {
	// Call 获取标量值
	Call() (value interface{}, ok bool, err error)
}

// ============================================================================
// 标量Flowable实现
// ============================================================================

// scalarFlowable 标量Flowable实现
type scalarFlowable struct {
	*flowableImpl
	call func() (interface{}, bool, error)
}

// newScalarFlowable 创建标量Flowable
func newScalarFlowable(call func() (interface{}, bool, error)) Flowable {
	s := &scalarFlowable{call: call}
	s.flowableImpl = newFlowableImpl(s.subscribeActual, nil)
	s.flowableImpl.self = s
	return s
}

func (s *scalarFlowable) Call() (interface{}, bool, error) {
	return s.call()
}

func (s *scalarFlowable) subscribeActual(subscriber Subscriber) {
	value, ok, err := callScalar(s)
	if err != nil {
		errorImmediately(subscriber, err)
		return
	}
	if !ok {
		completeImmediately(subscriber)
		return
	}
	subscriber.OnSubscribe(&scalarSubscription{
		actual: subscriber,
		value:  value,
	})
}

// FlowableEmpty 创建一个空的Flowable，立即完成
func FlowableEmpty() Flowable {
	return newScalarFlowable(func() (interface{}, bool, error) {
		return nil, false, nil
	})
}

// FlowableError 创建一个立即发射错误的Flowable
func FlowableError(err error) Flowable {
	return newScalarFlowable(func() (interface{}, bool, error) {
		return nil, false, err
	})
}

// FlowableFromCallable 订阅时调用fn，返回nil表示没有值
func FlowableFromCallable(fn func() (interface{}, error)) Flowable {
	return newScalarFlowable(func() (interface{}, bool, error) {
		v, err := fn()
		if err != nil {
			return nil, false, err
		}
		return v, v != nil, nil
	})
}

// justScalar 发射单个值的标量源，nil也是合法的值
func justScalar(value interface{}) Flowable {
	return newScalarFlowable(func() (interface{}, bool, error) {
		return value, true, nil
	})
}

// ============================================================================
// 标量订阅
// ============================================================================

// scalarSubscription 首次请求时发射唯一的值并完成
type scalarSubscription struct {
	actual    Subscriber
	value     interface{}
	once      atomic.Bool
	cancelled atomic.Bool
}

func (s *scalarSubscription) Request(n int64) {
	if !validateRequest(n) {
		return
	}
	if !s.once.CompareAndSwap(false, true) {
		return
	}
	if s.cancelled.Load() {
		return
	}
	s.actual.OnNext(CreateItem(s.value))
	if !s.cancelled.Load() {
		s.actual.OnComplete()
	}
}

func (s *scalarSubscription) Cancel() {
	s.cancelled.Store(true)
}

func (s *scalarSubscription) IsCancelled() bool {
	return s.cancelled.Load()
}
