// Flowable factory functions for rxzip
// Flowable工厂函数，提供各种创建Flowable的方法
package rxzip

import (
	"context"
	"sync/atomic"
)

// ============================================================================
// 基础工厂函数
// ============================================================================

// FlowableJust 从给定的值创建Flowable；单个值时是标量源
func FlowableJust(values ...interface{}) Flowable {
	switch len(values) {
	case 0:
		return FlowableEmpty()
	case 1:
		return justScalar(values[0])
	}
	copied := make([]interface{}, len(values))
	copy(copied, values)
	return FlowableFromSlice(copied)
}

// FlowableFromSlice 从切片创建Flowable，支持同步融合
func FlowableFromSlice(slice []interface{}) Flowable {
	return newArrayFlowable(len(slice), func(i int) interface{} {
		return slice[i]
	})
}

// FlowableRange 创建发射指定范围整数的Flowable，支持同步融合
func FlowableRange(start int, count int) Flowable {
	if count <= 0 {
		return FlowableEmpty()
	}
	return newArrayFlowable(count, func(i int) interface{} {
		return start + i
	})
}

// FlowableNever 创建一个永不发射任何值的Flowable
func FlowableNever() Flowable {
	return NewFlowable(func(subscriber Subscriber) {
		subscriber.OnSubscribe(NewFlowableSubscription(nil, nil))
	})
}

func newArrayFlowable(count int, get func(i int) interface{}) Flowable {
	if count == 0 {
		return FlowableEmpty()
	}
	return NewFlowable(func(subscriber Subscriber) {
		subscriber.OnSubscribe(&arraySubscription{
			actual: subscriber,
			count:  int64(count),
			get:    get,
		})
	})
}

// ============================================================================
// 数组订阅 - 支持同步融合
// ============================================================================

// arraySubscription 按请求量发射，或在同步融合模式下由下游直接拉取
type arraySubscription struct {
	actual    Subscriber
	count     int64
	get       func(i int) interface{}
	index     atomic.Int64
	requested atomic.Int64
	cancelled atomic.Bool
}

// Request 请求指定数量的数据项，发射在调用方goroutine上进行
func (s *arraySubscription) Request(n int64) {
	if !validateRequest(n) {
		return
	}
	if getAndAddCap(&s.requested, n) == 0 {
		s.emit(n)
	}
}

// emit 只有把需求从0变为正数的调用方进入，直到需求耗尽
func (s *arraySubscription) emit(r int64) {
	e := int64(0)
	i := s.index.Load()
	for {
		for e != r && i != s.count {
			if s.cancelled.Load() {
				return
			}
			s.index.Store(i + 1)
			s.actual.OnNext(CreateItem(s.get(int(i))))
			i++
			e++
		}

		if i == s.count {
			if !s.cancelled.Load() {
				s.actual.OnComplete()
			}
			return
		}

		r = s.requested.Load()
		if r == e {
			r = s.requested.Add(-e)
			if r == 0 {
				return
			}
			e = 0
		}
	}
}

func (s *arraySubscription) Cancel() {
	s.cancelled.Store(true)
}

func (s *arraySubscription) IsCancelled() bool {
	return s.cancelled.Load()
}

// RequestFusion 数据已全部就绪，只支持同步融合
func (s *arraySubscription) RequestFusion(mode int) int {
	if mode&FusionSync != 0 {
		return FusionSync
	}
	return FusionNone
}

func (s *arraySubscription) Poll() (Item, bool) {
	i := s.index.Load()
	if i >= s.count {
		return Item{}, false
	}
	s.index.Store(i + 1)
	return CreateItem(s.get(int(i))), true
}

func (s *arraySubscription) IsEmpty() bool {
	return s.index.Load() >= s.count
}

func (s *arraySubscription) Size() int {
	return int(s.count - s.index.Load())
}

func (s *arraySubscription) Clear() {
	s.index.Store(s.count)
}

// ============================================================================
// 从channel创建
// ============================================================================

// FlowableFromChannel 从Go channel创建Flowable，只在有需求时读取channel
func FlowableFromChannel(ch <-chan interface{}) Flowable {
	return fromChannel(func(ctx context.Context) (Item, bool) {
		select {
		case <-ctx.Done():
			return Item{}, false
		case v, ok := <-ch:
			if !ok {
				return Item{}, false
			}
			return CreateItem(v), true
		}
	})
}

// FlowableFromItemChannel 从Item channel创建Flowable，带Error的Item终止流
func FlowableFromItemChannel(ch <-chan Item) Flowable {
	return fromChannel(func(ctx context.Context) (Item, bool) {
		select {
		case <-ctx.Done():
			return Item{}, false
		case item, ok := <-ch:
			return item, ok
		}
	})
}

// fromChannel 每个订阅启动一个读取goroutine，按需求计数读取
func fromChannel(receive func(ctx context.Context) (Item, bool)) Flowable {
	return NewFlowable(func(subscriber Subscriber) {
		ctx, cancel := context.WithCancel(context.Background())
		var requested atomic.Int64
		wake := make(chan struct{}, 1)

		subscription := NewFlowableSubscription(
			func(n int64) {
				getAndAddCap(&requested, n)
				select {
				case wake <- struct{}{}:
				default:
				}
			},
			cancel,
		)

		subscriber.OnSubscribe(subscription)

		go func() {
			defer cancel()
			for {
				for requested.Load() == 0 {
					select {
					case <-ctx.Done():
						return
					case <-wake:
					}
				}

				item, ok := receive(ctx)
				if ctx.Err() != nil {
					return
				}
				if !ok {
					subscriber.OnComplete()
					return
				}
				if item.IsError() {
					subscriber.OnError(item.Error)
					return
				}
				subscriber.OnNext(item)
				produced(&requested, 1)
			}
		}()
	})
}
