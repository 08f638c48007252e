// Zip rail for rxzip
// 每个源对应一条rail：协商融合模式、缓冲数据、按75%阈值批量补充请求
package rxzip

import (
	"sync/atomic"
)

// railQueue rail的缓冲视图；融合时是上游的队列，offer为nil
type railQueue struct {
	PollableQueue
	offer Queue
}

// zipRail 订阅一个上游源的内部订阅者
type zipRail struct {
	parent   *zipCoordinator
	index    int
	prefetch int64
	limit    int64

	ref      atomic.Pointer[subscriptionRef]
	queue    atomic.Pointer[railQueue]
	done     atomic.Bool
	mode     atomic.Int32
	produced atomic.Int64 // 只由drain写入
	once     atomic.Bool
}

func newZipRail(parent *zipCoordinator, index int, prefetch int64) *zipRail {
	return &zipRail{
		parent:   parent,
		index:    index,
		prefetch: prefetch,
		limit:    railLimit(prefetch),
	}
}

// railLimit 补充阈值为预取量的75%，无界预取不再补充
func railLimit(prefetch int64) int64 {
	if prefetch == Unbounded {
		return Unbounded
	}
	return prefetch - prefetch>>2
}

func (r *zipRail) OnSubscribe(subscription FlowableSubscription) {
	if subscription == nil {
		r.parent.onError(&RailError{Index: r.index, Err: ErrNullSource})
		return
	}
	if !setOnce(&r.ref, subscription) {
		return
	}

	if qs, ok := subscription.(QueueSubscription); ok {
		switch qs.RequestFusion(FusionAny) {
		case FusionSync:
			r.mode.Store(FusionSync)
			r.queue.Store(&railQueue{PollableQueue: qs})
			r.done.Store(true)
			r.parent.metrics.observeRailMode(FusionSync)
			r.parent.drain()
			return
		case FusionAsync:
			r.mode.Store(FusionAsync)
			r.queue.Store(&railQueue{PollableQueue: qs})
			r.parent.metrics.observeRailMode(FusionAsync)
			subscription.Request(r.prefetch)
			return
		}
	}

	q, err := r.parent.supplier()
	if err == nil && q == nil {
		err = ErrNullSource
	}
	if err != nil {
		terminateRef(&r.ref)
		r.parent.onError(&BufferAllocationError{Index: r.index, Err: err})
		return
	}
	r.queue.Store(&railQueue{PollableQueue: q, offer: q})
	r.parent.metrics.observeRailMode(FusionNone)
	subscription.Request(r.prefetch)
}

func (r *zipRail) OnNext(item Item) {
	if item.IsError() {
		r.OnError(item.Error)
		return
	}

	if r.ref.Load() == cancelledRef {
		reportNextDropped(item.Value)
		return
	}

	// 异步融合时数据已经在上游队列里，这里只是信号
	if r.mode.Load() != FusionAsync {
		q := r.queue.Load()
		if q == nil || q.offer == nil {
			reportProtocolViolation(ErrOverProduction)
			reportNextDropped(item.Value)
			return
		}
		if !q.offer.Offer(item) {
			reportProtocolViolation(&RailError{Index: r.index, Err: ErrBackpressureOverflow})
			reportNextDropped(item.Value)
			return
		}
	}
	r.parent.drain()
}

func (r *zipRail) OnError(err error) {
	if !r.once.CompareAndSwap(false, true) {
		r.parent.dropError(err)
		return
	}
	r.parent.onError(&RailError{Index: r.index, Err: err})
}

func (r *zipRail) OnComplete() {
	r.done.Store(true)
	r.parent.drain()
}

// requestMore drain每发射n轮调用一次，累计到阈值后才向上游请求
func (r *zipRail) requestMore(n int64) {
	if r.mode.Load() == FusionSync {
		return
	}
	p := addCap(r.produced.Load(), n)
	if p >= r.limit {
		r.produced.Store(0)
		requestRef(&r.ref, p)
		return
	}
	r.produced.Store(p)
}

func (r *zipRail) cancel() {
	terminateRef(&r.ref)
}

func (r *zipRail) isDone() bool {
	return r.done.Load()
}

func (r *zipRail) poll() (Item, bool) {
	q := r.queue.Load()
	if q == nil {
		return Item{}, false
	}
	return q.Poll()
}

func (r *zipRail) clear() {
	if q := r.queue.Load(); q != nil {
		q.Clear()
	}
}

func (r *zipRail) snapshot() RailSnapshot {
	s := RailSnapshot{
		Index:     r.index,
		Mode:      FusionModeName(int(r.mode.Load())),
		Done:      r.done.Load(),
		Produced:  r.produced.Load(),
		Limit:     r.limit,
		Prefetch:  r.prefetch,
		Cancelled: r.ref.Load() == cancelledRef,
	}
	if q := r.queue.Load(); q != nil {
		s.Pending = q.Size()
	}
	return s
}
