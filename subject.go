// Processor implementations for rxzip
// 单订阅者的热源，内部无界队列可以被下游以异步融合方式直接拉取
package rxzip

import (
	"sync/atomic"
)

// ============================================================================
// UnicastProcessor - 单播处理器
// ============================================================================

type subscriberRef struct {
	s Subscriber
}

// UnicastProcessor 缓存生产者推送的值直到唯一的订阅者请求；生产端调用需要串行
type UnicastProcessor struct {
	*flowableImpl

	queue       *LinkedQueue
	actual      atomic.Pointer[subscriberRef]
	once        atomic.Bool
	wip         atomic.Int32
	requested   atomic.Int64
	done        atomic.Bool
	err         error
	cancelled   atomic.Bool
	outputFused atomic.Bool
}

// NewUnicastProcessor 创建新的单播处理器
func NewUnicastProcessor() *UnicastProcessor {
	p := &UnicastProcessor{
		queue: NewLinkedQueue(),
	}
	p.flowableImpl = newFlowableImpl(p.subscribeActual, nil)
	p.flowableImpl.self = p
	return p
}

// OnNext 发送下一个值
func (p *UnicastProcessor) OnNext(value interface{}) {
	if p.done.Load() || p.cancelled.Load() {
		reportNextDropped(value)
		return
	}
	p.queue.Offer(CreateItem(value))
	p.drain()
}

// OnError 发送错误
func (p *UnicastProcessor) OnError(err error) {
	if p.done.Load() || p.cancelled.Load() {
		reportErrorDropped(err)
		return
	}
	p.err = err
	p.done.Store(true)
	p.drain()
}

// OnComplete 发送完成信号
func (p *UnicastProcessor) OnComplete() {
	if p.done.Load() || p.cancelled.Load() {
		return
	}
	p.done.Store(true)
	p.drain()
}

// HasSubscriber 检查是否有订阅者
func (p *UnicastProcessor) HasSubscriber() bool {
	return p.actual.Load() != nil
}

// Pending 返回尚未被消费的数量
func (p *UnicastProcessor) Pending() int {
	return p.queue.Size()
}

func (p *UnicastProcessor) subscribeActual(subscriber Subscriber) {
	if !p.once.CompareAndSwap(false, true) {
		errorImmediately(subscriber, ErrSingleSubscriber)
		return
	}

	subscriber.OnSubscribe(&unicastSubscription{p: p})
	p.actual.Store(&subscriberRef{s: subscriber})
	if p.cancelled.Load() {
		p.actual.Store(nil)
		return
	}
	p.drain()
}

func (p *UnicastProcessor) drain() {
	if p.wip.Add(1) != 1 {
		return
	}

	missed := int32(1)
	for {
		if ref := p.actual.Load(); ref != nil {
			if p.outputFused.Load() {
				p.drainFused(ref.s)
			} else {
				p.drainRegular(ref.s)
			}
			return
		}

		missed = p.wip.Add(-missed)
		if missed == 0 {
			return
		}
	}
}

// drainFused 融合模式下只发送信号，数据由下游通过Poll拉取
func (p *UnicastProcessor) drainFused(a Subscriber) {
	missed := int32(1)
	for {
		if p.cancelled.Load() {
			p.actual.Store(nil)
			return
		}

		d := p.done.Load()
		a.OnNext(Item{})

		if d {
			p.actual.Store(nil)
			if p.err != nil {
				a.OnError(p.err)
			} else {
				a.OnComplete()
			}
			return
		}

		missed = p.wip.Add(-missed)
		if missed == 0 {
			return
		}
	}
}

func (p *UnicastProcessor) drainRegular(a Subscriber) {
	missed := int32(1)
	for {
		r := p.requested.Load()
		e := int64(0)

		for r != e {
			d := p.done.Load()
			item, ok := p.queue.Poll()
			if p.checkTerminated(d, !ok, a) {
				return
			}
			if !ok {
				break
			}
			a.OnNext(item)
			e++
		}

		if r == e && p.checkTerminated(p.done.Load(), p.queue.IsEmpty(), a) {
			return
		}

		if e != 0 {
			produced(&p.requested, e)
		}

		missed = p.wip.Add(-missed)
		if missed == 0 {
			return
		}
	}
}

func (p *UnicastProcessor) checkTerminated(d, empty bool, a Subscriber) bool {
	if p.cancelled.Load() {
		p.queue.Clear()
		p.actual.Store(nil)
		return true
	}
	if d && empty {
		p.actual.Store(nil)
		if p.err != nil {
			a.OnError(p.err)
		} else {
			a.OnComplete()
		}
		return true
	}
	return false
}

// ============================================================================
// unicastSubscription 交给下游的QueueSubscription
// ============================================================================

type unicastSubscription struct {
	p *UnicastProcessor
}

func (s *unicastSubscription) Request(n int64) {
	if !validateRequest(n) {
		return
	}
	getAndAddCap(&s.p.requested, n)
	s.p.drain()
}

func (s *unicastSubscription) Cancel() {
	p := s.p
	if !p.cancelled.CompareAndSwap(false, true) {
		return
	}
	if !p.outputFused.Load() && p.wip.Add(1) == 1 {
		p.queue.Clear()
		p.actual.Store(nil)
	}
}

func (s *unicastSubscription) IsCancelled() bool {
	return s.p.cancelled.Load()
}

// RequestFusion 只支持异步融合
func (s *unicastSubscription) RequestFusion(mode int) int {
	if mode&FusionAsync != 0 {
		s.p.outputFused.Store(true)
		return FusionAsync
	}
	return FusionNone
}

func (s *unicastSubscription) Poll() (Item, bool) {
	return s.p.queue.Poll()
}

func (s *unicastSubscription) IsEmpty() bool {
	return s.p.queue.IsEmpty()
}

func (s *unicastSubscription) Size() int {
	return s.p.queue.Size()
}

func (s *unicastSubscription) Clear() {
	s.p.queue.Clear()
}
