// Scalar fast path for rxzip
// 标量快速路径：部分源在订阅时即可求值，其余源只取第一个值，不需要缓冲和drain循环
package rxzip

import (
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ============================================================================
// deferredScalarSubscription - 延迟的单值订阅
// ============================================================================

// 单值订阅的状态
const (
	scalarNoRequestNoValue int32 = iota
	scalarNoRequestHasValue
	scalarHasRequestNoValue
	scalarDone
	scalarCancelled
)

// deferredScalarSubscription 值和请求可能以任意顺序到达，两者都到达后才发射
type deferredScalarSubscription struct {
	actual Subscriber
	state  atomic.Int32
	value  atomic.Pointer[zipSlot] // 已到达但尚未发射的值
}

// Request 任意正数请求都足够发射唯一的值
func (d *deferredScalarSubscription) Request(n int64) {
	if !validateRequest(n) {
		return
	}
	for {
		switch st := d.state.Load(); st {
		case scalarNoRequestNoValue:
			if d.state.CompareAndSwap(st, scalarHasRequestNoValue) {
				return
			}
		case scalarNoRequestHasValue:
			if d.state.CompareAndSwap(st, scalarDone) {
				var v interface{}
				if slot := d.value.Swap(nil); slot != nil {
					v = slot.value
				}
				d.actual.OnNext(CreateItem(v))
				d.actual.OnComplete()
			}
			return
		default:
			return
		}
	}
}

// Cancel 取消订阅
func (d *deferredScalarSubscription) Cancel() {
	d.cancel()
}

// IsCancelled 检查是否已取消
func (d *deferredScalarSubscription) IsCancelled() bool {
	return d.state.Load() == scalarCancelled
}

// cancel 返回是否由本次调用完成取消
func (d *deferredScalarSubscription) cancel() bool {
	for {
		st := d.state.Load()
		if st == scalarDone || st == scalarCancelled {
			return false
		}
		if d.state.CompareAndSwap(st, scalarCancelled) {
			d.value.Store(nil)
			return true
		}
	}
}

// complete 交付唯一的值；尚无请求时暂存，返回值是否被接受
func (d *deferredScalarSubscription) complete(v interface{}) bool {
	for {
		switch st := d.state.Load(); st {
		case scalarHasRequestNoValue:
			if d.state.CompareAndSwap(st, scalarDone) {
				d.actual.OnNext(CreateItem(v))
				d.actual.OnComplete()
				return true
			}
		case scalarNoRequestNoValue:
			d.value.Store(&zipSlot{value: v, present: true})
			if d.state.CompareAndSwap(st, scalarNoRequestHasValue) {
				return true
			}
		case scalarCancelled:
			d.value.Store(nil)
			return false
		default:
			return false
		}
	}
}

// completeEmpty 没有值直接完成
func (d *deferredScalarSubscription) completeEmpty() bool {
	if !d.terminate() {
		return false
	}
	d.actual.OnComplete()
	return true
}

// fail 交付错误，已终止时返回false
func (d *deferredScalarSubscription) fail(err error) bool {
	if !d.terminate() {
		return false
	}
	d.actual.OnError(err)
	return true
}

// terminate 尚未持有值时转为终止状态
func (d *deferredScalarSubscription) terminate() bool {
	for {
		st := d.state.Load()
		if st != scalarNoRequestNoValue && st != scalarHasRequestNoValue {
			return false
		}
		if d.state.CompareAndSwap(st, scalarDone) {
			return true
		}
	}
}

// ============================================================================
// zipSingleCoordinator - 标量快速路径协调器
// ============================================================================

// zipSingleCoordinator 标量值预先放入槽位，其余每条rail只等第一个值
type zipSingleCoordinator struct {
	deferredScalarSubscription

	id          uuid.UUID
	zipper      Zipper
	slots       []zipSlot
	subscribers []*zipSingleSubscriber // 标量位置为nil
	pending     atomic.Int32           // 0表示已终止
	failure     atomic.Pointer[errorRef]

	logger  *zap.Logger
	metrics *Metrics
}

func newZipSingleCoordinator(actual Subscriber, slots []zipSlot, scalars int, zipper Zipper, config *Config) *zipSingleCoordinator {
	c := &zipSingleCoordinator{
		id:          uuid.New(),
		zipper:      zipper,
		slots:       slots,
		subscribers: make([]*zipSingleSubscriber, len(slots)),
		metrics:     config.Metrics,
	}
	c.actual = actual
	c.logger = config.logger().With(zap.Stringer("zip", c.id))
	c.pending.Store(int32(len(slots) - scalars))
	for i := range slots {
		if !slots[i].present {
			c.subscribers[i] = &zipSingleSubscriber{parent: c, index: i}
		}
	}
	return c
}

// subscribe 只订阅非标量源
func (c *zipSingleCoordinator) subscribe(sources []Publisher) {
	c.logger.Debug("zip订阅", zap.Int("rails", len(sources)), zap.String("path", string(PathMixedScalar)))
	for i, source := range sources {
		s := c.subscribers[i]
		if s == nil {
			continue
		}
		if c.pending.Load() <= 0 || c.IsCancelled() {
			return
		}
		source.Subscribe(s)
	}
}

// Cancel 取消所有未完成的rail
func (c *zipSingleCoordinator) Cancel() {
	if !c.cancel() {
		return
	}
	c.pending.Store(0)
	c.cancelAll()
	c.metrics.observeTermination(outcomeCancel)
	c.logger.Debug("zip已取消")
}

// next 第i条rail的第一个值；最后一个到达的值触发组合
func (c *zipSingleCoordinator) next(index int, value interface{}) {
	c.slots[index] = zipSlot{value: value, present: true}
	if c.pending.Add(-1) != 0 {
		return
	}

	values := make([]interface{}, len(c.slots))
	for i := range c.slots {
		values[i] = c.slots[i].value
	}
	result, err := callZipper(c.zipper, values)
	if err != nil {
		c.failure.Store(&errorRef{err: err})
		if c.fail(err) {
			c.metrics.observeTermination(outcomeError)
			c.logger.Debug("zip失败", zap.Error(err))
		} else {
			c.dropError(err)
		}
		return
	}
	if c.complete(result) {
		c.metrics.observeRounds(1)
		c.metrics.observeTermination(outcomeComplete)
		c.logger.Debug("zip完成")
	}
}

// railError 任意rail失败时取消其余rail，只交付一次
func (c *zipSingleCoordinator) railError(index int, err error) {
	err = &RailError{Index: index, Err: err}
	if c.pending.Swap(0) <= 0 {
		c.dropError(err)
		return
	}
	c.failure.Store(&errorRef{err: err})
	c.cancelAll()
	if c.fail(err) {
		c.metrics.observeTermination(outcomeError)
		c.logger.Debug("zip失败", zap.Error(err))
	} else {
		c.dropError(err)
	}
}

// completeEmptyRail 某条rail没有值就完成，整个序列短路完成
func (c *zipSingleCoordinator) completeEmptyRail() {
	if c.pending.Swap(0) <= 0 {
		return
	}
	c.cancelAll()
	if c.completeEmpty() {
		c.metrics.observeTermination(outcomeComplete)
		c.logger.Debug("zip完成", zap.Bool("empty", true))
	}
}

func (c *zipSingleCoordinator) dropError(err error) {
	c.metrics.observeDroppedError()
	reportErrorDropped(err)
}

func (c *zipSingleCoordinator) cancelAll() {
	for _, s := range c.subscribers {
		if s != nil {
			s.cancel()
		}
	}
}

// Snapshot 返回协调器状态
func (c *zipSingleCoordinator) Snapshot() CoordinatorSnapshot {
	st := c.state.Load()
	s := CoordinatorSnapshot{
		ID:         c.id,
		Path:       PathMixedScalar,
		Rails:      len(c.slots),
		Pending:    int(max(c.pending.Load(), 0)),
		Cancelled:  st == scalarCancelled,
		Terminated: st == scalarDone || st == scalarCancelled,
		RailStates: make([]RailSnapshot, len(c.slots)),
	}
	if st == scalarHasRequestNoValue || st == scalarDone {
		s.Requested = 1
	}
	if ref := c.failure.Load(); ref != nil {
		s.Error = ref.err
	}
	for i, sub := range c.subscribers {
		if sub == nil {
			s.RailStates[i] = RailSnapshot{Index: i, Mode: railModeScalar, Done: true}
			continue
		}
		s.RailStates[i] = RailSnapshot{
			Index:     i,
			Mode:      railModeSingle,
			Done:      sub.done.Load(),
			Prefetch:  Unbounded,
			Limit:     Unbounded,
			Cancelled: sub.ref.Load() == cancelledRef,
		}
	}
	return s
}

// ============================================================================
// zipSingleSubscriber - 只取第一个值的rail
// ============================================================================

type zipSingleSubscriber struct {
	parent *zipSingleCoordinator
	index  int
	ref    atomic.Pointer[subscriptionRef]
	done   atomic.Bool
}

func (s *zipSingleSubscriber) OnSubscribe(subscription FlowableSubscription) {
	if subscription == nil {
		s.OnError(ErrNullSource)
		return
	}
	if setOnce(&s.ref, subscription) {
		subscription.Request(Unbounded)
	}
}

func (s *zipSingleSubscriber) OnNext(item Item) {
	if item.IsError() {
		s.OnError(item.Error)
		return
	}
	if !s.done.CompareAndSwap(false, true) {
		reportNextDropped(item.Value)
		return
	}
	s.cancel()
	s.parent.next(s.index, item.Value)
}

func (s *zipSingleSubscriber) OnError(err error) {
	if !s.done.CompareAndSwap(false, true) {
		s.parent.dropError(err)
		return
	}
	s.parent.railError(s.index, err)
}

func (s *zipSingleSubscriber) OnComplete() {
	if !s.done.CompareAndSwap(false, true) {
		return
	}
	s.parent.completeEmptyRail()
}

func (s *zipSingleSubscriber) cancel() {
	terminateRef(&s.ref)
}
