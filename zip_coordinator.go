// Zip coordinator for rxzip
// drain循环协调器：把每条rail的缓冲值与下游需求配对，组合后按轮次发射
package rxzip

import (
	"math"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// errorRef 错误槽中的值
type errorRef struct {
	err error
}

// terminatedErr 错误已交付或协调器已终止
var terminatedErr = &errorRef{}

// zipSlot 一轮中某条rail的值，present区分"尚未到达"与合法的nil
type zipSlot struct {
	value   interface{}
	present bool
}

// ============================================================================
// zipCoordinator - drain循环协调器
// ============================================================================

// zipCoordinator 交给下游的订阅，持有全部rail
type zipCoordinator struct {
	id       uuid.UUID
	actual   Subscriber
	rails    []*zipRail
	zipper   Zipper
	supplier QueueSupplier
	current  []zipSlot // 只在drain内访问

	wip        atomic.Int32
	requested  atomic.Int64
	err        atomic.Pointer[errorRef]
	cancelled  atomic.Bool
	terminated atomic.Bool

	logger  *zap.Logger
	metrics *Metrics
}

func newZipCoordinator(actual Subscriber, n int, zipper Zipper, config *Config) *zipCoordinator {
	c := &zipCoordinator{
		id:       uuid.New(),
		actual:   actual,
		rails:    make([]*zipRail, n),
		zipper:   zipper,
		supplier: config.queueSupplier(),
		current:  make([]zipSlot, n),
		metrics:  config.Metrics,
	}
	c.logger = config.logger().With(zap.Stringer("zip", c.id))

	prefetch := int64(config.Prefetch)
	if config.Prefetch == math.MaxInt {
		prefetch = Unbounded
	}
	for i := range c.rails {
		c.rails[i] = newZipRail(c, i, prefetch)
	}
	return c
}

// subscribe 按序订阅所有源，协调器已终止时停止
func (c *zipCoordinator) subscribe(sources []Publisher) {
	c.logger.Debug("zip订阅", zap.Int("rails", len(sources)), zap.String("path", string(PathDrain)))
	for i, source := range sources {
		if c.cancelled.Load() || c.terminated.Load() || c.err.Load() != nil {
			return
		}
		source.Subscribe(c.rails[i])
	}
}

// Request 请求指定数量的组合结果
func (c *zipCoordinator) Request(n int64) {
	if !validateRequest(n) {
		return
	}
	getAndAddCap(&c.requested, n)
	c.drain()
}

// Cancel 取消所有rail，可重复调用
func (c *zipCoordinator) Cancel() {
	if !c.cancelled.CompareAndSwap(false, true) {
		return
	}
	c.cancelAll()
	if ref := c.err.Swap(terminatedErr); ref != nil && ref != terminatedErr {
		c.dropError(ref.err)
	}
	if c.terminated.CompareAndSwap(false, true) {
		c.metrics.observeTermination(outcomeCancel)
		c.logger.Debug("zip已取消")
	}
	if c.wip.Add(1) == 1 {
		c.clearAll()
	}
}

// IsCancelled 检查是否已取消
func (c *zipCoordinator) IsCancelled() bool {
	return c.cancelled.Load()
}

// onError rail失败，第一个错误获胜
func (c *zipCoordinator) onError(err error) {
	if c.cancelled.Load() || !c.err.CompareAndSwap(nil, &errorRef{err: err}) {
		c.dropError(err)
		return
	}
	c.drain()
}

// dropError 终止后到达的错误交给钩子
func (c *zipCoordinator) dropError(err error) {
	c.metrics.observeDroppedError()
	reportErrorDropped(err)
}

// drain 只有把wip从0变为1的调用方进入，其余调用只登记一次遗漏
func (c *zipCoordinator) drain() {
	if c.wip.Add(1) != 1 {
		return
	}

	missed := int32(1)
	for {
		r := c.requested.Load()
		e := int64(0)

		for r != e {
			if c.cancelled.Load() {
				c.clearAll()
				return
			}
			if c.errorTerminated() {
				return
			}

			full, terminated := c.fill()
			if terminated {
				return
			}
			if !full {
				break
			}

			values := make([]interface{}, len(c.current))
			for j := range c.current {
				values[j] = c.current[j].value
			}
			v, err := callZipper(c.zipper, values)
			if err != nil {
				c.failInDrain(err)
				return
			}

			c.actual.OnNext(CreateItem(v))
			c.metrics.observeRounds(1)
			e++
			clear(c.current)
		}

		// 需求恰好耗尽时，某条rail可能已经完成且没有剩余数据
		if r == e {
			if c.cancelled.Load() {
				c.clearAll()
				return
			}
			if c.errorTerminated() {
				return
			}
			if _, terminated := c.fill(); terminated {
				return
			}
		}

		if e != 0 {
			for _, rail := range c.rails {
				rail.requestMore(e)
			}
			if r != Unbounded {
				c.requested.Add(-e)
			}
		}

		missed = c.wip.Add(-missed)
		if missed == 0 {
			return
		}
	}
}

// fill 为空槽位拉取数据；返回所有槽位是否就绪，以及协调器是否已因此终止
func (c *zipCoordinator) fill() (full bool, terminated bool) {
	full = true
	for j, rail := range c.rails {
		if c.current[j].present {
			continue
		}

		// 先读done再拉取，避免漏掉完成前最后到达的数据
		d := rail.isDone()
		item, ok := rail.poll()
		if ok && item.IsError() {
			c.failInDrain(&RailError{Index: j, Err: item.Error})
			return false, true
		}
		if d && !ok {
			c.complete()
			return false, true
		}
		if ok {
			c.current[j] = zipSlot{value: item.Value, present: true}
		} else {
			full = false
		}
	}
	return full, false
}

// failInDrain drain内部发现的错误，立即终止
func (c *zipCoordinator) failInDrain(err error) {
	if !c.err.CompareAndSwap(nil, &errorRef{err: err}) {
		c.dropError(err)
	}
	c.errorTerminated()
}

// errorTerminated 错误槽非空时终止并交付错误，返回drain是否应停止
func (c *zipCoordinator) errorTerminated() bool {
	if c.err.Load() == nil {
		return false
	}
	ref := c.err.Swap(terminatedErr)
	if ref == nil || ref == terminatedErr {
		return true
	}

	c.cancelAll()
	c.clearAll()
	if c.terminated.CompareAndSwap(false, true) {
		c.metrics.observeTermination(outcomeError)
	}
	c.logger.Debug("zip失败", zap.Error(ref.err))
	c.actual.OnError(ref.err)
	return true
}

// complete 某条rail完成且没有剩余数据，整个序列完成；此前登记的错误优先交付
func (c *zipCoordinator) complete() {
	ref := c.err.Swap(terminatedErr)

	c.cancelAll()
	c.clearAll()
	if !c.terminated.CompareAndSwap(false, true) {
		return
	}

	if ref != nil && ref != terminatedErr {
		c.metrics.observeTermination(outcomeError)
		c.logger.Debug("zip失败", zap.Error(ref.err))
		c.actual.OnError(ref.err)
		return
	}
	c.metrics.observeTermination(outcomeComplete)
	c.logger.Debug("zip完成")
	c.actual.OnComplete()
}

func (c *zipCoordinator) cancelAll() {
	for _, rail := range c.rails {
		rail.cancel()
	}
}

// clearAll 丢弃缓冲区和槽位，只能在持有drain时调用
func (c *zipCoordinator) clearAll() {
	for _, rail := range c.rails {
		rail.clear()
	}
	clear(c.current)
}

// Snapshot 返回协调器状态
func (c *zipCoordinator) Snapshot() CoordinatorSnapshot {
	s := CoordinatorSnapshot{
		ID:         c.id,
		Path:       PathDrain,
		Rails:      len(c.rails),
		Requested:  c.requested.Load(),
		Cancelled:  c.cancelled.Load(),
		Terminated: c.terminated.Load(),
		RailStates: make([]RailSnapshot, len(c.rails)),
	}
	if ref := c.err.Load(); ref != nil && ref != terminatedErr {
		s.Error = ref.err
	}
	for i, rail := range c.rails {
		s.RailStates[i] = rail.snapshot()
		s.Pending += s.RailStates[i].Pending
	}
	return s
}
