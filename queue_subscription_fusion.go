package rxzip

import (
	"fmt"
	"sync/atomic"
)

// ============================================================================
// QueueSubscription融合协议
// 上游可以把自己的内部队列交给下游直接拉取，省去下游自己的缓冲
// ============================================================================

// 融合模式常量
const (
	// FusionNone 不支持融合
	FusionNone = 0
	// FusionSync 同步融合 - 上游数据已全部就绪，下游直接拉取，无需请求
	FusionSync = 1
	// FusionAsync 异步融合 - 上游推送信号，下游从上游队列拉取
	FusionAsync = 2
	// FusionAny 任意融合模式
	FusionAny = FusionSync | FusionAsync
)

// FusionModeName 返回融合模式的名称
func FusionModeName(mode int) string {
	switch mode {
	case FusionNone:
		return "none"
	case FusionSync:
		return "sync"
	case FusionAsync:
		return "async"
	default:
		return fmt.Sprintf("mode(%d)", mode)
	}
}

// PollableQueue 可拉取的FIFO视图
type PollableQueue interface {
	// Poll 拉取下一个元素，ok为false表示当前为空；带Error的元素表示拉取失败
	Poll() (item Item, ok bool)
	// IsEmpty 检查是否为空
	IsEmpty() bool
	// Size 返回元素数量
	Size() int
	// Clear 丢弃全部元素
	Clear()
}

// Queue 有写入端的FIFO缓冲区
type Queue interface {
	PollableQueue
	// Offer 添加元素，缓冲区已满时返回false
	Offer(item Item) bool
}

// QueueSupplier 缓冲区工厂，每条rail调用一次
type QueueSupplier func() (Queue, error)

// QueueSubscription 队列订阅接口
type QueueSubscription interface {
	FlowableSubscription
	PollableQueue

	// RequestFusion 请求融合模式，返回实际采用的融合模式
	RequestFusion(mode int) int
}

// BoundedQueueSupplier 返回有界队列工厂
func BoundedQueueSupplier(capacity int) QueueSupplier {
	return func() (Queue, error) {
		if capacity <= 0 {
			return nil, fmt.Errorf("%w: 容量 %d", ErrInvalidPrefetch, capacity)
		}
		return NewFusionQueue(capacity), nil
	}
}

// UnboundedQueueSupplier 返回无界队列工厂
func UnboundedQueueSupplier() QueueSupplier {
	return func() (Queue, error) {
		return NewLinkedQueue(), nil
	}
}

// ============================================================================
// 单生产者单消费者环形队列
// ============================================================================

// FusionQueue 无锁SPSC环形队列，容量向上取2的幂
type FusionQueue struct {
	buffer []Item
	mask   int64
	head   atomic.Int64 // 生产者指针
	tail   atomic.Int64 // 消费者指针
}

// NewFusionQueue 创建新的环形队列
func NewFusionQueue(capacity int) *FusionQueue {
	if capacity <= 0 {
		capacity = 16
	}
	actualCapacity := 1
	for actualCapacity < capacity {
		actualCapacity <<= 1
	}

	return &FusionQueue{
		buffer: make([]Item, actualCapacity),
		mask:   int64(actualCapacity - 1),
	}
}

// Capacity 返回实际容量
func (fq *FusionQueue) Capacity() int {
	return len(fq.buffer)
}

// Offer 向队列添加元素，仅允许一个生产者
func (fq *FusionQueue) Offer(item Item) bool {
	head := fq.head.Load()
	if head-fq.tail.Load() >= int64(len(fq.buffer)) {
		return false
	}
	fq.buffer[head&fq.mask] = item
	fq.head.Store(head + 1)
	return true
}

// Poll 从队列获取元素，仅允许一个消费者
func (fq *FusionQueue) Poll() (Item, bool) {
	tail := fq.tail.Load()
	if tail >= fq.head.Load() {
		return Item{}, false
	}
	idx := tail & fq.mask
	item := fq.buffer[idx]
	fq.buffer[idx] = Item{}
	fq.tail.Store(tail + 1)
	return item, true
}

// IsEmpty 检查队列是否为空
func (fq *FusionQueue) IsEmpty() bool {
	return fq.tail.Load() >= fq.head.Load()
}

// Size 获取当前队列大小
func (fq *FusionQueue) Size() int {
	size := fq.head.Load() - fq.tail.Load()
	if size < 0 {
		return 0
	}
	return int(size)
}

// Clear 清空队列，由消费者调用
func (fq *FusionQueue) Clear() {
	for {
		if _, ok := fq.Poll(); !ok {
			return
		}
	}
}

// ============================================================================
// 单生产者单消费者链表队列
// ============================================================================

type linkedNode struct {
	item Item
	next atomic.Pointer[linkedNode]
}

// LinkedQueue 无界SPSC链表队列
type LinkedQueue struct {
	head atomic.Pointer[linkedNode] // 消费者持有，哨兵节点
	tail *linkedNode                // 生产者持有
	size atomic.Int64
}

// NewLinkedQueue 创建无界队列
func NewLinkedQueue() *LinkedQueue {
	stub := &linkedNode{}
	lq := &LinkedQueue{tail: stub}
	lq.head.Store(stub)
	return lq
}

// Offer 添加元素，总是成功
func (lq *LinkedQueue) Offer(item Item) bool {
	n := &linkedNode{item: item}
	lq.tail.next.Store(n)
	lq.tail = n
	lq.size.Add(1)
	return true
}

// Poll 获取元素
func (lq *LinkedQueue) Poll() (Item, bool) {
	next := lq.head.Load().next.Load()
	if next == nil {
		return Item{}, false
	}
	item := next.item
	next.item = Item{}
	lq.head.Store(next)
	lq.size.Add(-1)
	return item, true
}

// IsEmpty 检查队列是否为空
func (lq *LinkedQueue) IsEmpty() bool {
	return lq.head.Load().next.Load() == nil
}

// Size 获取当前队列大小
func (lq *LinkedQueue) Size() int {
	if s := lq.size.Load(); s > 0 {
		return int(s)
	}
	return 0
}

// Clear 清空队列，由消费者调用
func (lq *LinkedQueue) Clear() {
	for {
		if _, ok := lq.Poll(); !ok {
			return
		}
	}
}
