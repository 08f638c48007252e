// Test helpers for rxzip
// 测试辅助：记录信号的订阅者、可手动驱动的发布者、捕获钩子
package rxzip

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// ============================================================================
// testSubscriber 记录收到的全部信号
// ============================================================================

type testSubscriber struct {
	initial int64
	// onNext 记录之后调用，可以在其中请求或取消
	onNext func(value interface{})

	mu           sync.Mutex
	subscription FlowableSubscription
	values       []interface{}
	err          error
	completed    bool
	terminations int

	done     chan struct{}
	doneOnce sync.Once
}

func newTestSubscriber(initial int64) *testSubscriber {
	return &testSubscriber{
		initial: initial,
		done:    make(chan struct{}),
	}
}

func (ts *testSubscriber) OnSubscribe(subscription FlowableSubscription) {
	ts.mu.Lock()
	ts.subscription = subscription
	ts.mu.Unlock()
	if ts.initial > 0 {
		subscription.Request(ts.initial)
	}
}

func (ts *testSubscriber) OnNext(item Item) {
	if item.IsError() {
		ts.OnError(item.Error)
		return
	}
	ts.mu.Lock()
	ts.values = append(ts.values, item.Value)
	ts.mu.Unlock()
	if ts.onNext != nil {
		ts.onNext(item.Value)
	}
}

func (ts *testSubscriber) OnError(err error) {
	ts.mu.Lock()
	ts.err = err
	ts.terminations++
	ts.mu.Unlock()
	ts.doneOnce.Do(func() { close(ts.done) })
}

func (ts *testSubscriber) OnComplete() {
	ts.mu.Lock()
	ts.completed = true
	ts.terminations++
	ts.mu.Unlock()
	ts.doneOnce.Do(func() { close(ts.done) })
}

func (ts *testSubscriber) Request(n int64) {
	ts.Subscription().Request(n)
}

func (ts *testSubscriber) Cancel() {
	ts.Subscription().Cancel()
}

func (ts *testSubscriber) Subscription() FlowableSubscription {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.subscription
}

func (ts *testSubscriber) Snapshot(t *testing.T) CoordinatorSnapshot {
	t.Helper()
	s, ok := ts.Subscription().(Snapshotter)
	require.True(t, ok, "订阅应该提供快照")
	return s.Snapshot()
}

func (ts *testSubscriber) Values() []interface{} {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	result := make([]interface{}, len(ts.values))
	copy(result, ts.values)
	return result
}

func (ts *testSubscriber) Err() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.err
}

func (ts *testSubscriber) Completed() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.completed
}

func (ts *testSubscriber) Terminations() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.terminations
}

func (ts *testSubscriber) Terminated() bool {
	select {
	case <-ts.done:
		return true
	default:
		return false
	}
}

// Await 等待终止信号
func (ts *testSubscriber) Await(t *testing.T) {
	t.Helper()
	select {
	case <-ts.done:
	case <-time.After(5 * time.Second):
		t.Fatal("等待终止信号超时")
	}
}

// ============================================================================
// testPublisher 手动驱动的未融合发布者
// ============================================================================

type testPublisher struct {
	mu          sync.Mutex
	subscriber  Subscriber
	requests    []int64
	cancelled   atomic.Bool
	subscribers atomic.Int32
}

func newTestPublisher() *testPublisher {
	return &testPublisher{}
}

func (p *testPublisher) Subscribe(subscriber Subscriber) {
	p.mu.Lock()
	p.subscriber = subscriber
	p.mu.Unlock()
	p.subscribers.Add(1)
	subscriber.OnSubscribe(&testSubscription{p: p})
}

func (p *testPublisher) sub() Subscriber {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscriber
}

func (p *testPublisher) Next(values ...interface{}) {
	for _, v := range values {
		p.sub().OnNext(CreateItem(v))
	}
}

func (p *testPublisher) Error(err error) {
	p.sub().OnError(err)
}

func (p *testPublisher) Complete() {
	p.sub().OnComplete()
}

func (p *testPublisher) Subscribed() bool {
	return p.subscribers.Load() > 0
}

func (p *testPublisher) Cancelled() bool {
	return p.cancelled.Load()
}

// Requests 返回收到的全部请求，取消之后的请求也会记录
func (p *testPublisher) Requests() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]int64, len(p.requests))
	copy(result, p.requests)
	return result
}

type testSubscription struct {
	p *testPublisher
}

func (s *testSubscription) Request(n int64) {
	s.p.mu.Lock()
	s.p.requests = append(s.p.requests, n)
	s.p.mu.Unlock()
}

func (s *testSubscription) Cancel() {
	s.p.cancelled.Store(true)
}

func (s *testSubscription) IsCancelled() bool {
	return s.p.cancelled.Load()
}

// publisherFunc 用函数实现任意（包括违反协议的）发布者
type publisherFunc func(subscriber Subscriber)

func (f publisherFunc) Subscribe(subscriber Subscriber) {
	f(subscriber)
}

// ============================================================================
// 钩子捕获
// ============================================================================

type capturedHooks struct {
	mu         sync.Mutex
	dropped    []error
	nexts      []interface{}
	violations []error
}

// captureHooks 安装捕获钩子，测试结束时恢复
func captureHooks(t *testing.T) *capturedHooks {
	t.Helper()
	c := &capturedHooks{}
	SetHooks(Hooks{
		ErrorDropped: func(err error) {
			c.mu.Lock()
			c.dropped = append(c.dropped, err)
			c.mu.Unlock()
		},
		NextDropped: func(value interface{}) {
			c.mu.Lock()
			c.nexts = append(c.nexts, value)
			c.mu.Unlock()
		},
		ProtocolViolation: func(err error) {
			c.mu.Lock()
			c.violations = append(c.violations, err)
			c.mu.Unlock()
		},
	})
	t.Cleanup(ResetHooks)
	return c
}

func (c *capturedHooks) Dropped() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.dropped...)
}

func (c *capturedHooks) DroppedNexts() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]interface{}(nil), c.nexts...)
}

func (c *capturedHooks) Violations() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.violations...)
}

// ============================================================================
// 组合函数
// ============================================================================

func sumZipper(values []interface{}) (interface{}, error) {
	sum := 0
	for _, v := range values {
		sum += v.(int)
	}
	return sum, nil
}

func sumBiZipper(left, right interface{}) (interface{}, error) {
	return left.(int) + right.(int), nil
}

func ints(values ...int) []interface{} {
	result := make([]interface{}, len(values))
	for i, v := range values {
		result[i] = v
	}
	return result
}
