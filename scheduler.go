// Scheduler implementations for rxzip
// 调度器决定订阅动作在哪个goroutine上执行，用来让rail从不同的生产者goroutine到达
package rxzip

import (
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ============================================================================
// 立即调度器 - Immediate Scheduler
// ============================================================================

// immediateScheduler 立即在当前goroutine中执行任务
type immediateScheduler struct{}

// NewImmediateScheduler 创建立即调度器
func NewImmediateScheduler() Scheduler {
	return &immediateScheduler{}
}

// Schedule 立即执行任务
func (s *immediateScheduler) Schedule(action func()) Disposable {
	action()
	return NewBaseDisposable(nil)
}

// ============================================================================
// 新线程调度器 - New Thread Scheduler
// ============================================================================

// newThreadScheduler 为每个任务创建新的goroutine
type newThreadScheduler struct{}

// NewNewThreadScheduler 创建新线程调度器
func NewNewThreadScheduler() Scheduler {
	return &newThreadScheduler{}
}

// Schedule 在新goroutine中执行任务，开始执行前释放则跳过
func (s *newThreadScheduler) Schedule(action func()) Disposable {
	task := newScheduledTask(action)
	go task.run()
	return task
}

// ============================================================================
// 线程池调度器 - Thread Pool Scheduler
// ============================================================================

// PoolScheduler 最多workers个goroutine执行任务，Schedule只入队，从不阻塞调用方
type PoolScheduler struct {
	workers int
	group   errgroup.Group

	mu       sync.Mutex
	tasks    []*scheduledTask
	active   int
	disposed atomic.Bool
}

// NewThreadPoolScheduler 创建线程池调度器
func NewThreadPoolScheduler(workers int) *PoolScheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &PoolScheduler{workers: workers}
}

// Schedule 任务入队；空闲worker不足时启动新的worker
func (s *PoolScheduler) Schedule(action func()) Disposable {
	task := newScheduledTask(action)

	s.mu.Lock()
	if s.disposed.Load() {
		s.mu.Unlock()
		task.Dispose()
		return task
	}
	s.tasks = append(s.tasks, task)
	spawn := s.active < s.workers
	if spawn {
		s.active++
	}
	s.mu.Unlock()

	if spawn {
		s.group.Go(s.work)
	}
	return task
}

// work 取任务直到队列为空，然后退出
func (s *PoolScheduler) work() error {
	for {
		s.mu.Lock()
		if len(s.tasks) == 0 {
			s.active--
			s.mu.Unlock()
			return nil
		}
		task := s.tasks[0]
		s.tasks[0] = nil
		s.tasks = s.tasks[1:]
		s.mu.Unlock()

		task.run()
	}
}

// Dispose 拒绝新任务并等待已入队的任务结束，不能在池内的任务中调用
func (s *PoolScheduler) Dispose() {
	s.mu.Lock()
	first := s.disposed.CompareAndSwap(false, true)
	s.mu.Unlock()
	if first {
		_ = s.group.Wait()
	}
}

// IsDisposed 检查是否已释放
func (s *PoolScheduler) IsDisposed() bool {
	return s.disposed.Load()
}

// ============================================================================
// 调度任务
// ============================================================================

// scheduledTask 可在开始执行前取消的任务
type scheduledTask struct {
	action   func()
	disposed atomic.Bool
}

func newScheduledTask(action func()) *scheduledTask {
	return &scheduledTask{action: action}
}

func (t *scheduledTask) run() {
	if t.disposed.Load() {
		return
	}
	t.action()
}

func (t *scheduledTask) Dispose() {
	t.disposed.Store(true)
}

func (t *scheduledTask) IsDisposed() bool {
	return t.disposed.Load()
}

// ============================================================================
// 默认调度器
// ============================================================================

var (
	// ImmediateScheduler 立即调度器实例
	ImmediateScheduler Scheduler = NewImmediateScheduler()

	// NewThreadScheduler 新线程调度器实例
	NewThreadScheduler Scheduler = NewNewThreadScheduler()

	// ThreadPoolScheduler 线程池调度器实例
	ThreadPoolScheduler Scheduler = NewThreadPoolScheduler(runtime.NumCPU())
)
