// Scalar fast path tests for rxzip
// 标量快速路径测试：全标量、混合路径、短路完成与错误
package rxzip

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// ============================================================================
// 全标量
// ============================================================================

func TestZipAllScalar(t *testing.T) {
	t.Run("按需求发射", func(t *testing.T) {
		ts := newTestSubscriber(0)
		Zip([]Publisher{FlowableJust(1), FlowableJust(2)}, sumZipper).Subscribe(ts)

		assert.Empty(t, ts.Values())
		assert.False(t, ts.Terminated())

		ts.Request(1)
		assert.Equal(t, ints(3), ts.Values())
		assert.True(t, ts.Completed())
	})

	t.Run("与缓冲路径结果相同", func(t *testing.T) {
		scalar := newTestSubscriber(Unbounded)
		Zip2(FlowableJust(4), FlowableJust(5), sumBiZipper).Subscribe(scalar)

		buffered := newTestSubscriber(Unbounded)
		Zip2(FlowableFromSlice(ints(4)), FlowableFromSlice(ints(5)), sumBiZipper).Subscribe(buffered)

		assert.Equal(t, buffered.Values(), scalar.Values())
		assert.Equal(t, buffered.Completed(), scalar.Completed())
	})

	t.Run("空标量立即完成", func(t *testing.T) {
		b := newTestPublisher()
		ts := newTestSubscriber(0)
		Zip([]Publisher{FlowableEmpty(), b}, sumZipper).Subscribe(ts)

		assert.True(t, ts.Completed())
		assert.Empty(t, ts.Values())
		assert.False(t, b.Subscribed())
	})

	t.Run("标量错误立即失败", func(t *testing.T) {
		errBoom := errors.New("boom")
		ts := newTestSubscriber(0)
		Zip([]Publisher{FlowableJust(1), FlowableError(errBoom)}, sumZipper).Subscribe(ts)

		assert.ErrorIs(t, ts.Err(), errBoom)
		var railErr *RailError
		require.ErrorAs(t, ts.Err(), &railErr)
		assert.Equal(t, 1, railErr.Index)
	})

	t.Run("标量求值panic", func(t *testing.T) {
		ts := newTestSubscriber(0)
		Zip([]Publisher{FlowableFromCallable(func() (interface{}, error) {
			panic("no value today")
		})}, sumZipper).Subscribe(ts)

		require.Error(t, ts.Err())
		assert.Contains(t, ts.Err().Error(), "no value today")
	})

	t.Run("组合函数失败", func(t *testing.T) {
		ts := newTestSubscriber(Unbounded)
		Zip([]Publisher{FlowableJust(1)}, func([]interface{}) (interface{}, error) {
			return nil, nil
		}).Subscribe(ts)

		assert.ErrorIs(t, ts.Err(), ErrMissingResult)
	})

	t.Run("nil标量值", func(t *testing.T) {
		ts := newTestSubscriber(Unbounded)
		Zip([]Publisher{FlowableJust(nil), FlowableJust(1)}, TupleZipper).Subscribe(ts)

		assert.Equal(t, []interface{}{[]interface{}{nil, 1}}, ts.Values())
	})
}

// ============================================================================
// 混合路径
// ============================================================================

func TestZipMixedScalar(t *testing.T) {
	t.Run("组合标量与异步值", func(t *testing.T) {
		b := newTestPublisher()
		ts := newTestSubscriber(Unbounded)
		Zip([]Publisher{FlowableJust(10), b}, sumZipper).Subscribe(ts)

		snapshot := ts.Snapshot(t)
		assert.Equal(t, PathMixedScalar, snapshot.Path)
		assert.Equal(t, 1, snapshot.Pending)
		assert.Equal(t, railModeScalar, snapshot.RailStates[0].Mode)
		assert.Equal(t, railModeSingle, snapshot.RailStates[1].Mode)
		assert.Equal(t, []int64{Unbounded}, b.Requests())

		b.Next(5)
		assert.Equal(t, ints(15), ts.Values())
		assert.True(t, ts.Completed())
		assert.True(t, b.Cancelled(), "取到第一个值后应该取消上游")
	})

	t.Run("值先于请求到达", func(t *testing.T) {
		b := newTestPublisher()
		ts := newTestSubscriber(0)
		Zip([]Publisher{b, FlowableJust(1)}, sumZipper).Subscribe(ts)

		b.Next(2)
		assert.Empty(t, ts.Values())

		ts.Request(1)
		assert.Equal(t, ints(3), ts.Values())
		assert.True(t, ts.Completed())
	})

	t.Run("只使用每条rail的第一个值", func(t *testing.T) {
		b := newTestPublisher()
		ts := newTestSubscriber(Unbounded)
		Zip([]Publisher{FlowableJust(1), b}, sumZipper).Subscribe(ts)

		b.Next(2, 3, 4)
		assert.Equal(t, ints(3), ts.Values())
		assert.Equal(t, 1, ts.Terminations())
	})

	t.Run("同步源只取第一个值", func(t *testing.T) {
		ts := newTestSubscriber(Unbounded)
		Zip([]Publisher{FlowableJust(1), FlowableRange(5, 100)}, sumZipper).Subscribe(ts)

		assert.Equal(t, ints(6), ts.Values())
		assert.True(t, ts.Completed())
	})

	t.Run("空rail短路完成", func(t *testing.T) {
		b := newTestPublisher()
		c := newTestPublisher()
		ts := newTestSubscriber(Unbounded)
		Zip([]Publisher{FlowableJust(1), b, c}, sumZipper).Subscribe(ts)

		b.Complete()
		assert.True(t, ts.Completed())
		assert.Empty(t, ts.Values())
		assert.True(t, c.Cancelled())
	})

	t.Run("错误取消其余rail且只交付一次", func(t *testing.T) {
		hooks := captureHooks(t)
		errFirst := errors.New("first")
		errSecond := errors.New("second")
		b := newTestPublisher()
		c := newTestPublisher()
		ts := newTestSubscriber(Unbounded)
		Zip([]Publisher{FlowableJust(1), b, c}, sumZipper).Subscribe(ts)

		b.Error(errFirst)
		assert.ErrorIs(t, ts.Err(), errFirst)
		assert.True(t, c.Cancelled())

		c.Error(errSecond)
		assert.Equal(t, 1, ts.Terminations())
		dropped := hooks.Dropped()
		require.Len(t, dropped, 1)
		assert.ErrorIs(t, dropped[0], errSecond)

		snapshot := ts.Snapshot(t)
		assert.True(t, snapshot.Terminated)
		assert.ErrorIs(t, snapshot.Error, errFirst)
	})

	t.Run("组合函数失败", func(t *testing.T) {
		errBad := errors.New("bad")
		b := newTestPublisher()
		ts := newTestSubscriber(Unbounded)
		Zip([]Publisher{FlowableJust(1), b}, func([]interface{}) (interface{}, error) {
			return nil, errBad
		}).Subscribe(ts)

		b.Next(2)
		var combinerErr *CombinerError
		require.ErrorAs(t, ts.Err(), &combinerErr)
		assert.ErrorIs(t, ts.Err(), errBad)
	})

	t.Run("取消", func(t *testing.T) {
		b := newTestPublisher()
		ts := newTestSubscriber(Unbounded)
		Zip([]Publisher{FlowableJust(1), b}, sumZipper).Subscribe(ts)

		ts.Cancel()
		ts.Cancel()
		assert.True(t, b.Cancelled())
		assert.True(t, ts.Subscription().IsCancelled())

		b.Next(2)
		assert.Empty(t, ts.Values())
		assert.False(t, ts.Terminated())
	})

	t.Run("订阅期间完成时停止订阅", func(t *testing.T) {
		c := newTestPublisher()
		ts := newTestSubscriber(Unbounded)
		Zip([]Publisher{FlowableJust(1), FlowableNever().SubscribeOn(ImmediateScheduler), publisherFunc(completeImmediately), c}, sumZipper).Subscribe(ts)

		assert.True(t, ts.Completed())
		assert.False(t, c.Subscribed())
	})
}

// ============================================================================
// deferredScalarSubscription 状态机
// ============================================================================

func TestDeferredScalarSubscription(t *testing.T) {
	t.Run("请求先到", func(t *testing.T) {
		ts := newTestSubscriber(0)
		d := &deferredScalarSubscription{actual: ts}
		d.Request(1)
		assert.Empty(t, ts.Values())

		assert.True(t, d.complete("v"))
		assert.Equal(t, []interface{}{"v"}, ts.Values())
		assert.True(t, ts.Completed())
	})

	t.Run("值先到", func(t *testing.T) {
		ts := newTestSubscriber(0)
		d := &deferredScalarSubscription{actual: ts}
		assert.True(t, d.complete("v"))
		assert.Empty(t, ts.Values())

		d.Request(5)
		d.Request(1)
		assert.Equal(t, []interface{}{"v"}, ts.Values())
		assert.Equal(t, 1, ts.Terminations())
	})

	t.Run("取消后丢弃值", func(t *testing.T) {
		ts := newTestSubscriber(0)
		d := &deferredScalarSubscription{actual: ts}
		d.Cancel()
		assert.True(t, d.IsCancelled())
		assert.False(t, d.complete("v"))
		assert.False(t, d.fail(errors.New("late")))

		d.Request(1)
		assert.False(t, ts.Terminated())
	})

	t.Run("终止后不能再失败", func(t *testing.T) {
		ts := newTestSubscriber(0)
		d := &deferredScalarSubscription{actual: ts}
		assert.True(t, d.completeEmpty())
		assert.False(t, d.fail(errors.New("late")))
		assert.False(t, d.cancel())
		assert.True(t, ts.Completed())
	})

	t.Run("持有值时不能失败", func(t *testing.T) {
		ts := newTestSubscriber(0)
		d := &deferredScalarSubscription{actual: ts}
		require.True(t, d.complete(1))
		assert.False(t, d.fail(errors.New("late")))

		d.Request(1)
		assert.Equal(t, ints(1), ts.Values())
	})

	t.Run("值与取消并发到达", func(t *testing.T) {
		for i := 0; i < 500; i++ {
			ts := newTestSubscriber(0)
			d := &deferredScalarSubscription{actual: ts}

			var g errgroup.Group
			g.Go(func() error {
				d.complete(i)
				return nil
			})
			g.Go(func() error {
				d.Cancel()
				return nil
			})
			require.NoError(t, g.Wait())

			d.Request(1)
			require.True(t, d.IsCancelled())
			require.Empty(t, ts.Values(), "取消后不应该发射")
			require.Nil(t, d.value.Load(), "取消后不应该继续持有值")
		}
	})
}
