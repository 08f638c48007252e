// Zip entry points for rxzip
// 订阅时检查全部源一次：标量源立即求值，然后在全标量、混合与drain三条路径中选择
package rxzip

import (
	"iter"
)

// ============================================================================
// 入口函数
// ============================================================================

// Zip 逐轮组合sources中每个源的第k个值；sources在调用时被复制
func Zip(sources []Publisher, zipper Zipper, options ...Option) Flowable {
	copied := make([]Publisher, len(sources))
	copy(copied, sources)
	return newZipFlowable(copied, nil, zipper, nil, options)
}

// Zip2 用二元组合函数组合两个源，之后的ZipWith会追加源而不是嵌套
func Zip2(p1, p2 Publisher, zipper BiZipper, options ...Option) Flowable {
	if zipper == nil {
		return newZipFlowable([]Publisher{p1, p2}, nil, nil, nil, options)
	}
	pairwise := NewPairwiseZipper(zipper)
	return newZipFlowable([]Publisher{p1, p2}, nil, pairwise.Apply, pairwise, options)
}

// ZipSeq 每次订阅时重新遍历sources
func ZipSeq(sources iter.Seq[Publisher], zipper Zipper, options ...Option) Flowable {
	return newZipFlowable(nil, sources, zipper, nil, options)
}

// ============================================================================
// zipFlowable
// ============================================================================

// zipFlowable 数组模式或迭代模式的zip源
type zipFlowable struct {
	*flowableImpl

	sources  []Publisher
	seq      iter.Seq[Publisher]
	zipper   Zipper
	pairwise *PairwiseZipper // 由Zip2创建时非nil
	options  []Option
}

func newZipFlowable(sources []Publisher, seq iter.Seq[Publisher], zipper Zipper, pairwise *PairwiseZipper, options []Option) *zipFlowable {
	z := &zipFlowable{
		sources:  sources,
		seq:      seq,
		zipper:   zipper,
		pairwise: pairwise,
		options:  options,
	}
	z.flowableImpl = newFlowableImpl(z.subscribeActual, options)
	z.flowableImpl.self = z
	return z
}

// ZipWith 数组模式下由成对组合函数创建的zip直接追加源，避免逐层嵌套协调器
func (z *zipFlowable) ZipWith(other Publisher, zipper BiZipper, options ...Option) Flowable {
	if z.pairwise != nil && z.sources != nil && zipper != nil && len(options) == 0 {
		return z.zipAdditionalSource(other, zipper)
	}
	return Zip2(z, other, zipper, options...)
}

// zipAdditionalSource 返回多一个源的新zip，原zip不变
func (z *zipFlowable) zipAdditionalSource(source Publisher, zipper BiZipper) *zipFlowable {
	sources := make([]Publisher, len(z.sources)+1)
	copy(sources, z.sources)
	sources[len(z.sources)] = source
	pairwise := z.pairwise.Then(zipper)
	return newZipFlowable(sources, nil, pairwise.Apply, pairwise, z.options)
}

func (z *zipFlowable) subscribeActual(subscriber Subscriber) {
	config := z.flowableImpl.config

	if z.zipper == nil {
		z.immediate(config)
		errorImmediately(subscriber, ErrNilZipper)
		return
	}
	if config.Prefetch <= 0 {
		z.immediate(config)
		errorImmediately(subscriber, ErrInvalidPrefetch)
		return
	}

	sources := z.sources
	if z.seq != nil {
		var err error
		sources, err = collectSources(z.seq)
		if err != nil {
			z.immediate(config)
			errorImmediately(subscriber, err)
			return
		}
	}

	handle(subscriber, sources, z.zipper, config)
}

func (z *zipFlowable) immediate(config *Config) {
	config.Metrics.observeSubscription(PathImmediate)
}

// collectSources 展开迭代器，迭代过程中的panic转换为错误
func collectSources(seq iter.Seq[Publisher]) (sources []Publisher, err error) {
	defer func() {
		if r := recover(); r != nil {
			throwIfFatal(r)
			sources, err = nil, panicError(r)
		}
	}()

	for p := range seq {
		sources = append(sources, p)
	}
	return sources, nil
}

// handle 对源分类并选择执行路径
func handle(subscriber Subscriber, sources []Publisher, zipper Zipper, config *Config) {
	n := len(sources)
	if n == 0 {
		config.Metrics.observeSubscription(PathImmediate)
		completeImmediately(subscriber)
		return
	}

	slots := make([]zipSlot, n)
	scalars := 0
	for i, source := range sources {
		if source == nil {
			config.Metrics.observeSubscription(PathImmediate)
			errorImmediately(subscriber, &RailError{Index: i, Err: ErrNullSource})
			return
		}

		callable, ok := source.(ScalarCallable)
		if !ok {
			continue
		}
		v, has, err := callScalar(callable)
		if err != nil {
			config.Metrics.observeSubscription(PathImmediate)
			errorImmediately(subscriber, &RailError{Index: i, Err: err})
			return
		}
		if !has {
			config.Metrics.observeSubscription(PathImmediate)
			completeImmediately(subscriber)
			return
		}
		slots[i] = zipSlot{value: v, present: true}
		scalars++
	}

	switch {
	case scalars == n:
		config.Metrics.observeSubscription(PathAllScalar)
		zipScalars(subscriber, slots, zipper, config)
	case scalars > 0:
		config.Metrics.observeSubscription(PathMixedScalar)
		c := newZipSingleCoordinator(subscriber, slots, scalars, zipper, config)
		subscriber.OnSubscribe(c)
		c.subscribe(sources)
	default:
		config.Metrics.observeSubscription(PathDrain)
		c := newZipCoordinator(subscriber, n, zipper, config)
		subscriber.OnSubscribe(c)
		c.subscribe(sources)
	}
}

// zipScalars 所有值已知，组合函数同步执行一次，结果按需求发射
func zipScalars(subscriber Subscriber, slots []zipSlot, zipper Zipper, config *Config) {
	d := &deferredScalarSubscription{actual: subscriber}
	subscriber.OnSubscribe(d)

	values := make([]interface{}, len(slots))
	for i := range slots {
		values[i] = slots[i].value
	}
	result, err := callZipper(zipper, values)
	if err != nil {
		if d.fail(err) {
			config.Metrics.observeTermination(outcomeError)
		} else {
			config.Metrics.observeDroppedError()
			reportErrorDropped(err)
		}
		return
	}
	if d.complete(result) {
		config.Metrics.observeRounds(1)
		config.Metrics.observeTermination(outcomeComplete)
	}
}
