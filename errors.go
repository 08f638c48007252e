// Error taxonomy for rxzip
// 错误分类：源失败、组合函数失败、缺失结果、空源、缓冲区分配失败以及协议违规
package rxzip

import (
	"errors"
	"fmt"
)

// ============================================================================
// 哨兵错误
// ============================================================================

var (
	// ErrNullSource 源为nil，或上游在需要订阅的位置交出了nil
	ErrNullSource = errors.New("rxzip: 源为nil")
	// ErrNilZipper 未提供组合函数
	ErrNilZipper = errors.New("rxzip: 组合函数为nil")
	// ErrMissingResult 组合函数没有产生值
	ErrMissingResult = errors.New("rxzip: 组合函数返回了空值")
	// ErrEmpty 流为空，没有数据项
	ErrEmpty = errors.New("rxzip: 流为空，没有数据项")
	// ErrInvalidPrefetch 预取量必须为正数
	ErrInvalidPrefetch = errors.New("rxzip: 预取量必须大于0")

	// ErrInvalidRequest 请求量必须为正数（协议违规）
	ErrInvalidRequest = errors.New("rxzip: 请求量必须大于0")
	// ErrDuplicateSubscription 同一订阅者收到了第二个订阅（协议违规）
	ErrDuplicateSubscription = errors.New("rxzip: 重复订阅")
	// ErrBackpressureOverflow 上游发射超出了请求量，缓冲区已满（协议违规）
	ErrBackpressureOverflow = errors.New("rxzip: 上游未遵守背压，缓冲区已满")
	// ErrOverProduction 发射数量超过了请求量（协议违规）
	ErrOverProduction = errors.New("rxzip: 发射数量超过请求量")
	// ErrSingleSubscriber 只允许一个订阅者的源被再次订阅
	ErrSingleSubscriber = errors.New("rxzip: 该源只允许一个订阅者")
)

// invalidRequest 包装非法请求量
func invalidRequest(n int64) error {
	return fmt.Errorf("%w: %d", ErrInvalidRequest, n)
}

// ============================================================================
// 类型化错误
// ============================================================================

// RailError 某条rail的上游发出的错误，带有rail序号
type RailError struct {
	Index int
	Err   error
}

func (e *RailError) Error() string {
	return fmt.Sprintf("rxzip: rail %d 失败: %v", e.Index, e.Err)
}

func (e *RailError) Unwrap() error {
	return e.Err
}

// CombinerError 组合函数返回错误或发生panic
type CombinerError struct {
	Err error
	// Panic 组合函数panic时的原始值
	Panic interface{}
}

func (e *CombinerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("rxzip: 组合函数panic: %v", e.Panic)
	}
	return fmt.Sprintf("rxzip: 组合函数失败: %v", e.Err)
}

func (e *CombinerError) Unwrap() error {
	return e.Err
}

// BufferAllocationError 缓冲区工厂创建队列失败
type BufferAllocationError struct {
	Index int
	Err   error
}

func (e *BufferAllocationError) Error() string {
	return fmt.Sprintf("rxzip: rail %d 缓冲区分配失败: %v", e.Index, e.Err)
}

func (e *BufferAllocationError) Unwrap() error {
	return e.Err
}

// FatalError 不可恢复的错误，以它为值的panic不会被转换成流错误
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("rxzip: 致命错误: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// ============================================================================
// panic转换
// ============================================================================

// throwIfFatal 致命错误直接继续panic
func throwIfFatal(r interface{}) {
	if err, ok := r.(error); ok {
		var fatal *FatalError
		if errors.As(err, &fatal) {
			panic(r)
		}
	}
}

// panicError 把panic值转换成error
func panicError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}

// callZipper 在保护下调用组合函数
func callZipper(zipper Zipper, values []interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			throwIfFatal(r)
			result = nil
			err = &CombinerError{Err: panicError(r), Panic: r}
		}
	}()

	result, err = zipper(values)
	if err != nil {
		return nil, &CombinerError{Err: err}
	}
	if result == nil {
		return nil, ErrMissingResult
	}
	return result, nil
}

// callScalar 在保护下读取标量源
func callScalar(callable ScalarCallable) (value interface{}, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			throwIfFatal(r)
			value, ok, err = nil, false, panicError(r)
		}
	}()

	return callable.Call()
}
