// Combiner functions for rxzip
// 组合函数：N元Zipper、二元BiZipper，以及可以逐步追加的PairwiseZipper
package rxzip

import (
	"fmt"
)

// Zipper 把一轮中每条rail的值组合成一个输出，values是私有副本
type Zipper func(values []interface{}) (interface{}, error)

// BiZipper 二元组合函数
type BiZipper func(left, right interface{}) (interface{}, error)

// TupleZipper 直接把一轮的值作为[]interface{}输出
func TupleZipper(values []interface{}) (interface{}, error) {
	return values, nil
}

// ============================================================================
// PairwiseZipper 成对组合
// ============================================================================

// PairwiseZipper 不可变的二元组合函数序列，从左到右折叠
// 第i个BiZipper把前i+1个值的结果与第i+1个值组合
type PairwiseZipper struct {
	zippers []BiZipper
}

// NewPairwiseZipper 创建成对组合函数
func NewPairwiseZipper(zippers ...BiZipper) *PairwiseZipper {
	copied := make([]BiZipper, len(zippers))
	copy(copied, zippers)
	return &PairwiseZipper{zippers: copied}
}

// Arity 需要的值的数量
func (p *PairwiseZipper) Arity() int {
	return len(p.zippers) + 1
}

// Then 返回追加了zipper的新实例，原实例不变
func (p *PairwiseZipper) Then(zipper BiZipper) *PairwiseZipper {
	zippers := make([]BiZipper, len(p.zippers)+1)
	copy(zippers, p.zippers)
	zippers[len(p.zippers)] = zipper
	return &PairwiseZipper{zippers: zippers}
}

// Apply 从左到右折叠values
func (p *PairwiseZipper) Apply(values []interface{}) (interface{}, error) {
	if len(values) != p.Arity() {
		return nil, fmt.Errorf("rxzip: 成对组合需要%d个值，实际为%d", p.Arity(), len(values))
	}

	acc := values[0]
	for i, zipper := range p.zippers {
		v, err := zipper(acc, values[i+1])
		if err != nil {
			return nil, err
		}
		// 中间结果同样不能缺失
		if v == nil && i < len(p.zippers)-1 {
			return nil, ErrMissingResult
		}
		acc = v
	}
	return acc, nil
}
