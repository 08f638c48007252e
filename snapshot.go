// Observability snapshots for rxzip
// 协调器与rail的只读快照，供调试与监控使用
package rxzip

import (
	"github.com/google/uuid"
)

// ZipPath 订阅时选择的执行路径
type ZipPath string

const (
	// PathImmediate 没有rail或某个标量源为空/出错，订阅时立即终止
	PathImmediate ZipPath = "immediate"
	// PathAllScalar 所有源都是标量，组合函数同步执行一次
	PathAllScalar ZipPath = "all_scalar"
	// PathMixedScalar 部分源是标量，使用单值协调器
	PathMixedScalar ZipPath = "mixed_scalar"
	// PathDrain 没有标量源，使用drain循环协调器
	PathDrain ZipPath = "drain"
)

// RailSnapshot 单条rail的状态
type RailSnapshot struct {
	Index     int
	Mode      string // none/sync/async，标量路径为scalar/single
	Done      bool
	Pending   int   // 缓冲中尚未消费的数量
	Produced  int64 // 上次补充请求以来已消费的数量
	Limit     int64
	Prefetch  int64
	Cancelled bool
}

// CoordinatorSnapshot 协调器的状态
type CoordinatorSnapshot struct {
	ID         uuid.UUID
	Path       ZipPath
	Rails      int
	Requested  int64
	Pending    int
	Error      error
	Cancelled  bool
	Terminated bool
	RailStates []RailSnapshot
}

// Snapshotter 由协调器交给下游的订阅实现
type Snapshotter interface {
	Snapshot() CoordinatorSnapshot
}

// railModeScalar 订阅时已经求值的标量rail
const railModeScalar = "scalar"

// railModeSingle 标量路径中只取第一个值的rail
const railModeSingle = "single"
