package xtable

import "context"

// Filter 是读操作的可选客户端过滤谓词，nil 表示不过滤。
type Filter[T Entity] func(entity T) bool

// Query 描述一次范围查询。零值表示全表。
type Query struct {
	// Partition 限定分区键，为空表示跨分区。
	Partition string

	// RowPrefix 限定行键前缀，为空表示不限定。
	RowPrefix string

	// Limit 结果数上限，0 表示不限制。
	Limit int

	// Descending 为 true 时按行键降序返回。
	Descending bool
}

// MutationOp 是 Apply 批次中单个变更的类型。
type MutationOp int

const (
	// MutationInsert 插入，目标已存在时整批失败。
	MutationInsert MutationOp = iota

	// MutationReplace 整体替换，目标不存在时整批失败。
	MutationReplace

	// MutationMerge 合并（只覆盖实体序列化后出现的字段）。
	MutationMerge

	// MutationDelete 删除。
	MutationDelete
)

// Mutation 是 Apply 批次中的一个变更。
type Mutation[T Entity] struct {
	Op     MutationOp
	Entity T
}

// PageResult 是一次续传分页查询的结果。
type PageResult[T Entity] struct {
	// Items 当前页实体。
	Items []T

	// NextToken 下一页的续传令牌，为空表示没有更多数据。
	NextToken string
}

// Table 是键分区表的数据访问接口。
//
// 实体由 (PartitionKey, RowKey) 复合定位。接口分三类操作：
//
// 点写操作（Insert 到 CreateIfNotExists）：对远端状态做单次、
// 边界清晰的变更，弹性装饰器按写预算重试。
//
// 点读操作（Get 到 QueryE）：返回值一次性取回，弹性装饰器按读预算重试。
//
// 流式 / 批量消费操作（ScanPartition 到 EnsureTable）：每块 / 每页
// 调用一次调用方提供的消费者，装饰器原样转发、绝不重试——
// 这一层的重试会把消费者已经处理过的数据再推送一遍。
type Table[T Entity] interface {
	// Name 返回表（集合）名称。
	Name() string

	// ---- 点写操作 ----

	// Insert 插入实体，已存在时返回冲突错误。
	Insert(ctx context.Context, entity T) error

	// InsertBatch 批量插入，任一实体已存在时失败。
	InsertBatch(ctx context.Context, entities []T) error

	// InsertOrMerge 插入；已存在时合并字段（见 Merge 的字段语义）。
	InsertOrMerge(ctx context.Context, entity T) error

	// InsertOrReplace 插入；已存在时整体替换。
	InsertOrReplace(ctx context.Context, entity T) error

	// Replace 整体替换已有实体，不存在时返回 ErrNotFound。
	Replace(ctx context.Context, entity T) error

	// ReplaceIfMatch 仅当当前版本等于 version 时整体替换，
	// 不匹配时返回 ErrPreconditionFailed。
	ReplaceIfMatch(ctx context.Context, entity T, version int64) error

	// Merge 合并实体字段到已有实体，不存在时返回 ErrNotFound。
	// 只有实体序列化后出现的字段会被覆盖：带 omitempty 的零值字段保持原值。
	Merge(ctx context.Context, entity T) error

	// MergeIfMatch 仅当当前版本等于 version 时合并。
	MergeIfMatch(ctx context.Context, entity T, version int64) error

	// Delete 删除实体，不存在时返回 ErrNotFound。
	Delete(ctx context.Context, entity T) error

	// DeleteIfMatch 仅当当前版本等于 version 时删除。
	DeleteIfMatch(ctx context.Context, entity T, version int64) error

	// DeleteIfExists 删除实体；不存在不视为错误，返回是否确实删除。
	DeleteIfExists(ctx context.Context, entity T) (bool, error)

	// DeleteBatch 批量删除，缺失的键被忽略。
	DeleteBatch(ctx context.Context, entities []T) error

	// Apply 提交一个同分区的变更批次。批次必须指向同一分区，
	// 跨分区返回 ErrBadRequest。
	Apply(ctx context.Context, mutations []Mutation[T]) error

	// CreateIfNotExists 创建底层表（集合），已存在时返回 false。
	CreateIfNotExists(ctx context.Context) (bool, error)

	// ---- 点读操作 ----

	// Get 按键读取实体，不存在时返回 ErrNotFound。
	Get(ctx context.Context, partitionKey, rowKey string) (T, error)

	// GetPartition 返回整个分区的实体（按行键升序），filter 可选。
	GetPartition(ctx context.Context, partitionKey string, filter Filter[T]) ([]T, error)

	// First 返回分区内行键最小的实体，分区为空时返回 ErrNotFound。
	First(ctx context.Context, partitionKey string) (T, error)

	// GetTop 返回分区内行键最小的前 n 个实体。
	GetTop(ctx context.Context, partitionKey string, n int) ([]T, error)

	// QueryTop 返回任意查询的前 n 个实体。
	QueryTop(ctx context.Context, q Query, n int) ([]T, error)

	// GetByKeys 按行键集合读取分区内实体，内部按 pageSize 分批取回
	// （pageSize 为 0 使用默认值），filter 可选。
	GetByKeys(ctx context.Context, partitionKey string, rowKeys []string, pageSize int, filter Filter[T]) ([]T, error)

	// Exists 判断实体是否存在。
	Exists(ctx context.Context, partitionKey, rowKey string) (bool, error)

	// Query 执行范围查询并用 filter 过滤结果，filter 可选。
	Query(ctx context.Context, q Query, filter Filter[T]) ([]T, error)

	// QueryE 同 Query，但谓词携带 context 且可失败；
	// 谓词返回错误时立即中止并原样返回该错误。
	QueryE(ctx context.Context, q Query, filter func(ctx context.Context, entity T) (bool, error)) ([]T, error)

	// ---- 流式 / 批量消费操作（永不重试）----

	// ScanPartition 按块扫描分区，每块调用一次 fn；fn 返回错误时中止。
	ScanPartition(ctx context.Context, partitionKey string, chunkSize int, fn func(ctx context.Context, chunk []T) error) error

	// ScanAll 按块扫描全表（先按分区键、再按行键排序）。
	ScanAll(ctx context.Context, chunkSize int, fn func(ctx context.Context, chunk []T) error) error

	// FindFirst 顺序扫描分区，返回第一个满足 match 的实体，
	// 没有时返回 ErrNotFound。
	FindFirst(ctx context.Context, partitionKey string, match Filter[T]) (T, error)

	// Page 按续传令牌取一页。token 为空表示从头开始；
	// 返回的 NextToken 为空表示没有更多数据。
	Page(ctx context.Context, token string, pageSize int) (*PageResult[T], error)

	// ExecuteQuery 执行查询并对每个实体调用 yield；
	// yield 返回 false 时提前停止，返回错误时中止并原样返回。
	ExecuteQuery(ctx context.Context, q Query, yield func(entity T) (bool, error)) error

	// EnsureTable 检查底层表是否就绪，必要时创建表和键索引。
	EnsureTable(ctx context.Context) error
}
