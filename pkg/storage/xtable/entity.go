package xtable

// Entity 是可存入键分区表的实体约束。
//
// 实体由分区键 + 行键复合定位，两者在表内唯一。实现类型通常把键
// 作为普通字段（带 bson tag）保存，访问器直接返回字段值：
//
//	type Order struct {
//	    Tenant string `bson:"tenant"`
//	    ID     string `bson:"id"`
//	    Amount int64  `bson:"amount,omitempty"`
//	}
//
//	func (o Order) PartitionKey() string { return o.Tenant }
//	func (o Order) RowKey() string       { return o.ID }
type Entity interface {
	// PartitionKey 返回实体的分区键，不能为空。
	PartitionKey() string

	// RowKey 返回实体在分区内的行键，不能为空。
	RowKey() string
}

// Versioned 是可选接口：实体实现后，读取操作会把存储层维护的
// 乐观并发版本号回填到实体上（SetVersion 需要指针接收者）。
//
// 版本号从插入时的 1 开始，每次写操作加一；
// *IfMatch 系列操作用它做条件匹配。
type Versioned interface {
	SetVersion(version int64)
}
