// Package xtable 提供键分区表的泛型数据访问接口与弹性装饰器。
//
// # 设计理念
//
// 实体由 (PartitionKey, RowKey) 复合定位。包内分四层：
//   - Table[T]：统一数据访问接口（点写 / 点读 / 流式三类操作）
//   - Resilient[T]：弹性装饰器，把点操作送入重试引擎，流式操作原样转发
//   - MongoTable[T] / MemTable[T]：MongoDB 实现与进程内实现，共用同一套
//     文档编解码，行为可互换（内存实现主要服务测试与本地开发）
//   - DefaultClassifier：默认错误分类器，决定一个失败是重试还是放弃
//
// 存储实现自身不做重试，瞬时失败原样上抛；弹性语义只存在于装饰层，
// 按写 / 读两套预算分别配置。
//
// # 文档模型
//
// 实体的 bson 字段平铺存储，另加三个保留字段：_pk / _rk 是键的存储层副本，
// _ver 是乐观并发版本号（插入为 1，每次写操作加一）。实体字段不得占用
// 保留字段名，违者返回 ErrReservedField。
//
// Merge 系列的"只覆盖出现的字段"语义由 bson tag 的 omitempty 承载：
// 带 omitempty 的零值字段不会出现在序列化结果中，也就不会覆盖已有值。
//
// # 基本用法
//
//	inner, err := xtable.NewMongoTable[Order](client.Database("app").Collection("orders"))
//	if err != nil { ... }
//
//	table, err := xtable.NewResilient(inner,
//	    xtable.WithWriteAttempts(5),
//	    xtable.WithRetryDelay(100*time.Millisecond),
//	)
//	if err != nil { ... }
//
//	order, err := table.Get(ctx, "tenant-a", "order-1")
//
// 分类器可通过 WithClassifier 替换；自定义分类器只需实现
// xretry.Classifier（纯函数，错误进、判定出）。
package xtable
