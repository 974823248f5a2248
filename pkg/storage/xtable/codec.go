package xtable

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// 保留字段。实体自身的 bson 字段不得使用这些名字。
//
// 键字段与实体字段刻意冗余：实体把键作为普通字段携带（随实体一起
// 序列化 / 反序列化），_pk/_rk 是存储层为索引与定位维护的副本。
const (
	fieldPartition = "_pk"
	fieldRow       = "_rk"
	fieldVersion   = "_ver"
)

// entityFields 把实体序列化为字段文档（不含保留字段）。
//
// 经 bson.Marshal 往返，因此 bson tag（含 omitempty）完全生效：
// Merge 的"只覆盖出现的字段"语义正是由 omitempty 丢弃零值字段实现的。
func entityFields[T Entity](entity T) (bson.M, error) {
	raw, err := bson.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("xtable: marshal entity: %w", err)
	}

	var fields bson.M
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("xtable: unmarshal entity fields: %w", err)
	}

	for _, reserved := range []string{fieldPartition, fieldRow, fieldVersion} {
		if _, ok := fields[reserved]; ok {
			return nil, fmt.Errorf("%w: %q", ErrReservedField, reserved)
		}
	}
	delete(fields, "_id")
	return fields, nil
}

// storedDoc 构建一条完整的存储文档：实体字段 + 键副本 + 初始版本。
func storedDoc[T Entity](entity T, version int64) (bson.M, error) {
	fields, err := entityFields(entity)
	if err != nil {
		return nil, err
	}
	fields[fieldPartition] = entity.PartitionKey()
	fields[fieldRow] = entity.RowKey()
	fields[fieldVersion] = version
	return fields, nil
}

// decodeEntity 把存储文档还原为实体，并在实体实现 Versioned 时回填版本号。
func decodeEntity[T Entity](doc bson.M) (T, error) {
	var entity T

	version := docVersion(doc)

	fields := make(bson.M, len(doc))
	for k, v := range doc {
		switch k {
		case fieldPartition, fieldRow, fieldVersion, "_id":
			continue
		}
		fields[k] = v
	}

	raw, err := bson.Marshal(fields)
	if err != nil {
		return entity, fmt.Errorf("xtable: marshal stored fields: %w", err)
	}
	if err := bson.Unmarshal(raw, &entity); err != nil {
		return entity, fmt.Errorf("xtable: decode entity: %w", err)
	}

	if v, ok := any(&entity).(Versioned); ok {
		v.SetVersion(version)
	}
	return entity, nil
}

// docVersion 提取文档的版本号。
// bson 解码可能产出 int32 或 int64，统一归一化为 int64。
func docVersion(doc bson.M) int64 {
	switch v := doc[fieldVersion].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	default:
		return 0
	}
}

// docKeys 提取文档的键副本。
func docKeys(doc bson.M) (partitionKey, rowKey string) {
	pk, _ := doc[fieldPartition].(string)
	rk, _ := doc[fieldRow].(string)
	return pk, rk
}
