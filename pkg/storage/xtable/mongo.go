package xtable

import (
	"context"
	"errors"
	"fmt"

	"github.com/omeyang/tablekit/internal/tableopt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// mongoNamespaceExistsCode 是 MongoDB 的 NamespaceExists 服务端错误码。
const mongoNamespaceExistsCode = 48

// collectionAPI 抽象 *mongo.Collection 中本包用到的方法，便于测试注入。
type collectionAPI interface {
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
	InsertMany(ctx context.Context, documents any, opts ...options.Lister[options.InsertManyOptions]) (*mongo.InsertManyResult, error)
	UpdateOne(ctx context.Context, filter any, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any, opts ...options.Lister[options.DeleteOneOptions]) (*mongo.DeleteResult, error)
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) *mongo.SingleResult
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error)
	CountDocuments(ctx context.Context, filter any, opts ...options.Lister[options.CountOptions]) (int64, error)
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...options.Lister[options.BulkWriteOptions]) (*mongo.BulkWriteResult, error)
}

// databaseAPI 抽象 *mongo.Database 中本包用到的管理方法。
type databaseAPI interface {
	CreateCollection(ctx context.Context, name string, opts ...options.Lister[options.CreateCollectionOptions]) error
	ListCollectionNames(ctx context.Context, filter any, opts ...options.Lister[options.ListCollectionsOptions]) ([]string, error)
}

// indexAPI 抽象 mongo.IndexView 中本包用到的方法。
type indexAPI interface {
	CreateOne(ctx context.Context, model mongo.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error)
}

// MongoTable 是 Table 的 MongoDB 实现。
//
// 文档模型：实体的 bson 字段平铺存储，另加三个保留字段——
// _pk / _rk 是键的存储层副本（实体自身也把键作为普通字段携带），
// _ver 是乐观并发版本号（插入为 1，每次写操作加一）。
// (_pk, _rk) 上建唯一复合索引，见 EnsureTable。
//
// 本实现不做重试：瞬时失败原样上抛，交给 Resilient 装饰器处理。
type MongoTable[T Entity] struct {
	name string
	coll collectionAPI
	db   databaseAPI
	idx  indexAPI
}

// NewMongoTable 基于已有集合创建 MongoDB 表。
func NewMongoTable[T Entity](coll *mongo.Collection) (*MongoTable[T], error) {
	if coll == nil {
		return nil, ErrNilCollection
	}
	return &MongoTable[T]{
		name: coll.Name(),
		coll: coll,
		db:   coll.Database(),
		idx:  coll.Indexes(),
	}, nil
}

// newMongoTable 注入抽象接口，供测试使用。
func newMongoTable[T Entity](name string, coll collectionAPI, db databaseAPI, idx indexAPI) *MongoTable[T] {
	return &MongoTable[T]{name: name, coll: coll, db: db, idx: idx}
}

// Name 返回集合名称。
func (t *MongoTable[T]) Name() string {
	return t.name
}

// keyFilter 构造按复合键定位单条文档的过滤器。
func keyFilter(partitionKey, rowKey string) bson.M {
	return bson.M{fieldPartition: partitionKey, fieldRow: rowKey}
}

// mapInsertError 把重复键错误翻译为 ErrConflict。
func mapInsertError(err error, e Entity) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s/%s", ErrConflict, e.PartitionKey(), e.RowKey())
	}
	return err
}

// replacePipeline 构造整体替换的聚合管道更新。
//
// $replaceWith 丢弃旧文档的全部字段（普通 $set 做不到这一点——
// 新实体不再携带的陈旧字段会原样留下），$mergeObjects 把保留字段
// 放回，_ver 在旧值上加一（upsert 插入路径上旧值不存在，
// $ifNull 回落到 0，得到初始版本 1）。
//
// 实体字段值逐一包进 $literal：管道上下文里裸值会被当作表达式求值，
// 以 "$" 开头的字符串会被误解为字段路径。
func replacePipeline(partitionKey, rowKey string, fields bson.M) mongo.Pipeline {
	literal := bson.M{}
	for k, v := range fields {
		literal[k] = bson.M{"$literal": v}
	}

	reserved := bson.M{
		fieldPartition: partitionKey,
		fieldRow:       rowKey,
		fieldVersion: bson.M{"$add": bson.A{
			bson.M{"$ifNull": bson.A{"$" + fieldVersion, 0}},
			1,
		}},
	}

	return mongo.Pipeline{
		{{Key: "$replaceWith", Value: bson.M{"$mergeObjects": bson.A{literal, reserved}}}},
	}
}

// mergeUpdate 构造字段合并更新：只覆盖出现的字段并递增版本。
func mergeUpdate(fields bson.M) bson.M {
	update := bson.M{"$inc": bson.M{fieldVersion: 1}}
	if len(fields) > 0 {
		update["$set"] = fields
	}
	return update
}

// disambiguateMiss 区分"文档不存在"与"版本不匹配"。
// 带版本条件的更新 / 删除未命中时，补一次按键的存在性检查。
func (t *MongoTable[T]) disambiguateMiss(ctx context.Context, e Entity) error {
	n, err := t.coll.CountDocuments(ctx, keyFilter(e.PartitionKey(), e.RowKey()), options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, e.PartitionKey(), e.RowKey())
	}
	return fmt.Errorf("%w: %s/%s", ErrPreconditionFailed, e.PartitionKey(), e.RowKey())
}

// =============================================================================
// 点写操作
// =============================================================================

func (t *MongoTable[T]) Insert(ctx context.Context, entity T) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}
	if err := badKeysError(entity); err != nil {
		return err
	}

	doc, err := storedDoc(entity, 1)
	if err != nil {
		return err
	}
	if _, err := t.coll.InsertOne(ctx, doc); err != nil {
		return mapInsertError(err, entity)
	}
	return nil
}

func (t *MongoTable[T]) InsertBatch(ctx context.Context, entities []T) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}
	if len(entities) == 0 {
		return ErrEmptyBatch
	}

	docs := make([]any, len(entities))
	for i, e := range entities {
		if err := badKeysError(e); err != nil {
			return err
		}
		doc, err := storedDoc(e, 1)
		if err != nil {
			return err
		}
		docs[i] = doc
	}

	if _, err := t.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: duplicate key in batch", ErrConflict)
		}
		return err
	}
	return nil
}

func (t *MongoTable[T]) InsertOrMerge(ctx context.Context, entity T) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}
	if err := badKeysError(entity); err != nil {
		return err
	}

	fields, err := entityFields(entity)
	if err != nil {
		return err
	}

	update := mergeUpdate(fields)
	update["$setOnInsert"] = bson.M{
		fieldPartition: entity.PartitionKey(),
		fieldRow:       entity.RowKey(),
	}

	_, err = t.coll.UpdateOne(ctx,
		keyFilter(entity.PartitionKey(), entity.RowKey()),
		update,
		options.UpdateOne().SetUpsert(true),
	)
	return mapInsertError(err, entity)
}

func (t *MongoTable[T]) InsertOrReplace(ctx context.Context, entity T) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}
	if err := badKeysError(entity); err != nil {
		return err
	}

	fields, err := entityFields(entity)
	if err != nil {
		return err
	}

	_, err = t.coll.UpdateOne(ctx,
		keyFilter(entity.PartitionKey(), entity.RowKey()),
		replacePipeline(entity.PartitionKey(), entity.RowKey(), fields),
		options.UpdateOne().SetUpsert(true),
	)
	return mapInsertError(err, entity)
}

func (t *MongoTable[T]) Replace(ctx context.Context, entity T) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}
	if err := badKeysError(entity); err != nil {
		return err
	}

	fields, err := entityFields(entity)
	if err != nil {
		return err
	}

	res, err := t.coll.UpdateOne(ctx,
		keyFilter(entity.PartitionKey(), entity.RowKey()),
		replacePipeline(entity.PartitionKey(), entity.RowKey(), fields),
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, entity.PartitionKey(), entity.RowKey())
	}
	return nil
}

func (t *MongoTable[T]) ReplaceIfMatch(ctx context.Context, entity T, version int64) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}
	if err := badKeysError(entity); err != nil {
		return err
	}

	fields, err := entityFields(entity)
	if err != nil {
		return err
	}

	filter := keyFilter(entity.PartitionKey(), entity.RowKey())
	filter[fieldVersion] = version

	res, err := t.coll.UpdateOne(ctx, filter,
		replacePipeline(entity.PartitionKey(), entity.RowKey(), fields))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return t.disambiguateMiss(ctx, entity)
	}
	return nil
}

func (t *MongoTable[T]) Merge(ctx context.Context, entity T) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}
	if err := badKeysError(entity); err != nil {
		return err
	}

	fields, err := entityFields(entity)
	if err != nil {
		return err
	}

	res, err := t.coll.UpdateOne(ctx,
		keyFilter(entity.PartitionKey(), entity.RowKey()),
		mergeUpdate(fields),
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, entity.PartitionKey(), entity.RowKey())
	}
	return nil
}

func (t *MongoTable[T]) MergeIfMatch(ctx context.Context, entity T, version int64) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}
	if err := badKeysError(entity); err != nil {
		return err
	}

	fields, err := entityFields(entity)
	if err != nil {
		return err
	}

	filter := keyFilter(entity.PartitionKey(), entity.RowKey())
	filter[fieldVersion] = version

	res, err := t.coll.UpdateOne(ctx, filter, mergeUpdate(fields))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return t.disambiguateMiss(ctx, entity)
	}
	return nil
}

func (t *MongoTable[T]) Delete(ctx context.Context, entity T) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}
	if err := badKeysError(entity); err != nil {
		return err
	}

	res, err := t.coll.DeleteOne(ctx, keyFilter(entity.PartitionKey(), entity.RowKey()))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, entity.PartitionKey(), entity.RowKey())
	}
	return nil
}

func (t *MongoTable[T]) DeleteIfMatch(ctx context.Context, entity T, version int64) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}
	if err := badKeysError(entity); err != nil {
		return err
	}

	filter := keyFilter(entity.PartitionKey(), entity.RowKey())
	filter[fieldVersion] = version

	res, err := t.coll.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return t.disambiguateMiss(ctx, entity)
	}
	return nil
}

func (t *MongoTable[T]) DeleteIfExists(ctx context.Context, entity T) (bool, error) {
	if err := guardCtx(ctx); err != nil {
		return false, err
	}
	if err := badKeysError(entity); err != nil {
		return false, err
	}

	res, err := t.coll.DeleteOne(ctx, keyFilter(entity.PartitionKey(), entity.RowKey()))
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (t *MongoTable[T]) DeleteBatch(ctx context.Context, entities []T) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}
	if len(entities) == 0 {
		return ErrEmptyBatch
	}

	models := make([]mongo.WriteModel, len(entities))
	for i, e := range entities {
		if err := badKeysError(e); err != nil {
			return err
		}
		models[i] = mongo.NewDeleteOneModel().SetFilter(keyFilter(e.PartitionKey(), e.RowKey()))
	}

	// 缺失的键被忽略，因此不检查 DeletedCount。
	_, err := t.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return err
}

func (t *MongoTable[T]) Apply(ctx context.Context, mutations []Mutation[T]) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}
	if len(mutations) == 0 {
		return ErrEmptyBatch
	}

	pk := mutations[0].Entity.PartitionKey()
	models := make([]mongo.WriteModel, 0, len(mutations))
	var wantMatched, wantDeleted int64

	for _, mut := range mutations {
		e := mut.Entity
		if err := badKeysError(e); err != nil {
			return err
		}
		if e.PartitionKey() != pk {
			return fmt.Errorf("%w: mutations span multiple partitions", ErrBadRequest)
		}

		switch mut.Op {
		case MutationInsert:
			doc, err := storedDoc(e, 1)
			if err != nil {
				return err
			}
			models = append(models, mongo.NewInsertOneModel().SetDocument(doc))

		case MutationReplace:
			fields, err := entityFields(e)
			if err != nil {
				return err
			}
			models = append(models, mongo.NewUpdateOneModel().
				SetFilter(keyFilter(pk, e.RowKey())).
				SetUpdate(replacePipeline(pk, e.RowKey(), fields)))
			wantMatched++

		case MutationMerge:
			fields, err := entityFields(e)
			if err != nil {
				return err
			}
			models = append(models, mongo.NewUpdateOneModel().
				SetFilter(keyFilter(pk, e.RowKey())).
				SetUpdate(mergeUpdate(fields)))
			wantMatched++

		case MutationDelete:
			models = append(models, mongo.NewDeleteOneModel().
				SetFilter(keyFilter(pk, e.RowKey())))
			wantDeleted++

		default:
			return fmt.Errorf("%w: unknown mutation op %d", ErrBadRequest, mut.Op)
		}
	}

	res, err := t.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: duplicate key in batch", ErrConflict)
		}
		return err
	}
	if res.MatchedCount < wantMatched || res.DeletedCount < wantDeleted {
		return fmt.Errorf("%w: batch target missing in partition %s", ErrNotFound, pk)
	}
	return nil
}

func (t *MongoTable[T]) CreateIfNotExists(ctx context.Context) (bool, error) {
	if err := guardCtx(ctx); err != nil {
		return false, err
	}

	if err := t.db.CreateCollection(ctx, t.name); err != nil {
		var srvErr mongo.ServerError
		if errors.As(err, &srvErr) && srvErr.HasErrorCode(mongoNamespaceExistsCode) {
			return false, nil
		}
		return false, err
	}
	if err := t.ensureKeyIndex(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// =============================================================================
// 点读操作
// =============================================================================

func (t *MongoTable[T]) Get(ctx context.Context, partitionKey, rowKey string) (T, error) {
	var zero T
	if err := guardCtx(ctx); err != nil {
		return zero, err
	}

	var doc bson.M
	err := t.coll.FindOne(ctx, keyFilter(partitionKey, rowKey)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return zero, fmt.Errorf("%w: %s/%s", ErrNotFound, partitionKey, rowKey)
	}
	if err != nil {
		return zero, err
	}
	return decodeEntity[T](doc)
}

func (t *MongoTable[T]) GetPartition(ctx context.Context, partitionKey string, filter Filter[T]) ([]T, error) {
	if err := guardCtx(ctx); err != nil {
		return nil, err
	}

	docs, err := t.findDocs(ctx,
		bson.M{fieldPartition: partitionKey},
		options.Find().SetSort(bson.D{{Key: fieldRow, Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	return decodeFiltered(docs, filter)
}

func (t *MongoTable[T]) First(ctx context.Context, partitionKey string) (T, error) {
	var zero T
	if err := guardCtx(ctx); err != nil {
		return zero, err
	}

	var doc bson.M
	err := t.coll.FindOne(ctx,
		bson.M{fieldPartition: partitionKey},
		options.FindOne().SetSort(bson.D{{Key: fieldRow, Value: 1}}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return zero, fmt.Errorf("%w: partition %s is empty", ErrNotFound, partitionKey)
	}
	if err != nil {
		return zero, err
	}
	return decodeEntity[T](doc)
}

func (t *MongoTable[T]) GetTop(ctx context.Context, partitionKey string, n int) ([]T, error) {
	if err := guardCtx(ctx); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: top count must be >= 1", ErrBadRequest)
	}

	docs, err := t.findDocs(ctx,
		bson.M{fieldPartition: partitionKey},
		options.Find().SetSort(bson.D{{Key: fieldRow, Value: 1}}).SetLimit(int64(n)),
	)
	if err != nil {
		return nil, err
	}
	return decodeFiltered[T](docs, nil)
}

func (t *MongoTable[T]) QueryTop(ctx context.Context, q Query, n int) ([]T, error) {
	if err := guardCtx(ctx); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: top count must be >= 1", ErrBadRequest)
	}

	q.Limit = n
	docs, err := t.findDocs(ctx, buildQueryFilter(q), queryFindOptions(q))
	if err != nil {
		return nil, err
	}
	return decodeFiltered[T](docs, nil)
}

func (t *MongoTable[T]) GetByKeys(ctx context.Context, partitionKey string, rowKeys []string, pageSize int, filter Filter[T]) ([]T, error) {
	if err := guardCtx(ctx); err != nil {
		return nil, err
	}
	size, err := tableopt.ValidatePageSize(pageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, err)
	}

	// 行键按 pageSize 分批下发，避免单个 $in 过大。
	out := make([]T, 0, len(rowKeys))
	for start := 0; start < len(rowKeys); start += size {
		end := start + size
		if end > len(rowKeys) {
			end = len(rowKeys)
		}

		docs, err := t.findDocs(ctx,
			bson.M{
				fieldPartition: partitionKey,
				fieldRow:       bson.M{"$in": rowKeys[start:end]},
			},
			options.Find().SetSort(bson.D{{Key: fieldRow, Value: 1}}),
		)
		if err != nil {
			return nil, err
		}
		batch, err := decodeFiltered(docs, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (t *MongoTable[T]) Exists(ctx context.Context, partitionKey, rowKey string) (bool, error) {
	if err := guardCtx(ctx); err != nil {
		return false, err
	}

	n, err := t.coll.CountDocuments(ctx, keyFilter(partitionKey, rowKey), options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *MongoTable[T]) Query(ctx context.Context, q Query, filter Filter[T]) ([]T, error) {
	if err := guardCtx(ctx); err != nil {
		return nil, err
	}

	docs, err := t.findDocs(ctx, buildQueryFilter(q), queryFindOptions(q))
	if err != nil {
		return nil, err
	}
	return decodeFiltered(docs, filter)
}

func (t *MongoTable[T]) QueryE(ctx context.Context, q Query, filter func(ctx context.Context, entity T) (bool, error)) ([]T, error) {
	if err := guardCtx(ctx); err != nil {
		return nil, err
	}

	var out []T
	err := t.forEachDoc(ctx, buildQueryFilter(q), queryFindOptions(q), func(doc bson.M) (bool, error) {
		entity, err := decodeEntity[T](doc)
		if err != nil {
			return false, err
		}
		if filter != nil {
			keep, err := filter(ctx, entity)
			if err != nil {
				return false, err
			}
			if !keep {
				return true, nil
			}
		}
		out = append(out, entity)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// 流式 / 批量消费操作
// =============================================================================

func (t *MongoTable[T]) ScanPartition(ctx context.Context, partitionKey string, chunkSize int, fn func(ctx context.Context, chunk []T) error) error {
	return t.scan(ctx,
		bson.M{fieldPartition: partitionKey},
		bson.D{{Key: fieldRow, Value: 1}},
		chunkSize, fn)
}

func (t *MongoTable[T]) ScanAll(ctx context.Context, chunkSize int, fn func(ctx context.Context, chunk []T) error) error {
	return t.scan(ctx,
		bson.M{},
		bson.D{{Key: fieldPartition, Value: 1}, {Key: fieldRow, Value: 1}},
		chunkSize, fn)
}

func (t *MongoTable[T]) scan(ctx context.Context, filter bson.M, sort bson.D, chunkSize int, fn func(ctx context.Context, chunk []T) error) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}

	size := tableopt.NormalizeChunkSize(chunkSize)
	chunk := make([]T, 0, size)

	err := t.forEachDoc(ctx, filter,
		options.Find().SetSort(sort).SetBatchSize(int32(size)),
		func(doc bson.M) (bool, error) {
			entity, err := decodeEntity[T](doc)
			if err != nil {
				return false, err
			}
			chunk = append(chunk, entity)
			if len(chunk) < size {
				return true, nil
			}
			if err := fn(ctx, chunk); err != nil {
				return false, err
			}
			chunk = make([]T, 0, size)
			return true, nil
		})
	if err != nil {
		return err
	}

	if len(chunk) > 0 {
		return fn(ctx, chunk)
	}
	return nil
}

func (t *MongoTable[T]) FindFirst(ctx context.Context, partitionKey string, match Filter[T]) (T, error) {
	var zero T
	if err := guardCtx(ctx); err != nil {
		return zero, err
	}

	var found *T
	err := t.forEachDoc(ctx,
		bson.M{fieldPartition: partitionKey},
		options.Find().SetSort(bson.D{{Key: fieldRow, Value: 1}}),
		func(doc bson.M) (bool, error) {
			entity, err := decodeEntity[T](doc)
			if err != nil {
				return false, err
			}
			if match == nil || match(entity) {
				found = &entity
				return false, nil
			}
			return true, nil
		})
	if err != nil {
		return zero, err
	}
	if found == nil {
		return zero, fmt.Errorf("%w: no match in partition %s", ErrNotFound, partitionKey)
	}
	return *found, nil
}

func (t *MongoTable[T]) Page(ctx context.Context, token string, pageSize int) (*PageResult[T], error) {
	if err := guardCtx(ctx); err != nil {
		return nil, err
	}
	size, err := tableopt.ValidatePageSize(pageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, err)
	}

	filter := bson.M{}
	if token != "" {
		pk, rk, err := tableopt.DecodeToken(token)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrBadRequest, err)
		}
		// 游标之后：分区键更大，或同分区内行键更大。
		filter["$or"] = bson.A{
			bson.M{fieldPartition: bson.M{"$gt": pk}},
			bson.M{fieldPartition: pk, fieldRow: bson.M{"$gt": rk}},
		}
	}

	// 多取一条以判断是否还有下一页。
	docs, err := t.findDocs(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: fieldPartition, Value: 1}, {Key: fieldRow, Value: 1}}).
			SetLimit(int64(size+1)),
	)
	if err != nil {
		return nil, err
	}

	more := len(docs) > size
	if more {
		docs = docs[:size]
	}

	items, err := decodeFiltered[T](docs, nil)
	if err != nil {
		return nil, err
	}

	result := &PageResult[T]{Items: items}
	if more && len(docs) > 0 {
		pk, rk := docKeys(docs[len(docs)-1])
		result.NextToken = tableopt.EncodeToken(pk, rk)
	}
	return result, nil
}

func (t *MongoTable[T]) ExecuteQuery(ctx context.Context, q Query, yield func(entity T) (bool, error)) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}

	return t.forEachDoc(ctx, buildQueryFilter(q), queryFindOptions(q), func(doc bson.M) (bool, error) {
		entity, err := decodeEntity[T](doc)
		if err != nil {
			return false, err
		}
		return yield(entity)
	})
}

func (t *MongoTable[T]) EnsureTable(ctx context.Context) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}

	names, err := t.db.ListCollectionNames(ctx, bson.M{"name": t.name})
	if err != nil {
		return err
	}
	if len(names) == 0 {
		if err := t.db.CreateCollection(ctx, t.name); err != nil {
			var srvErr mongo.ServerError
			if !errors.As(err, &srvErr) || !srvErr.HasErrorCode(mongoNamespaceExistsCode) {
				return err
			}
		}
	}
	return t.ensureKeyIndex(ctx)
}

// ensureKeyIndex 建 (_pk, _rk) 唯一复合索引，幂等。
func (t *MongoTable[T]) ensureKeyIndex(ctx context.Context) error {
	_, err := t.idx.CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: fieldPartition, Value: 1}, {Key: fieldRow, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// =============================================================================
// 内部辅助
// =============================================================================

// buildQueryFilter 把 Query 翻译为 MongoDB 过滤器。
// 行键前缀用区间表达（[prefix, 递增后的上界)），可走键索引。
func buildQueryFilter(q Query) bson.M {
	filter := bson.M{}
	if q.Partition != "" {
		filter[fieldPartition] = q.Partition
	}
	if q.RowPrefix != "" {
		lo, hi, bounded := tableopt.PrefixRange(q.RowPrefix)
		rng := bson.M{"$gte": lo}
		if bounded {
			rng["$lt"] = hi
		}
		filter[fieldRow] = rng
	}
	return filter
}

// queryFindOptions 把 Query 的排序与上限翻译为 Find 选项。
func queryFindOptions(q Query) options.Lister[options.FindOptions] {
	dir := 1
	if q.Descending {
		dir = -1
	}

	opts := options.Find().SetSort(bson.D{
		{Key: fieldPartition, Value: 1},
		{Key: fieldRow, Value: dir},
	})
	if q.Limit > 0 {
		opts = opts.SetLimit(int64(q.Limit))
	}
	return opts
}

// findDocs 执行查询并取回全部文档。
func (t *MongoTable[T]) findDocs(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) ([]bson.M, error) {
	cursor, err := t.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// forEachDoc 执行查询并逐条回调，回调返回 false 时提前停止。
func (t *MongoTable[T]) forEachDoc(ctx context.Context, filter any, opts options.Lister[options.FindOptions], fn func(doc bson.M) (bool, error)) error {
	cursor, err := t.coll.Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return err
		}
		keep, err := fn(doc)
		if err != nil {
			return err
		}
		if !keep {
			return nil
		}
	}
	return cursor.Err()
}
