package xtable

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// =============================================================================
// 测试实体
// =============================================================================

// order 测试用实体。Version 回填自存储层，不参与序列化。
type order struct {
	Tenant  string `bson:"tenant"`
	ID      string `bson:"id"`
	Status  string `bson:"status,omitempty"`
	Amount  int64  `bson:"amount,omitempty"`
	Version int64  `bson:"-"`
}

func (o order) PartitionKey() string { return o.Tenant }
func (o order) RowKey() string       { return o.ID }

func (o *order) SetVersion(version int64) { o.Version = version }

// badOrder 的 bson 字段与保留字段冲突。
type badOrder struct {
	Tenant string `bson:"tenant"`
	ID     string `bson:"id"`
	PK     string `bson:"_pk"`
}

func (o badOrder) PartitionKey() string { return o.Tenant }
func (o badOrder) RowKey() string       { return o.ID }

// =============================================================================
// Mock 实现 - 用于单元测试
// =============================================================================

// fakeTable 实现 Table[order]，按脚本逐次返回错误。
// errs[op] 是该操作逐次调用的错误脚本，越过脚本末尾返回 nil。
type fakeTable struct {
	mu    sync.Mutex
	calls map[string]int
	errs  map[string][]error
}

func newFakeTable() *fakeTable {
	return &fakeTable{calls: make(map[string]int), errs: make(map[string][]error)}
}

func (f *fakeTable) script(op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = errs
}

func (f *fakeTable) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// step 记录一次调用并返回脚本中对应位置的错误。
func (f *fakeTable) step(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.calls[op]
	f.calls[op] = n + 1
	script := f.errs[op]
	if n < len(script) {
		return script[n]
	}
	return nil
}

func (f *fakeTable) Name() string { return "fake" }

func (f *fakeTable) Insert(_ context.Context, _ order) error        { return f.step("insert") }
func (f *fakeTable) InsertBatch(_ context.Context, _ []order) error { return f.step("insert_batch") }
func (f *fakeTable) InsertOrMerge(_ context.Context, _ order) error { return f.step("insert_or_merge") }
func (f *fakeTable) InsertOrReplace(_ context.Context, _ order) error {
	return f.step("insert_or_replace")
}
func (f *fakeTable) Replace(_ context.Context, _ order) error { return f.step("replace") }
func (f *fakeTable) ReplaceIfMatch(_ context.Context, _ order, _ int64) error {
	return f.step("replace_if_match")
}
func (f *fakeTable) Merge(_ context.Context, _ order) error { return f.step("merge") }
func (f *fakeTable) MergeIfMatch(_ context.Context, _ order, _ int64) error {
	return f.step("merge_if_match")
}
func (f *fakeTable) Delete(_ context.Context, _ order) error { return f.step("delete") }
func (f *fakeTable) DeleteIfMatch(_ context.Context, _ order, _ int64) error {
	return f.step("delete_if_match")
}
func (f *fakeTable) DeleteIfExists(_ context.Context, _ order) (bool, error) {
	return false, f.step("delete_if_exists")
}
func (f *fakeTable) DeleteBatch(_ context.Context, _ []order) error { return f.step("delete_batch") }
func (f *fakeTable) Apply(_ context.Context, _ []Mutation[order]) error {
	return f.step("apply")
}
func (f *fakeTable) CreateIfNotExists(_ context.Context) (bool, error) {
	return true, f.step("create_if_not_exists")
}

func (f *fakeTable) Get(_ context.Context, _, _ string) (order, error) {
	return order{}, f.step("get")
}
func (f *fakeTable) GetPartition(_ context.Context, _ string, _ Filter[order]) ([]order, error) {
	return nil, f.step("get_partition")
}
func (f *fakeTable) First(_ context.Context, _ string) (order, error) {
	return order{}, f.step("first")
}
func (f *fakeTable) GetTop(_ context.Context, _ string, _ int) ([]order, error) {
	return nil, f.step("get_top")
}
func (f *fakeTable) QueryTop(_ context.Context, _ Query, _ int) ([]order, error) {
	return nil, f.step("query_top")
}
func (f *fakeTable) GetByKeys(_ context.Context, _ string, _ []string, _ int, _ Filter[order]) ([]order, error) {
	return nil, f.step("get_by_keys")
}
func (f *fakeTable) Exists(_ context.Context, _, _ string) (bool, error) {
	return false, f.step("exists")
}
func (f *fakeTable) Query(_ context.Context, _ Query, _ Filter[order]) ([]order, error) {
	return nil, f.step("query")
}
func (f *fakeTable) QueryE(_ context.Context, _ Query, _ func(context.Context, order) (bool, error)) ([]order, error) {
	return nil, f.step("query_e")
}

func (f *fakeTable) ScanPartition(_ context.Context, _ string, _ int, _ func(context.Context, []order) error) error {
	return f.step("scan_partition")
}
func (f *fakeTable) ScanAll(_ context.Context, _ int, _ func(context.Context, []order) error) error {
	return f.step("scan_all")
}
func (f *fakeTable) FindFirst(_ context.Context, _ string, _ Filter[order]) (order, error) {
	return order{}, f.step("find_first")
}
func (f *fakeTable) Page(_ context.Context, _ string, _ int) (*PageResult[order], error) {
	return &PageResult[order]{}, f.step("page")
}
func (f *fakeTable) ExecuteQuery(_ context.Context, _ Query, _ func(order) (bool, error)) error {
	return f.step("execute_query")
}
func (f *fakeTable) EnsureTable(_ context.Context) error { return f.step("ensure_table") }

// 编译期接口断言。
var _ Table[order] = (*fakeTable)(nil)
var _ Table[order] = (*MemTable[order])(nil)
var _ Table[order] = (*MongoTable[order])(nil)
var _ Table[order] = (*Resilient[order])(nil)

// =============================================================================
// Mock 实现 - MongoDB 抽象接口
// =============================================================================

// mockCollection 实现 collectionAPI，记录收到的参数并返回预置结果。
type mockCollection struct {
	insertOneErr error
	insertedDoc  any

	insertManyErr  error
	insertedDocs   any

	updateResult *mongo.UpdateResult
	updateErr    error
	gotFilter    any
	gotUpdate    any

	deleteResult *mongo.DeleteResult
	deleteErr    error

	findOneResult *mongo.SingleResult

	findDocs []any
	findErr  error
	findGot  any

	countN   int64
	countErr error

	bulkResult *mongo.BulkWriteResult
	bulkErr    error
	bulkModels []mongo.WriteModel
}

func (m *mockCollection) InsertOne(_ context.Context, document any, _ ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error) {
	m.insertedDoc = document
	if m.insertOneErr != nil {
		return nil, m.insertOneErr
	}
	return &mongo.InsertOneResult{}, nil
}

func (m *mockCollection) InsertMany(_ context.Context, documents any, _ ...options.Lister[options.InsertManyOptions]) (*mongo.InsertManyResult, error) {
	m.insertedDocs = documents
	if m.insertManyErr != nil {
		return nil, m.insertManyErr
	}
	return &mongo.InsertManyResult{}, nil
}

func (m *mockCollection) UpdateOne(_ context.Context, filter any, update any, _ ...options.Lister[options.UpdateOneOptions]) (*mongo.UpdateResult, error) {
	m.gotFilter = filter
	m.gotUpdate = update
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	if m.updateResult != nil {
		return m.updateResult, nil
	}
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (m *mockCollection) DeleteOne(_ context.Context, filter any, _ ...options.Lister[options.DeleteOneOptions]) (*mongo.DeleteResult, error) {
	m.gotFilter = filter
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	if m.deleteResult != nil {
		return m.deleteResult, nil
	}
	return &mongo.DeleteResult{DeletedCount: 1}, nil
}

func (m *mockCollection) FindOne(_ context.Context, filter any, _ ...options.Lister[options.FindOneOptions]) *mongo.SingleResult {
	m.gotFilter = filter
	return m.findOneResult
}

func (m *mockCollection) Find(_ context.Context, filter any, _ ...options.Lister[options.FindOptions]) (*mongo.Cursor, error) {
	m.findGot = filter
	if m.findErr != nil {
		return nil, m.findErr
	}
	docs := m.findDocs
	if docs == nil {
		docs = []any{}
	}
	cursor, err := mongo.NewCursorFromDocuments(docs, nil, nil)
	if err != nil {
		return nil, err
	}
	return cursor, nil
}

func (m *mockCollection) CountDocuments(_ context.Context, filter any, _ ...options.Lister[options.CountOptions]) (int64, error) {
	m.gotFilter = filter
	return m.countN, m.countErr
}

func (m *mockCollection) BulkWrite(_ context.Context, models []mongo.WriteModel, _ ...options.Lister[options.BulkWriteOptions]) (*mongo.BulkWriteResult, error) {
	m.bulkModels = models
	if m.bulkErr != nil {
		return nil, m.bulkErr
	}
	if m.bulkResult != nil {
		return m.bulkResult, nil
	}
	return &mongo.BulkWriteResult{}, nil
}

// mockDatabase 实现 databaseAPI。
type mockDatabase struct {
	createErr   error
	createdName string
	listNames   []string
	listErr     error
}

func (m *mockDatabase) CreateCollection(_ context.Context, name string, _ ...options.Lister[options.CreateCollectionOptions]) error {
	m.createdName = name
	return m.createErr
}

func (m *mockDatabase) ListCollectionNames(_ context.Context, _ any, _ ...options.Lister[options.ListCollectionsOptions]) ([]string, error) {
	return m.listNames, m.listErr
}

// mockIndexes 实现 indexAPI。
type mockIndexes struct {
	createErr error
	models    []mongo.IndexModel
}

func (m *mockIndexes) CreateOne(_ context.Context, model mongo.IndexModel, _ ...options.Lister[options.CreateIndexesOptions]) (string, error) {
	m.models = append(m.models, model)
	if m.createErr != nil {
		return "", m.createErr
	}
	return "_pk_1__rk_1", nil
}

// newMockMongoTable 组装一个注入 mock 的 MongoTable。
func newMockMongoTable(coll *mockCollection) (*MongoTable[order], *mockDatabase, *mockIndexes) {
	db := &mockDatabase{}
	idx := &mockIndexes{}
	return newMongoTable[order]("orders", coll, db, idx), db, idx
}
