package xtable

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/omeyang/tablekit/internal/tableopt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// MemTable 是 Table 的进程内实现，读写全部在内存中完成。
//
// 主要用于测试与本地开发：与 MongoTable 共用同一套文档编解码
// （含保留字段与版本语义），行为可互换。互斥锁保护全部状态，
// 可并发使用；但它不是持久化存储，进程退出数据即丢失。
type MemTable[T Entity] struct {
	name string

	mu      sync.RWMutex
	created bool
	rows    map[string]map[string]bson.M // partitionKey -> rowKey -> 存储文档
}

// NewMemTable 创建内存表。
func NewMemTable[T Entity](name string) *MemTable[T] {
	return &MemTable[T]{
		name: name,
		rows: make(map[string]map[string]bson.M),
	}
}

// Name 返回表名。
func (m *MemTable[T]) Name() string {
	return m.name
}

func guardCtx(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return ctx.Err()
}

// partition 返回分区 map，必要时创建。调用方须持有写锁。
func (m *MemTable[T]) partition(pk string) map[string]bson.M {
	p, ok := m.rows[pk]
	if !ok {
		p = make(map[string]bson.M)
		m.rows[pk] = p
	}
	return p
}

// sortedRowKeys 返回分区内升序排列的行键。调用方须持有读锁。
func (m *MemTable[T]) sortedRowKeys(pk string) []string {
	p := m.rows[pk]
	keys := make([]string, 0, len(p))
	for rk := range p {
		keys = append(keys, rk)
	}
	sort.Strings(keys)
	return keys
}

// sortedPartitionKeys 返回升序排列的分区键。调用方须持有读锁。
func (m *MemTable[T]) sortedPartitionKeys() []string {
	keys := make([]string, 0, len(m.rows))
	for pk := range m.rows {
		keys = append(keys, pk)
	}
	sort.Strings(keys)
	return keys
}

// mergeInto 把实体字段合并进已有文档并递增版本。
func mergeInto[T Entity](doc bson.M, entity T) (bson.M, error) {
	fields, err := entityFields(entity)
	if err != nil {
		return nil, err
	}
	next := make(bson.M, len(doc)+len(fields))
	for k, v := range doc {
		next[k] = v
	}
	for k, v := range fields {
		next[k] = v
	}
	next[fieldVersion] = docVersion(doc) + 1
	return next, nil
}

// =============================================================================
// 点写操作
// =============================================================================

func (m *MemTable[T]) Insert(ctx context.Context, entity T) error {
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

	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.partition(entity.PartitionKey())
	if _, ok := p[entity.RowKey()]; ok {
		return fmt.Errorf("%w: %s/%s", ErrConflict, entity.PartitionKey(), entity.RowKey())
	}
	p[entity.RowKey()] = doc
	return nil
}

func (m *MemTable[T]) InsertBatch(ctx context.Context, entities []T) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}
	if len(entities) == 0 {
		return ErrEmptyBatch
	}

	docs := make([]bson.M, len(entities))
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

	m.mu.Lock()
	defer m.mu.Unlock()

	// 整批先校验再写入：任一键冲突则不落任何一条。
	for _, e := range entities {
		if _, ok := m.rows[e.PartitionKey()][e.RowKey()]; ok {
			return fmt.Errorf("%w: %s/%s", ErrConflict, e.PartitionKey(), e.RowKey())
		}
	}
	for i, e := range entities {
		m.partition(e.PartitionKey())[e.RowKey()] = docs[i]
	}
	return nil
}

func (m *MemTable[T]) InsertOrMerge(ctx context.Context, entity T) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}
	if err := badKeysError(entity); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.partition(entity.PartitionKey())
	if existing, ok := p[entity.RowKey()]; ok {
		merged, err := mergeInto(existing, entity)
		if err != nil {
			return err
		}
		p[entity.RowKey()] = merged
		return nil
	}

	doc, err := storedDoc(entity, 1)
	if err != nil {
		return err
	}
	p[entity.RowKey()] = doc
	return nil
}

func (m *MemTable[T]) InsertOrReplace(ctx context.Context, entity T) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}
	if err := badKeysError(entity); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.partition(entity.PartitionKey())
	version := int64(1)
	if existing, ok := p[entity.RowKey()]; ok {
		version = docVersion(existing) + 1
	}
	doc, err := storedDoc(entity, version)
	if err != nil {
		return err
	}
	p[entity.RowKey()] = doc
	return nil
}

func (m *MemTable[T]) Replace(ctx context.Context, entity T) error {
	return m.replaceLocked(ctx, entity, nil)
}

func (m *MemTable[T]) ReplaceIfMatch(ctx context.Context, entity T, version int64) error {
	return m.replaceLocked(ctx, entity, &version)
}

// replaceLocked 整体替换已有实体，expect 非 nil 时附带版本前置条件。
func (m *MemTable[T]) replaceLocked(ctx context.Context, entity T, expect *int64) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}
	if err := badKeysError(entity); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.rows[entity.PartitionKey()]
	existing, ok := p[entity.RowKey()]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, entity.PartitionKey(), entity.RowKey())
	}
	if expect != nil && docVersion(existing) != *expect {
		return fmt.Errorf("%w: %s/%s", ErrPreconditionFailed, entity.PartitionKey(), entity.RowKey())
	}

	doc, err := storedDoc(entity, docVersion(existing)+1)
	if err != nil {
		return err
	}
	p[entity.RowKey()] = doc
	return nil
}

func (m *MemTable[T]) Merge(ctx context.Context, entity T) error {
	return m.mergeLocked(ctx, entity, nil)
}

func (m *MemTable[T]) MergeIfMatch(ctx context.Context, entity T, version int64) error {
	return m.mergeLocked(ctx, entity, &version)
}

func (m *MemTable[T]) mergeLocked(ctx context.Context, entity T, expect *int64) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}
	if err := badKeysError(entity); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.rows[entity.PartitionKey()]
	existing, ok := p[entity.RowKey()]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, entity.PartitionKey(), entity.RowKey())
	}
	if expect != nil && docVersion(existing) != *expect {
		return fmt.Errorf("%w: %s/%s", ErrPreconditionFailed, entity.PartitionKey(), entity.RowKey())
	}

	merged, err := mergeInto(existing, entity)
	if err != nil {
		return err
	}
	p[entity.RowKey()] = merged
	return nil
}

func (m *MemTable[T]) Delete(ctx context.Context, entity T) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}
	if err := badKeysError(entity); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.rows[entity.PartitionKey()]
	if _, ok := p[entity.RowKey()]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, entity.PartitionKey(), entity.RowKey())
	}
	delete(p, entity.RowKey())
	return nil
}

func (m *MemTable[T]) DeleteIfMatch(ctx context.Context, entity T, version int64) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}
	if err := badKeysError(entity); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.rows[entity.PartitionKey()]
	existing, ok := p[entity.RowKey()]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, entity.PartitionKey(), entity.RowKey())
	}
	if docVersion(existing) != version {
		return fmt.Errorf("%w: %s/%s", ErrPreconditionFailed, entity.PartitionKey(), entity.RowKey())
	}
	delete(p, entity.RowKey())
	return nil
}

func (m *MemTable[T]) DeleteIfExists(ctx context.Context, entity T) (bool, error) {
	if err := guardCtx(ctx); err != nil {
		return false, err
	}
	if err := badKeysError(entity); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.rows[entity.PartitionKey()]
	if _, ok := p[entity.RowKey()]; !ok {
		return false, nil
	}
	delete(p, entity.RowKey())
	return true, nil
}

func (m *MemTable[T]) DeleteBatch(ctx context.Context, entities []T) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}
	if len(entities) == 0 {
		return ErrEmptyBatch
	}
	for _, e := range entities {
		if err := badKeysError(e); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entities {
		delete(m.rows[e.PartitionKey()], e.RowKey())
	}
	return nil
}

func (m *MemTable[T]) Apply(ctx context.Context, mutations []Mutation[T]) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}
	if len(mutations) == 0 {
		return ErrEmptyBatch
	}

	pk := mutations[0].Entity.PartitionKey()
	for _, mut := range mutations {
		if err := badKeysError(mut.Entity); err != nil {
			return err
		}
		if mut.Entity.PartitionKey() != pk {
			return fmt.Errorf("%w: mutations span multiple partitions", ErrBadRequest)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// 在分区副本上逐条执行，全部成功后再整体替换——批次原子生效。
	staged := make(map[string]bson.M, len(m.rows[pk]))
	for rk, doc := range m.rows[pk] {
		staged[rk] = doc
	}

	for _, mut := range mutations {
		rk := mut.Entity.RowKey()
		existing, ok := staged[rk]

		switch mut.Op {
		case MutationInsert:
			if ok {
				return fmt.Errorf("%w: %s/%s", ErrConflict, pk, rk)
			}
			doc, err := storedDoc(mut.Entity, 1)
			if err != nil {
				return err
			}
			staged[rk] = doc

		case MutationReplace:
			if !ok {
				return fmt.Errorf("%w: %s/%s", ErrNotFound, pk, rk)
			}
			doc, err := storedDoc(mut.Entity, docVersion(existing)+1)
			if err != nil {
				return err
			}
			staged[rk] = doc

		case MutationMerge:
			if !ok {
				return fmt.Errorf("%w: %s/%s", ErrNotFound, pk, rk)
			}
			merged, err := mergeInto(existing, mut.Entity)
			if err != nil {
				return err
			}
			staged[rk] = merged

		case MutationDelete:
			if !ok {
				return fmt.Errorf("%w: %s/%s", ErrNotFound, pk, rk)
			}
			delete(staged, rk)

		default:
			return fmt.Errorf("%w: unknown mutation op %d", ErrBadRequest, mut.Op)
		}
	}

	m.rows[pk] = staged
	return nil
}

func (m *MemTable[T]) CreateIfNotExists(ctx context.Context) (bool, error) {
	if err := guardCtx(ctx); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.created {
		return false, nil
	}
	m.created = true
	return true, nil
}

// =============================================================================
// 点读操作
// =============================================================================

func (m *MemTable[T]) Get(ctx context.Context, partitionKey, rowKey string) (T, error) {
	var zero T
	if err := guardCtx(ctx); err != nil {
		return zero, err
	}

	m.mu.RLock()
	doc, ok := m.rows[partitionKey][rowKey]
	m.mu.RUnlock()

	if !ok {
		return zero, fmt.Errorf("%w: %s/%s", ErrNotFound, partitionKey, rowKey)
	}
	return decodeEntity[T](doc)
}

func (m *MemTable[T]) GetPartition(ctx context.Context, partitionKey string, filter Filter[T]) ([]T, error) {
	if err := guardCtx(ctx); err != nil {
		return nil, err
	}

	docs := m.snapshotPartition(partitionKey, 0)
	return decodeFiltered(docs, filter)
}

func (m *MemTable[T]) First(ctx context.Context, partitionKey string) (T, error) {
	var zero T
	if err := guardCtx(ctx); err != nil {
		return zero, err
	}

	docs := m.snapshotPartition(partitionKey, 1)
	if len(docs) == 0 {
		return zero, fmt.Errorf("%w: partition %s is empty", ErrNotFound, partitionKey)
	}
	return decodeEntity[T](docs[0])
}

func (m *MemTable[T]) GetTop(ctx context.Context, partitionKey string, n int) ([]T, error) {
	if err := guardCtx(ctx); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: top count must be >= 1", ErrBadRequest)
	}

	return decodeFiltered[T](m.snapshotPartition(partitionKey, n), nil)
}

func (m *MemTable[T]) QueryTop(ctx context.Context, q Query, n int) ([]T, error) {
	if err := guardCtx(ctx); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: top count must be >= 1", ErrBadRequest)
	}

	q.Limit = n
	docs := m.collect(q)
	return decodeFiltered[T](docs, nil)
}

func (m *MemTable[T]) GetByKeys(ctx context.Context, partitionKey string, rowKeys []string, pageSize int, filter Filter[T]) ([]T, error) {
	if err := guardCtx(ctx); err != nil {
		return nil, err
	}
	if _, err := tableopt.ValidatePageSize(pageSize); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, err)
	}

	m.mu.RLock()
	docs := make([]bson.M, 0, len(rowKeys))
	for _, rk := range rowKeys {
		if doc, ok := m.rows[partitionKey][rk]; ok {
			docs = append(docs, doc)
		}
	}
	m.mu.RUnlock()

	return decodeFiltered(docs, filter)
}

func (m *MemTable[T]) Exists(ctx context.Context, partitionKey, rowKey string) (bool, error) {
	if err := guardCtx(ctx); err != nil {
		return false, err
	}

	m.mu.RLock()
	_, ok := m.rows[partitionKey][rowKey]
	m.mu.RUnlock()
	return ok, nil
}

func (m *MemTable[T]) Query(ctx context.Context, q Query, filter Filter[T]) ([]T, error) {
	if err := guardCtx(ctx); err != nil {
		return nil, err
	}
	return decodeFiltered(m.collect(q), filter)
}

func (m *MemTable[T]) QueryE(ctx context.Context, q Query, filter func(ctx context.Context, entity T) (bool, error)) ([]T, error) {
	if err := guardCtx(ctx); err != nil {
		return nil, err
	}

	docs := m.collect(q)
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		entity, err := decodeEntity[T](doc)
		if err != nil {
			return nil, err
		}
		if filter != nil {
			keep, err := filter(ctx, entity)
			if err != nil {
				return nil, err
			}
			if !keep {
				continue
			}
		}
		out = append(out, entity)
	}
	return out, nil
}

// =============================================================================
// 流式 / 批量消费操作
// =============================================================================

func (m *MemTable[T]) ScanPartition(ctx context.Context, partitionKey string, chunkSize int, fn func(ctx context.Context, chunk []T) error) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}

	docs := m.snapshotPartition(partitionKey, 0)
	return m.emitChunks(ctx, docs, chunkSize, fn)
}

func (m *MemTable[T]) ScanAll(ctx context.Context, chunkSize int, fn func(ctx context.Context, chunk []T) error) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}

	m.mu.RLock()
	var docs []bson.M
	for _, pk := range m.sortedPartitionKeys() {
		for _, rk := range m.sortedRowKeys(pk) {
			docs = append(docs, m.rows[pk][rk])
		}
	}
	m.mu.RUnlock()

	return m.emitChunks(ctx, docs, chunkSize, fn)
}

func (m *MemTable[T]) FindFirst(ctx context.Context, partitionKey string, match Filter[T]) (T, error) {
	var zero T
	if err := guardCtx(ctx); err != nil {
		return zero, err
	}

	docs := m.snapshotPartition(partitionKey, 0)
	for _, doc := range docs {
		entity, err := decodeEntity[T](doc)
		if err != nil {
			return zero, err
		}
		if match == nil || match(entity) {
			return entity, nil
		}
	}
	return zero, fmt.Errorf("%w: no match in partition %s", ErrNotFound, partitionKey)
}

func (m *MemTable[T]) Page(ctx context.Context, token string, pageSize int) (*PageResult[T], error) {
	if err := guardCtx(ctx); err != nil {
		return nil, err
	}
	size, err := tableopt.ValidatePageSize(pageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadRequest, err)
	}

	var afterPK, afterRK string
	if token != "" {
		afterPK, afterRK, err = tableopt.DecodeToken(token)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrBadRequest, err)
		}
	}

	m.mu.RLock()
	// 多取一条以判断是否还有下一页。
	docs := make([]bson.M, 0, size+1)
	for _, pk := range m.sortedPartitionKeys() {
		if pk < afterPK {
			continue
		}
		for _, rk := range m.sortedRowKeys(pk) {
			if pk == afterPK && rk <= afterRK {
				continue
			}
			docs = append(docs, m.rows[pk][rk])
			if len(docs) > size {
				break
			}
		}
		if len(docs) > size {
			break
		}
	}
	m.mu.RUnlock()

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

func (m *MemTable[T]) ExecuteQuery(ctx context.Context, q Query, yield func(entity T) (bool, error)) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}

	for _, doc := range m.collect(q) {
		entity, err := decodeEntity[T](doc)
		if err != nil {
			return err
		}
		keep, err := yield(entity)
		if err != nil {
			return err
		}
		if !keep {
			return nil
		}
	}
	return nil
}

func (m *MemTable[T]) EnsureTable(ctx context.Context) error {
	if err := guardCtx(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	m.created = true
	m.mu.Unlock()
	return nil
}

// =============================================================================
// 内部辅助
// =============================================================================

// snapshotPartition 返回分区内按行键升序的文档快照，limit 为 0 表示全部。
func (m *MemTable[T]) snapshotPartition(pk string, limit int) []bson.M {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := m.sortedRowKeys(pk)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	docs := make([]bson.M, 0, len(keys))
	for _, rk := range keys {
		docs = append(docs, m.rows[pk][rk])
	}
	return docs
}

// collect 按查询条件收集文档（先分区键、再行键排序，Descending 反转行序）。
func (m *MemTable[T]) collect(q Query) []bson.M {
	m.mu.RLock()
	defer m.mu.RUnlock()

	partitions := m.sortedPartitionKeys()
	if q.Partition != "" {
		partitions = []string{q.Partition}
	}

	var docs []bson.M
	for _, pk := range partitions {
		keys := m.sortedRowKeys(pk)
		if q.Descending {
			for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
		for _, rk := range keys {
			if q.RowPrefix != "" && !strings.HasPrefix(rk, q.RowPrefix) {
				continue
			}
			docs = append(docs, m.rows[pk][rk])
			if q.Limit > 0 && len(docs) >= q.Limit {
				return docs
			}
		}
	}
	return docs
}

// emitChunks 把文档快照按块解码并交给消费者。
func (m *MemTable[T]) emitChunks(ctx context.Context, docs []bson.M, chunkSize int, fn func(ctx context.Context, chunk []T) error) error {
	size := tableopt.NormalizeChunkSize(chunkSize)

	for start := 0; start < len(docs); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + size
		if end > len(docs) {
			end = len(docs)
		}
		chunk, err := decodeFiltered[T](docs[start:end], nil)
		if err != nil {
			return err
		}
		if err := fn(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

// decodeFiltered 解码文档列表并应用可选过滤器。
func decodeFiltered[T Entity](docs []bson.M, filter Filter[T]) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		entity, err := decodeEntity[T](doc)
		if err != nil {
			return nil, err
		}
		if filter != nil && !filter(entity) {
			continue
		}
		out = append(out, entity)
	}
	return out, nil
}
