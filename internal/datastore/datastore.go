// Package datastore 定义了向量存储的统一门面：
// 入库前的分块装配、查询结果的截断与分组都在这一层完成，
// 具体的向量后端通过 VectorStore 接口插拔。
package datastore

import (
	"context"
	"encoding/json"
	"strconv"

	"qgr-retrieval-go/internal/model"
	"qgr-retrieval-go/internal/processing"
	"qgr-retrieval-go/pkg/embedding"
	"qgr-retrieval-go/pkg/log"
)

// DefaultTopK 是查询未指定 top_k 时的默认值。
const DefaultTopK = 5

// NothingProcessedMessage 是后端无任何返回时的哨兵提示，不视为错误。
const NothingProcessedMessage = "Nothing processed."

// VectorStore 是向量后端必须实现的五个操作。
// 新的后端是该接口的新实现，而不是继承链。
type VectorStore interface {
	// Upsert 插入全部分块，返回每个文档实际插入的分块数。
	Upsert(ctx context.Context, chunks map[string][]model.DocumentChunk) (map[string]int, error)
	// Query 并发执行全部查询；单个查询失败只影响该查询（空结果），
	// 输出顺序与输入顺序一致。
	Query(ctx context.Context, queries []model.QueryWithEmbedding) ([]model.QueryResult, error)
	// Delete 删除每个文档标识对应的全部分块；
	// 整批至少删掉一行才返回 true，后端出错一律返回 false。
	Delete(ctx context.Context, documentIDs []string) (bool, error)
	// RawUpsert 直接写入一行，不做任何装配，返回后端原始结果。
	RawUpsert(ctx context.Context, row model.EsChunkDocument, collection string) (json.RawMessage, error)
	// Flush 显式落盘（写入可能被后端缓冲），返回后端原始结果。
	Flush(ctx context.Context, collection string) (json.RawMessage, error)
}

// OversampleLimit 按精度档位计算后端搜索的过采样条数：
// 低精度 20 倍、中精度 10 倍、高精度不过采样，
// 给后续的截断阶段留出足够宽的候选池。
func OversampleLimit(topK int, precision model.SearchPrecision) int {
	switch precision {
	case model.PrecisionLow:
		return topK * 20
	case model.PrecisionMedium:
		return topK * 10
	default:
		return topK
	}
}

// DataStore 是面向上层的向量库门面，组合了装配器、向量模型与结果整形器。
// 除后端连接外不持有跨请求的可变状态，可被并发调用。
type DataStore struct {
	store     VectorStore
	embedder  embedding.Client
	assembler *processing.Assembler
	shaper    *Shaper
}

// New 创建一个新的 DataStore 门面。
func New(store VectorStore, embedder embedding.Client, assembler *processing.Assembler, shaper *Shaper) *DataStore {
	return &DataStore{
		store:     store,
		embedder:  embedder,
		assembler: assembler,
		shaper:    shaper,
	}
}

// Upsert 将文档列表装配为分块并写入后端，返回逐文档的入库结果。
// 装配失败的文档以错误形式出现在结果里，不会中断其余文档；
// 后端没有任何返回时规范化为空结果哨兵，绝不向调用方抛错。
func (d *DataStore) Upsert(ctx context.Context, documents []model.Document, chunkTokenSize int) model.UpsertResponse {
	chunks, failures := d.assembler.Assemble(ctx, documents, chunkTokenSize)

	var counts map[string]int
	if len(chunks) > 0 {
		var err error
		counts, err = d.store.Upsert(ctx, chunks)
		if err != nil {
			log.Errorf("[DataStore] 后端写入失败: %v", err)
			counts = nil
		}
	}

	statuses := make(map[string]model.UpsertStatus, len(counts)+len(failures))
	for docID, count := range counts {
		statuses[docID] = model.UpsertStatus{Count: strconv.Itoa(count)}
	}
	for docID, err := range failures {
		statuses[docID] = model.UpsertStatus{Error: err.Error()}
	}

	if len(statuses) == 0 {
		return model.UpsertResponse{
			DocumentID: map[string]model.UpsertStatus{},
			Message:    NothingProcessedMessage,
		}
	}

	return model.UpsertResponse{DocumentID: statuses}
}

// Query 将查询文本向量化后交给后端并发执行，
// 再对原始命中做精度相关的截断与按文档分组，返回最终的分组结果。
func (d *DataStore) Query(ctx context.Context, queries []model.Query) ([]model.QueryGroupResult, error) {
	texts := make([]string, 0, len(queries))
	for _, q := range queries {
		texts = append(texts, processing.Truncate(q.Query, processing.EmbedInputLimit))
	}

	vectors, err := d.embedder.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, err
	}

	queriesWithEmbedding := make([]model.QueryWithEmbedding, 0, len(queries))
	for i, q := range queries {
		if q.TopK <= 0 {
			q.TopK = DefaultTopK
		}
		queriesWithEmbedding = append(queriesWithEmbedding, model.QueryWithEmbedding{
			Query:     q,
			Embedding: vectors[i],
		})
	}

	response, err := d.store.Query(ctx, queriesWithEmbedding)
	if err != nil {
		return nil, err
	}

	return d.shaper.Shape(queries, response), nil
}

// Delete 按文档标识删除分块。后端错误不上抛，统一表现为 false。
func (d *DataStore) Delete(ctx context.Context, documentIDs []string) bool {
	ok, err := d.store.Delete(ctx, documentIDs)
	if err != nil {
		log.Errorf("[DataStore] 删除失败: %v", err)
		return false
	}
	return ok
}

// RawUpsert 是免装配的直写维护操作，结果不做任何整形。
func (d *DataStore) RawUpsert(ctx context.Context, row model.EsChunkDocument, collection string) (json.RawMessage, error) {
	return d.store.RawUpsert(ctx, row, collection)
}

// Flush 触发后端显式落盘。
func (d *DataStore) Flush(ctx context.Context, collection string) (json.RawMessage, error) {
	return d.store.Flush(ctx, collection)
}
