// Package es 提供了基于 Elasticsearch 的向量存储后端实现。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"qgr-retrieval-go/internal/config"
	"qgr-retrieval-go/internal/datastore"
	"qgr-retrieval-go/internal/model"
	"qgr-retrieval-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// OutputDim 是向量字段的固定维度。
const OutputDim = 384

// deleteScanSize 是按 document_id 反查主键时单次拉取的上限。
const deleteScanSize = 10000

// Store 是 datastore.VectorStore 的 Elasticsearch 实现。
// 每个 collection 对应一个索引，partition 以 keyword 字段承载；
// 行主键 _id 由 Elasticsearch 自动分配。
type Store struct {
	client            *elasticsearch.Client
	dims              int
	defaultCollection string
	defaultPartition  model.Partition
}

var _ datastore.VectorStore = (*Store)(nil)

// 与向量 schema 对齐的索引 mapping。向量已做 L2 归一化，使用 cosine 相似度。
const mappingTemplate = `{
	"mappings": {
		"properties": {
			"chunk_id": { "type": "keyword" },
			"document_id": { "type": "keyword" },
			"title": { "type": "text" },
			"date": { "type": "keyword" },
			"authors": { "type": "text" },
			"abstract": { "type": "text" },
			"keywords": { "type": "text" },
			"category": { "type": "keyword" },
			"partition": { "type": "keyword" },
			"content": { "type": "text" },
			"content_vector": {
				"type": "dense_vector",
				"dims": %d,
				"index": true,
				"similarity": "cosine"
			}
		}
	}
}`

// NewStore 创建 Elasticsearch 后端并确保默认集合的索引存在。
func NewStore(esCfg config.ElasticsearchConfig, dsCfg config.DatastoreConfig, dims int) (*Store, error) {
	if dims <= 0 {
		dims = OutputDim
	}
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{
		client:            client,
		dims:              dims,
		defaultCollection: dsCfg.DefaultCollection,
		defaultPartition:  model.Partition(dsCfg.DefaultPartition),
	}

	for _, collection := range dsCfg.AllowedCollections {
		if err := s.createIndexIfNotExists(collection); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func (s *Store) createIndexIfNotExists(indexName string) error {
	res, err := s.client.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	// 如果 res.StatusCode 是 200，说明索引已存在
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	mapping := fmt.Sprintf(mappingTemplate, s.dims)
	res, err = s.client.Indices.Create(
		indexName,
		s.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

func (s *Store) collectionOrDefault(collection string) string {
	if collection == "" {
		return s.defaultCollection
	}
	return collection
}

func (s *Store) partitionOrDefault(p model.Partition) model.Partition {
	if p == "" {
		return s.defaultPartition
	}
	return p
}

// Upsert 将每个文档的分块逐条写入索引，返回逐文档的插入计数。
// 单个分块写入失败视为该文档整体失败：该文档不出现在计数里，
// 其余文档继续写入。写入完成后统一刷新受影响的索引。
func (s *Store) Upsert(ctx context.Context, chunks map[string][]model.DocumentChunk) (map[string]int, error) {
	counts := make(map[string]int, len(chunks))
	touched := make(map[string]struct{})

	for documentID, chunkList := range chunks {
		insertCount := 0
		var docErr error

		for _, chunk := range chunkList {
			row := model.EsChunkDocument{
				ChunkID:       chunk.ID,
				DocumentID:    documentID,
				Title:         chunk.Metadata.Title,
				Date:          chunk.Metadata.CreatedAt,
				Authors:       chunk.Metadata.Authors,
				Abstract:      chunk.Metadata.Abstract,
				Keywords:      chunk.Metadata.Keywords,
				Category:      chunk.Metadata.Category,
				Partition:     string(s.partitionOrDefault(chunk.Partition)),
				Content:       chunk.Text,
				ContentVector: chunk.Embedding,
			}

			index := s.collectionOrDefault(chunk.Collection)
			if err := s.indexRow(ctx, index, row); err != nil {
				docErr = fmt.Errorf("写入分块 %s 失败: %w", chunk.ID, err)
				break
			}
			touched[index] = struct{}{}
			insertCount++
		}

		if docErr != nil {
			log.Errorf("[EsStore] 文档写入失败, document_id: %s, error: %v", documentID, docErr)
			continue
		}
		counts[documentID] = insertCount
	}

	// 写入可能被缓冲，这里显式刷新以保证可见性
	for index := range touched {
		if _, err := s.Flush(ctx, index); err != nil {
			log.Warnf("[EsStore] 刷新索引 '%s' 失败: %v", index, err)
		}
	}

	return counts, nil
}

func (s *Store) indexRow(ctx context.Context, index string, row model.EsChunkDocument) error {
	rowBytes, err := json.Marshal(row)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index: index,
		Body:  bytes.NewReader(rowBytes),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch 返回错误: %s", res.String())
	}
	return nil
}

// Query 并发执行整批查询并按输入顺序返回结果。
// 每个查询独立失败：后端错误或上下文取消都只让该查询得到空结果。
func (s *Store) Query(ctx context.Context, queries []model.QueryWithEmbedding) ([]model.QueryResult, error) {
	results := make([]model.QueryResult, len(queries))

	var wg sync.WaitGroup
	for i, query := range queries {
		wg.Add(1)
		go func(i int, query model.QueryWithEmbedding) {
			defer wg.Done()
			results[i] = s.singleQuery(ctx, query)
		}(i, query)
	}
	wg.Wait()

	return results, nil
}

// singleQuery 执行单个向量查询，过采样条数由精度档位决定。
func (s *Store) singleQuery(ctx context.Context, query model.QueryWithEmbedding) model.QueryResult {
	empty := model.QueryResult{Query: query.Query.Query, Results: []model.DocumentChunkWithScore{}}

	limit := datastore.OversampleLimit(query.TopK, query.SearchPrecision)

	// 标量字段过滤 + 分区限定
	filters := make([]map[string]interface{}, 0, 3)
	if query.Filter != nil {
		if query.Filter.DocumentID != "" {
			filters = append(filters, map[string]interface{}{
				"term": map[string]interface{}{"document_id": query.Filter.DocumentID},
			})
		}
		if query.Filter.Authors != "" {
			filters = append(filters, map[string]interface{}{
				"match": map[string]interface{}{"authors": query.Filter.Authors},
			})
		}
	}
	partition := s.partitionOrDefault(query.Partition)
	if partition != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"partition": string(partition)},
		})
	}

	knn := map[string]interface{}{
		"field":          "content_vector",
		"query_vector":   query.Embedding,
		"k":              limit,
		"num_candidates": limit * 2,
	}
	if len(filters) > 0 {
		knn["filter"] = filters
	}

	esQuery := map[string]interface{}{
		"knn":  knn,
		"size": limit,
		"_source": map[string]interface{}{
			"excludes": []string{"content_vector"},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		log.Errorf("[EsStore] 序列化查询失败: %v", err)
		return empty
	}

	index := s.collectionOrDefault(query.Collection)
	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(index),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		log.Errorf("[EsStore] 查询失败, query: '%s', error: %v", query.Query.Query, err)
		return empty
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[EsStore] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return empty
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				ID     string               `json:"_id"`
				Score  float64              `json:"_score"`
				Source model.EsChunkDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		log.Errorf("[EsStore] 解析查询响应失败: %v", err)
		return empty
	}

	hits := esResponse.Hits.Hits
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	chunks := make([]model.DocumentChunkWithScore, 0, len(hits))
	for _, hit := range hits {
		chunks = append(chunks, model.DocumentChunkWithScore{
			DocumentChunk: model.DocumentChunk{
				ID:         hit.Source.ChunkID,
				Text:       hit.Source.Content,
				Collection: index,
				Partition:  model.Partition(hit.Source.Partition),
				Metadata: model.DocumentChunkMetadata{
					DocumentMetadata: model.DocumentMetadata{
						CreatedAt: hit.Source.Date,
						Authors:   hit.Source.Authors,
						Title:     hit.Source.Title,
						Abstract:  hit.Source.Abstract,
						Keywords:  hit.Source.Keywords,
						Category:  hit.Source.Category,
					},
					DocumentID: hit.Source.DocumentID,
				},
			},
			Score: hit.Score,
		})
	}

	return model.QueryResult{Query: query.Query.Query, Results: chunks}
}

// Delete 删除各文档标识对应的全部分块。
// 流程与后端契约一致：先按 document_id 反查主键（query），
// 再按主键逐条删除（delete），有删除发生时显式刷新（flush）。
// 整批至少删掉一行才返回 true；任何后端错误都返回 false。
func (s *Store) Delete(ctx context.Context, documentIDs []string) (bool, error) {
	index := s.defaultCollection
	deleteCount := 0

	for _, documentID := range documentIDs {
		ids, err := s.findRowIDs(ctx, index, documentID)
		if err != nil {
			log.Errorf("[EsStore] 反查 document_id '%s' 失败: %v", documentID, err)
			return false, err
		}

		for _, id := range ids {
			req := esapi.DeleteRequest{Index: index, DocumentID: id}
			res, err := req.Do(ctx, s.client)
			if err != nil {
				return false, err
			}
			res.Body.Close()
			if res.IsError() {
				return false, fmt.Errorf("删除行 %s 失败: %s", id, res.String())
			}
			deleteCount++
		}
	}

	log.Infof("[EsStore] 共删除 %d 行", deleteCount)

	if deleteCount > 0 {
		if _, err := s.Flush(ctx, index); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// findRowIDs 按 document_id 反查该文档全部分块的主键。
func (s *Store) findRowIDs(ctx context.Context, index, documentID string) ([]string, error) {
	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"document_id": documentID},
		},
		"size":    deleteScanSize,
		"_source": false,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, err
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(index),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch 返回错误: %s", res.String())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// RawUpsert 直接写入一行并返回后端的原始响应。
func (s *Store) RawUpsert(ctx context.Context, row model.EsChunkDocument, collection string) (json.RawMessage, error) {
	index := s.collectionOrDefault(collection)

	rowBytes, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}

	req := esapi.IndexRequest{
		Index: index,
		Body:  bytes.NewReader(rowBytes),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch 返回错误: %s", string(body))
	}
	return json.RawMessage(body), nil
}

// Flush 刷新索引，使缓冲的写入对搜索可见，返回后端的原始响应。
func (s *Store) Flush(ctx context.Context, collection string) (json.RawMessage, error) {
	index := s.collectionOrDefault(collection)

	res, err := s.client.Indices.Refresh(
		s.client.Indices.Refresh.WithContext(ctx),
		s.client.Indices.Refresh.WithIndex(index),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("刷新索引 '%s' 失败: %s", index, string(body))
	}
	return json.RawMessage(body), nil
}
