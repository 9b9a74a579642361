package processing

import (
	"context"
	"fmt"
	"time"

	"qgr-retrieval-go/internal/model"
	"qgr-retrieval-go/pkg/embedding"
	"qgr-retrieval-go/pkg/log"
)

const (
	// DefaultChunkTokenSize 是默认的分块长度（字符数）。
	DefaultChunkTokenSize = 512

	// EmbedInputLimit 是送入向量模型前的字符预算，由调用方负责截断。
	EmbedInputLimit = 512

	// UnknownValue 是缺失元数据字段的哨兵值。
	UnknownValue = "Unknown"
)

// Assembler 将文档转换为按文档标识归组的有序分块列表。
// 向量模型实例由调用方注入，生命周期归组装应用所有。
type Assembler struct {
	embedder          embedding.Client
	defaultCollection string
	defaultPartition  model.Partition
}

// NewAssembler 创建一个新的 Assembler 实例。
func NewAssembler(embedder embedding.Client, defaultCollection string, defaultPartition model.Partition) *Assembler {
	return &Assembler{
		embedder:          embedder,
		defaultCollection: defaultCollection,
		defaultPartition:  defaultPartition,
	}
}

// Assemble 将文档列表转换为 document_id -> 有序分块 的映射。
// 单个分块向量化失败即视为该文档整体失败：失败文档不会出现在返回的
// 分块映射中（不允许单文档内的静默部分成功），其错误记录在第二个返回值里，
// 其余文档继续处理。
func (a *Assembler) Assemble(ctx context.Context, documents []model.Document, chunkTokenSize int) (map[string][]model.DocumentChunk, map[string]error) {
	if chunkTokenSize <= 0 {
		chunkTokenSize = DefaultChunkTokenSize
	}

	documentChunks := make(map[string][]model.DocumentChunk)
	failures := make(map[string]error)

	for _, doc := range documents {
		// 1. 解析元数据并填充默认值
		titleValue := UnknownValue
		dateValue := time.Now().Format("2006-01-02")
		authorValue := UnknownValue
		abstractValue := UnknownValue
		keywordsValue := UnknownValue
		categoryValue := UnknownValue

		if doc.Metadata != nil {
			titleValue = orUnknown(doc.Metadata.Title)
			if doc.Metadata.CreatedAt != "" {
				dateValue = doc.Metadata.CreatedAt
			}
			authorValue = orUnknown(doc.Metadata.Authors)
			abstractValue = orUnknown(doc.Metadata.Abstract)
			keywordsValue = orUnknown(doc.Metadata.Keywords)
			categoryValue = orUnknown(doc.Metadata.Category)
		}

		// 2. 将各字段规范化到 schema 上限
		dateValue = NormalizeField(dateValue, CeilingDate)
		keywordsValue = NormalizeField(keywordsValue, CeilingKeywords)
		authorValue = NormalizeField(authorValue, CeilingAuthors)
		titleValue = NormalizeField(titleValue, CeilingTitle)
		abstractValue = NormalizeField(abstractValue, CeilingAbstract)
		categoryValue = NormalizeField(categoryValue, CeilingCategory)

		partitionName := doc.Partition
		if partitionName == "" {
			partitionName = a.defaultPartition
		}
		collectionName := doc.Collection
		if collectionName == "" {
			collectionName = a.defaultCollection
		}

		// 3. 按分区选择清洗模式并切分内容
		content := CleanContent(doc.Text, partitionName)
		segments := SplitText(content, chunkTokenSize, DefaultOverlap)

		// 4. 从规范化后的元数据推导文档标识
		docID := DocumentID(titleValue, authorValue, dateValue)

		chunkMetadata := model.DocumentChunkMetadata{
			DocumentMetadata: model.DocumentMetadata{
				CreatedAt: dateValue,
				Authors:   authorValue,
				Title:     titleValue,
				Abstract:  abstractValue,
				Keywords:  keywordsValue,
				Category:  categoryValue,
			},
			DocumentID: docID,
		}

		// 5. 逐段向量化并装配分块，序号从 0 开始且连续
		docChunks := make([]model.DocumentChunk, 0, len(segments))
		var docErr error
		for _, segment := range segments {
			// 切分后仍超长的原子段落，向量化前再做一次激进清洗
			if len([]rune(segment)) > chunkTokenSize {
				segment = CleanDescription(segment)
			}

			vector, err := a.embedder.CreateEmbedding(ctx, Truncate(segment, EmbedInputLimit))
			if err != nil {
				docErr = fmt.Errorf("分块 %d 向量化失败: %w", len(docChunks), err)
				break
			}

			docChunks = append(docChunks, model.DocumentChunk{
				ID:         fmt.Sprintf("%s_%d", docID, len(docChunks)),
				Text:       segment,
				Collection: collectionName,
				Partition:  partitionName,
				Metadata:   chunkMetadata,
				Embedding:  vector,
			})
		}

		if docErr != nil {
			log.Errorf("[Assembler] 文档处理失败, document_id: %s, error: %v", docID, docErr)
			failures[docID] = docErr
			continue
		}

		documentChunks[docID] = docChunks
	}

	return documentChunks, failures
}

func orUnknown(v string) string {
	if v == "" {
		return UnknownValue
	}
	return v
}
