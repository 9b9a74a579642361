// Package model 定义了检索服务的核心领域实体。
package model

// Partition 是集合下的命名逻辑分区，同时决定内容清洗模式。
type Partition string

const (
	PartitionChats    Partition = "chats"
	PartitionOurPaper Partition = "ourpapers"
	PartitionPapers   Partition = "papers"
	PartitionNotes    Partition = "notes"
	PartitionBooks    Partition = "books"
	PartitionOthers   Partition = "others"
)

// AllPartitions 是后端允许的全部分区。
var AllPartitions = []Partition{
	PartitionChats,
	PartitionOurPaper,
	PartitionPapers,
	PartitionNotes,
	PartitionBooks,
	PartitionOthers,
}

// Valid 判断分区名是否在允许范围内。
func (p Partition) Valid() bool {
	for _, v := range AllPartitions {
		if p == v {
			return true
		}
	}
	return false
}

// SearchPrecision 是查询时的精度档位，用确定性换取过采样带来的多样性。
type SearchPrecision string

const (
	PrecisionHigh   SearchPrecision = "high"
	PrecisionMedium SearchPrecision = "medium"
	PrecisionLow    SearchPrecision = "low"
)

// DocumentMetadata 是文档级元数据，全部为可选字符串。
type DocumentMetadata struct {
	CreatedAt string `json:"created_at,omitempty"`
	Authors   string `json:"authors,omitempty"`
	Title     string `json:"title,omitempty"`
	Abstract  string `json:"abstract,omitempty"`
	Keywords  string `json:"keywords,omitempty"`
	Category  string `json:"category,omitempty"`
}

// DocumentChunkMetadata 在文档元数据的基础上带上归属文档的标识。
type DocumentChunkMetadata struct {
	DocumentMetadata
	DocumentID string `json:"document_id,omitempty"`
}

// Document 是客户端提交的待入库文档，本身不会被原样持久化。
type Document struct {
	Text       string            `json:"text" binding:"required"`
	Collection string            `json:"collection,omitempty"`
	Partition  Partition         `json:"partition,omitempty"`
	Metadata   *DocumentMetadata `json:"metadata,omitempty"`
}

// DocumentChunk 是一段可独立向量化与检索的文本分块。
// 分块 ID 形如 {documentID}_{序号}，序号从 0 开始且连续。
type DocumentChunk struct {
	ID         string                `json:"id"`
	Text       string                `json:"text"`
	Collection string                `json:"collection,omitempty"`
	Partition  Partition             `json:"partition,omitempty"`
	Metadata   DocumentChunkMetadata `json:"metadata"`
	Embedding  []float32             `json:"embedding,omitempty"`
}

// DocumentChunkWithScore 是带相似度得分的分块，得分越高越相似。
type DocumentChunkWithScore struct {
	DocumentChunk
	Score float64 `json:"score"`
}

// DocumentMetadataFilter 是查询时可选的标量字段过滤条件。
type DocumentMetadataFilter struct {
	DocumentID string `json:"document_id,omitempty"`
	Authors    string `json:"authors,omitempty"`
}

// Query 是一次相似度查询。
type Query struct {
	Query           string                  `json:"query" binding:"required"`
	Filter          *DocumentMetadataFilter `json:"filter,omitempty"`
	TopK            int                     `json:"top_k,omitempty"`
	SearchPrecision SearchPrecision         `json:"search_precision,omitempty"`
	Partition       Partition               `json:"partition,omitempty"`
	Collection      string                  `json:"collection,omitempty"`
}

// QueryWithEmbedding 是补全了查询向量的 Query，每次请求只构造一次。
type QueryWithEmbedding struct {
	Query
	Embedding []float32 `json:"embedding"`
}

// QueryResult 是未分组的查询结果，每个命中分块一条。
type QueryResult struct {
	Query   string                   `json:"query"`
	Results []DocumentChunkWithScore `json:"results"`
}

// DocumentGroupWithScores 是按文档聚合后的结果视图：
// 同一文档的所有命中分块折叠为一条，texts[i] 与 scores[i] 一一对应。
type DocumentGroupWithScores struct {
	Texts      []string              `json:"texts"`
	Scores     []float64             `json:"scores"`
	DocumentID string                `json:"document_id"`
	Collection string                `json:"collection,omitempty"`
	Partition  Partition             `json:"partition,omitempty"`
	Metadata   DocumentChunkMetadata `json:"metadata"`
	Embedding  []float32             `json:"embedding,omitempty"`
}

// QueryGroupResult 是最终返回给调用方的分组结果。
type QueryGroupResult struct {
	Query   string                    `json:"query"`
	Results []DocumentGroupWithScores `json:"results"`
}
