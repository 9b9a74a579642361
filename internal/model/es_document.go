package model

// EsChunkDocument 定义了存储在 Elasticsearch 中的分块行结构。
// _id 由 Elasticsearch 自动分配（主键），document_id 是跨存储的唯一关联键。
type EsChunkDocument struct {
	ChunkID       string    `json:"chunk_id"` // 形如 documentID_序号
	DocumentID    string    `json:"document_id"`
	Title         string    `json:"title"`
	Date          string    `json:"date"`
	Authors       string    `json:"authors"`
	Abstract      string    `json:"abstract"`
	Keywords      string    `json:"keywords"`
	Category      string    `json:"category"`
	Partition     string    `json:"partition"`
	Content       string    `json:"content"`
	ContentVector []float32 `json:"content_vector"` // 分块文本的归一化向量表示
}
