package model

// UpsertRequest 是 POST /upsert 的请求体。
type UpsertRequest struct {
	Documents []Document `json:"documents" binding:"required"`
}

// UpsertStatus 是单个文档的入库结果：成功时带计数，失败时带错误说明。
type UpsertStatus struct {
	Count string `json:"count,omitempty"`
	Error string `json:"error,omitempty"`
}

// UpsertResponse 是 POST /upsert 的响应体。
// 后端无任何返回时 DocumentID 为空映射并带 Message，不视为错误。
type UpsertResponse struct {
	DocumentID map[string]UpsertStatus `json:"document_id"`
	Message    string                  `json:"message,omitempty"`
}

// QueryRequest 是 POST /query 的请求体。
type QueryRequest struct {
	Queries []Query `json:"queries" binding:"required"`
}

// QueryResponse 是 POST /query 的响应体，结果已按文档分组。
type QueryResponse struct {
	Results []QueryGroupResult `json:"results"`
}

// DeleteResponse 是 DELETE /delete 的响应体。
type DeleteResponse struct {
	Success bool `json:"success"`
}

// SaveURLDocumentRequest 是 POST /documents/url 的请求体。
type SaveURLDocumentRequest struct {
	DocumentsURL []string  `json:"documents_url" binding:"required"`
	Collection   string    `json:"collection" binding:"required"`
	Partition    Partition `json:"partition" binding:"required"`
}

// SaveURLDocumentResponse 是 POST /documents/url 的响应体。
type SaveURLDocumentResponse struct {
	Results string `json:"results"`
}

// DocumentContentResponse 是 GET /documents/:documentId 的响应体。
type DocumentContentResponse struct {
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
}
