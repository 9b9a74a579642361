// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"
	"strings"

	"qgr-retrieval-go/internal/datastore"
	"qgr-retrieval-go/internal/model"
	"qgr-retrieval-go/internal/service"
	"qgr-retrieval-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// DatastoreHandler 负责处理向量库的 upsert/query/delete 请求。
type DatastoreHandler struct {
	store          *datastore.DataStore
	docService     service.DocumentService
	chunkTokenSize int
}

// NewDatastoreHandler 创建一个新的 DatastoreHandler 实例。
func NewDatastoreHandler(store *datastore.DataStore, docService service.DocumentService, chunkTokenSize int) *DatastoreHandler {
	return &DatastoreHandler{
		store:          store,
		docService:     docService,
		chunkTokenSize: chunkTokenSize,
	}
}

// Upsert 处理 POST /upsert
func (h *DatastoreHandler) Upsert(c *gin.Context) {
	var req model.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[DatastoreHandler] upsert 请求体无效: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体"})
		return
	}
	log.Infof("[DatastoreHandler] 收到 upsert 请求, 文档数: %d", len(req.Documents))

	for _, doc := range req.Documents {
		if doc.Partition != "" && !doc.Partition.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "不支持的 Partition: " + string(doc.Partition)})
			return
		}
	}

	resp := h.store.Upsert(c.Request.Context(), req.Documents, h.chunkTokenSize)
	c.JSON(http.StatusOK, resp)
}

// Query 处理 POST /query
func (h *DatastoreHandler) Query(c *gin.Context) {
	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[DatastoreHandler] query 请求体无效: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体"})
		return
	}
	log.Infof("[DatastoreHandler] 收到 query 请求, 查询数: %d", len(req.Queries))

	for _, q := range req.Queries {
		if q.Partition != "" && !q.Partition.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "不支持的 Partition: " + string(q.Partition)})
			return
		}
	}

	results, err := h.store.Query(c.Request.Context(), req.Queries)
	if err != nil {
		log.Errorf("[DatastoreHandler] 查询失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Service Error"})
		return
	}

	c.JSON(http.StatusOK, model.QueryResponse{Results: results})
}

// Delete 处理 DELETE /delete/:documentIds，参数为逗号分隔的文档标识列表。
func (h *DatastoreHandler) Delete(c *gin.Context) {
	raw := c.Param("documentIds")
	ids := make([]string, 0)
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "至少需要一个 document_id"})
		return
	}
	log.Infof("[DatastoreHandler] 收到 delete 请求, 文档数: %d", len(ids))

	success := h.store.Delete(c.Request.Context(), ids)
	if success {
		// 向量行已删除，清理登记表与原始内容侧存储里的残留
		h.docService.DeleteDocumentData(c.Request.Context(), ids)
	}
	c.JSON(http.StatusOK, model.DeleteResponse{Success: success})
}
