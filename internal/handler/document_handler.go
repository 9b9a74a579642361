package handler

import (
	"errors"
	"net/http"

	"qgr-retrieval-go/internal/model"
	"qgr-retrieval-go/internal/repository"
	"qgr-retrieval-go/internal/service"
	"qgr-retrieval-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// DocumentHandler 负责处理文档接入与内容读取的 API 请求。
type DocumentHandler struct {
	docService service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(docService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// SaveURLDocuments 处理 POST /documents/url
func (h *DocumentHandler) SaveURLDocuments(c *gin.Context) {
	var req model.SaveURLDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体"})
		return
	}

	results, err := h.docService.SaveURLDocuments(c.Request.Context(), req.DocumentsURL, req.Collection, req.Partition)
	if err != nil {
		// 校验类错误返回 400，其余视为服务端错误
		if errors.Is(err, service.ErrUnsupportedCollection) ||
			errors.Is(err, service.ErrUnsupportedPartition) ||
			errors.Is(err, service.ErrUnsupportedFileType) ||
			errors.Is(err, service.ErrInvalidURL) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Errorf("[DocumentHandler] 文档接入失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Service Error"})
		return
	}

	c.JSON(http.StatusOK, model.SaveURLDocumentResponse{Results: results})
}

// GetDocumentContent 处理 GET /documents/:documentId
func (h *DocumentHandler) GetDocumentContent(c *gin.Context) {
	documentID := c.Param("documentId")

	content, err := h.docService.GetDocumentContent(c.Request.Context(), documentID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDocumentID):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, repository.ErrRawDocumentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "文档不存在"})
		case errors.Is(err, service.ErrDocumentTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		default:
			log.Errorf("[DocumentHandler] 读取文档内容失败: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Service Error"})
		}
		return
	}

	c.JSON(http.StatusOK, content)
}
