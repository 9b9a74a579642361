// Package service 提供了文档接入相关的业务逻辑。
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"qgr-retrieval-go/internal/config"
	"qgr-retrieval-go/internal/model"
	"qgr-retrieval-go/internal/repository"
	"qgr-retrieval-go/pkg/kafka"
	"qgr-retrieval-go/pkg/log"
	"qgr-retrieval-go/pkg/storage"
	"qgr-retrieval-go/pkg/tasks"
)

// 校验失败属于请求拒绝类错误，必须在任何后端调用之前返回。
var (
	ErrUnsupportedCollection = errors.New("不支持的 Collection")
	ErrUnsupportedPartition  = errors.New("不支持的 Partition")
	ErrUnsupportedFileType   = errors.New("不支持的文件类型")
	ErrInvalidURL            = errors.New("无效的 URL")
	ErrInvalidDocumentID     = errors.New("非法的 document_id")
	ErrDocumentTooLarge      = errors.New("文档内容超过大小上限")
)

// maxContentChars 是 GET /documents 返回内容的字符上限。
const maxContentChars = 8000

// 允许接入的源文件扩展名。
var allowedExtensions = map[string]struct{}{
	".pdf": {},
	".tex": {},
	".txt": {},
}

// DocumentService 接口定义了文档接入操作。
type DocumentService interface {
	SaveURLDocuments(ctx context.Context, documentsURL []string, collection string, partition model.Partition) (string, error)
	GetDocumentContent(ctx context.Context, documentID string) (*model.DocumentContentResponse, error)
	DeleteDocumentData(ctx context.Context, documentIDs []string)
}

type documentService struct {
	recordRepo         repository.DocumentRecordRepository
	rawStore           repository.RawDocumentStore
	minioCfg           config.MinIOConfig
	allowedCollections []string
	httpClient         *http.Client
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(
	recordRepo repository.DocumentRecordRepository,
	rawStore repository.RawDocumentStore,
	minioCfg config.MinIOConfig,
	dsCfg config.DatastoreConfig,
) DocumentService {
	return &documentService{
		recordRepo:         recordRepo,
		rawStore:           rawStore,
		minioCfg:           minioCfg,
		allowedCollections: dsCfg.AllowedCollections,
		httpClient:         &http.Client{},
	}
}

// SaveURLDocuments 校验并接收一批文档 URL：
// 下载源文件归档到 MinIO，投递入库任务到 Kafka，并创建待处理记录。
// 所有校验在任何下载或后端调用之前完成，校验失败直接拒绝整个请求。
func (s *documentService) SaveURLDocuments(ctx context.Context, documentsURL []string, collection string, partition model.Partition) (string, error) {
	if !s.collectionAllowed(collection) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedCollection, collection)
	}
	if !partition.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPartition, partition)
	}
	for _, documentURL := range documentsURL {
		if err := validateDocumentURL(documentURL); err != nil {
			return "", err
		}
	}

	var errs []string
	for _, documentURL := range documentsURL {
		if err := s.ingestOne(ctx, documentURL, collection, partition); err != nil {
			log.Errorf("[DocumentService] 接入 '%s' 失败: %v", documentURL, err)
			errs = append(errs, fmt.Sprintf("%s: %v", documentURL, err))
		}
	}

	if len(errs) > 0 {
		return "", fmt.Errorf("接入过程中发生错误: %s", strings.Join(errs, "; "))
	}
	return "Documents scheduled to upload successfully", nil
}

// validateDocumentURL 校验 URL 的协议、主机与扩展名。
func validateDocumentURL(documentURL string) error {
	parsed, err := url.Parse(documentURL)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidURL, documentURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: 非法的协议 '%s'", ErrInvalidURL, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: %s", ErrInvalidURL, documentURL)
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	if _, ok := allowedExtensions[ext]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}
	return nil
}

// ingestOne 下载单个源文件，归档后投递入库任务。
func (s *documentService) ingestOne(ctx context.Context, documentURL, collection string, partition model.Partition) error {
	req, err := http.NewRequestWithContext(ctx, "GET", documentURL, nil)
	if err != nil {
		return fmt.Errorf("创建下载请求失败: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("下载失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("下载返回非 200 状态码: %s", resp.Status)
	}

	parsed, _ := url.Parse(documentURL)
	fileName := path.Base(parsed.Path)
	objectName := fmt.Sprintf("source/%s/%s/%s", collection, partition, fileName)

	if _, err := storage.PutObject(ctx, s.minioCfg.BucketName, objectName, resp.Body, resp.ContentLength); err != nil {
		return fmt.Errorf("归档到 MinIO 失败: %w", err)
	}
	log.Infof("[DocumentService] 源文件已归档, object: %s", objectName)

	record := &model.DocumentRecord{
		SourceName: fileName,
		Collection: collection,
		Partition:  string(partition),
		Status:     model.RecordStatusPending,
	}
	if err := s.recordRepo.Create(record); err != nil {
		return fmt.Errorf("创建入库记录失败: %w", err)
	}

	task := tasks.DocumentProcessingTask{
		ObjectName: objectName,
		FileName:   fileName,
		SourceURL:  documentURL,
		Collection: collection,
		Partition:  string(partition),
	}
	if err := kafka.ProduceDocumentTask(task); err != nil {
		return fmt.Errorf("投递入库任务失败: %w", err)
	}

	log.Infof("[DocumentService] 已投递入库任务, object: %s", objectName)
	return nil
}

// GetDocumentContent 从侧存储读取文档原始内容。
// document_id 不允许包含路径字符；超过大小上限的内容直接拒绝。
func (s *documentService) GetDocumentContent(ctx context.Context, documentID string) (*model.DocumentContentResponse, error) {
	if strings.Contains(documentID, "..") ||
		strings.ContainsAny(documentID, `/\`) {
		return nil, ErrInvalidDocumentID
	}

	content, err := s.rawStore.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if len([]rune(content)) > maxContentChars {
		return nil, ErrDocumentTooLarge
	}

	return &model.DocumentContentResponse{
		DocumentID: documentID,
		Content:    content,
	}, nil
}

// DeleteDocumentData 清理已从向量库删除的文档在登记表与侧存储中的残留。
// 尽力而为：单个清理失败只记录日志，不影响其余文档。
func (s *documentService) DeleteDocumentData(ctx context.Context, documentIDs []string) {
	for _, documentID := range documentIDs {
		if record, err := s.recordRepo.FindByDocumentID(documentID); err == nil && record != nil {
			log.Infof("[DocumentService] 清理入库记录, document_id: %s, source: %s", documentID, record.SourceName)
			if err := s.recordRepo.DeleteByDocumentID(documentID); err != nil {
				log.Warnf("[DocumentService] 删除入库记录失败, document_id: %s, err: %v", documentID, err)
			}
		}
		if err := s.rawStore.Delete(ctx, documentID); err != nil {
			log.Warnf("[DocumentService] 删除原始内容失败, document_id: %s, err: %v", documentID, err)
		}
	}
}

func (s *documentService) collectionAllowed(collection string) bool {
	for _, c := range s.allowedCollections {
		if c == collection {
			return true
		}
	}
	return false
}
