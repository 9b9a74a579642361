// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"qgr-retrieval-go/internal/model"

	"gorm.io/gorm"
)

// DocumentRecordRepository 接口定义了文档入库记录的数据持久化操作。
type DocumentRecordRepository interface {
	Create(record *model.DocumentRecord) error
	FindByDocumentID(documentID string) (*model.DocumentRecord, error)
	FindBySourceName(sourceName string) (*model.DocumentRecord, error)
	UpdateStatus(recordID uint, status int, errMsg string) error
	MarkCompleted(recordID uint, documentID string, chunkCount int) error
	DeleteByDocumentID(documentID string) error
}

// documentRecordRepository 是 DocumentRecordRepository 接口的 GORM 实现。
type documentRecordRepository struct {
	db *gorm.DB
}

// NewDocumentRecordRepository 创建一个新的 DocumentRecordRepository 实例。
func NewDocumentRecordRepository(db *gorm.DB) DocumentRecordRepository {
	return &documentRecordRepository{db: db}
}

// Create 在数据库中创建一条新的文档入库记录。
func (r *documentRecordRepository) Create(record *model.DocumentRecord) error {
	return r.db.Create(record).Error
}

// FindByDocumentID 根据文档标识检索入库记录。
func (r *documentRecordRepository) FindByDocumentID(documentID string) (*model.DocumentRecord, error) {
	var record model.DocumentRecord
	err := r.db.Where("document_id = ?", documentID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindBySourceName 根据源文件名检索入库记录，用于入库前的幂等检查。
func (r *documentRecordRepository) FindBySourceName(sourceName string) (*model.DocumentRecord, error) {
	var record model.DocumentRecord
	err := r.db.Where("source_name = ?", sourceName).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateStatus 更新指定入库记录的状态与错误信息。
func (r *documentRecordRepository) UpdateStatus(recordID uint, status int, errMsg string) error {
	return r.db.Model(&model.DocumentRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{"status": status, "error": errMsg}).Error
}

// MarkCompleted 将记录标记为完成并补全文档标识与分块计数。
func (r *documentRecordRepository) MarkCompleted(recordID uint, documentID string, chunkCount int) error {
	return r.db.Model(&model.DocumentRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{
			"status":      model.RecordStatusCompleted,
			"document_id": documentID,
			"chunk_count": chunkCount,
			"error":       "",
		}).Error
}

// DeleteByDocumentID 删除某文档标识对应的入库记录。
func (r *documentRecordRepository) DeleteByDocumentID(documentID string) error {
	return r.db.Where("document_id = ?", documentID).Delete(&model.DocumentRecord{}).Error
}
