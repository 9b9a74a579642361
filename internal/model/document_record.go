package model

import "time"

// 文档入库记录的处理状态。
const (
	RecordStatusPending    = 0
	RecordStatusProcessing = 1
	RecordStatusCompleted  = 2
	RecordStatusFailed     = 3
)

// DocumentRecord 对应于数据库中的 document_records 表，
// 记录每个逻辑文档的入库进度与结果，document_id 与向量库保持一致。
type DocumentRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	DocumentID string    `gorm:"type:varchar(64);index;column:document_id"`
	SourceName string    `gorm:"type:varchar(255);column:source_name"`
	Title      string    `gorm:"type:varchar(900);column:title"`
	Collection string    `gorm:"type:varchar(64);column:collection"`
	Partition  string    `gorm:"type:varchar(32);column:partition"`
	Category   string    `gorm:"type:varchar(250);column:category"`
	ChunkCount int       `gorm:"column:chunk_count"`
	Status     int       `gorm:"not null;default:0;column:status"`
	Error      string    `gorm:"type:text;column:error"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (DocumentRecord) TableName() string {
	return "document_records"
}
