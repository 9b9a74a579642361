// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// DocumentProcessingTask represents the data structure for a document ingestion job.
type DocumentProcessingTask struct {
	ObjectName string `json:"object_name"` // MinIO 中归档对象的路径
	FileName   string `json:"file_name"`
	SourceURL  string `json:"source_url"`
	Collection string `json:"collection"`
	Partition  string `json:"partition"`
	Category   string `json:"category"`
}
