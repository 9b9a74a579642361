// Package pipeline 定义了文档入库的核心流程。
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"qgr-retrieval-go/internal/config"
	"qgr-retrieval-go/internal/datastore"
	"qgr-retrieval-go/internal/model"
	"qgr-retrieval-go/internal/repository"
	"qgr-retrieval-go/pkg/log"
	"qgr-retrieval-go/pkg/storage"
	"qgr-retrieval-go/pkg/tasks"
	"qgr-retrieval-go/pkg/tika"
)

// Processor 封装了文档入库的所有依赖和逻辑。
type Processor struct {
	tikaClient     *tika.Client
	store          *datastore.DataStore
	minioCfg       config.MinIOConfig
	chunkTokenSize int
	recordRepo     repository.DocumentRecordRepository
	rawStore       repository.RawDocumentStore
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	tikaClient *tika.Client,
	store *datastore.DataStore,
	minioCfg config.MinIOConfig,
	chunkTokenSize int,
	recordRepo repository.DocumentRecordRepository,
	rawStore repository.RawDocumentStore,
) *Processor {
	return &Processor{
		tikaClient:     tikaClient,
		store:          store,
		minioCfg:       minioCfg,
		chunkTokenSize: chunkTokenSize,
		recordRepo:     recordRepo,
		rawStore:       rawStore,
	}
}

// Process 是文档入库任务的主函数。
func (p *Processor) Process(ctx context.Context, task tasks.DocumentProcessingTask) error {
	log.Infof("[Processor] 开始处理文档, Object: %s, FileName: %s", task.ObjectName, task.FileName)

	record, recordErr := p.recordRepo.FindBySourceName(task.FileName)
	if recordErr == nil && record != nil {
		_ = p.recordRepo.UpdateStatus(record.ID, model.RecordStatusProcessing, "")
	}

	err := p.process(ctx, task)
	if record != nil {
		if err != nil {
			_ = p.recordRepo.UpdateStatus(record.ID, model.RecordStatusFailed, err.Error())
		}
		// 成功路径在 process 内部用 MarkCompleted 补全文档标识与分块计数
	}
	return err
}

func (p *Processor) process(ctx context.Context, task tasks.DocumentProcessingTask) error {
	// 1. 从 MinIO 下载归档的源文件
	log.Infof("[Processor] 步骤1: 从MinIO下载源文件, Bucket: %s, Object: %s", p.minioCfg.BucketName, task.ObjectName)
	object, err := storage.GetObject(ctx, p.minioCfg.BucketName, task.ObjectName)
	if err != nil {
		return fmt.Errorf("从 MinIO 下载源文件失败: %w", err)
	}
	defer object.Close()

	buf := new(bytes.Buffer)
	size, err := buf.ReadFrom(object)
	if err != nil {
		return fmt.Errorf("读取MinIO对象流失败: %w", err)
	}
	log.Infof("[Processor] 步骤1: 下载成功, 大小: %d字节", size)
	if size == 0 {
		return errors.New("文件内容为空")
	}

	// 2. 提取文本：纯文本/LaTeX 源直接读取，其余类型走 Tika
	log.Info("[Processor] 步骤2: 提取文本内容")
	textContent, err := p.extractText(buf, task.FileName)
	if err != nil {
		return fmt.Errorf("提取文本失败: %w", err)
	}
	if textContent == "" {
		return errors.New("提取的文本内容为空")
	}
	log.Infof("[Processor] 步骤2: 文本提取成功, 内容长度: %d 字符", utf8.RuneCountInString(textContent))

	// 3. 装配 Document 并通过门面入库（清洗、分块、向量化都在门面内完成）
	log.Info("[Processor] 步骤3: 装配文档并写入向量库")
	doc := model.Document{
		Text:       textContent,
		Collection: task.Collection,
		Partition:  model.Partition(task.Partition),
		Metadata: &model.DocumentMetadata{
			Title:    strings.TrimSuffix(task.FileName, filepath.Ext(task.FileName)),
			Category: task.Category,
		},
	}

	resp := p.store.Upsert(ctx, []model.Document{doc}, p.chunkTokenSize)
	if len(resp.DocumentID) == 0 {
		return errors.New("向量库未处理任何文档: " + resp.Message)
	}

	for documentID, status := range resp.DocumentID {
		if status.Error != "" {
			return fmt.Errorf("文档 %s 入库失败: %s", documentID, status.Error)
		}
		log.Infof("[Processor] 文档入库成功, document_id: %s, 分块数: %s", documentID, status.Count)

		// 4. 原始内容写入侧存储，document_id 是两边唯一的关联键
		if err := p.rawStore.Save(ctx, documentID, textContent); err != nil {
			log.Warnf("[Processor] 原始内容写入侧存储失败, document_id: %s, err: %v", documentID, err)
		}

		// 5. 更新入库记录
		if record, err := p.recordRepo.FindBySourceName(task.FileName); err == nil && record != nil {
			chunkCount := 0
			fmt.Sscanf(status.Count, "%d", &chunkCount)
			if err := p.recordRepo.MarkCompleted(record.ID, documentID, chunkCount); err != nil {
				log.Warnf("[Processor] 更新入库记录失败, document_id: %s, err: %v", documentID, err)
			}
		}
	}

	log.Infof("[Processor] 文档处理成功完成, Object: %s", task.ObjectName)
	return nil
}

// extractText 根据文件类型提取文本：.txt/.tex 直接按 UTF-8 读取，其余走 Tika。
func (p *Processor) extractText(buf *bytes.Buffer, fileName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == ".txt" || ext == ".tex" {
		return buf.String(), nil
	}
	return p.tikaClient.ExtractText(bytes.NewReader(buf.Bytes()), fileName)
}
