package repository

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
)

// ErrRawDocumentNotFound 表示侧存储中没有该文档的原始内容。
var ErrRawDocumentNotFound = errors.New("raw document not found")

// RawDocumentStore 是以文档标识为键的原始内容侧存储。
// document_id 是它与向量库之间唯一的关联键。
type RawDocumentStore interface {
	Save(ctx context.Context, documentID, content string) error
	Get(ctx context.Context, documentID string) (string, error)
	Delete(ctx context.Context, documentID string) error
}

// rawDocumentStore 是 RawDocumentStore 的 Redis 实现。
type rawDocumentStore struct {
	redisClient *redis.Client
}

// NewRawDocumentStore 创建一个新的 RawDocumentStore 实例。
func NewRawDocumentStore(redisClient *redis.Client) RawDocumentStore {
	return &rawDocumentStore{redisClient: redisClient}
}

func rawDocumentKey(documentID string) string {
	return "rawdoc:" + documentID
}

// Save 保存文档的原始内容，覆盖同标识的旧内容（与向量库的合并语义一致）。
func (s *rawDocumentStore) Save(ctx context.Context, documentID, content string) error {
	return s.redisClient.Set(ctx, rawDocumentKey(documentID), content, 0).Err()
}

// Get 读取文档的原始内容。
func (s *rawDocumentStore) Get(ctx context.Context, documentID string) (string, error) {
	content, err := s.redisClient.Get(ctx, rawDocumentKey(documentID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrRawDocumentNotFound
	}
	if err != nil {
		return "", err
	}
	return content, nil
}

// Delete 删除文档的原始内容。
func (s *rawDocumentStore) Delete(ctx context.Context, documentID string) error {
	return s.redisClient.Del(ctx, rawDocumentKey(documentID)).Err()
}
