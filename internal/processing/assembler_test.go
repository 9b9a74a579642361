package processing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qgr-retrieval-go/internal/model"
)

// fakeEmbedder 返回固定向量，并记录每次调用收到的文本。
type fakeEmbedder struct {
	inputs   []string
	failWord string
}

func (f *fakeEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.inputs = append(f.inputs, text)
	if f.failWord != "" && strings.Contains(text, f.failWord) {
		return nil, errors.New("embedding backend unavailable")
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := f.CreateEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

func TestAssembler_Assemble(t *testing.T) {
	ctx := context.Background()

	t.Run("Should fill metadata defaults for a bare document", func(t *testing.T) {
		embedder := &fakeEmbedder{}
		a := NewAssembler(embedder, "documents", model.PartitionChats)

		chunks, failures := a.Assemble(ctx, []model.Document{{Text: "plain body"}}, 512)
		require.Empty(t, failures)
		require.Len(t, chunks, 1)

		today := time.Now().Format("2006-01-02")
		wantID := DocumentID(UnknownValue, UnknownValue, today)
		docChunks, ok := chunks[wantID]
		require.True(t, ok)
		require.Len(t, docChunks, 1)

		c := docChunks[0]
		assert.Equal(t, UnknownValue, c.Metadata.Title)
		assert.Equal(t, UnknownValue, c.Metadata.Authors)
		assert.Equal(t, UnknownValue, c.Metadata.Abstract)
		assert.Equal(t, UnknownValue, c.Metadata.Keywords)
		assert.Equal(t, UnknownValue, c.Metadata.Category)
		assert.Equal(t, today, c.Metadata.CreatedAt)
		assert.Equal(t, "documents", c.Collection)
		assert.Equal(t, model.PartitionChats, c.Partition)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, c.Embedding)
	})

	t.Run("Should assign dense zero-based chunk ids", func(t *testing.T) {
		embedder := &fakeEmbedder{}
		a := NewAssembler(embedder, "documents", model.PartitionChats)

		// 三个段落，每段放不进同一个 30 字符的分块
		text := strings.Repeat("a", 25) + "\n\n" + strings.Repeat("b", 25) + "\n\n" + strings.Repeat("c", 25)
		doc := model.Document{
			Text:      text,
			Partition: model.PartitionPapers,
			Metadata:  &model.DocumentMetadata{Title: "T", Authors: "A", CreatedAt: "2024-01-01"},
		}

		chunks, failures := a.Assemble(ctx, []model.Document{doc}, 30)
		require.Empty(t, failures)

		docID := DocumentID("T", "A", "2024-01-01")
		docChunks := chunks[docID]
		require.Len(t, docChunks, 3)
		for i, c := range docChunks {
			assert.Equal(t, fmt.Sprintf("%s_%d", docID, i), c.ID)
		}
	})

	t.Run("Should derive identity from normalized metadata", func(t *testing.T) {
		embedder := &fakeEmbedder{}
		a := NewAssembler(embedder, "documents", model.PartitionChats)

		// 超过上限的单 token 标题被清洗成空串后再参与标识计算
		doc := model.Document{
			Text:     "body",
			Metadata: &model.DocumentMetadata{Title: strings.Repeat("A", 1000), Authors: "A", CreatedAt: "2024-01-01"},
		}
		chunks, failures := a.Assemble(ctx, []model.Document{doc}, 512)
		require.Empty(t, failures)

		wantID := DocumentID("", "A", "2024-01-01")
		_, ok := chunks[wantID]
		assert.True(t, ok)
	})

	t.Run("Should truncate embedder input to the character budget", func(t *testing.T) {
		embedder := &fakeEmbedder{}
		a := NewAssembler(embedder, "documents", model.PartitionChats)

		doc := model.Document{
			Text:      strings.Repeat("a", 600),
			Partition: model.PartitionPapers,
			Metadata:  &model.DocumentMetadata{Title: "T", Authors: "A", CreatedAt: "2024-01-01"},
		}
		chunks, failures := a.Assemble(ctx, []model.Document{doc}, 600)
		require.Empty(t, failures)

		require.Len(t, embedder.inputs, 1)
		assert.Len(t, embedder.inputs[0], EmbedInputLimit)

		// 分块正文保留切分后的完整文本，只有送入向量模型的拷贝被截断
		docChunks := chunks[DocumentID("T", "A", "2024-01-01")]
		require.Len(t, docChunks, 1)
		assert.Len(t, docChunks[0].Text, 600)
	})

	t.Run("Should fail the whole document when one chunk fails", func(t *testing.T) {
		embedder := &fakeEmbedder{failWord: "POISON"}
		a := NewAssembler(embedder, "documents", model.PartitionChats)

		good := model.Document{
			Text:      "healthy body",
			Partition: model.PartitionPapers,
			Metadata:  &model.DocumentMetadata{Title: "Good", Authors: "A", CreatedAt: "2024-01-01"},
		}
		bad := model.Document{
			Text:      "first part\n\nPOISON part",
			Partition: model.PartitionPapers,
			Metadata:  &model.DocumentMetadata{Title: "Bad", Authors: "A", CreatedAt: "2024-01-01"},
		}

		chunks, failures := a.Assemble(ctx, []model.Document{good, bad}, 12)

		goodID := DocumentID("Good", "A", "2024-01-01")
		badID := DocumentID("Bad", "A", "2024-01-01")

		_, ok := chunks[goodID]
		assert.True(t, ok, "healthy document keeps its chunks")
		_, ok = chunks[badID]
		assert.False(t, ok, "failed document must not partially succeed")
		require.Contains(t, failures, badID)
		assert.ErrorContains(t, failures[badID], "embedding backend unavailable")
	})
}
