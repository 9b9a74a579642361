package es

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qgr-retrieval-go/internal/model"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header: http.Header{
			"Content-Type":      []string{"application/json"},
			"X-Elastic-Product": []string{"Elasticsearch"},
		},
		Body: io.NopCloser(strings.NewReader(body)),
	}
}

func newTestStore(t *testing.T, fn roundTripFunc) *Store {
	t.Helper()
	client, err := elasticsearch.NewClient(elasticsearch.Config{Transport: fn})
	require.NoError(t, err)
	return &Store{
		client:            client,
		dims:              OutputDim,
		defaultCollection: "documents",
		defaultPartition:  model.PartitionChats,
	}
}

func TestStore_Query(t *testing.T) {
	ctx := context.Background()

	t.Run("Should preserve input order and isolate per-query failures", func(t *testing.T) {
		store := newTestStore(t, func(r *http.Request) (*http.Response, error) {
			switch {
			case strings.HasPrefix(r.URL.Path, "/col-ok/"):
				return jsonResponse(http.StatusOK, `{
					"hits": {"hits": [
						{"_id": "r1", "_score": 0.9, "_source": {
							"chunk_id": "c1", "document_id": "d1",
							"title": "T", "content": "hello", "partition": "chats"
						}}
					]}
				}`), nil
			case strings.HasPrefix(r.URL.Path, "/col-bad/"):
				return jsonResponse(http.StatusInternalServerError, `{"error":"boom"}`), nil
			default:
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
				return jsonResponse(http.StatusNotFound, `{}`), nil
			}
		})

		queries := []model.QueryWithEmbedding{
			{Query: model.Query{Query: "good", Collection: "col-ok", TopK: 5}, Embedding: []float32{1, 0}},
			{Query: model.Query{Query: "broken", Collection: "col-bad", TopK: 5}, Embedding: []float32{0, 1}},
		}
		results, err := store.Query(ctx, queries)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, "good", results[0].Query)
		require.Len(t, results[0].Results, 1)
		assert.Equal(t, "c1", results[0].Results[0].ID)
		assert.Equal(t, "d1", results[0].Results[0].Metadata.DocumentID)
		assert.Equal(t, "hello", results[0].Results[0].Text)
		assert.Equal(t, 0.9, results[0].Results[0].Score)

		assert.Equal(t, "broken", results[1].Query)
		assert.Empty(t, results[1].Results)
	})

	t.Run("Should sort hits by descending score", func(t *testing.T) {
		store := newTestStore(t, func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{
				"hits": {"hits": [
					{"_id": "r1", "_score": 0.5, "_source": {"chunk_id": "low", "document_id": "d1"}},
					{"_id": "r2", "_score": 0.9, "_source": {"chunk_id": "high", "document_id": "d1"}}
				]}
			}`), nil
		})

		results, err := store.Query(ctx, []model.QueryWithEmbedding{
			{Query: model.Query{Query: "q", TopK: 5}, Embedding: []float32{1}},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Len(t, results[0].Results, 2)
		assert.Equal(t, "high", results[0].Results[0].ID)
		assert.Equal(t, "low", results[0].Results[1].ID)
	})
}

func TestStore_Upsert(t *testing.T) {
	ctx := context.Background()

	t.Run("Should count inserted chunks per document and refresh once", func(t *testing.T) {
		var mu sync.Mutex
		var calls []string
		store := newTestStore(t, func(r *http.Request) (*http.Response, error) {
			mu.Lock()
			calls = append(calls, r.Method+" "+r.URL.Path)
			mu.Unlock()
			switch {
			case strings.HasSuffix(r.URL.Path, "/_doc"):
				return jsonResponse(http.StatusCreated, `{"result":"created"}`), nil
			case strings.HasSuffix(r.URL.Path, "/_refresh"):
				return jsonResponse(http.StatusOK, `{"_shards":{"failed":0}}`), nil
			default:
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
				return jsonResponse(http.StatusNotFound, `{}`), nil
			}
		})

		chunks := map[string][]model.DocumentChunk{
			"d1": {
				{ID: "d1_0", Text: "one", Embedding: []float32{1}},
				{ID: "d1_1", Text: "two", Embedding: []float32{1}},
			},
		}
		counts, err := store.Upsert(ctx, chunks)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"d1": 2}, counts)

		var refreshes int
		for _, c := range calls {
			if strings.HasSuffix(c, "/_refresh") {
				refreshes++
			}
		}
		assert.Equal(t, 1, refreshes)
	})

	t.Run("Should drop a document whose chunk write fails", func(t *testing.T) {
		store := newTestStore(t, func(r *http.Request) (*http.Response, error) {
			switch {
			case strings.HasPrefix(r.URL.Path, "/col-bad/"):
				return jsonResponse(http.StatusInternalServerError, `{"error":"boom"}`), nil
			case strings.HasSuffix(r.URL.Path, "/_refresh"):
				return jsonResponse(http.StatusOK, `{"_shards":{"failed":0}}`), nil
			default:
				return jsonResponse(http.StatusCreated, `{"result":"created"}`), nil
			}
		})

		chunks := map[string][]model.DocumentChunk{
			"ok":  {{ID: "ok_0", Text: "fine", Embedding: []float32{1}}},
			"bad": {{ID: "bad_0", Text: "broken", Collection: "col-bad", Embedding: []float32{1}}},
		}
		counts, err := store.Upsert(ctx, chunks)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"ok": 1}, counts)
	})
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("Should look up row ids, delete them and refresh", func(t *testing.T) {
		var mu sync.Mutex
		var calls []string
		store := newTestStore(t, func(r *http.Request) (*http.Response, error) {
			mu.Lock()
			calls = append(calls, r.Method+" "+r.URL.Path)
			mu.Unlock()
			switch {
			case strings.HasSuffix(r.URL.Path, "/_search"):
				return jsonResponse(http.StatusOK, `{
					"hits": {"hits": [{"_id": "r1"}, {"_id": "r2"}]}
				}`), nil
			case strings.Contains(r.URL.Path, "/_doc/"):
				return jsonResponse(http.StatusOK, `{"result":"deleted"}`), nil
			case strings.HasSuffix(r.URL.Path, "/_refresh"):
				return jsonResponse(http.StatusOK, `{"_shards":{"failed":0}}`), nil
			default:
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
				return jsonResponse(http.StatusNotFound, `{}`), nil
			}
		})

		deleted, err := store.Delete(ctx, []string{"d1"})
		require.NoError(t, err)
		assert.True(t, deleted)

		require.Len(t, calls, 4)
		assert.Contains(t, calls[0], "/_search")
		assert.Equal(t, "DELETE /documents/_doc/r1", calls[1])
		assert.Equal(t, "DELETE /documents/_doc/r2", calls[2])
		assert.Contains(t, calls[3], "/_refresh")
	})

	t.Run("Should return false when no rows match", func(t *testing.T) {
		store := newTestStore(t, func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"hits":{"hits":[]}}`), nil
		})

		deleted, err := store.Delete(ctx, []string{"missing"})
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("Should fail closed on backend errors", func(t *testing.T) {
		store := newTestStore(t, func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusInternalServerError, `{"error":"boom"}`), nil
		})

		deleted, err := store.Delete(ctx, []string{"d1"})
		require.Error(t, err)
		assert.False(t, deleted)
	})
}
