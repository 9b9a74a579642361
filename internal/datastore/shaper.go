package datastore

import (
	"math/rand"
	"sort"
	"sync"

	"qgr-retrieval-go/internal/model"
)

// Shaper 对后端返回的原始命中做两阶段整形：
// 先按批量大小与精度档位截断，再按文档标识分组。
// 随机源由调用方注入，测试中可传入固定种子使截断可复现。
type Shaper struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewShaper 创建一个新的 Shaper。
func NewShaper(rng *rand.Rand) *Shaper {
	return &Shaper{rng: rng}
}

// TargetSize 根据同批查询的数量决定每个查询截断后的目标条数：
// 单查询 5 条，双查询各 3 条，三个及以上各 1 条。
func TargetSize(batchSize int) int {
	switch batchSize {
	case 1:
		return DefaultTopK
	case 2:
		return DefaultTopK - 2
	default:
		return 1
	}
}

// Shape 对整批查询结果依次截断并分组。
// 输出与输入按下标一一对应。
func (s *Shaper) Shape(queries []model.Query, results []model.QueryResult) []model.QueryGroupResult {
	size := TargetSize(len(results))

	grouped := make([]model.QueryGroupResult, 0, len(results))
	for i, qr := range results {
		precision := model.SearchPrecision("")
		if i < len(queries) {
			precision = queries[i].SearchPrecision
		}
		truncated := s.Truncate(qr.Results, size, precision)
		grouped = append(grouped, model.QueryGroupResult{
			Query:   qr.Query,
			Results: groupByDocument(truncated),
		})
	}
	return grouped
}

// Truncate 把候选结果截断到目标条数。
// 低/中精度从过采样候选池中等概率无放回抽样（有意用确定性换多样性），
// 高精度取分数降序的前 N 条，同分保持原有顺序。
// 候选不足目标条数时全部返回。
func (s *Shaper) Truncate(results []model.DocumentChunkWithScore, size int, precision model.SearchPrecision) []model.DocumentChunkWithScore {
	if len(results) <= size {
		return results
	}

	if precision == model.PrecisionLow || precision == model.PrecisionMedium {
		s.mu.Lock()
		perm := s.rng.Perm(len(results))
		s.mu.Unlock()

		sampled := make([]model.DocumentChunkWithScore, 0, size)
		for _, idx := range perm[:size] {
			sampled = append(sampled, results[idx])
		}
		return sampled
	}

	sorted := make([]model.DocumentChunkWithScore, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	return sorted[:size]
}

// groupByDocument 把已截断的分块列表折叠为每文档一条的分组视图。
// 分组顺序为文档标识首次出现的顺序；texts 与 scores 平行对应；
// collection/partition/metadata/embedding 取首个成员的值
// （同一文档的分块被认为在这些字段上是同质的，不做校验）。
func groupByDocument(results []model.DocumentChunkWithScore) []model.DocumentGroupWithScores {
	groups := make([]model.DocumentGroupWithScores, 0)
	index := make(map[string]int)

	for _, r := range results {
		docID := r.Metadata.DocumentID
		i, ok := index[docID]
		if !ok {
			i = len(groups)
			index[docID] = i
			groups = append(groups, model.DocumentGroupWithScores{
				DocumentID: docID,
				Collection: r.Collection,
				Partition:  r.Partition,
				Metadata:   r.Metadata,
				Embedding:  r.Embedding,
			})
		}
		groups[i].Texts = append(groups[i].Texts, r.Text)
		groups[i].Scores = append(groups[i].Scores, r.Score)
	}

	return groups
}
