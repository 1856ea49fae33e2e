package rag

import (
	"math"
	"sort"
)

// QueryResult is one similarity match: the chunk key and its cosine score.
type QueryResult struct {
	Key   int
	Score float32
}

// SerializedIndex is the persisted form of a VectorIndex: parallel arrays
// where Keys[i] owns Vectors[i].
type SerializedIndex struct {
	Keys    []int
	Vectors [][]float32
}

// VectorIndex is an in-memory similarity index over embedding vectors.
// Vectors are normalized on insert, so cosine similarity reduces to a dot
// product at query time. One key (chunk index) may own several vectors.
type VectorIndex struct {
	keys    []int
	vectors [][]float32
}

func NewVectorIndex() *VectorIndex {
	return &VectorIndex{}
}

func normalize(vector []float32) {
	var magnitude float64
	for _, v := range vector {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)
	if magnitude == 0 {
		return
	}
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Add registers vectors under key. The vectors are normalized in place.
func (idx *VectorIndex) Add(key int, vectors ...[]float32) {
	for _, vector := range vectors {
		normalize(vector)
		idx.keys = append(idx.keys, key)
		idx.vectors = append(idx.vectors, vector)
	}
}

// Query returns up to topK matches ordered by descending score.
func (idx *VectorIndex) Query(query []float32, topK int) []QueryResult {
	normalize(query)

	var top []QueryResult
	for i, vector := range idx.vectors {
		score := dot(vector, query)

		if len(top) < topK {
			top = append(top, QueryResult{Key: idx.keys[i], Score: score})
			sort.Slice(top, func(a, b int) bool { return top[a].Score < top[b].Score })
		} else if len(top) > 0 && score > top[0].Score {
			top[0] = QueryResult{Key: idx.keys[i], Score: score}
			sort.Slice(top, func(a, b int) bool { return top[a].Score < top[b].Score })
		}
	}

	sort.Slice(top, func(a, b int) bool { return top[a].Score > top[b].Score })
	return top
}

// Serialize exports the index contents for persistence.
func (idx *VectorIndex) Serialize() SerializedIndex {
	keys := make([]int, len(idx.keys))
	copy(keys, idx.keys)
	vectors := make([][]float32, len(idx.vectors))
	for i, v := range idx.vectors {
		vectors[i] = append([]float32(nil), v...)
	}
	return SerializedIndex{Keys: keys, Vectors: vectors}
}

// Load replaces the index contents with previously serialized data.
// Vectors were normalized before serialization and are taken as-is.
func (idx *VectorIndex) Load(data SerializedIndex) {
	idx.keys = data.Keys
	idx.vectors = data.Vectors
}

// Len returns the number of stored vectors.
func (idx *VectorIndex) Len() int {
	return len(idx.vectors)
}
