// Package index provides an exact inner-product nearest-neighbor index over
// unit-normalized vectors. Position i in the index corresponds to position i
// in the chunk sequence it was built from.
package index

import (
	"fmt"
	"sort"
)

// Hit is one search result: an index position and its inner-product score.
type Hit struct {
	Position int
	Score    float32
}

// Flat is a brute-force flat index. It is immutable once built.
type Flat struct {
	dim     int
	vectors [][]float32
}

// Build constructs an index over exactly len(vectors) entries, preserving
// input order. All vectors must share one dimension.
func Build(vectors [][]float32) (*Flat, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("cannot build index over zero vectors")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("cannot build index over zero-dimension vectors")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}
	stored := make([][]float32, len(vectors))
	copy(stored, vectors)
	return &Flat{dim: dim, vectors: stored}, nil
}

func (f *Flat) Len() int { return len(f.vectors) }

func (f *Flat) Dimension() int { return f.dim }

// Search returns the k positions with the highest inner-product score against
// the query, strictly descending by score, ties broken by ascending position.
// If k exceeds the number of indexed vectors, all of them are returned.
func (f *Flat) Search(query []float32, k int) []Hit {
	if k <= 0 {
		return nil
	}
	hits := make([]Hit, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = Hit{Position: i, Score: dot(v, query)}
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Position < hits[b].Position
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k]
}

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
