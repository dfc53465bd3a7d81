package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRejectsEmptyAndMismatched(t *testing.T) {
	_, err := Build(nil)
	assert.Error(t, err)

	_, err = Build([][]float32{{1, 0}, {1, 0, 0}})
	assert.Error(t, err)
}

func TestSearchAlignment(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
		{0.5, 0.5, 0},
	}
	idx, err := Build(vectors)
	require.NoError(t, err)
	require.Equal(t, len(vectors), idx.Len())
	assert.Equal(t, 3, idx.Dimension())

	// k beyond the vector count returns every position exactly once
	hits := idx.Search([]float32{1, 0, 0}, 100)
	require.Len(t, hits, len(vectors))
	seen := map[int]bool{}
	for _, hit := range hits {
		assert.False(t, seen[hit.Position], "duplicate position %d", hit.Position)
		seen[hit.Position] = true
	}
}

func TestSearchScoreOrdering(t *testing.T) {
	idx, err := Build([][]float32{
		{0, 1},
		{1, 0},
		{0.7, 0.7},
	})
	require.NoError(t, err)

	hits := idx.Search([]float32{1, 0}, 3)
	require.Len(t, hits, 3)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
	assert.Equal(t, 1, hits[0].Position)
	assert.Equal(t, 2, hits[1].Position)
	assert.Equal(t, 0, hits[2].Position)
}

func TestSearchTiesBreakByPosition(t *testing.T) {
	idx, err := Build([][]float32{
		{1, 0},
		{0, 1},
		{1, 0},
	})
	require.NoError(t, err)

	hits := idx.Search([]float32{1, 0}, 2)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].Position)
	assert.Equal(t, 2, hits[1].Position)
	assert.Equal(t, hits[0].Score, hits[1].Score)
}

func TestSearchTopKCap(t *testing.T) {
	idx, err := Build([][]float32{{1, 0}, {0, 1}, {0.5, 0.5}})
	require.NoError(t, err)

	assert.Len(t, idx.Search([]float32{1, 0}, 2), 2)
	assert.Nil(t, idx.Search([]float32{1, 0}, 0))
}
