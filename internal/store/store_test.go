package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policy-rag/internal/models"
)

func validChunks() []models.Chunk {
	return []models.Chunk{
		{Source: "p.pdf", Page: 1, ChunkID: 0, Content: "[Policy: Silver Health Policy]\ncoverage"},
		{Source: "p.pdf", Page: 1, ChunkID: 1, Content: "[Policy: Silver Health Policy]\nexclusions"},
		{Source: "p.pdf", Page: 2, ChunkID: 2, Content: "[Policy: Silver Health Policy]\nwaiting periods"},
	}
}

func TestValidateChunksAcceptsWellFormed(t *testing.T) {
	assert.NoError(t, ValidateChunks(validChunks()))
	assert.NoError(t, ValidateChunks(nil))
}

func TestValidateChunksRejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(chunks []models.Chunk)
	}{
		{"missing source", func(c []models.Chunk) { c[1].Source = "" }},
		{"zero page", func(c []models.Chunk) { c[0].Page = 0 }},
		{"empty content", func(c []models.Chunk) { c[2].Content = "" }},
		{"repeated chunk id", func(c []models.Chunk) { c[2].ChunkID = 1 }},
		{"decreasing chunk id", func(c []models.Chunk) { c[1].ChunkID = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := validChunks()
			tt.mutate(chunks)
			err := ValidateChunks(chunks)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedChunk)
		})
	}
}
