// Package retrieval embeds a question, queries the similarity index, and
// assembles the context window from the best-matching chunks.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"policy-rag/internal/index"
	"policy-rag/internal/models"
)

// Embedder is the slice of the embedding provider retrieval needs.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retrieve returns the topK chunks most similar to the question, in
// descending score order. The index must have been built from the same chunk
// sequence, in the same order.
func Retrieve(ctx context.Context, embedder Embedder, idx *index.Flat, chunks []models.Chunk, question string, topK int) ([]models.Chunk, error) {
	if idx.Len() != len(chunks) {
		return nil, fmt.Errorf("index has %d entries for %d chunks", idx.Len(), len(chunks))
	}
	queryVector, err := embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	hits := idx.Search(queryVector, topK)
	selected := make([]models.Chunk, 0, len(hits))
	for _, hit := range hits {
		selected = append(selected, chunks[hit.Position])
	}
	return selected, nil
}

// BuildContext concatenates chunk contents in retrieval order, separated by
// blank lines.
func BuildContext(chunks []models.Chunk) string {
	contents := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		contents = append(contents, chunk.Content)
	}
	return strings.Join(contents, "\n\n")
}
