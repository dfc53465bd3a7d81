// Package vectorcache keeps chunk embeddings across requests, keyed by policy
// version, so repeat queries against the same published policy skip the
// embedding pass. Retrieval still runs on the request-scoped flat index; this
// cache only spares the backend calls.
package vectorcache

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"

	"policy-rag/internal/models"
)

const compress = false

// Key identifies one policy version's collection.
type Key struct {
	InsuranceType string
	PolicyName    string
	PolicyYear    string
}

func (k Key) collection() string {
	return sanitizeCollectionName(fmt.Sprintf("policy-%s-%s-%s", k.InsuranceType, k.PolicyName, k.PolicyYear))
}

type Cache struct {
	db *chromem.DB
}

func New(path string, inMemory bool) (*Cache, error) {
	if inMemory {
		return &Cache{db: chromem.NewDB()}, nil
	}
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Put stores one embedding per chunk, addressed by chunk ID.
func (c *Cache) Put(ctx context.Context, key Key, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	col, err := c.db.GetOrCreateCollection(key.collection(), nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %w", err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chromem.Document{
			ID:      strconv.Itoa(chunk.ChunkID),
			Content: chunk.Content,
			Metadata: map[string]string{
				"source": chunk.Source,
				"page":   strconv.Itoa(chunk.Page),
				"policy": chunk.PolicyName,
			},
			Embedding: vectors[i],
		}
	}
	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Get returns the cached vectors positionally aligned with chunks. A partial
// or stale collection counts as a miss.
func (c *Cache) Get(ctx context.Context, key Key, chunks []models.Chunk) ([][]float32, bool) {
	col := c.db.GetCollection(key.collection(), nil)
	if col == nil || col.Count() != len(chunks) {
		return nil, false
	}

	vectors := make([][]float32, len(chunks))
	for i, chunk := range chunks {
		doc, err := col.GetByID(ctx, strconv.Itoa(chunk.ChunkID))
		if err != nil || len(doc.Embedding) == 0 {
			return nil, false
		}
		vectors[i] = doc.Embedding
	}
	return vectors, true
}

// Invalidate drops a policy's collection; call on policy update or delete.
func (c *Cache) Invalidate(key Key) error {
	return c.db.DeleteCollection(key.collection())
}

// chromem collection names follow Chroma's rules: 3-63 chars from
// [a-zA-Z0-9._-].
func sanitizeCollectionName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	s := b.String()
	if len(s) > 63 {
		s = s[:63]
	}
	for len(s) < 3 {
		s += "-"
	}
	return s
}
