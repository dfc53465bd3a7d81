// Package rag wires the pipeline together: fetch → extract → embed → index →
// retrieve → synthesize, plus the persistence collaborators around it.
package rag

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"policy-rag/internal/config"
	"policy-rag/internal/index"
	"policy-rag/internal/models"
	"policy-rag/internal/parser"
	"policy-rag/internal/retrieval"
	"policy-rag/internal/store"
	"policy-rag/internal/vectorcache"
)

// ErrNoContent means a policy has zero usable chunks; query calls fail with it
// instead of silently answering from nothing.
var ErrNoContent = errors.New("policy content unavailable")

type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

type Synthesizer interface {
	Answer(ctx context.Context, question, contextText string) (string, error)
}

type PolicyStore interface {
	CreatePolicy(ctx context.Context, policy *store.Policy) error
	GetPublishedPolicy(ctx context.Context, insuranceType, policyName, policyYear string) (*store.Policy, error)
	SetPublished(ctx context.Context, id string, published bool) (*store.Policy, error)
	InsertQueryLogs(ctx context.Context, logs []store.QueryLog) error
}

type VectorCache interface {
	Put(ctx context.Context, key vectorcache.Key, chunks []models.Chunk, vectors [][]float32) error
	Get(ctx context.Context, key vectorcache.Key, chunks []models.Chunk) ([][]float32, bool)
	Invalidate(key vectorcache.Key) error
}

// PolicyRequest describes one policy version to ingest.
type PolicyRequest struct {
	InsuranceType string
	PolicyName    string
	PolicyYear    string
	DocumentURL   string
	Publish       bool
}

// Pipeline coordinates one document/query batch end to end. Within a batch
// questions are processed sequentially, in input order.
type Pipeline struct {
	store    PolicyStore
	cache    VectorCache
	embedder Embedder
	synth    Synthesizer
	cfg      *config.Config
}

// NewPipeline assembles a coordinator. store and cache may be nil for the
// one-shot flow that never persists anything.
func NewPipeline(policyStore PolicyStore, cache VectorCache, embedder Embedder, synth Synthesizer, cfg *config.Config) *Pipeline {
	return &Pipeline{
		store:    policyStore,
		cache:    cache,
		embedder: embedder,
		synth:    synth,
		cfg:      cfg,
	}
}

// Ingest fetches a document and extracts its ordered chunk sequence. A fetch
// with a non-success status surfaces as *parser.DownloadError before any
// extraction happens.
func (p *Pipeline) Ingest(ctx context.Context, documentURL string) ([]models.Chunk, error) {
	data, err := parser.FetchDocument(ctx, documentURL)
	if err != nil {
		return nil, err
	}
	source := parser.SourceFromURL(documentURL)
	chunks, err := parser.ExtractDocument(data, source, parser.Options{
		ChunkSize:    p.cfg.RAG.ChunkSize,
		ChunkOverlap: p.cfg.RAG.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, ErrNoContent
	}
	log.Info().Str("source", source).Int("chunks", len(chunks)).Msg("Extracted document")
	return chunks, nil
}

// CreatePolicy ingests a document and persists it as a policy version. The
// embedding cache is warmed best-effort; its failures never fail the create.
func (p *Pipeline) CreatePolicy(ctx context.Context, req PolicyRequest) (*store.Policy, error) {
	chunks, err := p.Ingest(ctx, req.DocumentURL)
	if err != nil {
		return nil, err
	}

	policy := &store.Policy{
		InsuranceType: req.InsuranceType,
		PolicyName:    req.PolicyName,
		PolicyYear:    req.PolicyYear,
		DocumentURL:   req.DocumentURL,
		Published:     req.Publish,
		Chunks:        chunks,
	}
	if err := p.store.CreatePolicy(ctx, policy); err != nil {
		return nil, err
	}

	if p.cache != nil {
		key := vectorcache.Key{InsuranceType: req.InsuranceType, PolicyName: req.PolicyName, PolicyYear: req.PolicyYear}
		if _, err := p.chunkVectors(ctx, key, chunks); err != nil {
			log.Warn().Err(err).Msg("Failed to warm embedding cache")
		}
	}
	return policy, nil
}

// SetPublished toggles a policy version and invalidates its cached
// embeddings.
func (p *Pipeline) SetPublished(ctx context.Context, id string, published bool) (*store.Policy, error) {
	policy, err := p.store.SetPublished(ctx, id, published)
	if err != nil {
		return nil, err
	}
	if p.cache != nil {
		key := vectorcache.Key{InsuranceType: policy.InsuranceType, PolicyName: policy.PolicyName, PolicyYear: policy.PolicyYear}
		if err := p.cache.Invalidate(key); err != nil {
			log.Warn().Err(err).Msg("Failed to invalidate embedding cache")
		}
	}
	return policy, nil
}

// Query answers questions against a published policy. The result has exactly
// one answer per question, positionally aligned. A synthesis failure aborts
// the whole batch; a log write failure never blocks the answers.
func (p *Pipeline) Query(ctx context.Context, insuranceType, policyName, policyYear string, questions []string) ([]string, error) {
	policy, err := p.store.GetPublishedPolicy(ctx, insuranceType, policyName, policyYear)
	if err != nil {
		return nil, err
	}
	if len(policy.Chunks) == 0 {
		return nil, ErrNoContent
	}
	if err := store.ValidateChunks(policy.Chunks); err != nil {
		return nil, err
	}

	key := vectorcache.Key{InsuranceType: insuranceType, PolicyName: policyName, PolicyYear: policyYear}
	vectors, err := p.chunkVectors(ctx, key, policy.Chunks)
	if err != nil {
		return nil, err
	}
	idx, err := index.Build(vectors)
	if err != nil {
		return nil, err
	}

	answers, err := p.answerQuestions(ctx, idx, policy.Chunks, questions)
	if err != nil {
		return nil, err
	}

	logs := make([]store.QueryLog, len(questions))
	for i := range questions {
		logs[i] = store.QueryLog{
			PolicyID:      policy.ID,
			InsuranceType: policy.InsuranceType,
			PolicyName:    policy.PolicyName,
			PolicyYear:    policy.PolicyYear,
			Question:      questions[i],
			Answer:        answers[i],
		}
	}
	if err := p.store.InsertQueryLogs(ctx, logs); err != nil {
		log.Warn().Err(err).Msg("Failed to write query log")
	}
	return answers, nil
}

// Answer is the one-shot flow: document URL plus questions, no persistence
// and no query log.
func (p *Pipeline) Answer(ctx context.Context, documentURL string, questions []string) ([]string, error) {
	chunks, err := p.Ingest(ctx, documentURL)
	if err != nil {
		return nil, err
	}
	vectors, err := p.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}
	idx, err := index.Build(vectors)
	if err != nil {
		return nil, err
	}
	return p.answerQuestions(ctx, idx, chunks, questions)
}

func (p *Pipeline) answerQuestions(ctx context.Context, idx *index.Flat, chunks []models.Chunk, questions []string) ([]string, error) {
	answers := make([]string, 0, len(questions))
	for _, question := range questions {
		top, err := retrieval.Retrieve(ctx, p.embedder, idx, chunks, question, p.cfg.RAG.TopK)
		if err != nil {
			return nil, err
		}
		answer, err := p.synth.Answer(ctx, question, retrieval.BuildContext(top))
		if err != nil {
			return nil, err
		}
		answers = append(answers, strings.TrimSpace(answer))
	}
	return answers, nil
}

// chunkVectors returns one vector per chunk, from the cache when a complete
// collection exists, otherwise by embedding and repopulating the cache.
func (p *Pipeline) chunkVectors(ctx context.Context, key vectorcache.Key, chunks []models.Chunk) ([][]float32, error) {
	if p.cache != nil {
		if vectors, ok := p.cache.Get(ctx, key, chunks); ok {
			log.Debug().Int("vectors", len(vectors)).Msg("Embedding cache hit")
			return vectors, nil
		}
	}
	vectors, err := p.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if p.cache != nil {
		if err := p.cache.Put(ctx, key, chunks, vectors); err != nil {
			log.Warn().Err(err).Msg("Failed to populate embedding cache")
		}
	}
	return vectors, nil
}

func (p *Pipeline) embedChunks(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	contents := make([]string, len(chunks))
	for i, chunk := range chunks {
		contents[i] = chunk.Content
	}
	return p.embedder.EmbedDocuments(ctx, contents)
}
