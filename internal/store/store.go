// Package store is the document-store collaborator: published policy versions
// with their extracted chunk records, and the append-only query log.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"policy-rag/internal/config"
	"policy-rag/internal/helper"
	"policy-rag/internal/models"
)

// Policy is one uploaded policy version, unique per
// (insurance_type, policy_name, policy_year).
type Policy struct {
	bun.BaseModel `bun:"table:policies,alias:p"`
	ID            string         `bun:"id,pk"`
	InsuranceType string         `bun:"insurance_type,notnull"`
	PolicyName    string         `bun:"policy_name,notnull"`
	PolicyYear    string         `bun:"policy_year,notnull"`
	DocumentURL   string         `bun:"document_url,notnull"`
	Published     bool           `bun:"published,notnull,default:false"`
	Chunks        []models.Chunk `bun:"chunks,type:jsonb"`
	CreatedAt     time.Time      `bun:"created_at,notnull"`
	UpdatedAt     time.Time      `bun:"updated_at,notnull"`
}

// QueryLog records one answered question. Created once, never mutated.
type QueryLog struct {
	bun.BaseModel `bun:"table:query_logs,alias:q"`
	ID            string    `bun:"id,pk"`
	PolicyID      string    `bun:"policy_id,notnull"`
	InsuranceType string    `bun:"insurance_type,notnull"`
	PolicyName    string    `bun:"policy_name,notnull"`
	PolicyYear    string    `bun:"policy_year,notnull"`
	Question      string    `bun:"question,notnull"`
	Answer        string    `bun:"answer,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

// QuestionCount is one row of the top-questions report.
type QuestionCount struct {
	Question string `bun:"question" json:"question"`
	Count    int    `bun:"count" json:"count"`
}

type Store struct {
	db *bun.DB
}

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	return sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithPassword(cfg.Password),
	)), nil
}

func New(sqldb *sql.DB, debug bool) *Store {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

// Init creates the tables and the uniqueness index over the policy version
// triple.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*Policy)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}
	if _, err := s.db.NewCreateTable().Model((*QueryLog)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}
	_, err := s.db.NewCreateIndex().
		Model((*Policy)(nil)).
		Index("policies_version_idx").
		Unique().
		Column("insurance_type", "policy_name", "policy_year").
		IfNotExists().
		Exec(ctx)
	return err
}

// CreatePolicy inserts a new policy version. An existing version of the same
// triple fails with ErrDuplicatePolicy.
func (s *Store) CreatePolicy(ctx context.Context, policy *Policy) error {
	if err := ValidateChunks(policy.Chunks); err != nil {
		return err
	}

	exists, err := s.db.NewSelect().
		Model((*Policy)(nil)).
		Where("insurance_type = ?", policy.InsuranceType).
		Where("policy_name = ?", policy.PolicyName).
		Where("policy_year = ?", policy.PolicyYear).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicatePolicy
	}

	if policy.ID == "" {
		id, err := helper.GenerateUUID()
		if err != nil {
			return err
		}
		policy.ID = id
	}
	now := time.Now().UTC()
	policy.CreatedAt = now
	policy.UpdatedAt = now

	_, err = s.db.NewInsert().Model(policy).Exec(ctx)
	return err
}

// GetPublishedPolicy looks up a published policy version; anything else is
// ErrPolicyNotFound.
func (s *Store) GetPublishedPolicy(ctx context.Context, insuranceType, policyName, policyYear string) (*Policy, error) {
	policy := new(Policy)
	err := s.db.NewSelect().
		Model(policy).
		Where("insurance_type = ?", insuranceType).
		Where("policy_name = ?", policyName).
		Where("policy_year = ?", policyYear).
		Where("published = TRUE").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, err
	}
	return policy, nil
}

func (s *Store) SetPublished(ctx context.Context, id string, published bool) (*Policy, error) {
	res, err := s.db.NewUpdate().
		Model((*Policy)(nil)).
		Set("published = ?", published).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrPolicyNotFound
	}

	policy := new(Policy)
	if err := s.db.NewSelect().Model(policy).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, err
	}
	return policy, nil
}

func (s *Store) ListPolicies(ctx context.Context, published *bool) ([]Policy, error) {
	var policies []Policy
	q := s.db.NewSelect().Model(&policies).Order("created_at DESC")
	if published != nil {
		q = q.Where("published = ?", *published)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return policies, nil
}

func (s *Store) InsertQueryLogs(ctx context.Context, logs []QueryLog) error {
	if len(logs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range logs {
		if logs[i].ID == "" {
			id, err := helper.GenerateUUID()
			if err != nil {
				return err
			}
			logs[i].ID = id
		}
		if logs[i].CreatedAt.IsZero() {
			logs[i].CreatedAt = now
		}
	}
	_, err := s.db.NewInsert().Model(&logs).Exec(ctx)
	return err
}

// TopQuestions groups the query log by question text, most asked first.
func (s *Store) TopQuestions(ctx context.Context, limit int) ([]QuestionCount, error) {
	var rows []QuestionCount
	err := s.db.NewSelect().
		Model((*QueryLog)(nil)).
		ColumnExpr("question").
		ColumnExpr("count(*) AS count").
		GroupExpr("question").
		OrderExpr("count DESC").
		Limit(limit).
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) RecentQueries(ctx context.Context, limit int) ([]QueryLog, error) {
	var logs []QueryLog
	err := s.db.NewSelect().
		Model(&logs).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// ValidateChunks rejects malformed chunk records at the storage boundary so
// missing fields never propagate into retrieval.
func ValidateChunks(chunks []models.Chunk) error {
	prevID := -1
	for i, chunk := range chunks {
		switch {
		case chunk.Source == "":
			return fmt.Errorf("chunk %d: %w: missing source", i, ErrMalformedChunk)
		case chunk.Page < 1:
			return fmt.Errorf("chunk %d: %w: page %d is not 1-based", i, ErrMalformedChunk, chunk.Page)
		case chunk.Content == "":
			return fmt.Errorf("chunk %d: %w: empty content", i, ErrMalformedChunk)
		case chunk.ChunkID <= prevID:
			return fmt.Errorf("chunk %d: %w: chunk_id %d not strictly increasing", i, ErrMalformedChunk, chunk.ChunkID)
		}
		prevID = chunk.ChunkID
	}
	return nil
}
