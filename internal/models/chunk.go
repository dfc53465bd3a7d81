package models

// Chunk is the atomic retrieval unit: a bounded span of normalized document
// text plus the metadata needed to trace it back to its source page.
type Chunk struct {
	Source     string `json:"source"`
	Page       int    `json:"page"`
	ChunkID    int    `json:"chunk_id"`
	PolicyName string `json:"policy_name,omitempty"`
	Content    string `json:"content"`
}
