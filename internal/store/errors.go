package store

import "errors"

var (
	// ErrPolicyNotFound covers both a missing policy version and an
	// unpublished one; callers surface it as a 404-equivalent.
	ErrPolicyNotFound = errors.New("policy not found or unpublished")

	// ErrDuplicatePolicy signals that this version triple already exists.
	ErrDuplicatePolicy = errors.New("policy version already exists")

	// ErrMalformedChunk marks a stored chunk record missing required fields.
	ErrMalformedChunk = errors.New("malformed chunk record")
)
