package domain

import "errors"

var (
	// ErrInvalidInput indicates a document without a name or content.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingAPIKey indicates no credential is configured for the embedding provider.
	ErrMissingAPIKey = errors.New("embedding provider credential not configured")

	// ErrProvider indicates a network or HTTP failure from the embedding provider.
	ErrProvider = errors.New("embedding provider error")

	// ErrDimensionMismatch indicates two vectors of different length were compared.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
