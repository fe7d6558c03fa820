// Package postgres implements the storage ports on PostgreSQL with the
// pgvector extension.
//
// Vectors live in a vector column and are read and written through
// pgvector-go. The same table backs a VectorIndex that ranks candidates
// with the cosine distance operator, so the store and the index can never
// disagree about which chunks exist.
//
// The schema is created on first connect from scripts/schema.sql.
package postgres
