package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver moves aged terminal order records into cold storage.
type Archiver interface {
	// ArchiveOrders serializes terminal orders created before the cutoff,
	// together with their transition history, and uploads the result.
	// It returns the number of archived orders.
	ArchiveOrders(ctx context.Context, before time.Time) (int, error)
}
