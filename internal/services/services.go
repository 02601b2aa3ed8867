package services

import (
	"context"

	"github.com/desertthunder/ytmp3/internal/models"
)

// Source resolves resources and acquires their byte streams.
type Source interface {
	// Resolve fetches metadata and the selectable format list for resourceID.
	Resolve(ctx context.Context, resourceID string, cfg RequestConfig) (*models.Resource, error)

	// Acquire opens a byte stream for format. The caller closes [models.Stream.Body].
	// Errors after the stream is returned surface from Read.
	Acquire(ctx context.Context, res *models.Resource, format models.Format, cfg RequestConfig) (*models.Stream, error)

	// Name returns the name of the source (e.g., "YouTube")
	Name() string
}
