// Package provider defines the upstream catalogue sources that feed search
// and home aggregation, and their implementations.
package provider

import (
	"context"

	"hoplink/internal/media"
)

// Source is a searchable upstream catalogue.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// Search returns matching items for a query.
	Search(ctx context.Context, query string) ([]media.SearchItem, error)
}

// Lister is a source with browsable category pages.
type Lister interface {
	// Category returns the items listed at path, relative to the site base.
	Category(ctx context.Context, path string) ([]media.SearchItem, error)
}
