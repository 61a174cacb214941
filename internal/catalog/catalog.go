// Package catalog provides the reference stock list: lookup by code or
// display name, and uniform random selection.
package catalog

import (
	"context"
	"errors"
)

var (
	// ErrStockNotFound means the identifier matched neither a code nor a name.
	ErrStockNotFound = errors.New("stock not found")
	// ErrCatalogEmpty means there are no stocks to choose from.
	ErrCatalogEmpty = errors.New("stock catalog is empty")
)

// Stock identifies one listed stock.
type Stock struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Catalog is the reference stock list. Lookup resolves an identifier that
// may be either a code or a display name; an exact code match takes
// priority over a name match.
type Catalog interface {
	Lookup(ctx context.Context, identifier string) (Stock, error)
	Random(ctx context.Context) (Stock, error)
}
