package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrFetch marks every failure produced by a price source.
	ErrFetch = errors.New("fetch price")
	// ErrPriceMissing indicates the feed answered without the expected price field.
	ErrPriceMissing = errors.New("price field missing")
)

// PriceSample is a single observation of the watched asset's price.
type PriceSample struct {
	Value     uint64
	FetchedAt time.Time
}

// PriceSource retrieves the current asset price.
type PriceSource interface {
	FetchPrice(ctx context.Context) (PriceSample, error)
}

// FetchError wraps a fetch-layer failure. errors.Is(err, ErrFetch) holds for every FetchError.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch price from %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is reports ErrFetch so callers can classify without a type assertion.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }
