package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrNotConfigured indicates the backing client was not initialised.
	ErrNotConfigured = errors.New("storage: backend not configured")
	// ErrNotAdvanced is returned by Save when the value does not exceed the stored record.
	ErrNotAdvanced = errors.New("storage: value does not exceed stored ath")
)

// Store holds the single persisted all-time-high scalar for the watched asset.
//
// Load never fails outward: a missing or unreadable record reads as 0.
// Save persists value only when it is strictly greater than the stored
// record, returning ErrNotAdvanced otherwise, so the record is monotonic
// even with more than one writer.
type Store interface {
	Load(ctx context.Context) uint64
	Save(ctx context.Context, value uint64) error
}

// EventLister exposes the history of detected maxima where a backend keeps one.
type EventLister interface {
	ListRecentEvents(ctx context.Context, limit int) ([]AthEvent, error)
}

func parseValue(raw string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
}

func formatValue(v uint64) string {
	return strconv.FormatUint(v, 10)
}
