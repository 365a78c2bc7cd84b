package storage

import "time"

// AthRecord is the durable highest price observed for an asset.
type AthRecord struct {
	Asset     string
	Value     uint64
	UpdatedAt time.Time
}

// AthEvent captures one detected maximum for auditing.
type AthEvent struct {
	ID        int64
	Asset     string
	Previous  uint64
	Value     uint64
	CreatedAt time.Time
}
