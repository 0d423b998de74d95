// Package store persists blocks and pending messages on top of the
// generic storage.DB key-value interface (spec.md §6: "Block-store
// persistence" / "Message-pool persistence").
package store

import "errors"

// ErrNotFound is returned when a requested block or message does not exist.
var ErrNotFound = errors.New("store: not found")
