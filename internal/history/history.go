package history

import (
	"context"
	"time"
)

// History source values: who caused the change being recorded.
const (
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
	SourceSync = "sync"
	SourceCard = "card"
)

// History kind values: which namespace event the row records.
const (
	KindValue  = "value"
	KindInfo   = "info"
	KindAdd    = "add"
	KindRemove = "remove"
	KindTLV    = "tlv"
)

// Entry represents a single recorded control event.
//
// ElemID is the textual element identity without its numid, so one element
// keeps a single history line even when rule reloads re-mint its numid.
// Numid is the application numid the element carried when the event fired.
type Entry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// Numid is the application-namespace numid at event time.
	Numid uint32 `json:"numid"`

	// ElemID is the textual identity, e.g. "iface=MIXER,name='Master'".
	ElemID string `json:"elem_id"`

	// Kind is the event kind (value, info, add, remove, tlv).
	Kind string `json:"kind"`

	// Values holds the numeric channel values after the event, when the
	// element carries numeric channels and the kind is value.
	Values []int64 `json:"values,omitempty"`

	// Source identifies how the change was made (api, mqtt, sync, card).
	Source string `json:"source"`

	// CreatedAt is the timestamp of the event (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// Repository stores and retrieves control event history.
//
// Implementations must be thread-safe and use UTC timestamps.
type Repository interface {
	// Record persists one control event.
	Record(ctx context.Context, entry Entry) error

	// Recent returns the newest entries across all elements, newest first.
	// The limit may be clamped by the implementation.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// ForElement returns the newest entries for one element identity,
	// newest first.
	ForElement(ctx context.Context, elemID string, limit int) ([]Entry, error)

	// Prune deletes entries older than the given duration and reports how
	// many rows were removed.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
