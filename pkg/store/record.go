package store

import (
	"strings"
	"time"
)

// KeySeparator joins link and title in a composite dedup key.
const KeySeparator = "\x1f"

// NormalizedRecord is the canonical shape of any ingested item.
// Timestamp is nil when the source had no usable date.
type NormalizedRecord struct {
	Title     string     `json:"title"`
	Link      string     `json:"link"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Source    string     `json:"source,omitempty"`
}

// Valid reports whether the record has both a title and a link.
func (r NormalizedRecord) Valid() bool {
	return strings.TrimSpace(r.Title) != "" && strings.TrimSpace(r.Link) != ""
}

// CompositeKey is lowercase(link) + separator + lowercase(title).
func (r NormalizedRecord) CompositeKey() string {
	return strings.ToLower(r.Link) + KeySeparator + strings.ToLower(r.Title)
}

// SortTime returns the timestamp, or the Unix epoch when absent.
func (r NormalizedRecord) SortTime() time.Time {
	if r.Timestamp == nil {
		return time.Unix(0, 0).UTC()
	}
	return *r.Timestamp
}
