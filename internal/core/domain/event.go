package domain

import "time"

// EventType is the kind of a stream event.
type EventType string

const (
	EventTypeStreamStart   EventType = "stream_start"
	EventTypeCycleStart    EventType = "cycle_start"
	EventTypeAlert         EventType = "whale_alert"
	EventTypeActivity      EventType = "whale_activity"
	EventTypeError         EventType = "error"
	EventTypeHeartbeat     EventType = "heartbeat"
	EventTypeCycleComplete EventType = "cycle_complete"
	EventTypeStreamEnd     EventType = "stream_end"
)

// StreamEvent is one line of the JSONL output stream.
type StreamEvent struct {
	Type      EventType `json:"type"`
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// CacheEntry is a cached fetch result. It is usable iff now < FetchedAt+TTL.
type CacheEntry struct {
	Fingerprint string        `json:"fingerprint"`
	Payload     []byte        `json:"payload"`
	FetchedAt   time.Time     `json:"fetched_at"`
	TTL         time.Duration `json:"ttl"`
}

// ExpiresAt returns the first instant at which the entry is stale.
func (e *CacheEntry) ExpiresAt() time.Time {
	return e.FetchedAt.Add(e.TTL)
}

// FreshAt reports whether the entry is usable at now. The boundary is stale.
func (e *CacheEntry) FreshAt(now time.Time) bool {
	return now.Before(e.ExpiresAt())
}
