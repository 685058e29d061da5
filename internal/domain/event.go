package domain

import (
	"context"
	"time"
)

// RawEvent is a request message as read from the source topic. Commit
// acknowledges it; it is nil for events that did not come from a broker.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is a serialized analysis result keyed by request ID.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
