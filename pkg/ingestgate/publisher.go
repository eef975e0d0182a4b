package ingestgate

import "context"

// Publisher delivers messages to a topic bound at construction.
// Each call is all-or-nothing and emits exactly one outcome sample.
type Publisher interface {
	// PublishOne sends a single message.
	PublishOne(ctx context.Context, message []byte) error

	// PublishBatch sends messages in one broker request.
	PublishBatch(ctx context.Context, messages [][]byte) error

	// Close releases the producer and connection. Safe to call repeatedly.
	Close() error
}
