package ports

import "context"

// Publisher hands a serialized payload to the message bus. Delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Name() string
}
