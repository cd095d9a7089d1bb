package events

import "context"

// Subscriber delivers messages from channels matching the given patterns until
// ctx ends.
type Subscriber interface {
	Subscribe(ctx context.Context, patterns []string, handler func(channel string, payload []byte)) error
}
