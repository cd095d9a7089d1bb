package events

import (
	"context"
	"encoding/json"
	"time"

	"xianyu-autosell/pkg/logger"
)

// Publisher sends a serialised envelope to a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Emitter builds envelopes and publishes them to the owning account's channel.
// Publishing is best effort: failures are logged and never reach the caller.
// A nil *Emitter discards everything.
type Emitter struct {
	publisher Publisher
	log       *logger.Logger
	now       func() time.Time
}

func NewEmitter(publisher Publisher, log *logger.Logger) *Emitter {
	if log == nil {
		log = logger.NewNop()
	}
	return &Emitter{publisher: publisher, log: log, now: time.Now}
}

func (e *Emitter) Emit(ctx context.Context, accountID, eventType, aggregateType, aggregateID string, payload interface{}) {
	if e == nil || e.publisher == nil || accountID == "" {
		return
	}
	env, err := NewEnvelope(eventType, aggregateType, aggregateID, payload, e.now())
	if err != nil {
		e.log.WithContext(ctx).Errorf("encode %s event: %v", eventType, err)
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		e.log.WithContext(ctx).Errorf("encode %s envelope: %v", eventType, err)
		return
	}
	if err := e.publisher.Publish(ctx, AccountChannel(accountID), data); err != nil {
		e.log.WithContext(ctx).Warnf("publish %s to account %s: %v", eventType, accountID, err)
	}
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, channel string, payload []byte) error

func (f PublisherFunc) Publish(ctx context.Context, channel string, payload []byte) error {
	return f(ctx, channel, payload)
}
