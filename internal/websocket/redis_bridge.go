package websocket

import (
	"context"

	"xianyu-autosell/internal/events"
)

// RedisBridge relays account events published by any instance to the
// dashboards connected to this one.
type RedisBridge struct {
	subscriber events.Subscriber
	hub        *Hub
}

func NewRedisBridge(subscriber events.Subscriber, hub *Hub) *RedisBridge {
	return &RedisBridge{subscriber: subscriber, hub: hub}
}

func (b *RedisBridge) Run(ctx context.Context) error {
	return b.subscriber.Subscribe(ctx, []string{events.ChannelPatternAccounts}, func(channel string, payload []byte) {
		if _, ok := events.AccountFromChannel(channel); !ok {
			return
		}
		b.hub.Broadcast(channel, payload)
	})
}
