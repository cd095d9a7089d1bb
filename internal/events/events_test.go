package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"xianyu-autosell/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	channel string
	payload []byte
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	p.channel = channel
	p.payload = payload
	return p.err
}

func TestEmitterPublishesEnvelopeToAccountChannel(t *testing.T) {
	pub := &recordingPublisher{}
	e := NewEmitter(pub, logger.NewNop())

	e.Emit(context.Background(), "acc-1", EventTypeDeliverySucceeded, AggregateOrder, "O1", DeliveryPayload{
		OrderID: "O1", AccountID: "acc-1", RuleID: 3, RuleName: "cards",
	})

	assert.Equal(t, "channel:account:acc-1", pub.channel)
	var env Envelope
	require.NoError(t, json.Unmarshal(pub.payload, &env))
	assert.Equal(t, EventTypeDeliverySucceeded, env.EventType)
	assert.Equal(t, AggregateOrder, env.AggregateType)
	assert.Equal(t, "O1", env.AggregateID)
	assert.False(t, env.OccurredAt.IsZero())

	var payload DeliveryPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, int64(3), payload.RuleID)
	assert.Equal(t, "cards", payload.RuleName)
}

func TestEmitterSwallowsPublishErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis down")}
	e := NewEmitter(pub, logger.NewNop())
	assert.NotPanics(t, func() {
		e.Emit(context.Background(), "acc-1", EventTypeOrderRecorded, AggregateOrder, "O1", OrderRecordedPayload{OrderID: "O1"})
	})
	assert.Equal(t, "channel:account:acc-1", pub.channel)
}

func TestNilEmitterIsNoop(t *testing.T) {
	var e *Emitter
	assert.NotPanics(t, func() {
		e.Emit(context.Background(), "acc-1", EventTypeOrderRecorded, AggregateOrder, "O1", nil)
	})
}

func TestAccountFromChannel(t *testing.T) {
	id, ok := AccountFromChannel(AccountChannel("acc-9"))
	assert.True(t, ok)
	assert.Equal(t, "acc-9", id)

	_, ok = AccountFromChannel("channel:user:1")
	assert.False(t, ok)
	_, ok = AccountFromChannel(ChannelPrefixAccount)
	assert.False(t, ok)
}
