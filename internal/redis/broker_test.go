package redisclient

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwangaza12/meditime/pkg/logging"
)

func TestBrokerDeliversEnvelopes(t *testing.T) {
	_, client := newTestRedis(t)
	broker := NewBroker(client, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Envelope, 1)
	done := make(chan error, 1)
	go func() {
		done <- broker.Run(ctx, func(env Envelope) {
			select {
			case got <- env:
			default:
			}
		})
	}()

	// Publish until the subscription is live; miniredis drops messages
	// published before PSUBSCRIBE lands.
	env := Envelope{Origin: "node-a", ComplaintID: "c-42", Payload: json.RawMessage(`{"event":"send-reply"}`)}
	require.Eventually(t, func() bool {
		if err := broker.Publish(ctx, env); err != nil {
			return false
		}
		select {
		case e := <-got:
			assert.Equal(t, "node-a", e.Origin)
			assert.Equal(t, "c-42", e.ComplaintID)
			assert.JSONEq(t, `{"event":"send-reply"}`, string(e.Payload))
			return true
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("broker did not stop after cancel")
	}
}

func TestBrokerPublishRequiresComplaint(t *testing.T) {
	_, client := newTestRedis(t)
	broker := NewBroker(client, nil)
	assert.Error(t, broker.Publish(context.Background(), Envelope{}))
	assert.Equal(t, "live:complaint:abc", ComplaintChannel("abc"))
}
