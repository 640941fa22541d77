package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/mwangaza12/meditime/pkg/logging"
)

const complaintChannelPrefix = "live:complaint:"

// Envelope is what travels between api-server instances for one room.
type Envelope struct {
	Origin      string          `json:"origin"`
	ComplaintID string          `json:"complaint_id"`
	SenderConn  string          `json:"sender_conn,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

// Broker fans live-channel frames out across instances.
type Broker struct {
	client *redis.Client
	logger *logging.Logger
}

func NewBroker(client *redis.Client, logger *logging.Logger) *Broker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Broker{client: client, logger: logger.Component("redis_broker")}
}

func ComplaintChannel(complaintID string) string {
	return complaintChannelPrefix + complaintID
}

// Publish sends env to every instance subscribed to its room.
func (b *Broker) Publish(ctx context.Context, env Envelope) error {
	if env.ComplaintID == "" {
		return errors.New("publish: complaint id required")
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := b.client.Publish(ctx, ComplaintChannel(env.ComplaintID), data).Err(); err != nil {
		return fmt.Errorf("publish envelope: %w", err)
	}
	return nil
}

// Run subscribes to every complaint room and calls handle for each envelope
// until ctx is done.
func (b *Broker) Run(ctx context.Context, handle func(Envelope)) error {
	sub := b.client.PSubscribe(ctx, complaintChannelPrefix+"*")
	defer sub.Close()

	// Wait for the subscription to be confirmed before reading.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe complaint rooms: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed envelope")
				continue
			}
			if env.ComplaintID == "" {
				env.ComplaintID = strings.TrimPrefix(msg.Channel, complaintChannelPrefix)
			}
			handle(env)
		}
	}
}
