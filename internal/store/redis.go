package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisFeed broadcasts changes over Redis pub/sub, one channel per session,
// so that every process serving a session sees every commit.
type RedisFeed struct {
	client *redis.Client
	prefix string
	log    logrus.FieldLogger
}

// NewRedisFeed returns a feed publishing on "<prefix><sessionID>" channels.
func NewRedisFeed(client *redis.Client, prefix string, log logrus.FieldLogger) *RedisFeed {
	return &RedisFeed{client: client, prefix: prefix, log: log}
}

func (f *RedisFeed) channel(sessionID string) string {
	return f.prefix + sessionID
}

func (f *RedisFeed) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	return f.client.Publish(ctx, f.channel(c.SessionID), payload).Err()
}

func (f *RedisFeed) Subscribe(ctx context.Context, sessionID string) (Subscription, error) {
	ps := f.client.Subscribe(ctx, f.channel(sessionID))
	// Wait for the confirmation so no publish after Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", sessionID, err)
	}

	q := newQueue(func() { ps.Close() })
	msgs := ps.Channel()
	go func() {
		for msg := range msgs {
			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				f.log.WithError(err).WithField("session", sessionID).Warn("drop undecodable change")
				continue
			}
			q.push(c)
		}
	}()
	return q, nil
}
