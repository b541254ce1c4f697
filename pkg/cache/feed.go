package cache

import (
	"context"
	"log"

	"github.com/go-redis/redis/v8"

	"quiz-classroom/pkg/gateway"
)

// ChangesChannel is the redis channel every server instance publishes
// committed tree paths on.
const ChangesChannel = "tree:changes"

// RedisFeed fans tree changes out across server instances. Local watchers
// are served by an in-process feed that Run fills from the redis channel.
type RedisFeed struct {
	client *redis.Client
	local  *gateway.Feed
}

func NewRedisFeed(client *redis.Client) *RedisFeed {
	return &RedisFeed{client: client, local: gateway.NewFeed()}
}

func (f *RedisFeed) Publish(ctx context.Context, path string) error {
	return f.client.Publish(ctx, ChangesChannel, path).Err()
}

func (f *RedisFeed) Watch(ctx context.Context, path string) <-chan string {
	return f.local.Watch(ctx, path)
}

// Run relays published changes to local watchers until ctx is done.
func (f *RedisFeed) Run(ctx context.Context) error {
	pubsub := f.client.Subscribe(ctx, ChangesChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	log.Printf("cache: listening for tree changes on %s", ChangesChannel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			f.local.Close()
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			f.local.Publish(ctx, msg.Payload)
		}
	}
}
