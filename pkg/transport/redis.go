package transport

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisForwarder mirrors broadcast events onto Redis pub/sub channels so
// other instances and edge gateways can relay them to clients.
type RedisForwarder struct {
	client *redis.Client
}

func NewRedisForwarder(client *redis.Client) *RedisForwarder {
	return &RedisForwarder{client: client}
}

func (f *RedisForwarder) Forward(topic string, payload []byte) error {
	return f.client.Publish(context.Background(), topic, payload).Err()
}
