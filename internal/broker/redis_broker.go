package broker

import (
	"context"
	"encoding/json"

	"github.com/WhoAmI471/3D-Model-Library-Front-sub001/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const logChannel = "audit:logs"

// RedisLogBroker implements LogBroker with Redis pub/sub.
type RedisLogBroker struct {
	client *redis.Client
}

func NewRedisLogBroker(client *redis.Client) *RedisLogBroker {
	return &RedisLogBroker{client: client}
}

// NewRedisClient parses the URL and pings the server.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (r *RedisLogBroker) Publish(ctx context.Context, ev LogEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, logChannel, data).Err()
}

func (r *RedisLogBroker) Subscribe(ctx context.Context) (<-chan LogEvent, error) {
	pubsub := r.client.Subscribe(ctx, logChannel)
	// Wait for the subscription confirmation so no event published afterwards is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan LogEvent, 100)

	go func() {
		defer close(out)
		defer pubsub.Close()

		in := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				var ev LogEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.Log.Warn("Broker: dropping malformed log event", zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *RedisLogBroker) Close() error {
	return r.client.Close()
}
