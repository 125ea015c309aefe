package broker

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LogEvent is the wire form of an audit entry on the live feed.
type LogEvent struct {
	ID        uint64     `json:"id"`
	Action    string     `json:"action"`
	UserID    *uuid.UUID `json:"userId,omitempty"`
	ModelID   *uuid.UUID `json:"modelId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// LogBroker fans audit entries out to live subscribers across instances.
type LogBroker interface {
	Publish(ctx context.Context, ev LogEvent) error
	// Subscribe delivers events until ctx is done; the channel is then closed.
	Subscribe(ctx context.Context) (<-chan LogEvent, error)
	Close() error
}

// NopBroker drops everything; used when Redis is not configured.
type NopBroker struct{}

func (NopBroker) Publish(context.Context, LogEvent) error { return nil }

func (NopBroker) Subscribe(ctx context.Context) (<-chan LogEvent, error) {
	ch := make(chan LogEvent)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (NopBroker) Close() error { return nil }
