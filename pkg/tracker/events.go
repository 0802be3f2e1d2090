package tracker

import (
	"encoding/json"

	"github.com/adjust/rmq/v5"
	"github.com/buspulse/buspulse/pkg/fleet"
	"github.com/buspulse/buspulse/pkg/redis_client"
)

// QueueEventPublisher pushes engine events onto the events queue for the
// notification dispatcher to pick up.
type QueueEventPublisher struct {
	queue rmq.Queue
}

func NewQueueEventPublisher() (*QueueEventPublisher, error) {
	queue, err := redis_client.QueueConnection.OpenQueue("events-queue")
	if err != nil {
		return nil, err
	}

	return &QueueEventPublisher{queue: queue}, nil
}

func (p *QueueEventPublisher) Publish(event fleet.Event) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.queue.PublishBytes(eventBytes)
}
