package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/buspulse/buspulse/pkg/fleet"
	"github.com/rs/zerolog/log"
)

type BroadcastEventKind string

const (
	BroadcastEventLocationUpdate BroadcastEventKind = "location_update"
	BroadcastEventTripUpdate     BroadcastEventKind = "trip_update"
	BroadcastEventStatusUpdate   BroadcastEventKind = "status_update"
)

type BroadcastEvent struct {
	Kind      BroadcastEventKind `json:"kind"`
	VehicleID string             `json:"vehicle_id"`
	Timestamp time.Time          `json:"timestamp"`
	Data      interface{}        `json:"data"`
}

// Subscription is an ephemeral binding of one observer connection to a
// vehicle's broadcast topic. Events stop and the channel closes on Close.
type Subscription struct {
	VehicleID  string
	ObserverID string

	Events chan BroadcastEvent

	id          int64
	broadcaster *Broadcaster
}

func (s *Subscription) Close() {
	s.broadcaster.unsubscribe(s)
}

// Forwarder mirrors published events onto an external realtime transport.
type Forwarder interface {
	Forward(topic string, payload []byte) error
}

// Broadcaster fans out events to every subscriber of a vehicle's topic.
// Publishing never blocks: a subscriber whose buffer is full loses the event.
type Broadcaster struct {
	live       *LiveStore
	bufferSize int
	forwarder  Forwarder

	mutex  sync.RWMutex
	topics map[string]map[int64]*Subscription
	nextID int64

	droppedEvents atomic.Int64
}

func NewBroadcaster(live *LiveStore, bufferSize int) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = defaultConfig.SubscriberBufferSize
	}

	return &Broadcaster{
		live:       live,
		bufferSize: bufferSize,
		topics:     map[string]map[int64]*Subscription{},
	}
}

func (b *Broadcaster) WithForwarder(forwarder Forwarder) *Broadcaster {
	b.forwarder = forwarder
	return b
}

// Subscribe attaches a new subscriber to the vehicle's topic. The current
// live state, when known, is delivered immediately as a snapshot event.
func (b *Broadcaster) Subscribe(vehicleID string) *Subscription {
	b.mutex.Lock()

	b.nextID++
	subscription := &Subscription{
		VehicleID:   vehicleID,
		Events:      make(chan BroadcastEvent, b.bufferSize),
		id:          b.nextID,
		broadcaster: b,
	}

	if b.topics[vehicleID] == nil {
		b.topics[vehicleID] = map[int64]*Subscription{}
	}
	b.topics[vehicleID][subscription.id] = subscription

	b.mutex.Unlock()

	if state, ok := b.live.Get(vehicleID); ok {
		select {
		case subscription.Events <- BroadcastEvent{
			Kind:      BroadcastEventLocationUpdate,
			VehicleID: vehicleID,
			Timestamp: state.UpdatedAt,
			Data:      state,
		}:
		default:
		}
	}

	return subscription
}

// SubscribeObserver resolves the observer's assigned vehicle once, at
// subscription time, and attaches to that vehicle's topic.
func (b *Broadcaster) SubscribeObserver(ctx context.Context, observerID string, store Store) (*Subscription, error) {
	if store == nil {
		return nil, errors.New("no store available to resolve observer assignment")
	}

	vehicle, err := store.GetAssignedVehicle(ctx, observerID)
	if err != nil {
		return nil, err
	}
	if vehicle == nil {
		return nil, errors.New("observer has no assigned vehicle")
	}

	subscription := b.Subscribe(vehicle.PrimaryIdentifier)
	subscription.ObserverID = observerID

	return subscription, nil
}

// Publish delivers the event to every subscriber of the vehicle's topic.
// Slow subscribers drop the event rather than back up ingestion.
func (b *Broadcaster) Publish(event BroadcastEvent) {
	b.mutex.RLock()

	for _, subscription := range b.topics[event.VehicleID] {
		select {
		case subscription.Events <- event:
		default:
			b.droppedEvents.Add(1)
		}
	}

	b.mutex.RUnlock()

	if b.forwarder != nil {
		topic := "buspulse.vehicle." + event.VehicleID
		payload, err := json.Marshal(event)
		if err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("Failed to encode broadcast event")
			return
		}

		if err := b.forwarder.Forward(topic, payload); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("Failed to forward broadcast event")
		}
	}
}

// PublishLocation is a convenience wrapper for the common case.
func (b *Broadcaster) PublishLocation(state fleet.LiveState) {
	b.Publish(BroadcastEvent{
		Kind:      BroadcastEventLocationUpdate,
		VehicleID: state.VehicleID,
		Timestamp: state.UpdatedAt,
		Data:      state,
	})
}

func (b *Broadcaster) unsubscribe(subscription *Subscription) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	subscribers := b.topics[subscription.VehicleID]
	if subscribers == nil {
		return
	}

	// Idempotent: only the removal that finds the subscription closes it
	if _, present := subscribers[subscription.id]; present {
		delete(subscribers, subscription.id)
		close(subscription.Events)
	}

	if len(subscribers) == 0 {
		delete(b.topics, subscription.VehicleID)
	}
}

// SubscriberCount returns the number of subscribers on a vehicle's topic.
func (b *Broadcaster) SubscriberCount(vehicleID string) int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return len(b.topics[vehicleID])
}

// DroppedEvents reports how many events were lost to full subscriber buffers.
func (b *Broadcaster) DroppedEvents() int64 {
	return b.droppedEvents.Load()
}
