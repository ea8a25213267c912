// Package bus implements a per-mission telemetry/event pub/sub bus. Each
// subscriber gets its own bounded channel; a slow subscriber never blocks
// publishing or other subscribers, it just drops the newest event and
// counts the drop. Unsubscribe and Close end a feed by closing its
// channel; the bus runs no goroutines of its own.
package bus

import (
	"sync"

	"github.com/dronesurvey/missioncore/internal/domain"
)

const defaultSubscriberBuffer = 32

// Subscription is a live event feed for one mission. Read from Events
// until Unsubscribe is called; after that the channel is closed.
type Subscription struct {
	Events <-chan domain.Event

	bus       *Bus
	missionID string
	id        uint64
	ch        chan domain.Event
}

// Dropped returns the number of events dropped for this subscriber because
// its buffer was full when an event arrived.
func (s *Subscription) Dropped() uint64 {
	s.bus.mu.RLock()
	defer s.bus.mu.RUnlock()
	if sub, ok := s.bus.subs[s.missionID][s.id]; ok {
		return sub.dropped
	}
	return 0
}

// Unsubscribe stops delivery and closes the subscription's channel.
func (s *Subscription) Unsubscribe() {
	s.bus.unsubscribe(s.missionID, s.id)
}

type subscriber struct {
	ch      chan domain.Event
	dropped uint64
}

// Bus is a process-wide, per-mission event pub/sub hub.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]*subscriber
	nextID uint64
	buffer int
}

// New returns an empty Bus using the default per-subscriber buffer size.
func New() *Bus {
	return &Bus{subs: make(map[string]map[uint64]*subscriber), buffer: defaultSubscriberBuffer}
}

// NewWithBuffer returns an empty Bus using a custom per-subscriber buffer
// size, useful in tests that want to force overflow deterministically.
func NewWithBuffer(buffer int) *Bus {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Bus{subs: make(map[string]map[uint64]*subscriber), buffer: buffer}
}

// Subscribe registers a new listener for missionID's event stream.
func (b *Bus) Subscribe(missionID string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	ch := make(chan domain.Event, b.buffer)

	if b.subs[missionID] == nil {
		b.subs[missionID] = make(map[uint64]*subscriber)
	}
	b.subs[missionID][id] = &subscriber{ch: ch}

	return &Subscription{Events: ch, bus: b, missionID: missionID, id: id, ch: ch}
}

func (b *Bus) unsubscribe(missionID string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.subs[missionID]; ok {
		if sub, ok := subs[id]; ok {
			close(sub.ch)
			delete(subs, id)
		}
		if len(subs) == 0 {
			delete(b.subs, missionID)
		}
	}
}

// Publish delivers e to every current subscriber of e.MissionID. Delivery
// is best-effort and non-blocking: a subscriber whose buffer is full has
// the event dropped and its drop counter incremented, rather than
// stalling the publisher (a mission executor tick) waiting on a slow
// reader.
func (b *Bus) Publish(e domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[e.MissionID] {
		select {
		case sub.ch <- e:
		default:
			sub.dropped++
		}
	}
}

// SubscriberCount returns the number of live subscribers for missionID.
func (b *Bus) SubscriberCount(missionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[missionID])
}

// Close unsubscribes and closes every channel for missionID, called once
// a mission executor finishes and no further events will be published.
func (b *Bus) Close(missionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs[missionID] {
		close(sub.ch)
	}
	delete(b.subs, missionID)
}
