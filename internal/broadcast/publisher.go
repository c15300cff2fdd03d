package broadcast

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"battery-swap-backend/internal/metrics"
)

// Publisher sends one event to every session joined to a group.
//
// Delivery is at-most-once and best-effort: no acknowledgement, no ordering
// across subscribers, no replay for sessions that were not connected.
type Publisher interface {
	Publish(ctx context.Context, group string, ev Event) error
}

// Multi fans one publish out to several publishers and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, group string, ev Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, group, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Delivery is one queued publish. UserID is set for private-channel events
// so the delivery side can mirror them to offline channels.
type Delivery struct {
	Group  string
	Event  Event
	UserID int64
}

// Dispatcher hands deliveries to a publisher, possibly asynchronously.
type Dispatcher interface {
	Dispatch(d Delivery)
}

// Direct returns a dispatcher that publishes inline on the caller's goroutine.
// A nil publisher yields a dispatcher that drops everything.
func Direct(p Publisher) Dispatcher {
	return directDispatcher{publisher: p}
}

type directDispatcher struct {
	publisher Publisher
}

func (d directDispatcher) Dispatch(del Delivery) {
	Deliver(context.Background(), d.publisher, del)
}

// Deliver publishes a delivery, logging and counting failures instead of returning them.
func Deliver(ctx context.Context, p Publisher, d Delivery) {
	if p == nil {
		return
	}
	kind := string(d.Event.Kind())
	metrics.EventsPublished.WithLabelValues(kind).Inc()
	if err := p.Publish(ctx, d.Group, d.Event); err != nil {
		metrics.PublishFailures.WithLabelValues(kind).Inc()
		log.Warn().Err(err).Str("group", d.Group).Str("kind", kind).Msg("publish failed")
	}
}

// Recorder is a Publisher that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

// Recorded is one captured publish.
type Recorded struct {
	Group string
	Event Event
}

func (r *Recorder) Publish(_ context.Context, group string, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Group: group, Event: ev})
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.events))
	copy(out, r.events)
	return out
}

// InGroup returns the recorded events sent to one group, in order.
func (r *Recorder) InGroup(group string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Group == group {
			out = append(out, e.Event)
		}
	}
	return out
}

// Reset discards recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
