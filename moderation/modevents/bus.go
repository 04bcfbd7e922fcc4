// Typed publish/subscribe for completed moderation actions.
//
// The orchestrator publishes one event per real-world action; declared
// consumers (audit log writers, escalation rules) subscribe with a filter.
// Delivery is best-effort per subscriber: a consumer that cannot keep up
// drops events rather than stalling moderation flows.
package modevents

import (
	"log/slog"
	"time"

	"github.com/wardenbot/warden/moderation/cases"
)

type Event struct {
	Kind         cases.Kind
	CommunityID  string
	TargetUserID string
	ModeratorID  string
	CaseNumber   int64
	Reason       string
	At           time.Time
}

type Bus struct {
	subs   []*Subscriber
	ops    chan *operation
	closed chan struct{}
	logger *slog.Logger
}

const (
	opSubscribe = iota
	opUnsubscribe
	opPublish
)

type operation struct {
	op  int
	sub *Subscriber
	evt *Event
}

type Subscriber struct {
	outgoing chan *Event
	filter   func(*Event) bool
}

// Events delivers this subscriber's filtered event stream.
func (s *Subscriber) Events() <-chan *Event {
	return s.outgoing
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		ops:    make(chan *operation),
		closed: make(chan struct{}),
		logger: logger.With("system", "modevents"),
	}
}

// Run owns all subscriber bookkeeping; it must be started before Publish and
// runs until Shutdown.
func (b *Bus) Run() {
	for {
		var op *operation
		select {
		case op = <-b.ops:
		case <-b.closed:
			for _, s := range b.subs {
				close(s.outgoing)
			}
			return
		}
		switch op.op {
		case opSubscribe:
			b.subs = append(b.subs, op.sub)
		case opUnsubscribe:
			for i, s := range b.subs {
				if s == op.sub {
					b.subs[i] = b.subs[len(b.subs)-1]
					b.subs = b.subs[:len(b.subs)-1]
					close(s.outgoing)
					break
				}
			}
		case opPublish:
			publishedCount.WithLabelValues(op.evt.Kind.String()).Inc()
			for _, s := range b.subs {
				if s.filter != nil && !s.filter(op.evt) {
					continue
				}
				select {
				case s.outgoing <- op.evt:
				default:
					droppedCount.Inc()
					b.logger.Warn("subscriber overflow, dropping event", "kind", op.evt.Kind.String())
				}
			}
		}
	}
}

// Subscribe registers a consumer. A nil filter receives everything.
func (b *Bus) Subscribe(filter func(*Event) bool) *Subscriber {
	sub := &Subscriber{
		outgoing: make(chan *Event, 256),
		filter:   filter,
	}
	select {
	case b.ops <- &operation{op: opSubscribe, sub: sub}:
	case <-b.closed:
		close(sub.outgoing)
	}
	return sub
}

func (b *Bus) Unsubscribe(sub *Subscriber) {
	select {
	case b.ops <- &operation{op: opUnsubscribe, sub: sub}:
	case <-b.closed:
	}
}

// Publish hands the event to every matching subscriber. Never blocks beyond
// the bus run loop's own dispatch.
func (b *Bus) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	select {
	case b.ops <- &operation{op: opPublish, evt: &evt}:
	case <-b.closed:
	}
}

func (b *Bus) Shutdown() {
	close(b.closed)
}
