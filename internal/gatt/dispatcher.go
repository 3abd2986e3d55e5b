package gatt

import (
	"errors"
	"sync"
)

var (
	// ErrAlreadySubscribed means the characteristic has a live subscriber.
	ErrAlreadySubscribed = errors.New("gatt: characteristic already subscribed")
	// ErrNotNotifiable means the property set lacks notify and indicate.
	ErrNotNotifiable = errors.New("gatt: characteristic does not support notify or indicate")
	// ErrOverrun means the subscriber fell behind and its bounded queue
	// filled; the subscription is dead once this is reported.
	ErrOverrun = errors.New("gatt: notification queue overrun")
)

// DefaultQueueSize bounds the per-subscription frame queue.
const DefaultQueueSize = 32

// Frame is one characteristic-value-changed event. Seq is monotonic
// per characteristic for the lifetime of the dispatcher's connection,
// surviving unsubscribe/resubscribe.
type Frame struct {
	UUID string
	Data []byte
	Seq  uint64
}

// Dispatcher fans notification callbacks from the transport into one
// bounded queue per subscribed characteristic. At most one subscriber
// per characteristic; delivery never blocks the transport.
type Dispatcher struct {
	queueSize int

	mu   sync.Mutex
	subs map[string]*Subscription
	seqs map[string]uint64
}

// NewDispatcher creates a dispatcher. queueSize <= 0 selects
// DefaultQueueSize.
func NewDispatcher(queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		queueSize: queueSize,
		subs:      make(map[string]*Subscription),
		seqs:      make(map[string]uint64),
	}
}

// Subscribe registers the single subscriber for ch and enables
// notifications on the transport.
func (d *Dispatcher) Subscribe(ch *Characteristic) (*Subscription, error) {
	if !ch.Properties.Notifiable() {
		return nil, ErrNotNotifiable
	}

	d.mu.Lock()
	if _, busy := d.subs[ch.UUID]; busy {
		d.mu.Unlock()
		return nil, ErrAlreadySubscribed
	}
	sub := &Subscription{
		d:    d,
		uuid: ch.UUID,
		char: ch,
		ch:   make(chan Frame, d.queueSize),
	}
	d.subs[ch.UUID] = sub
	d.mu.Unlock()

	uuid := ch.UUID
	if err := ch.transport.EnableNotifications(func(data []byte) {
		d.deliver(uuid, data)
	}); err != nil {
		d.mu.Lock()
		delete(d.subs, uuid)
		d.mu.Unlock()
		return nil, err
	}
	return sub, nil
}

// deliver runs on the transport callback and must never block: a full
// queue kills the subscription with ErrOverrun instead of stalling or
// silently dropping.
func (d *Dispatcher) deliver(uuid string, data []byte) {
	d.mu.Lock()
	sub, ok := d.subs[uuid]
	if !ok {
		d.mu.Unlock()
		return
	}
	d.seqs[uuid]++
	frame := Frame{UUID: uuid, Data: append([]byte(nil), data...), Seq: d.seqs[uuid]}
	d.mu.Unlock()

	sub.push(frame)
}

// Unsubscribe tears down sub and disables transport notifications.
// Idempotent.
func (d *Dispatcher) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return nil
	}

	d.mu.Lock()
	current, ok := d.subs[sub.uuid]
	if ok && current == sub {
		delete(d.subs, sub.uuid)
	}
	d.mu.Unlock()
	if !ok || current != sub {
		return nil
	}

	sub.finish(nil)
	return sub.char.transport.EnableNotifications(nil)
}

// Subscription is the receiving end for one characteristic's frames.
type Subscription struct {
	d    *Dispatcher
	uuid string
	char *Characteristic
	ch   chan Frame

	mu   sync.Mutex
	done bool
	err  error
}

// UUID returns the subscribed characteristic UUID.
func (s *Subscription) UUID() string { return s.uuid }

// Frames returns the frame channel. It is closed when the
// subscription ends; check Err to learn why.
func (s *Subscription) Frames() <-chan Frame { return s.ch }

// Err returns the terminal error of the subscription: nil after a
// plain Unsubscribe, ErrOverrun when the queue filled.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) push(frame Frame) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	select {
	case s.ch <- frame:
		s.mu.Unlock()
	default:
		s.done = true
		s.err = ErrOverrun
		close(s.ch)
		s.mu.Unlock()

		s.d.mu.Lock()
		if s.d.subs[s.uuid] == s {
			delete(s.d.subs, s.uuid)
		}
		s.d.mu.Unlock()
	}
}

func (s *Subscription) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	s.err = err
	close(s.ch)
}
