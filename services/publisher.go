package services

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/vaultkeeper-hq/vaultkeeper/logging"
	"github.com/vaultkeeper-hq/vaultkeeper/models"
)

// subscriberBuffer bounds each subscriber channel. Delivery is best-effort:
// a subscriber that stops draining loses events rather than blocking the
// monitor that emits them.
const subscriberBuffer = 64

// StatusPublisher fans status events out to subscribers. An event addressed
// to a subscriber ID goes only to that subscriber's channel; an unaddressed
// event is broadcast to every current subscriber. With no subscribers
// attached, publishing is a silent no-op.
type StatusPublisher struct {
	mu     sync.RWMutex
	subs   map[string]chan models.StatusEvent
	logger zerolog.Logger
}

// NewStatusPublisher creates an empty publisher.
func NewStatusPublisher(logger zerolog.Logger) *StatusPublisher {
	return &StatusPublisher{
		subs:   make(map[string]chan models.StatusEvent),
		logger: logger.With().Str(logging.FieldModule, "status_publisher").Logger(),
	}
}

// Subscribe registers a named channel and returns it along with an
// unsubscribe function. Subscribing again under the same ID replaces the
// previous channel.
func (p *StatusPublisher) Subscribe(subscriberID string) (<-chan models.StatusEvent, func()) {
	ch := make(chan models.StatusEvent, subscriberBuffer)

	p.mu.Lock()
	if old, ok := p.subs[subscriberID]; ok {
		close(old)
	}
	p.subs[subscriberID] = ch
	p.mu.Unlock()

	unsubscribe := func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		if current, ok := p.subs[subscriberID]; ok && current == ch {
			delete(p.subs, subscriberID)
			close(ch)
		}
	}

	return ch, unsubscribe
}

// Publish delivers an event. Ordering is preserved per transaction hash
// because each monitor task emits sequentially; no ordering is guaranteed
// across subscribers.
func (p *StatusPublisher) Publish(event models.StatusEvent, subscriberID string) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if subscriberID != "" {
		ch, ok := p.subs[subscriberID]
		if !ok {
			return
		}
		p.deliver(ch, event, subscriberID)
		return
	}

	for id, ch := range p.subs {
		p.deliver(ch, event, id)
	}
}

// SubscriberCount returns the number of attached subscribers.
func (p *StatusPublisher) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}

func (p *StatusPublisher) deliver(ch chan models.StatusEvent, event models.StatusEvent, subscriberID string) {
	select {
	case ch <- event:
	default:
		p.logger.Warn().
			Str("subscriber", subscriberID).
			Str(logging.FieldTxHash, event.TxHash).
			Str("status", string(event.Status)).
			Msg("Subscriber channel full, dropping event")
	}
}
