package service

import (
	"context"
	"sync"

	"github.com/chainvault/walletgate/internal/domain/models"
	"github.com/chainvault/walletgate/pkg/logger"
)

// WalletEventHandler receives wallet change notifications. Handlers
// run synchronously on the mutating goroutine and must not call back
// into the registry.
type WalletEventHandler func(event models.WalletEvent)

// eventBroadcaster delivers wallet events to subscribers in
// registration order. A panicking subscriber is logged and skipped;
// it never aborts the mutation that triggered the event or the
// delivery to later subscribers.
type eventBroadcaster struct {
	mu          sync.Mutex
	subscribers []*subscription
	nextID      int
	logger      logger.Logger
}

type subscription struct {
	id      int
	handler WalletEventHandler
}

func newEventBroadcaster(log logger.Logger) *eventBroadcaster {
	return &eventBroadcaster{
		logger: log.WithComponent("wallet_events"),
	}
}

// Subscribe registers handler and returns a function that removes it.
// Unsubscribing twice is harmless.
func (b *eventBroadcaster) Subscribe(handler WalletEventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscription{id: b.nextID, handler: handler}
	b.subscribers = append(b.subscribers, sub)

	id := sub.id
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subscribers {
			if s.id == id {
				b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
				return
			}
		}
	}
}

// publish delivers event to every subscriber in registration order.
func (b *eventBroadcaster) publish(ctx context.Context, event models.WalletEvent) {
	b.mu.Lock()
	subs := make([]*subscription, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	for _, sub := range subs {
		b.deliver(ctx, sub, event)
	}
}

func (b *eventBroadcaster) deliver(ctx context.Context, sub *subscription, event models.WalletEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn(ctx, "Wallet event subscriber panicked",
				logger.Int("subscriber_id", sub.id),
				logger.String("event_type", string(event.Type)),
				logger.Any("panic", r),
			)
		}
	}()
	sub.handler(event)
}
