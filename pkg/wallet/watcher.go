package wallet

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// EventKind names a wallet change notification.
type EventKind string

const (
	ChainChanged    EventKind = "chainChanged"
	AccountsChanged EventKind = "accountsChanged"
)

// Event is emitted when the provider's chain or accounts change.
type Event struct {
	Kind     EventKind
	ChainID  uint64
	Accounts []common.Address
}

// Watcher polls a Provider and emits change events, the pull-based
// equivalent of EIP-1193 chainChanged/accountsChanged notifications.
type Watcher struct {
	provider Provider
	interval time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	chainID  uint64
	accounts []common.Address
	subs     []chan Event
}

// NewWatcher creates a watcher polling at the given interval.
func NewWatcher(p Provider, interval time.Duration, l *zap.Logger) *Watcher {
	return &Watcher{provider: p, interval: interval, logger: l}
}

// Subscribe returns a channel of events. The channel is closed when Run returns.
func (w *Watcher) Subscribe() <-chan Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(chan Event, 8)
	w.subs = append(w.subs, ch)
	return ch
}

// Current returns the last observed chain id and accounts.
func (w *Watcher) Current() (uint64, []common.Address) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chainID, slices.Clone(w.accounts)
}

// Poll performs one observation and emits events for anything that changed.
// The first successful poll always emits both events.
func (w *Watcher) Poll(ctx context.Context) error {
	chainID, err := ChainID(ctx, w.provider)
	if err != nil {
		return err
	}
	accounts, err := Accounts(ctx, w.provider)
	if err != nil {
		return err
	}

	w.mu.Lock()
	var events []Event
	if chainID != w.chainID {
		w.chainID = chainID
		events = append(events, Event{Kind: ChainChanged, ChainID: chainID, Accounts: slices.Clone(accounts)})
	}
	if w.accounts == nil || !slices.Equal(accounts, w.accounts) {
		w.accounts = accounts
		events = append(events, Event{Kind: AccountsChanged, ChainID: chainID, Accounts: slices.Clone(accounts)})
	}
	subs := slices.Clone(w.subs)
	w.mu.Unlock()

	for _, e := range events {
		for _, ch := range subs {
			select {
			case ch <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// Run polls until ctx is done, then closes all subscriber channels.
func (w *Watcher) Run(ctx context.Context) {
	defer w.closeSubs()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		if err := w.Poll(ctx); err != nil && ctx.Err() == nil {
			w.logger.Sugar().Warnw("Failed to poll wallet provider",
				zap.String("provider", w.provider.ID()),
				zap.Error(err),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Watcher) closeSubs() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.subs {
		close(ch)
	}
	w.subs = nil
}
