package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/O-G-W-A-L/doit-cli/internal/credstore"
)

// Navigator moves the user to the login surface after an unrecoverable
// authentication failure. It is the blunt fallback covering code paths that
// have no reactive subscriber.
type Navigator interface {
	// AtLogin reports whether the user is already on the login surface.
	AtLogin() bool
	// ToLogin moves the user to the login surface.
	ToLogin()
}

// NopNavigator is a Navigator that never navigates.
type NopNavigator struct{}

// Compile-time check to ensure NopNavigator implements Navigator
var _ Navigator = NopNavigator{}

func (NopNavigator) AtLogin() bool { return true }
func (NopNavigator) ToLogin()      {}

// Broadcaster terminates sessions and fans the session-ended signal out to
// subscribers. The signal carries no payload; the top-level auth state holder
// subscribes once at startup and clears its cached identity on receipt.
type Broadcaster struct {
	store     credstore.Store
	navigator Navigator

	mu   sync.Mutex
	subs map[int]func()
	next int
}

// NewBroadcaster creates a Broadcaster over the given store and navigator.
func NewBroadcaster(store credstore.Store, navigator Navigator) (*Broadcaster, error) {
	if store == nil {
		return nil, fmt.Errorf("missing credential store")
	}
	if navigator == nil {
		navigator = NopNavigator{}
	}

	return &Broadcaster{
		store:     store,
		navigator: navigator,
		subs:      make(map[int]func()),
	}, nil
}

// Subscribe registers a callback for the session-ended signal and returns a
// function that unregisters it. Callbacks run synchronously on the
// terminating goroutine.
func (b *Broadcaster) Subscribe(fn func()) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Terminate ends the session for the broadcaster's scope: clears both tokens
// from the store, emits the session-ended signal, and navigates to the login
// surface unless the user is already there.
//
// Terminate is idempotent: a second call clears nothing new and re-emits the
// signal. In-flight unrelated requests are not torn down.
func (b *Broadcaster) Terminate(ctx context.Context) error {
	if err := b.store.Clear(ctx); err != nil && !errors.Is(err, credstore.ErrReadOnly) {
		return fmt.Errorf("clearing credentials: %w", err)
	}

	slog.InfoContext(ctx, "session terminated", "scope", b.store.Scope())
	b.broadcast()

	if !b.navigator.AtLogin() {
		b.navigator.ToLogin()
	}
	return nil
}

// broadcast invokes every subscriber under a snapshot of the registry, so a
// callback unsubscribing itself does not deadlock.
func (b *Broadcaster) broadcast() {
	b.mu.Lock()
	subs := make([]func(), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}
