package auth

import (
	"log"
	"sync"
	"time"
)

type EventType string

const (
	EventSignedUp     EventType = "signed_up"
	EventSignedIn     EventType = "signed_in"
	EventSignedOut    EventType = "signed_out"
	EventSignInFailed EventType = "sign_in_failed"
)

// Event is published whenever the session state of a user changes.
type Event struct {
	Type   EventType
	UserID uint // zero for failed sign-ins of unknown accounts
	Email  string
	Reason string
	At     time.Time
}

type Listener func(Event)

type notifier struct {
	mu        sync.RWMutex
	listeners []Listener
}

// Subscribe registers fn for every future event. Listeners run synchronously
// in registration order and must not block.
func (n *notifier) Subscribe(fn Listener) {
	n.mu.Lock()
	n.listeners = append(n.listeners, fn)
	n.mu.Unlock()
}

func (n *notifier) publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	n.mu.RLock()
	listeners := append([]Listener(nil), n.listeners...)
	n.mu.RUnlock()

	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("auth: listener panicked on %s: %v", e.Type, r)
				}
			}()
			fn(e)
		}()
	}
}
