package auction

import (
	"sync"
	"time"
)

// EventKind tags an observable auction event.
type EventKind string

const (
	EventNewCollateralAuction     EventKind = "NewCollateralAuction"
	EventCollateralAuctionDealt   EventKind = "CollateralAuctionDealt"
	EventDEXTakeCollateralAuction EventKind = "DEXTakeCollateralAuction"
	EventCancelAuction            EventKind = "CancelAuction"
)

// Event is one entry of the append-only auction event log. Fields not
// relevant to a kind are zero.
type Event struct {
	Kind      EventKind  `json:"kind"`
	AuctionID AuctionID  `json:"auctionId"`
	Currency  CurrencyID `json:"currency,omitempty"`
	Amount    Balance    `json:"amount,omitempty"`
	Target    Balance    `json:"target,omitempty"`
	Bidder    AccountID  `json:"bidder,omitempty"`
	Price     Balance    `json:"price,omitempty"`
	Proceeds  Balance    `json:"proceeds,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// EventLog is an append-only log with non-blocking fan-out to
// subscribers. Slow subscribers drop events rather than stalling
// settlement.
type EventLog struct {
	mu     sync.RWMutex
	events []Event
	subs   []chan Event
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

func (l *EventLog) append(e Event) {
	e.Timestamp = time.Now()
	l.mu.Lock()
	l.events = append(l.events, e)
	subs := l.subs
	l.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Events returns a copy of the log, newest last.
func (l *EventLog) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Last returns the most recent event, if any.
func (l *EventLog) Last() (Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.events) == 0 {
		return Event{}, false
	}
	return l.events[len(l.events)-1], true
}

// Subscribe registers a buffered event channel.
func (l *EventLog) Subscribe() <-chan Event {
	ch := make(chan Event, 256)
	l.mu.Lock()
	l.subs = append(l.subs, ch)
	l.mu.Unlock()
	return ch
}
