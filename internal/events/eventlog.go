// Package events provides the outcome journal for tapper sessions.
// Outcomes are cues for the feedback layer; the journal is an audit trail and never restores state.
package events

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MRamiBalles/TurboTapper/server/internal/domain/player"
)

// EventType defines the category of a journal entry.
type EventType string

const (
	// Feedback cues, one per outcome.
	EventTypeTapAccepted       EventType = "TAP_ACCEPTED"
	EventTypeTapRejected       EventType = "TAP_REJECTED"
	EventTypePurchaseSucceeded EventType = "PURCHASE_SUCCEEDED"

	// Journal-only entries.
	EventTypeSessionStarted  EventType = "SESSION_STARTED"
	EventTypeSessionEnded    EventType = "SESSION_ENDED"
	EventTypeReferralGranted EventType = "REFERRAL_GRANTED"
	EventTypeRegenerated     EventType = "REGENERATED"
)

// IsFeedback reports whether the type is one of the cues forwarded to the feedback layer.
func (t EventType) IsFeedback() bool {
	switch t {
	case EventTypeTapAccepted, EventTypeTapRejected, EventTypePurchaseSucceeded:
		return true
	}
	return false
}

// GameEvent is an immutable record of something that happened in a session.
type GameEvent struct {
	ID        string       `json:"id"`
	SessionID string       `json:"session_id"`
	Timestamp time.Time    `json:"timestamp"`
	Type      EventType    `json:"type"`
	Track     player.Track `json:"track,omitempty"` // set on PURCHASE_SUCCEEDED
	Snapshot  player.State `json:"snapshot"`        // state after the mutation
}

// NewGameEvent stamps a fresh event with an ID and the current time.
func NewGameEvent(sessionID string, t EventType, snapshot player.State) GameEvent {
	return GameEvent{
		ID:        GenerateEventID(),
		SessionID: sessionID,
		Timestamp: time.Now(),
		Type:      t,
		Snapshot:  snapshot,
	}
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// ErrPersistQueueFull is reported for events the writer had no room for. They stay in memory only.
var ErrPersistQueueFull = errors.New("persist queue full")

// ErrorHandler is notified when write-through persistence fails.
type ErrorHandler func(event GameEvent, err error)

// EventLog is the in-memory append-only log of session events.
// Persistence is write-through on a single background writer, so each session's events reach the
// persister in append order. Append never waits on the persister: when the writer falls a full
// queue behind, the event is dropped from persistence and reported as ErrPersistQueueFull.
type EventLog struct {
	mu        sync.RWMutex
	events    []GameEvent
	persister EventPersister
	onError   ErrorHandler
	retain    int // 0 keeps everything in memory
	queue     chan GameEvent
	closed    bool
	pending   sync.WaitGroup
	writerOut chan struct{}
	dropped   int64
}

// persistQueueSize bounds how far the writer may lag before events are dropped from persistence.
const persistQueueSize = 1024

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister) *EventLog {
	el := &EventLog{
		events:    make([]GameEvent, 0),
		persister: persister,
	}
	if persister != nil {
		el.queue = make(chan GameEvent, persistQueueSize)
		el.writerOut = make(chan struct{})
		go el.writer()
	}
	return el
}

// SetRetention bounds how many events stay in memory. The persister still sees every event.
func (el *EventLog) SetRetention(n int) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.retain = n
	el.trim()
}

// OnPersistError installs a callback for failed write-throughs.
func (el *EventLog) OnPersistError(h ErrorHandler) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.onError = h
}

// Append adds a new event to the log. Events are immutable once appended.
func (el *EventLog) Append(event GameEvent) {
	el.mu.Lock()
	el.events = append(el.events, event)
	el.trim()
	persist := el.queue != nil && !el.closed
	if persist {
		el.pending.Add(1)
	}
	onError := el.onError
	el.mu.Unlock()

	if !persist {
		return
	}
	select {
	case el.queue <- event:
	default:
		el.pending.Done()
		atomic.AddInt64(&el.dropped, 1)
		if onError != nil {
			onError(event, ErrPersistQueueFull)
		}
	}
}

// Dropped returns how many events were kept out of persistence because the queue was full.
func (el *EventLog) Dropped() int64 {
	return atomic.LoadInt64(&el.dropped)
}

func (el *EventLog) writer() {
	defer close(el.writerOut)
	for e := range el.queue {
		if err := el.persister.Append(e); err != nil {
			el.mu.RLock()
			onError := el.onError
			el.mu.RUnlock()
			if onError != nil {
				onError(e, err)
			}
		}
		el.pending.Done()
	}
}

// trim drops the oldest events once the log holds twice the retention, keeping the newest retain.
func (el *EventLog) trim() {
	if el.retain <= 0 || len(el.events) < 2*el.retain {
		return
	}
	kept := make([]GameEvent, el.retain, 2*el.retain)
	copy(kept, el.events[len(el.events)-el.retain:])
	el.events = kept
}

// Flush waits for pending write-throughs to finish. Call it once appenders have gone quiet.
func (el *EventLog) Flush() {
	el.pending.Wait()
}

// Close drains the writer. Events appended afterwards stay in memory only.
func (el *EventLog) Close() {
	el.mu.Lock()
	if el.queue == nil || el.closed {
		el.mu.Unlock()
		return
	}
	el.closed = true
	el.mu.Unlock()

	el.pending.Wait()
	close(el.queue)
	<-el.writerOut
}

// GetBySession returns all events recorded for a session.
func (el *EventLog) GetBySession(sessionID string) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.SessionID == sessionID {
			result = append(result, e)
		}
	}
	return result
}

// GetByType returns all events of one type.
func (el *EventLog) GetByType(t EventType) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// Replay returns a copy of the full history.
func (el *EventLog) Replay() []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	out := make([]GameEvent, len(el.events))
	copy(out, el.events)
	return out
}

// Len returns the number of events held in memory.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
