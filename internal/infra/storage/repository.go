// Package storage provides the persistence layer for the session journal.
// This package implements the repository pattern to keep the domain pure.
// The journal is write-mostly: nothing in the server restores player state from it.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// GameEvent mirrors the domain event structure for persistence.
// The domain package should NOT import this; the Journal adapter translates.
type GameEvent struct {
	ID        string                 `json:"id" db:"id"`
	SessionID string                 `json:"session_id" db:"session_id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	EventType string                 `json:"event_type" db:"event_type"`
	Track     string                 `json:"track,omitempty" db:"track"`
	Payload   map[string]interface{} `json:"payload" db:"payload"`
}

// EventRepository defines the interface for event persistence.
type EventRepository interface {
	// Append adds a new event to the immutable ledger.
	Append(ctx context.Context, event GameEvent) error

	// GetBySessionID retrieves all events for a session, oldest first.
	GetBySessionID(ctx context.Context, sessionID string) ([]GameEvent, error)

	// GetBySessionAndType retrieves one session's events of a single type.
	GetBySessionAndType(ctx context.Context, sessionID, eventType string) ([]GameEvent, error)

	// CountByType aggregates event counts per type across all sessions.
	CountByType(ctx context.Context) (map[string]int, error)
}

// SessionRecord summarizes one play session.
type SessionRecord struct {
	SessionID        string     `json:"session_id" db:"session_id"`
	UserID           string     `json:"user_id,omitempty" db:"user_id"`
	StartedAt        time.Time  `json:"started_at" db:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	FinalScore       int64      `json:"final_score" db:"final_score"`
	FinalTapLevel    int64      `json:"final_tap_level" db:"final_tap_level"`
	FinalEnergyLevel int64      `json:"final_energy_level" db:"final_energy_level"`
}

// SessionRepository defines the interface for session summaries.
type SessionRepository interface {
	// Start records a new session.
	Start(ctx context.Context, rec SessionRecord) error

	// End stamps the closing time and final progress of a session.
	End(ctx context.Context, sessionID string, endedAt time.Time, score, tapLevel, energyLevel int64) error

	// Get retrieves a session; ErrNotFound if unknown.
	Get(ctx context.Context, sessionID string) (*SessionRecord, error)

	// ListRecent returns the newest sessions first.
	ListRecent(ctx context.Context, limit int) ([]SessionRecord, error)
}
