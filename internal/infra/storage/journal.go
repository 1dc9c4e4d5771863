package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MRamiBalles/TurboTapper/server/internal/events"
	"github.com/MRamiBalles/TurboTapper/server/internal/platform/metrics"
)

// Journal translates domain events to storage events and keeps the session table in step.
// It implements events.EventPersister.
type Journal struct {
	events   EventRepository
	sessions SessionRepository
	metrics  *metrics.Collector
	timeout  time.Duration
}

// NewJournal wires the repositories. m may be nil.
func NewJournal(eventRepo EventRepository, sessionRepo SessionRepository, m *metrics.Collector) *Journal {
	return &Journal{
		events:   eventRepo,
		sessions: sessionRepo,
		metrics:  m,
		timeout:  5 * time.Second,
	}
}

// Append persists one domain event.
func (j *Journal) Append(event events.GameEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	err := j.append(ctx, event)
	if j.metrics != nil {
		j.metrics.RecordEventWrite(time.Since(start), err)
	}
	return err
}

func (j *Journal) append(ctx context.Context, event events.GameEvent) error {
	switch event.Type {
	case events.EventTypeSessionStarted:
		rec := SessionRecord{
			SessionID:        event.SessionID,
			StartedAt:        event.Timestamp,
			FinalScore:       event.Snapshot.Score,
			FinalTapLevel:    event.Snapshot.TapLevel,
			FinalEnergyLevel: event.Snapshot.EnergyLevel,
		}
		if err := j.sessions.Start(ctx, rec); err != nil {
			return err
		}
	case events.EventTypeSessionEnded:
		s := event.Snapshot
		if err := j.sessions.End(ctx, event.SessionID, event.Timestamp, s.Score, s.TapLevel, s.EnergyLevel); err != nil {
			return err
		}
	}

	payload, err := snapshotPayload(event)
	if err != nil {
		return err
	}

	return j.events.Append(ctx, GameEvent{
		ID:        event.ID,
		SessionID: event.SessionID,
		Timestamp: event.Timestamp,
		EventType: string(event.Type),
		Track:     string(event.Track),
		Payload:   payload,
	})
}

func snapshotPayload(event events.GameEvent) (map[string]interface{}, error) {
	b, err := json.Marshal(event.Snapshot)
	if err != nil {
		return nil, err
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(b, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
