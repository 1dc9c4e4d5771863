package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/MRamiBalles/TurboTapper/server/internal/domain/rules"
	"github.com/MRamiBalles/TurboTapper/server/internal/events"
	"github.com/MRamiBalles/TurboTapper/server/internal/infra/storage"
	"github.com/MRamiBalles/TurboTapper/server/internal/platform/logger"
)

const (
	defaultPriceLevels = 10
	maxPriceLevels     = 50
	defaultRecentLimit = 20
	maxRecentLimit     = 200
)

// JournalHandler exposes the session journal and the price curves.
// With no repositories it answers from the in-memory event log.
type JournalHandler struct {
	eventRepo   storage.EventRepository
	sessionRepo storage.SessionRepository
	eventLog    *events.EventLog
	logger      *logger.Logger
}

// NewJournalHandler creates the handler. Any of the sources may be nil.
func NewJournalHandler(eventRepo storage.EventRepository, sessionRepo storage.SessionRepository, el *events.EventLog, log *logger.Logger) *JournalHandler {
	return &JournalHandler{
		eventRepo:   eventRepo,
		sessionRepo: sessionRepo,
		eventLog:    el,
		logger:      log,
	}
}

// JournalEntry is one event in a journal response.
type JournalEntry struct {
	ID          string  `json:"id"`
	Timestamp   string  `json:"timestamp"`
	Type        string  `json:"type"`
	Track       string  `json:"track,omitempty"`
	Summary     string  `json:"summary"`
	Score       int64   `json:"score"`
	Energy      float64 `json:"energy"`
	TapLevel    int64   `json:"tap_level"`
	EnergyLevel int64   `json:"energy_level"`
}

// JournalResponse is the API response for a session journal.
type JournalResponse struct {
	SessionID   string         `json:"session_id"`
	TotalEvents int            `json:"total_events"`
	FilteredBy  string         `json:"filtered_by,omitempty"`
	GeneratedAt string         `json:"generated_at"`
	Events      []JournalEntry `json:"events"`
}

// HandleSessionEvents returns one session's journal, oldest first.
// GET /api/sessions/events?session_id=XXX&type=TAP_REJECTED
func (jh *JournalHandler) HandleSessionEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		jh.jsonError(w, "Missing session_id", http.StatusBadRequest)
		return
	}
	eventType := r.URL.Query().Get("type")

	entries, err := jh.sessionEvents(r, sessionID, eventType)
	if err != nil {
		jh.logger.Error("Journal query failed: " + err.Error())
		jh.jsonError(w, "Journal unavailable", http.StatusInternalServerError)
		return
	}

	response := JournalResponse{
		SessionID:   sessionID,
		TotalEvents: len(entries),
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      entries,
	}
	if eventType != "" {
		response.FilteredBy = "type " + eventType
	}

	jh.writeJSON(w, response)
}

func (jh *JournalHandler) sessionEvents(r *http.Request, sessionID, eventType string) ([]JournalEntry, error) {
	entries := make([]JournalEntry, 0)

	if jh.eventRepo != nil {
		var stored []storage.GameEvent
		var err error
		if eventType != "" {
			stored, err = jh.eventRepo.GetBySessionAndType(r.Context(), sessionID, eventType)
		} else {
			stored, err = jh.eventRepo.GetBySessionID(r.Context(), sessionID)
		}
		if err != nil {
			return nil, err
		}
		for _, e := range stored {
			entries = append(entries, entryFromStored(e))
		}
		return entries, nil
	}

	if jh.eventLog == nil {
		return entries, nil
	}
	for _, e := range jh.eventLog.GetBySession(sessionID) {
		if eventType != "" && string(e.Type) != eventType {
			continue
		}
		entries = append(entries, entryFromEvent(e))
	}
	return entries, nil
}

// HandleSession returns one session summary.
// GET /api/sessions/get?session_id=XXX
func (jh *JournalHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if jh.sessionRepo == nil {
		jh.jsonError(w, "Session store disabled", http.StatusServiceUnavailable)
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		jh.jsonError(w, "Missing session_id", http.StatusBadRequest)
		return
	}

	rec, err := jh.sessionRepo.Get(r.Context(), sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		jh.jsonError(w, "Session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jh.logger.Error("Session lookup failed: " + err.Error())
		jh.jsonError(w, "Session store unavailable", http.StatusInternalServerError)
		return
	}
	jh.writeJSON(w, rec)
}

// HandleRecentSessions lists the newest sessions.
// GET /api/sessions?limit=N
func (jh *JournalHandler) HandleRecentSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if jh.sessionRepo == nil {
		jh.jsonError(w, "Session store disabled", http.StatusServiceUnavailable)
		return
	}

	limit, err := boundedInt(r.URL.Query().Get("limit"), defaultRecentLimit, maxRecentLimit)
	if err != nil {
		jh.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	recs, err := jh.sessionRepo.ListRecent(r.Context(), limit)
	if err != nil {
		jh.logger.Error("Session listing failed: " + err.Error())
		jh.jsonError(w, "Session store unavailable", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []storage.SessionRecord{}
	}
	jh.writeJSON(w, map[string]interface{}{
		"generated_at": time.Now().Format(time.RFC3339),
		"sessions":     recs,
	})
}

// HandleStats returns event counts per type.
// GET /api/sessions/stats
func (jh *JournalHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var stats map[string]int
	if jh.eventRepo != nil {
		var err error
		stats, err = jh.eventRepo.CountByType(r.Context())
		if err != nil {
			jh.logger.Error("Stats query failed: " + err.Error())
			jh.jsonError(w, "Journal unavailable", http.StatusInternalServerError)
			return
		}
	} else {
		stats = make(map[string]int)
		if jh.eventLog != nil {
			for _, e := range jh.eventLog.Replay() {
				stats[string(e.Type)]++
			}
		}
	}

	jh.writeJSON(w, map[string]interface{}{
		"generated_at": time.Now().Format(time.RFC3339),
		"stats":        stats,
	})
}

// HandlePricing returns the cost table for levels 1..N.
// GET /api/pricing?levels=N
func (jh *JournalHandler) HandlePricing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	levels, err := boundedInt(r.URL.Query().Get("levels"), defaultPriceLevels, maxPriceLevels)
	if err != nil {
		jh.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	jh.writeJSON(w, map[string]interface{}{
		"levels": rules.PriceTable(levels),
	})
}

// RegisterRoutes sets up the journal API routes.
func (jh *JournalHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/sessions", jh.HandleRecentSessions)
	mux.HandleFunc("/api/sessions/get", jh.HandleSession)
	mux.HandleFunc("/api/sessions/events", jh.HandleSessionEvents)
	mux.HandleFunc("/api/sessions/stats", jh.HandleStats)
	mux.HandleFunc("/api/pricing", jh.HandlePricing)
}

// boundedInt parses an optional positive query value, defaulting when empty and capping at max.
func boundedInt(raw string, def, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("expected a positive integer, got %q", raw)
	}
	if n > max {
		n = max
	}
	return n, nil
}

func entryFromEvent(e events.GameEvent) JournalEntry {
	return JournalEntry{
		ID:          e.ID,
		Timestamp:   e.Timestamp.Format(time.RFC3339Nano),
		Type:        string(e.Type),
		Track:       string(e.Track),
		Summary:     summarize(string(e.Type), string(e.Track)),
		Score:       e.Snapshot.Score,
		Energy:      e.Snapshot.Energy,
		TapLevel:    e.Snapshot.TapLevel,
		EnergyLevel: e.Snapshot.EnergyLevel,
	}
}

func entryFromStored(e storage.GameEvent) JournalEntry {
	return JournalEntry{
		ID:          e.ID,
		Timestamp:   e.Timestamp.Format(time.RFC3339Nano),
		Type:        e.EventType,
		Track:       e.Track,
		Summary:     summarize(e.EventType, e.Track),
		Score:       payloadInt(e.Payload, "score"),
		Energy:      payloadFloat(e.Payload, "energy"),
		TapLevel:    payloadInt(e.Payload, "tap_level"),
		EnergyLevel: payloadInt(e.Payload, "energy_level"),
	}
}

// summarize creates a human-readable summary.
func summarize(eventType, track string) string {
	switch events.EventType(eventType) {
	case events.EventTypeTapAccepted:
		return "Tap landed."
	case events.EventTypeTapRejected:
		return "Tap refused: out of energy."
	case events.EventTypePurchaseSucceeded:
		return "Bought a " + track + " upgrade."
	case events.EventTypeReferralGranted:
		return "Referral bonus granted."
	case events.EventTypeRegenerated:
		return "Energy regenerated."
	case events.EventTypeSessionStarted:
		return "Session started."
	case events.EventTypeSessionEnded:
		return "Session ended."
	default:
		return "Unknown event."
	}
}

func payloadFloat(p map[string]interface{}, key string) float64 {
	if v, ok := p[key].(float64); ok {
		return v
	}
	return 0
}

func payloadInt(p map[string]interface{}, key string) int64 {
	return int64(payloadFloat(p, key))
}

func (jh *JournalHandler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		jh.logger.Error("Failed to encode response: " + err.Error())
	}
}

// jsonError sends an error response.
func (jh *JournalHandler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
