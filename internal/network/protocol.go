package network

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MRamiBalles/TurboTapper/server/internal/domain/player"
	"github.com/MRamiBalles/TurboTapper/server/internal/engine"
	"github.com/MRamiBalles/TurboTapper/server/internal/events"
	"github.com/MRamiBalles/TurboTapper/server/internal/view"
)

// Message types on the wire.
const (
	MsgTap   = "TAP"
	MsgBuy   = "BUY"
	MsgShare = "SHARE"
	MsgState = "STATE"
	MsgError = "ERROR"
)

// PlayerIntent represents an incoming command from the client.
type PlayerIntent struct {
	Type    string `json:"type"`              // "TAP", "BUY", "SHARE"
	Touches int    `json:"touches,omitempty"` // TAP: simultaneous touch points
	Track   string `json:"track,omitempty"`   // BUY: "TAP" or "ENERGY"
	UserID  string `json:"user_id,omitempty"` // SHARE: host user id for the invite link
}

// ParseIntent decodes one client frame. The type is upper-cased before matching.
func ParseIntent(data []byte) (PlayerIntent, error) {
	var in PlayerIntent
	if err := json.Unmarshal(data, &in); err != nil {
		return in, fmt.Errorf("failed to parse intent: %w", err)
	}
	in.Type = strings.ToUpper(strings.TrimSpace(in.Type))
	if in.Type == "" {
		return in, fmt.Errorf("intent has no type")
	}
	return in, nil
}

// TrackOf returns the upgrade track named by a BUY intent.
func (in PlayerIntent) TrackOf() player.Track {
	return player.Track(strings.ToUpper(strings.TrimSpace(in.Track)))
}

// SanitizeTouches clamps a reported touch count into [0, maxTouches].
// Clients report every active touch point; anything past the device limit is noise.
func SanitizeTouches(n, maxTouches int) int {
	if n < 0 {
		return 0
	}
	if maxTouches > 0 && n > maxTouches {
		return maxTouches
	}
	return n
}

// StateMessage is pushed to the client after every mutation.
type StateMessage struct {
	Type       string             `json:"type"`
	SessionID  string             `json:"session_id"`
	Cause      engine.Cause       `json:"cause"`
	View       view.View          `json:"view"`
	Outcomes   []events.EventType `json:"outcomes,omitempty"`
	InviteLink string             `json:"invite_link,omitempty"`
	ShareURL   string             `json:"share_url,omitempty"`
}

// NewStateMessage builds the frame for one session update.
func NewStateMessage(sessionID string, cause engine.Cause, s player.State, outcomes []events.EventType) StateMessage {
	return StateMessage{
		Type:      MsgState,
		SessionID: sessionID,
		Cause:     cause,
		View:      view.Build(s),
		Outcomes:  outcomes,
	}
}

// ErrorMessage tells the client an intent was refused.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
