package network

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/TurboTapper/server/internal/engine"
	"github.com/MRamiBalles/TurboTapper/server/internal/referral"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Client is one websocket connection and the session it plays.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	session *engine.Session

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	send   chan []byte
	closed bool

	// links for the SHARE in flight, attached when its update is published
	shareMu sync.Mutex
	share   *shareLinks
}

type shareLinks struct {
	invite   string
	shareURL string
}

// NewClient creates a client with a fresh session. The session starts once the hub registers it.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(hub.ctx)
	c := &Client{
		id:     uuid.NewString(),
		hub:    hub,
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
		send:   make(chan []byte, hub.cfg.Network.ClientSendBuffer),
	}
	c.session = engine.NewSession(c.id, hub.logger, engine.SessionOptions{
		RegenPeriod:  hub.cfg.Engine.RegenPeriod,
		InboxBuffer:  hub.cfg.Engine.InboxBuffer,
		EventLog:     hub.eventLog,
		Metrics:      hub.metrics,
		Listener:     c.onUpdate,
		JournalRegen: hub.cfg.Engine.JournalRegen,
	})
	return c
}

// ID returns the session id of this client.
func (c *Client) ID() string {
	return c.id
}

func (c *Client) start() {
	go c.session.Run(c.ctx)
}

// onUpdate runs on the session goroutine, so frames leave in the order the session applied them.
func (c *Client) onUpdate(u engine.Update) {
	msg := NewStateMessage(u.SessionID, u.Cause, u.State, u.Outcomes)
	if u.Cause == engine.CauseReferral {
		if links := c.takeShare(); links != nil {
			msg.InviteLink = links.invite
			msg.ShareURL = links.shareURL
		}
	}
	c.writeJSON(msg)
}

func (c *Client) setShare(links *shareLinks) {
	c.shareMu.Lock()
	c.share = links
	c.shareMu.Unlock()
}

func (c *Client) takeShare() *shareLinks {
	c.shareMu.Lock()
	defer c.shareMu.Unlock()
	links := c.share
	c.share = nil
	return links
}

func (c *Client) writeJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.hub.logger.Error("Failed to serialize frame: " + err.Error())
		return
	}
	c.enqueue(payload)
}

// enqueue never blocks. A full buffer drops the frame; the next STATE supersedes it.
func (c *Client) enqueue(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.hub.metrics.RecordWSError()
		c.hub.logger.Warnf("Send buffer full, dropping frame for session %s", c.id)
	}
}

// closeSend ends the session and tells the write pump to close the connection.
func (c *Client) closeSend() {
	c.cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump pumps intents from the websocket connection into the session.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.drop(c)
		c.cancel()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(c.hub.cfg.Network.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.metrics.RecordWSError()
				c.hub.logger.Warnf("Read error on session %s: %v", c.id, err)
			}
			break
		}
		c.hub.metrics.RecordWSMessage(true)

		intent, err := ParseIntent(message)
		if err != nil {
			c.hub.logger.Warn("Failed to parse PlayerIntent from WebSocket. err: " + err.Error())
			continue
		}

		if err := c.handleIntent(intent); err != nil {
			if errors.Is(err, engine.ErrSessionClosed) || errors.Is(err, context.Canceled) {
				return
			}
			c.hub.logger.Error("Intent failed: " + err.Error())
		}
	}
}

func (c *Client) handleIntent(in PlayerIntent) error {
	switch in.Type {
	case MsgTap:
		touches := SanitizeTouches(in.Touches, c.hub.cfg.Network.MaxTouchPoints)
		_, err := c.session.Tap(c.ctx, touches)
		return err

	case MsgBuy:
		track := in.TrackOf()
		if !track.Valid() {
			c.hub.logger.Warn("Unknown upgrade track: " + in.Track)
			c.writeJSON(ErrorMessage{Type: MsgError, Message: "unknown track " + in.Track})
			return nil
		}
		_, err := c.session.Purchase(c.ctx, track)
		return err

	case MsgShare:
		ref := c.hub.cfg.Referral
		invite := referral.InviteLink(ref.BotUsername, in.UserID)
		c.setShare(&shareLinks{invite: invite, shareURL: referral.ShareURL(invite, ref.ShareText)})
		if _, err := c.session.Referral(c.ctx); err != nil {
			c.takeShare()
			return err
		}
		return nil

	default:
		c.hub.logger.Warn("Unknown PlayerIntent type: " + in.Type)
		return nil
	}
}

// WritePump pumps frames from the session to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON document per frame; clients parse frames individually.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.metrics.RecordWSError()
				return
			}
			c.hub.metrics.RecordWSMessage(false)
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
