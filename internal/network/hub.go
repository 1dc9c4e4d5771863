package network

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/TurboTapper/server/internal/events"
	"github.com/MRamiBalles/TurboTapper/server/internal/platform/config"
	"github.com/MRamiBalles/TurboTapper/server/internal/platform/logger"
	"github.com/MRamiBalles/TurboTapper/server/internal/platform/metrics"
	"github.com/MRamiBalles/TurboTapper/server/internal/referral"
)

// Hub maintains the set of active clients. Each client plays its own session.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
	logger     *logger.Logger
	metrics    *metrics.Collector
	eventLog   *events.EventLog
	cfg        *config.Config
	upgrader   websocket.Upgrader

	// ctx outlives individual requests; sessions derive from it.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub initializes a new WebSocket Hub. eventLog and m may be nil.
func NewHub(cfg *config.Config, eventLog *events.EventLog, m *metrics.Collector, log *logger.Logger) *Hub {
	if m == nil {
		m = metrics.NewCollector()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     log,
		metrics:    m,
		eventLog:   eventLog,
		cfg:        cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // the game is embedded in a host app on another origin
			},
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Run starts the Hub's main loop. Cancelling ctx disconnects every client and ends their sessions.
func (h *Hub) Run(ctx context.Context) {
	defer h.cancel()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket Hub shutting down.")
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.closeSend()
				h.metrics.RecordWSConnection(-1)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= h.cfg.Network.MaxClients {
				h.mu.Unlock()
				h.logger.Warnf("Client limit %d reached, refusing %s", h.cfg.Network.MaxClients, client.id)
				client.closeSend()
				continue
			}
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.RecordWSConnection(1)
			h.logger.Infof("New WebSocket client connected (session %s)", client.id)
			client.start()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
				h.metrics.RecordWSConnection(-1)
				h.logger.Infof("WebSocket client disconnected (session %s)", client.id)
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and hands the connection to a new client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.ClientCount() >= h.cfg.Network.MaxClients {
		http.Error(w, "server full", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.metrics.RecordWSError()
		h.logger.Error("Failed to upgrade websocket connection: " + err.Error())
		return
	}

	client := NewClient(h, conn)
	if inviter, ok := referral.InviterFromStart(r.URL.Query().Get("start")); ok {
		h.logger.Event("REFERRED_JOIN", client.id, "invited by "+inviter)
	}
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		conn.Close()
		return
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.WritePump()
	go client.ReadPump()
}

func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}
