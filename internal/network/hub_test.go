package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/TurboTapper/server/internal/engine"
	"github.com/MRamiBalles/TurboTapper/server/internal/events"
	"github.com/MRamiBalles/TurboTapper/server/internal/platform/config"
	"github.com/MRamiBalles/TurboTapper/server/internal/platform/logger"
	"github.com/MRamiBalles/TurboTapper/server/internal/platform/metrics"
)

type testServer struct {
	hub    *Hub
	srv    *httptest.Server
	log    *events.EventLog
	m      *metrics.Collector
	cancel context.CancelFunc
}

func newTestServer(t *testing.T, tweak func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.LowResourceConfig()
	cfg.Engine.RegenPeriod = 0 // ticks only on demand
	if tweak != nil {
		tweak(cfg)
	}

	el := events.NewEventLog(nil)
	m := metrics.NewCollector()
	hub := NewHub(cfg, el, m, logger.NewDiscardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	ts := &testServer{hub: hub, srv: srv, log: el, m: m, cancel: cancel}
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return ts
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readState(t *testing.T, conn *websocket.Conn) StateMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg StateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func send(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func countOutcome(outcomes []events.EventType, want events.EventType) int {
	n := 0
	for _, o := range outcomes {
		if o == want {
			n++
		}
	}
	return n
}

func TestClientPlaysSession(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := ts.dial(t)

	first := readState(t, conn)
	if first.Type != MsgState || first.Cause != engine.CauseStart {
		t.Fatalf("first frame = %+v", first)
	}
	if first.View.Score != 0 || first.View.Energy != 1000 || first.View.TapCost != 100 {
		t.Errorf("initial view = %+v", first.View)
	}
	if first.SessionID == "" {
		t.Error("no session id")
	}

	send(t, conn, PlayerIntent{Type: MsgTap, Touches: 3})
	tap := readState(t, conn)
	if tap.Cause != engine.CauseTap || countOutcome(tap.Outcomes, events.EventTypeTapAccepted) != 3 {
		t.Errorf("tap frame = %+v", tap)
	}
	if tap.View.Score != 3 || tap.View.Energy != 997 {
		t.Errorf("after tap view = %+v", tap.View)
	}

	// Unaffordable purchase still answers, with no outcome.
	send(t, conn, PlayerIntent{Type: MsgBuy, Track: "TAP"})
	buy := readState(t, conn)
	if buy.Cause != engine.CausePurchase || len(buy.Outcomes) != 0 || buy.View.TapLevel != 1 {
		t.Errorf("unaffordable buy frame = %+v", buy)
	}

	send(t, conn, PlayerIntent{Type: MsgShare, UserID: "42"})
	share := readState(t, conn)
	if share.Cause != engine.CauseReferral || share.View.Score != 10003 {
		t.Errorf("share frame = %+v", share)
	}
	if share.InviteLink != "https://t.me/TurboTapperBot?start=ref_42" {
		t.Errorf("invite link = %q", share.InviteLink)
	}
	if !strings.HasPrefix(share.ShareURL, "https://t.me/share/url?url=") {
		t.Errorf("share url = %q", share.ShareURL)
	}

	send(t, conn, PlayerIntent{Type: "buy", Track: "tap"})
	bought := readState(t, conn)
	if countOutcome(bought.Outcomes, events.EventTypePurchaseSucceeded) != 1 {
		t.Errorf("purchase outcomes = %v", bought.Outcomes)
	}
	if bought.View.TapLevel != 2 || bought.View.TapPower != 2 || bought.View.Score != 9903 {
		t.Errorf("after purchase view = %+v", bought.View)
	}
}

func TestTouchCountIsClamped(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.Network.MaxTouchPoints = 5 })
	conn := ts.dial(t)
	readState(t, conn)

	send(t, conn, PlayerIntent{Type: MsgTap, Touches: 99})
	msg := readState(t, conn)
	if got := countOutcome(msg.Outcomes, events.EventTypeTapAccepted); got != 5 {
		t.Errorf("accepted %d touches, want 5", got)
	}
	if msg.View.Score != 5 {
		t.Errorf("score = %d", msg.View.Score)
	}
}

func TestUnknownTrackGetsError(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := ts.dial(t)
	readState(t, conn)

	send(t, conn, PlayerIntent{Type: MsgBuy, Track: "GOLD"})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var msg ErrorMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != MsgError {
		t.Errorf("frame = %s", data)
	}
}

func TestMalformedFramesAreIgnored(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := ts.dial(t)
	readState(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	send(t, conn, map[string]string{"type": "DANCE"})
	send(t, conn, PlayerIntent{Type: MsgTap, Touches: 1})

	msg := readState(t, conn)
	if msg.Cause != engine.CauseTap || msg.View.Score != 1 {
		t.Errorf("connection did not survive bad frames: %+v", msg)
	}
}

func TestHubRefusesPastMaxClients(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.Network.MaxClients = 1 })
	conn := ts.dial(t)
	readState(t, conn)

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("second client was accepted")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("response = %v", resp)
	}
}

func TestDisconnectEndsSession(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := ts.dial(t)
	first := readState(t, conn)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, e := range ts.log.GetBySession(first.SessionID) {
			if e.Type == events.EventTypeSessionEnded {
				if ts.hub.ClientCount() != 0 {
					t.Errorf("client still registered")
				}
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("session never ended")
}

func TestHubShutdownClosesClients(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := ts.dial(t)
	readState(t, conn)

	ts.cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure) || strings.Contains(err.Error(), "close") || strings.Contains(err.Error(), "EOF") {
				return
			}
			t.Fatalf("unexpected read error: %v", err)
		}
	}
}

func TestHubShutdownReleasesConnectionGauge(t *testing.T) {
	ts := newTestServer(t, nil)
	for i := 0; i < 3; i++ {
		readState(t, ts.dial(t))
	}
	if got := atomic.LoadInt64(&ts.m.WSConnectionsActive); got != 3 {
		t.Fatalf("active connections = %d, want 3", got)
	}

	ts.cancel()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt64(&ts.m.WSConnectionsActive) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("active connections = %d after shutdown, want 0", atomic.LoadInt64(&ts.m.WSConnectionsActive))
}
