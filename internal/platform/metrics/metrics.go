// Package metrics provides observability for the tapper server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers economy and transport counters.
type Collector struct {
	// Economy metrics
	TapsAccepted     int64
	TapsRejected     int64
	PointsEarned     int64
	TapPurchases     int64
	EnergyPurchases  int64
	PointsSpent      int64
	ReferralGrants   int64
	RegenTicks       int64
	RegenTicksIdle   int64
	SessionsActive   int64
	SessionsStarted  int64
	LastRegenTick    time.Time
	lastRegenTickSet bool

	// Journal metrics
	EventsWritten    int64
	EventWriteLatSum int64 // nanoseconds
	EventWriteLatMax int64
	EventWriteErrors int64
	EventsDropped    int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	StartTime time.Time
	mu        sync.RWMutex
}

// NewCollector returns an empty collector. Tests use their own instances.
func NewCollector() *Collector {
	return &Collector{StartTime: time.Now()}
}

// Global collector instance
var collector = NewCollector()

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// RecordTaps records the outcome of one tap intent.
func (c *Collector) RecordTaps(accepted int, rejected bool, earned int64) {
	atomic.AddInt64(&c.TapsAccepted, int64(accepted))
	atomic.AddInt64(&c.PointsEarned, earned)
	if rejected {
		atomic.AddInt64(&c.TapsRejected, 1)
	}
}

// RecordPurchase records a committed upgrade purchase.
func (c *Collector) RecordPurchase(track string, cost int64) {
	switch track {
	case "TAP":
		atomic.AddInt64(&c.TapPurchases, 1)
	case "ENERGY":
		atomic.AddInt64(&c.EnergyPurchases, 1)
	}
	atomic.AddInt64(&c.PointsSpent, cost)
}

// RecordReferral records a referral bonus grant.
func (c *Collector) RecordReferral() {
	atomic.AddInt64(&c.ReferralGrants, 1)
}

// RecordRegen records a scheduler tick; applied is false when energy was already full.
func (c *Collector) RecordRegen(applied bool) {
	if applied {
		atomic.AddInt64(&c.RegenTicks, 1)
	} else {
		atomic.AddInt64(&c.RegenTicksIdle, 1)
	}

	c.mu.Lock()
	c.LastRegenTick = time.Now()
	c.lastRegenTickSet = true
	c.mu.Unlock()
}

// RecordSession records sessions opening (+1) and closing (-1).
func (c *Collector) RecordSession(delta int64) {
	atomic.AddInt64(&c.SessionsActive, delta)
	if delta > 0 {
		atomic.AddInt64(&c.SessionsStarted, delta)
	}
}

// RecordEventWrite records an event write to the journal.
func (c *Collector) RecordEventWrite(latency time.Duration, err error) {
	atomic.AddInt64(&c.EventsWritten, 1)
	atomic.AddInt64(&c.EventWriteLatSum, int64(latency))

	for {
		cur := atomic.LoadInt64(&c.EventWriteLatMax)
		if int64(latency) <= cur || atomic.CompareAndSwapInt64(&c.EventWriteLatMax, cur, int64(latency)) {
			break
		}
	}

	if err != nil {
		atomic.AddInt64(&c.EventWriteErrors, 1)
	}
}

// RecordEventDropped counts an event that never reached the journal because the writer was behind.
func (c *Collector) RecordEventDropped() {
	atomic.AddInt64(&c.EventsDropped, 1)
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	lastRegen := ""
	if c.lastRegenTickSet {
		lastRegen = c.LastRegenTick.Format(time.RFC3339)
	}
	c.mu.RUnlock()

	eventsWritten := atomic.LoadInt64(&c.EventsWritten)
	var eventAvg float64
	if eventsWritten > 0 {
		eventAvg = float64(atomic.LoadInt64(&c.EventWriteLatSum)) / float64(eventsWritten) / 1e6 // ms
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"economy": map[string]interface{}{
			"taps_accepted":    atomic.LoadInt64(&c.TapsAccepted),
			"taps_rejected":    atomic.LoadInt64(&c.TapsRejected),
			"points_earned":    atomic.LoadInt64(&c.PointsEarned),
			"tap_purchases":    atomic.LoadInt64(&c.TapPurchases),
			"energy_purchases": atomic.LoadInt64(&c.EnergyPurchases),
			"points_spent":     atomic.LoadInt64(&c.PointsSpent),
			"referral_grants":  atomic.LoadInt64(&c.ReferralGrants),
			"regen_ticks":      atomic.LoadInt64(&c.RegenTicks),
			"regen_ticks_idle": atomic.LoadInt64(&c.RegenTicksIdle),
			"last_regen_tick":  lastRegen,
		},

		"sessions": map[string]interface{}{
			"active":  atomic.LoadInt64(&c.SessionsActive),
			"started": atomic.LoadInt64(&c.SessionsStarted),
		},

		"events": map[string]interface{}{
			"written":          eventsWritten,
			"avg_write_lat_ms": eventAvg,
			"max_write_lat_ms": float64(atomic.LoadInt64(&c.EventWriteLatMax)) / 1e6,
			"errors":           atomic.LoadInt64(&c.EventWriteErrors),
			"dropped":          atomic.LoadInt64(&c.EventsDropped),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus text format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		counter := func(name, help string, v int64) {
			fmt.Fprintf(w, "# HELP %s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE %s counter\n", name)
			fmt.Fprintf(w, "%s %d\n\n", name, v)
		}
		gauge := func(name, help string, v int64) {
			fmt.Fprintf(w, "# HELP %s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE %s gauge\n", name)
			fmt.Fprintf(w, "%s %d\n\n", name, v)
		}

		fmt.Fprintf(w, "# HELP tapper_taps_total Tap touches by outcome\n")
		fmt.Fprintf(w, "# TYPE tapper_taps_total counter\n")
		fmt.Fprintf(w, "tapper_taps_total{outcome=\"accepted\"} %d\n", atomic.LoadInt64(&c.TapsAccepted))
		fmt.Fprintf(w, "tapper_taps_total{outcome=\"rejected\"} %d\n\n", atomic.LoadInt64(&c.TapsRejected))

		fmt.Fprintf(w, "# HELP tapper_purchases_total Upgrade purchases by track\n")
		fmt.Fprintf(w, "# TYPE tapper_purchases_total counter\n")
		fmt.Fprintf(w, "tapper_purchases_total{track=\"tap\"} %d\n", atomic.LoadInt64(&c.TapPurchases))
		fmt.Fprintf(w, "tapper_purchases_total{track=\"energy\"} %d\n\n", atomic.LoadInt64(&c.EnergyPurchases))

		counter("tapper_points_earned", "Points earned by tapping", atomic.LoadInt64(&c.PointsEarned))
		counter("tapper_points_spent", "Points spent on upgrades", atomic.LoadInt64(&c.PointsSpent))
		counter("tapper_referral_grants", "Referral bonuses granted", atomic.LoadInt64(&c.ReferralGrants))
		counter("tapper_regen_ticks", "Regeneration ticks that added energy", atomic.LoadInt64(&c.RegenTicks))
		gauge("tapper_sessions_active", "Live sessions", atomic.LoadInt64(&c.SessionsActive))

		counter("tapper_events_written", "Journal events written", atomic.LoadInt64(&c.EventsWritten))
		counter("tapper_event_write_errors", "Journal write errors", atomic.LoadInt64(&c.EventWriteErrors))
		counter("tapper_events_dropped", "Events dropped while the journal writer was behind", atomic.LoadInt64(&c.EventsDropped))

		gauge("tapper_ws_connections", "Active WebSocket connections", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP tapper_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE tapper_ws_messages_total counter\n")
		fmt.Fprintf(w, "tapper_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "tapper_ws_messages_total{direction=\"out\"} %d\n", atomic.LoadInt64(&c.WSMessagesOut))
	}
}
