// Package main - tapper-load
// Load generator: many concurrent players spamming tap, buy and share intents over WebSocket.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/TurboTapper/server/internal/events"
	"github.com/MRamiBalles/TurboTapper/server/internal/network"
)

// Config for the load generator
type Config struct {
	ServerURL      string
	NumClients     int
	ActionInterval time.Duration
	TestDuration   time.Duration
	MaxTouches     int
	OutputPath     string
}

// Stats tracks performance metrics
type Stats struct {
	MessagesSent     int64
	MessagesReceived int64
	TapsAccepted     int64
	TapsRejected     int64
	Purchases        int64
	Errors           int64
	Latencies        []time.Duration
	mu               sync.Mutex
}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	numClients := flag.Int("clients", 50, "Number of concurrent clients")
	interval := flag.Duration("interval", 100*time.Millisecond, "Intent interval per client")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	maxTouches := flag.Int("touches", 5, "Maximum touch points per tap")
	output := flag.String("out", "load_test_results.json", "Where to write the JSON summary (empty to skip)")
	flag.Parse()

	config := Config{
		ServerURL:      *serverURL,
		NumClients:     *numClients,
		ActionInterval: *interval,
		TestDuration:   *duration,
		MaxTouches:     *maxTouches,
		OutputPath:     *output,
	}

	fmt.Println("=========================================")
	fmt.Println("TURBO TAPPER - load generator")
	fmt.Println("=========================================")
	fmt.Printf("Server: %s\n", config.ServerURL)
	fmt.Printf("Clients: %d\n", config.NumClients)
	fmt.Printf("Interval: %v\n", config.ActionInterval)
	fmt.Printf("Duration: %v\n", config.TestDuration)
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(context.Background(), config.TestDuration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupt received, stopping...")
		cancel()
	}()

	start := time.Now()
	stats := runLoadTest(ctx, config)
	printResults(stats, config, time.Since(start))
}

func runLoadTest(ctx context.Context, config Config) *Stats {
	stats := &Stats{
		Latencies: make([]time.Duration, 0, 10000),
	}

	var wg sync.WaitGroup

	fmt.Println("\nStarting clients...")

	for i := 0; i < config.NumClients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			runClient(ctx, clientID, config, stats)
		}(i)

		// Stagger client starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}

	fmt.Printf("All %d clients started\n\n", config.NumClients)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Printf("Progress: Sent=%d Recv=%d Accepted=%d Rejected=%d Errors=%d\n",
					atomic.LoadInt64(&stats.MessagesSent),
					atomic.LoadInt64(&stats.MessagesReceived),
					atomic.LoadInt64(&stats.TapsAccepted),
					atomic.LoadInt64(&stats.TapsRejected),
					atomic.LoadInt64(&stats.Errors))
			}
		}
	}()

	wg.Wait()
	return stats
}

func runClient(ctx context.Context, clientID int, config Config, stats *Stats) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(clientID)))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, nil)
	if err != nil {
		log.Printf("Client %d: Connection failed: %v", clientID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	// sentAt holds the send time of the intent awaiting its STATE frame.
	var sentAt atomic.Int64

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			atomic.AddInt64(&stats.MessagesReceived, 1)
			stats.record(data)

			if t := sentAt.Swap(0); t != 0 {
				stats.mu.Lock()
				stats.Latencies = append(stats.Latencies, time.Since(time.Unix(0, t)))
				stats.mu.Unlock()
			}
		}
	}()

	ticker := time.NewTicker(config.ActionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			intent := generateRandomIntent(rng, config.MaxTouches, clientID)
			sentAt.CompareAndSwap(0, time.Now().UnixNano())
			if err := conn.WriteJSON(intent); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				return
			}
			atomic.AddInt64(&stats.MessagesSent, 1)
		}
	}
}

// record tallies the outcomes carried by one server frame.
func (s *Stats) record(data []byte) {
	var msg network.StateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		atomic.AddInt64(&s.Errors, 1)
		return
	}
	if msg.Type != network.MsgState {
		atomic.AddInt64(&s.Errors, 1)
		return
	}
	for _, o := range msg.Outcomes {
		switch o {
		case events.EventTypeTapAccepted:
			atomic.AddInt64(&s.TapsAccepted, 1)
		case events.EventTypeTapRejected:
			atomic.AddInt64(&s.TapsRejected, 1)
		case events.EventTypePurchaseSucceeded:
			atomic.AddInt64(&s.Purchases, 1)
		}
	}
}

// generateRandomIntent mostly taps, sometimes buys, rarely shares.
func generateRandomIntent(rng *rand.Rand, maxTouches, clientID int) network.PlayerIntent {
	if maxTouches < 1 {
		maxTouches = 1
	}
	switch roll := rng.Intn(100); {
	case roll < 85:
		return network.PlayerIntent{Type: network.MsgTap, Touches: 1 + rng.Intn(maxTouches)}
	case roll < 99:
		tracks := []string{"TAP", "ENERGY"}
		return network.PlayerIntent{Type: network.MsgBuy, Track: tracks[rng.Intn(len(tracks))]}
	default:
		return network.PlayerIntent{Type: network.MsgShare, UserID: fmt.Sprintf("load-%03d", clientID)}
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func printResults(stats *Stats, config Config, elapsed time.Duration) {
	fmt.Println("\n=========================================")
	fmt.Println("LOAD TEST RESULTS")
	fmt.Println("=========================================")

	sent := atomic.LoadInt64(&stats.MessagesSent)
	recv := atomic.LoadInt64(&stats.MessagesReceived)
	errs := atomic.LoadInt64(&stats.Errors)

	fmt.Printf("Messages Sent:     %d\n", sent)
	fmt.Printf("Messages Received: %d\n", recv)
	fmt.Printf("Taps Accepted:     %d\n", atomic.LoadInt64(&stats.TapsAccepted))
	fmt.Printf("Taps Rejected:     %d\n", atomic.LoadInt64(&stats.TapsRejected))
	fmt.Printf("Purchases:         %d\n", atomic.LoadInt64(&stats.Purchases))
	fmt.Printf("Errors:            %d\n", errs)
	fmt.Printf("Error Rate:        %.2f%%\n", float64(errs)/float64(sent+1)*100)

	throughput := float64(sent) / elapsed.Seconds()
	fmt.Printf("Throughput:        %.2f msg/sec\n", throughput)

	stats.mu.Lock()
	lat := append([]time.Duration(nil), stats.Latencies...)
	stats.mu.Unlock()
	sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })

	if len(lat) > 0 {
		fmt.Printf("\nRound trip:\n")
		fmt.Printf("  Min: %v\n", lat[0])
		fmt.Printf("  P50: %v\n", percentile(lat, 0.50))
		fmt.Printf("  P99: %v\n", percentile(lat, 0.99))
		fmt.Printf("  Max: %v\n", lat[len(lat)-1])
	}

	fmt.Println("\n-----------------------------------------")
	switch {
	case errs == 0 && recv > 0:
		fmt.Println("PASSED: server kept up with the load")
	case float64(errs)/float64(sent+1) < 0.05:
		fmt.Println("WARNING: some errors detected")
	default:
		fmt.Println("FAILED: high error rate")
	}
	fmt.Println("=========================================")

	if config.OutputPath == "" {
		return
	}
	results := map[string]interface{}{
		"messages_sent":      sent,
		"messages_received":  recv,
		"taps_accepted":      atomic.LoadInt64(&stats.TapsAccepted),
		"taps_rejected":      atomic.LoadInt64(&stats.TapsRejected),
		"purchases":          atomic.LoadInt64(&stats.Purchases),
		"errors":             errs,
		"throughput_per_sec": throughput,
		"p50_round_trip":     percentile(lat, 0.50).String(),
		"p99_round_trip":     percentile(lat, 0.99).String(),
		"config": map[string]interface{}{
			"clients":  config.NumClients,
			"interval": config.ActionInterval.String(),
			"duration": config.TestDuration.String(),
		},
	}

	jsonData, _ := json.MarshalIndent(results, "", "  ")
	if err := os.WriteFile(config.OutputPath, jsonData, 0644); err != nil {
		log.Printf("Failed to write results: %v", err)
		return
	}
	fmt.Printf("\nResults saved to %s\n", config.OutputPath)
}
