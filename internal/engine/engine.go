package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MRamiBalles/TurboTapper/server/internal/domain/player"
	"github.com/MRamiBalles/TurboTapper/server/internal/events"
	"github.com/MRamiBalles/TurboTapper/server/internal/platform/logger"
	"github.com/MRamiBalles/TurboTapper/server/internal/platform/metrics"
)

// ErrSessionClosed is returned for intents sent after the session loop exited.
var ErrSessionClosed = errors.New("session closed")

// Cause names what triggered an update.
type Cause string

const (
	CauseStart    Cause = "START"
	CauseTap      Cause = "TAP"
	CausePurchase Cause = "BUY"
	CauseReferral Cause = "SHARE"
	CauseRegen    Cause = "REGEN"
)

// Update is published to the presentation layer after every mutation.
type Update struct {
	SessionID  string             `json:"session_id"`
	Cause      Cause              `json:"cause"`
	State      player.State       `json:"state"`
	Outcomes   []events.EventType `json:"outcomes,omitempty"`
	TapCost    int64              `json:"tap_cost"`
	EnergyCost int64              `json:"energy_cost"`
}

// Listener receives updates on the session goroutine. It must not block.
type Listener func(Update)

// SessionOptions wires a Session to its collaborators. Every field is optional.
type SessionOptions struct {
	// RegenPeriod <= 0 disables the scheduler; ticks then come only from Regenerate.
	RegenPeriod time.Duration
	InboxBuffer int
	Initial     *player.State
	EventLog    *events.EventLog
	Metrics     *metrics.Collector
	Listener    Listener
	// JournalRegen journals regeneration ticks that added energy.
	JournalRegen bool
}

type intent struct {
	cause   Cause
	touches int
	track   player.Track
	reply   chan Result
}

// Session owns one Economy and serializes everything that touches it.
type Session struct {
	id       string
	economy  *Economy
	ticker   *Ticker
	inbox    chan intent
	opts     SessionOptions
	logger   *logger.Logger
	metrics  *metrics.Collector
	done     chan struct{}
	mu       sync.RWMutex
	snapshot player.State
	started  bool
}

// NewSession builds a session with the default starting state unless opts.Initial is set.
func NewSession(id string, log *logger.Logger, opts SessionOptions) *Session {
	econ := NewEconomy()
	if opts.Initial != nil {
		econ = NewEconomyFrom(*opts.Initial)
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewCollector()
	}

	s := &Session{
		id:       id,
		economy:  econ,
		inbox:    make(chan intent, opts.InboxBuffer),
		opts:     opts,
		logger:   log,
		metrics:  m,
		done:     make(chan struct{}),
		snapshot: econ.State(),
	}
	if opts.RegenPeriod > 0 {
		s.ticker = NewTicker(opts.RegenPeriod, s.onTick, log)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Done is closed once the session loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run drives the session until ctx is cancelled. It must be called exactly once.
func (s *Session) Run(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		panic("engine: Session.Run called twice")
	}
	s.started = true
	s.mu.Unlock()

	defer close(s.done)

	s.metrics.RecordSession(1)
	defer s.metrics.RecordSession(-1)

	s.journal(events.EventTypeSessionStarted, "", s.economy.State())
	s.publish(CauseStart, Result{State: s.economy.State()})
	s.logger.Event("SESSION_STARTED", s.id, "economy ready")

	if s.ticker != nil {
		go s.ticker.Start(ctx)
		defer s.ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			final := s.economy.State()
			s.journal(events.EventTypeSessionEnded, "", final)
			s.logger.Event("SESSION_ENDED", s.id, fmt.Sprintf("score=%d tapLevel=%d energyLevel=%d",
				final.Score, final.TapLevel, final.EnergyLevel))
			return
		case in := <-s.inbox:
			res := s.apply(in)
			if in.reply != nil {
				in.reply <- res
			}
		}
	}
}

// Tap submits a tap with touchCount simultaneous touch points.
func (s *Session) Tap(ctx context.Context, touchCount int) (Result, error) {
	return s.submit(ctx, intent{cause: CauseTap, touches: touchCount})
}

// Purchase submits an upgrade purchase on track.
func (s *Session) Purchase(ctx context.Context, track player.Track) (Result, error) {
	return s.submit(ctx, intent{cause: CausePurchase, track: track})
}

// Referral submits a referral bonus grant.
func (s *Session) Referral(ctx context.Context) (Result, error) {
	return s.submit(ctx, intent{cause: CauseReferral})
}

// Regenerate injects one scheduler tick, bypassing the Ticker.
func (s *Session) Regenerate(ctx context.Context) (Result, error) {
	return s.submit(ctx, intent{cause: CauseRegen})
}

// Snapshot returns the state as of the last completed mutation.
func (s *Session) Snapshot() player.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *Session) onTick(ctx context.Context, _ int64) {
	select {
	case s.inbox <- intent{cause: CauseRegen}:
	case <-ctx.Done():
	case <-s.done:
	}
}

func (s *Session) submit(ctx context.Context, in intent) (Result, error) {
	in.reply = make(chan Result, 1)

	select {
	case s.inbox <- in:
	case <-s.done:
		return Result{}, ErrSessionClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case res := <-in.reply:
		return res, nil
	case <-s.done:
		return Result{}, ErrSessionClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// apply runs one intent against the economy. Only called from the Run goroutine.
func (s *Session) apply(in intent) Result {
	var res Result

	switch in.cause {
	case CauseTap:
		res = s.economy.ApplyTap(in.touches)
		s.metrics.RecordTaps(res.Accepted, res.Rejected(), res.Earned)
		for _, o := range res.Outcomes {
			s.journal(o, "", res.State)
		}
		if res.Rejected() {
			s.logger.Event(string(events.EventTypeTapRejected), s.id,
				fmt.Sprintf("accepted=%d of %d, energy=%.0f", res.Accepted, in.touches, res.State.Energy))
		}

	case CausePurchase:
		res = s.economy.PurchaseUpgrade(in.track)
		if res.Changed {
			s.metrics.RecordPurchase(string(in.track), res.Cost)
			s.journal(events.EventTypePurchaseSucceeded, in.track, res.State)
			s.logger.Event(string(events.EventTypePurchaseSucceeded), s.id,
				fmt.Sprintf("track=%s cost=%d", in.track, res.Cost))
		}

	case CauseReferral:
		res = s.economy.GrantReferralBonus()
		s.metrics.RecordReferral()
		s.journal(events.EventTypeReferralGranted, "", res.State)
		s.logger.Event(string(events.EventTypeReferralGranted), s.id,
			fmt.Sprintf("bonus=%d score=%d", player.ReferralBonus, res.State.Score))

	case CauseRegen:
		res = s.economy.Regenerate()
		s.metrics.RecordRegen(res.Changed)
		if res.Changed && s.opts.JournalRegen {
			s.journal(events.EventTypeRegenerated, "", res.State)
		}
	}

	s.mu.Lock()
	s.snapshot = res.State
	s.mu.Unlock()

	// A full tank on a regen tick changes nothing worth redrawing.
	if in.cause != CauseRegen || res.Changed {
		s.publish(in.cause, res)
	}
	return res
}

func (s *Session) publish(cause Cause, res Result) {
	if s.opts.Listener == nil {
		return
	}
	tapCost, energyCost := s.economy.Costs()
	s.opts.Listener(Update{
		SessionID:  s.id,
		Cause:      cause,
		State:      res.State,
		Outcomes:   res.Outcomes,
		TapCost:    tapCost,
		EnergyCost: energyCost,
	})
}

func (s *Session) journal(t events.EventType, track player.Track, state player.State) {
	if s.opts.EventLog == nil {
		return
	}
	e := events.NewGameEvent(s.id, t, state)
	e.Track = track
	s.opts.EventLog.Append(e)
}
