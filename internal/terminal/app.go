// Package terminal is a single-player tapper client drawn with tcell.
// The session runs in-process; the screen only renders its updates.
package terminal

import (
	"context"
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/MRamiBalles/TurboTapper/server/internal/domain/player"
	"github.com/MRamiBalles/TurboTapper/server/internal/engine"
	"github.com/MRamiBalles/TurboTapper/server/internal/events"
	"github.com/MRamiBalles/TurboTapper/server/internal/feedback"
	"github.com/MRamiBalles/TurboTapper/server/internal/platform/logger"
	"github.com/MRamiBalles/TurboTapper/server/internal/referral"
	"github.com/MRamiBalles/TurboTapper/server/internal/view"
)

const (
	updateBuffer = 128
	barWidth     = 30
	maxTouches   = 5
)

var (
	styleTitle   = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleText    = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleDim     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleEnergy  = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleLow     = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleEnabled = tcell.StyleDefault.Foreground(tcell.ColorAqua)
	styleStatus  = tcell.StyleDefault.Foreground(tcell.ColorPurple)
)

// Options configures the terminal client.
type Options struct {
	SessionID   string
	UserID      string
	BotUsername string
	Session     engine.SessionOptions
}

// App owns the screen and the local session.
type App struct {
	screen  tcell.Screen
	session *engine.Session
	player  feedback.Player
	opts    Options

	updates chan engine.Update

	mu      sync.Mutex
	current view.View
	status  string
}

// NewApp builds the client. The session listener is replaced with the app's own.
func NewApp(screen tcell.Screen, fb feedback.Player, log *logger.Logger, opts Options) *App {
	if fb == nil {
		fb = feedback.Nop{}
	}
	a := &App{
		screen:  screen,
		player:  fb,
		opts:    opts,
		updates: make(chan engine.Update, updateBuffer),
	}
	opts.Session.Listener = a.onUpdate
	a.session = engine.NewSession(opts.SessionID, log, opts.Session)
	a.current = view.Build(a.session.Snapshot())
	return a
}

// onUpdate runs on the session goroutine and must not block.
func (a *App) onUpdate(u engine.Update) {
	select {
	case a.updates <- u:
	default:
		// Redraw falls back to the snapshot; only the cue is lost.
	}
}

// Run drives the session and the screen until ctx ends or the player quits.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.session.Run(ctx)

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case eventChan <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	a.draw()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-eventChan:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if !a.handleKey(ctx, ev) {
					cancel()
					<-a.session.Done()
					return nil
				}
			case *tcell.EventResize:
				a.screen.Sync()
			}
			a.drainUpdates()
			a.draw()
		case u := <-a.updates:
			a.applyUpdate(u)
			a.drainUpdates()
			a.draw()
		}
	}
}

// handleKey maps a key to an intent. It returns false when the player quits.
func (a *App) handleKey(ctx context.Context, ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyRune:
	default:
		return true
	}

	var err error
	switch r := ev.Rune(); {
	case r == 'q' || r == 'Q':
		return false
	case r == ' ':
		_, err = a.session.Tap(ctx, 1)
	case r >= '1' && r <= '0'+maxTouches:
		_, err = a.session.Tap(ctx, int(r-'0'))
	case r == 't' || r == 'T':
		err = a.buy(ctx, player.TrackTap)
	case r == 'e' || r == 'E':
		err = a.buy(ctx, player.TrackEnergy)
	case r == 's' || r == 'S':
		err = a.share(ctx)
	}
	if err != nil {
		a.setStatus("session stopped: " + err.Error())
	}
	return true
}

func (a *App) buy(ctx context.Context, track player.Track) error {
	res, err := a.session.Purchase(ctx, track)
	if err != nil {
		return err
	}
	if !res.Changed {
		a.setStatus(fmt.Sprintf("Not enough points for the %s upgrade", track))
		return nil
	}
	a.setStatus(fmt.Sprintf("%s upgraded to level %d", track, levelOf(res.State, track)))
	return nil
}

func (a *App) share(ctx context.Context) error {
	invite := referral.InviteLink(a.opts.BotUsername, a.opts.UserID)
	if _, err := a.session.Referral(ctx); err != nil {
		return err
	}
	a.setStatus(fmt.Sprintf("+%d! Share: %s", player.ReferralBonus, invite))
	return nil
}

func levelOf(s player.State, track player.Track) int64 {
	if track == player.TrackEnergy {
		return s.EnergyLevel
	}
	return s.TapLevel
}

func (a *App) setStatus(msg string) {
	a.mu.Lock()
	a.status = msg
	a.mu.Unlock()
}

func (a *App) applyUpdate(u engine.Update) {
	a.mu.Lock()
	a.current = view.Build(u.State)
	if u.Cause == engine.CauseTap {
		a.status = ""
		if n := len(u.Outcomes); n > 0 && u.Outcomes[n-1] == events.EventTypeTapRejected {
			a.status = "Out of energy"
		}
	}
	a.mu.Unlock()
	feedback.Dispatch(a.player, u.Outcomes)
}

func (a *App) drainUpdates() {
	for {
		select {
		case u := <-a.updates:
			a.applyUpdate(u)
		default:
			return
		}
	}
}

// View returns the model last drawn.
func (a *App) View() view.View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *App) draw() {
	a.mu.Lock()
	v := a.current
	status := a.status
	a.mu.Unlock()

	s := a.screen
	s.Clear()

	y := 1
	a.putStr(2, y, "TURBO TAPPER", styleTitle)
	y += 2
	a.putStr(2, y, "Score: "+v.ScoreLabel, styleText)
	y++
	a.putStr(2, y, fmt.Sprintf("Tap power: +%d", v.TapPower), styleText)
	y += 2

	barStyle := styleEnergy
	if v.LowEnergy {
		barStyle = styleLow
	}
	a.putStr(2, y, fmt.Sprintf("Energy %d/%d", v.Energy, v.MaxEnergy), barStyle)
	y++
	a.putRunes(2, y, v.Bar(barWidth, '█', '░'), barStyle)
	y += 2

	a.drawUpgrade(2, y, "[T] Tap power", v.TapLevel, v.TapCostLabel, v.CanBuyTap)
	y++
	a.drawUpgrade(2, y, "[E] Energy cap", v.EnergyLevel, v.EnergyCostLabel, v.CanBuyEnergy)
	y += 2

	a.putStr(2, y, status, styleStatus)
	y += 2
	a.putStr(2, y, "space/1-5 tap  t/e upgrade  s share  q quit", styleDim)

	s.Show()
}

func (a *App) drawUpgrade(x, y int, label string, level int64, cost string, enabled bool) {
	style := styleDim
	if enabled {
		style = styleEnabled
	}
	a.putStr(x, y, fmt.Sprintf("%s  Lv %d  %s", label, level, cost), style)
}

func (a *App) putStr(x, y int, str string, style tcell.Style) {
	a.putRunes(x, y, []rune(str), style)
}

func (a *App) putRunes(x, y int, runes []rune, style tcell.Style) {
	for i, r := range runes {
		a.screen.SetContent(x+i, y, r, nil, style)
	}
}
