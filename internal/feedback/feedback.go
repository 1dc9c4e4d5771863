// Package feedback turns outcome cues into short tones.
// Tones stand in for the host haptics: a light tick for a landed tap,
// a low buzz for a refused one and a rising chime for a purchase.
package feedback

import (
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"github.com/MRamiBalles/TurboTapper/server/internal/events"
)

const sampleRate = beep.SampleRate(44100)

// Player plays one cue. Implementations must not block the caller.
type Player interface {
	Play(cue events.EventType)
}

// Dispatch plays every distinct feedback cue in outcomes once, in first-seen order.
// A five-finger tap yields one tick, not five.
func Dispatch(p Player, outcomes []events.EventType) {
	if p == nil {
		return
	}
	seen := make(map[events.EventType]bool, 2)
	for _, o := range outcomes {
		if !o.IsFeedback() || seen[o] {
			continue
		}
		seen[o] = true
		p.Play(o)
	}
}

// Nop discards every cue.
type Nop struct{}

func (Nop) Play(events.EventType) {}

// note is one segment of a cue.
type note struct {
	freq     float64
	duration time.Duration
	wave     WaveType
	volume   float64
}

var cues = map[events.EventType][]note{
	events.EventTypeTapAccepted: {
		{freq: 1200, duration: 25 * time.Millisecond, wave: WaveSine, volume: 0.25},
	},
	events.EventTypeTapRejected: {
		{freq: 140, duration: 120 * time.Millisecond, wave: WaveSquare, volume: 0.2},
	},
	events.EventTypePurchaseSucceeded: {
		{freq: 660, duration: 70 * time.Millisecond, wave: WaveSine, volume: 0.3},
		{freq: 990, duration: 110 * time.Millisecond, wave: WaveSine, volume: 0.3},
	},
}

// Streamer builds the sound for a cue, or nil when the cue has no sound.
func Streamer(cue events.EventType, rate beep.SampleRate) beep.Streamer {
	notes, ok := cues[cue]
	if !ok {
		return nil
	}
	parts := make([]beep.Streamer, 0, len(notes))
	for _, n := range notes {
		parts = append(parts, beep.Take(rate.N(n.duration), NewTone(n.freq, n.duration, n.wave, n.volume, rate)))
	}
	return beep.Seq(parts...)
}

// Tones plays cues through the system speaker.
type Tones struct {
	mu          sync.Mutex
	mixer       *beep.Mixer
	initialized bool
}

// NewTones creates an uninitialized tone player. Play is a no-op until Initialize succeeds.
func NewTones() *Tones {
	return &Tones{mixer: &beep.Mixer{}}
}

// Initialize opens the speaker. A failure leaves the player silent; callers treat it as non-fatal.
func (t *Tones) Initialize() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.initialized {
		return nil
	}
	if err := speaker.Init(sampleRate, sampleRate.N(50*time.Millisecond)); err != nil {
		return err
	}
	speaker.Play(t.mixer)
	t.initialized = true
	return nil
}

// Play mixes the cue's sound in. Unknown cues are ignored.
func (t *Tones) Play(cue events.EventType) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		return
	}
	s := Streamer(cue, sampleRate)
	if s == nil {
		return
	}
	speaker.Lock()
	t.mixer.Add(s)
	speaker.Unlock()
}

// Close silences the mixer and releases the speaker.
func (t *Tones) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		return
	}
	speaker.Lock()
	t.mixer.Clear()
	speaker.Unlock()
	speaker.Close()
	t.initialized = false
}

// WaveType selects the oscillator shape.
type WaveType int

const (
	WaveSine WaveType = iota
	WaveSquare
)

// tone is a fixed-length oscillator with a linear fade-out so cues end without a click.
type tone struct {
	freq     float64
	phase    float64
	volume   float64
	duration int
	position int
	wave     WaveType
	rate     beep.SampleRate
}

// NewTone creates a single-note streamer.
func NewTone(freq float64, duration time.Duration, wave WaveType, volume float64, rate beep.SampleRate) beep.Streamer {
	return &tone{
		freq:     freq,
		volume:   volume,
		duration: rate.N(duration),
		wave:     wave,
		rate:     rate,
	}
}

func (o *tone) Stream(samples [][2]float64) (n int, ok bool) {
	if o.position >= o.duration {
		return 0, false
	}
	for i := range samples {
		if o.position >= o.duration {
			return i, true
		}

		var val float64
		switch o.wave {
		case WaveSquare:
			if o.phase < 0.5 {
				val = 1.0
			} else {
				val = -1.0
			}
		default:
			val = math.Sin(2 * math.Pi * o.phase)
		}

		env := 1 - float64(o.position)/float64(o.duration)
		val *= o.volume * env
		samples[i][0] = val
		samples[i][1] = val

		o.phase += o.freq / float64(o.rate)
		o.phase -= math.Floor(o.phase)
		o.position++
	}
	return len(samples), true
}

func (o *tone) Err() error { return nil }
