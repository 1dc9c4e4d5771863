package engine

import (
	"math"

	"github.com/MRamiBalles/TurboTapper/server/internal/domain/player"
	"github.com/MRamiBalles/TurboTapper/server/internal/domain/rules"
	"github.com/MRamiBalles/TurboTapper/server/internal/events"
)

// Result is what a single economy operation did.
type Result struct {
	State    player.State       `json:"state"`
	Outcomes []events.EventType `json:"outcomes,omitempty"`
	Accepted int                `json:"accepted,omitempty"` // touches that earned points
	Earned   int64              `json:"earned,omitempty"`
	Cost     int64              `json:"cost,omitempty"` // points deducted by a purchase
	Changed  bool               `json:"changed"`
}

// Rejected reports whether a tap ran out of energy.
func (r Result) Rejected() bool {
	for _, o := range r.Outcomes {
		if o == events.EventTypeTapRejected {
			return true
		}
	}
	return false
}

// Economy applies the tap, regeneration and upgrade rules to one player's state.
// It never reads the clock and never fails: running short of energy or score is an
// ordinary outcome, not an error.
type Economy struct {
	state *player.State
}

// NewEconomy starts from the fixed default state.
func NewEconomy() *Economy {
	return &Economy{state: player.NewState()}
}

// NewEconomyFrom starts from an arbitrary state.
func NewEconomyFrom(s player.State) *Economy {
	return &Economy{state: &s}
}

// State returns a snapshot of the current state.
func (e *Economy) State() player.State {
	return e.state.Clone()
}

// Costs returns the next purchase price on each track.
func (e *Economy) Costs() (tapCost, energyCost int64) {
	return rules.TapCost(e.state.TapLevel), rules.EnergyCost(e.state.EnergyLevel)
}

// ApplyTap processes touchCount simultaneous touch points in order.
// Each touch costs and earns tapPower. The first touch that cannot be paid for stops the
// batch and yields a single TAP_REJECTED. A non-positive touchCount does nothing.
func (e *Economy) ApplyTap(touchCount int) Result {
	res := Result{}
	power := e.state.TapPower

	for i := 0; i < touchCount; i++ {
		if e.state.Energy < float64(power) {
			res.Outcomes = append(res.Outcomes, events.EventTypeTapRejected)
			break
		}
		e.state.Score += power
		e.state.Energy -= float64(power)
		res.Accepted++
		res.Earned += power
		res.Outcomes = append(res.Outcomes, events.EventTypeTapAccepted)
	}

	res.Changed = res.Accepted > 0
	res.State = e.State()
	return res
}

// Regenerate adds one tick of energy, clamped to the capacity. A full tank is left untouched.
func (e *Economy) Regenerate() Result {
	max := float64(e.state.MaxEnergy)
	if e.state.Energy < max {
		e.state.Energy = math.Min(e.state.Energy+player.RegenPerTick, max)
		return Result{State: e.State(), Changed: true}
	}
	return Result{State: e.State()}
}

// PurchaseUpgrade buys the next level on track if the score covers its current cost.
// An unaffordable purchase (or an unknown track) leaves state unchanged and reports no outcome.
func (e *Economy) PurchaseUpgrade(track player.Track) Result {
	if !rules.CanAfford(e.state, track) {
		return Result{State: e.State()}
	}

	cost := rules.CostFor(e.state, track)
	e.state.Score -= cost

	switch track {
	case player.TrackTap:
		e.state.TapLevel++
		e.state.TapPower++
	case player.TrackEnergy:
		e.state.EnergyLevel++
		e.state.MaxEnergy += player.EnergyPerLevel
		e.state.Energy = float64(e.state.MaxEnergy) // refill bonus
	}

	return Result{
		State:    e.State(),
		Outcomes: []events.EventType{events.EventTypePurchaseSucceeded},
		Cost:     cost,
		Changed:  true,
	}
}

// GrantReferralBonus adds the flat invite bonus. The share itself is not verified.
func (e *Economy) GrantReferralBonus() Result {
	e.state.Score += player.ReferralBonus
	return Result{State: e.State(), Earned: player.ReferralBonus, Changed: true}
}
