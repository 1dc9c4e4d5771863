// Package view derives what a presentation layer renders from a state snapshot.
package view

import (
	"math"

	"github.com/dustin/go-humanize"

	"github.com/MRamiBalles/TurboTapper/server/internal/domain/player"
	"github.com/MRamiBalles/TurboTapper/server/internal/domain/rules"
)

// LowEnergyRatio is the fill fraction below which the energy bar turns to its warning colour.
const LowEnergyRatio = 0.2

// View is the render model for one frame.
type View struct {
	Score         int64   `json:"score"`
	ScoreLabel    string  `json:"score_label"`
	Energy        int64   `json:"energy"` // floored
	MaxEnergy     int64   `json:"max_energy"`
	EnergyPercent float64 `json:"energy_percent"`
	LowEnergy     bool    `json:"low_energy"`
	TapPower      int64   `json:"tap_power"`
	TapLevel      int64   `json:"tap_level"`
	EnergyLevel   int64   `json:"energy_level"`

	TapCost         int64  `json:"tap_cost"`
	TapCostLabel    string `json:"tap_cost_label"`
	EnergyCost      int64  `json:"energy_cost"`
	EnergyCostLabel string `json:"energy_cost_label"`
	CanBuyTap       bool   `json:"can_buy_tap"`
	CanBuyEnergy    bool   `json:"can_buy_energy"`
}

// Build computes the view for s.
func Build(s player.State) View {
	tapCost := rules.TapCost(s.TapLevel)
	energyCost := rules.EnergyCost(s.EnergyLevel)

	var percent float64
	if s.MaxEnergy > 0 {
		percent = s.Energy / float64(s.MaxEnergy) * 100
	}

	return View{
		Score:         s.Score,
		ScoreLabel:    humanize.Comma(s.Score),
		Energy:        int64(math.Floor(s.Energy)),
		MaxEnergy:     s.MaxEnergy,
		EnergyPercent: percent,
		LowEnergy:     s.Energy < float64(s.MaxEnergy)*LowEnergyRatio,
		TapPower:      s.TapPower,
		TapLevel:      s.TapLevel,
		EnergyLevel:   s.EnergyLevel,

		TapCost:         tapCost,
		TapCostLabel:    CostLabel(tapCost),
		EnergyCost:      energyCost,
		EnergyCostLabel: CostLabel(energyCost),
		CanBuyTap:       s.Score >= tapCost,
		CanBuyEnergy:    s.Score >= energyCost,
	}
}

// CostLabel renders a price the way the shop shows it.
func CostLabel(cost int64) string {
	return "Cost: " + humanize.Comma(cost)
}

// Bar renders the energy fill as a fixed-width run of filled and empty cells.
func (v View) Bar(width int, filled, empty rune) []rune {
	if width <= 0 {
		return nil
	}
	n := int(math.Round(v.EnergyPercent / 100 * float64(width)))
	if n < 0 {
		n = 0
	}
	if n > width {
		n = width
	}
	out := make([]rune, width)
	for i := range out {
		if i < n {
			out[i] = filled
		} else {
			out[i] = empty
		}
	}
	return out
}
