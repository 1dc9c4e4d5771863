// Package rules contains the pure calculation logic for game mechanics.
// This package is PURE and must NOT import any infrastructure packages.
package rules

import (
	"math"

	"github.com/MRamiBalles/TurboTapper/server/internal/domain/player"
)

const (
	tapBaseCost    = 100.0
	tapGrowth      = 1.6
	energyBaseCost = 200.0
	energyGrowth   = 1.5
)

// TapCost is the price of the next tap upgrade when the player sits at tapLevel.
func TapCost(tapLevel int64) int64 {
	return exponentialCost(tapBaseCost, tapGrowth, tapLevel)
}

// EnergyCost is the price of the next energy upgrade when the player sits at energyLevel.
func EnergyCost(energyLevel int64) int64 {
	return exponentialCost(energyBaseCost, energyGrowth, energyLevel)
}

// CostFor returns the current cost of the given track for state s.
// Unknown tracks cost nothing and are never purchasable; callers check Track.Valid first.
func CostFor(s *player.State, track player.Track) int64 {
	switch track {
	case player.TrackTap:
		return TapCost(s.TapLevel)
	case player.TrackEnergy:
		return EnergyCost(s.EnergyLevel)
	default:
		return 0
	}
}

// CanAfford reports whether the player's score covers the track's current cost.
func CanAfford(s *player.State, track player.Track) bool {
	return track.Valid() && s.Score >= CostFor(s, track)
}

// PriceRow is one line of a cost table.
type PriceRow struct {
	Level      int64 `json:"level"`
	TapCost    int64 `json:"tap_cost"`
	EnergyCost int64 `json:"energy_cost"`
	MaxEnergy  int64 `json:"max_energy"`
}

// PriceTable lists both cost curves for levels 1..levels.
func PriceTable(levels int) []PriceRow {
	rows := make([]PriceRow, 0, levels)
	for l := int64(1); l <= int64(levels); l++ {
		rows = append(rows, PriceRow{
			Level:      l,
			TapCost:    TapCost(l),
			EnergyCost: EnergyCost(l),
			MaxEnergy:  player.MaxEnergyFor(l),
		})
	}
	return rows
}

func exponentialCost(base, growth float64, level int64) int64 {
	if level < 1 {
		level = 1
	}
	return int64(math.Floor(base * math.Pow(growth, float64(level-1))))
}
