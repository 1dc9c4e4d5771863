// Package player defines the resource state a single tapper session works on.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package player

// Track identifies one of the two purchasable upgrade progressions.
type Track string

const (
	TrackTap    Track = "TAP"    // +1 tap power per level
	TrackEnergy Track = "ENERGY" // +500 max energy per level, refills on purchase
)

// Valid reports whether t names a known upgrade track.
func (t Track) Valid() bool {
	return t == TrackTap || t == TrackEnergy
}

const (
	BaseMaxEnergy   int64 = 1000
	EnergyPerLevel  int64 = 500
	RegenPerTick          = 2.0
	ReferralBonus   int64 = 10000
	StartingLevel   int64 = 1
	StartingTapGain int64 = 1
)

// State is the mutable resource vector of one player.
// Energy is fractional so a future regen rate below 1 stays representable; it is floored for display.
type State struct {
	Score       int64   `json:"score"`
	Energy      float64 `json:"energy"`
	MaxEnergy   int64   `json:"max_energy"`
	TapPower    int64   `json:"tap_power"`
	TapLevel    int64   `json:"tap_level"`
	EnergyLevel int64   `json:"energy_level"`
}

// NewState returns the fixed starting state: empty score, full 1000 energy, level 1 on both tracks.
func NewState() *State {
	return &State{
		Score:       0,
		Energy:      float64(BaseMaxEnergy),
		MaxEnergy:   BaseMaxEnergy,
		TapPower:    StartingTapGain,
		TapLevel:    StartingLevel,
		EnergyLevel: StartingLevel,
	}
}

// MaxEnergyFor returns the energy capacity granted by an energy level.
func MaxEnergyFor(energyLevel int64) int64 {
	return BaseMaxEnergy + EnergyPerLevel*(energyLevel-1)
}

// Clone returns a detached copy safe to hand to readers.
func (s *State) Clone() State {
	return *s
}

// Consistent reports whether every state invariant holds.
func (s *State) Consistent() bool {
	return s.Score >= 0 &&
		s.Energy >= 0 &&
		s.Energy <= float64(s.MaxEnergy) &&
		s.TapLevel >= 1 &&
		s.EnergyLevel >= 1 &&
		s.TapPower == s.TapLevel &&
		s.MaxEnergy == MaxEnergyFor(s.EnergyLevel)
}
