package player

import "testing"

func TestNewStateDefaults(t *testing.T) {
	s := NewState()
	if s.Score != 0 || s.Energy != 1000 || s.MaxEnergy != 1000 {
		t.Errorf("unexpected resources: %+v", s)
	}
	if s.TapPower != 1 || s.TapLevel != 1 || s.EnergyLevel != 1 {
		t.Errorf("unexpected levels: %+v", s)
	}
	if !s.Consistent() {
		t.Errorf("default state should satisfy every invariant")
	}
}

func TestMaxEnergyFor(t *testing.T) {
	for level, want := range map[int64]int64{1: 1000, 2: 1500, 5: 3000} {
		if got := MaxEnergyFor(level); got != want {
			t.Errorf("MaxEnergyFor(%d) = %d, want %d", level, got, want)
		}
	}
}

func TestConsistentCatchesBrokenInvariants(t *testing.T) {
	broken := []func(*State){
		func(s *State) { s.Energy = 1001 },
		func(s *State) { s.Energy = -1 },
		func(s *State) { s.Score = -5 },
		func(s *State) { s.TapPower = 2 },
		func(s *State) { s.EnergyLevel = 2 },
	}
	for i, mutate := range broken {
		s := NewState()
		mutate(s)
		if s.Consistent() {
			t.Errorf("case %d: expected inconsistency for %+v", i, s)
		}
	}
}

func TestTrackValid(t *testing.T) {
	if !TrackTap.Valid() || !TrackEnergy.Valid() {
		t.Error("known tracks must be valid")
	}
	if Track("tap").Valid() {
		t.Error("tracks are case sensitive")
	}
}

func TestCloneIsDetached(t *testing.T) {
	s := NewState()
	c := s.Clone()
	c.Score = 99
	if s.Score != 0 {
		t.Error("mutating the clone changed the original")
	}
}
