package view

import (
	"testing"

	"github.com/MRamiBalles/TurboTapper/server/internal/domain/player"
)

func TestBuildFreshState(t *testing.T) {
	v := Build(*player.NewState())

	if v.ScoreLabel != "0" || v.Energy != 1000 || v.EnergyPercent != 100 || v.LowEnergy {
		t.Errorf("unexpected view: %+v", v)
	}
	if v.TapCostLabel != "Cost: 100" || v.EnergyCostLabel != "Cost: 200" {
		t.Errorf("labels = %q / %q", v.TapCostLabel, v.EnergyCostLabel)
	}
	if v.CanBuyTap || v.CanBuyEnergy {
		t.Error("nothing is affordable with score 0")
	}
}

func TestBuildFormatsAndGates(t *testing.T) {
	s := player.NewState()
	s.Score = 1234567
	s.Energy = 199.9
	s.TapLevel, s.TapPower = 20, 20

	v := Build(*s)

	if v.ScoreLabel != "1,234,567" {
		t.Errorf("score label = %q", v.ScoreLabel)
	}
	if v.Energy != 199 {
		t.Errorf("energy should be floored, got %d", v.Energy)
	}
	if !v.LowEnergy {
		t.Error("199.9 of 1000 is under the 20% warning line")
	}
	if v.TapCost <= s.Score && !v.CanBuyTap {
		t.Error("affordable tap upgrade reported as disabled")
	}
	if v.TapCost > s.Score && v.CanBuyTap {
		t.Error("unaffordable tap upgrade reported as enabled")
	}
	if !v.CanBuyEnergy {
		t.Error("energy upgrade (200) should be affordable")
	}
}

func TestLowEnergyBoundary(t *testing.T) {
	s := player.NewState()
	s.Energy = 200
	if Build(*s).LowEnergy {
		t.Error("exactly 20% is not low")
	}
	s.Energy = 199
	if !Build(*s).LowEnergy {
		t.Error("below 20% is low")
	}
}

func TestBar(t *testing.T) {
	s := player.NewState()
	s.Energy = 500
	bar := string(Build(*s).Bar(10, '#', '.'))
	if bar != "#####....." {
		t.Errorf("bar = %q", bar)
	}
	if Build(*s).Bar(0, '#', '.') != nil {
		t.Error("zero width bar should be nil")
	}
}
