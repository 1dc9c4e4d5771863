package network

import (
	"testing"

	"github.com/MRamiBalles/TurboTapper/server/internal/domain/player"
)

func TestParseIntent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    PlayerIntent
		wantErr bool
	}{
		{"tap", `{"type":"TAP","touches":3}`, PlayerIntent{Type: MsgTap, Touches: 3}, false},
		{"lowercase buy", `{"type":" buy ","track":"energy"}`, PlayerIntent{Type: MsgBuy, Track: "energy"}, false},
		{"share", `{"type":"SHARE","user_id":"77"}`, PlayerIntent{Type: MsgShare, UserID: "77"}, false},
		{"missing type", `{"touches":1}`, PlayerIntent{}, true},
		{"garbage", `tap tap`, PlayerIntent{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIntent([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTrackOf(t *testing.T) {
	if got := (PlayerIntent{Track: "energy"}).TrackOf(); got != player.TrackEnergy {
		t.Errorf("TrackOf(energy) = %q", got)
	}
	if (PlayerIntent{Track: "gold"}).TrackOf().Valid() {
		t.Error("gold should not be a valid track")
	}
}

func TestSanitizeTouches(t *testing.T) {
	tests := []struct{ n, max, want int }{
		{-4, 10, 0},
		{0, 10, 0},
		{3, 10, 3},
		{10, 10, 10},
		{11, 10, 10},
		{50, 0, 50}, // no limit configured
	}
	for _, tt := range tests {
		if got := SanitizeTouches(tt.n, tt.max); got != tt.want {
			t.Errorf("SanitizeTouches(%d, %d) = %d, want %d", tt.n, tt.max, got, tt.want)
		}
	}
}
