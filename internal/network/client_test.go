package network

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/MRamiBalles/TurboTapper/server/internal/engine"
	"github.com/MRamiBalles/TurboTapper/server/internal/platform/config"
	"github.com/MRamiBalles/TurboTapper/server/internal/platform/logger"
)

func newBareClient(t *testing.T) *Client {
	t.Helper()
	cfg := config.LowResourceConfig()
	cfg.Engine.RegenPeriod = 0
	cfg.Network.ClientSendBuffer = 256
	hub := NewHub(cfg, nil, nil, logger.NewDiscardLogger())
	c := NewClient(hub, nil)
	c.start()
	t.Cleanup(func() {
		c.cancel()
		<-c.session.Done()
		hub.cancel()
	})
	return c
}

func drainFrames(t *testing.T, c *Client) []StateMessage {
	t.Helper()
	var out []StateMessage
	for {
		select {
		case data := <-c.send:
			var msg StateMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("decode %s: %v", data, err)
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestShareFramesKeepSessionOrder(t *testing.T) {
	c := newBareClient(t)
	ctx := context.Background()
	if _, err := c.session.Tap(ctx, 50); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.session.Regenerate(ctx); err != nil {
				t.Error(err)
			}
		}()
		if err := c.handleIntent(PlayerIntent{Type: MsgShare, UserID: "42"}); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()

	frames := drainFrames(t, c)
	shares := 0
	for i, f := range frames {
		if f.Cause == engine.CauseReferral {
			shares++
			if f.InviteLink != "https://t.me/TurboTapperBot?start=ref_42" || f.ShareURL == "" {
				t.Errorf("share frame %d missing links: %+v", i, f)
			}
		}
		if i == 0 {
			continue
		}
		prev := frames[i-1]
		if f.View.Score < prev.View.Score || f.View.Energy < prev.View.Energy {
			t.Fatalf("frame %d (%s) went back from score %d energy %v to score %d energy %v",
				i, f.Cause, prev.View.Score, prev.View.Energy, f.View.Score, f.View.Energy)
		}
	}
	if shares != 20 {
		t.Errorf("got %d share frames, want 20", shares)
	}
}

func TestShareLinksAreNotReused(t *testing.T) {
	c := newBareClient(t)
	if err := c.handleIntent(PlayerIntent{Type: MsgShare, UserID: "7"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.session.Referral(context.Background()); err != nil {
		t.Fatal(err)
	}

	var refs []StateMessage
	for _, f := range drainFrames(t, c) {
		if f.Cause == engine.CauseReferral {
			refs = append(refs, f)
		}
	}
	if len(refs) != 2 {
		t.Fatalf("got %d referral frames, want 2", len(refs))
	}
	if refs[0].InviteLink == "" || refs[1].InviteLink != "" {
		t.Errorf("links = %q then %q", refs[0].InviteLink, refs[1].InviteLink)
	}
}
