// Package main runs a local Turbo Tapper session in the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"

	"github.com/MRamiBalles/TurboTapper/server/internal/engine"
	"github.com/MRamiBalles/TurboTapper/server/internal/feedback"
	"github.com/MRamiBalles/TurboTapper/server/internal/platform/config"
	"github.com/MRamiBalles/TurboTapper/server/internal/platform/logger"
	"github.com/MRamiBalles/TurboTapper/server/internal/terminal"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (defaults when empty)")
	userID := flag.String("user", "", "User id placed in invite links")
	mute := flag.Bool("mute", false, "Disable feedback tones")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create screen: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize screen: %v\n", err)
		os.Exit(1)
	}

	// Audio is optional; a missing device leaves the game silent.
	var player feedback.Player = feedback.Nop{}
	var tones *feedback.Tones
	if !*mute {
		tones = feedback.NewTones()
		if err := tones.Initialize(); err == nil {
			player = tones
		} else {
			tones = nil
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sessionID := uuid.NewString()
	app := terminal.NewApp(screen, player, logger.NewDiscardLogger(), terminal.Options{
		SessionID:   sessionID,
		UserID:      *userID,
		BotUsername: cfg.Referral.BotUsername,
		Session: engine.SessionOptions{
			RegenPeriod: cfg.Engine.RegenPeriod,
			InboxBuffer: cfg.Engine.InboxBuffer,
		},
	})

	runErr := app.Run(ctx)

	if tones != nil {
		tones.Close()
	}
	screen.Fini()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "tapper: %v\n", runErr)
		os.Exit(1)
	}
	v := app.View()
	fmt.Printf("Session %s ended: score %s, tap level %d, energy level %d\n",
		sessionID, v.ScoreLabel, v.TapLevel, v.EnergyLevel)
}
