// Command test-events writes a reproducible synthetic season (events.csv and
// playtime.csv) for driving cmd/tvi.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/tvi/internal/testevents"
	"github.com/okian/tvi/pkg/logger"
)

// Default configuration constants.
const (
	defaultGames          = 38
	defaultPlayersPerTeam = 14
	defaultMaxEvents      = 40
)

func main() {
	var (
		games     = flag.Int("games", defaultGames, "Number of games to generate")
		players   = flag.Int("players", defaultPlayersPerTeam, "Players fielded per team")
		maxEvents = flag.Int("max-events", defaultMaxEvents, "Maximum actions per player-match")
		seed      = flag.Int64("seed", 1, "Random seed; equal seeds give equal seasons")
		outDir    = flag.String("out", "season", "Output directory")
	)
	flag.Parse()

	if err := logger.InitWithWriter(os.Stderr, logger.FormatText); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &testevents.Config{
		Games:              *games,
		PlayersPerTeam:     *players,
		MaxEventsPerPlayer: *maxEvents,
		Seed:               *seed,
		OutputDir:          *outDir,
	}
	if _, err := testevents.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "generation failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}
