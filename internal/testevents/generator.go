package testevents

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/tvi/internal/domain/model"
	"github.com/okian/tvi/pkg/logger"
)

// Event and PlayTime are the rows of the generated tables.
type (
	Event    = model.RawActionEvent
	PlayTime = model.PlayTimeRecord
)

// Generation constants.
const (
	matchMinutes   = 90
	pitchMax       = 100.0
	starterMinutes = 60 // starters play at least this long
)

// EventNames are the actions drawn by the generator.
var EventNames = []string{ //nolint:gochecknoglobals // read-only fixture vocabulary
	"Aerial", "Interception", "Tackle", "Take On", "progressive_pass",
	"deep_completition", "key_pass", "shots_on_target", "Pass", "Clearance",
}

// Positions are the labels assigned to generated players.
var Positions = []string{"Goalkeeper", "Defender", "Midfielder", "Forward"} //nolint:gochecknoglobals // read-only fixture vocabulary

// Generate builds a season. Games are generated concurrently, each from its
// own seeded source, so the result depends only on cfg.
func Generate(ctx context.Context, cfg *Config) (Season, error) {
	if cfg.Games < 1 || cfg.PlayersPerTeam < 1 || cfg.MaxEventsPerPlayer < 0 {
		return Season{}, fmt.Errorf("invalid season shape: %d games, %d players per team, %d max events",
			cfg.Games, cfg.PlayersPerTeam, cfg.MaxEventsPerPlayer)
	}

	roster := newRoster(cfg)
	logger.Get().Debug(ctx, "generating season",
		logger.Int("games", cfg.Games),
		logger.Int("playersPerTeam", cfg.PlayersPerTeam),
	)

	parts := make([]Season, cfg.Games)
	errs := make([]error, cfg.Games)
	var wg sync.WaitGroup
	for g := 0; g < cfg.Games; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[g] = err
				return
			}
			parts[g] = generateGame(cfg, roster, g)
		}(g)
	}
	wg.Wait()

	var season Season
	for g := range parts {
		if errs[g] != nil {
			return Season{}, fmt.Errorf("game %d: %w", g, errs[g])
		}
		season.Events = append(season.Events, parts[g].Events...)
		season.PlayTime = append(season.PlayTime, parts[g].PlayTime...)
	}
	return season, nil
}

type player struct {
	id       string
	team     string
	position string
}

// newRoster assigns stable IDs and positions for two teams.
func newRoster(cfg *Config) []player {
	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // reproducible fixtures
	teams := [2]string{}
	for i := range teams {
		teams[i] = mustUUID(rng)
	}

	roster := make([]player, 0, 2*cfg.PlayersPerTeam)
	for _, team := range teams {
		for i := 0; i < cfg.PlayersPerTeam; i++ {
			position := Positions[1+rng.Intn(len(Positions)-1)]
			if i == 0 {
				position = Positions[0]
			}
			roster = append(roster, player{id: mustUUID(rng), team: team, position: position})
		}
	}
	return roster
}

func generateGame(cfg *Config, roster []player, g int) Season {
	rng := rand.New(rand.NewSource(cfg.Seed + int64(g) + 1)) //nolint:gosec // reproducible fixtures
	game := mustUUID(rng)

	var out Season
	for _, p := range roster {
		minutes := float64(rng.Intn(matchMinutes + 1))
		if rng.Intn(2) == 0 {
			minutes = float64(starterMinutes + rng.Intn(matchMinutes-starterMinutes+1))
		}
		out.PlayTime = append(out.PlayTime, PlayTime{
			GameID: game, TeamID: p.team, PlayerID: p.id,
			PlayTime: minutes, Position: p.position,
		})
		if minutes == 0 || cfg.MaxEventsPerPlayer == 0 {
			continue
		}
		for n := rng.Intn(cfg.MaxEventsPerPlayer + 1); n > 0; n-- {
			out.Events = append(out.Events, Event{
				GameID: game, TeamID: p.team, PlayerID: p.id,
				EventName: EventNames[rng.Intn(len(EventNames))],
				X:         rng.Float64() * pitchMax,
				Y:         rng.Float64() * pitchMax,
			})
		}
	}
	// Interleave players as a real event feed would.
	rng.Shuffle(len(out.Events), func(i, j int) { out.Events[i], out.Events[j] = out.Events[j], out.Events[i] })
	return out
}

func mustUUID(rng *rand.Rand) string {
	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		panic(err) // math/rand never fails to read
	}
	return id.String()
}
