package testevents

import "time"

// Config holds configuration for a synthetic season.
type Config struct {
	Games              int    // Number of games
	PlayersPerTeam     int    // Players fielded by each of the two teams
	MaxEventsPerPlayer int    // Upper bound of actions per player-match
	Seed               int64  // Seed; equal seeds give equal seasons
	OutputDir          string // Directory receiving events.csv and playtime.csv
}

// Season is a generated pair of input tables.
type Season struct {
	Events   []Event
	PlayTime []PlayTime
}

// Stats holds generation statistics.
type Stats struct {
	Games           int
	Events          int
	PlayTimeRecords int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
