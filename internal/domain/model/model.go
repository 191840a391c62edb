// Package model contains the tables passed between pipeline stages.
package model

import "database/sql"

// RawActionEvent is one classified on-field action. Coordinates are in the
// 0-100 range of the event provider on both axes.
type RawActionEvent struct {
	GameID    string
	TeamID    string
	PlayerID  string
	EventName string // action category, e.g. "Tackle", "progressive_pass"
	X         float64
	Y         float64
}

// Key returns the player-match key of the event.
func (e RawActionEvent) Key() MatchKey {
	return MatchKey{GameID: e.GameID, TeamID: e.TeamID, PlayerID: e.PlayerID}
}

// PlayTimeRecord holds the minutes a player was on the pitch in one match.
// These records decide which player-matches appear in the output.
type PlayTimeRecord struct {
	GameID   string
	TeamID   string
	PlayerID string
	PlayTime float64 // minutes, non-negative
	Position string  // optional; empty when unknown
}

// Key returns the player-match key of the record.
func (r PlayTimeRecord) Key() MatchKey {
	return MatchKey{GameID: r.GameID, TeamID: r.TeamID, PlayerID: r.PlayerID}
}

// MatchKey identifies one player in one match.
type MatchKey struct {
	GameID   string
	TeamID   string
	PlayerID string
}

// PlayerMatchTVIRecord is the scored profile of one player in one match.
type PlayerMatchTVIRecord struct {
	Key MatchKey

	// Counts holds action x zone counts keyed by composite column.
	// Absent columns count as zero.
	Counts map[string]int

	ActionDiversity int
	ShannonEntropy  float64
	PlayTime        float64
	Position        string

	TVI        float64 // in [0, 1]
	TVIEntropy float64 // in [0, 1]
}

// PlayerAggregateRecord is a player's season figure. Weighted fields are
// null when the player's total playtime is zero.
type PlayerAggregateRecord struct {
	PlayerID string

	// Metrics is aligned with the column list the aggregate was built from.
	Metrics []sql.NullFloat64

	ActionDiversity sql.NullFloat64
	ShannonEntropy  sql.NullFloat64
	TVI             sql.NullFloat64
	TVIEntropy      sql.NullFloat64

	PlayTime float64 // season total
	Position string  // position with the most cumulative playtime
	Matches  int
}
