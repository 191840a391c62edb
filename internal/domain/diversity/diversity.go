// Package diversity measures how widely a player's actions spread over
// action x zone cells.
package diversity

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/tvi/internal/domain/profile"
)

// Result holds both diversity measures of one profile row.
type Result struct {
	// ActionDiversity is the number of cells with at least one action.
	// Volume within a cell does not matter.
	ActionDiversity int
	// ShannonEntropy is the entropy of the cell distribution, in nats.
	ShannonEntropy float64
}

// Score computes the diversity measures of a dense count row. Entropy uses
// the natural logarithm and ignores empty cells; an empty row scores zero.
func Score(counts []float64) Result {
	var r Result
	p := make([]float64, 0, len(counts))
	for _, c := range counts {
		if c >= 1 {
			r.ActionDiversity++
		}
		if c > 0 {
			p = append(p, c)
		}
	}

	total := floats.Sum(p)
	if total <= 0 {
		return r
	}
	floats.Scale(1/total, p)
	r.ShannonEntropy = stat.Entropy(p)
	return r
}

// ScoreTable scores every profile of t, in table order.
func ScoreTable(t profile.Table) []Result {
	out := make([]Result, len(t.Profiles))
	for i := range t.Profiles {
		out[i] = Score(t.Dense(i))
	}
	return out
}
