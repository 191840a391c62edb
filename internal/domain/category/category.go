// Package category rolls raw action x zone columns up into category x zone
// columns named from a template, e.g. "defensive_zone_3".
package category

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/tvi/internal/domain/profile"
)

// Template placeholders.
const (
	PlaceholderCategory = "{category}"
	PlaceholderZone     = "{zone}"

	DefaultTemplate = PlaceholderCategory + "_zone_" + PlaceholderZone
)

// ErrInvalidCategories reports an unusable category configuration.
var ErrInvalidCategories = errors.New("invalid categories")

// Category groups event names under one label.
type Category struct {
	Name   string   `koanf:"name"`
	Events []string `koanf:"events"`
}

// Defaults returns the defensive, progressive and offensive groupings of the
// standard action classifier.
func Defaults() []Category {
	return []Category{
		{Name: "defensive", Events: []string{"Aerial", "Interception", "Tackle"}},
		{Name: "progressive", Events: []string{"Take On", "progressive_pass"}},
		{Name: "offensive", Events: []string{"deep_completition", "key_pass", "shots_on_target"}},
	}
}

type cell struct {
	column  string
	sources []string
}

// Deriver computes category columns from raw composite counts.
type Deriver struct {
	cells []cell
}

// NewDeriver builds the derived column set: for each zone in order, one
// column per category in order.
func NewDeriver(categories []Category, template string, zones []string) (*Deriver, error) {
	if template == "" {
		template = DefaultTemplate
	}
	if !strings.Contains(template, PlaceholderCategory) || !strings.Contains(template, PlaceholderZone) {
		return nil, fmt.Errorf("%w: template %q must contain %s and %s",
			ErrInvalidCategories, template, PlaceholderCategory, PlaceholderZone)
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("%w: no categories", ErrInvalidCategories)
	}
	if len(zones) == 0 {
		return nil, fmt.Errorf("%w: no zones", ErrInvalidCategories)
	}

	seen := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: category without name", ErrInvalidCategories)
		}
		if _, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalidCategories, c.Name)
		}
		seen[c.Name] = struct{}{}
	}

	d := &Deriver{cells: make([]cell, 0, len(zones)*len(categories))}
	for _, z := range zones {
		for _, c := range categories {
			r := strings.NewReplacer(PlaceholderCategory, c.Name, PlaceholderZone, z)
			sources := make([]string, len(c.Events))
			for i, e := range c.Events {
				sources[i] = profile.CompositeKey(e, z)
			}
			d.cells = append(d.cells, cell{column: r.Replace(template), sources: sources})
		}
	}
	return d, nil
}

// Columns returns the derived column names.
func (d *Deriver) Columns() []string {
	out := make([]string, len(d.cells))
	for i, c := range d.cells {
		out[i] = c.column
	}
	return out
}

// Project sums raw counts into the derived columns. Raw columns missing from
// counts contribute zero.
func (d *Deriver) Project(counts map[string]int) []float64 {
	out := make([]float64, len(d.cells))
	for i, c := range d.cells {
		for _, src := range c.sources {
			out[i] += float64(counts[src])
		}
	}
	return out
}
