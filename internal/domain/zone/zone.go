// Package zone discretizes pitch coordinates into zone labels.
//
// A Grid splits the pitch into rows x cols equal cells. Columns run along the
// x axis and rows along the y axis; cells are flattened row-major and looked
// up in the zone map. Several cells may share one label, which allows
// grouped zones such as "wide defensive third".
package zone

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Default grid configuration.
const (
	DefaultRows = 3
	DefaultCols = 3
	DefaultMin  = 0.0
	DefaultMax  = 100.0
)

// DefaultZoneMap groups the 3x3 grid into six zones. Thirds run along x
// (1-2 defensive, 3-4 middle, 5-6 attacking); within each third the central
// channel takes the odd label and both wide channels share the even one.
var DefaultZoneMap = []string{"2", "4", "6", "1", "3", "5", "2", "4", "6"} //nolint:gochecknoglobals // read-only default

// Sentinel errors.
var (
	ErrInvalidGrid       = errors.New("invalid zone grid")
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

// Range is a closed axis interval.
type Range struct {
	Min float64
	Max float64
}

// Grid maps coordinates to zone labels. It is immutable once built and safe
// for concurrent use.
type Grid struct {
	rows    int
	cols    int
	zoneMap []string
	x       Range
	y       Range
	xStep   float64
	yStep   float64
}

// Option configures a Grid under construction.
type Option func(*Grid)

// WithShape sets the number of rows and columns.
func WithShape(rows, cols int) Option {
	return func(g *Grid) {
		g.rows = rows
		g.cols = cols
	}
}

// WithZoneMap sets the zone label of every cell in row-major order.
func WithZoneMap(zoneMap []string) Option {
	return func(g *Grid) {
		g.zoneMap = append([]string(nil), zoneMap...)
	}
}

// WithXRange sets the x axis interval.
func WithXRange(minX, maxX float64) Option {
	return func(g *Grid) {
		g.x = Range{Min: minX, Max: maxX}
	}
}

// WithYRange sets the y axis interval.
func WithYRange(minY, maxY float64) Option {
	return func(g *Grid) {
		g.y = Range{Min: minY, Max: maxY}
	}
}

// NewGrid builds a validated Grid. Without options it returns the default
// 3x3 grid over 0-100 on both axes.
func NewGrid(opts ...Option) (*Grid, error) {
	g := &Grid{
		rows:    DefaultRows,
		cols:    DefaultCols,
		zoneMap: append([]string(nil), DefaultZoneMap...),
		x:       Range{Min: DefaultMin, Max: DefaultMax},
		y:       Range{Min: DefaultMin, Max: DefaultMax},
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.rows <= 0 || g.cols <= 0 {
		return nil, fmt.Errorf("%w: shape %dx%d must be positive", ErrInvalidGrid, g.rows, g.cols)
	}
	if len(g.zoneMap) == 0 {
		return nil, fmt.Errorf("%w: empty zone map", ErrInvalidGrid)
	}
	if len(g.zoneMap) != g.rows*g.cols {
		return nil, fmt.Errorf("%w: zone map has %d entries, %dx%d grid needs %d",
			ErrInvalidGrid, len(g.zoneMap), g.rows, g.cols, g.rows*g.cols)
	}
	if err := checkRange("x", g.x); err != nil {
		return nil, err
	}
	if err := checkRange("y", g.y); err != nil {
		return nil, err
	}

	g.xStep = (g.x.Max - g.x.Min) / float64(g.cols)
	g.yStep = (g.y.Max - g.y.Min) / float64(g.rows)
	return g, nil
}

func checkRange(axis string, r Range) error {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) || math.IsInf(r.Min, 0) || math.IsInf(r.Max, 0) {
		return fmt.Errorf("%w: %s range must be finite", ErrInvalidGrid, axis)
	}
	if r.Max <= r.Min {
		return fmt.Errorf("%w: %s range [%g, %g] is empty", ErrInvalidGrid, axis, r.Min, r.Max)
	}
	return nil
}

// Assign returns the zone label of the cell containing (x, y). Coordinates
// at or beyond an axis bound fall into the outermost cell on that side.
func (g *Grid) Assign(x, y float64) (string, error) {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return "", fmt.Errorf("%w: (%g, %g)", ErrInvalidCoordinate, x, y)
	}
	col := cell((x-g.x.Min)/g.xStep, g.cols)
	row := cell((y-g.y.Min)/g.yStep, g.rows)
	return g.zoneMap[row*g.cols+col], nil
}

// cell clamps in float space; converting an out-of-range float to int is
// implementation-defined.
func cell(pos float64, n int) int {
	f := math.Floor(pos)
	if f < 0 {
		return 0
	}
	if f >= float64(n) {
		return n - 1
	}
	return int(f)
}

// Rows returns the number of grid rows.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the number of grid columns.
func (g *Grid) Cols() int { return g.cols }

// ZoneMap returns a copy of the row-major zone map.
func (g *Grid) ZoneMap() []string { return append([]string(nil), g.zoneMap...) }

// Zones returns the distinct zone labels. Labels that all parse as integers
// are ordered numerically, otherwise lexically.
func (g *Grid) Zones() []string {
	seen := make(map[string]struct{}, len(g.zoneMap))
	out := make([]string, 0, len(g.zoneMap))
	for _, z := range g.zoneMap {
		if _, ok := seen[z]; ok {
			continue
		}
		seen[z] = struct{}{}
		out = append(out, z)
	}
	SortLabels(out)
	return out
}

// SortLabels sorts zone labels in place, numerically when every label is an
// integer and lexically otherwise.
func SortLabels(labels []string) {
	nums := make(map[string]int, len(labels))
	for _, l := range labels {
		n, err := strconv.Atoi(l)
		if err != nil {
			sort.Strings(labels)
			return
		}
		nums[l] = n
	}
	sort.Slice(labels, func(i, j int) bool {
		if nums[labels[i]] != nums[labels[j]] {
			return nums[labels[i]] < nums[labels[j]]
		}
		return labels[i] < labels[j]
	})
}
