// Package grid addresses the tile grid laid over the map: cells, the coins
// minted in them, and the projection between lat/lng and cells.
package grid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidKey is returned when a string is not a canonical cell key.
var ErrInvalidKey = errors.New("invalid cell key")

// Cell is a grid cell address. It is a comparable value type and can be used
// directly as a map key.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Key returns the canonical "row,col" encoding. The same string feeds the
// randomness source and names the cell in the snapshot store.
func (c Cell) Key() string {
	return strconv.Itoa(c.Row) + "," + strconv.Itoa(c.Col)
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d, %d)", c.Row, c.Col)
}

// Add offsets c by d.
func (c Cell) Add(d Cell) Cell {
	return Cell{Row: c.Row + d.Row, Col: c.Col + d.Col}
}

// ParseKey is the inverse of Cell.Key. Only the exact form Key produces
// is accepted, so every cell has one key.
func ParseKey(key string) (Cell, error) {
	rowStr, colStr, ok := strings.Cut(key, ",")
	if !ok {
		return Cell{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	row, err := strconv.Atoi(rowStr)
	if err != nil {
		return Cell{}, fmt.Errorf("%w: %q: %v", ErrInvalidKey, key, err)
	}
	col, err := strconv.Atoi(colStr)
	if err != nil {
		return Cell{}, fmt.Errorf("%w: %q: %v", ErrInvalidKey, key, err)
	}
	c := Cell{Row: row, Col: col}
	if c.Key() != key {
		return Cell{}, fmt.Errorf("%w: %q is not canonical, want %q", ErrInvalidKey, key, c.Key())
	}
	return c, nil
}

// Compass steps used by manual movement.
var (
	North = Cell{Row: 1, Col: 0}
	South = Cell{Row: -1, Col: 0}
	East  = Cell{Row: 0, Col: 1}
	West  = Cell{Row: 0, Col: -1}
)

// Direction resolves a compass name ("north", "e", ...) to a unit step.
func Direction(name string) (Cell, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "north", "n":
		return North, true
	case "south", "s":
		return South, true
	case "east", "e":
		return East, true
	case "west", "w":
		return West, true
	default:
		return Cell{}, false
	}
}
