// Package scan finds the caches in the square window around the player.
package scan

import (
	"fmt"

	"github.com/MJE43/geocoin/internal/board"
	"github.com/MJE43/geocoin/internal/engine"
	"github.com/MJE43/geocoin/internal/grid"
)

const (
	DefaultRadius           = 8
	DefaultSpawnProbability = 0.1
)

// SpawnRule decides cache presence from a cell's luck.
type SpawnRule struct {
	Threshold float64
}

// Hosts reports whether luck falls strictly below the threshold.
func (r SpawnRule) Hosts(luck float64) bool {
	return luck < r.Threshold
}

// Board is the part of *board.Board the scanner drives.
type Board interface {
	EvictAll() error
	CacheAt(cell grid.Cell) (*board.Cache, error)
}

// Site is a cell in the window that hosts a cache.
type Site struct {
	Cell  grid.Cell
	Cache *board.Cache
}

// Result is one scan of the window.
type Result struct {
	Center    grid.Cell
	Sites     []Site
	Evaluated int
}

// Scanner walks [-R, R) x [-R, R) around a center cell.
type Scanner struct {
	src    engine.Source
	radius int
	rule   SpawnRule
}

// NewScanner validates the window and threshold.
func NewScanner(src engine.Source, radius int, threshold float64) (*Scanner, error) {
	if radius <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRadius, radius)
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}
	return &Scanner{src: src, radius: radius, rule: SpawnRule{Threshold: threshold}}, nil
}

// Radius returns the window half-width.
func (s *Scanner) Radius() int { return s.radius }

// Hosts reports whether cell hosts a cache. It depends on the cell alone.
func (s *Scanner) Hosts(cell grid.Cell) bool {
	return s.rule.Hosts(s.src.Luck(cell.Key()))
}

// InWindow reports whether cell lies in the window centered on center.
func (s *Scanner) InWindow(center, cell grid.Cell) bool {
	dr, dc := cell.Row-center.Row, cell.Col-center.Col
	return dr >= -s.radius && dr < s.radius && dc >= -s.radius && dc < s.radius
}

// Sites lists the cache-hosting cells around center in row-major order.
func (s *Scanner) Sites(center grid.Cell) []grid.Cell {
	var out []grid.Cell
	for i := -s.radius; i < s.radius; i++ {
		for j := -s.radius; j < s.radius; j++ {
			cell := center.Add(grid.Cell{Row: i, Col: j})
			if s.Hosts(cell) {
				out = append(out, cell)
			}
		}
	}
	return out
}

// Scan evicts every live cache, then materializes the caches around center.
// Eviction always completes before the first CacheAt so that pending coin
// moves in caches leaving the window reach the snapshot store.
func (s *Scanner) Scan(b Board, center grid.Cell) (*Result, error) {
	if err := b.EvictAll(); err != nil {
		return nil, fmt.Errorf("evict before scan: %w", err)
	}

	cells := s.Sites(center)
	res := &Result{
		Center:    center,
		Sites:     make([]Site, 0, len(cells)),
		Evaluated: 4 * s.radius * s.radius,
	}
	for _, cell := range cells {
		c, err := b.CacheAt(cell)
		if err != nil {
			return nil, fmt.Errorf("cache at %s: %w", cell.Key(), err)
		}
		res.Sites = append(res.Sites, Site{Cell: cell, Cache: c})
	}
	return res, nil
}
