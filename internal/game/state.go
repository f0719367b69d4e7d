package game

import (
	"fmt"

	"github.com/MJE43/geocoin/internal/grid"
)

// Status is the status panel line.
func Status(coins int) string {
	return fmt.Sprintf("%d coins accumulated", coins)
}

// State is everything a UI needs to render the session.
type State struct {
	Position    grid.Cell     `json:"position"`
	LatLng      grid.LatLng   `json:"latLng"`
	Coins       []string      `json:"coins"`
	CoinCount   int           `json:"coinCount"`
	Status      string        `json:"status"`
	Geolocation bool          `json:"geolocation"`
	ZoomedOut   bool          `json:"zoomedOut"`
	Caches      []CacheView   `json:"caches"`
	Trail       []grid.LatLng `json:"trail"`
	KnownCaches int           `json:"knownCaches"`
}

// State returns a consistent view of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.player.Position()
	caches := make([]CacheView, 0, len(s.order))
	for _, cell := range s.order {
		caches = append(caches, s.view(s.sites[cell]))
	}
	n := s.player.CoinCount()
	return State{
		Position:    pos,
		LatLng:      s.proj.LatLngOf(pos),
		Coins:       grid.CoinStrings(s.player.Coins()),
		CoinCount:   n,
		Status:      Status(n),
		Geolocation: s.watchCancel != nil,
		ZoomedOut:   s.zoomedOut,
		Caches:      caches,
		Trail:       s.proj.Trail(s.player.History()),
		KnownCaches: s.board.KnownCount(),
	}
}
