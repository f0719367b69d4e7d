// Package player holds the single player's position, coin purse and trail.
package player

import (
	"encoding/json"
	"fmt"

	"github.com/MJE43/geocoin/internal/grid"
	"github.com/MJE43/geocoin/internal/snapshot"
)

// Player is the session's only player.
type Player struct {
	position grid.Cell
	coins    []grid.Coin
	history  []grid.Cell
}

// New places a fresh player at start with an empty purse. The trail starts
// with start.
func New(start grid.Cell) *Player {
	return &Player{
		position: start,
		history:  []grid.Cell{start},
	}
}

// wire is the snapshot layout: {position, locationHistory, coins}.
type wire struct {
	Position        *snapshot.CellRecord   `json:"position"`
	LocationHistory *[]snapshot.CellRecord `json:"locationHistory"`
	Coins           *[]snapshot.CoinRecord `json:"coins"`
}

// Restore rebuilds a player from a Snapshot. All three fields are required.
func Restore(data []byte) (*Player, error) {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &snapshot.DeserializationError{Kind: "player", Err: err}
	}
	switch {
	case w.Position == nil:
		return nil, &snapshot.DeserializationError{Kind: "player", Err: fmt.Errorf("missing position")}
	case w.LocationHistory == nil:
		return nil, &snapshot.DeserializationError{Kind: "player", Err: fmt.Errorf("missing locationHistory")}
	case w.Coins == nil:
		return nil, &snapshot.DeserializationError{Kind: "player", Err: fmt.Errorf("missing coins")}
	}

	pos, err := w.Position.Cell("player", "position")
	if err != nil {
		return nil, err
	}
	history := make([]grid.Cell, 0, len(*w.LocationHistory))
	for i, rec := range *w.LocationHistory {
		c, err := rec.Cell("player", fmt.Sprintf("locationHistory[%d]", i))
		if err != nil {
			return nil, err
		}
		history = append(history, c)
	}
	coins, err := snapshot.RecordsToCoins("player", *w.Coins)
	if err != nil {
		return nil, err
	}

	return &Player{position: pos, coins: coins, history: history}, nil
}

// Snapshot serializes position, trail and purse in the format Restore reads.
func (p *Player) Snapshot() ([]byte, error) {
	pos := snapshot.CellToRecord(p.position)
	history := make([]snapshot.CellRecord, len(p.history))
	for i, c := range p.history {
		history[i] = snapshot.CellToRecord(c)
	}
	coins := snapshot.CoinsToRecords(p.coins)
	return json.Marshal(wire{Position: &pos, LocationHistory: &history, Coins: &coins})
}

// Position returns the current cell.
func (p *Player) Position() grid.Cell { return p.position }

// SetPosition moves the player and appends cell to the trail.
func (p *Player) SetPosition(cell grid.Cell) {
	p.position = cell
	p.history = append(p.history, cell)
}

// History returns a copy of the visited cells, oldest first.
func (p *Player) History() []grid.Cell {
	out := make([]grid.Cell, len(p.history))
	copy(out, p.history)
	return out
}

// ClearHistory empties the trail. The position is kept.
func (p *Player) ClearHistory() { p.history = nil }

// CoinCount returns the number of coins carried.
func (p *Player) CoinCount() int { return len(p.coins) }

// Coins returns a copy of the purse, oldest first.
func (p *Player) Coins() []grid.Coin {
	out := make([]grid.Coin, len(p.coins))
	copy(out, p.coins)
	return out
}

// AddCoin puts coin on top of the purse.
func (p *Player) AddCoin(coin grid.Coin) { p.coins = append(p.coins, coin) }

// RemoveCoin pops the most recently added coin; ok is false when the purse
// is empty.
func (p *Player) RemoveCoin() (coin grid.Coin, ok bool) {
	if len(p.coins) == 0 {
		return grid.Coin{}, false
	}
	coin = p.coins[len(p.coins)-1]
	p.coins = p.coins[:len(p.coins)-1]
	return coin, true
}

// ClearCoins empties the purse.
func (p *Player) ClearCoins() { p.coins = nil }
