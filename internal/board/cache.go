package board

import (
	"fmt"

	"github.com/MJE43/geocoin/internal/engine"
	"github.com/MJE43/geocoin/internal/grid"
	"github.com/MJE43/geocoin/internal/snapshot"
)

const (
	// InitialValueSalt distinguishes the coin-count draw from the spawn draw
	// for the same cell.
	InitialValueSalt = "initialValue"

	// MaxSeedCoins scales the coin-count draw; a fresh cache holds
	// 0..MaxSeedCoins-1 coins.
	MaxSeedCoins = 10
)

// Cache is one cell's coin inventory.
type Cache struct {
	cell  grid.Cell
	coins []grid.Coin
}

// SeedCount returns how many coins a never-visited cell starts with.
func SeedCount(src engine.Source, cell grid.Cell) int {
	luck := src.Luck(engine.Key(cell.Row, cell.Col, InitialValueSalt))
	return int(luck * MaxSeedCoins)
}

// NewCache seeds a cache for a cell with no prior snapshot. Coins are minted
// with origin = cell and serials 0..n-1.
func NewCache(src engine.Source, cell grid.Cell) *Cache {
	n := SeedCount(src, cell)
	c := &Cache{cell: cell, coins: make([]grid.Coin, 0, n)}
	for i := 0; i < n; i++ {
		c.coins = append(c.coins, grid.Coin{Origin: cell, Serial: i})
	}
	return c
}

// RestoreCache rebuilds a cache from a snapshot without seeding.
func RestoreCache(cell grid.Cell, data []byte) (*Cache, error) {
	coins, err := snapshot.DecodeCoins(data)
	if err != nil {
		return nil, fmt.Errorf("restore cache %s: %w", cell.Key(), err)
	}
	return &Cache{cell: cell, coins: coins}, nil
}

// Cell returns the cache's address.
func (c *Cache) Cell() grid.Cell { return c.cell }

// Len returns the number of coins held.
func (c *Cache) Len() int { return len(c.coins) }

// Coins returns a copy of the held coins, oldest first.
func (c *Cache) Coins() []grid.Coin {
	out := make([]grid.Coin, len(c.coins))
	copy(out, c.coins)
	return out
}

// CoinStrings renders the held coins for a popup.
func (c *Cache) CoinStrings() []string { return grid.CoinStrings(c.coins) }

// TakeCoin removes the most recently added coin. ok is false when the cache
// is empty.
func (c *Cache) TakeCoin() (coin grid.Coin, ok bool) {
	if len(c.coins) == 0 {
		return grid.Coin{}, false
	}
	coin = c.coins[len(c.coins)-1]
	c.coins = c.coins[:len(c.coins)-1]
	return coin, true
}

// PutCoin appends coin. Any coin may be deposited in any cache.
func (c *Cache) PutCoin(coin grid.Coin) {
	c.coins = append(c.coins, coin)
}

// Snapshot serializes the coin collection in the format RestoreCache reads.
func (c *Cache) Snapshot() ([]byte, error) {
	return snapshot.EncodeCoins(c.coins)
}
