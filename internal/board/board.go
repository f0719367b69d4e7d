// Package board keeps the live caches around the player and the snapshot
// store that backs them.
//
// The snapshot store is the durable record of every cache that has been
// visited. The live set holds at most one *Cache per cell and can always be
// folded back into the store with EvictAll.
package board

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/MJE43/geocoin/internal/engine"
	"github.com/MJE43/geocoin/internal/grid"
	"github.com/MJE43/geocoin/internal/snapshot"
)

// Board maps cells to live caches and keeps their snapshots.
type Board struct {
	src       engine.Source
	live      map[grid.Cell]*Cache
	snapshots map[string][]byte
	logger    *log.Logger
}

// New returns an empty board drawing fresh caches from src.
func New(src engine.Source) *Board {
	return &Board{
		src:       src,
		live:      make(map[grid.Cell]*Cache),
		snapshots: make(map[string][]byte),
	}
}

// Restore returns a board whose snapshot store is loaded from data, as
// produced by ExportState.
func Restore(src engine.Source, data []byte) (*Board, error) {
	b := New(src)
	if err := b.ImportState(data); err != nil {
		return nil, err
	}
	return b, nil
}

// SetLogger enables eviction/restore logging. A nil logger disables it.
func (b *Board) SetLogger(l *log.Logger) { b.logger = l }

func (b *Board) logf(format string, args ...any) {
	if b.logger != nil {
		b.logger.Printf(format, args...)
	}
}

// CacheAt returns the live cache for cell. Repeated calls return the same
// *Cache until the next EvictAll. A cell that is not live is restored from
// its snapshot if one exists and seeded fresh otherwise. A malformed
// snapshot is returned as an error; the cell is never silently reseeded.
func (b *Board) CacheAt(cell grid.Cell) (*Cache, error) {
	if c, ok := b.live[cell]; ok {
		return c, nil
	}

	var c *Cache
	if data, ok := b.snapshots[cell.Key()]; ok {
		restored, err := RestoreCache(cell, data)
		if err != nil {
			return nil, err
		}
		c = restored
	} else {
		c = NewCache(b.src, cell)
	}
	b.live[cell] = c
	return c, nil
}

// Live reports whether cell currently has a live cache.
func (b *Board) Live(cell grid.Cell) bool {
	_, ok := b.live[cell]
	return ok
}

// LiveCount returns the size of the live set.
func (b *Board) LiveCount() int { return len(b.live) }

// KnownCount returns the number of snapshots in the store.
func (b *Board) KnownCount() int { return len(b.snapshots) }

// SnapshotAt returns the stored snapshot for cell, if any.
func (b *Board) SnapshotAt(cell grid.Cell) ([]byte, bool) {
	data, ok := b.snapshots[cell.Key()]
	return data, ok
}

// EvictAll writes every live cache's snapshot into the store, overwriting
// older snapshots, and clears the live set. It must run before a new
// neighborhood is scanned.
func (b *Board) EvictAll() error {
	if err := b.Checkpoint(); err != nil {
		return err
	}
	n := len(b.live)
	b.live = make(map[grid.Cell]*Cache)
	if n > 0 {
		b.logf("evicted caches=%d known=%d", n, len(b.snapshots))
	}
	return nil
}

// Checkpoint writes every live cache's snapshot into the store without
// clearing the live set.
func (b *Board) Checkpoint() error {
	for cell, c := range b.live {
		data, err := c.Snapshot()
		if err != nil {
			return fmt.Errorf("snapshot cache %s: %w", cell.Key(), err)
		}
		b.snapshots[cell.Key()] = data
	}
	return nil
}

// ExportState serializes the snapshot store (not the live set) as a JSON
// object keyed by cell key.
func (b *Board) ExportState() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(b.snapshots))
	for key, data := range b.snapshots {
		out[key] = json.RawMessage(data)
	}
	return json.Marshal(out)
}

// ImportState replaces the snapshot store with data. Every key and every
// snapshot is validated up front; on error the board is left unchanged.
func (b *Board) ImportState(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return &snapshot.DeserializationError{Kind: "board", Err: err}
	}
	if raw == nil {
		return &snapshot.DeserializationError{Kind: "board", Err: fmt.Errorf("expected an object")}
	}

	snapshots := make(map[string][]byte, len(raw))
	for key, msg := range raw {
		cell, err := grid.ParseKey(key)
		if err != nil {
			return &snapshot.DeserializationError{Kind: "board", Err: err}
		}
		if _, err := snapshot.DecodeCoins(msg); err != nil {
			return fmt.Errorf("board snapshot %s: %w", cell.Key(), err)
		}
		snapshots[cell.Key()] = []byte(msg)
	}

	b.snapshots = snapshots
	b.live = make(map[grid.Cell]*Cache)
	b.logf("imported snapshots=%d", len(snapshots))
	return nil
}

// Reset drops the live set and the snapshot store unconditionally.
func (b *Board) Reset() {
	b.live = make(map[grid.Cell]*Cache)
	b.snapshots = make(map[string][]byte)
	b.logf("reset")
}
