package board

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/MJE43/geocoin/internal/engine"
	"github.com/MJE43/geocoin/internal/grid"
	"github.com/MJE43/geocoin/internal/snapshot"
)

// fixedSource returns the same value for every key.
func fixedSource(v float64) engine.Source {
	return engine.SourceFunc(func(string) float64 { return v })
}

func TestNewCacheSeeding(t *testing.T) {
	origin := grid.Cell{Row: 0, Col: 0}
	var seen []string
	src := engine.SourceFunc(func(key string) float64 {
		seen = append(seen, key)
		return 0.35
	})

	c := NewCache(src, origin)

	if len(seen) != 1 || seen[0] != "0,0,initialValue" {
		t.Fatalf("luck keys = %v, want [0,0,initialValue]", seen)
	}
	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	for i, coin := range c.Coins() {
		want := grid.Coin{Origin: origin, Serial: i}
		if coin != want {
			t.Errorf("coin %d = %v, want %v", i, coin, want)
		}
	}
}

func TestSeedCountMatchesFloor(t *testing.T) {
	src := engine.NewSource(engine.DefaultWorldSeed)
	for row := -5; row < 5; row++ {
		for col := -5; col < 5; col++ {
			cell := grid.Cell{Row: row, Col: col}
			luck := engine.Luck(engine.DefaultWorldSeed, engine.Key(row, col, "initialValue"))
			want := int(luck * 10)
			if got := NewCache(src, cell).Len(); got != want {
				t.Errorf("cell %v: %d coins, want %d", cell, got, want)
			}
			if want < 0 || want > 9 {
				t.Errorf("cell %v: seed count %d out of 0..9", cell, want)
			}
		}
	}
}

func TestTakeCoinUntilEmpty(t *testing.T) {
	c := NewCache(fixedSource(0.25), grid.Cell{Row: 4, Col: 4})
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}

	first, ok := c.TakeCoin()
	if !ok || first.Serial != 1 {
		t.Fatalf("first TakeCoin = %v, %v; want serial 1", first, ok)
	}
	second, ok := c.TakeCoin()
	if !ok || second.Serial != 0 {
		t.Fatalf("second TakeCoin = %v, %v; want serial 0", second, ok)
	}
	if _, ok := c.TakeCoin(); ok {
		t.Fatal("third TakeCoin should report nothing available")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestPutCoinAcceptsForeignCoins(t *testing.T) {
	c := NewCache(fixedSource(0), grid.Cell{Row: 1, Col: 1})
	foreign := grid.Coin{Origin: grid.Cell{Row: 99, Col: -99}, Serial: 7}
	c.PutCoin(foreign)

	got, ok := c.TakeCoin()
	if !ok || got != foreign {
		t.Errorf("TakeCoin = %v, %v; want %v", got, ok, foreign)
	}
}

func TestCacheSnapshotRoundTrip(t *testing.T) {
	cell := grid.Cell{Row: -2, Col: 3}
	c := NewCache(fixedSource(0.51), cell)
	c.PutCoin(grid.Coin{Origin: grid.Cell{Row: 8, Col: 8}, Serial: 2})
	c.TakeCoin()
	c.PutCoin(grid.Coin{Origin: grid.Cell{Row: 0, Col: 1}, Serial: 0})

	data, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	restored, err := RestoreCache(cell, data)
	if err != nil {
		t.Fatalf("RestoreCache: %v", err)
	}

	want, got := c.Coins(), restored.Coins()
	if len(got) != len(want) {
		t.Fatalf("restored %d coins, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("coin %d = %v, want %v", i, got[i], want[i])
		}
	}
	if restored.Cell() != cell {
		t.Errorf("Cell() = %v, want %v", restored.Cell(), cell)
	}
}

func TestRestoreCacheMalformed(t *testing.T) {
	_, err := RestoreCache(grid.Cell{}, []byte(`[{"originRow":1}]`))
	if !errors.Is(err, snapshot.ErrDeserialization) {
		t.Fatalf("RestoreCache error = %v, want ErrDeserialization", err)
	}
}

func TestCacheAtIdentityStable(t *testing.T) {
	b := New(fixedSource(0.5))
	cell := grid.Cell{Row: 2, Col: 2}

	first, err := b.CacheAt(cell)
	if err != nil {
		t.Fatalf("CacheAt: %v", err)
	}
	second, err := b.CacheAt(cell)
	if err != nil {
		t.Fatalf("CacheAt: %v", err)
	}
	if first != second {
		t.Error("consecutive CacheAt calls returned different caches")
	}
	if b.LiveCount() != 1 || !b.Live(cell) {
		t.Errorf("LiveCount() = %d, Live = %v", b.LiveCount(), b.Live(cell))
	}
}

func TestEvictRestoreCycle(t *testing.T) {
	b := New(fixedSource(0.5))
	cell := grid.Cell{Row: 0, Col: 0}

	c, _ := b.CacheAt(cell)
	taken, _ := c.TakeCoin()
	c.TakeCoin()
	c.PutCoin(taken)
	before := c.Coins()

	if err := b.EvictAll(); err != nil {
		t.Fatalf("EvictAll: %v", err)
	}
	if b.LiveCount() != 0 {
		t.Fatalf("LiveCount() after EvictAll = %d", b.LiveCount())
	}
	if b.KnownCount() != 1 {
		t.Fatalf("KnownCount() after EvictAll = %d", b.KnownCount())
	}

	restored, err := b.CacheAt(cell)
	if err != nil {
		t.Fatalf("CacheAt after evict: %v", err)
	}
	if restored == c {
		t.Error("expected a new live cache after eviction")
	}
	after := restored.Coins()
	if len(after) != len(before) {
		t.Fatalf("restored %d coins, want %d", len(after), len(before))
	}
	for i := range before {
		if after[i] != before[i] {
			t.Errorf("coin %d = %v, want %v", i, after[i], before[i])
		}
	}
}

func TestEvictOverwritesSnapshot(t *testing.T) {
	b := New(fixedSource(0.35))
	cell := grid.Cell{Row: 1, Col: 0}

	c, _ := b.CacheAt(cell)
	b.EvictAll()
	c, _ = b.CacheAt(cell)
	c.TakeCoin()
	b.EvictAll()

	c, _ = b.CacheAt(cell)
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2 after taking one of three", c.Len())
	}
}

func TestCheckpointKeepsLiveSet(t *testing.T) {
	b := New(fixedSource(0.95))
	cell := grid.Cell{Row: 5, Col: 5}
	c, _ := b.CacheAt(cell)
	c.TakeCoin()

	if err := b.Checkpoint(); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if again, _ := b.CacheAt(cell); again != c {
		t.Error("Checkpoint must not replace the live cache")
	}
	data, ok := b.SnapshotAt(cell)
	if !ok {
		t.Fatal("Checkpoint did not write a snapshot")
	}
	coins, err := snapshot.DecodeCoins(data)
	if err != nil || len(coins) != 8 {
		t.Errorf("checkpointed coins = %d, %v; want 8", len(coins), err)
	}
}

func TestExportImportState(t *testing.T) {
	src := engine.NewSource("export-test")
	b := New(src)
	cells := []grid.Cell{{Row: 0, Col: 0}, {Row: 3, Col: -7}, {Row: -1, Col: 2}}
	for _, cell := range cells {
		c, _ := b.CacheAt(cell)
		c.PutCoin(grid.Coin{Origin: grid.Cell{Row: 42, Col: 42}, Serial: cell.Row})
	}
	// Live caches are not part of the export until evicted.
	data, err := b.ExportState()
	if err != nil {
		t.Fatalf("ExportState: %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("ExportState before eviction = %s, want {}", data)
	}

	b.EvictAll()
	data, err = b.ExportState()
	if err != nil {
		t.Fatalf("ExportState: %v", err)
	}

	restored, err := Restore(src, data)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.KnownCount() != len(cells) {
		t.Fatalf("KnownCount() = %d, want %d", restored.KnownCount(), len(cells))
	}
	for _, cell := range cells {
		orig, _ := b.CacheAt(cell)
		got, err := restored.CacheAt(cell)
		if err != nil {
			t.Fatalf("CacheAt(%v): %v", cell, err)
		}
		if strings.Join(got.CoinStrings(), ";") != strings.Join(orig.CoinStrings(), ";") {
			t.Errorf("cell %v: %v, want %v", cell, got.CoinStrings(), orig.CoinStrings())
		}
	}
}

func TestImportStateMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: `{`},
		{name: "null", data: `null`},
		{name: "bad key", data: `{"north":[]}`},
		{name: "non-canonical key", data: `{"01,2":[]}`},
		{name: "aliased keys", data: `{"1,2":[],"+1,2":[]}`},
		{name: "bad snapshot", data: `{"0,0":[{"originRow":0}]}`},
		{name: "snapshot not a list", data: `{"0,0":7}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(fixedSource(0.5))
			b.CacheAt(grid.Cell{})
			b.EvictAll()

			err := b.ImportState([]byte(tt.data))
			if !errors.Is(err, snapshot.ErrDeserialization) {
				t.Fatalf("ImportState(%s) = %v, want ErrDeserialization", tt.data, err)
			}
			if b.KnownCount() != 1 {
				t.Error("failed import must leave the store unchanged")
			}
		})
	}
}

func TestCacheAtFailsLoudlyOnCorruptSnapshot(t *testing.T) {
	b := New(fixedSource(0.5))
	b.snapshots["0,0"] = []byte("garbage")

	if _, err := b.CacheAt(grid.Cell{}); !errors.Is(err, snapshot.ErrDeserialization) {
		t.Fatalf("CacheAt error = %v, want ErrDeserialization", err)
	}
	if b.Live(grid.Cell{}) {
		t.Error("a failed restore must not leave a live cache behind")
	}
}

func TestReset(t *testing.T) {
	b := New(fixedSource(0.5))
	c, _ := b.CacheAt(grid.Cell{})
	c.TakeCoin()
	b.EvictAll()
	b.CacheAt(grid.Cell{Row: 1})

	b.Reset()

	if b.LiveCount() != 0 || b.KnownCount() != 0 {
		t.Fatalf("after Reset live=%d known=%d", b.LiveCount(), b.KnownCount())
	}
	fresh, _ := b.CacheAt(grid.Cell{})
	if fresh.Len() != 5 {
		t.Errorf("cache after reset has %d coins, want a fresh 5", fresh.Len())
	}
}

func TestBoardLogging(t *testing.T) {
	var buf bytes.Buffer
	b := New(fixedSource(0.5))
	b.SetLogger(log.New(&buf, "", 0))
	b.CacheAt(grid.Cell{})
	b.EvictAll()

	if !strings.Contains(buf.String(), "evicted caches=1") {
		t.Errorf("log output = %q", buf.String())
	}
}
