package store

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/MJE43/geocoin/internal/grid"
)

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "geocoin.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := newTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestMemoryDatabase(t *testing.T) {
	db, err := NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	if err := db.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := db.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("Get = %q, %v, %v", got, ok, err)
	}
}

func TestKV(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, ok, err := db.Get(ctx, PlayerDataKey); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}

	if err := db.Set(ctx, PlayerDataKey, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := db.Set(ctx, PlayerDataKey, []byte(`{"a":2}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, ok, err := db.Get(ctx, PlayerDataKey)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, []byte(`{"a":2}`)) {
		t.Errorf("Get = %s, want overwritten value", got)
	}

	if err := db.Delete(ctx, PlayerDataKey); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := db.Delete(ctx, PlayerDataKey); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
	if _, ok, _ := db.Get(ctx, PlayerDataKey); ok {
		t.Error("key still present after Delete")
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	db, err := NewSQLiteDB(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := db.Set(ctx, BoardDataKey, []byte("{}")); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = NewSQLiteDB(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	got, ok, err := db.Get(ctx, BoardDataKey)
	if err != nil || !ok || string(got) != "{}" {
		t.Fatalf("after reopen Get = %q, %v, %v", got, ok, err)
	}
}

func TestTransfers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := grid.Cell{Row: 1, Col: 2}
	b := grid.Cell{Row: -3, Col: 4}
	for i := 0; i < 5; i++ {
		tr := &Transfer{
			Direction: DirectionTake,
			Cell:      a,
			Coin:      grid.Coin{Origin: a, Serial: i},
		}
		if err := db.AppendTransfer(ctx, tr); err != nil {
			t.Fatalf("AppendTransfer: %v", err)
		}
		if tr.ID == "" || tr.CreatedAt.IsZero() {
			t.Fatalf("AppendTransfer did not fill ID/CreatedAt: %+v", tr)
		}
	}
	if err := db.AppendTransfer(ctx, &Transfer{
		Direction: DirectionPut,
		Cell:      b,
		Coin:      grid.Coin{Origin: a, Serial: 4},
	}); err != nil {
		t.Fatalf("AppendTransfer: %v", err)
	}

	page, err := db.ListTransfers(ctx, TransfersQuery{})
	if err != nil {
		t.Fatalf("ListTransfers: %v", err)
	}
	if page.TotalCount != 6 || page.Page != 1 || page.PerPage != 50 || page.TotalPages != 1 {
		t.Errorf("unexpected page meta: %+v", page)
	}
	if len(page.Transfers) != 6 {
		t.Fatalf("expected 6 transfers, got %d", len(page.Transfers))
	}
	first := page.Transfers[0]
	if first.Direction != DirectionPut || first.Cell != b || first.Coin.String() != "(1, 2)#4" {
		t.Errorf("newest transfer = %+v", first)
	}

	page, err = db.ListTransfers(ctx, TransfersQuery{Cell: &a, Page: 2, PerPage: 2})
	if err != nil {
		t.Fatalf("ListTransfers: %v", err)
	}
	if page.TotalCount != 5 || page.TotalPages != 3 {
		t.Errorf("filtered meta = %+v", page)
	}
	if len(page.Transfers) != 2 {
		t.Fatalf("expected 2 transfers on page 2, got %d", len(page.Transfers))
	}
	// newest first: serials 4,3 | 2,1 | 0
	if page.Transfers[0].Coin.Serial != 2 || page.Transfers[1].Coin.Serial != 1 {
		t.Errorf("page 2 serials = %d,%d", page.Transfers[0].Coin.Serial, page.Transfers[1].Coin.Serial)
	}
}

func TestSetAll(t *testing.T) {
	ctx := context.Background()
	stores := map[string]KV{
		"sqlite": newTestDB(t),
		"memory": NewMemoryKV(),
	}
	for name, kv := range stores {
		t.Run(name, func(t *testing.T) {
			first := map[string][]byte{PlayerDataKey: []byte(`{"p":1}`), BoardDataKey: []byte(`{"b":1}`)}
			if err := kv.SetAll(ctx, first); err != nil {
				t.Fatalf("SetAll: %v", err)
			}
			for k, want := range first {
				got, ok, err := kv.Get(ctx, k)
				if err != nil || !ok || !bytes.Equal(got, want) {
					t.Errorf("Get(%s) = %s, %v, %v; want %s", k, got, ok, err, want)
				}
			}
		})
	}
}

func TestSetAllFailureWritesNothing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := db.SetAll(ctx, map[string][]byte{PlayerDataKey: []byte("p1"), BoardDataKey: []byte("b1")}); err != nil {
		t.Fatalf("SetAll: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err := db.SetAll(cancelled, map[string][]byte{PlayerDataKey: []byte("p2"), BoardDataKey: []byte("b2")})
	if err == nil {
		t.Fatal("SetAll with cancelled context succeeded")
	}
	for k, want := range map[string]string{PlayerDataKey: "p1", BoardDataKey: "b1"} {
		got, _, _ := db.Get(ctx, k)
		if string(got) != want {
			t.Errorf("Get(%s) = %q after failed SetAll, want %q", k, got, want)
		}
	}
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	if _, ok, _ := kv.Get(ctx, "x"); ok {
		t.Fatal("empty store reported a value")
	}
	in := []byte("abc")
	if err := kv.Set(ctx, "x", in); err != nil {
		t.Fatal(err)
	}
	in[0] = 'z'
	got, ok, _ := kv.Get(ctx, "x")
	if !ok || string(got) != "abc" {
		t.Fatalf("Get = %q, %v; stored value must not alias caller's slice", got, ok)
	}
	got[1] = 'z'
	again, _, _ := kv.Get(ctx, "x")
	if string(again) != "abc" {
		t.Errorf("returned slice aliases stored value: %q", again)
	}
}
