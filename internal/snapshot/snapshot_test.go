package snapshot

import (
	"errors"
	"testing"

	"github.com/MJE43/geocoin/internal/grid"
)

func TestCoinsRoundTrip(t *testing.T) {
	coins := []grid.Coin{
		{Origin: grid.Cell{Row: 0, Col: 0}, Serial: 0},
		{Origin: grid.Cell{Row: -3, Col: 8}, Serial: 4},
		{Origin: grid.Cell{Row: 0, Col: 0}, Serial: 1},
	}

	data, err := EncodeCoins(coins)
	if err != nil {
		t.Fatalf("EncodeCoins: %v", err)
	}
	got, err := DecodeCoins(data)
	if err != nil {
		t.Fatalf("DecodeCoins: %v", err)
	}
	if len(got) != len(coins) {
		t.Fatalf("got %d coins, want %d", len(got), len(coins))
	}
	for i := range coins {
		if got[i] != coins[i] {
			t.Errorf("coin %d = %v, want %v", i, got[i], coins[i])
		}
	}
}

func TestEncodeCoinsWireFormat(t *testing.T) {
	data, err := EncodeCoins([]grid.Coin{{Origin: grid.Cell{Row: 1, Col: 2}, Serial: 3}})
	if err != nil {
		t.Fatalf("EncodeCoins: %v", err)
	}
	want := `[{"originRow":1,"originCol":2,"sequenceNumber":3}]`
	if string(data) != want {
		t.Errorf("EncodeCoins = %s, want %s", data, want)
	}

	empty, err := EncodeCoins(nil)
	if err != nil {
		t.Fatalf("EncodeCoins(nil): %v", err)
	}
	if string(empty) != "[]" {
		t.Errorf("EncodeCoins(nil) = %s, want []", empty)
	}
}

func TestDecodeCoinsIgnoresUnknownFields(t *testing.T) {
	got, err := DecodeCoins([]byte(`[{"originRow":1,"originCol":2,"sequenceNumber":3,"minted":"yesterday"}]`))
	if err != nil {
		t.Fatalf("DecodeCoins: %v", err)
	}
	if len(got) != 1 || got[0] != (grid.Coin{Origin: grid.Cell{Row: 1, Col: 2}, Serial: 3}) {
		t.Errorf("DecodeCoins = %v", got)
	}
}

func TestDecodeCoinsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: `not json`},
		{name: "object instead of list", data: `{"originRow":1}`},
		{name: "null", data: `null`},
		{name: "missing originRow", data: `[{"originCol":2,"sequenceNumber":3}]`},
		{name: "missing originCol", data: `[{"originRow":1,"sequenceNumber":3}]`},
		{name: "missing sequenceNumber", data: `[{"originRow":1,"originCol":2}]`},
		{name: "wrong type", data: `[{"originRow":"1","originCol":2,"sequenceNumber":3}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCoins([]byte(tt.data))
			if !errors.Is(err, ErrDeserialization) {
				t.Fatalf("DecodeCoins(%s) error = %v, want ErrDeserialization", tt.data, err)
			}
			var de *DeserializationError
			if !errors.As(err, &de) || de.Kind != "coins" {
				t.Errorf("expected DeserializationError of kind coins, got %#v", err)
			}
		})
	}
}

func TestCellRecord(t *testing.T) {
	c := grid.Cell{Row: 5, Col: -6}
	got, err := CellToRecord(c).Cell("player", "position")
	if err != nil || got != c {
		t.Fatalf("CellRecord round trip = %v, %v", got, err)
	}
	if _, err := (CellRecord{}).Cell("player", "position"); !errors.Is(err, ErrDeserialization) {
		t.Errorf("empty CellRecord error = %v", err)
	}
}
