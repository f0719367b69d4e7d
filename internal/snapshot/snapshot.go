// Package snapshot defines the wire format used to evict and persist caches
// and the player.
//
// Coins serialize as an ordered list of {originRow, originCol, sequenceNumber}
// records. Unknown fields are ignored on read; missing required fields are a
// DeserializationError.
package snapshot

import (
	"encoding/json"

	"github.com/MJE43/geocoin/internal/grid"
)

// CoinRecord is the wire form of a grid.Coin.
type CoinRecord struct {
	OriginRow      *int `json:"originRow"`
	OriginCol      *int `json:"originCol"`
	SequenceNumber *int `json:"sequenceNumber"`
}

// CellRecord is the wire form of a grid.Cell.
type CellRecord struct {
	Row *int `json:"row"`
	Col *int `json:"col"`
}

func coinRecord(c grid.Coin) CoinRecord {
	row, col, seq := c.Origin.Row, c.Origin.Col, c.Serial
	return CoinRecord{OriginRow: &row, OriginCol: &col, SequenceNumber: &seq}
}

func (r CoinRecord) coin(kind string, i int) (grid.Coin, error) {
	switch {
	case r.OriginRow == nil:
		return grid.Coin{}, malformedf(kind, "coin %d: missing originRow", i)
	case r.OriginCol == nil:
		return grid.Coin{}, malformedf(kind, "coin %d: missing originCol", i)
	case r.SequenceNumber == nil:
		return grid.Coin{}, malformedf(kind, "coin %d: missing sequenceNumber", i)
	}
	return grid.Coin{
		Origin: grid.Cell{Row: *r.OriginRow, Col: *r.OriginCol},
		Serial: *r.SequenceNumber,
	}, nil
}

// CellToRecord converts c to its wire form.
func CellToRecord(c grid.Cell) CellRecord {
	row, col := c.Row, c.Col
	return CellRecord{Row: &row, Col: &col}
}

// Cell validates r and converts it back.
func (r CellRecord) Cell(kind, field string) (grid.Cell, error) {
	if r.Row == nil || r.Col == nil {
		return grid.Cell{}, malformedf(kind, "%s: missing row or col", field)
	}
	return grid.Cell{Row: *r.Row, Col: *r.Col}, nil
}

// CoinsToRecords converts coins to wire records, preserving order.
func CoinsToRecords(coins []grid.Coin) []CoinRecord {
	out := make([]CoinRecord, len(coins))
	for i, c := range coins {
		out[i] = coinRecord(c)
	}
	return out
}

// RecordsToCoins validates and converts records, preserving order.
func RecordsToCoins(kind string, records []CoinRecord) ([]grid.Coin, error) {
	out := make([]grid.Coin, 0, len(records))
	for i, r := range records {
		c, err := r.coin(kind, i)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// EncodeCoins serializes a coin collection.
func EncodeCoins(coins []grid.Coin) ([]byte, error) {
	return json.Marshal(CoinsToRecords(coins))
}

// DecodeCoins is the inverse of EncodeCoins.
func DecodeCoins(data []byte) ([]grid.Coin, error) {
	var records []CoinRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, malformed("coins", err)
	}
	if records == nil {
		return nil, malformedf("coins", "expected a list, got %q", truncate(data))
	}
	return RecordsToCoins("coins", records)
}

func truncate(data []byte) string {
	const max = 32
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
