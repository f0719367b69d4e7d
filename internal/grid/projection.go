package grid

import (
	"github.com/shopspring/decimal"
)

// DefaultTileDegrees is the width of one cell in degrees of latitude/longitude.
const DefaultTileDegrees = 1e-4

var half = decimal.NewFromFloat(0.5)

// LatLng is a geographic position in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Projection converts between LatLng and Cell with a fixed linear scale.
// Arithmetic runs in decimal so that e.g. 36.9995/0.0001 is exactly 369995.
type Projection struct {
	tile decimal.Decimal
}

// NewProjection returns a projection with the given cell size. Non-positive
// sizes fall back to DefaultTileDegrees.
func NewProjection(tileDegrees float64) Projection {
	if tileDegrees <= 0 {
		tileDegrees = DefaultTileDegrees
	}
	return Projection{tile: decimal.NewFromFloat(tileDegrees)}
}

// TileDegrees reports the configured cell size.
func (p Projection) TileDegrees() float64 {
	f, _ := p.tile.Float64()
	return f
}

// CellAt returns the cell containing ll. Halves round toward +inf.
func (p Projection) CellAt(ll LatLng) Cell {
	return Cell{Row: p.toIndex(ll.Lat), Col: p.toIndex(ll.Lng)}
}

// LatLngOf returns the south-west corner of c.
func (p Projection) LatLngOf(c Cell) LatLng {
	return LatLng{Lat: p.toDegrees(c.Row), Lng: p.toDegrees(c.Col)}
}

// Bounds returns the south-west and north-east corners of c.
func (p Projection) Bounds(c Cell) (sw, ne LatLng) {
	return p.LatLngOf(c), p.LatLngOf(c.Add(Cell{Row: 1, Col: 1}))
}

// Trail projects a cell history to the polyline the map draws.
func (p Projection) Trail(cells []Cell) []LatLng {
	out := make([]LatLng, len(cells))
	for i, c := range cells {
		out[i] = p.LatLngOf(c)
	}
	return out
}

func (p Projection) toIndex(deg float64) int {
	q := decimal.NewFromFloat(deg).Div(p.tile)
	return int(q.Add(half).Floor().IntPart())
}

func (p Projection) toDegrees(i int) float64 {
	f, _ := decimal.NewFromInt(int64(i)).Mul(p.tile).Float64()
	return f
}
