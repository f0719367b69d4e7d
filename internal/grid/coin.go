package grid

import "fmt"

// Coin is identified by the cell that minted it and a serial number unique
// within that cell. Neither changes as the coin moves between holders.
type Coin struct {
	Origin Cell `json:"origin"`
	Serial int  `json:"serial"`
}

// String renders the coin as "(row, col)#serial".
func (c Coin) String() string {
	return fmt.Sprintf("(%d, %d)#%d", c.Origin.Row, c.Origin.Col, c.Serial)
}

// CoinStrings renders each coin with Coin.String.
func CoinStrings(coins []Coin) []string {
	out := make([]string, len(coins))
	for i, c := range coins {
		out[i] = c.String()
	}
	return out
}
