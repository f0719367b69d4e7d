package store

import (
	"context"
	"time"

	"github.com/MJE43/geocoin/internal/grid"
)

// Keys under which a session persists its state.
const (
	PlayerDataKey = "player_data"
	BoardDataKey  = "board_data"
)

// KV is the persistence medium the game saves into. SetAll writes every
// entry or none of them.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	SetAll(ctx context.Context, entries map[string][]byte) error
}

// Journal records coin transfers between caches and the player.
type Journal interface {
	AppendTransfer(ctx context.Context, t *Transfer) error
	ListTransfers(ctx context.Context, query TransfersQuery) (*TransfersPage, error)
}

// DB represents the database interface
type DB interface {
	KV
	Journal
	Delete(ctx context.Context, key string) error
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Direction is the way a coin moved relative to the player.
type Direction string

const (
	DirectionTake Direction = "take" // cache -> player
	DirectionPut  Direction = "put"  // player -> cache
)

// Transfer is one journaled coin move.
type Transfer struct {
	ID        string    `json:"id"`
	Direction Direction `json:"direction"`
	Cell      grid.Cell `json:"cell"`
	Coin      grid.Coin `json:"coin"`
	CreatedAt time.Time `json:"created_at"`
}

// TransfersQuery represents query parameters for listing transfers
type TransfersQuery struct {
	Cell    *grid.Cell `json:"cell,omitempty"`
	Page    int        `json:"page"`
	PerPage int        `json:"perPage"`
}

// TransfersPage represents a paginated transfers response
type TransfersPage struct {
	Transfers  []Transfer `json:"transfers"`
	TotalCount int        `json:"totalCount"`
	Page       int        `json:"page"`
	PerPage    int        `json:"perPage"`
	TotalPages int        `json:"totalPages"`
}
