// Package desktop binds a game session to the Wails webview and runs the
// loopback API next to it.
package desktop

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/multierr"

	"github.com/MJE43/geocoin/internal/api"
	"github.com/MJE43/geocoin/internal/auth"
	"github.com/MJE43/geocoin/internal/config"
	"github.com/MJE43/geocoin/internal/game"
	"github.com/MJE43/geocoin/internal/geo"
	"github.com/MJE43/geocoin/internal/grid"
	"github.com/MJE43/geocoin/internal/store"
)

// GameModule is a Wails-bound service that owns the DB, the session and
// the local HTTP server. The UI calls its methods directly (bindings); the
// session draws through Wails events.
type GameModule struct {
	ctx     context.Context
	cfg     config.Config
	db      *store.SQLiteDB
	feed    *geo.Feed
	tokens  *auth.TokenStore
	session *game.Session
	server  *api.Server

	token   string
	apiAddr string
	emit    emitFunc
	logger  *log.Logger
}

// NewGameModule opens and migrates the database but does not start the
// session. Call Startup(ctx) from the OnStartup hook.
func NewGameModule(cfg config.Config) (*GameModule, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}
	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return &GameModule{
		cfg:    cfg,
		db:     db,
		feed:   geo.NewFeed(),
		tokens: auth.NewTokenStore(cfg.KeyringService, cfg.SecretsPath()),
		emit:   runtime.EventsEmit,
		logger: log.New(os.Stdout, "[DESKTOP] ", log.LstdFlags),
	}, nil
}

// Startup stores the Wails context, restores the game and starts the
// loopback API.
func (m *GameModule) Startup(ctx context.Context) error {
	m.ctx = ctx

	session, err := game.Open(ctx, m.cfg.Game(), game.Deps{
		KV:       m.db,
		Journal:  m.db,
		Renderer: NewEventRenderer(ctx, m.emit),
	})
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	m.session = session

	m.token = m.cfg.Token
	if m.token == "" && m.cfg.RequireToken {
		if m.token, err = m.tokens.EnsureToken(); err != nil {
			return fmt.Errorf("api token: %w", err)
		}
	}

	m.server = api.NewServer(api.Options{
		Session: session,
		Feed:    m.feed,
		Journal: m.db,
		DB:      m.db,
		Token:   m.token,
	})
	addr, err := m.server.Start(m.cfg.Addr)
	if err != nil {
		return fmt.Errorf("start api: %w", err)
	}
	m.apiAddr = addr.String()
	m.logger.Printf("ready api=%s token_enabled=%t db=%s", m.apiAddr, m.token != "", m.cfg.DBPath)
	return nil
}

// Shutdown stops the HTTP server, saves the session and closes the DB.
func (m *GameModule) Shutdown(ctx context.Context) error {
	var err error
	if m.server != nil {
		err = multierr.Append(err, m.server.Shutdown(ctx))
	}
	if m.session != nil {
		err = multierr.Append(err, m.session.Close(ctx))
	}
	return multierr.Append(err, m.db.Close())
}

// ------------- Wails binding methods (UI calls) -------------

func (m *GameModule) publishState() game.State {
	st := m.session.State()
	m.emit(m.ctx, EventState, st)
	return st
}

// State returns the full session state.
func (m *GameModule) State() game.State {
	return m.session.State()
}

// Redraw re-emits every layer. The page calls it once its listeners are up.
func (m *GameModule) Redraw() game.State {
	m.session.Redraw()
	return m.publishState()
}

// Move steps the player one cell in direction ("north", "east", ...).
func (m *GameModule) Move(direction string) (game.State, error) {
	delta, ok := grid.Direction(direction)
	if !ok {
		return game.State{}, fmt.Errorf("unknown direction %q", direction)
	}
	if err := m.session.Move(m.ctx, delta); err != nil {
		return game.State{}, err
	}
	return m.publishState(), nil
}

// Take moves a coin from the cache at (row, col) to the player.
func (m *GameModule) Take(row, col int) (*game.Transfer, error) {
	res, err := m.session.Take(m.ctx, grid.Cell{Row: row, Col: col})
	if err != nil {
		return nil, err
	}
	m.publishState()
	return res, nil
}

// Put moves a coin from the player to the cache at (row, col).
func (m *GameModule) Put(row, col int) (*game.Transfer, error) {
	res, err := m.session.Put(m.ctx, grid.Cell{Row: row, Col: col})
	if err != nil {
		return nil, err
	}
	m.publishState()
	return res, nil
}

// Reset wipes all progress. The UI confirms with the user first.
func (m *GameModule) Reset() (game.State, error) {
	if err := m.session.Reset(m.ctx); err != nil {
		return game.State{}, err
	}
	return m.publishState(), nil
}

// ToggleGeolocation switches following webview position fixes on or off.
func (m *GameModule) ToggleGeolocation() bool {
	on := m.session.ToggleGeolocation(m.feed)
	m.publishState()
	return on
}

// PushFix forwards a navigator.geolocation fix from the webview.
func (m *GameModule) PushFix(lat, lng float64) bool {
	return m.feed.Publish(grid.LatLng{Lat: lat, Lng: lng})
}

// ToggleZoom switches between gameplay zoom and the whole trail.
func (m *GameModule) ToggleZoom() bool {
	return m.session.ToggleZoom()
}

// Transfers returns a page of the coin ledger.
func (m *GameModule) Transfers(page, perPage int) (*store.TransfersPage, error) {
	return m.db.ListTransfers(m.ctx, store.TransfersQuery{Page: page, PerPage: perPage})
}

// APIInfo describes the loopback API for a Settings/About panel.
type APIInfo struct {
	URL          string `json:"url"`
	TokenEnabled bool   `json:"tokenEnabled"`
	TokenHeader  string `json:"tokenHeader"`
}

func (m *GameModule) APIInfo() APIInfo {
	return APIInfo{
		URL:          "http://" + m.apiAddr + "/api/v1",
		TokenEnabled: m.token != "",
		TokenHeader:  api.TokenHeader,
	}
}

// DataDir is where the database and fallback secrets live.
func (m *GameModule) DataDir() string {
	return m.cfg.DataDir
}
