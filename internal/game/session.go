// Package game runs one player's session: moving, scanning the
// neighborhood, trading coins with caches, and saving after every change.
//
// A Session processes one event at a time. Every exported method takes the
// session lock, so HTTP handlers, desktop bindings and the geolocation
// follower can call it concurrently.
package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/MJE43/geocoin/internal/board"
	"github.com/MJE43/geocoin/internal/engine"
	"github.com/MJE43/geocoin/internal/geo"
	"github.com/MJE43/geocoin/internal/grid"
	"github.com/MJE43/geocoin/internal/player"
	"github.com/MJE43/geocoin/internal/scan"
	"github.com/MJE43/geocoin/internal/snapshot"
	"github.com/MJE43/geocoin/internal/store"
)

var (
	ErrOutOfRange = errors.New("cell is outside the neighborhood")
	ErrNoCache    = errors.New("no cache at cell")
	ErrClosed     = errors.New("session closed")
	ErrNoKV       = errors.New("session needs a KV store")
)

// DefaultStart is the Oakes College classroom where new players spawn.
var DefaultStart = grid.LatLng{Lat: 36.9995, Lng: -122.0533}

// Config tunes a session. Zero values take the defaults.
type Config struct {
	WorldSeed        string
	Radius           int
	SpawnProbability float64
	TileDegrees      float64
	Start            grid.LatLng
}

// DefaultConfig returns the stock game settings.
func DefaultConfig() Config {
	return Config{
		WorldSeed:        engine.DefaultWorldSeed,
		Radius:           scan.DefaultRadius,
		SpawnProbability: scan.DefaultSpawnProbability,
		TileDegrees:      grid.DefaultTileDegrees,
		Start:            DefaultStart,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WorldSeed == "" {
		c.WorldSeed = d.WorldSeed
	}
	if c.Radius == 0 {
		c.Radius = d.Radius
	}
	if c.SpawnProbability == 0 {
		c.SpawnProbability = d.SpawnProbability
	}
	if c.TileDegrees <= 0 {
		c.TileDegrees = d.TileDegrees
	}
	if c.Start == (grid.LatLng{}) {
		c.Start = d.Start
	}
	return c
}

// Deps are the session's collaborators. KV is required; the rest default
// to no-ops.
type Deps struct {
	KV       store.KV
	Journal  store.Journal
	Renderer Renderer
	Logger   *log.Logger
}

// Session is one running game.
type Session struct {
	mu sync.Mutex

	cfg      Config
	proj     grid.Projection
	scanner  *scan.Scanner
	board    *board.Board
	player   *player.Player
	kv       store.KV
	journal  store.Journal
	renderer Renderer
	logger   *log.Logger

	sites       map[grid.Cell]*board.Cache
	order       []grid.Cell
	cacheLayers map[grid.Cell]LayerID
	trailLayer  LayerID
	zoomedOut   bool

	watchCancel context.CancelFunc
	watchGen    uint64
	closed      bool
}

// Open restores the saved game from deps.KV, or starts a new one at
// cfg.Start, and draws the neighborhood. A corrupt save is an error.
func Open(ctx context.Context, cfg Config, deps Deps) (*Session, error) {
	if deps.KV == nil {
		return nil, ErrNoKV
	}
	cfg = cfg.withDefaults()

	src := engine.NewSource(cfg.WorldSeed)
	scanner, err := scan.NewScanner(src, cfg.Radius, cfg.SpawnProbability)
	if err != nil {
		return nil, fmt.Errorf("scanner: %w", err)
	}

	s := &Session{
		cfg:         cfg,
		proj:        grid.NewProjection(cfg.TileDegrees),
		scanner:     scanner,
		kv:          deps.KV,
		journal:     deps.Journal,
		renderer:    deps.Renderer,
		logger:      deps.Logger,
		cacheLayers: make(map[grid.Cell]LayerID),
	}
	if s.renderer == nil {
		s.renderer = NopRenderer{}
	}
	if s.logger == nil {
		s.logger = log.New(os.Stdout, "[GAME] ", log.LstdFlags)
	}

	if err := s.load(ctx, src); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.renderer.Focus(s.proj.LatLngOf(s.player.Position()))
	if err := s.refreshLocked(); err != nil {
		return nil, err
	}
	s.logger.Printf("session opened position=%s coins=%d known=%d",
		s.player.Position().Key(), s.player.CoinCount(), s.board.KnownCount())
	return s, nil
}

func (s *Session) load(ctx context.Context, src engine.Source) error {
	boardData, ok, err := s.kv.Get(ctx, store.BoardDataKey)
	if err != nil {
		return fmt.Errorf("load board: %w", err)
	}
	if ok {
		s.board, err = board.Restore(src, boardData)
		if err != nil {
			return fmt.Errorf("restore board: %w", err)
		}
	} else {
		s.board = board.New(src)
	}
	s.board.SetLogger(s.logger)

	playerData, ok, err := s.kv.Get(ctx, store.PlayerDataKey)
	if err != nil {
		return fmt.Errorf("load player: %w", err)
	}
	if ok {
		s.player, err = player.Restore(playerData)
		if err != nil {
			return fmt.Errorf("restore player: %w", err)
		}
	} else {
		s.player = player.New(s.StartCell())
	}
	return nil
}

// StartCell is the spawn cell for new and reset games.
func (s *Session) StartCell() grid.Cell {
	return s.proj.CellAt(s.cfg.Start)
}

// Projection returns the session's lat/lng projection.
func (s *Session) Projection() grid.Projection { return s.proj }

// Move steps the player by delta. Manual movement stops following
// geolocation.
func (s *Session) Move(ctx context.Context, delta grid.Cell) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.ignoreLocked()
	return s.setPositionLocked(ctx, s.player.Position().Add(delta))
}

// SetPosition moves the player to cell, rescans and saves.
func (s *Session) SetPosition(ctx context.Context, cell grid.Cell) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.setPositionLocked(ctx, cell)
}

// SetLatLng moves the player to the cell containing ll.
func (s *Session) SetLatLng(ctx context.Context, ll grid.LatLng) error {
	return s.SetPosition(ctx, s.proj.CellAt(ll))
}

func (s *Session) setPositionLocked(ctx context.Context, cell grid.Cell) error {
	s.player.SetPosition(cell)
	s.renderer.Focus(s.proj.LatLngOf(cell))
	s.zoomedOut = false
	if err := s.refreshLocked(); err != nil {
		return err
	}
	return s.saveLocked(ctx)
}

// refreshLocked clears the drawn caches, rescans around the player and
// redraws caches and trail.
func (s *Session) refreshLocked() error {
	for cell, id := range s.cacheLayers {
		s.renderer.Remove(id)
		delete(s.cacheLayers, cell)
	}
	s.sites = nil
	s.order = nil

	res, err := s.scanner.Scan(s.board, s.player.Position())
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	s.sites = make(map[grid.Cell]*board.Cache, len(res.Sites))
	s.order = make([]grid.Cell, 0, len(res.Sites))
	for _, site := range res.Sites {
		s.sites[site.Cell] = site.Cache
		s.order = append(s.order, site.Cell)
		s.cacheLayers[site.Cell] = s.renderer.DrawCache(s.view(site.Cache))
	}
	s.drawTrailLocked()
	return nil
}

// Redraw repaints the current neighborhood and trail without rescanning,
// e.g. after the map surface reloads.
func (s *Session) Redraw() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, cell := range s.order {
		s.redrawCacheLocked(s.sites[cell])
	}
	s.drawTrailLocked()
	s.renderer.Focus(s.proj.LatLngOf(s.player.Position()))
	s.zoomedOut = false
}

func (s *Session) drawTrailLocked() {
	if s.trailLayer != "" {
		s.renderer.Remove(s.trailLayer)
	}
	s.trailLayer = s.renderer.DrawTrail(s.proj.Trail(s.player.History()))
}

func (s *Session) redrawCacheLocked(c *board.Cache) {
	if id, ok := s.cacheLayers[c.Cell()]; ok {
		s.renderer.Remove(id)
	}
	s.cacheLayers[c.Cell()] = s.renderer.DrawCache(s.view(c))
}

func (s *Session) view(c *board.Cache) CacheView {
	sw, ne := s.proj.Bounds(c.Cell())
	n := c.Len()
	return CacheView{
		Cell:  c.Cell(),
		SW:    sw,
		NE:    ne,
		Count: n,
		Coins: c.CoinStrings(),
		Label: fmt.Sprintf("There is a cache here at %q. It has %d coin%s.", c.Cell().Key(), n, plural(n)),
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// saveLocked writes the player and the snapshot store to the KV. Live
// caches are checkpointed first so in-window trades are not lost.
func (s *Session) saveLocked(ctx context.Context) error {
	if err := s.board.Checkpoint(); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	playerData, err := s.player.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot player: %w", err)
	}
	boardData, err := s.board.ExportState()
	if err != nil {
		return fmt.Errorf("export board: %w", err)
	}
	err = s.kv.SetAll(ctx, map[string][]byte{
		store.PlayerDataKey: playerData,
		store.BoardDataKey:  boardData,
	})
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// Transfer is the outcome of a take or put. Moved is false when the source
// inventory was empty; that is not an error.
type Transfer struct {
	Moved       bool       `json:"moved"`
	Coin        *grid.Coin `json:"coin,omitempty"`
	CoinString  string     `json:"coinString,omitempty"`
	Cache       CacheView  `json:"cache"`
	PlayerCoins int        `json:"playerCoins"`
	Status      string     `json:"status"`
}

// Take moves the most recent coin from the cache at cell to the player.
func (s *Session) Take(ctx context.Context, cell grid.Cell) (*Transfer, error) {
	return s.trade(ctx, cell, store.DirectionTake)
}

// Put moves the player's most recent coin into the cache at cell.
func (s *Session) Put(ctx context.Context, cell grid.Cell) (*Transfer, error) {
	return s.trade(ctx, cell, store.DirectionPut)
}

func (s *Session) trade(ctx context.Context, cell grid.Cell, dir store.Direction) (*Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	c, err := s.siteLocked(cell)
	if err != nil {
		return nil, err
	}

	var coin grid.Coin
	var ok bool
	switch dir {
	case store.DirectionTake:
		if coin, ok = c.TakeCoin(); ok {
			s.player.AddCoin(coin)
		}
	case store.DirectionPut:
		if coin, ok = s.player.RemoveCoin(); ok {
			c.PutCoin(coin)
		}
	default:
		return nil, fmt.Errorf("unknown transfer direction %q", dir)
	}

	res := &Transfer{Moved: ok}
	if ok {
		if err := s.saveLocked(ctx); err != nil {
			s.undoLocked(c, dir)
			if cerr := s.board.Checkpoint(); cerr != nil {
				s.logger.Printf("checkpoint after undo failed cell=%s err=%v", cell.Key(), cerr)
			}
			s.logger.Printf("trade rolled back direction=%s cell=%s coin=%s err=%v", dir, cell.Key(), coin, err)
			return nil, err
		}
		res.Coin = &coin
		res.CoinString = coin.String()
		s.redrawCacheLocked(c)
		s.journalLocked(ctx, dir, cell, coin)
	}
	res.Cache = s.view(c)
	res.PlayerCoins = s.player.CoinCount()
	res.Status = Status(res.PlayerCoins)
	return res, nil
}

// undoLocked reverses a trade whose save failed, so the coin is back where
// the stored game last saw it.
func (s *Session) undoLocked(c *board.Cache, dir store.Direction) {
	switch dir {
	case store.DirectionTake:
		if coin, ok := s.player.RemoveCoin(); ok {
			c.PutCoin(coin)
		}
	case store.DirectionPut:
		if coin, ok := c.TakeCoin(); ok {
			s.player.AddCoin(coin)
		}
	}
}

// journalLocked records a trade. The ledger is informational, so failures
// are logged and the trade stands.
func (s *Session) journalLocked(ctx context.Context, dir store.Direction, cell grid.Cell, coin grid.Coin) {
	if s.journal == nil {
		return
	}
	t := &store.Transfer{Direction: dir, Cell: cell, Coin: coin}
	if err := s.journal.AppendTransfer(ctx, t); err != nil {
		s.logger.Printf("journal transfer failed direction=%s cell=%s coin=%s err=%v", dir, cell.Key(), coin, err)
	}
}

func (s *Session) siteLocked(cell grid.Cell) (*board.Cache, error) {
	if !s.scanner.InWindow(s.player.Position(), cell) {
		return nil, fmt.Errorf("%w: %s", ErrOutOfRange, cell.Key())
	}
	c, ok := s.sites[cell]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoCache, cell.Key())
	}
	return c, nil
}

// Cache returns the view of a cache in the current neighborhood.
func (s *Session) Cache(cell grid.Cell) (CacheView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return CacheView{}, ErrClosed
	}
	c, err := s.siteLocked(cell)
	if err != nil {
		return CacheView{}, err
	}
	return s.view(c), nil
}

// Reset wipes all progress: every cache, the purse and the trail. The
// player respawns at the start cell and geolocation is switched off.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.board.Reset()
	s.player.ClearCoins()
	s.player.ClearHistory()
	s.ignoreLocked()
	if err := s.setPositionLocked(ctx, s.StartCell()); err != nil {
		return err
	}
	s.logger.Printf("session reset position=%s", s.player.Position().Key())
	return nil
}

// UseGeolocation follows src, cancelling any previous watch.
func (s *Session) UseGeolocation(src geo.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.useLocked(src)
}

// IgnoreGeolocation stops following position fixes.
func (s *Session) IgnoreGeolocation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignoreLocked()
}

// ToggleGeolocation flips between following src and ignoring it, and
// reports whether geolocation is now on.
func (s *Session) ToggleGeolocation(src geo.Source) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchCancel != nil {
		s.ignoreLocked()
		return false
	}
	if s.closed {
		return false
	}
	s.useLocked(src)
	return true
}

// Geolocating reports whether a watch is active.
func (s *Session) Geolocating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watchCancel != nil
}

func (s *Session) useLocked(src geo.Source) {
	s.ignoreLocked()
	ctx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel
	s.watchGen++
	gen := s.watchGen
	ch := src.Watch(ctx)
	go s.follow(ctx, gen, ch)
	s.logger.Printf("geolocation on watch=%d", gen)
}

func (s *Session) ignoreLocked() {
	if s.watchCancel == nil {
		return
	}
	s.watchCancel()
	s.watchCancel = nil
	s.watchGen++
	s.logger.Printf("geolocation off")
}

func (s *Session) follow(ctx context.Context, gen uint64, ch <-chan grid.LatLng) {
	for ll := range ch {
		s.applyFix(ctx, gen, ll)
	}
}

// applyFix moves the player unless the watch that produced ll has since
// been cancelled or replaced.
func (s *Session) applyFix(ctx context.Context, gen uint64, ll grid.LatLng) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.watchCancel == nil || s.watchGen != gen {
		return
	}
	if err := s.setPositionLocked(ctx, s.proj.CellAt(ll)); err != nil {
		s.logger.Printf("geolocation fix failed lat=%v lng=%v err=%v", ll.Lat, ll.Lng, err)
	}
}

// ToggleZoom switches between gameplay zoom on the player and a view
// fitted to the whole trail. It reports whether the map is zoomed out.
func (s *Session) ToggleZoom() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.zoomedOut {
		s.zoomedOut = false
		s.renderer.Focus(s.proj.LatLngOf(s.player.Position()))
		return false
	}
	trail := s.proj.Trail(s.player.History())
	if len(trail) == 0 {
		return false
	}
	sw, ne := trail[0], trail[0]
	for _, p := range trail[1:] {
		sw.Lat, sw.Lng = min(sw.Lat, p.Lat), min(sw.Lng, p.Lng)
		ne.Lat, ne.Lng = max(ne.Lat, p.Lat), max(ne.Lng, p.Lng)
	}
	s.renderer.Fit(sw, ne)
	s.zoomedOut = true
	return true
}

// SaveFile is the exported form of a game: the two KV values side by side.
type SaveFile struct {
	Player json.RawMessage `json:"player_data"`
	Board  json.RawMessage `json:"board_data"`
}

// Export checkpoints and returns the current save.
func (s *Session) Export() (*SaveFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.board.Checkpoint(); err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	playerData, err := s.player.Snapshot()
	if err != nil {
		return nil, err
	}
	boardData, err := s.board.ExportState()
	if err != nil {
		return nil, err
	}
	return &SaveFile{Player: playerData, Board: boardData}, nil
}

// Import replaces the game with f. Both halves are validated before
// anything changes.
func (s *Session) Import(ctx context.Context, f *SaveFile) error {
	if f == nil || len(f.Player) == 0 || len(f.Board) == 0 {
		return &snapshot.DeserializationError{Kind: "save", Err: errors.New("missing player_data or board_data")}
	}
	p, err := player.Restore(f.Player)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.board.ImportState(f.Board); err != nil {
		return err
	}
	s.player = p
	s.ignoreLocked()
	s.renderer.Focus(s.proj.LatLngOf(p.Position()))
	s.zoomedOut = false
	if err := s.refreshLocked(); err != nil {
		return err
	}
	return s.saveLocked(ctx)
}

// Close stops geolocation and writes a final save. Further calls fail
// with ErrClosed.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.ignoreLocked()
	for cell, id := range s.cacheLayers {
		s.renderer.Remove(id)
		delete(s.cacheLayers, cell)
	}
	if s.trailLayer != "" {
		s.renderer.Remove(s.trailLayer)
		s.trailLayer = ""
	}
	s.closed = true
	return s.saveLocked(ctx)
}
