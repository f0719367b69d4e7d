package desktop

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/MJE43/geocoin/internal/api"
	"github.com/MJE43/geocoin/internal/config"
	"github.com/MJE43/geocoin/internal/game"
)

type recorder struct {
	mu     sync.Mutex
	events map[string]int
	last   map[string]any
}

func newRecorder() *recorder {
	return &recorder{events: map[string]int{}, last: map[string]any{}}
}

func (r *recorder) emit(_ context.Context, name string, data ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[name]++
	if len(data) > 0 {
		r.last[name] = data[0]
	}
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[name]
}

func testConfig(t *testing.T) config.Config {
	dir := t.TempDir()
	return config.Config{
		DataDir:          dir,
		DBPath:           filepath.Join(dir, "geocoin.db"),
		Addr:             "127.0.0.1:0",
		RequireToken:     true,
		KeyringService:   "geocoin-desktop-test",
		ShutdownTimeout:  time.Second,
		WorldSeed:        "geocoin",
		NeighborhoodSize: 8,
		SpawnProbability: 0.1,
		TileDegrees:      0.0001,
		StartLat:         36.9995,
		StartLng:         -122.0533,
	}
}

func TestEventRenderer(t *testing.T) {
	rec := newRecorder()
	r := NewEventRenderer(context.Background(), rec.emit)

	id := r.DrawCache(game.CacheView{Count: 3})
	if id == "" {
		t.Fatal("empty layer id")
	}
	if ev, ok := rec.last[EventCache].(CacheEvent); !ok || ev.ID != id || ev.View.Count != 3 {
		t.Errorf("cache event = %#v", rec.last[EventCache])
	}
	trail := r.DrawTrail(nil)
	if trail == id {
		t.Error("layer ids must be unique")
	}
	r.Remove(id)
	if rec.last[EventRemove] != id {
		t.Errorf("remove event = %#v", rec.last[EventRemove])
	}
	r.Focus(game.DefaultStart)
	r.Fit(game.DefaultStart, game.DefaultStart)
	for _, name := range []string{EventCache, EventTrail, EventRemove, EventFocus, EventFit} {
		if rec.count(name) != 1 {
			t.Errorf("%s emitted %d times", name, rec.count(name))
		}
	}
}

func TestGameModuleLifecycle(t *testing.T) {
	keyring.MockInit()
	m, err := NewGameModule(testConfig(t))
	if err != nil {
		t.Fatalf("NewGameModule: %v", err)
	}
	rec := newRecorder()
	m.emit = rec.emit

	ctx := context.Background()
	if err := m.Startup(ctx); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	defer m.Shutdown(ctx)

	if rec.count(EventCache) == 0 || rec.count(EventTrail) != 1 {
		t.Errorf("startup draws: caches=%d trails=%d", rec.count(EventCache), rec.count(EventTrail))
	}

	st, err := m.Move("north")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if len(st.Trail) != 2 || rec.count(EventState) != 1 {
		t.Errorf("after move trail=%d state events=%d", len(st.Trail), rec.count(EventState))
	}
	if _, err := m.Move("up"); err == nil {
		t.Error("expected error for unknown direction")
	}

	info := m.APIInfo()
	if !info.TokenEnabled || info.TokenHeader != api.TokenHeader {
		t.Fatalf("api info = %+v", info)
	}
	tok, err := m.tokens.Token()
	if err != nil {
		t.Fatalf("token not persisted: %v", err)
	}

	req, _ := http.NewRequest("GET", info.URL+"/state", nil)
	req.Header.Set(api.TokenHeader, tok)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET state: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET state status = %d", resp.StatusCode)
	}

	if !m.ToggleGeolocation() {
		t.Error("expected geolocation on")
	}
	if !m.PushFix(36.9995, -122.0533) {
		t.Error("fix not delivered")
	}
	if m.ToggleGeolocation() {
		t.Error("expected geolocation off")
	}

	page, err := m.Transfers(1, 10)
	if err != nil || page.TotalCount != 0 {
		t.Errorf("Transfers = %+v, %v", page, err)
	}

	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
