package game

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/MJE43/geocoin/internal/grid"
)

// LayerID names something drawn on the map. It is only ever handed back to
// Renderer.Remove.
type LayerID string

// NewLayerID returns a fresh random layer id.
func NewLayerID() LayerID { return LayerID(uuid.NewString()) }

// CacheView is what the map needs to draw one cache.
type CacheView struct {
	Cell  grid.Cell   `json:"cell"`
	SW    grid.LatLng `json:"sw"`
	NE    grid.LatLng `json:"ne"`
	Count int         `json:"count"`
	Coins []string    `json:"coins"`
	Label string      `json:"label"`
}

// Renderer is the map surface the session draws on.
type Renderer interface {
	DrawCache(v CacheView) LayerID
	DrawTrail(points []grid.LatLng) LayerID
	Remove(id LayerID)
	// Focus pans to center at gameplay zoom.
	Focus(center grid.LatLng)
	// Fit zooms out until the box is visible.
	Fit(sw, ne grid.LatLng)
}

// NopRenderer draws nothing.
type NopRenderer struct{}

func (NopRenderer) DrawCache(CacheView) LayerID      { return NewLayerID() }
func (NopRenderer) DrawTrail([]grid.LatLng) LayerID { return NewLayerID() }
func (NopRenderer) Remove(LayerID)                  {}
func (NopRenderer) Focus(grid.LatLng)               {}
func (NopRenderer) Fit(grid.LatLng, grid.LatLng)    {}

// RecordingRenderer keeps the layers currently on the map. Headless servers
// use it to answer "what is drawn"; tests use it to inspect draws.
type RecordingRenderer struct {
	mu      sync.Mutex
	caches  map[LayerID]CacheView
	trails  map[LayerID][]grid.LatLng
	focus   grid.LatLng
	fit     [2]grid.LatLng
	fitting bool
	removed int
}

func NewRecordingRenderer() *RecordingRenderer {
	return &RecordingRenderer{
		caches: make(map[LayerID]CacheView),
		trails: make(map[LayerID][]grid.LatLng),
	}
}

func (r *RecordingRenderer) DrawCache(v CacheView) LayerID {
	id := NewLayerID()
	r.mu.Lock()
	r.caches[id] = v
	r.mu.Unlock()
	return id
}

func (r *RecordingRenderer) DrawTrail(points []grid.LatLng) LayerID {
	id := NewLayerID()
	r.mu.Lock()
	r.trails[id] = append([]grid.LatLng(nil), points...)
	r.mu.Unlock()
	return id
}

func (r *RecordingRenderer) Remove(id LayerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.caches[id]; ok {
		delete(r.caches, id)
		r.removed++
	}
	if _, ok := r.trails[id]; ok {
		delete(r.trails, id)
		r.removed++
	}
}

func (r *RecordingRenderer) Focus(center grid.LatLng) {
	r.mu.Lock()
	r.focus = center
	r.fitting = false
	r.mu.Unlock()
}

func (r *RecordingRenderer) Fit(sw, ne grid.LatLng) {
	r.mu.Lock()
	r.fit = [2]grid.LatLng{sw, ne}
	r.fitting = true
	r.mu.Unlock()
}

// Caches returns the drawn caches ordered by row, then column.
func (r *RecordingRenderer) Caches() []CacheView {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CacheView, 0, len(r.caches))
	for _, v := range r.caches {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cell.Row != out[j].Cell.Row {
			return out[i].Cell.Row < out[j].Cell.Row
		}
		return out[i].Cell.Col < out[j].Cell.Col
	})
	return out
}

// Trails returns every drawn trail. A well-behaved session keeps one.
func (r *RecordingRenderer) Trails() [][]grid.LatLng {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]grid.LatLng, 0, len(r.trails))
	for _, t := range r.trails {
		out = append(out, t)
	}
	return out
}

// Layers is the number of layers currently drawn.
func (r *RecordingRenderer) Layers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.caches) + len(r.trails)
}

// Removed counts successful removals.
func (r *RecordingRenderer) Removed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removed
}

// View returns the last focus point, and the fitted box when zoomed out.
func (r *RecordingRenderer) View() (focus grid.LatLng, fit [2]grid.LatLng, zoomedOut bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.focus, r.fit, r.fitting
}
