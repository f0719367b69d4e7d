package desktop

import (
	"context"

	"github.com/MJE43/geocoin/internal/game"
	"github.com/MJE43/geocoin/internal/grid"
)

// Events emitted to the webview. The map page listens for these and keeps
// its Leaflet layers in step.
const (
	EventCache  = "geocoin:cache"
	EventTrail  = "geocoin:trail"
	EventRemove = "geocoin:remove"
	EventFocus  = "geocoin:focus"
	EventFit    = "geocoin:fit"
	EventState  = "geocoin:state"
)

// emitFunc has the shape of runtime.EventsEmit.
type emitFunc func(ctx context.Context, eventName string, optionalData ...interface{})

// CacheEvent is the payload of EventCache.
type CacheEvent struct {
	ID   game.LayerID   `json:"id"`
	View game.CacheView `json:"view"`
}

// TrailEvent is the payload of EventTrail.
type TrailEvent struct {
	ID     game.LayerID  `json:"id"`
	Points []grid.LatLng `json:"points"`
}

// FitEvent is the payload of EventFit.
type FitEvent struct {
	SW grid.LatLng `json:"sw"`
	NE grid.LatLng `json:"ne"`
}

// EventRenderer draws by emitting Wails events.
type EventRenderer struct {
	ctx  context.Context
	emit emitFunc
}

var _ game.Renderer = (*EventRenderer)(nil)

func NewEventRenderer(ctx context.Context, emit emitFunc) *EventRenderer {
	return &EventRenderer{ctx: ctx, emit: emit}
}

func (r *EventRenderer) DrawCache(v game.CacheView) game.LayerID {
	id := game.NewLayerID()
	r.emit(r.ctx, EventCache, CacheEvent{ID: id, View: v})
	return id
}

func (r *EventRenderer) DrawTrail(points []grid.LatLng) game.LayerID {
	id := game.NewLayerID()
	r.emit(r.ctx, EventTrail, TrailEvent{ID: id, Points: points})
	return id
}

func (r *EventRenderer) Remove(id game.LayerID) {
	r.emit(r.ctx, EventRemove, id)
}

func (r *EventRenderer) Focus(center grid.LatLng) {
	r.emit(r.ctx, EventFocus, center)
}

func (r *EventRenderer) Fit(sw, ne grid.LatLng) {
	r.emit(r.ctx, EventFit, FitEvent{SW: sw, NE: ne})
}
