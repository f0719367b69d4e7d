// Package geo delivers position fixes to the game.
package geo

import (
	"context"
	"sync"

	"github.com/MJE43/geocoin/internal/grid"
)

// Source streams position fixes until ctx is cancelled, then closes the
// channel.
type Source interface {
	Watch(ctx context.Context) <-chan grid.LatLng
}

// FeedBuffer is the number of undelivered fixes a watcher may lag behind.
// When it is full the oldest pending fix is dropped.
const FeedBuffer = 8

// Feed is a Source fed by pushes (HTTP, desktop bridge). It serves one
// watcher at a time: a new Watch closes the previous watcher's channel.
type Feed struct {
	mu  sync.Mutex
	sub *subscription
}

type subscription struct {
	ch   chan grid.LatLng
	done chan struct{}
}

var _ Source = (*Feed)(nil)

func NewFeed() *Feed {
	return &Feed{}
}

// Watch subscribes to the feed.
func (f *Feed) Watch(ctx context.Context) <-chan grid.LatLng {
	s := &subscription{
		ch:   make(chan grid.LatLng, FeedBuffer),
		done: make(chan struct{}),
	}

	f.mu.Lock()
	if f.sub != nil {
		f.closeLocked()
	}
	f.sub = s
	f.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
			return
		}
		f.mu.Lock()
		if f.sub == s {
			f.closeLocked()
		}
		f.mu.Unlock()
	}()

	return s.ch
}

// Publish hands ll to the current watcher. It reports false when nobody is
// watching.
func (f *Feed) Publish(ll grid.LatLng) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sub == nil {
		return false
	}
	for {
		select {
		case f.sub.ch <- ll:
			return true
		default:
		}
		// full: drop the oldest fix
		select {
		case <-f.sub.ch:
		default:
		}
	}
}

// Watching reports whether a watcher is subscribed.
func (f *Feed) Watching() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sub != nil
}

func (f *Feed) closeLocked() {
	close(f.sub.done)
	close(f.sub.ch)
	f.sub = nil
}
