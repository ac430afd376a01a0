// Package playlist provides the bounded cursor over an ordered set of media
// items and the cancellable auto-advance countdown.
package playlist

import (
	"errors"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
)

var (
	// ErrNoNext is returned by Next on the last item.
	ErrNoNext = errors.New("no more items in playlist")
	// ErrNoPrevious is returned by Previous on the first item.
	ErrNoPrevious = errors.New("already at first item")
	// ErrEmpty is returned when the playlist holds no items.
	ErrEmpty = errors.New("playlist is empty")
	// ErrOutOfRange is returned by Select for an invalid index.
	ErrOutOfRange = errors.New("playlist index out of range")
)

// Playlist is an ordered list of items plus a current index. The index is
// always valid while the list is non-empty.
type Playlist struct {
	items []media.Item
	index int
}

// New creates a playlist positioned at start, clamped into range.
func New(items []media.Item, start int) *Playlist {
	p := &Playlist{items: append([]media.Item(nil), items...)}
	if len(p.items) == 0 {
		return p
	}
	if start < 0 {
		start = 0
	}
	if start >= len(p.items) {
		start = len(p.items) - 1
	}
	p.index = start
	return p
}

// Single creates a playlist holding only item.
func Single(item media.Item) *Playlist {
	return New([]media.Item{item}, 0)
}

// Len returns the number of items.
func (p *Playlist) Len() int {
	return len(p.items)
}

// Index returns the current position.
func (p *Playlist) Index() int {
	return p.index
}

// Items returns a copy of the items.
func (p *Playlist) Items() []media.Item {
	return append([]media.Item(nil), p.items...)
}

// Current returns the item at the cursor.
func (p *Playlist) Current() (media.Item, error) {
	if len(p.items) == 0 {
		return media.Item{}, ErrEmpty
	}
	return p.items[p.index], nil
}

// HasNext reports whether Next would move.
func (p *Playlist) HasNext() bool {
	return p.index < len(p.items)-1
}

// HasPrevious reports whether Previous would move.
func (p *Playlist) HasPrevious() bool {
	return len(p.items) > 0 && p.index > 0
}

// Next advances the cursor. At the boundary the index is unchanged and
// ErrNoNext is returned.
func (p *Playlist) Next() (media.Item, error) {
	if len(p.items) == 0 {
		return media.Item{}, ErrEmpty
	}
	if !p.HasNext() {
		return p.items[p.index], ErrNoNext
	}
	p.index++
	return p.items[p.index], nil
}

// Previous retreats the cursor. At the boundary the index is unchanged and
// ErrNoPrevious is returned.
func (p *Playlist) Previous() (media.Item, error) {
	if len(p.items) == 0 {
		return media.Item{}, ErrEmpty
	}
	if !p.HasPrevious() {
		return p.items[p.index], ErrNoPrevious
	}
	p.index--
	return p.items[p.index], nil
}

// Select moves the cursor to i.
func (p *Playlist) Select(i int) (media.Item, error) {
	if i < 0 || i >= len(p.items) {
		return media.Item{}, ErrOutOfRange
	}
	p.index = i
	return p.items[i], nil
}
