package mediagroup

import (
	"fmt"
	"sync"
	"time"
)

// Item is one photo of a Telegram album as it arrives.
type Item struct {
	ChatID       int64
	UserID       int64
	MediaGroupID string
	MessageID    int
	FileID       string
}

// Album is a completed media group. FileIDs keep message order.
type Album struct {
	ChatID  int64
	UserID  int64
	FileIDs []string
}

// First is the photo used as the garment; the rest are ignored.
func (a Album) First() string {
	if len(a.FileIDs) == 0 {
		return ""
	}
	return a.FileIDs[0]
}

type Options struct {
	Debounce time.Duration
	OnFlush  func(Album)
}

type Aggregator struct {
	mu       sync.Mutex
	debounce time.Duration
	onFlush  func(Album)
	groups   map[string]*pendingAlbum
	closed   bool
}

type pendingAlbum struct {
	album    Album
	firstMsg int
	timer    *time.Timer
}

func New(opts Options) *Aggregator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 1200 * time.Millisecond
	}

	return &Aggregator{
		debounce: debounce,
		onFlush:  opts.OnFlush,
		groups:   make(map[string]*pendingAlbum),
	}
}

// Add buffers an album photo. It reports false for items that are not part of
// a media group so the caller handles them directly.
func (a *Aggregator) Add(item Item) bool {
	if item.MediaGroupID == "" || item.FileID == "" {
		return false
	}

	key := makeKey(item.ChatID, item.MediaGroupID)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return true
	}

	pg, ok := a.groups[key]
	if !ok {
		pg = &pendingAlbum{
			album: Album{
				ChatID:  item.ChatID,
				UserID:  item.UserID,
				FileIDs: []string{item.FileID},
			},
			firstMsg: item.MessageID,
		}
		a.groups[key] = pg
	} else if item.MessageID != 0 && item.MessageID < pg.firstMsg {
		// Updates can arrive out of order; the lowest message id is the first photo.
		pg.album.FileIDs = append([]string{item.FileID}, pg.album.FileIDs...)
		pg.firstMsg = item.MessageID
	} else {
		pg.album.FileIDs = append(pg.album.FileIDs, item.FileID)
	}

	if pg.timer != nil {
		pg.timer.Stop()
	}
	pg.timer = time.AfterFunc(a.debounce, func() {
		a.flush(key)
	})
	return true
}

// Close drops pending albums without flushing them.
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	for key, pg := range a.groups {
		if pg.timer != nil {
			pg.timer.Stop()
		}
		delete(a.groups, key)
	}
}

func (a *Aggregator) flush(key string) {
	a.mu.Lock()
	pg, ok := a.groups[key]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.groups, key)
	album := pg.album
	onFlush := a.onFlush
	a.mu.Unlock()

	if onFlush != nil {
		onFlush(album)
	}
}

func makeKey(chatID int64, mediaGroupID string) string {
	return fmt.Sprintf("%d:%s", chatID, mediaGroupID)
}
