package service

import (
	"sync"
	"time"

	"github.com/set-night/appealrouter/internal/domain"
)

type mediaKey struct {
	messageID int
	appealID  string
}

type stashedMedia struct {
	media    domain.Media
	storedAt time.Time
}

// MediaStash keeps the attachment of a forwarded appeal until its decision
// reposts it. Entries are keyed per (message, appeal) so several appeals from
// one message never overwrite each other.
type MediaStash struct {
	mu    sync.RWMutex
	items map[mediaKey]stashedMedia
	ttl   time.Duration
	now   func() time.Time
}

func NewMediaStash(ttl time.Duration) *MediaStash {
	return &MediaStash{
		items: make(map[mediaKey]stashedMedia),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *MediaStash) Put(messageID int, appealID string, media domain.Media) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[mediaKey{messageID, appealID}] = stashedMedia{media: media, storedAt: s.now()}
}

func (s *MediaStash) Get(messageID int, appealID string) (domain.Media, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[mediaKey{messageID, appealID}]
	if !ok || s.now().Sub(item.storedAt) > s.ttl {
		return domain.Media{}, false
	}
	return item.media, true
}

func (s *MediaStash) Evict(messageID int, appealID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, mediaKey{messageID, appealID})
}

// Prune drops expired entries and returns how many were removed.
func (s *MediaStash) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	now := s.now()
	for k, item := range s.items {
		if now.Sub(item.storedAt) > s.ttl {
			delete(s.items, k)
			removed++
		}
	}
	return removed
}
