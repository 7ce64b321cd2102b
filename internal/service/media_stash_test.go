package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/set-night/appealrouter/internal/domain"
)

func TestMediaStash(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	stash := NewMediaStash(time.Hour)
	stash.now = func() time.Time { return now }

	photo := domain.Media{Kind: domain.MediaPhoto, FileID: "p"}
	video := domain.Media{Kind: domain.MediaVideo, FileID: "v"}
	stash.Put(1, "a", photo)
	stash.Put(1, "b", video)

	got, ok := stash.Get(1, "a")
	assert.True(t, ok)
	assert.Equal(t, photo, got)
	got, ok = stash.Get(1, "b")
	assert.True(t, ok)
	assert.Equal(t, video, got)

	stash.Evict(1, "a")
	_, ok = stash.Get(1, "a")
	assert.False(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok = stash.Get(1, "b")
	assert.False(t, ok)
	assert.Equal(t, 1, stash.Prune())
	assert.Equal(t, 0, stash.Prune())
}
