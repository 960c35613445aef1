package redis

import (
	"crypto/sha256"
	"encoding/hex"
)

const (
	// KeyPrefixBookmark is the prefix for bookmark keys
	KeyPrefixBookmark = "pinsync:bookmark:"
	// KeyAllBookmarks is the set of every stored bookmark URL
	KeyAllBookmarks = "pinsync:bookmarks:all"
	// ChannelChanges is the pub/sub channel carrying committed changes
	ChannelChanges = "pinsync:bookmarks:changes"
)

// BookmarkKey returns the Redis key for a bookmark URL. URLs are hashed so
// keys stay short and free of separator characters.
func BookmarkKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return KeyPrefixBookmark + hex.EncodeToString(sum[:])
}

// AllBookmarksKey returns the Redis key for the set of all bookmarks
func AllBookmarksKey() string {
	return KeyAllBookmarks
}
