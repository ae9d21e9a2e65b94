package cache

import "fmt"

// HistoryKey derives the viewer-scoped cache key for the conversation
// between a and b as seen by viewer. The pair is sorted so both directions
// map to the same conversation, while the viewer component keeps each
// participant's decryptable projection in its own entry.
func HistoryKey(a, b, viewer string) string {
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("chat:%s:%s:view:%s", lo, hi, viewer)
}

// ChatListKey is the per-viewer key of the cached conversations list.
func ChatListKey(viewer string) string {
	return "chatlist:" + viewer
}
