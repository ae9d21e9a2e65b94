package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoryKey_PairOrderIndependent(t *testing.T) {
	assert.Equal(t, HistoryKey("u1", "u2", "u1"), HistoryKey("u2", "u1", "u1"))
}

func TestHistoryKey_DistinctPerViewer(t *testing.T) {
	byA := HistoryKey("u1", "u2", "u1")
	byB := HistoryKey("u1", "u2", "u2")
	assert.NotEqual(t, byA, byB)
}

func TestChatListKey(t *testing.T) {
	assert.Equal(t, "chatlist:u1", ChatListKey("u1"))
}
