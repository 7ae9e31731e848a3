package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserLocks_StableShard(t *testing.T) {
	var l userLocks
	assert.Same(t, l.shard("user-1"), l.shard("user-1"))

	seen := make(map[*sync.Mutex]struct{})
	for i := 0; i < 10000; i++ {
		seen[l.shard(fmt.Sprintf("user-%d", i))] = struct{}{}
	}
	assert.LessOrEqual(t, len(seen), lockShards)
}

func TestUserLocks_Excludes(t *testing.T) {
	var l userLocks
	unlock := l.Lock("user-1")

	acquired := make(chan struct{})
	go func() {
		defer close(acquired)
		l.Lock("user-1")()
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock for the same user did not block")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("Lock not released")
	}
}
