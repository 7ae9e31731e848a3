package service

import (
	"hash/fnv"
	"sync"
)

const lockShards = 256

// userLocks is a fixed pool of mutexes keyed by user id. Memory stays
// bounded however many users are seen; users that share a shard also share
// the lock.
type userLocks struct {
	shards [lockShards]sync.Mutex
}

// Lock acquires the mutex for userID and returns its unlock function.
func (l *userLocks) Lock(userID string) func() {
	mu := l.shard(userID)
	mu.Lock()
	return mu.Unlock
}

func (l *userLocks) shard(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &l.shards[h.Sum32()%lockShards]
}
