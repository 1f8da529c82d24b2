package store

import "sync"

// shard is one of N disjoint partitions of the key space with its own
// lock.
type shard struct {
	mu   sync.Mutex
	data map[string]entry
}

func newShard() *shard {
	return &shard{data: make(map[string]entry)}
}
