package store

// entry is the in-memory (value, expiry) pair held by a shard.
// expiryAtMs == 0 means permanent; otherwise it is a wall-clock
// millisecond timestamp and the entry is expired once now > expiryAtMs.
type entry struct {
	value      string
	expiryAtMs int64
}

func (e entry) expired(nowMs int64) bool {
	return e.expiryAtMs != 0 && nowMs > e.expiryAtMs
}
