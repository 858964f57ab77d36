package repository

import "time"

// Option applies a configuration option to the MemStore.
type Option func(*MemStore)

// WithShardCount sets the number of shards in the store.
func WithShardCount(count int) Option {
	return func(s *MemStore) {
		if count > 0 {
			s.shardCount = count
		}
	}
}

// WithSnapshotInterval sets how often the listing snapshot is rebuilt.
func WithSnapshotInterval(interval time.Duration) Option {
	return func(s *MemStore) {
		if interval > 0 {
			s.snapshotInterval = interval
		}
	}
}
