package impl

import (
	"hash/fnv"
	"sync"
)

// stripedMutex serializes check-then-act sequences per key (user id,
// channel:recipient) without an unbounded lock table. Keys sharing a stripe
// contend harmlessly.
type stripedMutex struct {
	shards [64]sync.Mutex
}

func (s *stripedMutex) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &s.shards[h.Sum32()%uint32(len(s.shards))]
	m.Lock()
	return m.Unlock
}
