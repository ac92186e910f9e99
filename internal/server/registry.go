package server

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// registry tracks live connections by session ID, sharded by xxhash so that
// connect/disconnect bursts do not contend on one lock.
type registry struct {
	shards []*registryShard
	count  atomic.Int64
}

type registryShard struct {
	mu    sync.RWMutex
	conns map[string]*connection
}

func newRegistry(shards int) *registry {
	if shards <= 0 {
		shards = 1
	}
	r := &registry{shards: make([]*registryShard, shards)}
	for i := range r.shards {
		r.shards[i] = &registryShard{conns: make(map[string]*connection)}
	}
	return r
}

func (r *registry) shardFor(id string) *registryShard {
	return r.shards[xxhash.Sum64String(id)%uint64(len(r.shards))]
}

// add registers c unless limit connections are already live.
func (r *registry) add(c *connection, limit int) error {
	if r.count.Add(1) > int64(limit) {
		r.count.Add(-1)
		return ErrMaxClientsReached
	}
	shard := r.shardFor(c.ID())
	shard.mu.Lock()
	shard.conns[c.ID()] = c
	shard.mu.Unlock()
	return nil
}

func (r *registry) remove(id string) {
	shard := r.shardFor(id)
	shard.mu.Lock()
	_, ok := shard.conns[id]
	delete(shard.conns, id)
	shard.mu.Unlock()
	if ok {
		r.count.Add(-1)
	}
}

func (r *registry) get(id string) (*connection, bool) {
	shard := r.shardFor(id)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	c, ok := shard.conns[id]
	return c, ok
}

func (r *registry) len() int { return int(r.count.Load()) }

// each calls fn for every connection until fn returns false.
func (r *registry) each(fn func(*connection) bool) {
	for _, shard := range r.shards {
		shard.mu.RLock()
		conns := make([]*connection, 0, len(shard.conns))
		for _, c := range shard.conns {
			conns = append(conns, c)
		}
		shard.mu.RUnlock()
		for _, c := range conns {
			if !fn(c) {
				return
			}
		}
	}
}
