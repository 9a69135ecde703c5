package chat

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 64

// registry maps room keys to their connected sessions. Rooms are spread
// over independently locked shards so unrelated conversations do not
// contend.
type registry struct {
	shards [shardCount]*shard
}

type shard struct {
	mu    sync.RWMutex
	rooms map[RoomKey]map[*Session]struct{}
}

func newRegistry() *registry {
	r := &registry{}
	for i := range r.shards {
		r.shards[i] = &shard{rooms: make(map[RoomKey]map[*Session]struct{})}
	}
	return r
}

func (r *registry) shardFor(key RoomKey) *shard {
	return r.shards[xxhash.Sum64String(string(key))%shardCount]
}

func (r *registry) add(s *Session) {
	sh := r.shardFor(s.Room.Key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	members, ok := sh.rooms[s.Room.Key]
	if !ok {
		members = make(map[*Session]struct{})
		sh.rooms[s.Room.Key] = members
	}
	members[s] = struct{}{}
}

// remove drops s from its room and closes it. Removing a session that was
// never added only closes it. The room disappears with its last member.
func (r *registry) remove(s *Session) (wasMember bool) {
	sh := r.shardFor(s.Room.Key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if members, ok := sh.rooms[s.Room.Key]; ok {
		if _, wasMember = members[s]; wasMember {
			delete(members, s)
		}
		if len(members) == 0 {
			delete(sh.rooms, s.Room.Key)
		}
	}
	// Send is closed under the shard lock so deliver never writes to a
	// closed channel.
	s.close()
	return wasMember
}

// deliver queues frame on every member's Send channel without blocking.
// Members whose buffer is full are returned in skipped.
func (r *registry) deliver(key RoomKey, frame []byte) (delivered int, skipped []*Session) {
	sh := r.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	for s := range sh.rooms[key] {
		select {
		case s.Send <- frame:
			delivered++
		default:
			skipped = append(skipped, s)
		}
	}
	return delivered, skipped
}

func (r *registry) members(key RoomKey) int {
	sh := r.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.rooms[key])
}

func (r *registry) rooms() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		n += len(sh.rooms)
		sh.mu.RUnlock()
	}
	return n
}
