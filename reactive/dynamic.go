// Package reactive implements the two primitives the table layer is built
// on: Dynamic, a snapshot-plus-delta-stream live value with fork/disconnect
// and refcounted delayed eviction, and partitionByKey, which fans an event
// stream out into per-key substreams. Both are deliberately synchronous and
// single-threaded, mirroring evt.Subscribers' topic-keyed fan-out but
// without the network transport underneath it.
package reactive

import (
	"sort"
	"time"

	"github.com/bglgwyng/rx-table/rterr"
)

// EvictGrace is how long a Source waits, after its last fork disconnects,
// before calling its eviction callback. Resurrection (a new Fork) within
// the window cancels the pending eviction.
const EvictGrace = 10 * time.Second

// Source owns the live value and the set of its forks. Table holds one
// Source per cached key; callers only ever see its Dynamic forks.
type Source[V any, D any] struct {
	value      V
	forks      map[int]*Dynamic[V, D]
	nextForkID int
	onEvict    func()
	evictTimer *time.Timer
}

// NewSource creates a Source with an initial snapshot and returns its first
// fork.
func NewSource[V any, D any](initial V) (*Source[V, D], *Dynamic[V, D]) {
	s := &Source[V, D]{value: initial, forks: make(map[int]*Dynamic[V, D])}
	return s, s.fork()
}

// OnEvict registers the callback Source invokes once every fork has
// disconnected and the grace window has elapsed with none resurrected. It
// is typically wired to remove the Source from the owning cache.
func (s *Source[V, D]) OnEvict(fn func()) {
	s.onEvict = fn
}

// Publish stores newValue and synchronously notifies every live fork's
// subscribers with delta, in subscription order. The caller (Table) is
// responsible for having already folded delta into newValue.
func (s *Source[V, D]) Publish(delta D, newValue V) {
	s.value = newValue
	forkIDs := make([]int, 0, len(s.forks))
	for id := range s.forks {
		forkIDs = append(forkIDs, id)
	}
	sort.Ints(forkIDs)
	for _, forkID := range forkIDs {
		fork := s.forks[forkID]
		if fork.disconnected {
			continue
		}
		subIDs := make([]int, 0, len(fork.subs))
		for id := range fork.subs {
			subIDs = append(subIDs, id)
		}
		sort.Ints(subIDs)
		for _, subID := range subIDs {
			fork.subs[subID](delta)
		}
	}
}

// Fork returns a new handle onto s's current snapshot, the way NewSource's
// first fork is created. Unlike Dynamic.Fork, this can never fail: a Source
// has no disconnected state of its own.
func (s *Source[V, D]) Fork() *Dynamic[V, D] {
	return s.fork()
}

func (s *Source[V, D]) fork() *Dynamic[V, D] {
	if s.evictTimer != nil {
		s.evictTimer.Stop()
		s.evictTimer = nil
	}
	id := s.nextForkID
	s.nextForkID++
	d := &Dynamic[V, D]{source: s, id: id, subs: make(map[int]func(D))}
	s.forks[id] = d
	return d
}

func (s *Source[V, D]) release(id int) {
	delete(s.forks, id)
	if len(s.forks) == 0 && s.onEvict != nil {
		onEvict := s.onEvict
		s.evictTimer = time.AfterFunc(EvictGrace, onEvict)
	}
}

// Dynamic is a live handle onto a Source's snapshot: read the current
// value, subscribe to deltas, fork an independent handle sharing the same
// upstream, or disconnect.
type Dynamic[V any, D any] struct {
	source       *Source[V, D]
	id           int
	subs         map[int]func(D)
	nextSubID    int
	disconnected bool
}

// Read returns the current snapshot, or rterr.DynamicDisconnected if this
// handle has been disconnected.
func (d *Dynamic[V, D]) Read() (V, error) {
	if d.disconnected {
		var zero V
		return zero, rterr.DynamicDisconnected
	}
	return d.source.value, nil
}

// Fork returns a new handle sharing this Dynamic's upstream Source,
// initialized with the current snapshot.
func (d *Dynamic[V, D]) Fork() (*Dynamic[V, D], error) {
	if d.disconnected {
		return nil, rterr.DynamicDisconnected
	}
	return d.source.fork(), nil
}

// Subscribe registers fn to run on every subsequent delta until the
// returned unsubscribe func runs or the handle disconnects. Subscribe
// itself raises rterr.DynamicDisconnected on an already-disconnected handle.
func (d *Dynamic[V, D]) Subscribe(fn func(D)) (func(), error) {
	if d.disconnected {
		return nil, rterr.DynamicDisconnected
	}
	id := d.nextSubID
	d.nextSubID++
	d.subs[id] = fn
	return func() { delete(d.subs, id) }, nil
}

// Disconnect terminates this handle: Read and Fork begin raising
// rterr.DynamicDisconnected and Subscribe's callbacks stop firing. It is
// idempotent. When this was the handle's Source's last live fork, Disconnect
// starts the eviction grace timer.
func (d *Dynamic[V, D]) Disconnect() {
	if d.disconnected {
		return
	}
	d.disconnected = true
	d.subs = nil
	d.source.release(d.id)
}
