package reactive

// KeyChangeOp discriminates the two KeyChange shapes.
type KeyChangeOp uint8

const (
	KeyAdd KeyChangeOp = iota
	KeyRemove
)

// KeyChange is one batch of keys becoming alive or going away in a
// Partitioner, mirroring evt.Subscribers' topic add/remove bookkeeping but
// over arbitrary comparable keys rather than string topics.
type KeyChange[K comparable] struct {
	Op   KeyChangeOp
	Keys []K
}

type group[E any] struct {
	subs      map[int]func(E)
	nextSubID int
	hasLast   bool
	last      E
}

// Partitioner fans an upstream event stream out to per-key substreams. A
// key is alive for as long as it has at least one subscriber; the last
// unsubscribe tears it down and emits a KeyRemove.
type Partitioner[E any, K comparable] struct {
	keyFn          func(E) K
	groups         map[K]*group[E]
	keyChangeSubs  map[int]func(KeyChange[K])
	nextKCSubID    int
}

// NewPartitioner builds a Partitioner keyed by keyFn.
func NewPartitioner[E any, K comparable](keyFn func(E) K) *Partitioner[E, K] {
	return &Partitioner[E, K]{
		keyFn:         keyFn,
		groups:        make(map[K]*group[E]),
		keyChangeSubs: make(map[int]func(KeyChange[K])),
	}
}

// Publish routes ev to its key's substream, creating the substream on the
// event's first arrival for that key even with no subscribers yet, so a
// replay is available to a subscriber that arrives later. Publish itself
// emits no KeyChange: a key becomes alive (KeyAdd) only when Subscribe
// attaches its first subscriber.
func (p *Partitioner[E, K]) Publish(ev E) {
	k := p.keyFn(ev)
	g, ok := p.groups[k]
	if !ok {
		g = &group[E]{subs: make(map[int]func(E))}
		p.groups[k] = g
	}
	g.hasLast = true
	g.last = ev
	for _, fn := range g.subs {
		fn(ev)
	}
}

// Subscribe attaches fn to key k's substream. If the key has ever received
// an event, fn is immediately called with the last one (replay-1). The
// returned unsubscribe func tears the key down and emits KeyRemove once it
// is the last subscriber for that key.
func (p *Partitioner[E, K]) Subscribe(k K, fn func(E)) func() {
	g, ok := p.groups[k]
	wasAlive := ok && len(g.subs) > 0
	if !ok {
		g = &group[E]{subs: make(map[int]func(E))}
		p.groups[k] = g
	}
	id := g.nextSubID
	g.nextSubID++
	g.subs[id] = fn
	if !wasAlive {
		p.emitKeyChange(KeyAdd, k)
	}
	if g.hasLast {
		fn(g.last)
	}
	return func() {
		delete(g.subs, id)
		if len(g.subs) == 0 {
			p.emitKeyChange(KeyRemove, k)
		}
	}
}

// SubscribeKeyChanges attaches fn to the add/remove log. On first
// subscription it replays every currently alive key as one bulk KeyAdd.
func (p *Partitioner[E, K]) SubscribeKeyChanges(fn func(KeyChange[K])) func() {
	id := p.nextKCSubID
	p.nextKCSubID++
	p.keyChangeSubs[id] = fn
	var alive []K
	for k, g := range p.groups {
		if len(g.subs) > 0 {
			alive = append(alive, k)
		}
	}
	if len(alive) > 0 {
		fn(KeyChange[K]{Op: KeyAdd, Keys: alive})
	}
	return func() { delete(p.keyChangeSubs, id) }
}

func (p *Partitioner[E, K]) emitKeyChange(op KeyChangeOp, k K) {
	kc := KeyChange[K]{Op: op, Keys: []K{k}}
	for _, fn := range p.keyChangeSubs {
		fn(kc)
	}
}
