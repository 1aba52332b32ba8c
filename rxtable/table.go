// Package rxtable is the reactive table layer: it sits on top of package
// storage, publishing a TableEvent for every mutation and deriving live
// Dynamics for findUnique and findMany from those events. The event
// fan-out is grounded on evt.Subscribers' topic-keyed broadcast, adapted
// from a network hub to an in-process, single-threaded bus.
package rxtable

import (
	"fmt"
	"strings"
	"time"

	"github.com/bglgwyng/rx-table/expr"
	"github.com/bglgwyng/rx-table/reactive"
	"github.com/bglgwyng/rx-table/rterr"
	"github.com/bglgwyng/rx-table/rtmodel"
	"github.com/bglgwyng/rx-table/rtlog"
	"github.com/bglgwyng/rx-table/schema"
	"github.com/bglgwyng/rx-table/storage"
)

// event is the internal, richer event rxtable routes through its bus. Only
// its embedded rtmodel.TableEvent is ever exposed to callers; OldRow exists
// solely so findMany can test a deleted row against its filter after the
// row itself is already gone from storage.
type event struct {
	rtmodel.TableEvent
	OldRow expr.Row
}

// Batch is one mutation's complete, revision-stamped effect. A plain
// mutation publishes a single-event Batch; MutateMany publishes one Batch
// for its whole transaction.
type Batch struct {
	Rev    time.Time
	Events []rtmodel.TableEvent
}

// UniqueDynamic is the live handle returned by FindUnique: Read gives the
// current row (nil after a delete), Subscribe delivers the TableEvent that
// produced each new snapshot.
type UniqueDynamic = reactive.Dynamic[expr.Row, rtmodel.TableEvent]

// uniqueEntry is Table's cache record for one findUnique key.
type uniqueEntry struct {
	src *reactive.Source[expr.Row, rtmodel.TableEvent]
}

// PageDynamic is the live handle returned by FindMany.
type PageDynamic = reactive.Dynamic[*rtmodel.Page, rtmodel.PageDelta]

// Table is a reactive view over one storage.Adapter. It exclusively owns
// the adapter, the event bus and the per-key Dynamic cache.
type Table struct {
	adapter *storage.Adapter
	schema  *schema.Table
	backend storage.Backend
	log     rtlog.Logger

	partitioner *reactive.Partitioner[event, string]
	pageSubs    map[int]func(event)
	nextPageSub int

	uniqueSources map[string]*uniqueEntry

	rev time.Time

	batchSubs   map[int]func(Batch)
	nextBatchID int

	idleTimer *time.Timer
	onIdle    func()
}

// New builds a Table over backend for the given schema, eagerly preparing
// the adapter's fixed statements.
func New(backend storage.Backend, tableSchema *schema.Table) (*Table, error) {
	adapter, err := storage.New(backend, tableSchema)
	if err != nil {
		return nil, err
	}
	return &Table{
		adapter:       adapter,
		schema:        tableSchema,
		backend:       backend,
		log:           rtlog.Root.With("table", tableSchema.Name),
		partitioner:   reactive.NewPartitioner(func(e event) string { return keyString(e.KeyTuple(tableSchema.PrimaryKey)) }),
		pageSubs:      make(map[int]func(event)),
		uniqueSources: make(map[string]*uniqueEntry),
		batchSubs:     make(map[int]func(Batch)),
	}, nil
}

func keyString(tuple []expr.Value) string {
	parts := make([]string, len(tuple))
	for i, v := range tuple {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "\x1f")
}

// OnBatch registers fn to run, in publish order, every time a mutation
// publishes a Batch. The returned func unsubscribes.
func (t *Table) OnBatch(fn func(Batch)) func() {
	id := t.nextBatchID
	t.nextBatchID++
	t.batchSubs[id] = fn
	return func() { delete(t.batchSubs, id) }
}

// OnIdle registers a debounced callback fired once 200ms after the most
// recent mutation, coalescing bursts into one notification. Grounded on
// evt.Subscribers.Btrig's delayed, de-duped broadcast trigger. Only one
// OnIdle callback may be active at a time; a later call replaces the
// earlier one.
func (t *Table) OnIdle(fn func()) {
	t.onIdle = fn
}

func (t *Table) triggerIdle() {
	if t.onIdle == nil {
		return
	}
	if t.idleTimer != nil {
		t.idleTimer.Stop()
	}
	t.idleTimer = time.AfterFunc(200*time.Millisecond, t.onIdle)
}

func (t *Table) nextRev() time.Time {
	t.rev = nextRev(t.rev, time.Now())
	return t.rev
}

// nextRev truncates rev to millisecond resolution and bumps it one
// millisecond past last if it would not otherwise be strictly increasing.
func nextRev(last, rev time.Time) time.Time {
	rev = rev.Truncate(time.Millisecond)
	if rev.After(last) {
		return rev
	}
	return last.Add(time.Millisecond)
}

func (t *Table) publish(rev time.Time, evs []event) {
	t.log.Debug("publish", "rev", rev, "events", len(evs))
	batch := Batch{Rev: rev, Events: make([]rtmodel.TableEvent, len(evs))}
	for i, e := range evs {
		batch.Events[i] = e.TableEvent
	}
	for _, e := range evs {
		// partitioner.Publish fans e out to this key's group, which in turn
		// drives every cached findUnique Source via the subscription wired
		// up in FindUnique — uniqueSources is never touched directly here.
		t.partitioner.Publish(e)
		for _, fn := range t.pageSubs {
			fn(e)
		}
	}
	for _, fn := range t.batchSubs {
		fn(batch)
	}
	t.triggerIdle()
}

// Insert writes row and publishes a single EventInsert.
func (t *Table) Insert(row rtmodel.Row) error {
	if err := t.adapter.Insert(row); err != nil {
		return err
	}
	t.publish(t.nextRev(), []event{{TableEvent: rtmodel.TableEvent{Kind: rtmodel.EventInsert, Row: row}}})
	return nil
}

// Upsert writes row and publishes a single EventInsert (an upsert is
// indistinguishable from an insert to a subscriber: the resulting snapshot
// is row either way).
func (t *Table) Upsert(row rtmodel.Row) error {
	if err := t.adapter.Upsert(row); err != nil {
		return err
	}
	t.publish(t.nextRev(), []event{{TableEvent: rtmodel.TableEvent{Kind: rtmodel.EventInsert, Row: row}}})
	return nil
}

// Update changes the columns in partial for key and publishes a single
// EventUpdate. An empty partial is the EmptyUpdate no-op and publishes
// nothing.
func (t *Table) Update(key rtmodel.PrimaryKeyRecord, partial rtmodel.Row) error {
	if len(partial) == 0 {
		return nil
	}
	if err := t.adapter.Update(key, partial); err != nil {
		return err
	}
	t.publish(t.nextRev(), []event{{TableEvent: rtmodel.TableEvent{Kind: rtmodel.EventUpdate, Key: key, Partial: partial}}})
	return nil
}

// Delete removes the row identified by key and publishes a single
// EventDelete. The pre-delete row is fetched first so findMany's filter
// test can still decide whether the removed row used to match.
func (t *Table) Delete(key rtmodel.PrimaryKeyRecord) error {
	old, _, err := t.adapter.FindUnique(key)
	if err != nil {
		return err
	}
	if err := t.adapter.Delete(key); err != nil {
		return err
	}
	t.publish(t.nextRev(), []event{{TableEvent: rtmodel.TableEvent{Kind: rtmodel.EventDelete, Key: key}, OldRow: old}})
	return nil
}

// Mutation is one operation queued by MutateMany.
type Mutation struct {
	Kind    rtmodel.EventKind
	Row     rtmodel.Row
	Key     rtmodel.PrimaryKeyRecord
	Partial rtmodel.Row
}

// MutateMany runs every mutation inside a single backend transaction and,
// only if all succeed, publishes their events as one revision-stamped
// Batch. A failure rolls back and no event is published.
func (t *Table) MutateMany(muts []Mutation) error {
	var oldRows []expr.Row
	err := t.backend.Transaction(func(scoped storage.Backend) error {
		adapter, err := storage.New(scoped, t.schema)
		if err != nil {
			return err
		}
		oldRows = make([]expr.Row, len(muts))
		for i, m := range muts {
			switch m.Kind {
			case rtmodel.EventInsert:
				if err := adapter.Insert(m.Row); err != nil {
					return err
				}
			case rtmodel.EventUpdate:
				if len(m.Partial) == 0 {
					continue
				}
				if err := adapter.Update(m.Key, m.Partial); err != nil {
					return err
				}
			case rtmodel.EventDelete:
				old, _, err := adapter.FindUnique(m.Key)
				if err != nil {
					return err
				}
				oldRows[i] = old
				if err := adapter.Delete(m.Key); err != nil {
					return err
				}
			default:
				return rterr.NewCompileUnsupported("mutation kind")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	evs := make([]event, 0, len(muts))
	for i, m := range muts {
		if m.Kind == rtmodel.EventUpdate && len(m.Partial) == 0 {
			continue
		}
		e := event{TableEvent: rtmodel.TableEvent{Kind: m.Kind, Row: m.Row, Key: m.Key, Partial: m.Partial}}
		if m.Kind == rtmodel.EventDelete {
			e.OldRow = oldRows[i]
		}
		evs = append(evs, e)
	}
	t.publish(t.nextRev(), evs)
	return nil
}

// FindUnique returns a live handle to the row identified by key. A cached
// Source is forked if one already exists for this key; otherwise the row
// is loaded via storage and a new Source is created, subscribed to this
// key's partitioned event substream, and evicted 10s after its last fork
// disconnects.
func (t *Table) FindUnique(key rtmodel.PrimaryKeyRecord) (*UniqueDynamic, error) {
	k := keyString(keyTupleOf(key, t.schema.PrimaryKey))
	if entry, ok := t.uniqueSources[k]; ok {
		return entry.src.Fork(), nil
	}

	row, _, err := t.adapter.FindUnique(key)
	if err != nil {
		return nil, err
	}
	src, dyn := reactive.NewSource[expr.Row, rtmodel.TableEvent](row)
	t.uniqueSources[k] = &uniqueEntry{src: src}

	unsubscribe := t.partitioner.Subscribe(k, func(e event) {
		row = foldUnique(row, e.TableEvent)
		src.Publish(e.TableEvent, row)
	})
	src.OnEvict(func() {
		unsubscribe()
		delete(t.uniqueSources, k)
	})
	return dyn, nil
}

func keyTupleOf(key rtmodel.PrimaryKeyRecord, pk []string) []expr.Value {
	out := make([]expr.Value, len(pk))
	for i, c := range pk {
		out[i] = key[c]
	}
	return out
}

func foldUnique(current expr.Row, ev rtmodel.TableEvent) expr.Row {
	switch ev.Kind {
	case rtmodel.EventInsert:
		return ev.Row.Clone()
	case rtmodel.EventUpdate:
		if current == nil {
			return ev.Partial.Clone()
		}
		return current.Merge(ev.Partial)
	case rtmodel.EventDelete:
		return nil
	default:
		return current
	}
}

// FindMany serves an initial Page via the storage adapter and returns a
// live handle whose delta stream applies §4.4's conservative rule: inserts
// and deletes that pass the filter emit add/remove; updates are dropped
// (see the package's design notes — a correct rule also needs to handle an
// update crossing the filter or the order boundary).
func (t *Table) FindMany(init rtmodel.PageInit) (*PageDynamic, error) {
	page, err := t.adapter.FindMany(init)
	if err != nil {
		return nil, err
	}
	filter := rtmodel.FilterOf(init)

	src, dyn := reactive.NewSource[*rtmodel.Page, rtmodel.PageDelta](page)
	id := t.nextPageSub
	t.nextPageSub++
	t.pageSubs[id] = func(e event) {
		delta, ok, err := pageDeltaFor(e, filter)
		if err != nil {
			t.log.Error("page delta", "err", err)
			return
		}
		if !ok {
			return
		}
		page = foldPage(page, delta, t.schema.PrimaryKey)
		src.Publish(delta, page)
	}
	src.OnEvict(func() { delete(t.pageSubs, id) })
	return dyn, nil
}

// foldPage applies one PageDelta to page, the way Table's other mutation
// paths fold a TableEvent before calling Source.Publish. It appends an add
// at the end of the window and drops a removed row wherever it sits;
// callers needing the row back in sorted order re-run FindMany.
func foldPage(page *rtmodel.Page, delta rtmodel.PageDelta, primaryKey []string) *rtmodel.Page {
	next := *page
	switch delta.Op {
	case rtmodel.DeltaAdd:
		rows := make([]rtmodel.Cursor, len(page.Rows)+1)
		copy(rows, page.Rows)
		rows[len(page.Rows)] = delta.Row
		next.Rows = rows
		next.RowCount = page.RowCount + 1
	case rtmodel.DeltaRemove:
		rows := make([]rtmodel.Cursor, 0, len(page.Rows))
		for _, r := range page.Rows {
			if !sameKey(r, delta.Key, primaryKey) {
				rows = append(rows, r)
			}
		}
		next.Rows = rows
		if len(rows) != len(page.Rows) {
			next.RowCount = page.RowCount - 1
		}
	}
	if len(next.Rows) > 0 {
		next.StartCursor = next.Rows[0]
		next.EndCursor = next.Rows[len(next.Rows)-1]
	} else {
		next.StartCursor = nil
		next.EndCursor = nil
	}
	return &next
}

func sameKey(row expr.Row, key rtmodel.PrimaryKeyRecord, primaryKey []string) bool {
	for _, c := range primaryKey {
		if row[c] != key[c] {
			return false
		}
	}
	return true
}

func pageDeltaFor(e event, filter expr.Expr) (rtmodel.PageDelta, bool, error) {
	switch e.Kind {
	case rtmodel.EventInsert:
		matches, err := matchesFilter(e.Row, filter)
		if err != nil || !matches {
			return rtmodel.PageDelta{}, false, err
		}
		return rtmodel.PageDelta{Op: rtmodel.DeltaAdd, Row: e.Row}, true, nil
	case rtmodel.EventDelete:
		if e.OldRow == nil {
			return rtmodel.PageDelta{}, false, nil
		}
		matches, err := matchesFilter(e.OldRow, filter)
		if err != nil || !matches {
			return rtmodel.PageDelta{}, false, err
		}
		return rtmodel.PageDelta{Op: rtmodel.DeltaRemove, Key: e.Key}, true, nil
	default:
		return rtmodel.PageDelta{}, false, nil
	}
}

func matchesFilter(row expr.Row, filter expr.Expr) (bool, error) {
	if filter == nil {
		return true, nil
	}
	return expr.EvalBool(filter, row, nil)
}
