package appointments

import "sync"

// View is the single-writer holder of a session's reconciled appointment
// list. Optimistic updates, refresh replacements and rollbacks all go through
// its methods, which serialize access; async completions cannot clobber each
// other. Subscribers receive a full snapshot after every change.
type View struct {
	mu      sync.Mutex
	records []Record
	gen     uint64
	subs    map[int]chan []Record
	nextSub int
}

func NewView() *View {
	return &View{subs: make(map[int]chan []Record)}
}

// Snapshot returns a copy of the current list.
func (v *View) Snapshot() []Record {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// ApplyOptimistic prepends a provisional record ahead of server confirmation.
func (v *View) ApplyOptimistic(rec Record) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.records = append([]Record{rec}, v.records...)
	v.notifyLocked()
}

// RollbackOptimistic removes the record with the given id, if present.
func (v *View) RollbackOptimistic(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, rec := range v.records {
		if rec.ID == id {
			v.records = append(v.records[:i], v.records[i+1:]...)
			v.notifyLocked()
			return
		}
	}
}

// UpdateRecord applies mutate to the record with the given id and returns the
// previous value for rollback.
func (v *View) UpdateRecord(id string, mutate func(Record) Record) (Record, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, rec := range v.records {
		if rec.ID == id {
			v.records[i] = mutate(rec)
			v.notifyLocked()
			return rec, true
		}
	}
	return Record{}, false
}

// Restore swaps a previously captured record back in by id.
func (v *View) Restore(prev Record) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, rec := range v.records {
		if rec.ID == prev.ID {
			v.records[i] = prev
			v.notifyLocked()
			return
		}
	}
}

// Find returns the record with the given id.
func (v *View) Find(id string) (Record, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, rec := range v.records {
		if rec.ID == id {
			return rec, true
		}
	}
	return Record{}, false
}

// BeginRefresh marks the start of a fetch cycle and returns its generation.
// A completion whose generation is no longer current is stale and discarded.
func (v *View) BeginRefresh() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gen++
	return v.gen
}

// ReplaceWithReconciled swaps in a freshly reconciled list, unless a newer
// refresh cycle has started since gen was issued.
func (v *View) ReplaceWithReconciled(gen uint64, recs []Record) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		return false
	}
	v.records = append([]Record(nil), recs...)
	v.notifyLocked()
	return true
}

// Subscribe registers a snapshot listener. The returned cancel func detaches
// it. A slow subscriber only ever sees the latest snapshot; intermediate ones
// are dropped.
func (v *View) Subscribe() (<-chan []Record, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := v.nextSub
	v.nextSub++
	ch := make(chan []Record, 1)
	v.subs[id] = ch

	cancel := func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if _, ok := v.subs[id]; ok {
			delete(v.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (v *View) snapshotLocked() []Record {
	return append([]Record(nil), v.records...)
}

func (v *View) notifyLocked() {
	snap := v.snapshotLocked()
	for _, ch := range v.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
