package appointments

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/clearwell-health/patient-portal/pkg/logging"
)

func testLogger() *logging.Logger {
	return logging.NewWithWriter("error", io.Discard)
}

// sequentialIDs returns a goroutine-safe id generator: prefix-1, prefix-2, ...
func sequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}

type fakeLegacy struct {
	mu        sync.Mutex
	docs      []Document
	listErr   error
	insertErr error
	updateErr error
	updated   []string
}

func (f *fakeLegacy) ListByUser(_ context.Context, _ string) ([]Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]Document, 0, len(f.docs))
	for _, d := range f.docs {
		out = append(out, Document{ID: d.ID, Fields: copyFields(d.Fields)})
	}
	return out, nil
}

func (f *fakeLegacy) Insert(_ context.Context, _, docID string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.docs = append(f.docs, Document{ID: docID, Fields: copyFields(fields)})
	return nil
}

func (f *fakeLegacy) Update(_ context.Context, _, docID string, patch map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	for i := range f.docs {
		if f.docs[i].ID == docID {
			for k, v := range patch {
				f.docs[i].Fields[k] = v
			}
			f.updated = append(f.updated, docID)
			return nil
		}
	}
	return ErrDocNotFound
}

func (f *fakeLegacy) doc(docID string) (Document, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.ID == docID {
			return Document{ID: d.ID, Fields: copyFields(d.Fields)}, true
		}
	}
	return Document{}, false
}

type fakeGlobal struct {
	mu        sync.Mutex
	items     map[string]map[string]any
	order     []string
	queryErr  error
	putErr    error
	putHook   func(fields map[string]any) error
	updateErr error
	updated   []string
}

func newFakeGlobal() *fakeGlobal {
	return &fakeGlobal{items: map[string]map[string]any{}}
}

func (f *fakeGlobal) seed(docID string, fields map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[docID] = copyFields(fields)
	f.order = append(f.order, docID)
}

func (f *fakeGlobal) QueryByPatientID(_ context.Context, patientID string) ([]Document, error) {
	return f.query("patientId", patientID)
}

func (f *fakeGlobal) QueryByPatientUID(_ context.Context, patientUID string) ([]Document, error) {
	return f.query("patientUid", patientUID)
}

func (f *fakeGlobal) query(key, value string) ([]Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if value == "" {
		return nil, nil
	}
	var docs []Document
	for _, id := range f.order {
		if owner, _ := f.items[id][key].(string); owner == value {
			docs = append(docs, Document{ID: id, Fields: copyFields(f.items[id])})
		}
	}
	return docs, nil
}

func (f *fakeGlobal) Put(_ context.Context, docID string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	if f.putHook != nil {
		if err := f.putHook(fields); err != nil {
			return err
		}
	}
	f.items[docID] = copyFields(fields)
	f.order = append(f.order, docID)
	return nil
}

func (f *fakeGlobal) Update(_ context.Context, docID string, patch map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	item, ok := f.items[docID]
	if !ok {
		return ErrDocNotFound
	}
	for k, v := range patch {
		item[k] = v
	}
	f.updated = append(f.updated, docID)
	return nil
}

func (f *fakeGlobal) item(docID string) (map[string]any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[docID]
	if !ok {
		return nil, false
	}
	return copyFields(item), true
}

func (f *fakeGlobal) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

type fakeNotifier struct {
	events chan string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{events: make(chan string, 16)}
}

func (f *fakeNotifier) Notify(_ context.Context, eventType, _ string) {
	select {
	case f.events <- eventType:
	default:
	}
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
