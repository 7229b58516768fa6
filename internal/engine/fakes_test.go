package engine

import (
	"context"
	"sync"

	"github.com/sajib-dev/fixmate/backend/internal/models"
)

// fakeStore is an in-memory DocumentStore with hand-driven change streams.
type fakeStore struct {
	mu   sync.Mutex
	docs map[string]map[string]map[string]any

	streams map[string][]*fakeStream

	failInsert error
	failUpdate error
	failDelete error
	failWatch  error

	insertCount int
	updateCount int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:    make(map[string]map[string]map[string]any),
		streams: make(map[string][]*fakeStream),
	}
}

func cloneDoc(doc map[string]any) map[string]any {
	cp := make(map[string]any, len(doc))
	for k, v := range doc {
		cp[k] = v
	}
	return cp
}

func (f *fakeStore) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (f *fakeStore) Query(ctx context.Context, collection string, filter map[string]any, orderBy string, descending bool) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, doc := range f.docs[collection] {
		match := true
		for k, v := range filter {
			if doc[k] != v {
				match = false
				break
			}
		}
		if match {
			out = append(out, cloneDoc(doc))
		}
	}
	return out, nil
}

func (f *fakeStore) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert != nil {
		return "", f.failInsert
	}
	f.insertCount++
	id, _ := fields["_id"].(string)
	if f.docs[collection] == nil {
		f.docs[collection] = make(map[string]map[string]any)
	}
	f.docs[collection][id] = cloneDoc(fields)
	return id, nil
}

func (f *fakeStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return f.failUpdate
	}
	doc, ok := f.docs[collection][id]
	if !ok {
		return ErrNotFound
	}
	f.updateCount++
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete != nil {
		return f.failDelete
	}
	if _, ok := f.docs[collection][id]; !ok {
		return ErrNotFound
	}
	delete(f.docs[collection], id)
	return nil
}

func (f *fakeStore) Watch(ctx context.Context, collection string, filter map[string]any) (ChangeStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWatch != nil {
		return nil, f.failWatch
	}
	s := &fakeStream{
		events: make(chan ChangeEvent, 32),
		errs:   make(chan error, 1),
	}
	f.streams[collection] = append(f.streams[collection], s)
	return s, nil
}

// emit pushes an event to every open stream of the collection.
func (f *fakeStore) emit(collection string, ev ChangeEvent) {
	f.mu.Lock()
	streams := append([]*fakeStream{}, f.streams[collection]...)
	f.mu.Unlock()
	for _, s := range streams {
		s.events <- ev
	}
}

// failStreams injects a stream failure into every open stream of the
// collection.
func (f *fakeStore) failStreams(collection string, err error) {
	f.mu.Lock()
	streams := append([]*fakeStream{}, f.streams[collection]...)
	f.mu.Unlock()
	for _, s := range streams {
		select {
		case s.errs <- err:
		default:
		}
	}
}

func (f *fakeStore) doc(collection, id string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[collection][id]
	if !ok {
		return nil
	}
	return cloneDoc(doc)
}

type fakeStream struct {
	events chan ChangeEvent
	errs   chan error
}

func (s *fakeStream) Next(ctx context.Context) (ChangeEvent, error) {
	select {
	case <-ctx.Done():
		return ChangeEvent{}, ctx.Err()
	case err := <-s.errs:
		return ChangeEvent{}, err
	case ev := <-s.events:
		return ev, nil
	}
}

func (s *fakeStream) Close(ctx context.Context) error { return nil }

// fakeArchive is an in-memory NotificationArchive.
type fakeArchive struct {
	mu   sync.Mutex
	bids map[string]models.BidNotification
	jobs map[string]models.JobNotification
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{
		bids: make(map[string]models.BidNotification),
		jobs: make(map[string]models.JobNotification),
	}
}

func (a *fakeArchive) SaveBidNotification(ctx context.Context, n *models.BidNotification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bids[n.ID] = *n
	return nil
}

func (a *fakeArchive) MarkBidNotificationRead(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, ok := a.bids[id]
	if !ok {
		return ErrNotFound
	}
	n.IsRead = true
	a.bids[id] = n
	return nil
}

func (a *fakeArchive) SaveJobNotification(ctx context.Context, n *models.JobNotification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.jobs[n.ID] = *n
	return nil
}

func (a *fakeArchive) BidNotifications(ctx context.Context) ([]models.BidNotification, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.BidNotification, 0, len(a.bids))
	for _, n := range a.bids {
		out = append(out, n)
	}
	return out, nil
}

func (a *fakeArchive) JobNotifications(ctx context.Context) ([]models.JobNotification, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.JobNotification, 0, len(a.jobs))
	for _, n := range a.jobs {
		out = append(out, n)
	}
	return out, nil
}
