package engine

import "context"

// The engine talks to its collaborators (document store, change streams,
// blob store) only through the interfaces in this file. Implementations
// live in internal/repositories.

// ChangeKind classifies a change-stream event.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// ChangeEvent is one entry of a collection's change stream, in the order
// the backing store reports them.
type ChangeEvent struct {
	Kind       ChangeKind
	Collection string
	DocumentID string

	// Document is the full document after the change. Nil for removals.
	Document map[string]any
}

// ChangeStream is a live feed of ChangeEvents for one collection.
type ChangeStream interface {
	// Next blocks until an event is available, the stream fails, or ctx is
	// done. Stream failures are returned wrapped in ErrTransientIO; the
	// caller decides retry policy.
	Next(ctx context.Context) (ChangeEvent, error)

	Close(ctx context.Context) error
}

// DocumentStore is the durable store contract. Writes return once the store
// acknowledges durability, not merely once queued.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (map[string]any, error)
	Query(ctx context.Context, collection string, filter map[string]any, orderBy string, descending bool) ([]map[string]any, error)
	Insert(ctx context.Context, collection string, fields map[string]any) (string, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Watch(ctx context.Context, collection string, filter map[string]any) (ChangeStream, error)
}

// BlobStore stores uploaded media. The engine never inspects the bytes,
// only records the resulting URL.
type BlobStore interface {
	Upload(ctx context.Context, data []byte, path string) (url string, err error)
}
