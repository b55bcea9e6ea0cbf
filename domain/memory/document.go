package memory

import "time"

// Document is the per-user container holding all of that user's memories.
// It is the unit of remote storage and of the push-subscription channel:
// every mutation rewrites the whole document.
type Document struct {
	UID         string
	Memories    []Memory
	LastUpdated time.Time
}

// NewDocument creates an empty document for a user. Documents are created
// lazily on first access and live for the lifetime of the account.
func NewDocument(uid string) *Document {
	return &Document{
		UID:         uid,
		Memories:    []Memory{},
		LastUpdated: time.Now(),
	}
}

// Find returns the index of the memory with the given id, or -1.
func (d *Document) Find(id string) int {
	for i := range d.Memories {
		if d.Memories[i].ID == id {
			return i
		}
	}
	return -1
}

// Sorted returns a copy of the memories ordered newest first.
func (d *Document) Sorted() []Memory {
	out := make([]Memory, len(d.Memories))
	copy(out, d.Memories)
	SortNewestFirst(out)
	return out
}
