package parser

import "sync"

// Document is a live, shared statement tree. Snapshot hands out a private
// deep copy taken under the read lock, and any mutation happens on that copy.
// Read lends the live tree to a read-only visitor.
type Document struct {
	mu      sync.RWMutex
	root    *Node
	err     error
	version uint64
}

// NewDocument parses text into a new Document.
func NewDocument(text string) *Document {
	d := &Document{}
	d.Update(text)
	return d
}

// Update reparses the document under the write lock and returns the parse
// error, if any. The tree is replaced even when the text does not parse.
func (d *Document) Update(text string) error {
	root, err := Parse(text)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.root = root
	d.err = err
	d.version++
	return err
}

// Snapshot implements Snapshotter.
func (d *Document) Snapshot() *Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.root.Clone()
}

// Read implements Reader. fn runs under the read lock, so Update waits for
// it.
func (d *Document) Read(fn func(root *Node)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn(d.root)
}

// Text returns the current document text.
func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.root.Text()
}

// Err returns the parse error of the current text.
func (d *Document) Err() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.err
}

// Version increments on every Update.
func (d *Document) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}
