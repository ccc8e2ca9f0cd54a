// Package dom provides a mutable HTML document tree whose writes are
// observable. Every text or attribute mutation performed through a Document
// is recorded and published to subscribers as debounced batches, so a
// consumer can react to changes made by any party sharing the tree.
//
// dom records, it does not interpret. Consumers like the translation engine
// decide what a mutation means.
package dom

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/net/html"
)

// Op is the type of document mutation observed.
type Op string

const (
	OpText    Op = "text"     // text node data changed
	OpAttr    Op = "attr"     // attribute set or changed
	OpAttrDel Op = "attr_del" // attribute removed
	OpInsert  Op = "insert"   // node (subtree) inserted
	OpRemove  Op = "remove"   // node (subtree) removed
)

// Record is a single document mutation. Node identity is the in-process
// *html.Node pointer: valid for the lifetime of the document, never
// serialised across a process boundary.
type Record struct {
	Op       Op
	Node     *html.Node // text node for OpText, element otherwise
	Name     string     // attribute name for OpAttr/OpAttrDel
	Value    string     // new value
	OldValue string     // previous value
}

// Batch is the atomic unit delivered to subscribers: all mutations collected
// during one debounce window, compressed.
type Batch struct {
	Seq     uint64
	Records []Record
	Time    time.Time
}

// HashHTML returns the BLAKE2b-256 hex digest of serialised HTML, used to
// compare document snapshots cheaply.
func HashHTML(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
