package dom

import (
	"sync"
	"sync/atomic"
	"time"
)

// SubscribeOptions tunes batching behaviour for one subscription.
type SubscribeOptions struct {
	// Window is the debounce time after the last mutation before a batch is
	// flushed. Default: 250ms.
	Window time.Duration
	// MaxBuffer flushes immediately once this many records accumulate.
	// Default: 1000.
	MaxBuffer int
	// AttrFilter restricts OpAttr/OpAttrDel records to the named attributes.
	// Empty means all attributes are reported.
	AttrFilter []string
}

func (o *SubscribeOptions) defaults() {
	if o.Window <= 0 {
		o.Window = 250 * time.Millisecond
	}
	if o.MaxBuffer <= 0 {
		o.MaxBuffer = 1000
	}
}

// Subscription receives debounced mutation batches from a Document.
type Subscription struct {
	doc  *Document
	opts SubscribeOptions
	attr map[string]bool // nil = no filter

	mu    sync.Mutex
	buf   []Record
	timer *time.Timer

	seq  atomic.Uint64
	ch   chan Batch
	done chan struct{}
	once sync.Once

	// sendMu serialises batch sends with the channel close in Close.
	sendMu sync.Mutex
	closed bool
}

// Subscribe registers a new subscription on the document. The caller must
// drain Batches and call Close when finished.
func (d *Document) Subscribe(opts SubscribeOptions) *Subscription {
	opts.defaults()

	s := &Subscription{
		doc:  d,
		opts: opts,
		ch:   make(chan Batch, 16),
		done: make(chan struct{}),
	}
	if len(opts.AttrFilter) > 0 {
		s.attr = make(map[string]bool, len(opts.AttrFilter))
		for _, name := range opts.AttrFilter {
			s.attr[name] = true
		}
	}

	d.mu.Lock()
	d.subs[s] = struct{}{}
	d.mu.Unlock()
	return s
}

// Batches is the channel of flushed mutation batches. It is closed by Close.
func (s *Subscription) Batches() <-chan Batch { return s.ch }

// Close flushes pending records, detaches from the document, and closes the
// batch channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.doc.mu.Lock()
		delete(s.doc.subs, s)
		s.doc.mu.Unlock()

		// Unblock any in-flight send first: with done closed, a blocked emit
		// drops its batch instead of waiting on a consumer that is gone.
		close(s.done)
		s.flush()

		s.mu.Lock()
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.mu.Unlock()

		s.sendMu.Lock()
		s.closed = true
		close(s.ch)
		s.sendMu.Unlock()
	})
}

// add buffers a record and (re)arms the debounce timer. Never blocks: the
// caller holds the document lock.
func (s *Subscription) add(rec Record) {
	if (rec.Op == OpAttr || rec.Op == OpAttrDel) && s.attr != nil && !s.attr[rec.Name] {
		return
	}

	s.mu.Lock()
	s.buf = append(s.buf, rec)
	full := len(s.buf) >= s.opts.MaxBuffer
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.opts.Window, s.flush)
	s.mu.Unlock()

	if full {
		go s.flush()
	}
}

// flush compresses and emits the buffered records.
func (s *Subscription) flush() {
	s.mu.Lock()
	if len(s.buf) == 0 {
		s.mu.Unlock()
		return
	}
	records := compress(s.buf)
	s.buf = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.emit(Batch{Seq: s.seq.Add(1), Records: records, Time: time.Now()})
}

// emit delivers one batch. Holding sendMu across the send means Close
// cannot shut the channel under a sender; the done channel keeps a send
// from blocking forever once the consumer is gone.
func (s *Subscription) emit(batch Batch) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return
	}
	// Buffered send wins even when done is already closed, so the final
	// flush in Close still delivers.
	select {
	case s.ch <- batch:
		return
	default:
	}
	select {
	case s.ch <- batch:
	case <-s.done:
	}
}

// compress collapses consecutive mutations that supersede one another:
// N consecutive text records on the same node keep the last (old value from
// the first); likewise for attr records on the same (node, name). Structural
// records are never compressed.
func compress(records []Record) []Record {
	if len(records) <= 1 {
		return records
	}

	result := make([]Record, 0, len(records))
	for i := 0; i < len(records); i++ {
		rec := records[i]

		switch rec.Op {
		case OpText:
			firstOld := rec.OldValue
			j := i + 1
			for j < len(records) && records[j].Op == OpText && records[j].Node == rec.Node {
				rec = records[j]
				j++
			}
			rec.OldValue = firstOld
			result = append(result, rec)
			i = j - 1

		case OpAttr:
			firstOld := rec.OldValue
			j := i + 1
			for j < len(records) && records[j].Op == OpAttr &&
				records[j].Node == rec.Node && records[j].Name == rec.Name {
				rec = records[j]
				j++
			}
			rec.OldValue = firstOld
			result = append(result, rec)
			i = j - 1

		default:
			result = append(result, rec)
		}
	}
	return result
}
