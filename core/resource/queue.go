package resource

// entryTag marks whether a queue slot still holds work.
type entryTag uint8

const (
	// tagInvalidated slots are skipped when dequeued.
	tagInvalidated entryTag = iota
	tagValid
)

type queueEntry struct {
	tag entryTag
	op  Operation
}

// opRing is a FIFO of operations stored in a growable ring buffer. Cancelled
// operations are invalidated in place instead of being removed, so
// cancellation never compacts the buffer.
type opRing struct {
	buf  []queueEntry
	head int
	n    int // occupied slots, valid or not
	live int // valid slots
}

const initialRingSize = 64

func (q *opRing) len() int { return q.n }

func (q *opRing) at(i int) *queueEntry {
	return &q.buf[(q.head+i)%len(q.buf)]
}

func (q *opRing) push(op Operation) {
	if q.n == len(q.buf) {
		q.grow()
	}
	*q.at(q.n) = queueEntry{tag: tagValid, op: op}
	q.n++
	q.live++
}

// pop removes the oldest slot, valid or not.
func (q *opRing) pop() (queueEntry, bool) {
	if q.n == 0 {
		return queueEntry{}, false
	}
	e := q.buf[q.head]
	q.buf[q.head] = queueEntry{}
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	if e.tag == tagValid {
		q.live--
	}
	if q.n == 0 {
		q.head = 0
	}
	return e, true
}

func (q *opRing) invalidate(i int) bool {
	e := q.at(i)
	if e.tag != tagValid {
		return false
	}
	*e = queueEntry{tag: tagInvalidated}
	q.live--
	return true
}

// lastLive returns the index of the newest valid operation targeting r, or -1.
func (q *opRing) lastLive(r Resource) int {
	for i := q.n - 1; i >= 0; i-- {
		e := q.at(i)
		if e.tag == tagValid && e.op.Resource == r {
			return i
		}
	}
	return -1
}

func (q *opRing) grow() {
	size := len(q.buf) * 2
	if size == 0 {
		size = initialRingSize
	}
	buf := make([]queueEntry, size)
	for i := 0; i < q.n; i++ {
		buf[i] = *q.at(i)
	}
	q.buf = buf
	q.head = 0
}
