package event

// defaultBufsize is the initial ring capacity when none is configured.
const defaultBufsize = 64

// ring is an unbounded FIFO of results. It is owned by the channel's mover
// goroutine and is not safe for concurrent use.
type ring struct {
	buf        []Result
	init, size int
	r, w       int
}

func newRing(size int) *ring {
	if size <= 0 {
		size = defaultBufsize
	}
	return &ring{
		buf:  make([]Result, size),
		init: size,
		size: size,
	}
}

// peek returns the oldest result without removing it.
func (rb *ring) peek() (Result, bool) {
	if rb.r == rb.w {
		return nil, false
	}
	return rb.buf[rb.r], true
}

// pop removes and returns the oldest result.
func (rb *ring) pop() (Result, bool) {
	if rb.r == rb.w {
		return nil, false
	}

	item := rb.buf[rb.r]
	rb.buf[rb.r] = nil
	rb.r = (rb.r + 1) % rb.size

	// shrink back after a burst
	if rb.r == rb.w && rb.size > rb.init {
		rb.reset()
	}
	return item, true
}

// push appends a result, growing the buffer when it is full.
func (rb *ring) push(v Result) {
	next := (rb.w + 1) % rb.size
	if next == rb.r {
		rb.grow()
		next = (rb.w + 1) % rb.size
	}

	rb.buf[rb.w] = v
	rb.w = next
}

func (rb *ring) grow() {
	var size int
	if rb.size < 1024 {
		size = rb.size * 2
	} else {
		size = rb.size + rb.size/4
	}
	buf := make([]Result, size)
	n := rb.len()
	for i := range n {
		buf[i] = rb.buf[(rb.r+i)%rb.size]
	}
	rb.r = 0
	rb.w = n
	rb.size = size
	rb.buf = buf
}

func (rb *ring) len() int {
	if rb.w >= rb.r {
		return rb.w - rb.r
	}
	return rb.size - rb.r + rb.w
}

func (rb *ring) empty() bool {
	return rb.r == rb.w
}

func (rb *ring) reset() {
	rb.r = 0
	rb.w = 0
	rb.size = rb.init
	rb.buf = make([]Result, rb.init)
}
