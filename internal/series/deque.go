package series

const minDequeCap = 16

// deque is a growable ring buffer of readings. Index 0 is the front (newest).
type deque struct {
	buf   []Reading
	head  int
	count int
}

// Len returns the number of readings held.
func (d *deque) Len() int {
	return d.count
}

// PushFront inserts r as the newest element.
func (d *deque) PushFront(r Reading) {
	if d.count == len(d.buf) {
		d.resize(max(2*len(d.buf), minDequeCap))
	}
	d.head = (d.head - 1 + len(d.buf)) % len(d.buf)
	d.buf[d.head] = r
	d.count++
}

// Back returns the oldest element.
func (d *deque) Back() (Reading, bool) {
	if d.count == 0 {
		return Reading{}, false
	}
	return d.buf[(d.head+d.count-1)%len(d.buf)], true
}

// PopBack removes the oldest element. It is a no-op on an empty deque.
func (d *deque) PopBack() {
	if d.count == 0 {
		return
	}
	idx := (d.head + d.count - 1) % len(d.buf)
	d.buf[idx] = Reading{}
	d.count--

	// give memory back after a large window has been narrowed
	if len(d.buf) > minDequeCap && d.count < len(d.buf)/4 {
		d.resize(len(d.buf) / 2)
	}
}

// At returns the i-th element counting from the front (0 = newest).
func (d *deque) At(i int) Reading {
	return d.buf[(d.head+i)%len(d.buf)]
}

func (d *deque) resize(n int) {
	nb := make([]Reading, n)
	for i := 0; i < d.count; i++ {
		nb[i] = d.buf[(d.head+i)%len(d.buf)]
	}
	d.buf = nb
	d.head = 0
}
