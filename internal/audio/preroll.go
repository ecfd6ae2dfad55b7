package audio

import "time"

// DefaultPreRoll is how much audio before the start signal each recording keeps.
const DefaultPreRoll = 200 * time.Millisecond

// PreRollRing is a fixed-capacity ring of the most recent conditioned
// samples. Push never blocks: when full it overwrites the oldest slot.
//
// PreRollRing is not safe for concurrent use; Engine guards it with its own
// mutex.
type PreRollRing struct {
	buf  []float32
	head int // next write position
	n    int // valid samples
}

// NewPreRollRing returns a ring holding at most capacity samples. A
// capacity below 1 is raised to 1.
func NewPreRollRing(capacity int) *PreRollRing {
	if capacity < 1 {
		capacity = 1
	}
	return &PreRollRing{buf: make([]float32, capacity)}
}

// PreRollSamples returns the ring capacity for d worth of audio at sampleRate.
func PreRollSamples(sampleRate int, d time.Duration) int {
	return int(int64(sampleRate) * int64(d) / int64(time.Second))
}

// Push stores one sample, evicting the oldest when the ring is full.
func (r *PreRollRing) Push(s float32) {
	r.buf[r.head] = s
	r.head++
	if r.head == len(r.buf) {
		r.head = 0
	}
	if r.n < len(r.buf) {
		r.n++
	}
}

// DrainInto appends every buffered sample to dst in chronological order and
// empties the ring.
func (r *PreRollRing) DrainInto(dst []float32) []float32 {
	start := r.head - r.n
	if start < 0 {
		start += len(r.buf)
	}
	if start+r.n <= len(r.buf) {
		dst = append(dst, r.buf[start:start+r.n]...)
	} else {
		dst = append(dst, r.buf[start:]...)
		dst = append(dst, r.buf[:r.head]...)
	}
	r.head, r.n = 0, 0
	return dst
}

// Drain returns a copy of the buffered samples and empties the ring.
func (r *PreRollRing) Drain() []float32 {
	return r.DrainInto(make([]float32, 0, r.n))
}

// Len returns the number of buffered samples.
func (r *PreRollRing) Len() int { return r.n }

// Cap returns the ring capacity.
func (r *PreRollRing) Cap() int { return len(r.buf) }
