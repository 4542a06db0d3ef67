package experience

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/rs/zerolog"
)

const defaultCapacity = 10000

// ErrBufferClosed is returned when operations are attempted on a closed buffer
var ErrBufferClosed = errors.New("experience buffer is closed")

// Buffer is a thread-safe circular buffer of transitions. When full, the
// oldest transition is dropped to make room.
type Buffer struct {
	mu       sync.RWMutex
	buffer   []*Transition
	capacity int
	size     int
	head     int // Write position
	tail     int // Read position
	closed   bool

	totalAdded   int64
	totalDropped int64
	totalSampled int64

	logger zerolog.Logger
}

// NewBuffer creates a buffer; a non-positive capacity selects the default.
func NewBuffer(capacity int, logger zerolog.Logger) *Buffer {
	if capacity <= 0 {
		capacity = defaultCapacity
	}

	return &Buffer{
		buffer:   make([]*Transition, capacity),
		capacity: capacity,
		logger:   logger.With().Str("component", "experience_buffer").Logger(),
	}
}

// Add appends t, dropping the oldest transition if the buffer is full.
func (b *Buffer) Add(t *Transition) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBufferClosed
	}
	b.push(t)
	return nil
}

func (b *Buffer) push(t *Transition) {
	if b.size >= b.capacity {
		b.tail = (b.tail + 1) % b.capacity
		b.totalDropped++
		b.logger.Debug().
			Int64("dropped_total", b.totalDropped).
			Msg("Buffer full, dropping oldest transition")
	} else {
		b.size++
	}

	b.buffer[b.head] = t
	b.head = (b.head + 1) % b.capacity
	b.totalAdded++
}

// Get removes and returns up to n of the oldest transitions.
func (b *Buffer) Get(n int) []*Transition {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.take(n)
}

// Drain removes and returns every transition, oldest first.
func (b *Buffer) Drain() []*Transition {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.take(b.size)
}

func (b *Buffer) take(n int) []*Transition {
	if n > b.size {
		n = b.size
	}
	if n < 0 {
		n = 0
	}

	result := make([]*Transition, n)
	for i := 0; i < n; i++ {
		result[i] = b.buffer[b.tail]
		b.buffer[b.tail] = nil
		b.tail = (b.tail + 1) % b.capacity
		b.size--
	}
	return result
}

// Sample returns up to n distinct transitions chosen uniformly at random
// without removing them.
func (b *Buffer) Sample(n int, rng *rand.Rand) []*Transition {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.size {
		n = b.size
	}
	if n <= 0 {
		return []*Transition{}
	}

	result := make([]*Transition, n)
	for i, offset := range rng.Perm(b.size)[:n] {
		result[i] = b.buffer[(b.tail+offset)%b.capacity]
	}
	b.totalSampled += int64(n)
	return result
}

func (b *Buffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

func (b *Buffer) Capacity() int {
	return b.capacity
}

// Close rejects further adds. Stored transitions stay readable.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	b.logger.Info().
		Int64("total_added", b.totalAdded).
		Int64("total_dropped", b.totalDropped).
		Int64("total_sampled", b.totalSampled).
		Msg("Buffer closed")
	return nil
}

// Stats returns buffer statistics
func (b *Buffer) Stats() BufferStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return BufferStats{
		CurrentSize:    b.size,
		Capacity:       b.capacity,
		TotalAdded:     b.totalAdded,
		TotalDropped:   b.totalDropped,
		TotalSampled:   b.totalSampled,
		UtilizationPct: float64(b.size) / float64(b.capacity) * 100,
	}
}

// BufferStats contains buffer statistics
type BufferStats struct {
	CurrentSize    int
	Capacity       int
	TotalAdded     int64
	TotalDropped   int64
	TotalSampled   int64
	UtilizationPct float64
}
