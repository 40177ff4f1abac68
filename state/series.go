package state

import "pulsefeed/models"

// SeriesBuffer is a fixed-capacity ring of price points for one symbol.
// Push is O(1); once full, every push evicts the oldest point. Timestamps
// are taken in arrival order and not verified for monotonicity.
type SeriesBuffer struct {
	points   []models.PricePoint
	capacity int
	index    int // next write position
	size     int
}

func NewSeriesBuffer(capacity int) *SeriesBuffer {
	if capacity <= 0 {
		capacity = 240
	}
	return &SeriesBuffer{
		points:   make([]models.PricePoint, capacity),
		capacity: capacity,
	}
}

// Push appends a point, evicting the oldest when the buffer is full.
func (b *SeriesBuffer) Push(ts int64, price float64) {
	b.points[b.index] = models.PricePoint{Ts: ts, Price: price}
	b.index = (b.index + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Points returns the buffered points oldest to newest.
func (b *SeriesBuffer) Points() []models.PricePoint {
	if b.size == 0 {
		return []models.PricePoint{}
	}

	start := 0
	if b.size == b.capacity {
		// buffer is full, oldest is at the write position
		start = b.index
	}

	result := make([]models.PricePoint, b.size)
	for i := 0; i < b.size; i++ {
		result[i] = b.points[(start+i)%b.capacity]
	}
	return result
}

// Len returns the current number of points.
func (b *SeriesBuffer) Len() int {
	return b.size
}

// Capacity returns the fixed buffer capacity.
func (b *SeriesBuffer) Capacity() int {
	return b.capacity
}
