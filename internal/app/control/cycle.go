package control

import "github.com/osa030/syncscreen/internal/app/playback"

// Volume stepping
const (
	VolumeStep = 5
	MaxVolume  = 100
)

// Cycle is a cyclic cursor over a fixed, non-empty set of values.
// The first call to Next returns the first value; after the last value it
// wraps to the first again. A Cycle can only be restarted by creating a new one.
type Cycle[T any] struct {
	values []T
	next   int
	count  int
}

// NewCycle creates a cursor over values. It panics if values is empty.
func NewCycle[T any](values []T) *Cycle[T] {
	if len(values) == 0 {
		panic("control: empty cycle")
	}
	vs := make([]T, len(values))
	copy(vs, values)
	return &Cycle[T]{values: vs}
}

// Next advances the cursor and returns the value it lands on.
func (c *Cycle[T]) Next() T {
	v := c.values[c.next]
	c.next = (c.next + 1) % len(c.values)
	c.count++
	return v
}

// Peek returns the value the next call to Next would return.
func (c *Cycle[T]) Peek() T {
	return c.values[c.next]
}

// Count returns how many times Next has been called.
func (c *Cycle[T]) Count() int {
	return c.count
}

// Len returns the number of distinct values.
func (c *Cycle[T]) Len() int {
	return len(c.values)
}

// VolumeLevels returns 0, 5, ..., 100.
func VolumeLevels() []int {
	levels := make([]int, 0, MaxVolume/VolumeStep+1)
	for v := 0; v <= MaxVolume; v += VolumeStep {
		levels = append(levels, v)
	}
	return levels
}

// NewLoopModeCycle returns a fresh loop-mode cursor.
func NewLoopModeCycle() *Cycle[playback.LoopMode] {
	return NewCycle(playback.LoopModes)
}

// NewVolumeCycle returns a fresh volume cursor.
func NewVolumeCycle() *Cycle[int] {
	return NewCycle(VolumeLevels())
}
