package expreplay

import (
	"golang.org/x/exp/rand"
)

// SelectorType determines how a Dataset chooses the transitions it
// samples
type SelectorType string

const (
	Uniform SelectorType = "Uniform"
	Fifo    SelectorType = "Fifo"
)

// Selector implements functionality for choosing which transitions of a
// Dataset should be sampled
type Selector interface {
	// choose selects the indices at which transitions should be drawn
	// from a dataset holding n transitions
	choose(n int) []int

	// BatchSize returns the number of elements that will be selected
	BatchSize() int
}

// CreateSelector returns a new Selector of the given type
func CreateSelector(t SelectorType, batchSize int, seed uint64) Selector {
	switch t {
	case Fifo:
		return NewFifoSelector(batchSize)
	default:
		return NewUniformSelector(batchSize, seed)
	}
}

// uniformSelector is a Selector which selects transitions uniformly
// randomly
type uniformSelector struct {
	samples int
	rng     *rand.Rand
}

// NewUniformSelector returns a new Selector which selects transitions
// uniformly randomly, with replacement
func NewUniformSelector(samples int, seed uint64) Selector {
	source := rand.NewSource(seed)
	rng := rand.New(source)

	return &uniformSelector{samples: samples, rng: rng}
}

// BatchSize gets the number of samples in a batch
func (u *uniformSelector) BatchSize() int {
	return u.samples
}

// choose selects a number of indices at which to draw transitions
func (u *uniformSelector) choose(n int) []int {
	selected := make([]int, u.BatchSize())
	for i := range selected {
		selected[i] = u.rng.Intn(n)
	}
	return selected
}

// fifoSelector is a Selector which sweeps through a dataset in the
// order the transitions were recorded, wrapping around at the end
type fifoSelector struct {
	samples int
	next    int
}

// NewFifoSelector returns a new Selector which draws transitions in the
// order they were recorded
func NewFifoSelector(samples int) Selector {
	return &fifoSelector{samples: samples}
}

// BatchSize gets the number of samples in a batch
func (f *fifoSelector) BatchSize() int {
	return f.samples
}

// choose selects a number of indices at which to draw transitions
func (f *fifoSelector) choose(n int) []int {
	selected := make([]int, f.BatchSize())
	for i := range selected {
		if f.next >= n {
			f.next = 0
		}
		selected[i] = f.next
		f.next++
	}
	return selected
}
