package archive

import "fmt"

// Opener materializes the container for an ordinal and reports how many
// items it already holds. Local folders and remote albums both open this
// way, which is what lets one allocator drive both.
type Opener[C any] func(ordinal int) (container C, occupancy int, err error)

// Allocator hands out capacity-bounded containers in ordinal order,
// starting at 1. Occupancy is queried once per container, when the
// allocator first moves to it; after that the in-memory count is the truth
// and callers bump it with Record after each successful placement.
type Allocator[C any] struct {
	capacity int
	open     Opener[C]

	ordinal int
	count   int
	current C
	opened  bool
}

// NewAllocator creates an allocator that opens containers on demand.
func NewAllocator[C any](capacity int, open Opener[C]) *Allocator[C] {
	return &Allocator[C]{
		capacity: capacity,
		open:     open,
		ordinal:  1,
	}
}

// Allocate returns the container the next item belongs in, advancing past
// any container that is already full. A container inherited from a prior
// run can be full before this run places anything in it.
func (a *Allocator[C]) Allocate() (C, error) {
	if !a.opened {
		if err := a.openOrdinal(a.ordinal); err != nil {
			var zero C
			return zero, err
		}
	}

	for a.count >= a.capacity {
		if err := a.openOrdinal(a.ordinal + 1); err != nil {
			var zero C
			return zero, err
		}
	}

	return a.current, nil
}

// Record notes that one item was placed in the current container.
func (a *Allocator[C]) Record() {
	a.count++
}

// Ordinal returns the ordinal of the current container, or 0 before the
// first Allocate.
func (a *Allocator[C]) Ordinal() int {
	if !a.opened {
		return 0
	}
	return a.ordinal
}

func (a *Allocator[C]) openOrdinal(ordinal int) error {
	container, occupancy, err := a.open(ordinal)
	if err != nil {
		return fmt.Errorf("failed to open container %d: %w", ordinal, err)
	}
	a.ordinal = ordinal
	a.current = container
	a.count = occupancy
	a.opened = true
	return nil
}
