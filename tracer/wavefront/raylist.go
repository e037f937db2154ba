package wavefront

import (
	"fmt"

	"github.com/achilleasa/wavefront/tracer/device"
)

// A device-resident list of path slot indices and its length counter.
type rayList struct {
	Indices *device.Buffer
	Count   *device.Buffer
}

// A ping-pong pair of ray lists. Within a bounce the current list is read
// and the next list is appended to; Swap exchanges their roles.
type rayLists struct {
	lists [2]rayList
	cur   int
}

func newRayLists(bp *bufferPool) *rayLists {
	return &rayLists{
		lists: [2]rayList{
			{Indices: bp.RayLists[0], Count: bp.RayCounts[0]},
			{Indices: bp.RayLists[1], Count: bp.RayCounts[1]},
		},
	}
}

// Get the list that is consumed by the current bounce.
func (rl *rayLists) Current() rayList {
	return rl.lists[rl.cur]
}

// Get the list that is populated by the current bounce.
func (rl *rayLists) Next() rayList {
	return rl.lists[1-rl.cur]
}

// Exchange the current and next lists.
func (rl *rayLists) Swap() {
	rl.cur = 1 - rl.cur
}

// Zero the next list's counter.
func (rl *rayLists) ResetCounter() error {
	if err := rl.Next().Count.Fill(uint32(0), 0, 0); err != nil {
		return fmt.Errorf("ray lists: could not reset counter: %w", err)
	}
	return nil
}

// Read back the number of entries appended to the next list. This call
// blocks until all previously enqueued work has completed.
func (rl *rayLists) ReadCount() (uint32, error) {
	out := make([]uint32, 1)
	if err := rl.Next().Count.ReadData(0, 0, sizeofCounter, out); err != nil {
		return 0, fmt.Errorf("ray lists: could not read counter: %w", err)
	}
	return out[0], nil
}
