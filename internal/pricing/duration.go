package pricing

// ServiceDuration carries the scheduling characteristics of one service.
type ServiceDuration struct {
	DurationMin     int
	BufferBeforeMin int
	BufferAfterMin  int
}

// Window is the composed appointment timing for a booking.
// BlockMin governs calendar conflict checks; VisibleMin is the
// customer-facing event length sent to the external calendar (buffers are
// internal scheduling margin, not customer time).
type Window struct {
	BlockMin   int
	VisibleMin int
}

// ComposeWindow sums core durations and buffers across the selected services
// and adds the admin-level default buffer once.
func ComposeWindow(services []ServiceDuration, defaultBufferMin int) Window {
	var w Window
	for _, s := range services {
		if s.DurationMin > 0 {
			w.VisibleMin += s.DurationMin
			w.BlockMin += s.DurationMin
		}
		if s.BufferBeforeMin > 0 {
			w.BlockMin += s.BufferBeforeMin
		}
		if s.BufferAfterMin > 0 {
			w.BlockMin += s.BufferAfterMin
		}
	}
	if defaultBufferMin > 0 {
		w.BlockMin += defaultBufferMin
	}
	return w
}
