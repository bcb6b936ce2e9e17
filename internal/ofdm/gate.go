package ofdm

// gate is a single-slot signal between exactly one signaller and one waiter.
// Every blocking point between the ingest path, the coordinator and the
// pipeline workers is a named gate; no goroutine polls shared state.
type gate struct {
	ch chan struct{}
}

func newGate() gate {
	return gate{ch: make(chan struct{}, 1)}
}

// signal posts the event. Posting an already-pending gate is a no-op, which
// matches the one-event-per-frame protocol.
func (g gate) signal() {
	select {
	case g.ch <- struct{}{}:
	default:
	}
}

// wait blocks for the event or for stop; it returns false once stopped.
// Stop is only consulted between frames, never mid-frame.
func (g gate) wait(stop <-chan struct{}) bool {
	select {
	case <-g.ch:
		return true
	case <-stop:
		return false
	}
}

// waitOnly blocks for the event with no stop path. Used inside a frame,
// where the peer is guaranteed to signal.
func (g gate) waitOnly() {
	<-g.ch
}
