package kernelmap

// RingbufRecord is one decoded event read off a ring buffer.
type RingbufRecord struct {
	RawSample []byte
}

// RingbufSource is satisfied by *ringbuf.Reader (see linux_ringbuf.go) and by
// a fake in tests. Read blocks until an event arrives, the reader is closed,
// or an error occurs.
type RingbufSource interface {
	Read() (RingbufRecord, error)
	Close() error
}

// Handler is invoked once per ring buffer event; a negative return value
// signals the framework to stop consuming (spec.md §4.2
// "ringbuf_handler(name, fn(bytes)->i32)").
type Handler func(raw []byte) int32

// RingbufHandler binds a ring buffer to its consumer function. Consume spawns no
// goroutine itself — the BPF sampler framework owns the dedicated consumer
// task per spec.md §4.4 step 7; this type only holds the binding.
type RingbufHandler struct {
	name    string
	handler Handler
}

// NewRingbufHandler builds a binding between a named ring buffer and a
// handler function.
func NewRingbufHandler(name string, handler Handler) *RingbufHandler {
	return &RingbufHandler{name: name, handler: handler}
}

// Name returns the bound ring buffer's name.
func (b *RingbufHandler) Name() string { return b.name }

// Consume reads events from src and passes each to the handler. It returns
// nil once stop is closed (checked before each read) or the handler returns
// a negative value. Any error from src.Read is returned unchanged, including
// the error a reader reports after being closed from another goroutine.
func (b *RingbufHandler) Consume(src RingbufSource, stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}
		rec, err := src.Read()
		if err != nil {
			return err
		}
		if b.handler(rec.RawSample) < 0 {
			return nil
		}
	}
}
