package kernel

import (
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reactant-dev/reactant/internal/domain/errors"
)

const (
	// queueSize bounds the in-process work queue; run requests beyond it are
	// rejected rather than blocking the coordinator.
	queueSize = 64

	dialTimeout = 5 * time.Second
)

// Sink receives streamed evaluator replies for one notebook session.
type Sink interface {
	Deliver(reply *Reply)
}

// Bridge owns the two channels to the external evaluator: a request channel
// and a streaming reply channel. A single worker drains the work queue in
// FIFO order, sends each request, then consumes reply frames until one with
// Ended set, routing every frame to the session sink registered for its
// notebook. The evaluator process is external; the bridge never restarts it.
type Bridge struct {
	requestAddr string
	streamAddr  string

	queue chan *Request
	done  chan struct{}
	once  sync.Once

	mu       sync.RWMutex
	sinks    map[string]Sink
	observer func(*Reply)

	requestConn net.Conn
	streamConn  net.Conn
}

// NewBridge creates a Bridge talking to the given transport addresses.
func NewBridge(requestAddr, streamAddr string) *Bridge {
	return &Bridge{
		requestAddr: requestAddr,
		streamAddr:  streamAddr,
		queue:       make(chan *Request, queueSize),
		done:        make(chan struct{}),
		sinks:       make(map[string]Sink),
	}
}

// RegisterSink routes replies for notebookID to sink.
func (b *Bridge) RegisterSink(notebookID string, sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks[notebookID] = sink
}

// UnregisterSink removes the sink for notebookID.
func (b *Bridge) UnregisterSink(notebookID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sinks, notebookID)
}

// SetReplyObserver installs a hook invoked for every reply before sink
// delivery. The coordinator uses it to fold locals back into cells. Must be
// called before Run.
func (b *Bridge) SetReplyObserver(fn func(*Reply)) {
	b.observer = fn
}

// Enqueue appends a request to the work queue and returns immediately.
func (b *Bridge) Enqueue(req *Request) error {
	select {
	case <-b.done:
		return errors.NewTransportError("enqueue", net.ErrClosed)
	default:
	}
	select {
	case b.queue <- req:
		return nil
	default:
		return errors.NewTransportError("enqueue", errQueueFull)
	}
}

var errQueueFull = &queueFullError{}

type queueFullError struct{}

func (*queueFullError) Error() string { return "evaluator work queue is full" }

// Run drains the work queue until Close. It is meant to be called in its own
// goroutine; requests are processed strictly one at a time.
func (b *Bridge) Run() {
	for {
		select {
		case <-b.done:
			return
		case req := <-b.queue:
			b.process(req)
		}
	}
}

// Close stops the worker and drops the evaluator connections.
func (b *Bridge) Close() error {
	b.once.Do(func() {
		close(b.done)
		b.dropConns()
	})
	return nil
}

func (b *Bridge) process(req *Request) {
	log.Debug().
		Str("notebook_uuid", req.NotebookID).
		Str("cell_uuid", req.CellID).
		Int("cells", len(req.ExecutionCells)).
		Msg("sending request to evaluator")

	if err := b.ensureConns(); err != nil {
		b.fail(req, errors.NewTransportError("dial", err))
		return
	}
	if err := writeFrame(b.requestConn, req); err != nil {
		b.dropConns()
		b.fail(req, errors.NewTransportError("send", err))
		return
	}

	for {
		var reply Reply
		if err := readFrame(b.streamConn, &reply); err != nil {
			b.dropConns()
			b.fail(req, errors.NewTransportError("receive", err))
			return
		}
		b.dispatch(&reply)
		if reply.Ended {
			return
		}
	}
}

// fail aborts the current request: the sink gets a synthesized error reply
// with Ended set, and the worker moves on to the next queued request.
func (b *Bridge) fail(req *Request, terr error) {
	log.Warn().
		Str("notebook_uuid", req.NotebookID).
		Str("cell_uuid", req.CellID).
		Err(terr).
		Msg("evaluator transport failure")

	b.dispatch(&Reply{
		NotebookID: req.NotebookID,
		CellID:     req.CellID,
		Error:      terr.Error(),
		Ended:      true,
	})
}

func (b *Bridge) dispatch(reply *Reply) {
	b.mu.RLock()
	observer := b.observer
	sink, ok := b.sinks[reply.NotebookID]
	b.mu.RUnlock()

	if observer != nil {
		observer(reply)
	}
	if !ok {
		log.Warn().
			Str("notebook_uuid", reply.NotebookID).
			Msg("no session sink registered, dropping reply")
		return
	}
	sink.Deliver(reply)
}

func (b *Bridge) ensureConns() error {
	if b.requestConn == nil {
		conn, err := net.DialTimeout("tcp", b.requestAddr, dialTimeout)
		if err != nil {
			return err
		}
		b.requestConn = conn
	}
	if b.streamConn == nil {
		conn, err := net.DialTimeout("tcp", b.streamAddr, dialTimeout)
		if err != nil {
			return err
		}
		b.streamConn = conn
	}
	return nil
}

func (b *Bridge) dropConns() {
	if b.requestConn != nil {
		b.requestConn.Close()
		b.requestConn = nil
	}
	if b.streamConn != nil {
		b.streamConn.Close()
		b.streamConn = nil
	}
}
