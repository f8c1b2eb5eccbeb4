package gonimbusx

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nimbuskv/gonimbusx/nimdx"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type PipelineOptions struct {
	Logger *zap.Logger

	// Endpoint names the cluster node connection this pipeline feeds.
	Endpoint string

	// MaxPendingOps bounds the correlation table; registrations beyond it
	// fail with ErrClientOutOfMemory.  Zero means unbounded.
	MaxPendingOps uint32
}

// Pipeline is the outbound command queue for a single cluster node
// connection.  Packets are queued in FIFO order and handed to the I/O layer
// via TakeReady; each pipeline owns its own correlation tracker and opaque
// counter space.
type Pipeline struct {
	id       string
	endpoint string
	logger   *zap.Logger
	tracker  *OpsTracker
	closed   atomic.Bool

	lock     sync.Mutex
	ready    []*nimdx.Packet
	flushSig chan struct{}
}

func NewPipeline(opts *PipelineOptions) *Pipeline {
	if opts == nil {
		opts = &PipelineOptions{}
	}

	pipelineID := uuid.NewString()[:8]
	logger := loggerOrNop(opts.Logger).With(
		zap.String("pipelineId", pipelineID),
		zap.String("endpoint", opts.Endpoint))

	return &Pipeline{
		id:       pipelineID,
		endpoint: opts.Endpoint,
		logger:   logger,
		tracker:  NewOpsTracker(logger, opts.MaxPendingOps),
		flushSig: make(chan struct{}, 1),
	}
}

func (p *Pipeline) ID() string {
	return p.id
}

func (p *Pipeline) Endpoint() string {
	return p.endpoint
}

func (p *Pipeline) Tracker() *OpsTracker {
	return p.tracker
}

func (p *Pipeline) IsClosed() bool {
	return p.closed.Load()
}

// pushReady appends a batch of packets to the flush queue as a unit and
// signals the I/O layer.  Packets from concurrent batches never interleave
// within a batch's own ordering.
func (p *Pipeline) pushReady(paks []*nimdx.Packet) {
	if len(paks) == 0 {
		return
	}

	p.lock.Lock()
	p.ready = append(p.ready, paks...)
	p.lock.Unlock()

	select {
	case p.flushSig <- struct{}{}:
	default:
	}
}

// TakeReady transfers all packets currently awaiting flush to the caller in
// enqueue order.  Ownership of the packets moves to the caller; their
// correlation entries remain with the tracker.
func (p *Pipeline) TakeReady() []*nimdx.Packet {
	p.lock.Lock()
	paks := p.ready
	p.ready = nil
	p.lock.Unlock()

	return paks
}

// FlushSignal is readable whenever packets may be waiting in the flush queue.
func (p *Pipeline) FlushSignal() <-chan struct{} {
	return p.flushSig
}

// HandleResponse correlates a response packet received from the connection
// with its pending operation.
func (p *Pipeline) HandleResponse(resp *nimdx.Packet) {
	if !resp.Magic.IsResponse() {
		p.logger.DPanic("received non-response packet from connection",
			zap.String("magic", resp.Magic.String()))
		return
	}

	if resp.Magic.IsExtended() && len(resp.FramingExtras) > 0 {
		p.recordResponseFrames(resp)
	}

	p.tracker.Complete(resp)
}

func (p *Pipeline) recordResponseFrames(resp *nimdx.Packet) {
	err := nimdx.IterExtFrames(resp.FramingExtras, func(code nimdx.ExtFrameCode, body []byte) {
		if code != nimdx.ExtFrameCodeResServerDuration {
			return
		}

		serverDuration, err := nimdx.DecodeServerDurationExtFrame(body)
		if err != nil {
			p.logger.Debug("failed to decode server duration frame", zap.Error(err))
			return
		}

		serverDurations.Record(context.Background(),
			int64(serverDuration/time.Microsecond))
	})
	if err != nil {
		p.logger.Debug("failed to parse response framing extras",
			zap.String("opcode", resp.OpCode.Name()),
			zap.Error(err))
	}
}

// Close drops any unflushed packets and cancels every pending operation with
// the given cause.  No callback is dropped: every registered operation still
// observes exactly one terminal completion.
func (p *Pipeline) Close(cause error) {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}

	p.lock.Lock()
	droppedPaks := len(p.ready)
	p.ready = nil
	p.lock.Unlock()

	if droppedPaks > 0 {
		p.logger.Debug("dropping unflushed packets at close",
			zap.Int("numPackets", droppedPaks))
	}

	p.tracker.CancelAll(cause)
}
