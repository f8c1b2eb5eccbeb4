package gonimbusx

import (
	"context"
	"errors"
	"time"

	"github.com/nimbuskv/gonimbusx/nimdx"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const defaultSweepInterval = 100 * time.Millisecond

type CommandQueueOptions struct {
	Logger *zap.Logger

	// SweepInterval bounds how long an expired operation can linger before
	// the sweep completes it with a timeout.  Defaults to 100ms.
	SweepInterval time.Duration
}

// CommandQueue owns the set of pipelines and the routing snapshot that maps
// partitions onto them.  It provides the explicit batched scheduling
// boundaries and runs the expiry sweep across all pipelines so that
// unresponsive nodes cannot strand callers even when no traffic flows.
type CommandQueue struct {
	logger *zap.Logger
	router *PartitionRouter
	closed atomic.Bool

	sweepInterval time.Duration
	stopSweepCh   chan struct{}
}

func NewCommandQueue(opts *CommandQueueOptions) *CommandQueue {
	if opts == nil {
		opts = &CommandQueueOptions{}
	}

	sweepInterval := opts.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}

	logger := loggerOrNop(opts.Logger)

	cq := &CommandQueue{
		logger:        logger,
		router:        NewPartitionRouter(logger),
		sweepInterval: sweepInterval,
		stopSweepCh:   make(chan struct{}),
	}
	go cq.sweepThread()

	return cq
}

// Router exposes the partition router for routing decisions.
func (cq *CommandQueue) Router() *PartitionRouter {
	return cq.router
}

// UpdateRoutingInfo atomically swaps in a new routing snapshot.  Pipelines
// absent from the new snapshot are not closed here; their lifetime belongs to
// the topology collaborator that created them, and that owner MUST Close any
// pipeline it removes from the snapshot.  The expiry sweep only visits
// pipelines in the current snapshot, so a removed pipeline that is never
// closed would strand its pending operations without timeouts.
func (cq *CommandQueue) UpdateRoutingInfo(info *RoutingInfo) {
	cq.router.UpdateRoutingInfo(info)
}

func (cq *CommandQueue) sweepThread() {
	ticker := time.NewTicker(cq.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			info, err := cq.router.getRoutingInfo()
			if err != nil {
				continue
			}

			for _, pipeline := range info.Pipelines {
				pipeline.Tracker().SweepExpired(now)
			}
		case <-cq.stopSweepCh:
			return
		}
	}
}

// SchedEnter opens a scheduling bracket.  Packets added to the returned batch
// are only marked ready to flush when Leave is called, so a burst of logical
// operations shares one flush without interleaving partially-built packets
// from concurrent callers.
func (cq *CommandQueue) SchedEnter() *ScheduleBatch {
	return &ScheduleBatch{queue: cq}
}

// Close cancels every pending operation on every pipeline in the current
// snapshot and stops the sweep.  It must run before the underlying
// connections are released so that no correlation entry is orphaned.
func (cq *CommandQueue) Close(cause error) {
	if !cq.closed.CompareAndSwap(false, true) {
		return
	}

	close(cq.stopSweepCh)

	info, err := cq.router.getRoutingInfo()
	if err != nil {
		return
	}

	for _, pipeline := range info.Pipelines {
		pipeline.Close(cause)
	}
}

type stagedPacket struct {
	pipeline *Pipeline
	packet   *nimdx.Packet
}

// ScheduleBatch collects packets between a SchedEnter/Leave bracket.  It is
// not safe for concurrent use; concurrent callers each hold their own batch.
type ScheduleBatch struct {
	queue  *CommandQueue
	staged []stagedPacket
	done   bool
}

// Add stages a packet onto a pipeline.  The packet must already carry its
// opaque token; its correlation entry stays registered whether or not the
// batch ultimately flushes.
func (b *ScheduleBatch) Add(pipeline *Pipeline, pak *nimdx.Packet) {
	if b.done {
		b.queue.logger.DPanic("packet added to a completed schedule batch",
			zap.String("opcode", pak.OpCode.Name()))
		return
	}

	b.staged = append(b.staged, stagedPacket{pipeline: pipeline, packet: pak})
}

// Leave closes the bracket, marking every staged packet ready to flush in
// enqueue order.
func (b *ScheduleBatch) Leave() {
	if b.done {
		return
	}
	b.done = true

	for start := 0; start < len(b.staged); {
		pipeline := b.staged[start].pipeline

		end := start
		var paks []*nimdx.Packet
		for end < len(b.staged) && b.staged[end].pipeline == pipeline {
			paks = append(paks, b.staged[end].packet)
			end++
		}

		pipeline.pushReady(paks)
		start = end
	}

	if len(b.staged) > 0 {
		operationsEnqueued.Add(context.Background(), int64(len(b.staged)))
	}
	b.staged = nil
}

// Fail abandons the bracket.  Staged packets never reach a flush queue and
// their correlation entries are released without invoking callbacks; the
// scheduling error is reported synchronously by the caller instead.
func (b *ScheduleBatch) Fail() {
	if b.done {
		return
	}
	b.done = true

	for _, staged := range b.staged {
		staged.pipeline.Tracker().Release(staged.packet.Opaque)
	}
	b.staged = nil
}

type dispatchResult struct {
	resp *nimdx.Packet
	err  error
}

// Dispatch registers a request packet with the pipeline's tracker, schedules
// it inside its own bracket, and waits for the correlated response.  The
// caller observes exactly one outcome: the response, a timeout from the
// sweep, a cancellation, or the context error.
func (cq *CommandQueue) Dispatch(
	ctx context.Context,
	pipeline *Pipeline,
	pak *nimdx.Packet,
	cookie interface{},
	deadline time.Time,
) (*nimdx.Packet, error) {
	tracker := pipeline.Tracker()

	resCh := make(chan dispatchResult, 1)
	opaque, err := tracker.Register(pak.OpCode, cookie,
		func(resp *nimdx.Packet, err error) {
			resCh <- dispatchResult{resp: resp, err: err}
		}, deadline)
	if err != nil {
		return nil, err
	}

	pak.Opaque = opaque

	batch := cq.SchedEnter()
	batch.Add(pipeline, pak)
	batch.Leave()

	select {
	case res := <-resCh:
		return res.resp, res.err
	case <-ctx.Done():
		// cancellation races with completion and the sweep; whichever
		// removed the entry has pushed the single result already.
		tracker.CancelOne(opaque, ctx.Err())
		res := <-resCh

		if res.err != nil && errors.Is(res.err, ErrCancelled) {
			return nil, context.Cause(ctx)
		}
		return res.resp, res.err
	}
}
