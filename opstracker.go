package gonimbusx

import (
	"context"
	"sync"
	"time"

	"github.com/nimbuskv/gonimbusx/nimdx"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ResponseHandler is invoked exactly once for each registered operation, with
// either the correlated response packet or a terminal error.
type ResponseHandler func(resp *nimdx.Packet, err error)

type pendingOp struct {
	opCode    nimdx.OpCode
	cookie    interface{}
	handler   ResponseHandler
	startedAt time.Time
	deadline  time.Time
}

// OpsTracker is the correlation table for a single pipeline.  It assigns
// opaque tokens from a per-pipeline monotonic counter and guarantees that
// every registered operation reaches exactly one terminal state: completion
// by a response, expiry by the sweep, or cancellation.  Removal from the
// pending table under the lock is the linearization point; whichever path
// removes the entry owns the single handler invocation.
type OpsTracker struct {
	logger     *zap.Logger
	maxPending uint32
	closed     atomic.Bool

	lock      sync.Mutex
	opaqueCtr uint32
	pending   map[uint32]*pendingOp
}

func NewOpsTracker(logger *zap.Logger, maxPending uint32) *OpsTracker {
	return &OpsTracker{
		logger:     loggerOrNop(logger),
		maxPending: maxPending,
		pending:    make(map[uint32]*pendingOp),
	}
}

// Register allocates an opaque token for an operation and stores its handler
// in the pending table.  Registration failures leave no trace in the table.
func (t *OpsTracker) Register(
	opCode nimdx.OpCode,
	cookie interface{},
	handler ResponseHandler,
	deadline time.Time,
) (uint32, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	// checked under the lock: CancelAll marks closed before it drains the
	// table, so an entry inserted here is either drained by that CancelAll
	// or rejected, never stranded in a fresh table.
	if t.closed.Load() {
		return 0, opCancelledError{}
	}

	if t.maxPending > 0 && uint32(len(t.pending)) >= t.maxPending {
		return 0, pendingOpsLimitError{Limit: t.maxPending}
	}

	// the counter may wrap; skip zero and any token still pending so a
	// reused value can never alias a live operation.
	var opaque uint32
	for {
		t.opaqueCtr++
		opaque = t.opaqueCtr
		if opaque == 0 {
			continue
		}
		if _, stillPending := t.pending[opaque]; !stillPending {
			break
		}
	}

	t.pending[opaque] = &pendingOp{
		opCode:    opCode,
		cookie:    cookie,
		handler:   handler,
		startedAt: time.Now(),
		deadline:  deadline,
	}

	return opaque, nil
}

// Release removes an entry without invoking its handler.  It is used when
// scheduling fails after registration, where the error is reported
// synchronously to the caller instead.
func (t *OpsTracker) Release(opaque uint32) bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	_, wasPending := t.pending[opaque]
	delete(t.pending, opaque)
	return wasPending
}

// Complete delivers a response to the operation registered under its opaque
// token.  A miss means the operation already reached a terminal state; the
// response is logged as an orphan and discarded.
func (t *OpsTracker) Complete(resp *nimdx.Packet) bool {
	t.lock.Lock()
	op, wasPending := t.pending[resp.Opaque]
	if !wasPending {
		t.lock.Unlock()

		t.logger.Debug("received orphaned response",
			zap.String("opcode", resp.OpCode.Name()),
			zap.Uint32("opaque", resp.Opaque),
			zap.String("status", resp.Status.String()))
		orphanedResponses.Add(context.Background(), 1)
		return false
	}
	delete(t.pending, resp.Opaque)
	t.lock.Unlock()

	op.handler(resp, nil)
	return true
}

// SweepExpired completes every operation whose deadline has passed with a
// timeout error.  It must be driven at a bounded interval even when the
// connection is idle.
func (t *OpsTracker) SweepExpired(now time.Time) int {
	t.lock.Lock()

	var expiredOpaques []uint32
	var expiredOps []*pendingOp
	for opaque, op := range t.pending {
		if !op.deadline.IsZero() && !now.Before(op.deadline) {
			expiredOpaques = append(expiredOpaques, opaque)
			expiredOps = append(expiredOps, op)
		}
	}
	for _, opaque := range expiredOpaques {
		delete(t.pending, opaque)
	}

	t.lock.Unlock()

	for _, op := range expiredOps {
		t.logger.Debug("operation timed out",
			zap.String("opcode", op.opCode.Name()),
			zap.Time("deadline", op.deadline))

		op.handler(nil, opTimedOutError{Deadline: op.deadline})
	}

	if len(expiredOps) > 0 {
		operationsTimedOut.Add(context.Background(), int64(len(expiredOps)))
	}

	return len(expiredOps)
}

// CancelOne cancels a single pending operation, returning false if it had
// already reached a terminal state.
func (t *OpsTracker) CancelOne(opaque uint32, cause error) bool {
	t.lock.Lock()
	op, wasPending := t.pending[opaque]
	if !wasPending {
		t.lock.Unlock()
		return false
	}
	delete(t.pending, opaque)
	t.lock.Unlock()

	op.handler(nil, opCancelledError{Cause: cause})
	operationsCancelled.Add(context.Background(), 1)
	return true
}

// CancelAll drains the pending table, completing every entry with a
// cancellation error.  Used at shutdown so no callback is ever dropped.
func (t *OpsTracker) CancelAll(cause error) {
	t.closed.Store(true)

	t.lock.Lock()
	pending := t.pending
	t.pending = make(map[uint32]*pendingOp)
	t.lock.Unlock()

	for _, op := range pending {
		op.handler(nil, opCancelledError{Cause: cause})
	}

	if len(pending) > 0 {
		operationsCancelled.Add(context.Background(), int64(len(pending)))
	}
}

func (t *OpsTracker) PendingCount() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.pending)
}
