package gonimbusx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimbuskv/gonimbusx/nimdx"
)

var (
	ErrDocumentNotFound = nimdx.ErrDocNotFound
	ErrCasMismatch      = nimdx.ErrCasMismatch
	ErrInvalidArgument  = nimdx.ErrInvalidArgument
	ErrNotSupported     = nimdx.ErrNotSupported
)

var ErrTemporaryFailure = errors.New("temporary failure")

type temporaryFailureError struct {
	Message string
}

func (e temporaryFailureError) Error() string {
	return fmt.Sprintf("temporary failure: %s", e.Message)
}

func (e temporaryFailureError) Unwrap() error {
	return ErrTemporaryFailure
}

// ErrNoRoutingInfo occurs when a command is scheduled before the topology
// collaborator has supplied any routing information.
var ErrNoRoutingInfo = temporaryFailureError{"no routing info is available yet"}

var ErrNoMatchingServer = errors.New("no matching server")

type noPipelineAssignedError struct {
	RequestedPartition uint16
}

func (e noPipelineAssignedError) Error() string {
	return fmt.Sprintf("partition %d has no assigned pipeline", e.RequestedPartition)
}

func (e noPipelineAssignedError) Unwrap() error {
	return ErrNoMatchingServer
}

var ErrClientOutOfMemory = errors.New("client out of memory")

type pendingOpsLimitError struct {
	Limit uint32
}

func (e pendingOpsLimitError) Error() string {
	return fmt.Sprintf("cannot allocate operation slot, pending limit reached (%d)", e.Limit)
}

func (e pendingOpsLimitError) Unwrap() error {
	return ErrClientOutOfMemory
}

// ErrTimeout wraps context.DeadlineExceeded so callers can match either.
var ErrTimeout = fmt.Errorf("operation timed out: %w", context.DeadlineExceeded)

type opTimedOutError struct {
	Deadline time.Time
}

func (e opTimedOutError) Error() string {
	return fmt.Sprintf("operation timed out awaiting response (deadline: %s)", e.Deadline.Format(time.RFC3339Nano))
}

func (e opTimedOutError) Unwrap() error {
	return ErrTimeout
}

var ErrCancelled = errors.New("operation cancelled")

type opCancelledError struct {
	Cause error
}

func (e opCancelledError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("operation cancelled: %s", e.Cause)
	}
	return "operation cancelled"
}

func (e opCancelledError) Unwrap() error {
	return ErrCancelled
}

var ErrInvalidPartition = errors.New("invalid partition")

type invalidPartitionError struct {
	RequestedPartition uint16
	NumPartitions      uint16
}

func (e invalidPartitionError) Error() string {
	return fmt.Sprintf("invalid partition requested (%d >= %d)", e.RequestedPartition, e.NumPartitions)
}

func (e invalidPartitionError) Unwrap() error {
	return ErrInvalidPartition
}

type invalidArgumentError struct {
	Message string
}

func (e invalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument: %s", e.Message)
}

func (e invalidArgumentError) Unwrap() error {
	return ErrInvalidArgument
}
