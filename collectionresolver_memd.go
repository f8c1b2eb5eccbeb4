package gonimbusx

import (
	"context"
	"time"

	"github.com/nimbuskv/gonimbusx/nimdx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const defaultResolveTimeout = 2500 * time.Millisecond

type CollectionResolverMemdOptions struct {
	Logger *zap.Logger
	Queue  *CommandQueue
	Ops    nimdx.Ops
}

// CollectionResolverMemd resolves collection ids over the wire using the
// resolve-collection-id operation.  Resolution requests are not bound to any
// partition and go to the first live pipeline.
type CollectionResolverMemd struct {
	logger *zap.Logger
	queue  *CommandQueue
	ops    nimdx.Ops
}

var _ CollectionResolver = (*CollectionResolverMemd)(nil)

func NewCollectionResolverMemd(opts *CollectionResolverMemdOptions) (*CollectionResolverMemd, error) {
	if opts == nil {
		return nil, errors.New("options must be specified")
	}
	if opts.Queue == nil {
		return nil, errors.New("queue must be non-nil")
	}

	return &CollectionResolverMemd{
		logger: loggerOrNop(opts.Logger),
		queue:  opts.Queue,
		ops:    opts.Ops,
	}, nil
}

func (cr *CollectionResolverMemd) ResolveCollectionID(
	ctx context.Context, scopeName, collectionName string,
) (uint32, uint64, error) {
	req := &nimdx.GetCollectionIDRequest{
		ScopeName:      scopeName,
		CollectionName: collectionName,
	}

	pak, err := cr.ops.EncodeGetCollectionID(req)
	if err != nil {
		return 0, 0, err
	}

	pipeline, err := cr.queue.Router().FirstPipeline()
	if err != nil {
		return 0, 0, err
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		deadline = time.Now().Add(defaultResolveTimeout)
	}

	resp, err := cr.queue.Dispatch(ctx, pipeline, pak, req, deadline)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to dispatch collection id request")
	}

	res, err := cr.ops.DecodeGetCollectionID(resp)
	if err != nil {
		return 0, 0, err
	}

	cr.logger.Debug("resolved collection id",
		zap.String("scope", scopeName),
		zap.String("collection", collectionName),
		zap.Uint32("collectionId", res.CollectionID),
		zap.Uint64("manifestRev", res.ManifestRev))

	return res.CollectionID, res.ManifestRev, nil
}

func (cr *CollectionResolverMemd) InvalidateCollectionID(
	ctx context.Context, scopeName, collectionName string, invalidatingManifestRev uint64,
) {
	// nothing is cached at this layer; invalidation is meaningful to the
	// cached resolver wrapping us.
	cr.logger.Debug("collection id invalidated",
		zap.String("scope", scopeName),
		zap.String("collection", collectionName),
		zap.Uint64("manifestRev", invalidatingManifestRev))
}
