package gonimbusx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nimbuskv/gonimbusx/nimdx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const defaultOpTimeout = 2500 * time.Millisecond

// NegotiatedFeatures is the read-only feature set negotiated on the
// underlying connections, supplied by the connection collaborator.
type NegotiatedFeatures struct {
	Collections     bool
	SyncReplication bool
	SeqNo           bool
}

// NegotiatedFeaturesFromHello derives the feature set from the HELLO feature
// codes the server accepted.  Durability frames ride on extended requests, so
// synchronous replication is only usable when alt-requests were also accepted.
func NegotiatedFeaturesFromHello(features []nimdx.HelloFeature) NegotiatedFeatures {
	var out NegotiatedFeatures
	var hasAltRequests bool
	var hasSyncReplication bool

	for _, feature := range features {
		switch feature {
		case nimdx.HelloFeatureCollections:
			out.Collections = true
		case nimdx.HelloFeatureSeqNo:
			out.SeqNo = true
		case nimdx.HelloFeatureAltRequests:
			hasAltRequests = true
		case nimdx.HelloFeatureSyncReplication:
			hasSyncReplication = true
		}
	}

	out.SyncReplication = hasAltRequests && hasSyncReplication
	return out
}

type OpsComponentOptions struct {
	Logger         *zap.Logger
	BucketName     string
	Queue          *CommandQueue
	Resolver       CollectionResolver
	Features       NegotiatedFeatures
	DefaultTimeout time.Duration
}

// OpsComponent is the operation surface of the command pipeline.  Each
// operation validates its arguments, resolves the collection qualifier when
// one is present, routes to a pipeline, encodes the packet, and waits for the
// correlated result.  Validation and routing failures are returned
// synchronously with no wire traffic; everything past a successful enqueue is
// delivered exactly once.
type OpsComponent struct {
	logger         *zap.Logger
	bucketName     string
	queue          *CommandQueue
	resolver       CollectionResolver
	features       NegotiatedFeatures
	ops            nimdx.Ops
	defaultTimeout time.Duration
}

func NewOpsComponent(opts *OpsComponentOptions) (*OpsComponent, error) {
	if opts == nil {
		return nil, errors.New("options must be specified")
	}
	if opts.Queue == nil {
		return nil, errors.New("queue must be non-nil")
	}
	if opts.Features.Collections && opts.Resolver == nil {
		return nil, errors.New("resolver must be non-nil when collections are enabled")
	}

	defaultTimeout := opts.DefaultTimeout
	if defaultTimeout <= 0 {
		defaultTimeout = defaultOpTimeout
	}

	return &OpsComponent{
		logger:     loggerOrNop(opts.Logger),
		bucketName: opts.BucketName,
		queue:      opts.Queue,
		resolver:   opts.Resolver,
		features:   opts.Features,
		ops: nimdx.Ops{
			CollectionsEnabled: opts.Features.Collections,
			DurabilityEnabled:  opts.Features.SyncReplication,
			SeqNoEnabled:       opts.Features.SeqNo,
		},
		defaultTimeout: defaultTimeout,
	}, nil
}

func isDefaultCollection(scopeName, collectionName string) bool {
	return (scopeName == "" || scopeName == "_default") &&
		(collectionName == "" || collectionName == "_default")
}

// resolveCollection rewrites a (scope, collection) qualifier to the numeric
// collection id.  The default collection proceeds unqualified with no wire
// traffic; non-default names require the collections feature.
func (oc *OpsComponent) resolveCollection(
	ctx context.Context, scopeName, collectionName string,
) (uint32, error) {
	if isDefaultCollection(scopeName, collectionName) {
		return 0, nil
	}

	if !oc.features.Collections {
		return 0, nimdx.ErrCollectionsNotEnabled
	}

	if scopeName == "" {
		return 0, invalidArgumentError{"scope name cannot be empty"}
	}
	if collectionName == "" {
		return 0, invalidArgumentError{"collection name cannot be empty"}
	}

	collectionID, _, err := oc.resolver.ResolveCollectionID(ctx, scopeName, collectionName)
	if err != nil {
		return 0, errors.Wrap(err, "failed to resolve collection")
	}

	return collectionID, nil
}

func (oc *OpsComponent) opDeadline(ctx context.Context, explicit time.Time) time.Time {
	if !explicit.IsZero() {
		return explicit
	}
	if ctxDeadline, ok := ctx.Deadline(); ok {
		return ctxDeadline
	}
	return time.Now().Add(oc.defaultTimeout)
}

func (oc *OpsComponent) mutationToken(partitionID uint16, vbUuid, seqNo uint64) *MutationToken {
	if !oc.features.SeqNo {
		return nil
	}
	if vbUuid == 0 && seqNo == 0 {
		return nil
	}

	return &MutationToken{
		PartitionID:   partitionID,
		PartitionUUID: vbUuid,
		SeqNo:         seqNo,
		BucketName:    oc.bucketName,
	}
}

type GetOptions struct {
	Key            []byte
	ScopeName      string
	CollectionName string
	Cookie         interface{}
	Deadline       time.Time
}

type GetResult struct {
	Value    []byte
	Flags    uint32
	Datatype uint8
	Cas      uint64
}

func (oc *OpsComponent) Get(ctx context.Context, opts *GetOptions) (*GetResult, error) {
	if len(opts.Key) == 0 {
		return nil, invalidArgumentError{"key cannot be empty"}
	}

	collectionID, err := oc.resolveCollection(ctx, opts.ScopeName, opts.CollectionName)
	if err != nil {
		return nil, err
	}

	pipeline, partitionID, err := oc.queue.Router().RouteByKey(opts.Key, true)
	if err != nil {
		return nil, err
	}

	pak, err := oc.ops.EncodeGet(&nimdx.GetRequest{
		CollectionID: collectionID,
		Key:          opts.Key,
		PartitionID:  partitionID,
	})
	if err != nil {
		return nil, err
	}

	resp, err := oc.queue.Dispatch(ctx, pipeline, pak, opts.Cookie, oc.opDeadline(ctx, opts.Deadline))
	if err != nil {
		return nil, err
	}

	res, err := oc.ops.DecodeGet(resp)
	if err != nil {
		return nil, err
	}

	return &GetResult{
		Value:    res.Value,
		Flags:    res.Flags,
		Datatype: res.Datatype,
		Cas:      res.Cas,
	}, nil
}

type TouchOptions struct {
	Key               []byte
	ScopeName         string
	CollectionName    string
	Expiry            uint32
	DurabilityLevel   nimdx.DurabilityLevel
	DurabilityTimeout time.Duration
	Cookie            interface{}
	Deadline          time.Time
}

type TouchResult struct {
	Cas           uint64
	MutationToken *MutationToken
}

func (oc *OpsComponent) Touch(ctx context.Context, opts *TouchOptions) (*TouchResult, error) {
	if len(opts.Key) == 0 {
		return nil, invalidArgumentError{"key cannot be empty"}
	}

	collectionID, err := oc.resolveCollection(ctx, opts.ScopeName, opts.CollectionName)
	if err != nil {
		return nil, err
	}

	pipeline, partitionID, err := oc.queue.Router().RouteByKey(opts.Key, true)
	if err != nil {
		return nil, err
	}

	pak, err := oc.ops.EncodeTouch(&nimdx.TouchRequest{
		CollectionID:      collectionID,
		Key:               opts.Key,
		PartitionID:       partitionID,
		Expiry:            opts.Expiry,
		DurabilityLevel:   opts.DurabilityLevel,
		DurabilityTimeout: opts.DurabilityTimeout,
	})
	if err != nil {
		return nil, err
	}

	resp, err := oc.queue.Dispatch(ctx, pipeline, pak, opts.Cookie, oc.opDeadline(ctx, opts.Deadline))
	if err != nil {
		return nil, err
	}

	res, err := oc.ops.DecodeTouch(resp)
	if err != nil {
		return nil, err
	}

	return &TouchResult{
		Cas:           res.Cas,
		MutationToken: oc.mutationToken(partitionID, res.MutationVbUuid, res.MutationSeqNo),
	}, nil
}

type DeleteOptions struct {
	Key               []byte
	ScopeName         string
	CollectionName    string
	Cas               uint64
	DurabilityLevel   nimdx.DurabilityLevel
	DurabilityTimeout time.Duration
	Cookie            interface{}
	Deadline          time.Time
}

type DeleteResult struct {
	Cas           uint64
	MutationToken *MutationToken
}

func (oc *OpsComponent) Delete(ctx context.Context, opts *DeleteOptions) (*DeleteResult, error) {
	if len(opts.Key) == 0 {
		return nil, invalidArgumentError{"key cannot be empty"}
	}

	collectionID, err := oc.resolveCollection(ctx, opts.ScopeName, opts.CollectionName)
	if err != nil {
		return nil, err
	}

	pipeline, partitionID, err := oc.queue.Router().RouteByKey(opts.Key, true)
	if err != nil {
		return nil, err
	}

	pak, err := oc.ops.EncodeDelete(&nimdx.DeleteRequest{
		CollectionID:      collectionID,
		Key:               opts.Key,
		PartitionID:       partitionID,
		Cas:               opts.Cas,
		DurabilityLevel:   opts.DurabilityLevel,
		DurabilityTimeout: opts.DurabilityTimeout,
	})
	if err != nil {
		return nil, err
	}

	resp, err := oc.queue.Dispatch(ctx, pipeline, pak, opts.Cookie, oc.opDeadline(ctx, opts.Deadline))
	if err != nil {
		return nil, err
	}

	res, err := oc.ops.DecodeDelete(resp)
	if err != nil {
		return nil, err
	}

	return &DeleteResult{
		Cas:           res.Cas,
		MutationToken: oc.mutationToken(partitionID, res.MutationVbUuid, res.MutationSeqNo),
	}, nil
}

type GetCollectionIDOptions struct {
	ScopeName      string
	CollectionName string
	Cookie         interface{}
	Deadline       time.Time
}

type GetCollectionIDResult struct {
	ManifestRev  uint64
	CollectionID uint32
}

// GetCollectionID performs an uncached wire resolution of a collection id.
// Most callers want the resolver instead; this is the raw operation.
func (oc *OpsComponent) GetCollectionID(ctx context.Context, opts *GetCollectionIDOptions) (*GetCollectionIDResult, error) {
	pak, err := oc.ops.EncodeGetCollectionID(&nimdx.GetCollectionIDRequest{
		ScopeName:      opts.ScopeName,
		CollectionName: opts.CollectionName,
	})
	if err != nil {
		return nil, err
	}

	pipeline, err := oc.queue.Router().FirstPipeline()
	if err != nil {
		return nil, err
	}

	resp, err := oc.queue.Dispatch(ctx, pipeline, pak, opts.Cookie, oc.opDeadline(ctx, opts.Deadline))
	if err != nil {
		return nil, err
	}

	res, err := oc.ops.DecodeGetCollectionID(resp)
	if err != nil {
		return nil, err
	}

	return &GetCollectionIDResult{
		ManifestRev:  res.ManifestRev,
		CollectionID: res.CollectionID,
	}, nil
}

type GetCollectionManifestOptions struct {
	Cookie   interface{}
	Deadline time.Time
}

type GetCollectionManifestResult struct {
	// Manifest is the raw manifest JSON; decoding it is the caller's
	// responsibility.
	Manifest json.RawMessage
}

func (oc *OpsComponent) GetCollectionManifest(
	ctx context.Context, opts *GetCollectionManifestOptions,
) (*GetCollectionManifestResult, error) {
	pak, err := oc.ops.EncodeGetCollectionManifest(&nimdx.GetCollectionManifestRequest{})
	if err != nil {
		return nil, err
	}

	pipeline, err := oc.queue.Router().FirstPipeline()
	if err != nil {
		return nil, err
	}

	resp, err := oc.queue.Dispatch(ctx, pipeline, pak, opts.Cookie, oc.opDeadline(ctx, opts.Deadline))
	if err != nil {
		return nil, err
	}

	res, err := oc.ops.DecodeGetCollectionManifest(resp)
	if err != nil {
		return nil, err
	}

	return &GetCollectionManifestResult{
		Manifest: res.Manifest,
	}, nil
}

type NoopOptions struct {
	Cookie   interface{}
	Deadline time.Time
}

func (oc *OpsComponent) Noop(ctx context.Context, opts *NoopOptions) error {
	pak, err := oc.ops.EncodeNoop(&nimdx.NoopRequest{})
	if err != nil {
		return err
	}

	pipeline, err := oc.queue.Router().FirstPipeline()
	if err != nil {
		return err
	}

	resp, err := oc.queue.Dispatch(ctx, pipeline, pak, opts.Cookie, oc.opDeadline(ctx, opts.Deadline))
	if err != nil {
		return err
	}

	_, err = oc.ops.DecodeNoop(resp)
	return err
}
