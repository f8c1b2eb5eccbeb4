package gonimbusx

import (
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// RoutingInfo is the consistent snapshot used for every routing decision:
// the partition map and the pipeline set it indexes into.  It is owned by
// the topology collaborator and replaced wholesale on topology change; the
// router never mixes fields from two snapshots.
type RoutingInfo struct {
	Partitions *PartitionMap
	Pipelines  []*Pipeline
}

type PartitionRouter struct {
	logger      *zap.Logger
	routingInfo atomic.Pointer[RoutingInfo]
}

func NewPartitionRouter(logger *zap.Logger) *PartitionRouter {
	return &PartitionRouter{
		logger: loggerOrNop(logger),
	}
}

func (r *PartitionRouter) UpdateRoutingInfo(info *RoutingInfo) {
	r.routingInfo.Store(info)
}

func (r *PartitionRouter) getRoutingInfo() (*RoutingInfo, error) {
	info := r.routingInfo.Load()
	if info == nil {
		return nil, ErrNoRoutingInfo
	}

	return info, nil
}

// RouteByKey selects the pipeline for a key's partition.  When fallbackOK is
// set and the ideal pipeline is unavailable, exactly one fallback is tried:
// the first live pipeline in index order.  This is best-effort placement, not
// a retry loop.
func (r *PartitionRouter) RouteByKey(key []byte, fallbackOK bool) (*Pipeline, uint16, error) {
	info, err := r.getRoutingInfo()
	if err != nil {
		return nil, 0, err
	}

	partitionID := info.Partitions.PartitionByKey(key)
	pipeline, err := r.routeToPartition(info, partitionID, fallbackOK)
	if err != nil {
		return nil, 0, err
	}

	return pipeline, partitionID, nil
}

// RouteToPartition selects the pipeline for an explicit partition override.
func (r *PartitionRouter) RouteToPartition(partitionID uint16, fallbackOK bool) (*Pipeline, error) {
	info, err := r.getRoutingInfo()
	if err != nil {
		return nil, err
	}

	return r.routeToPartition(info, partitionID, fallbackOK)
}

// FirstPipeline returns any live pipeline, used for operations which are not
// bound to a particular partition (collection resolution, manifest fetches).
func (r *PartitionRouter) FirstPipeline() (*Pipeline, error) {
	info, err := r.getRoutingInfo()
	if err != nil {
		return nil, err
	}

	if len(info.Pipelines) == 0 {
		return nil, ErrNoMatchingServer
	}

	liveIdx := slices.IndexFunc(info.Pipelines, func(p *Pipeline) bool {
		return !p.IsClosed()
	})
	if liveIdx == -1 {
		return nil, ErrNoMatchingServer
	}

	return info.Pipelines[liveIdx], nil
}

func (r *PartitionRouter) routeToPartition(
	info *RoutingInfo, partitionID uint16, fallbackOK bool,
) (*Pipeline, error) {
	if len(info.Pipelines) == 0 {
		return nil, ErrNoMatchingServer
	}

	idx, err := info.Partitions.PipelineByPartition(partitionID, 0)
	if err != nil {
		return nil, err
	}

	if idx >= 0 && idx < len(info.Pipelines) {
		pipeline := info.Pipelines[idx]
		if !pipeline.IsClosed() {
			return pipeline, nil
		}
	}

	if !fallbackOK {
		return nil, noPipelineAssignedError{RequestedPartition: partitionID}
	}

	fallbackIdx := slices.IndexFunc(info.Pipelines, func(p *Pipeline) bool {
		return !p.IsClosed()
	})
	if fallbackIdx == -1 || fallbackIdx == idx {
		return nil, noPipelineAssignedError{RequestedPartition: partitionID}
	}

	r.logger.Debug("routing to fallback pipeline",
		zap.Uint16("partitionID", partitionID),
		zap.Int("idealIndex", idx),
		zap.Int("fallbackIndex", fallbackIdx))

	return info.Pipelines[fallbackIdx], nil
}
