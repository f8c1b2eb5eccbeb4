package gonimbusx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionMapKeyHashing(t *testing.T) {
	pMap, err := NewPartitionMap([][]int{{0}, {1}, {0}, {1}}, 0)
	require.NoError(t, err)

	first := pMap.PartitionByKey([]byte("test-key"))
	assert.Less(t, int(first), pMap.NumPartitions())

	// hashing is deterministic
	assert.Equal(t, first, pMap.PartitionByKey([]byte("test-key")))

	// a single-partition map sends everything to partition zero
	oneMap, err := NewPartitionMap([][]int{{0}}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), oneMap.PartitionByKey([]byte("anything")))
}

func TestPartitionMapPipelineLookup(t *testing.T) {
	pMap, err := NewPartitionMap([][]int{
		{0, 1},
		{1, 0},
		{-1, 1},
	}, 1)
	require.NoError(t, err)

	idx, err := pMap.PipelineByPartition(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	idx, err = pMap.PipelineByPartition(1, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	idx, err = pMap.PipelineByPartition(1, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	// an unassigned slot reports no pipeline without erroring
	idx, err = pMap.PipelineByPartition(2, 0)
	require.NoError(t, err)
	assert.Equal(t, -1, idx)

	// a replica slot beyond the entry also reports no pipeline
	idx, err = pMap.PipelineByPartition(0, 5)
	require.NoError(t, err)
	assert.Equal(t, -1, idx)

	_, err = pMap.PipelineByPartition(3, 0)
	require.ErrorIs(t, err, ErrInvalidPartition)
}

func TestPartitionMapRequiresEntries(t *testing.T) {
	_, err := NewPartitionMap(nil, 0)
	require.Error(t, err)
}

func TestRouterNoRoutingInfo(t *testing.T) {
	router := NewPartitionRouter(nil)

	_, _, err := router.RouteByKey([]byte("key"), true)
	require.ErrorIs(t, err, ErrTemporaryFailure)

	_, err = router.FirstPipeline()
	require.ErrorIs(t, err, ErrTemporaryFailure)
}

func TestRouterRoutesToAssignedPipeline(t *testing.T) {
	pipeline0 := NewPipeline(&PipelineOptions{Endpoint: "node0"})
	pipeline1 := NewPipeline(&PipelineOptions{Endpoint: "node1"})
	t.Cleanup(func() {
		pipeline0.Close(errors.New("test ended"))
		pipeline1.Close(errors.New("test ended"))
	})

	pMap, err := NewPartitionMap([][]int{{1}}, 0)
	require.NoError(t, err)

	router := NewPartitionRouter(nil)
	router.UpdateRoutingInfo(&RoutingInfo{
		Partitions: pMap,
		Pipelines:  []*Pipeline{pipeline0, pipeline1},
	})

	pipeline, partitionID, err := router.RouteByKey([]byte("key"), false)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), partitionID)
	assert.Same(t, pipeline1, pipeline)
}

func TestRouterFallback(t *testing.T) {
	pipeline0 := NewPipeline(&PipelineOptions{Endpoint: "node0"})
	pipeline1 := NewPipeline(&PipelineOptions{Endpoint: "node1"})
	t.Cleanup(func() {
		pipeline1.Close(errors.New("test ended"))
	})

	pMap, err := NewPartitionMap([][]int{{0}}, 0)
	require.NoError(t, err)

	router := NewPartitionRouter(nil)
	router.UpdateRoutingInfo(&RoutingInfo{
		Partitions: pMap,
		Pipelines:  []*Pipeline{pipeline0, pipeline1},
	})

	// the ideal pipeline goes down
	pipeline0.Close(errors.New("node down"))

	// without fallback the routing fails outright
	_, _, err = router.RouteByKey([]byte("key"), false)
	require.ErrorIs(t, err, ErrNoMatchingServer)

	// with fallback exactly one alternative is tried, the first live
	// pipeline in index order
	pipeline, _, err := router.RouteByKey([]byte("key"), true)
	require.NoError(t, err)
	assert.Same(t, pipeline1, pipeline)
}

func TestRouterFallbackExhausted(t *testing.T) {
	pipeline0 := NewPipeline(&PipelineOptions{Endpoint: "node0"})
	pipeline0.Close(errors.New("node down"))

	pMap, err := NewPartitionMap([][]int{{0}}, 0)
	require.NoError(t, err)

	router := NewPartitionRouter(nil)
	router.UpdateRoutingInfo(&RoutingInfo{
		Partitions: pMap,
		Pipelines:  []*Pipeline{pipeline0},
	})

	_, _, err = router.RouteByKey([]byte("key"), true)
	require.ErrorIs(t, err, ErrNoMatchingServer)
}

func TestRouterUnassignedPartition(t *testing.T) {
	pipeline0 := NewPipeline(&PipelineOptions{Endpoint: "node0"})
	t.Cleanup(func() {
		pipeline0.Close(errors.New("test ended"))
	})

	pMap, err := NewPartitionMap([][]int{{-1}}, 0)
	require.NoError(t, err)

	router := NewPartitionRouter(nil)
	router.UpdateRoutingInfo(&RoutingInfo{
		Partitions: pMap,
		Pipelines:  []*Pipeline{pipeline0},
	})

	_, _, err = router.RouteByKey([]byte("key"), false)
	require.ErrorIs(t, err, ErrNoMatchingServer)

	// fallback placement still finds the live pipeline
	pipeline, _, err := router.RouteByKey([]byte("key"), true)
	require.NoError(t, err)
	assert.Same(t, pipeline0, pipeline)
}

func TestRouterZeroPipelines(t *testing.T) {
	pMap, err := NewPartitionMap([][]int{{0}}, 0)
	require.NoError(t, err)

	router := NewPartitionRouter(nil)
	router.UpdateRoutingInfo(&RoutingInfo{
		Partitions: pMap,
		Pipelines:  nil,
	})

	_, _, err = router.RouteByKey([]byte("key"), true)
	require.ErrorIs(t, err, ErrNoMatchingServer)

	_, err = router.FirstPipeline()
	require.ErrorIs(t, err, ErrNoMatchingServer)
}

func TestRouterFirstPipelineSkipsClosed(t *testing.T) {
	pipeline0 := NewPipeline(&PipelineOptions{Endpoint: "node0"})
	pipeline1 := NewPipeline(&PipelineOptions{Endpoint: "node1"})
	t.Cleanup(func() {
		pipeline1.Close(errors.New("test ended"))
	})

	pipeline0.Close(errors.New("node down"))

	pMap, err := NewPartitionMap([][]int{{0}}, 0)
	require.NoError(t, err)

	router := NewPartitionRouter(nil)
	router.UpdateRoutingInfo(&RoutingInfo{
		Partitions: pMap,
		Pipelines:  []*Pipeline{pipeline0, pipeline1},
	})

	pipeline, err := router.FirstPipeline()
	require.NoError(t, err)
	assert.Same(t, pipeline1, pipeline)
}
