package gonimbusx

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/nimbuskv/gonimbusx/nimdx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	collectionID uint32
	manifestRev  uint64
}

func (s *stubResolver) ResolveCollectionID(
	ctx context.Context, scopeName, collectionName string,
) (uint32, uint64, error) {
	return s.collectionID, s.manifestRev, nil
}

func (s *stubResolver) InvalidateCollectionID(
	ctx context.Context, scopeName, collectionName string, invalidatingManifestRev uint64,
) {
}

func newTestOpsComponent(
	t *testing.T,
	features NegotiatedFeatures,
	resolver CollectionResolver,
	respond func(pak *nimdx.Packet) *nimdx.Packet,
) *OpsComponent {
	t.Helper()

	queue, pipeline := newTestQueue(t, 0)
	pumpPipeline(t, pipeline, respond)

	ops, err := NewOpsComponent(&OpsComponentOptions{
		BucketName: "default",
		Queue:      queue,
		Resolver:   resolver,
		Features:   features,
	})
	require.NoError(t, err)

	return ops
}

func TestOpsComponentGet(t *testing.T) {
	ops := newTestOpsComponent(t, NegotiatedFeatures{}, nil,
		func(pak *nimdx.Packet) *nimdx.Packet {
			assert.Equal(t, nimdx.MagicReq, pak.Magic)
			assert.Equal(t, nimdx.OpCodeGet, pak.OpCode)
			assert.Equal(t, []byte("test-doc"), pak.Key)

			return &nimdx.Packet{
				Magic:  nimdx.MagicRes,
				OpCode: pak.OpCode,
				Status: nimdx.StatusSuccess,
				Opaque: pak.Opaque,
				Cas:    9001,
				Extras: []byte{0x00, 0x00, 0x00, 0x05},
				Value:  []byte("hello"),
			}
		})

	res, err := ops.Get(context.Background(), &GetOptions{
		Key: []byte("test-doc"),
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("hello"), res.Value)
	assert.Equal(t, uint32(5), res.Flags)
	assert.Equal(t, uint64(9001), res.Cas)
}

func TestOpsComponentGetDocMissing(t *testing.T) {
	ops := newTestOpsComponent(t, NegotiatedFeatures{}, nil,
		func(pak *nimdx.Packet) *nimdx.Packet {
			return &nimdx.Packet{
				Magic:  nimdx.MagicRes,
				OpCode: pak.OpCode,
				Status: nimdx.StatusKeyNotFound,
				Opaque: pak.Opaque,
			}
		})

	_, err := ops.Get(context.Background(), &GetOptions{
		Key: []byte("missing"),
	})
	require.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestOpsComponentEmptyKey(t *testing.T) {
	ops := newTestOpsComponent(t, NegotiatedFeatures{}, nil,
		func(pak *nimdx.Packet) *nimdx.Packet {
			t.Error("no packet should reach the wire")
			return nil
		})

	_, err := ops.Get(context.Background(), &GetOptions{})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = ops.Touch(context.Background(), &TouchOptions{Expiry: 10})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = ops.Delete(context.Background(), &DeleteOptions{})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestOpsComponentCollectionsNotEnabled(t *testing.T) {
	ops := newTestOpsComponent(t, NegotiatedFeatures{}, nil,
		func(pak *nimdx.Packet) *nimdx.Packet {
			t.Error("no packet should reach the wire")
			return nil
		})

	_, err := ops.Get(context.Background(), &GetOptions{
		Key:            []byte("doc"),
		ScopeName:      "inventory",
		CollectionName: "widgets",
	})
	require.ErrorIs(t, err, ErrNotSupported)
}

func TestOpsComponentResolvesCollections(t *testing.T) {
	resolver := &stubResolver{collectionID: 42, manifestRev: 4}

	ops := newTestOpsComponent(t, NegotiatedFeatures{Collections: true}, resolver,
		func(pak *nimdx.Packet) *nimdx.Packet {
			// key carries the resolved collection id prefix
			collectionID, key, err := nimdx.DecodeCollectionIDAndKey(pak.Key)
			assert.NoError(t, err)
			assert.Equal(t, uint32(42), collectionID)
			assert.Equal(t, []byte("doc"), key)

			return &nimdx.Packet{
				Magic:  nimdx.MagicRes,
				OpCode: pak.OpCode,
				Status: nimdx.StatusSuccess,
				Opaque: pak.Opaque,
				Extras: []byte{0x00, 0x00, 0x00, 0x00},
			}
		})

	_, err := ops.Get(context.Background(), &GetOptions{
		Key:            []byte("doc"),
		ScopeName:      "inventory",
		CollectionName: "widgets",
	})
	require.NoError(t, err)
}

func TestOpsComponentDefaultCollectionSkipsResolution(t *testing.T) {
	ops := newTestOpsComponent(t, NegotiatedFeatures{Collections: true}, &stubResolver{},
		func(pak *nimdx.Packet) *nimdx.Packet {
			// the default collection is qualified with id zero
			collectionID, key, err := nimdx.DecodeCollectionIDAndKey(pak.Key)
			assert.NoError(t, err)
			assert.Equal(t, uint32(0), collectionID)
			assert.Equal(t, []byte("doc"), key)

			return &nimdx.Packet{
				Magic:  nimdx.MagicRes,
				OpCode: pak.OpCode,
				Status: nimdx.StatusSuccess,
				Opaque: pak.Opaque,
				Extras: []byte{0x00, 0x00, 0x00, 0x00},
			}
		})

	_, err := ops.Get(context.Background(), &GetOptions{
		Key:            []byte("doc"),
		ScopeName:      "_default",
		CollectionName: "_default",
	})
	require.NoError(t, err)
}

func TestOpsComponentTouch(t *testing.T) {
	ops := newTestOpsComponent(t, NegotiatedFeatures{}, nil,
		func(pak *nimdx.Packet) *nimdx.Packet {
			assert.Equal(t, nimdx.OpCodeTouch, pak.OpCode)
			require.Len(t, pak.Extras, 4)
			assert.Equal(t, uint32(10), binary.BigEndian.Uint32(pak.Extras))

			return &nimdx.Packet{
				Magic:  nimdx.MagicRes,
				OpCode: pak.OpCode,
				Status: nimdx.StatusSuccess,
				Opaque: pak.Opaque,
				Cas:    77,
			}
		})

	res, err := ops.Touch(context.Background(), &TouchOptions{
		Key:    []byte("doc"),
		Expiry: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(77), res.Cas)
	assert.Nil(t, res.MutationToken)
}

func TestOpsComponentDeleteWithDurability(t *testing.T) {
	features := NegotiatedFeatures{SyncReplication: true, SeqNo: true}

	ops := newTestOpsComponent(t, features, nil,
		func(pak *nimdx.Packet) *nimdx.Packet {
			assert.Equal(t, nimdx.MagicReqExt, pak.Magic)
			assert.Equal(t, nimdx.OpCodeDelete, pak.OpCode)
			assert.Equal(t, []byte{0x13, 0x01, 0x00, 0x00}, pak.FramingExtras)
			assert.Equal(t, uint64(1), pak.Cas)

			extras := make([]byte, 16)
			binary.BigEndian.PutUint64(extras[0:], 0x1111)
			binary.BigEndian.PutUint64(extras[8:], 0x2222)

			return &nimdx.Packet{
				Magic:  nimdx.MagicRes,
				OpCode: pak.OpCode,
				Status: nimdx.StatusSuccess,
				Opaque: pak.Opaque,
				Cas:    78,
				Extras: extras,
			}
		})

	res, err := ops.Delete(context.Background(), &DeleteOptions{
		Key:             []byte("doc"),
		Cas:             1,
		DurabilityLevel: nimdx.DurabilityLevelMajority,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(78), res.Cas)
	require.NotNil(t, res.MutationToken)
	assert.Equal(t, uint64(0x1111), res.MutationToken.PartitionUUID)
	assert.Equal(t, uint64(0x2222), res.MutationToken.SeqNo)
	assert.Equal(t, "default", res.MutationToken.BucketName)
}

func TestOpsComponentDurabilityNotNegotiated(t *testing.T) {
	ops := newTestOpsComponent(t, NegotiatedFeatures{}, nil,
		func(pak *nimdx.Packet) *nimdx.Packet {
			t.Error("no packet should reach the wire")
			return nil
		})

	_, err := ops.Delete(context.Background(), &DeleteOptions{
		Key:             []byte("doc"),
		DurabilityLevel: nimdx.DurabilityLevelMajority,
	})
	require.ErrorIs(t, err, ErrNotSupported)
}

func TestOpsComponentGetCollectionID(t *testing.T) {
	ops := newTestOpsComponent(t, NegotiatedFeatures{Collections: true}, &stubResolver{},
		func(pak *nimdx.Packet) *nimdx.Packet {
			assert.Equal(t, nimdx.OpCodeCollectionsGetID, pak.OpCode)
			assert.Equal(t, []byte("inventory.widgets"), pak.Key)

			extras := make([]byte, 12)
			binary.BigEndian.PutUint64(extras[0:], 4)
			binary.BigEndian.PutUint32(extras[8:], 42)

			return &nimdx.Packet{
				Magic:  nimdx.MagicRes,
				OpCode: pak.OpCode,
				Status: nimdx.StatusSuccess,
				Opaque: pak.Opaque,
				Extras: extras,
			}
		})

	res, err := ops.GetCollectionID(context.Background(), &GetCollectionIDOptions{
		ScopeName:      "inventory",
		CollectionName: "widgets",
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(4), res.ManifestRev)
	assert.Equal(t, uint32(42), res.CollectionID)
}

func TestOpsComponentGetCollectionManifest(t *testing.T) {
	manifestJson := []byte(`{"uid":"4","scopes":[]}`)

	ops := newTestOpsComponent(t, NegotiatedFeatures{Collections: true}, &stubResolver{},
		func(pak *nimdx.Packet) *nimdx.Packet {
			assert.Equal(t, nimdx.OpCodeCollectionsGetManifest, pak.OpCode)

			return &nimdx.Packet{
				Magic:  nimdx.MagicRes,
				OpCode: pak.OpCode,
				Status: nimdx.StatusSuccess,
				Opaque: pak.Opaque,
				Value:  manifestJson,
			}
		})

	res, err := ops.GetCollectionManifest(context.Background(), &GetCollectionManifestOptions{})
	require.NoError(t, err)
	assert.JSONEq(t, string(manifestJson), string(res.Manifest))
}

func TestNegotiatedFeaturesFromHello(t *testing.T) {
	features := NegotiatedFeaturesFromHello([]nimdx.HelloFeature{
		nimdx.HelloFeatureCollections,
		nimdx.HelloFeatureSeqNo,
		nimdx.HelloFeatureAltRequests,
		nimdx.HelloFeatureSyncReplication,
	})
	assert.True(t, features.Collections)
	assert.True(t, features.SeqNo)
	assert.True(t, features.SyncReplication)

	// durability frames need alt-requests; without them sync replication
	// stays off
	features = NegotiatedFeaturesFromHello([]nimdx.HelloFeature{
		nimdx.HelloFeatureSyncReplication,
	})
	assert.False(t, features.SyncReplication)

	features = NegotiatedFeaturesFromHello(nil)
	assert.False(t, features.Collections)
	assert.False(t, features.SeqNo)
	assert.False(t, features.SyncReplication)
}

func TestOpsComponentNoop(t *testing.T) {
	ops := newTestOpsComponent(t, NegotiatedFeatures{}, nil,
		func(pak *nimdx.Packet) *nimdx.Packet {
			assert.Equal(t, nimdx.OpCodeNoop, pak.OpCode)

			return &nimdx.Packet{
				Magic:  nimdx.MagicRes,
				OpCode: pak.OpCode,
				Status: nimdx.StatusSuccess,
				Opaque: pak.Opaque,
			}
		})

	err := ops.Noop(context.Background(), &NoopOptions{})
	require.NoError(t, err)
}
