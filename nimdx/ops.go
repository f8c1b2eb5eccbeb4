package nimdx

import (
	"encoding/binary"
	"encoding/json"
	"time"
)

// Ops builds request packets and decodes response packets for the operations
// this library supports.  The flags mirror what was negotiated on the
// connection the packets will travel over; builders fail fast when a request
// needs a feature the connection does not have, before any packet exists.
type Ops struct {
	CollectionsEnabled bool
	DurabilityEnabled  bool
	SeqNoEnabled       bool
}

func (o Ops) encodeCollectionAndKey(collectionID uint32, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, invalidArgError{"key cannot be empty"}
	}

	if !o.CollectionsEnabled {
		if collectionID != 0 {
			return nil, ErrCollectionsNotEnabled
		}

		return key, nil
	}

	return AppendCollectionIDAndKey(nil, collectionID, key), nil
}

func (o Ops) encodeDurabilityFrame(
	level DurabilityLevel,
	timeout time.Duration,
) (Magic, []byte, error) {
	if level == DurabilityLevelNone {
		return MagicReq, nil, nil
	}

	if !o.DurabilityEnabled {
		return 0, nil, ErrDurabilityNotEnabled
	}

	framingBuf, err := AppendDurabilityExtFrame(nil, level, timeout)
	if err != nil {
		return 0, nil, err
	}

	return MagicReqExt, framingBuf, nil
}

func decodeMutationExtras(resp *Packet) (vbUuid uint64, seqNo uint64, err error) {
	if len(resp.Extras) == 0 {
		return 0, 0, nil
	}

	if len(resp.Extras) != 16 {
		return 0, 0, protocolError{"bad mutation extras length"}
	}

	vbUuid = binary.BigEndian.Uint64(resp.Extras[0:])
	seqNo = binary.BigEndian.Uint64(resp.Extras[8:])
	return vbUuid, seqNo, nil
}

type GetRequest struct {
	CollectionID uint32
	Key          []byte
	PartitionID  uint16
}

type GetResponse struct {
	Cas      uint64
	Flags    uint32
	Datatype uint8
	Value    []byte
}

func (o Ops) EncodeGet(req *GetRequest) (*Packet, error) {
	reqKey, err := o.encodeCollectionAndKey(req.CollectionID, req.Key)
	if err != nil {
		return nil, err
	}

	return &Packet{
		Magic:       MagicReq,
		OpCode:      OpCodeGet,
		PartitionID: req.PartitionID,
		Key:         reqKey,
	}, nil
}

func (o Ops) DecodeGet(resp *Packet) (*GetResponse, error) {
	if resp.Status == StatusKeyNotFound {
		return nil, ErrDocNotFound
	} else if resp.Status == StatusCollectionUnknown {
		return nil, ErrUnknownCollectionID
	}

	if resp.Status != StatusSuccess {
		return nil, DecodeServerError(resp)
	}

	if len(resp.Extras) != 4 {
		return nil, protocolError{"bad extras length"}
	}

	flags := binary.BigEndian.Uint32(resp.Extras[0:])

	return &GetResponse{
		Cas:      resp.Cas,
		Flags:    flags,
		Datatype: resp.Datatype,
		Value:    resp.Value,
	}, nil
}

type TouchRequest struct {
	CollectionID      uint32
	Key               []byte
	PartitionID       uint16
	Expiry            uint32
	DurabilityLevel   DurabilityLevel
	DurabilityTimeout time.Duration
}

type TouchResponse struct {
	Cas            uint64
	MutationVbUuid uint64
	MutationSeqNo  uint64
}

func (o Ops) EncodeTouch(req *TouchRequest) (*Packet, error) {
	reqKey, err := o.encodeCollectionAndKey(req.CollectionID, req.Key)
	if err != nil {
		return nil, err
	}

	magic, framingBuf, err := o.encodeDurabilityFrame(req.DurabilityLevel, req.DurabilityTimeout)
	if err != nil {
		return nil, err
	}

	extrasBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(extrasBuf, req.Expiry)

	return &Packet{
		Magic:         magic,
		OpCode:        OpCodeTouch,
		PartitionID:   req.PartitionID,
		FramingExtras: framingBuf,
		Extras:        extrasBuf,
		Key:           reqKey,
	}, nil
}

func (o Ops) DecodeTouch(resp *Packet) (*TouchResponse, error) {
	if resp.Status == StatusKeyNotFound {
		return nil, ErrDocNotFound
	} else if resp.Status == StatusCollectionUnknown {
		return nil, ErrUnknownCollectionID
	}

	if resp.Status != StatusSuccess {
		return nil, DecodeServerError(resp)
	}

	vbUuid, seqNo, err := decodeMutationExtras(resp)
	if err != nil {
		return nil, err
	}

	return &TouchResponse{
		Cas:            resp.Cas,
		MutationVbUuid: vbUuid,
		MutationSeqNo:  seqNo,
	}, nil
}

type DeleteRequest struct {
	CollectionID      uint32
	Key               []byte
	PartitionID       uint16
	Cas               uint64
	DurabilityLevel   DurabilityLevel
	DurabilityTimeout time.Duration
}

type DeleteResponse struct {
	Cas            uint64
	MutationVbUuid uint64
	MutationSeqNo  uint64
}

func (o Ops) EncodeDelete(req *DeleteRequest) (*Packet, error) {
	reqKey, err := o.encodeCollectionAndKey(req.CollectionID, req.Key)
	if err != nil {
		return nil, err
	}

	magic, framingBuf, err := o.encodeDurabilityFrame(req.DurabilityLevel, req.DurabilityTimeout)
	if err != nil {
		return nil, err
	}

	return &Packet{
		Magic:         magic,
		OpCode:        OpCodeDelete,
		PartitionID:   req.PartitionID,
		Cas:           req.Cas,
		FramingExtras: framingBuf,
		Key:           reqKey,
	}, nil
}

func (o Ops) DecodeDelete(resp *Packet) (*DeleteResponse, error) {
	if resp.Status == StatusKeyNotFound {
		return nil, ErrDocNotFound
	} else if resp.Status == StatusKeyExists {
		return nil, ErrCasMismatch
	} else if resp.Status == StatusCollectionUnknown {
		return nil, ErrUnknownCollectionID
	}

	if resp.Status != StatusSuccess {
		return nil, DecodeServerError(resp)
	}

	vbUuid, seqNo, err := decodeMutationExtras(resp)
	if err != nil {
		return nil, err
	}

	return &DeleteResponse{
		Cas:            resp.Cas,
		MutationVbUuid: vbUuid,
		MutationSeqNo:  seqNo,
	}, nil
}

type GetCollectionIDRequest struct {
	ScopeName      string
	CollectionName string
}

type GetCollectionIDResponse struct {
	ManifestRev  uint64
	CollectionID uint32
}

// EncodeGetCollectionID builds the resolution request itself, so the key is
// the literal "scope.collection" path and is never collection-qualified.
func (o Ops) EncodeGetCollectionID(req *GetCollectionIDRequest) (*Packet, error) {
	if !o.CollectionsEnabled {
		return nil, ErrCollectionsNotEnabled
	}

	if req.ScopeName == "" {
		return nil, invalidArgError{"scope name cannot be empty"}
	}
	if req.CollectionName == "" {
		return nil, invalidArgError{"collection name cannot be empty"}
	}

	reqPath := req.ScopeName + "." + req.CollectionName

	return &Packet{
		Magic:  MagicReq,
		OpCode: OpCodeCollectionsGetID,
		Key:    []byte(reqPath),
	}, nil
}

func (o Ops) DecodeGetCollectionID(resp *Packet) (*GetCollectionIDResponse, error) {
	if resp.Status == StatusScopeUnknown {
		return nil, ErrUnknownScopeName
	} else if resp.Status == StatusCollectionUnknown {
		return nil, ErrUnknownCollectionName
	}

	if resp.Status != StatusSuccess {
		return nil, DecodeServerError(resp)
	}

	if len(resp.Extras) != 12 {
		return nil, protocolError{"invalid extras length"}
	}

	manifestRev := binary.BigEndian.Uint64(resp.Extras[0:])
	collectionID := binary.BigEndian.Uint32(resp.Extras[8:])

	return &GetCollectionIDResponse{
		ManifestRev:  manifestRev,
		CollectionID: collectionID,
	}, nil
}

type GetCollectionManifestRequest struct{}

type GetCollectionManifestResponse struct {
	// Manifest holds the raw manifest JSON; interpreting it is the
	// caller's responsibility.
	Manifest json.RawMessage
}

func (o Ops) EncodeGetCollectionManifest(req *GetCollectionManifestRequest) (*Packet, error) {
	if !o.CollectionsEnabled {
		return nil, ErrCollectionsNotEnabled
	}

	return &Packet{
		Magic:  MagicReq,
		OpCode: OpCodeCollectionsGetManifest,
	}, nil
}

func (o Ops) DecodeGetCollectionManifest(resp *Packet) (*GetCollectionManifestResponse, error) {
	if resp.Status != StatusSuccess {
		return nil, DecodeServerError(resp)
	}

	return &GetCollectionManifestResponse{
		Manifest: json.RawMessage(resp.Value),
	}, nil
}

type NoopRequest struct{}

type NoopResponse struct{}

func (o Ops) EncodeNoop(req *NoopRequest) (*Packet, error) {
	return &Packet{
		Magic:  MagicReq,
		OpCode: OpCodeNoop,
	}, nil
}

func (o Ops) DecodeNoop(resp *Packet) (*NoopResponse, error) {
	if resp.Status != StatusSuccess {
		return nil, DecodeServerError(resp)
	}

	return &NoopResponse{}, nil
}
