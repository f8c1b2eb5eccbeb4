package nimdx

// Packet represents a single wire-level unit of the protocol.  The same
// structure is used for requests and responses, with the Magic value
// indicating which of the fields are meaningful.
type Packet struct {
	Magic         Magic
	OpCode        OpCode
	Datatype      uint8
	PartitionID   uint16 // Only valid for request packets
	Status        Status // Only valid for response packets
	Opaque        uint32
	Cas           uint64
	FramingExtras []byte // Only valid for extended-magic packets
	Extras        []byte
	Key           []byte
	Value         []byte
}
