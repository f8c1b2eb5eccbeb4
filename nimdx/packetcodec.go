package nimdx

import (
	"encoding/binary"
	"math"
)

const packetHeaderLen = 24

// AppendPacket encodes a packet onto the end of buf and returns the extended
// buffer.  All multi-byte header fields are big-endian.  The total body length
// field is always written as exactly framing-extras + extras + key + value.
func AppendPacket(buf []byte, pak *Packet) ([]byte, error) {
	extFramesLen := len(pak.FramingExtras)
	extrasLen := len(pak.Extras)
	keyLen := len(pak.Key)
	valueLen := len(pak.Value)
	payloadLen := extFramesLen + extrasLen + keyLen + valueLen

	var headerBuf [packetHeaderLen]byte

	headerBuf[0] = uint8(pak.Magic)
	headerBuf[1] = uint8(pak.OpCode)

	if pak.Magic == MagicReq || pak.Magic == MagicRes {
		if extFramesLen > 0 {
			return nil, protocolError{"cannot use framing extras with non-ext packets"}
		}

		if keyLen > math.MaxUint16 {
			return nil, protocolError{"key too long to encode"}
		}

		binary.BigEndian.PutUint16(headerBuf[2:], uint16(keyLen))
	} else if pak.Magic == MagicReqExt || pak.Magic == MagicResExt {
		if extFramesLen > math.MaxUint8 {
			return nil, protocolError{"framing extras too long to encode"}
		}

		if keyLen > math.MaxUint8 {
			return nil, protocolError{"key too long to encode"}
		}

		headerBuf[2] = uint8(extFramesLen)
		headerBuf[3] = uint8(keyLen)
	} else {
		return nil, protocolError{"invalid magic for key length encoding"}
	}

	if extrasLen > math.MaxUint8 {
		return nil, protocolError{"extras too long to encode"}
	}
	headerBuf[4] = uint8(extrasLen)

	headerBuf[5] = pak.Datatype

	if pak.Magic.IsRequest() {
		if pak.Status != 0 {
			return nil, protocolError{"cannot specify status in a request packet"}
		}

		binary.BigEndian.PutUint16(headerBuf[6:], pak.PartitionID)
	} else {
		if pak.PartitionID != 0 {
			return nil, protocolError{"cannot specify partition in a response packet"}
		}

		binary.BigEndian.PutUint16(headerBuf[6:], uint16(pak.Status))
	}

	if payloadLen > math.MaxUint32 {
		return nil, protocolError{"packet too long to encode"}
	}
	binary.BigEndian.PutUint32(headerBuf[8:], uint32(payloadLen))

	binary.BigEndian.PutUint32(headerBuf[12:], pak.Opaque)

	binary.BigEndian.PutUint64(headerBuf[16:], pak.Cas)

	buf = append(buf, headerBuf[:]...)
	buf = append(buf, pak.FramingExtras...)
	buf = append(buf, pak.Extras...)
	buf = append(buf, pak.Key...)
	buf = append(buf, pak.Value...)

	return buf, nil
}

// ParsePacket decodes a single packet from buf into pak, returning the number
// of bytes consumed.  Every field access is bounds-checked against the lengths
// declared in the header; a body shorter than the header promises is an error
// rather than a panic.
func ParsePacket(buf []byte, pak *Packet) (int, error) {
	if len(buf) < packetHeaderLen {
		return 0, protocolError{"packet header truncated"}
	}

	pak.Magic = Magic(buf[0])
	pak.OpCode = OpCode(buf[1])

	var extFramesLen int
	var keyLen int
	if pak.Magic == MagicReq || pak.Magic == MagicRes {
		extFramesLen = 0
		keyLen = int(binary.BigEndian.Uint16(buf[2:]))
	} else if pak.Magic == MagicReqExt || pak.Magic == MagicResExt {
		extFramesLen = int(buf[2])
		keyLen = int(buf[3])
	} else {
		return 0, protocolError{"invalid magic for key length decoding"}
	}

	extrasLen := int(buf[4])

	pak.Datatype = buf[5]

	if pak.Magic.IsRequest() {
		pak.PartitionID = binary.BigEndian.Uint16(buf[6:])
		pak.Status = 0
	} else {
		pak.PartitionID = 0
		pak.Status = Status(binary.BigEndian.Uint16(buf[6:]))
	}

	payloadLen := int(binary.BigEndian.Uint32(buf[8:]))

	pak.Opaque = binary.BigEndian.Uint32(buf[12:])

	pak.Cas = binary.BigEndian.Uint64(buf[16:])

	if payloadLen < extFramesLen+extrasLen+keyLen {
		return 0, protocolError{"packet body length field too small"}
	}
	if len(buf) < packetHeaderLen+payloadLen {
		return 0, protocolError{"packet body truncated"}
	}

	valueLen := payloadLen - extFramesLen - extrasLen - keyLen

	payloadBuf := buf[packetHeaderLen : packetHeaderLen+payloadLen]
	payloadPos := 0

	pak.FramingExtras = payloadBuf[payloadPos : payloadPos+extFramesLen]
	payloadPos += extFramesLen

	pak.Extras = payloadBuf[payloadPos : payloadPos+extrasLen]
	payloadPos += extrasLen

	pak.Key = payloadBuf[payloadPos : payloadPos+keyLen]
	payloadPos += keyLen

	pak.Value = payloadBuf[payloadPos : payloadPos+valueLen]

	return packetHeaderLen + payloadLen, nil
}
