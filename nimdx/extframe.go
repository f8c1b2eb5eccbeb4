package nimdx

import (
	"math"
	"time"
)

// ExtFrameCode identifies the type of a single framing-extras frame.
type ExtFrameCode uint16

const (
	ExtFrameCodeReqBarrier    = ExtFrameCode(0x00)
	ExtFrameCodeReqDurability = ExtFrameCode(0x01)

	ExtFrameCodeResServerDuration = ExtFrameCode(0x00)
)

// durability frames always carry level + 2-byte timeout, so the length
// nibble is fixed.
const durabilityExtFrameLen = 3

func AppendExtFrame(buf []byte, frameCode ExtFrameCode, frameBody []byte) ([]byte, error) {
	frameLen := len(frameBody)

	// add the header
	buf = append(buf, 0)
	hdrBytePtr := &buf[len(buf)-1]

	if frameCode < 15 {
		*hdrBytePtr = *hdrBytePtr | (byte(frameCode&0xF) << 4)
	} else {
		if frameCode-15 >= 15 {
			return nil, protocolError{"extframe code too large to encode"}
		}

		*hdrBytePtr = *hdrBytePtr | 0xF0
		buf = append(buf, byte(frameCode-15))
	}

	if frameLen < 15 {
		*hdrBytePtr = *hdrBytePtr | (byte(frameLen&0xF) << 0)
	} else {
		if frameLen-15 >= 15 {
			return nil, protocolError{"extframe len too large to encode"}
		}

		*hdrBytePtr = *hdrBytePtr | 0x0F
		buf = append(buf, byte(frameLen-15))
	}

	if len(frameBody) > 0 {
		buf = append(buf, frameBody...)
	}

	return buf, nil
}

func DecodeExtFrame(buf []byte) (ExtFrameCode, []byte, int, error) {
	if len(buf) < 1 {
		return 0, nil, 0, protocolError{"framing extras protocol error"}
	}

	bufPos := 0

	frameHeader := buf[bufPos]
	frameCode := ExtFrameCode((frameHeader & 0xF0) >> 4)
	frameLen := uint(frameHeader & 0x0F)
	bufPos++

	if frameCode == 15 {
		if len(buf) < bufPos+1 {
			return 0, nil, 0, protocolError{"unexpected eof"}
		}

		frameCodeExt := buf[bufPos]
		frameCode = ExtFrameCode(15 + frameCodeExt)
		bufPos++
	}

	if frameLen == 15 {
		if len(buf) < bufPos+1 {
			return 0, nil, 0, protocolError{"unexpected eof"}
		}

		frameLenExt := buf[bufPos]
		frameLen = uint(15 + frameLenExt)
		bufPos++
	}

	intFrameLen := int(frameLen)
	if len(buf) < bufPos+intFrameLen {
		return 0, nil, 0, protocolError{"unexpected eof"}
	}

	frameBody := buf[bufPos : bufPos+intFrameLen]
	bufPos += intFrameLen

	return frameCode, frameBody, bufPos, nil
}

func IterExtFrames(buf []byte, cb func(ExtFrameCode, []byte)) error {
	for len(buf) > 0 {
		frameCode, frameBody, n, err := DecodeExtFrame(buf)
		if err != nil {
			return err
		}

		cb(frameCode, frameBody)

		buf = buf[n:]
	}

	return nil
}

// AppendDurabilityExtFrame appends the fixed 4-byte durability frame: one
// header byte combining the frame code (high nibble) and length (low nibble,
// always 3), the level byte, and a big-endian millisecond timeout where zero
// means the server default.  It writes into buf directly and performs no
// allocation of its own when buf has capacity.
func AppendDurabilityExtFrame(
	buf []byte,
	level DurabilityLevel,
	timeout time.Duration,
) ([]byte, error) {
	if level == DurabilityLevelNone {
		return nil, protocolError{"cannot encode durability without a level"}
	}

	timeoutMillis := uint64(timeout / time.Millisecond)
	if timeoutMillis > math.MaxUint16 {
		return nil, protocolError{"cannot encode durability timeout greater than 65535 milliseconds"}
	}

	return append(buf,
		byte(ExtFrameCodeReqDurability)<<4|durabilityExtFrameLen,
		byte(level),
		byte(timeoutMillis>>8),
		byte(timeoutMillis),
	), nil
}

// DecodeDurabilityExtFrame decodes the body of a durability frame previously
// split out of the framing extras.
func DecodeDurabilityExtFrame(buf []byte) (DurabilityLevel, time.Duration, error) {
	if len(buf) != durabilityExtFrameLen {
		return 0, 0, protocolError{"invalid durability extframe length"}
	}

	level := DurabilityLevel(buf[0])
	timeoutMillis := uint64(buf[1])<<8 | uint64(buf[2])
	timeout := time.Duration(timeoutMillis) * time.Millisecond

	return level, timeout, nil
}

// EncodeServerDurationExtFrame encodes a server-side processing duration into
// the compressed 2-byte representation carried on extended responses.
func EncodeServerDurationExtFrame(dura time.Duration) ([]byte, error) {
	duraUs := dura / time.Microsecond
	duraEnc := int(math.Pow(float64(duraUs)*2, 1.0/1.74))
	if duraEnc > 65535 {
		duraEnc = 65535
	}

	return []byte{
		byte(duraEnc >> 8),
		byte(duraEnc),
	}, nil
}

// DecodeServerDurationExtFrame decodes the body of a server duration frame.
// The representation is lossy; the result is accurate to about a microsecond.
func DecodeServerDurationExtFrame(buf []byte) (time.Duration, error) {
	if len(buf) != 2 {
		return 0, protocolError{"invalid server duration extframe length"}
	}

	duraEnc := uint64(buf[0])<<8 | uint64(buf[1])
	duraUs := math.Round(math.Pow(float64(duraEnc), 1.74) / 2)
	dura := time.Duration(duraUs) * time.Microsecond

	return dura, nil
}
