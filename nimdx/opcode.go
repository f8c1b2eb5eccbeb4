package nimdx

import "encoding/hex"

// OpCode represents the specific command the packet is performing.
type OpCode uint8

// These constants provide predefined values for all the operations
// which are supported by this library.
const (
	OpCodeGet                    = OpCode(0x00)
	OpCodeDelete                 = OpCode(0x04)
	OpCodeNoop                   = OpCode(0x0a)
	OpCodeTouch                  = OpCode(0x1c)
	OpCodeHello                  = OpCode(0x1f)
	OpCodeGetClusterConfig       = OpCode(0xb5)
	OpCodeCollectionsGetManifest = OpCode(0xba)
	OpCodeCollectionsGetID       = OpCode(0xbb)
)

// Name returns the string representation of the OpCode.
func (c OpCode) Name() string {
	switch c {
	case OpCodeGet:
		return "GET"
	case OpCodeDelete:
		return "DELETE"
	case OpCodeNoop:
		return "NOOP"
	case OpCodeTouch:
		return "TOUCH"
	case OpCodeHello:
		return "HELLO"
	case OpCodeGetClusterConfig:
		return "GETCLUSTERCONFIG"
	case OpCodeCollectionsGetManifest:
		return "GETCOLLECTIONMANIFEST"
	case OpCodeCollectionsGetID:
		return "GETCOLLECTIONID"
	default:
		return "x" + hex.EncodeToString([]byte{byte(c)})
	}
}
