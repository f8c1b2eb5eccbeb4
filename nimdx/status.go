package nimdx

import "encoding/hex"

type Status uint16

const (
	// StatusSuccess indicates the operation completed successfully.
	StatusSuccess = Status(0x00)

	// StatusKeyNotFound occurs when an operation is performed on a key that does not exist.
	StatusKeyNotFound = Status(0x01)

	// StatusKeyExists occurs when an operation is performed against a key which
	// already exists, or a CAS precondition did not match.
	StatusKeyExists = Status(0x02)

	// StatusInvalidArgs occurs when the server receives invalid arguments for an operation.
	StatusInvalidArgs = Status(0x04)

	// StatusNotMyPartition occurs when an operation is dispatched to a server which is
	// non-authoritative for a specific partition.
	StatusNotMyPartition = Status(0x07)

	// StatusLocked occurs when an operation fails due to the document being locked.
	StatusLocked = Status(0x09)

	// StatusAccessError occurs when an access error occurs.
	StatusAccessError = Status(0x24)

	// StatusUnknownCommand occurs when an unknown operation is sent to a server.
	StatusUnknownCommand = Status(0x81)

	// StatusOutOfMemory occurs when the server cannot service a request due to memory
	// limitations.
	StatusOutOfMemory = Status(0x82)

	// StatusNotSupported occurs when an operation is understood by the server, but that
	// operation is not supported on this server.
	StatusNotSupported = Status(0x83)

	// StatusInternalError occurs when internal errors prevent the server from processing
	// the request.
	StatusInternalError = Status(0x84)

	// StatusBusy occurs when the server is too busy to process the request right away.
	StatusBusy = Status(0x85)

	// StatusTmpFail occurs when a temporary failure is preventing the server from
	// processing the request.
	StatusTmpFail = Status(0x86)

	// StatusCollectionUnknown occurs when a collection cannot be found.
	StatusCollectionUnknown = Status(0x88)

	// StatusScopeUnknown occurs when a scope cannot be found.
	StatusScopeUnknown = Status(0x8c)

	// StatusDurabilityInvalidLevel occurs when an invalid durability level was requested.
	StatusDurabilityInvalidLevel = Status(0xa0)

	// StatusSyncWriteInProgress occurs when an attempt is made to write to a key that
	// has a synchronous write pending.
	StatusSyncWriteInProgress = Status(0xa2)

	// StatusSyncWriteAmbiguous occurs when a synchronous write does not complete in
	// the specified time and the result is ambiguous.
	StatusSyncWriteAmbiguous = Status(0xa3)
)

// String returns the textual representation of this Status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusKeyNotFound:
		return "KeyNotFound"
	case StatusKeyExists:
		return "KeyExists"
	case StatusInvalidArgs:
		return "InvalidArgs"
	case StatusNotMyPartition:
		return "NotMyPartition"
	case StatusLocked:
		return "Locked"
	case StatusAccessError:
		return "AccessError"
	case StatusUnknownCommand:
		return "UnknownCommand"
	case StatusOutOfMemory:
		return "OutOfMemory"
	case StatusNotSupported:
		return "NotSupported"
	case StatusInternalError:
		return "InternalError"
	case StatusBusy:
		return "Busy"
	case StatusTmpFail:
		return "TmpFail"
	case StatusCollectionUnknown:
		return "CollectionUnknown"
	case StatusScopeUnknown:
		return "ScopeUnknown"
	case StatusDurabilityInvalidLevel:
		return "DurabilityInvalidLevel"
	case StatusSyncWriteInProgress:
		return "SyncWriteInProgress"
	case StatusSyncWriteAmbiguous:
		return "SyncWriteAmbiguous"
	}

	return "x" + hex.EncodeToString([]byte{byte(s >> 8), byte(s)})
}
