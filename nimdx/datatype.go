package nimdx

// DatatypeFlag specifies the datatype bits of a packet's body.
type DatatypeFlag uint8

const (
	// DatatypeFlagNone indicates the body holds raw bytes.
	DatatypeFlagNone = DatatypeFlag(0x00)

	// DatatypeFlagJSON indicates the body is JSON.  On error responses this
	// marks the presence of extended error information in the value.
	DatatypeFlagJSON = DatatypeFlag(0x01)
)
