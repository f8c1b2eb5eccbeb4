package nimdx

// HelloFeature represents a feature code negotiated during the HELLO
// handshake on a connection.
type HelloFeature uint16

const (
	// HelloFeatureSeqNo indicates support for mutation tokens.
	HelloFeatureSeqNo = HelloFeature(0x04)

	// HelloFeatureXerror indicates support for extended error information.
	HelloFeatureXerror = HelloFeature(0x07)

	// HelloFeatureAltRequests indicates support for requests with flexible frame extras.
	HelloFeatureAltRequests = HelloFeature(0x10)

	// HelloFeatureSyncReplication indicates support for synchronous durability requirements.
	HelloFeatureSyncReplication = HelloFeature(0x11)

	// HelloFeatureCollections indicates support for collections.
	HelloFeatureCollections = HelloFeature(0x12)
)
