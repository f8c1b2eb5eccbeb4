package gonimbusx

// MutationToken identifies the exact partition, failover log position, and
// sequence number produced by a mutation.  The fields are opaque comparison
// values; this layer never interprets them arithmetically.
type MutationToken struct {
	PartitionID   uint16
	PartitionUUID uint64
	SeqNo         uint64
	BucketName    string
}
