package gonimbusx

import (
	"errors"
	"hash/crc32"
)

// PartitionMap maps partitions to pipeline indexes.  Each entry holds the
// active pipeline index first, followed by replica indexes; an index of -1
// means no pipeline currently serves that slot.
type PartitionMap struct {
	entries     [][]int
	numReplicas int
}

func NewPartitionMap(entries [][]int, numReplicas int) (*PartitionMap, error) {
	if len(entries) == 0 {
		return nil, errors.New("partition map must have at least a single entry")
	}

	pMap := PartitionMap{
		entries:     entries,
		numReplicas: numReplicas,
	}
	return &pMap, nil
}

func (m PartitionMap) NumPartitions() int {
	return len(m.entries)
}

func (m PartitionMap) NumReplicas() int {
	return m.numReplicas
}

// PartitionByKey hashes a key to its partition using the middle 15 bits of
// the key's CRC32.
func (m PartitionMap) PartitionByKey(key []byte) uint16 {
	if len(m.entries) == 0 {
		// prevent divide-by-zero panics
		return 0
	}

	crc := crc32.ChecksumIEEE(key)
	crcMidBits := uint16(crc>>16) & ^uint16(0x8000)
	return crcMidBits % uint16(len(m.entries))
}

// PipelineByPartition returns the pipeline index serving the given partition
// at the given server slot (0 being the active copy).  A return of -1 with no
// error means the slot exists but currently has no pipeline assigned.
func (m PartitionMap) PipelineByPartition(partitionID uint16, serverIdx uint32) (int, error) {
	numPartitions := uint16(len(m.entries))
	if partitionID >= numPartitions {
		return 0, invalidPartitionError{
			RequestedPartition: partitionID,
			NumPartitions:      numPartitions,
		}
	}

	if serverIdx >= uint32(len(m.entries[partitionID])) {
		return -1, nil
	}

	return m.entries[partitionID][serverIdx], nil
}
