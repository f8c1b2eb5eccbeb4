package nimdx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestULEB128RoundTrip(t *testing.T) {
	values := []uint32{0, 1, 0x7f, 0x80, 0x1234, 0xcafe, 0xffffffff}

	for _, v := range values {
		buf := AppendULEB128_32(nil, v)

		out, n, err := DecodeULEB128_32(buf)
		require.NoError(t, err)
		assert.Equal(t, v, out)
		assert.Equal(t, len(buf), n)
	}
}

func TestULEB128SingleByteBelowContinuation(t *testing.T) {
	buf := AppendULEB128_32(nil, 0x7f)
	assert.Equal(t, []byte{0x7f}, buf)

	buf = AppendULEB128_32(nil, 0x80)
	assert.Equal(t, []byte{0x80, 0x01}, buf)
}

func TestULEB128DecodeEmpty(t *testing.T) {
	_, _, err := DecodeULEB128_32(nil)
	require.ErrorIs(t, err, ErrProtocol)
}

func TestULEB128DecodeTruncated(t *testing.T) {
	_, _, err := DecodeULEB128_32([]byte{0x80})
	require.ErrorIs(t, err, ErrProtocol)
}

func TestCollectionIDAndKeyRoundTrip(t *testing.T) {
	buf := AppendCollectionIDAndKey(nil, 0x9a, []byte("some-key"))
	assert.Equal(t, []byte{0x9a, 0x01, 's', 'o', 'm', 'e', '-', 'k', 'e', 'y'}, buf)

	collectionID, key, err := DecodeCollectionIDAndKey(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x9a), collectionID)
	assert.Equal(t, []byte("some-key"), key)
}

func TestCollectionIDAndKeyDefaultCollection(t *testing.T) {
	buf := AppendCollectionIDAndKey(nil, 0, []byte("k"))
	assert.Equal(t, []byte{0x00, 'k'}, buf)
}
