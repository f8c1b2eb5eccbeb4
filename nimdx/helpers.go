package nimdx

func AppendULEB128_32(buf []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7

		if v != 0 {
			c |= 0x80
		}

		buf = append(buf, c)

		if c&0x80 == 0 {
			break
		}
	}

	return buf
}

func DecodeULEB128_32(buf []byte) (uint32, int, error) {
	if len(buf) == 0 {
		return 0, 0, protocolError{"no data provided"}
	}

	var u uint32
	var n int
	for {
		if n >= len(buf) {
			return 0, 0, protocolError{"encoded number truncated"}
		}
		if n*7 > 32 {
			return 0, 0, protocolError{"encoded number too long"}
		}

		u |= uint32(buf[n]&0x7f) << (n * 7)

		if buf[n]&0x80 == 0 {
			break
		}
		n++
	}

	return u, n + 1, nil
}

func AppendCollectionIDAndKey(buf []byte, collectionID uint32, key []byte) []byte {
	if buf == nil {
		buf = make([]byte, 0, 5+len(key))
	}

	buf = AppendULEB128_32(buf, collectionID)
	buf = append(buf, key...)
	return buf
}

func DecodeCollectionIDAndKey(buf []byte) (uint32, []byte, error) {
	collectionID, n, err := DecodeULEB128_32(buf)
	if err != nil {
		return 0, nil, err
	}

	return collectionID, buf[n:], nil
}
