package nimdx

import (
	"encoding/binary"
	"io"
)

type PacketWriter struct {
	// we use a heap-allocated write buffer since io.Write will cause
	// the buffer to escape regardless of what we want.
	writeBuf []byte
}

func (pw *PacketWriter) WritePacket(w io.Writer, pak *Packet) error {
	pw.writeBuf = pw.writeBuf[:0]

	buf, err := AppendPacket(pw.writeBuf, pak)
	if err != nil {
		return err
	}
	pw.writeBuf = buf

	// Write guarantees that err is returned if n<len, so we can just ignore
	// n and only inspect the error to determine if something went wrong.
	_, err = w.Write(pw.writeBuf)
	if err != nil {
		return err
	}

	return nil
}

type PacketReader struct {
	// we use this heap-allocated read buffer since io.Read will cause
	// the buffer to escape.  the payload portion of the packet is
	// allocated on-demand since it always escapes through references
	// held by the *Packet object.
	readHeaderBuf []byte
}

func (pr *PacketReader) ReadPacket(r io.Reader, pak *Packet) error {
	if len(pr.readHeaderBuf) != packetHeaderLen {
		pr.readHeaderBuf = make([]byte, packetHeaderLen)
	}
	headerBuf := pr.readHeaderBuf

	_, err := io.ReadFull(r, headerBuf)
	if err != nil {
		return err
	}

	payloadLen := int(binary.BigEndian.Uint32(headerBuf[8:]))

	fullBuf := make([]byte, packetHeaderLen+payloadLen)
	copy(fullBuf, headerBuf)

	_, err = io.ReadFull(r, fullBuf[packetHeaderLen:])
	if err != nil {
		return err
	}

	_, err = ParsePacket(fullBuf, pak)
	return err
}
