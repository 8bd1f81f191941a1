package wire

import "encoding/binary"

// FrameHeaderLen is the width of the uint32 total_length prefix.
const FrameHeaderLen = 4

// SplitFrame reports whether buf holds at least one complete frame, and if
// so returns the frame's payload and the number of bytes (header + payload)
// consumed from buf. This is the core of the privilege service's per-request
// pipeline: callers append to a connection's incoming buffer and
// loop calling SplitFrame until it reports ok = false, at which point they
// return and await more bytes.
func SplitFrame(buf []byte) (payload []byte, consumed int, ok bool, err error) {
	if len(buf) < FrameHeaderLen {
		return nil, 0, false, nil
	}

	n := binary.LittleEndian.Uint32(buf[:FrameHeaderLen])
	if n > MaxFrameLen {
		return nil, 0, false, protoErr("frame", errNegativeSize)
	}

	total := FrameHeaderLen + int(n)
	if len(buf) < total {
		return nil, 0, false, nil
	}

	return buf[FrameHeaderLen:total], total, true, nil
}

// AppendFrame appends a length-prefixed frame wrapping payload to dst.
func AppendFrame(dst []byte, payload []byte) []byte {
	var hdr [FrameHeaderLen]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	dst = append(dst, payload...)
	return dst
}
