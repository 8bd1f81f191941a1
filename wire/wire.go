// Package wire implements the length-framed binary protocol shared by the
// privilege service and its clients. Every primitive is
// written and read in little-endian byte order with fixed width, matching the
// host-order layout the original C daemon puts on the wire on little-endian
// machines (see byteOrder); there is no schema negotiation or
// self-description, so encoding/binary directly against a byte buffer is the
// correct tool rather than a general-purpose serialization library.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ProtocolError is returned by a Reader when the frame is malformed: a read
// requests more bytes than remain, or a declared length is negative.
type ProtocolError struct {
	// Op names the primitive being decoded when the error occurred.
	Op string
	// Err is the underlying cause, if any.
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wire: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("wire: %s: malformed frame", e.Op)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

var (
	errShortRead    = errors.New("short read")
	errNegativeSize = errors.New("negative length")

	// ErrFieldTooLarge is the cause wrapped by a ProtocolError when a
	// declared string or vector length exceeds MaxFrameLen/MaxVectorLen.
	// Unlike other decode failures this is a well-formed request the server
	// chooses not to honor, so callers can distinguish it with errors.Is and
	// reply with a status instead of simply closing the connection.
	ErrFieldTooLarge = errors.New("declared length exceeds limit")

	// ErrEmbeddedNUL is the cause wrapped by a ProtocolError when a decoded
	// string contains a NUL byte. No field on this wire is ever legitimately
	// NUL-carrying, so like ErrFieldTooLarge this is distinguishable from a
	// malformed frame via errors.Is.
	ErrEmbeddedNUL = errors.New("string contains embedded NUL byte")
)

func protoErr(op string, err error) error { return &ProtocolError{Op: op, Err: err} }

// byteOrder is the encoding used for every fixed-width primitive. The
// reference daemon encodes in host order; amd64/arm64 are little-endian, so
// this implementation is pinned to binary.LittleEndian to match the only
// architectures the deployment targets.
var byteOrder = binary.LittleEndian

// MaxFrameLen bounds a single frame's payload to guard against a hostile or
// corrupt length prefix causing an unbounded allocation.
const MaxFrameLen = 1 << 20 // 1 MiB

// MaxVectorLen bounds the element count of a decoded vector for the same
// reason.
const MaxVectorLen = 1 << 16

// Reader decodes primitives from a frame payload already stripped of its
// uint32 length prefix.
type Reader struct {
	b *bytes.Reader
}

// NewReader wraps payload for decoding.
func NewReader(payload []byte) *Reader { return &Reader{b: bytes.NewReader(payload)} }

// Len returns the number of unread bytes remaining in the frame.
func (r *Reader) Len() int { return r.b.Len() }

func (r *Reader) need(op string, n int) error {
	if r.b.Len() < n {
		return protoErr(op, errShortRead)
	}
	return nil
}

// Int32 reads a signed 32-bit integer, used for action codes and statuses.
func (r *Reader) Int32() (int32, error) {
	if err := r.need("int32", 4); err != nil {
		return 0, err
	}
	var v int32
	if err := binary.Read(r.b, byteOrder, &v); err != nil {
		return 0, protoErr("int32", err)
	}
	return v, nil
}

// Uint32 reads an unsigned 32-bit integer.
func (r *Reader) Uint32() (uint32, error) {
	if err := r.need("uint32", 4); err != nil {
		return 0, err
	}
	var v uint32
	if err := binary.Read(r.b, byteOrder, &v); err != nil {
		return 0, protoErr("uint32", err)
	}
	return v, nil
}

// Size reads a size_t-equivalent; encoded identically to Uint32 on this wire.
func (r *Reader) Size() (uint32, error) { return r.Uint32() }

// Pid reads a pid_t-equivalent, encoded as a signed 32-bit integer.
func (r *Reader) Pid() (int32, error) { return r.Int32() }

// Bool reads a single byte and interprets zero as false, anything else true.
func (r *Reader) Bool() (bool, error) {
	if err := r.need("bool", 1); err != nil {
		return false, err
	}
	b, err := r.b.ReadByte()
	if err != nil {
		return false, protoErr("bool", err)
	}
	return b != 0, nil
}

// String reads a uint32 length prefix followed by that many raw bytes. A
// declared length exceeding MaxFrameLen, or a decoded byte sequence carrying
// a NUL, is rejected as ErrFieldTooLarge / ErrEmbeddedNUL respectively rather
// than silently truncated or passed through.
func (r *Reader) String() (string, error) {
	n, err := r.Uint32()
	if err != nil {
		return "", err
	}
	if int32(n) < 0 || n > MaxFrameLen {
		return "", protoErr("string", ErrFieldTooLarge)
	}
	if err := r.need("string", int(n)); err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := r.b.Read(buf); err != nil {
		return "", protoErr("string", err)
	}
	if bytes.IndexByte(buf, 0) != -1 {
		return "", protoErr("string", ErrEmbeddedNUL)
	}
	return string(buf), nil
}

// StringVector reads a uint32 count followed by that many [String] elements.
func (r *Reader) StringVector() ([]string, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if n > MaxVectorLen {
		return nil, protoErr("string-vector", ErrFieldTooLarge)
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := r.String()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// UintVector reads a uint32 count followed by that many uint32 elements.
func (r *Reader) UintVector() ([]uint32, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if n > MaxVectorLen {
		return nil, protoErr("uint-vector", ErrFieldTooLarge)
	}
	out := make([]uint32, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Writer accumulates an encoded reply or request payload.
type Writer struct {
	b bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return new(Writer) }

func (w *Writer) Int32(v int32)   { _ = binary.Write(&w.b, byteOrder, v) }
func (w *Writer) Uint32(v uint32) { _ = binary.Write(&w.b, byteOrder, v) }
func (w *Writer) Size(v uint32)   { w.Uint32(v) }
func (w *Writer) Pid(v int32)     { w.Int32(v) }

func (w *Writer) Bool(v bool) {
	if v {
		w.b.WriteByte(1)
	} else {
		w.b.WriteByte(0)
	}
}

func (w *Writer) String(s string) {
	w.Uint32(uint32(len(s)))
	w.b.WriteString(s)
}

func (w *Writer) StringVector(v []string) {
	w.Uint32(uint32(len(v)))
	for _, s := range v {
		w.String(s)
	}
}

func (w *Writer) UintVector(v []uint32) {
	w.Uint32(uint32(len(v)))
	for _, u := range v {
		w.Uint32(u)
	}
}

// Bytes returns the accumulated payload.
func (w *Writer) Bytes() []byte { return w.b.Bytes() }

// FrameLen returns the uint32 length prefix required to frame Bytes.
func (w *Writer) FrameLen() uint32 { return uint32(w.b.Len()) }
