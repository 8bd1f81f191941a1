package wire

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestPrimitiveRoundTrip(t *testing.T) {
	t.Parallel()

	w := NewWriter()
	w.Int32(-7)
	w.Uint32(42)
	w.Pid(1234)
	w.Bool(true)
	w.Bool(false)
	w.String("hello")
	w.StringVector([]string{"a", "bb", "ccc"})
	w.UintVector([]uint32{1, 2, 3})

	r := NewReader(w.Bytes())

	if v, err := r.Int32(); err != nil || v != -7 {
		t.Fatalf("Int32() = (%d, %v), want (-7, nil)", v, err)
	}
	if v, err := r.Uint32(); err != nil || v != 42 {
		t.Fatalf("Uint32() = (%d, %v), want (42, nil)", v, err)
	}
	if v, err := r.Pid(); err != nil || v != 1234 {
		t.Fatalf("Pid() = (%d, %v), want (1234, nil)", v, err)
	}
	if v, err := r.Bool(); err != nil || v != true {
		t.Fatalf("Bool() = (%v, %v), want (true, nil)", v, err)
	}
	if v, err := r.Bool(); err != nil || v != false {
		t.Fatalf("Bool() = (%v, %v), want (false, nil)", v, err)
	}
	if v, err := r.String(); err != nil || v != "hello" {
		t.Fatalf("String() = (%q, %v), want (\"hello\", nil)", v, err)
	}
	if v, err := r.StringVector(); err != nil || len(v) != 3 || v[0] != "a" || v[1] != "bb" || v[2] != "ccc" {
		t.Fatalf("StringVector() = (%v, %v), want ([a bb ccc], nil)", v, err)
	}
	if v, err := r.UintVector(); err != nil || len(v) != 3 || v[0] != 1 || v[1] != 2 || v[2] != 3 {
		t.Fatalf("UintVector() = (%v, %v), want ([1 2 3], nil)", v, err)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after consuming every written field, want 0", r.Len())
	}
}

// TestBoolWidthMismatchDesyncsFollowingFields guards the exact bug class
// that let the persistent field decode with the wrong width: a field
// written as a 4-byte Int32 but read back with the 1-byte Bool leaves 3
// bytes of that field in the stream to corrupt whatever is decoded next.
func TestBoolWidthMismatchDesyncsFollowingFields(t *testing.T) {
	t.Parallel()

	w := NewWriter()
	w.Int32(1) // a wire int, as the persistent field is documented
	w.Uint32(7)

	r := NewReader(w.Bytes())
	if _, err := r.Bool(); err != nil {
		t.Fatalf("Bool() error = %v", err)
	}
	v, err := r.Uint32()
	if err == nil && v == 7 {
		t.Fatal("Uint32() decoded the next field correctly after a 1-byte Bool read consumed a 4-byte field — width mismatch no longer reproduces")
	}
}

func TestStringRejectsEmbeddedNUL(t *testing.T) {
	t.Parallel()

	w := NewWriter()
	w.String("bad\x00value")
	r := NewReader(w.Bytes())
	if _, err := r.String(); !errors.Is(err, ErrEmbeddedNUL) {
		t.Fatalf("String() error = %v, want ErrEmbeddedNUL", err)
	}
}

func TestStringVectorRejectsEmbeddedNULInElement(t *testing.T) {
	t.Parallel()

	w := NewWriter()
	w.StringVector([]string{"clean", "bad\x00value"})
	r := NewReader(w.Bytes())
	if _, err := r.StringVector(); !errors.Is(err, ErrEmbeddedNUL) {
		t.Fatalf("StringVector() error = %v, want ErrEmbeddedNUL", err)
	}
}

func TestStringRejectsOversizedLength(t *testing.T) {
	t.Parallel()

	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, MaxFrameLen+1)
	r := NewReader(buf)
	if _, err := r.String(); !errors.Is(err, ErrFieldTooLarge) {
		t.Fatalf("String() error = %v, want ErrFieldTooLarge", err)
	}
}

func TestStringVectorRejectsOversizedCount(t *testing.T) {
	t.Parallel()

	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, MaxVectorLen+1)
	r := NewReader(buf)
	if _, err := r.StringVector(); !errors.Is(err, ErrFieldTooLarge) {
		t.Fatalf("StringVector() error = %v, want ErrFieldTooLarge", err)
	}
}

func TestReaderRejectsShortFrame(t *testing.T) {
	t.Parallel()

	r := NewReader([]byte{1, 2})
	if _, err := r.Int32(); err == nil {
		t.Fatal("Int32() error = nil on a 2-byte payload, want a short-read error")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	t.Parallel()

	w := NewWriter()
	w.Int32(99)
	w.String("payload")
	framed := AppendFrame(nil, w.Bytes())

	payload, consumed, ok, err := SplitFrame(framed)
	if err != nil || !ok {
		t.Fatalf("SplitFrame() = (_, _, %v, %v), want ok = true, err = nil", ok, err)
	}
	if consumed != len(framed) {
		t.Errorf("consumed = %d, want %d", consumed, len(framed))
	}

	r := NewReader(payload)
	if v, err := r.Int32(); err != nil || v != 99 {
		t.Fatalf("Int32() = (%d, %v), want (99, nil)", v, err)
	}
	if s, err := r.String(); err != nil || s != "payload" {
		t.Fatalf("String() = (%q, %v), want (\"payload\", nil)", s, err)
	}
}

func TestSplitFrameWaitsForCompleteFrame(t *testing.T) {
	t.Parallel()

	w := NewWriter()
	w.String("hello")
	framed := AppendFrame(nil, w.Bytes())

	_, _, ok, err := SplitFrame(framed[:len(framed)-1])
	if err != nil {
		t.Fatalf("SplitFrame() error = %v, want nil on a partial frame", err)
	}
	if ok {
		t.Fatal("SplitFrame() ok = true on a partial frame, want false")
	}
}

func TestSplitFrameRejectsOversizedLength(t *testing.T) {
	t.Parallel()

	var hdr [FrameHeaderLen]byte
	binary.LittleEndian.PutUint32(hdr[:], MaxFrameLen+1)

	if _, _, _, err := SplitFrame(hdr[:]); err == nil {
		t.Fatal("SplitFrame() error = nil for a length prefix over MaxFrameLen")
	}
}
