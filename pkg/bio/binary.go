// Package bio provides a minimal little-endian binary reader/writer pair
// used to encode the crawler's wire messages. Both types carry a sticky
// error: every Read/Write method is a no-op once Err is set, so callers can
// chain a sequence of reads and check the error once at the end.
package bio

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrTooLarge is returned by ReadBytes when the requested length exceeds the
// reader's configured ceiling.
var ErrTooLarge = errors.New("bio: length exceeds maximum allowed")

// BinWriter writes little-endian primitives to an underlying io.Writer,
// accumulating the first error encountered.
type BinWriter struct {
	w   io.Writer
	Err error
}

// NewBinWriterFromIO creates a BinWriter writing to w.
func NewBinWriterFromIO(w io.Writer) *BinWriter {
	return &BinWriter{w: w}
}

func (w *BinWriter) write(p []byte) {
	if w.Err != nil {
		return
	}
	_, w.Err = w.w.Write(p)
}

// WriteU8 writes a single byte.
func (w *BinWriter) WriteU8(v uint8) {
	w.write([]byte{v})
}

// WriteBool writes a boolean as a single byte.
func (w *BinWriter) WriteBool(v bool) {
	if v {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
	}
}

// WriteU16LE writes a little-endian uint16.
func (w *BinWriter) WriteU16LE(v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	w.write(buf[:])
}

// WriteU32LE writes a little-endian uint32.
func (w *BinWriter) WriteU32LE(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.write(buf[:])
}

// WriteU64LE writes a little-endian uint64.
func (w *BinWriter) WriteU64LE(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	w.write(buf[:])
}

// WriteU128LE writes a 16-byte little-endian unsigned integer given as
// (low, high) 64-bit halves.
func (w *BinWriter) WriteU128LE(lo, hi uint64) {
	w.WriteU64LE(lo)
	w.WriteU64LE(hi)
}

// WriteBytes writes a length-prefixed (uint32 LE) byte slice.
func (w *BinWriter) WriteBytes(b []byte) {
	w.WriteU32LE(uint32(len(b)))
	w.write(b)
}

// WriteFixedBytes writes b verbatim with no length prefix; the caller is
// responsible for the receiver knowing the size in advance.
func (w *BinWriter) WriteFixedBytes(b []byte) {
	w.write(b)
}

// WriteString writes a length-prefixed UTF-8 string.
func (w *BinWriter) WriteString(s string) {
	w.WriteBytes([]byte(s))
}

// BinReader reads little-endian primitives from an underlying io.Reader,
// accumulating the first error encountered. MaxSize bounds any
// length-prefixed read; zero means unbounded.
type BinReader struct {
	r       io.Reader
	MaxSize uint32
	Err     error
}

// NewBinReaderFromIO creates a BinReader reading from r.
func NewBinReaderFromIO(r io.Reader) *BinReader {
	return &BinReader{r: r}
}

func (r *BinReader) read(p []byte) {
	if r.Err != nil {
		return
	}
	_, r.Err = io.ReadFull(r.r, p)
}

// ReadU8 reads a single byte.
func (r *BinReader) ReadU8() uint8 {
	var buf [1]byte
	r.read(buf[:])
	return buf[0]
}

// ReadBool reads a single byte as a boolean.
func (r *BinReader) ReadBool() bool {
	return r.ReadU8() != 0
}

// ReadU16LE reads a little-endian uint16.
func (r *BinReader) ReadU16LE() uint16 {
	var buf [2]byte
	r.read(buf[:])
	return binary.LittleEndian.Uint16(buf[:])
}

// ReadU32LE reads a little-endian uint32.
func (r *BinReader) ReadU32LE() uint32 {
	var buf [4]byte
	r.read(buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}

// ReadU64LE reads a little-endian uint64.
func (r *BinReader) ReadU64LE() uint64 {
	var buf [8]byte
	r.read(buf[:])
	return binary.LittleEndian.Uint64(buf[:])
}

// ReadU128LE reads a 16-byte little-endian unsigned integer, returned as
// (low, high) 64-bit halves.
func (r *BinReader) ReadU128LE() (lo, hi uint64) {
	lo = r.ReadU64LE()
	hi = r.ReadU64LE()
	return
}

// ReadBytes reads a length-prefixed (uint32 LE) byte slice.
func (r *BinReader) ReadBytes() []byte {
	n := r.ReadU32LE()
	if r.Err != nil {
		return nil
	}
	if r.MaxSize != 0 && n > r.MaxSize {
		r.Err = ErrTooLarge
		return nil
	}
	buf := make([]byte, n)
	r.read(buf)
	return buf
}

// ReadFixedBytes reads exactly len(b) bytes into b.
func (r *BinReader) ReadFixedBytes(b []byte) {
	r.read(b)
}

// ReadString reads a length-prefixed UTF-8 string.
func (r *BinReader) ReadString() string {
	return string(r.ReadBytes())
}
