package bio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	buf := new(bytes.Buffer)
	w := NewBinWriterFromIO(buf)
	w.WriteU8(7)
	w.WriteBool(true)
	w.WriteU16LE(1234)
	w.WriteU32LE(987654)
	w.WriteU64LE(1 << 40)
	w.WriteU128LE(42, 0)
	w.WriteString("hello peer")
	require.NoError(t, w.Err)

	r := NewBinReaderFromIO(buf)
	require.Equal(t, uint8(7), r.ReadU8())
	require.True(t, r.ReadBool())
	require.Equal(t, uint16(1234), r.ReadU16LE())
	require.Equal(t, uint32(987654), r.ReadU32LE())
	require.Equal(t, uint64(1<<40), r.ReadU64LE())
	lo, hi := r.ReadU128LE()
	require.Equal(t, uint64(42), lo)
	require.Equal(t, uint64(0), hi)
	require.Equal(t, "hello peer", r.ReadString())
	require.NoError(t, r.Err)
}

func TestReadBytesTooLarge(t *testing.T) {
	buf := new(bytes.Buffer)
	w := NewBinWriterFromIO(buf)
	w.WriteBytes(make([]byte, 100))

	r := NewBinReaderFromIO(buf)
	r.MaxSize = 10
	_ = r.ReadBytes()
	require.ErrorIs(t, r.Err, ErrTooLarge)
}

func TestStickyErrorShortCircuits(t *testing.T) {
	r := NewBinReaderFromIO(bytes.NewReader(nil))
	_ = r.ReadU32LE()
	require.Error(t, r.Err)
	// Further reads must not panic and must preserve the first error.
	firstErr := r.Err
	_ = r.ReadU64LE()
	require.Equal(t, firstErr, r.Err)
}
