package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// LengthPrefixSize is the size, in bytes, of the frame's length prefix.
const LengthPrefixSize = 4

// idSize is the size, in bytes, of the message-kind field counted inside
// the length prefix.
const idSize = 2

// ErrOversizedFrame is returned when a frame's declared length exceeds the
// configured read-buffer ceiling.
var ErrOversizedFrame = errors.New("wire: frame exceeds read buffer ceiling")

// Frame is the result of peeling a single frame off the wire: the message
// kind is always known, but Body is nil (and Handled false) for kinds the
// codec chose to drain-and-drop instead of deserializing.
type Frame struct {
	Kind    Kind
	Body    []byte
	Handled bool
}

// ReadFrame implements the two-phase read contract: peek the length, peek
// the 2-byte kind, and only then decide whether to read (and later
// deserialize) the remaining body or to discard it. maxBodyLen bounds the
// total frame length (kind + body); frames declaring a larger length are
// drained and reported as unhandled without ever allocating a body buffer.
//
// Go's io.ReadFull blocks until the requested bytes arrive or the
// connection closes, so there is no "incomplete frame" outcome distinct
// from a read error the way there is in a non-blocking reactor: a partial
// frame simply surfaces as io.ErrUnexpectedEOF/io.EOF, which callers treat
// as connection-fatal like any other framing error.
func ReadFrame(r io.Reader, maxBodyLen uint32) (Frame, error) {
	var lenBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Frame{}, err
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])

	var idBuf [idSize]byte
	if _, err := io.ReadFull(r, idBuf[:]); err != nil {
		return Frame{}, err
	}
	kind := Kind(binary.LittleEndian.Uint16(idBuf[:]))

	if length < idSize {
		return Frame{}, fmt.Errorf("wire: frame length %d shorter than kind field", length)
	}
	bodyLen := length - idSize

	if (maxBodyLen != 0 && length > maxBodyLen) || !Accepted(kind) {
		if _, err := io.CopyN(io.Discard, r, int64(bodyLen)); err != nil {
			return Frame{}, fmt.Errorf("wire: draining unhandled frame (kind %s): %w", kind, err)
		}
		return Frame{Kind: kind, Handled: false}, nil
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, err
	}
	return Frame{Kind: kind, Body: body, Handled: true}, nil
}

// WriteFrame writes the 4-byte length prefix followed by the 2-byte kind
// and the message body, as a single buffered write so the frame is atomic
// from the reader's point of view.
func WriteFrame(w io.Writer, m Message) error {
	body := Encode(m)
	total := make([]byte, LengthPrefixSize+idSize+len(body))
	binary.LittleEndian.PutUint32(total[:LengthPrefixSize], uint32(idSize+len(body)))
	binary.LittleEndian.PutUint16(total[LengthPrefixSize:LengthPrefixSize+idSize], uint16(m.Kind()))
	copy(total[LengthPrefixSize+idSize:], body)
	_, err := w.Write(total)
	return err
}
