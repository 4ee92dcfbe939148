package wire

import (
	"bytes"

	"github.com/nspcc-dev/node-crawler/pkg/bio"
)

// NodeType mirrors the overlay's notion of a participant's role, reported
// during the handshake and on every Ping.
type NodeType uint8

// The roles the crawler may observe. The crawler itself always advertises
// Client.
const (
	NodeTypeClient NodeType = iota
	NodeTypeMiner
	NodeTypeBeacon
	NodeTypeOperator
	NodeTypeSync
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeClient:
		return "Client"
	case NodeTypeMiner:
		return "Miner"
	case NodeTypeBeacon:
		return "Beacon"
	case NodeTypeOperator:
		return "Operator"
	case NodeTypeSync:
		return "Sync"
	default:
		return "Unknown"
	}
}

// State is a peer's self-reported liveness/activity state, present only
// once a Ping has actually been received from it.
type State uint8

// The states a peer can self-report via Ping.
const (
	StateReady State = iota
	StateMining
	StateSyncing
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateMining:
		return "Mining"
	case StateSyncing:
		return "Syncing"
	case StateDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// HeaderSize is the fixed wire size, in bytes, of a BlockHeader: a 4-byte
// height, two 32-byte hashes, and an 8-byte timestamp.
const HeaderSize = 4 + 32 + 32 + 8

// BlockHeader is the minimal block header the crawler exchanges as part of
// the handshake's genesis check and as the tail of a Ping. The crawler
// never validates a header beyond comparing it byte-for-byte against its
// own genesis; it only ever reads the Height field out of a peer's header.
type BlockHeader struct {
	Height    uint32
	PrevHash  [32]byte
	Hash      [32]byte
	Timestamp int64
}

// Encode writes the header in its fixed 76-byte wire form.
func (h BlockHeader) Encode(w *bio.BinWriter) {
	w.WriteU32LE(h.Height)
	w.WriteFixedBytes(h.PrevHash[:])
	w.WriteFixedBytes(h.Hash[:])
	w.WriteU64LE(uint64(h.Timestamp))
}

// Decode reads a header in its fixed 76-byte wire form.
func (h *BlockHeader) Decode(r *bio.BinReader) {
	h.Height = r.ReadU32LE()
	r.ReadFixedBytes(h.PrevHash[:])
	r.ReadFixedBytes(h.Hash[:])
	h.Timestamp = int64(r.ReadU64LE())
}

// Bytes returns the header's canonical wire encoding, used for the
// byte-for-byte genesis comparison in the handshake.
func (h BlockHeader) Bytes() []byte {
	buf := new(bytes.Buffer)
	w := bio.NewBinWriterFromIO(buf)
	h.Encode(w)
	return buf.Bytes()
}

// Equal reports whether two headers are byte-for-byte identical.
func (h BlockHeader) Equal(o BlockHeader) bool {
	return bytes.Equal(h.Bytes(), o.Bytes())
}

// RawHeader is a header that has been read off the wire but not yet fully
// decoded, preserving the "lazy block-header decoding" contract: the reader
// goroutine only needs the height, and the full BlockHeader is only
// materialized by a caller that explicitly calls Decode; the crawler's Ping
// handler never does.
type RawHeader struct {
	raw [HeaderSize]byte
}

// ReadRawHeader consumes exactly HeaderSize bytes without decoding them.
func ReadRawHeader(r *bio.BinReader) RawHeader {
	var h RawHeader
	r.ReadFixedBytes(h.raw[:])
	return h
}

// Write emits the raw header bytes verbatim.
func (h RawHeader) Write(w *bio.BinWriter) {
	w.WriteFixedBytes(h.raw[:])
}

// Height decodes only the first 4 bytes of the raw header, the single field
// the crawler's Ping handler needs synchronously.
func (h RawHeader) Height() uint32 {
	return uint32(h.raw[0]) | uint32(h.raw[1])<<8 | uint32(h.raw[2])<<16 | uint32(h.raw[3])<<24
}

// Decode fully materializes the header; callers that need more than the
// height should do this off the hot path. pkg/crawler reads only Height and
// never calls Decode.
func (h RawHeader) Decode() BlockHeader {
	r := bio.NewBinReaderFromIO(bytes.NewReader(h.raw[:]))
	var full BlockHeader
	full.Decode(r)
	return full
}

// RawHeaderFrom packages an already-decoded header back into its raw form,
// for building a Ping's Header field from a BlockHeader. The handshake's
// genesis comparison and ChallengeResponse use BlockHeader directly.
func RawHeaderFrom(h BlockHeader) RawHeader {
	var raw RawHeader
	copy(raw.raw[:], h.Bytes())
	return raw
}

// Locator pairs a height with the hash at that height; an absent previous
// hash is represented by a zero PrevHash.
type Locator struct {
	Height   uint32
	Hash     [32]byte
	PrevHash [32]byte // zero means "None"
}

// BlockLocators is the minimal locator set the crawler replies with on
// Pong: a single entry pinned to its own genesis block.
type BlockLocators struct {
	Locators []Locator
}

// Encode writes the locator list.
func (b BlockLocators) Encode(w *bio.BinWriter) {
	w.WriteU32LE(uint32(len(b.Locators)))
	for _, l := range b.Locators {
		w.WriteU32LE(l.Height)
		w.WriteFixedBytes(l.Hash[:])
		w.WriteFixedBytes(l.PrevHash[:])
	}
}

// Decode reads a locator list.
func (b *BlockLocators) Decode(r *bio.BinReader) {
	n := r.ReadU32LE()
	b.Locators = make([]Locator, n)
	for i := range b.Locators {
		b.Locators[i].Height = r.ReadU32LE()
		r.ReadFixedBytes(b.Locators[i].Hash[:])
		r.ReadFixedBytes(b.Locators[i].PrevHash[:])
	}
}
