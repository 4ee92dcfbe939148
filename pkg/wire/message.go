package wire

import (
	"bytes"
	"fmt"

	"github.com/nspcc-dev/node-crawler/pkg/bio"
	"github.com/nspcc-dev/node-crawler/pkg/netaddr"
)

// Message is implemented by every message the crawler emits or consumes.
type Message interface {
	Kind() Kind
	encode(w *bio.BinWriter)
	decode(r *bio.BinReader)
}

// ChallengeRequest is the first handshake message, sent by both sides
// before either has read anything from the other.
type ChallengeRequest struct {
	Version          uint32
	MaxForkDepth     uint32
	NodeType         NodeType
	State            State
	ListeningPort    uint16
	Nonce            uint64
	CumulativeWeight [16]byte // little-endian u128
}

// Kind implements Message.
func (*ChallengeRequest) Kind() Kind { return KindChallengeRequest }

func (m *ChallengeRequest) encode(w *bio.BinWriter) {
	w.WriteU32LE(m.Version)
	w.WriteU32LE(m.MaxForkDepth)
	w.WriteU8(uint8(m.NodeType))
	w.WriteU8(uint8(m.State))
	w.WriteU16LE(m.ListeningPort)
	w.WriteU64LE(m.Nonce)
	w.WriteFixedBytes(m.CumulativeWeight[:])
}

func (m *ChallengeRequest) decode(r *bio.BinReader) {
	m.Version = r.ReadU32LE()
	m.MaxForkDepth = r.ReadU32LE()
	m.NodeType = NodeType(r.ReadU8())
	m.State = State(r.ReadU8())
	m.ListeningPort = r.ReadU16LE()
	m.Nonce = r.ReadU64LE()
	r.ReadFixedBytes(m.CumulativeWeight[:])
}

// ChallengeResponse is the second handshake message, carrying the sender's
// genesis block header for mutual verification.
type ChallengeResponse struct {
	Genesis BlockHeader
}

// Kind implements Message.
func (*ChallengeResponse) Kind() Kind { return KindChallengeResponse }

func (m *ChallengeResponse) encode(w *bio.BinWriter) { m.Genesis.Encode(w) }
func (m *ChallengeResponse) decode(r *bio.BinReader) { m.Genesis.Decode(r) }

// Ping carries the sender's liveness/metadata and a header whose only field
// the crawler consumes synchronously is the height (see RawHeader).
type Ping struct {
	Version   uint32
	ForkDepth uint32
	NodeType  NodeType
	State     State
	BlockHash [32]byte
	Header    RawHeader
}

// Kind implements Message.
func (*Ping) Kind() Kind { return KindPing }

func (m *Ping) encode(w *bio.BinWriter) {
	w.WriteU32LE(m.Version)
	w.WriteU32LE(m.ForkDepth)
	w.WriteU8(uint8(m.NodeType))
	w.WriteU8(uint8(m.State))
	w.WriteFixedBytes(m.BlockHash[:])
	m.Header.Write(w)
}

func (m *Ping) decode(r *bio.BinReader) {
	m.Version = r.ReadU32LE()
	m.ForkDepth = r.ReadU32LE()
	m.NodeType = NodeType(r.ReadU8())
	m.State = State(r.ReadU8())
	r.ReadFixedBytes(m.BlockHash[:])
	m.Header = ReadRawHeader(r)
}

// Pong is the liveness reply, always carrying a (precomputable) minimal
// block-locator set.
type Pong struct {
	Locators BlockLocators
}

// Kind implements Message.
func (*Pong) Kind() Kind { return KindPong }

func (m *Pong) encode(w *bio.BinWriter) { m.Locators.Encode(w) }
func (m *Pong) decode(r *bio.BinReader) { m.Locators.Decode(r) }

// PeerRequest carries no payload; it solicits a PeerResponse.
type PeerRequest struct{}

// Kind implements Message.
func (*PeerRequest) Kind() Kind { return KindPeerRequest }

func (m *PeerRequest) encode(*bio.BinWriter) {}
func (m *PeerRequest) decode(*bio.BinReader) {}

// PeerResponse carries a sample of the sender's known peer listening
// addresses.
type PeerResponse struct {
	Addrs []netaddr.Addr
}

// Kind implements Message.
func (*PeerResponse) Kind() Kind { return KindPeerResponse }

func (m *PeerResponse) encode(w *bio.BinWriter) {
	w.WriteU32LE(uint32(len(m.Addrs)))
	for _, a := range m.Addrs {
		w.WriteFixedBytes(a.IP.To16())
		w.WriteU16LE(a.Port)
	}
}

func (m *PeerResponse) decode(r *bio.BinReader) {
	n := r.ReadU32LE()
	m.Addrs = make([]netaddr.Addr, n)
	for i := range m.Addrs {
		ip := make([]byte, 16)
		r.ReadFixedBytes(ip)
		port := r.ReadU16LE()
		m.Addrs[i] = netaddr.Addr{IP: ip, Port: port}
	}
}

// Disconnect announces a graceful close with a human-readable reason.
type Disconnect struct {
	Reason string
}

// Kind implements Message.
func (*Disconnect) Kind() Kind { return KindDisconnect }

func (m *Disconnect) encode(w *bio.BinWriter) { w.WriteString(m.Reason) }
func (m *Disconnect) decode(r *bio.BinReader) { m.Reason = r.ReadString() }

// New allocates a zero-valued Message for the given kind, or nil if the
// kind is not one of the message kinds defined in this package. It also
// covers Pong, which ReadFrame drains instead of handing to Decode.
func New(k Kind) Message {
	switch k {
	case KindChallengeRequest:
		return &ChallengeRequest{}
	case KindChallengeResponse:
		return &ChallengeResponse{}
	case KindPing:
		return &Ping{}
	case KindPong:
		return &Pong{}
	case KindPeerRequest:
		return &PeerRequest{}
	case KindPeerResponse:
		return &PeerResponse{}
	case KindDisconnect:
		return &Disconnect{}
	default:
		return nil
	}
}

// Encode serializes a message's body (everything after the 2-byte kind,
// which the frame codec writes separately).
func Encode(m Message) []byte {
	buf := new(bytes.Buffer)
	w := bio.NewBinWriterFromIO(buf)
	m.encode(w)
	if w.Err != nil {
		// encode() only ever fails if the underlying writer fails, and
		// bytes.Buffer never returns an error from Write.
		panic(fmt.Sprintf("wire: unexpected encode error: %v", w.Err))
	}
	return buf.Bytes()
}

// Decode deserializes a message body into a freshly allocated value of the
// right concrete type for k.
func Decode(k Kind, body []byte) (Message, error) {
	m := New(k)
	if m == nil {
		return nil, fmt.Errorf("wire: no decoder for kind %s", k)
	}
	r := bio.NewBinReaderFromIO(bytes.NewReader(body))
	m.decode(r)
	if r.Err != nil {
		return nil, fmt.Errorf("wire: decode %s: %w", k, r.Err)
	}
	return m, nil
}
