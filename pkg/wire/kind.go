package wire

// Kind identifies a wire message's type. It is transmitted as a
// little-endian uint16 immediately after the frame length prefix, which lets
// the codec peek at it before deciding whether to deserialize the body.
type Kind uint16

// The full set of message kinds the crawler understands. Values are
// arbitrary but stable for the lifetime of the protocol.
const (
	KindChallengeRequest Kind = iota + 1
	KindChallengeResponse
	KindPing
	KindPong
	KindPeerRequest
	KindPeerResponse
	KindDisconnect
)

func (k Kind) String() string {
	switch k {
	case KindChallengeRequest:
		return "ChallengeRequest"
	case KindChallengeResponse:
		return "ChallengeResponse"
	case KindPing:
		return "Ping"
	case KindPong:
		return "Pong"
	case KindPeerRequest:
		return "PeerRequest"
	case KindPeerResponse:
		return "PeerResponse"
	case KindDisconnect:
		return "Disconnect"
	default:
		return "Unknown"
	}
}

// acceptedKinds is the set of message IDs the reader ever hands off to the
// deserializer. Everything else (including, notably, Pong, which the
// crawler only ever emits) is drained and dropped by the frame codec to
// keep the stream synchronized without paying a deserialization cost.
var acceptedKinds = map[Kind]bool{
	KindDisconnect:        true,
	KindPeerRequest:       true,
	KindPeerResponse:      true,
	KindPing:              true,
	KindChallengeRequest:  true,
	KindChallengeResponse: true,
}

// Accepted reports whether the frame codec will deserialize a message of
// this kind rather than discarding it.
func Accepted(k Kind) bool {
	return acceptedKinds[k]
}
