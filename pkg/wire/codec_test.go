package wire

import (
	"bytes"
	"testing"

	"github.com/nspcc-dev/node-crawler/pkg/netaddr"
	"github.com/stretchr/testify/require"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	msgs := []Message{
		&ChallengeRequest{Version: 5, NodeType: NodeTypeClient, State: StateReady, ListeningPort: 4132, Nonce: 42},
		&ChallengeResponse{Genesis: BlockHeader{Height: 0, Timestamp: 123}},
		&PeerRequest{},
		&PeerResponse{Addrs: []netaddr.Addr{netaddr.MustParse("1.2.3.4:4132")}},
		&Disconnect{Reason: "bye"},
	}
	for _, m := range msgs {
		buf := new(bytes.Buffer)
		require.NoError(t, WriteFrame(buf, m))

		frame, err := ReadFrame(buf, 0)
		require.NoError(t, err)
		require.True(t, frame.Handled)
		require.Equal(t, m.Kind(), frame.Kind)

		decoded, err := Decode(frame.Kind, frame.Body)
		require.NoError(t, err)
		require.Equal(t, m, decoded)
	}
}

func TestReadFrameDiscardsUnknownID(t *testing.T) {
	buf := new(bytes.Buffer)
	// Construct a frame with an ID outside the accepted set and a 1KiB body.
	body := bytes.Repeat([]byte{0xAB}, 1024)
	raw := make([]byte, LengthPrefixSize+idSize+len(body))
	// length = idSize + len(body)
	raw[0] = byte((idSize + len(body)))
	raw[1] = byte((idSize + len(body)) >> 8)
	raw[4] = 0xFE
	raw[5] = 0xFF
	copy(raw[6:], body)
	buf.Write(raw)

	// A well-formed frame follows; the reader must still find it.
	require.NoError(t, WriteFrame(buf, &PeerRequest{}))

	frame, err := ReadFrame(buf, 0)
	require.NoError(t, err)
	require.False(t, frame.Handled)
	require.Equal(t, Kind(0xFFFE), frame.Kind)

	frame2, err := ReadFrame(buf, 0)
	require.NoError(t, err)
	require.True(t, frame2.Handled)
	require.Equal(t, KindPeerRequest, frame2.Kind)
}

func TestReadFrameOversizedIsDiscarded(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, WriteFrame(buf, &PeerResponse{Addrs: []netaddr.Addr{netaddr.MustParse("1.2.3.4:4132")}}))
	require.NoError(t, WriteFrame(buf, &PeerRequest{}))

	frame, err := ReadFrame(buf, 8) // too small a ceiling for the PeerResponse frame
	require.NoError(t, err)
	require.False(t, frame.Handled)

	frame2, err := ReadFrame(buf, 8)
	require.NoError(t, err)
	require.True(t, frame2.Handled)
	require.Equal(t, KindPeerRequest, frame2.Kind)
}

func TestReadFrameIncompleteSurfacesAsError(t *testing.T) {
	buf := bytes.NewBuffer([]byte{1, 0})
	_, err := ReadFrame(buf, 0)
	require.Error(t, err)
}
