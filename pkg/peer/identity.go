// Package peer implements the live connection registry: the bidirectional
// mapping between a peer's ephemeral connected address and the identity
// established for it during the handshake.
package peer

import (
	"github.com/nspcc-dev/node-crawler/pkg/netaddr"
	"github.com/nspcc-dev/node-crawler/pkg/wire"
)

// Identity is everything the handshake establishes about a connected peer.
// It lives for the duration of the connection.
type Identity struct {
	ListeningAddr    netaddr.Addr
	ConnectedAddr    netaddr.Addr
	Nonce            uint64
	NodeType         wire.NodeType
	Version          uint32
	CumulativeWeight [16]byte
}
