package peer

import (
	"errors"
	"sync"

	"github.com/nspcc-dev/node-crawler/pkg/netaddr"
)

// ErrAlreadyConnected is returned by Register when either the listening
// address or the connected address is already present in the registry.
var ErrAlreadyConnected = errors.New("peer: listening address already connected")

// ErrNotRegistered is returned when an operation references a connected
// address the registry has no record of.
var ErrNotRegistered = errors.New("peer: connected address not registered")

// Registry is the bidirectional connected<->listening mapping described by
// the handshake's final registration step. Both maps are guarded by the
// same mutex and always mutated together, so the bijection in
// listening_by_connected / peer_by_listening can never be observed
// half-updated: lookups that need both maps take one lock, not two taken in
// sequence.
type Registry struct {
	mu              sync.RWMutex
	listeningByConn map[string]netaddr.Addr
	peerByListening map[string]Identity
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		listeningByConn: make(map[string]netaddr.Addr),
		peerByListening: make(map[string]Identity),
	}
}

// Register inserts a freshly handshaken peer under a single critical
// section, re-checking both maps for a race against a concurrent handshake
// that registered the same listening or connected address first.
func (r *Registry) Register(id Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := id.ListeningAddr.String()
	connKey := id.ConnectedAddr.String()
	if _, exists := r.peerByListening[key]; exists {
		return ErrAlreadyConnected
	}
	if _, exists := r.listeningByConn[connKey]; exists {
		return ErrAlreadyConnected
	}
	r.listeningByConn[connKey] = id.ListeningAddr
	r.peerByListening[key] = id
	return nil
}

// Disconnect removes a peer from both maps atomically, keyed by its
// connected address. It is a no-op if the address is not registered.
func (r *Registry) Disconnect(connected netaddr.Addr) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connKey := connected.String()
	listening, ok := r.listeningByConn[connKey]
	if !ok {
		return
	}
	delete(r.listeningByConn, connKey)
	delete(r.peerByListening, listening.String())
}

// Lookup returns the Identity registered for a connected address.
func (r *Registry) Lookup(connected netaddr.Addr) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	listening, ok := r.listeningByConn[connected.String()]
	if !ok {
		return Identity{}, false
	}
	id, ok := r.peerByListening[listening.String()]
	return id, ok
}

// HasConnected reports whether a connected address is already registered
// (the handshake's step-1 pre-handshake duplicate check).
func (r *Registry) HasConnected(connected netaddr.Addr) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.listeningByConn[connected.String()]
	return ok
}

// HasListening reports whether a listening address is already registered
// (the handshake's duplicate checks: step 1 on the dialed address for
// outbound connections, and step 4 on the advertised listening address).
func (r *Registry) HasListening(listening netaddr.Addr) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.peerByListening[listening.String()]
	return ok
}

// Snapshot returns a cloned copy of every currently registered identity,
// safe to range over without holding the registry's lock.
func (r *Registry) Snapshot() []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Identity, 0, len(r.peerByListening))
	for _, id := range r.peerByListening {
		out = append(out, id)
	}
	return out
}

// Len returns the number of currently registered peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peerByListening)
}
