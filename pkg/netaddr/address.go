// Package netaddr implements the crawler's notion of an overlay address: an
// (ip, port) pair that can be either a peer's ephemeral connected address or
// its stable listening address.
package netaddr

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// Addr is a syntactically valid (ip, port) pair. The zero value is not
// valid; use Parse or New.
type Addr struct {
	IP   net.IP
	Port uint16
}

// New builds an Addr from an IP and a port, validating it.
func New(ip net.IP, port uint16) (Addr, error) {
	a := Addr{IP: ip, Port: port}
	if err := a.Validate(); err != nil {
		return Addr{}, err
	}
	return a, nil
}

// Parse parses a "host:port" string into an Addr.
func Parse(s string) (Addr, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Addr{}, fmt.Errorf("netaddr: %w", err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Addr{}, fmt.Errorf("netaddr: invalid port %q: %w", portStr, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return Addr{}, fmt.Errorf("netaddr: cannot resolve host %q", host)
		}
		ip = ips[0]
	}
	return New(ip, uint16(port))
}

// MustParse is like Parse but panics on error; useful for constants in tests.
func MustParse(s string) Addr {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Validate reports whether a is syntactically well-formed: a non-nil IP and
// a non-zero port. Nothing more: the crawler's own listen address is
// routinely the unspecified "any" IP (the default is 0.0.0.0:4132) and
// local setups run peers over loopback, so neither New nor Parse can
// reject those forms. Keeping the crawler's own listening address out of
// the known-network graph is the graph's job, not this type's.
func (a Addr) Validate() error {
	if a.IP == nil {
		return errors.New("netaddr: nil IP")
	}
	if a.Port == 0 {
		return errors.New("netaddr: zero port")
	}
	return nil
}

// String renders the address as "ip:port", the canonical key used
// throughout the registry and the known-network graph.
func (a Addr) String() string {
	return net.JoinHostPort(a.IP.String(), strconv.Itoa(int(a.Port)))
}

// Equal reports whether two addresses denote the same (ip, port) pair.
func (a Addr) Equal(b Addr) bool {
	return a.IP.Equal(b.IP) && a.Port == b.Port
}

// TCPAddr returns the net.TCPAddr equivalent, for use with the net package's
// dialers and listeners.
func (a Addr) TCPAddr() *net.TCPAddr {
	return &net.TCPAddr{IP: a.IP, Port: int(a.Port)}
}

// FromTCPAddr builds an Addr from a *net.TCPAddr.
func FromTCPAddr(t *net.TCPAddr) (Addr, error) {
	return New(t.IP, uint16(t.Port))
}
