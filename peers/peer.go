// Package peers holds the fixed, seed-independent cluster membership every
// node boots with: a contiguous range of integer ids [0, N), each mapped to
// a deterministic loopback address. There is no dynamic join/leave and no
// pubkey-derived identity, unlike the teacher's peers package — node
// identity here is just the CLI-supplied --node-id.
package peers

import "fmt"

// BasePort is the TCP port offset: node i listens on BasePort+i, per
// spec.md §6.
const BasePort = 9000

// Peer identifies one cluster member.
type Peer struct {
	ID      int
	NetAddr string
}

// NewPeer builds a Peer with the standard deterministic address for id.
func NewPeer(id int) *Peer {
	return &Peer{ID: id, NetAddr: AddrForID(id)}
}

// AddrForID returns the deterministic loopback address of node id.
func AddrForID(id int) string {
	return fmt.Sprintf("127.0.0.1:%d", BasePort+id)
}
