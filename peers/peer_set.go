package peers

// PeerSet is the fixed cluster membership [0, N) a node is configured with
// at startup. Unlike the teacher's PeerSet, membership never changes over
// the life of a run, so there is no With{New,Removed}Peer and no
// super-majority/trust-count machinery tied to BFT quorum sizing.
type PeerSet struct {
	Peers []*Peer
	ByID  map[int]*Peer
}

// NewPeerSet builds a PeerSet for the N peers [0, N).
func NewPeerSet(n int) *PeerSet {
	peers := make([]*Peer, n)
	byID := make(map[int]*Peer, n)
	for i := 0; i < n; i++ {
		p := NewPeer(i)
		peers[i] = p
		byID[i] = p
	}
	return &PeerSet{Peers: peers, ByID: byID}
}

// Len returns the number of peers in the cluster.
func (s *PeerSet) Len() int {
	return len(s.Peers)
}

// Others returns every peer except self.
func (s *PeerSet) Others(self int) []*Peer {
	out := make([]*Peer, 0, len(s.Peers)-1)
	for _, p := range s.Peers {
		if p.ID != self {
			out = append(out, p)
		}
	}
	return out
}
