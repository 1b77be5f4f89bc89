package node

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxnithicxx/Consensus-Lab-Project/chain"
	"github.com/xxnithicxx/Consensus-Lab-Project/consensus/pow"
	"github.com/xxnithicxx/Consensus-Lab-Project/gossip"
	"github.com/xxnithicxx/Consensus-Lab-Project/peers"
	"github.com/xxnithicxx/Consensus-Lab-Project/scenario"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return logrus.NewEntry(l)
}

// newTestNode builds a Node around a real loopback TCP gossip address with
// a trivial-difficulty PoW engine, so a two-node cluster mines and converges
// well within a short run budget.
func newTestNode(t *testing.T, nodeID int, peerAddrs map[int]string, runBudget time.Duration) *Node {
	t.Helper()

	engine := pow.New(nodeID, pow.Config{Difficulty: 1, BlockTimeMs: 10, FinalityDepth: 2})
	store := chain.New(2, engine.Validate, engine.Score)

	logger := testLogger()
	transport := gossip.NewTransport(nodeID, peerAddrs[nodeID], logger)

	gossipPeers := make([]gossip.Peer, 0, len(peerAddrs))
	peerIDs := make([]int, 0, len(peerAddrs)-1)
	for id, addr := range peerAddrs {
		gossipPeers = append(gossipPeers, gossip.Peer{ID: id, Addr: addr})
		if id != nodeID {
			peerIDs = append(peerIDs, id)
		}
	}
	require.NoError(t, transport.Listen(gossipPeers))

	peerSet := &peers.PeerSet{ByID: map[int]*peers.Peer{}}
	for id, addr := range peerAddrs {
		p := &peers.Peer{ID: id, NetAddr: addr}
		peerSet.Peers = append(peerSet.Peers, p)
		peerSet.ByID[id] = p
	}

	scen := scenario.NewDelayController(1, peerIDs)

	return New(nodeID, logger, store, engine, transport, scen, peerSet, runBudget)
}

func TestTwoNodesConvergeOnAFinalizedBlock(t *testing.T) {
	addrs := map[int]string{
		0: "127.0.0.1:19400",
		1: "127.0.0.1:19401",
	}

	n0 := newTestNode(t, 0, addrs, 2*time.Second)
	n1 := newTestNode(t, 1, addrs, 2*time.Second)

	done := make(chan struct{}, 2)
	go func() { _ = n0.Run(); done <- struct{}{} }()
	go func() { _ = n1.Run(); done <- struct{}{} }()

	<-done
	<-done

	assert.GreaterOrEqual(t, n0.store.FinalHeight(), 1)
	assert.GreaterOrEqual(t, n1.store.FinalHeight(), 1)
}
