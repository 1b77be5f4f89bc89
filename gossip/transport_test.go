package gossip

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return logrus.NewEntry(l)
}

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func TestTransportDeliversBroadcast(t *testing.T) {
	peers := []Peer{{ID: 0, Addr: "127.0.0.1:19100"}, {ID: 1, Addr: "127.0.0.1:19101"}}

	t0 := NewTransport(0, peers[0].Addr, testLogger())
	t1 := NewTransport(1, peers[1].Addr, testLogger())

	require.NoError(t, t0.Listen(peers))
	require.NoError(t, t1.Listen(peers))
	defer t0.Close()
	defer t1.Close()

	waitForCondition(t, 2*time.Second, func() bool {
		return len(t0.ConnectedPeers()) == 1 && len(t1.ConnectedPeers()) == 1
	})

	payload, _ := json.Marshal(BlockPayload{Height: 1, Hash: "abc"})
	t0.Broadcast(Envelope{Kind: KindBlock, Payload: payload}, -1)

	select {
	case msg := <-t1.Consumer():
		assert.Equal(t, KindBlock, msg.Envelope.Kind)
		assert.Equal(t, 0, msg.FromPeer)
		var decoded BlockPayload
		require.NoError(t, json.Unmarshal(msg.Envelope.Payload, &decoded))
		assert.Equal(t, "abc", decoded.Hash)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast message")
	}
}

func TestTransportBroadcastExcludesSource(t *testing.T) {
	peers := []Peer{
		{ID: 0, Addr: "127.0.0.1:19200"},
		{ID: 1, Addr: "127.0.0.1:19201"},
		{ID: 2, Addr: "127.0.0.1:19202"},
	}

	transports := make([]*Transport, len(peers))
	for i, p := range peers {
		transports[i] = NewTransport(p.ID, p.Addr, testLogger())
		require.NoError(t, transports[i].Listen(peers))
		defer transports[i].Close()
	}

	waitForCondition(t, 2*time.Second, func() bool {
		for _, tr := range transports {
			if len(tr.ConnectedPeers()) != 2 {
				return false
			}
		}
		return true
	})

	payload, _ := json.Marshal(BlockPayload{Height: 1, Hash: "xyz"})
	transports[1].Broadcast(Envelope{Kind: KindBlock, Payload: payload}, 0)

	select {
	case msg := <-transports[2].Consumer():
		assert.Equal(t, 1, msg.FromPeer)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast to node 2")
	}

	select {
	case <-transports[0].Consumer():
		t.Fatal("excluded peer should not have received the broadcast")
	case <-time.After(300 * time.Millisecond):
	}
}
