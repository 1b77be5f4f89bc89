// Package gossip implements the TCP broadcast transport from spec.md §6:
// a persistent dialed and a persistent accepted connection per peer pair,
// length-prefixed JSON framing, flood broadcast with source suppression,
// bounded hash-based dedup, and
// exponential-backoff reconnection. The connection-pool/stream-layer split
// is grounded in the teacher's net/net_transport.go and net/tcp_transport.go,
// adapted from per-RPC request/response framing to a message-kind envelope
// broadcast model.
package gossip

import (
	"encoding/json"

	"github.com/xxnithicxx/Consensus-Lab-Project/chain"
)

// Kind identifies the payload carried by an Envelope.
type Kind string

const (
	KindHello    Kind = "hello"
	KindBlock    Kind = "block"
	KindGetBlock Kind = "get_block"
	KindBlocks   Kind = "blocks"
	KindPing     Kind = "ping"
	KindPong     Kind = "pong"
)

// Envelope is the top-level wire object: { "kind": ..., "payload": ... },
// per spec.md §6.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// HelloPayload announces the sender's node id and current tip right after a
// connection is established, so the receiving side can label its per-peer
// state and, per spec.md §6, request a catch-up if the sender's tip scores
// better than its own.
type HelloPayload struct {
	NodeID   int         `json:"node_id"`
	TipHash  string      `json:"tip_hash"`
	TipScore chain.Score `json:"tip_score"`
}

// BlockPayload carries a single gossiped or requested block. Field names
// match spec.md §6's wire format exactly; the node package copies
// chain.Block to and from this type (toPayload/fromPayload).
type BlockPayload struct {
	Height       int                  `json:"height"`
	PrevHash     string               `json:"prev_hash"`
	Transactions []TransactionPayload `json:"transactions"`
	ProposerID   int                  `json:"proposer_id"`
	Timestamp    int64                `json:"timestamp"`
	Nonce        uint64               `json:"nonce"`
	Hash         string               `json:"hash"`
	Signature    string               `json:"signature,omitempty"`
}

// TransactionPayload mirrors chain.Transaction's wire encoding.
type TransactionPayload struct {
	Sender    int    `json:"sender"`
	Recipient int    `json:"recipient"`
	Amount    int64  `json:"amount"`
	Nonce     uint64 `json:"nonce"`
	Timestamp int64  `json:"timestamp_ms"`
}

// GetBlockPayload requests a single block by hash from the peer that is
// believed to have it, issued when an orphan's parent is unknown.
type GetBlockPayload struct {
	Hash string `json:"hash"`
}

// BlocksPayload is the response to GetBlock: zero or more blocks, newest
// first is not required, the receiver re-inserts each independently.
type BlocksPayload struct {
	Blocks []BlockPayload `json:"blocks"`
}
