package chain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/xxnithicxx/Consensus-Lab-Project/crypto"
)

// Transaction is an opaque payload. The core never interprets its fields
// beyond what is needed to hash and gossip it; double-spend checking is
// performed only as an offline invariant check over finalised chains
// (see CheckInvariants in invariants.go), never as a block-acceptance gate.
type Transaction struct {
	Sender    int    `json:"sender"`
	Recipient int    `json:"recipient"`
	Amount    int64  `json:"amount"`
	Nonce     uint64 `json:"nonce"`
	Timestamp int64  `json:"timestamp_ms"`
}

// Hash returns the hex SHA256 digest of the transaction's canonical JSON
// encoding, which uniquely identifies it.
func (t Transaction) Hash() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return crypto.SHA256Hex(data), nil
}

// Block is the fundamental unit of the chain: a tuple of height, parent
// pointer, transactions, proposer, timestamp and nonce, plus the hash
// computed over all of those fields.
//
// Field order matters: ComputeHash marshals these fields in declared order,
// and every node must agree on the same byte encoding to agree on the same
// hash. Hash and Signature are excluded from the hash by copying the other
// fields into the separate canonicalBody type rather than by field tagging
// tricks.
type Block struct {
	Height       int           `json:"height"`
	PrevHash     string        `json:"prev_hash"`
	Transactions []Transaction `json:"transactions"`
	ProposerID   int           `json:"proposer_id"`
	Timestamp    int64         `json:"timestamp_ms"`
	Nonce        uint64        `json:"nonce"`
	Hash         string        `json:"hash"`

	// Signature is an optional secp256k1 signature over the canonical body,
	// in the format crypto/keys produces. It is never checked by Validate —
	// see SPEC_FULL.md §3 — and nothing in this repository sets it; tests
	// only check that it stays out of the hash.
	Signature string `json:"signature,omitempty"`
}

// canonicalBody is the subset of Block fields that are hashed. Keeping it as
// a distinct type (rather than hashing Block directly with Hash/Signature
// zeroed out) makes the set of hashed fields explicit and immune to
// accidental additions to Block leaking into the hash.
type canonicalBody struct {
	Height       int           `json:"height"`
	PrevHash     string        `json:"prev_hash"`
	Transactions []Transaction `json:"transactions"`
	ProposerID   int           `json:"proposer_id"`
	Timestamp    int64         `json:"timestamp_ms"`
	Nonce        uint64        `json:"nonce"`
}

// ComputeHash recomputes the block's hash from its fields, independent of
// whatever is currently stored in b.Hash. Used both to mine (candidate
// nonces) and to validate (recomputed hash must equal the stored one).
func (b *Block) ComputeHash() (string, error) {
	body := canonicalBody{
		Height:       b.Height,
		PrevHash:     b.PrevHash,
		Transactions: b.Transactions,
		ProposerID:   b.ProposerID,
		Timestamp:    b.Timestamp,
		Nonce:        b.Nonce,
	}
	bf := bytes.NewBuffer(nil)
	enc := json.NewEncoder(bf)
	if err := enc.Encode(body); err != nil {
		return "", err
	}
	return crypto.SHA256Hex(bf.Bytes()), nil
}

// Genesis returns the deterministic genesis block all nodes agree on
// without any network round-trip: height 0, 64 zero-character prev_hash,
// no transactions, proposer 0, and a hash derived from crypto.GenesisSeed.
func Genesis() *Block {
	b := &Block{
		Height:       0,
		PrevHash:     crypto.ZeroHash64,
		Transactions: []Transaction{},
		ProposerID:   0,
		Timestamp:    0,
		Nonce:        0,
	}
	h, _ := b.ComputeHash()
	// The genesis hash is additionally salted with GenesisSeed so that it
	// does not collide with any reachable PoW/Hybrid block hash, even one
	// that happens to have height 0 semantics replayed through a bug.
	b.Hash = crypto.SHA256Hex(append([]byte(h), []byte(crypto.GenesisSeed)...))
	return b
}

// String implements fmt.Stringer for log-friendly formatting.
func (b *Block) String() string {
	return fmt.Sprintf("Block(height=%d, hash=%s, proposer=%d, txs=%d)",
		b.Height, shortHash(b.Hash), b.ProposerID, len(b.Transactions))
}

func shortHash(h string) string {
	if len(h) <= 10 {
		return h
	}
	return h[:10]
}
