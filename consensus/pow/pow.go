// Package pow implements the longest-chain Proof-of-Work engine from
// spec.md §4.1.1: nonce search against a fixed difficulty, chain-length
// scoring, and a purely CPU-bound preemptible production loop. It is
// grounded in the teacher's hashgraph/block.go Hash()/Sign() pattern for
// how a block's identity is derived from its canonical fields, adapted
// here to drive a difficulty predicate instead of a signature check.
package pow

import (
	"time"

	"github.com/xxnithicxx/Consensus-Lab-Project/chain"
	"github.com/xxnithicxx/Consensus-Lab-Project/crypto"
)

// checkEvery bounds how often Produce polls cancelSignal, so cancellation
// is observed within a few thousand nonce attempts as required by spec.md §5.
const checkEvery = 4000

// Config holds the per-run parameters loaded from pow_config.json.
type Config struct {
	Difficulty    int
	BlockTimeMs   int
	FinalityDepth int
}

// Engine implements consensus.Engine for Proof-of-Work.
type Engine struct {
	NodeID int
	Cfg    Config
}

// New constructs a PoW engine for nodeID under cfg.
func New(nodeID int, cfg Config) *Engine {
	return &Engine{NodeID: nodeID, Cfg: cfg}
}

// CanPropose is always true for PoW: every node races to mine the next
// block regardless of tip contents.
func (e *Engine) CanPropose(tip *chain.Block, now time.Time) bool {
	return true
}

// Produce iterates nonce = 0, 1, 2, … until the recomputed hash satisfies
// the difficulty predicate or cancelSignal fires. The timestamp is
// refreshed to the wall clock on every attempt so that two miners racing
// from identical state do not produce colliding blocks.
func (e *Engine) Produce(tip *chain.Block, txs []chain.Transaction, now time.Time, cancelSignal <-chan struct{}) (*chain.Block, bool) {
	candidate := &chain.Block{
		Height:       tip.Height + 1,
		PrevHash:     tip.Hash,
		Transactions: txs,
		ProposerID:   e.NodeID,
	}

	var nonce uint64
	for {
		for i := 0; i < checkEvery; i++ {
			candidate.Nonce = nonce
			candidate.Timestamp = time.Now().UnixMilli()

			h, err := candidate.ComputeHash()
			if err == nil && crypto.LeadingZeroNibbles(h) >= e.Cfg.Difficulty {
				candidate.Hash = h
				return candidate, true
			}
			nonce++
		}

		select {
		case <-cancelSignal:
			return nil, false
		default:
		}
	}
}

// Validate checks the parent link, monotonic height and timestamp, and
// recomputes the hash to confirm both its integrity and that it satisfies
// the difficulty predicate.
func (e *Engine) Validate(block *chain.Block, parent *chain.Block) (bool, string) {
	if block.PrevHash != parent.Hash {
		return false, "prev_hash does not match parent"
	}
	if block.Height != parent.Height+1 {
		return false, "height is not parent height + 1"
	}
	if block.Timestamp < parent.Timestamp {
		return false, "timestamp precedes parent timestamp"
	}

	recomputed, err := block.ComputeHash()
	if err != nil {
		return false, "failed to recompute hash"
	}
	if recomputed != block.Hash {
		return false, "stored hash does not match recomputed hash"
	}
	if crypto.LeadingZeroNibbles(recomputed) < e.Cfg.Difficulty {
		return false, "hash does not satisfy difficulty predicate"
	}
	return true, ""
}

// Score is the chain length, tie-broken by a lexicographically smaller tip
// hash; Secondary is unused (always 0) since length already occupies
// Primary.
func (e *Engine) Score(c []*chain.Block) chain.Score {
	tip := c[len(c)-1]
	return chain.Score{
		Primary: int64(len(c)),
		TipHash: tip.Hash,
	}
}
