// Package consensus declares the Engine contract implemented by pow and
// hybrid. The node scheduler drives an Engine without knowing which
// algorithm it is talking to; chain.Store's fork-choice is driven purely by
// the chain.Score values Engine.Score returns, per spec.md §9.
package consensus

import (
	"time"

	"github.com/xxnithicxx/Consensus-Lab-Project/chain"
)

// Engine is the pluggable consensus contract: block production, structural
// and consensus-specific validation, and chain scoring for fork-choice.
type Engine interface {
	// CanPropose reports whether this node may attempt to produce a block
	// extending tip right now.
	CanPropose(tip *chain.Block, now time.Time) bool

	// Produce attempts to build a block extending tip out of txs. It
	// returns (nil, false) if cancelSignal fires before a valid block is
	// found. now is sampled once at call time; engines that need repeated
	// timestamps (e.g. per-nonce jitter) read the wall clock themselves.
	Produce(tip *chain.Block, txs []chain.Transaction, now time.Time, cancelSignal <-chan struct{}) (*chain.Block, bool)

	// Validate checks block against its already-accepted parent, returning
	// false and a human-readable reason on rejection.
	Validate(block *chain.Block, parent *chain.Block) (bool, string)

	// Score computes the fork-choice score of an ordered (genesis-first)
	// candidate chain.
	Score(c []*chain.Block) chain.Score
}
