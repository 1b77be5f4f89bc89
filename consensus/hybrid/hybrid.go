// Package hybrid implements the stake-weighted, deterministic-leader-
// election consensus engine from spec.md §4.1.2: a node's turn to propose
// is drawn from hash(parent_hash || slot) against cumulative stake
// intervals, backed by a light proof-of-work and a leader-timeout fallback
// so a single silent leader cannot stall the chain.
package hybrid

import (
	"encoding/binary"
	"math/big"
	"sync"
	"time"

	"github.com/xxnithicxx/Consensus-Lab-Project/chain"
	"github.com/xxnithicxx/Consensus-Lab-Project/crypto"
)

const checkEvery = 4000

// Config holds the per-run parameters loaded from hybrid_config.json.
type Config struct {
	Stakes          []int64
	LightDifficulty int
	LeaderTimeoutMs int
	BlockTimeMs     int
	FinalityDepth   int
}

func (c Config) totalStake() int64 {
	var total int64
	for _, s := range c.Stakes {
		total += s
	}
	return total
}

// Engine implements consensus.Engine for the Hybrid stake/light-PoW
// algorithm.
type Engine struct {
	NodeID int
	Cfg    Config

	mu        sync.Mutex
	firstSeen map[string]time.Time
}

// New constructs a Hybrid engine for nodeID under cfg. cfg.Stakes must be
// indexed by node id and have a positive total sum; the CLI refuses to
// start otherwise (spec.md §6).
func New(nodeID int, cfg Config) *Engine {
	return &Engine{
		NodeID:    nodeID,
		Cfg:       cfg,
		firstSeen: map[string]time.Time{},
	}
}

// slotBytes encodes a slot number as 8 big-endian bytes.
func slotBytes(slot int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(slot))
	return b
}

// leaderForSlot deterministically draws the leader of slot on parentHash:
// hash(parent_hash || slot) is interpreted as an integer in [0, total) and
// mapped to the node whose cumulative stake interval contains it.
func leaderForSlot(parentHash string, slot int, stakes []int64) int {
	total := big.NewInt(0)
	for _, s := range stakes {
		total.Add(total, big.NewInt(s))
	}
	if total.Sign() <= 0 {
		return 0
	}

	digest := crypto.SimpleHashFromTwoHashes([]byte(parentHash), slotBytes(slot))
	draw := new(big.Int).SetBytes(digest)
	draw.Mod(draw, total)

	cumulative := big.NewInt(0)
	for i, s := range stakes {
		cumulative.Add(cumulative, big.NewInt(s))
		if draw.Cmp(cumulative) < 0 {
			return i
		}
	}
	return len(stakes) - 1
}

func (e *Engine) recordFirstSeen(tipHash string, now time.Time) time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.firstSeen[tipHash]
	if !ok {
		e.firstSeen[tipHash] = now
		return now
	}
	return t
}

// CanPropose is true when this node is the elected leader of the next slot,
// or leader_timeout_ms has elapsed since it first observed tip without a
// block from the elected leader arriving (the fallback-proposer path).
func (e *Engine) CanPropose(tip *chain.Block, now time.Time) bool {
	slot := tip.Height + 1
	leader := leaderForSlot(tip.Hash, slot, e.Cfg.Stakes)
	if leader == e.NodeID {
		return true
	}

	firstSeen := e.recordFirstSeen(tip.Hash, now)
	elapsed := now.Sub(firstSeen)
	return elapsed >= time.Duration(e.Cfg.LeaderTimeoutMs)*time.Millisecond
}

// Produce runs the same nonce search as PoW but against LightDifficulty,
// which is small enough that production is near-instant; mining is not the
// bottleneck for Hybrid.
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
			if err == nil && crypto.LeadingZeroNibbles(h) >= e.Cfg.LightDifficulty {
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

// Validate checks the parent link, monotonic height/timestamp, the light
// difficulty predicate, and that the proposer is either the elected leader
// of the slot or a legitimate fallback proposer (parent timestamp exceeded
// by at least leader_timeout_ms).
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
	if crypto.LeadingZeroNibbles(recomputed) < e.Cfg.LightDifficulty {
		return false, "hash does not satisfy light difficulty predicate"
	}

	slot := parent.Height + 1
	leader := leaderForSlot(parent.Hash, slot, e.Cfg.Stakes)
	if block.ProposerID == leader {
		return true, ""
	}

	fallbackThreshold := time.Duration(e.Cfg.LeaderTimeoutMs) * time.Millisecond
	elapsed := time.Duration(block.Timestamp-parent.Timestamp) * time.Millisecond
	if elapsed >= fallbackThreshold {
		return true, ""
	}
	return false, "proposer is not the elected leader and fallback timeout has not elapsed"
}

// Score sums the stake of each block's proposer across the chain, ties
// broken by length then by lexicographically smaller tip hash.
func (e *Engine) Score(c []*chain.Block) chain.Score {
	var stakeSum int64
	for _, b := range c {
		if b.ProposerID >= 0 && b.ProposerID < len(e.Cfg.Stakes) {
			stakeSum += e.Cfg.Stakes[b.ProposerID]
		}
	}
	tip := c[len(c)-1]
	return chain.Score{
		Primary:   stakeSum,
		Secondary: int64(len(c)),
		TipHash:   tip.Hash,
	}
}
