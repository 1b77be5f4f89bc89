package scenario

import (
	"math/rand"
	"time"
)

// DelayMin and DelayMax bound the uniform delay distribution, per
// spec.md §4.3.
const (
	DelayMin = 50 * time.Millisecond
	DelayMax = 200 * time.Millisecond
)

// DelayController samples an independent, per-peer-seeded delay for every
// outbound message; it never drops messages. Seeding each peer's PRNG from
// (runSeed, peerID) means two nodes replaying the same run with the same
// seed reproduce the same delay sequence to each peer, while different
// peers see uncorrelated delays.
type DelayController struct {
	rngs map[int]*rand.Rand
}

// NewDelayController builds a DelayController for a node whose peers are
// peerIDs (excluding itself), seeded from runSeed.
func NewDelayController(runSeed uint64, peerIDs []int) *DelayController {
	rngs := make(map[int]*rand.Rand, len(peerIDs))
	for _, id := range peerIDs {
		seed := int64(runSeed) + int64(id)
		rngs[id] = rand.New(rand.NewSource(seed))
	}
	return &DelayController{rngs: rngs}
}

// Delay samples a uniform delay in [DelayMin, DelayMax] for peerID.
func (d *DelayController) Delay(peerID int) time.Duration {
	rng, ok := d.rngs[peerID]
	if !ok {
		return DelayMin
	}
	span := int64(DelayMax - DelayMin)
	return DelayMin + time.Duration(rng.Int63n(span+1))
}

// ShouldDrop is always false: the delays scenario never partitions.
func (d *DelayController) ShouldDrop(peerID int) bool {
	return false
}
