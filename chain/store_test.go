package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// acceptAll is a ValidateFunc that never rejects a block; used by tests that
// only care about store mechanics, not consensus-specific validation rules.
func acceptAll(block *Block, parent *Block) (bool, string) {
	return true, ""
}

// lengthScore is a ScoreFunc mirroring PoW: longest chain wins, ties broken
// by lexicographically-smaller tip hash.
func lengthScore(c []*Block) Score {
	tip := c[len(c)-1]
	return Score{Primary: int64(len(c)), TipHash: tip.Hash}
}

func child(parent *Block, proposer int, nonce uint64) *Block {
	b := &Block{
		Height:       parent.Height + 1,
		PrevHash:     parent.Hash,
		Transactions: nil,
		ProposerID:   proposer,
		Timestamp:    int64(parent.Height+1) * 1000,
		Nonce:        nonce,
	}
	h, _ := b.ComputeHash()
	b.Hash = h
	return b
}

func TestStoreLinearExtensionAdvancesTip(t *testing.T) {
	s := New(2, acceptAll, lengthScore)
	genesis := Genesis()

	b1 := child(genesis, 0, 1)
	report, violation, err := s.Insert(b1)
	require.NoError(t, err)
	require.Nil(t, violation)
	assert.Equal(t, Accepted, report.Outcome)
	require.Len(t, report.TipChanges, 1)
	assert.Equal(t, genesis.Hash, report.TipChanges[0].Old)
	assert.Equal(t, b1.Hash, report.TipChanges[0].New)
	assert.Equal(t, b1.Hash, s.CurrentTip())
}

func TestStoreDuplicateInsert(t *testing.T) {
	s := New(2, acceptAll, lengthScore)
	genesis := Genesis()
	b1 := child(genesis, 0, 1)

	_, _, err := s.Insert(b1)
	require.NoError(t, err)

	report, violation, err := s.Insert(b1)
	require.NoError(t, err)
	require.Nil(t, violation)
	assert.Equal(t, Duplicate, report.Outcome)
}

func TestStoreOrphanThenResolves(t *testing.T) {
	s := New(2, acceptAll, lengthScore)
	genesis := Genesis()
	b1 := child(genesis, 0, 1)
	b2 := child(b1, 1, 1)

	report, _, err := s.Insert(b2)
	require.NoError(t, err)
	assert.Equal(t, Orphaned, report.Outcome)
	assert.Equal(t, b1.Hash, report.MissingParent)
	assert.Equal(t, genesis.Hash, s.CurrentTip())

	report, _, err = s.Insert(b1)
	require.NoError(t, err)
	assert.Equal(t, Accepted, report.Outcome)
	// b1 resolves the pending b2 too, so two tip changes cascade.
	require.Len(t, report.TipChanges, 2)
	assert.Equal(t, b2.Hash, s.CurrentTip())
}

func TestStoreReorgPicksHigherScore(t *testing.T) {
	s := New(10, acceptAll, lengthScore)
	genesis := Genesis()

	a1 := child(genesis, 0, 1)
	b1 := child(genesis, 1, 2)

	_, _, err := s.Insert(a1)
	require.NoError(t, err)
	assert.Equal(t, a1.Hash, s.CurrentTip())

	// b1 is a sibling fork at the same height; scores are equal length, so
	// the lexicographically smaller hash wins the tie regardless of which
	// block was accepted first.
	report, _, err := s.Insert(b1)
	require.NoError(t, err)
	assert.Equal(t, Accepted, report.Outcome)

	want := a1.Hash
	if b1.Hash < a1.Hash {
		want = b1.Hash
	}
	assert.Equal(t, want, s.CurrentTip())

	// Now extend whichever fork lost the tie-break; it should become the
	// new best chain once it is longer.
	loser := a1
	if want == a1.Hash {
		loser = b1
	}
	a2 := child(loser, 0, 1)
	report, _, err = s.Insert(a2)
	require.NoError(t, err)
	assert.Equal(t, Accepted, report.Outcome)
	require.Len(t, report.TipChanges, 1)
	assert.True(t, report.TipChanges[0].IsReorg() || report.TipChanges[0].ReorgFrom == report.TipChanges[0].ReorgTo)
	assert.Equal(t, a2.Hash, s.CurrentTip())
}

func TestStoreFinalityAdvances(t *testing.T) {
	s := New(2, acceptAll, lengthScore)
	genesis := Genesis()

	tip := genesis
	var lastReport InsertReport
	for i := 0; i < 4; i++ {
		b := child(tip, 0, uint64(i+1))
		report, violation, err := s.Insert(b)
		require.NoError(t, err)
		require.Nil(t, violation)
		lastReport = report
		tip = b
	}

	assert.NotEmpty(t, lastReport.Finalized)
	// After 4 extensions with finalityDepth 2, height 1 and 2 should be
	// finalised (depth of 3 and 2 descendants respectively).
	hash, ok := s.FinalizedAt(1)
	assert.True(t, ok)
	assert.NotEmpty(t, hash)
	assert.GreaterOrEqual(t, s.FinalHeight(), 1)
}

// TestStoreDetectsSafetyViolationOnConflictingFinalization forces a deep
// reorg past finalityDepth so that a sibling fork would finalize a
// different hash at an already-finalized height, and asserts Insert
// surfaces it as a *SafetyViolation instead of silently overwriting the
// finality ledger.
func TestStoreDetectsSafetyViolationOnConflictingFinalization(t *testing.T) {
	s := New(1, acceptAll, lengthScore)
	genesis := Genesis()

	// a-chain: g -> a1 -> a2. Once a2 is the tip (chain length 3), a1 sits
	// at depth 1 and finalizes as height 1.
	a1 := child(genesis, 0, 1)
	_, violation, err := s.Insert(a1)
	require.NoError(t, err)
	require.Nil(t, violation)

	a2 := child(a1, 0, 1)
	_, violation, err = s.Insert(a2)
	require.NoError(t, err)
	require.Nil(t, violation)
	hash, ok := s.FinalizedAt(1)
	require.True(t, ok)
	require.Equal(t, a1.Hash, hash)

	// b-chain: a sibling fork from genesis. lengthScore ties are broken by
	// tip hash, so the exact insert at which the b-chain overtakes a2's
	// chain isn't predictable from the test; keep extending it one block
	// at a time until a violation surfaces, which is guaranteed to happen
	// no later than the insert that makes the b-chain strictly longer than
	// the a-chain, since fork-choice then has no tie left to break.
	tip := genesis
	var b1Hash string
	var got *SafetyViolation
	for i := 0; i < 3 && got == nil; i++ {
		block := child(tip, 1, 1)
		if i == 0 {
			b1Hash = block.Hash
		}
		_, violation, err = s.Insert(block)
		require.NoError(t, err)
		if violation != nil {
			got = violation
		}
		tip = block
	}

	require.NotNil(t, got, "expected the b-chain to eventually conflict with a1's finalization at height 1")
	assert.Equal(t, 1, got.Height)
	assert.Equal(t, b1Hash, got.NewHash)
	assert.Equal(t, a1.Hash, got.ExistingHash)
}

func TestStoreInvalidBlockRejected(t *testing.T) {
	reject := func(block *Block, parent *Block) (bool, string) {
		return false, "test rejection"
	}
	s := New(2, reject, lengthScore)
	genesis := Genesis()
	b1 := child(genesis, 0, 1)

	report, violation, err := s.Insert(b1)
	require.NoError(t, err)
	require.Nil(t, violation)
	assert.Equal(t, Invalid, report.Outcome)
	assert.Equal(t, "test rejection", report.Reason)
	assert.Equal(t, genesis.Hash, s.CurrentTip())
}
