package pow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxnithicxx/Consensus-Lab-Project/chain"
	"github.com/xxnithicxx/Consensus-Lab-Project/crypto"
)

func TestProduceSatisfiesDifficulty(t *testing.T) {
	e := New(0, Config{Difficulty: 1, FinalityDepth: 2})
	genesis := chain.Genesis()

	block, ok := e.Produce(genesis, nil, time.Now(), make(chan struct{}))
	require.True(t, ok)
	assert.GreaterOrEqual(t, crypto.LeadingZeroNibbles(block.Hash), 1)
	assert.Equal(t, genesis.Hash, block.PrevHash)
	assert.Equal(t, genesis.Height+1, block.Height)
}

func TestProduceCancellable(t *testing.T) {
	e := New(0, Config{Difficulty: 64, FinalityDepth: 2})
	genesis := chain.Genesis()

	cancel := make(chan struct{})
	close(cancel)

	_, ok := e.Produce(genesis, nil, time.Now(), cancel)
	assert.False(t, ok)
}

func TestValidateRejectsWrongHeight(t *testing.T) {
	e := New(0, Config{Difficulty: 1, FinalityDepth: 2})
	genesis := chain.Genesis()

	block, ok := e.Produce(genesis, nil, time.Now(), make(chan struct{}))
	require.True(t, ok)
	block.Height = 5

	valid, reason := e.Validate(block, genesis)
	assert.False(t, valid)
	assert.Contains(t, reason, "height")
}

func TestValidateRejectsTamperedHash(t *testing.T) {
	e := New(0, Config{Difficulty: 1, FinalityDepth: 2})
	genesis := chain.Genesis()

	block, ok := e.Produce(genesis, nil, time.Now(), make(chan struct{}))
	require.True(t, ok)
	block.Nonce++

	valid, _ := e.Validate(block, genesis)
	assert.False(t, valid)
}

func TestScorePrefersLongerChain(t *testing.T) {
	e := New(0, Config{Difficulty: 1, FinalityDepth: 2})
	genesis := chain.Genesis()

	short := []*chain.Block{genesis}
	b1, ok := e.Produce(genesis, nil, time.Now(), make(chan struct{}))
	require.True(t, ok)
	long := []*chain.Block{genesis, b1}

	assert.True(t, e.Score(long).Better(e.Score(short)))
}
