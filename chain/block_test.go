package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxnithicxx/Consensus-Lab-Project/crypto"
)

func TestGenesisIsDeterministic(t *testing.T) {
	g1 := Genesis()
	g2 := Genesis()
	assert.Equal(t, g1.Hash, g2.Hash)
	assert.Equal(t, 0, g1.Height)
	assert.Equal(t, crypto.ZeroHash64, g1.PrevHash)
}

func TestComputeHashStableAcrossCalls(t *testing.T) {
	b := &Block{
		Height:       1,
		PrevHash:     Genesis().Hash,
		Transactions: []Transaction{{Sender: 1, Recipient: 2, Amount: 5, Nonce: 1, Timestamp: 1000}},
		ProposerID:   0,
		Timestamp:    1000,
		Nonce:        42,
	}
	h1, err := b.ComputeHash()
	require.NoError(t, err)
	h2, err := b.ComputeHash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestComputeHashIgnoresHashAndSignatureFields(t *testing.T) {
	b := &Block{
		Height:     1,
		PrevHash:   Genesis().Hash,
		ProposerID: 0,
		Timestamp:  1000,
		Nonce:      7,
	}
	h, err := b.ComputeHash()
	require.NoError(t, err)

	b.Hash = h
	b.Signature = "deadbeef"

	h2, err := b.ComputeHash()
	require.NoError(t, err)
	assert.Equal(t, h, h2)
}

func TestTransactionHashDiffersOnFieldChange(t *testing.T) {
	tx1 := Transaction{Sender: 1, Recipient: 2, Amount: 5, Nonce: 1, Timestamp: 1000}
	tx2 := tx1
	tx2.Amount = 6

	h1, err := tx1.Hash()
	require.NoError(t, err)
	h2, err := tx2.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
