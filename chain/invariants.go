package chain

import "fmt"

// DoubleSpend describes a transaction whose (sender, nonce) pair was
// already consumed earlier in the finalised chain.
type DoubleSpend struct {
	Height      int
	BlockHash   string
	Sender      int
	Nonce       uint64
	FirstHeight int
	FirstHash   string
}

func (d DoubleSpend) String() string {
	return fmt.Sprintf(
		"double-spend: sender %d nonce %d reused at height %d (block %s), first seen at height %d (block %s)",
		d.Sender, d.Nonce, d.Height, shortHash(d.BlockHash), d.FirstHeight, shortHash(d.FirstHash),
	)
}

type spendKey struct {
	sender int
	nonce  uint64
}

// CheckInvariants walks the finalised prefix of the chain ending at the
// store's current tip (genesis through store.FinalHeight()) and reports any (sender, nonce)
// pair reused across blocks. This is an offline check only — it is never
// consulted by Insert or Validate, matching spec.md's decision that
// consensus validity does not depend on transaction semantics.
func CheckInvariants(s *Store) ([]DoubleSpend, error) {
	s.mu.Lock()
	tip := s.currentTip
	finalHeight := s.finalHeight
	s.mu.Unlock()

	chain, err := s.ChainTo(tip)
	if err != nil {
		return nil, err
	}

	seen := map[spendKey]struct {
		height int
		hash   string
	}{}
	var violations []DoubleSpend

	for _, b := range chain {
		if b.Height > finalHeight {
			break
		}
		for _, tx := range b.Transactions {
			key := spendKey{sender: tx.Sender, nonce: tx.Nonce}
			if first, ok := seen[key]; ok {
				violations = append(violations, DoubleSpend{
					Height:      b.Height,
					BlockHash:   b.Hash,
					Sender:      tx.Sender,
					Nonce:       tx.Nonce,
					FirstHeight: first.height,
					FirstHash:   first.hash,
				})
				continue
			}
			seen[key] = struct {
				height int
				hash   string
			}{height: b.Height, hash: b.Hash}
		}
	}

	return violations, nil
}
