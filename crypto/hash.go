// Package crypto provides the hashing and signing primitives shared by the
// chain and consensus packages. It sits at the bottom of the dependency
// order: nothing in this module imports chain, consensus, gossip, scenario
// or node.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// GenesisSeed is hashed to produce the deterministic genesis block hash so
// that every node can compute it without any network round-trip.
const GenesisSeed = "consensus-lab-genesis"

// ZeroHash64 is the hex string of 64 '0' characters used as the prev_hash of
// the genesis block.
var ZeroHash64 = strings.Repeat("0", 64)

// SHA256 returns the SHA256 digest of data.
func SHA256(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// SHA256Hex returns the lowercase hex encoding of the SHA256 digest of data.
func SHA256Hex(data []byte) string {
	return hex.EncodeToString(SHA256(data))
}

// SimpleHashFromTwoHashes hashes the concatenation of left and right. It is
// used to derive the deterministic leader-election draw from a parent hash
// and a slot number without any locale- or float-dependent operation.
func SimpleHashFromTwoHashes(left, right []byte) []byte {
	h := sha256.New()
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// LeadingZeroNibbles counts the number of leading '0' hex nibbles in hexHash.
// Used by both consensus engines to evaluate a difficulty predicate without
// doing any big.Int comparisons.
func LeadingZeroNibbles(hexHash string) int {
	n := 0
	for _, c := range hexHash {
		if c != '0' {
			break
		}
		n++
	}
	return n
}
