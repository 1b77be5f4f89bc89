// Package keys implements the optional block-signing key pair used by
// validators. Signing a block is never a precondition for consensus
// validity (see consensus.Engine.Validate) — it is a supplementary
// capability exercised by the `keygen` CLI command and by this package's
// own sign/verify tests. Nothing in this repository signs blocks with it.
//
// The curve choice mirrors the teacher's crypto/keys/curve.go: secp256k1,
// via btcsuite's pure-Go implementation, because it is a well-known curve
// with a mature Go library rather than because this simulator needs
// production-grade key custody.
package keys

import (
	"crypto/ecdsa"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Curve returns the secp256k1 curve used for validator signing keys.
func Curve() *btcec.KoblitzCurve {
	return btcec.S256()
}

// Generate creates a new secp256k1 private key.
func Generate() (*btcec.PrivateKey, error) {
	return btcec.NewPrivateKey()
}

// PublicKeyHex returns the compressed hex encoding of a public key.
func PublicKeyHex(pub *btcec.PublicKey) string {
	return hex.EncodeToString(pub.SerializeCompressed())
}

// Sign produces a deterministic (RFC6979) ECDSA signature over digest,
// returned as a DER-encoded hex string.
func Sign(priv *btcec.PrivateKey, digest []byte) (string, error) {
	sig := btcecdsa.Sign(priv, digest)
	return hex.EncodeToString(sig.Serialize()), nil
}

// Verify checks a hex-encoded DER signature produced by Sign against digest
// and a compressed-hex public key.
func Verify(pubHex string, digest []byte, sigHex string) bool {
	pubBytes, err := hex.DecodeString(pubHex)
	if err != nil {
		return false
	}
	pub, err := btcec.ParsePubKey(pubBytes)
	if err != nil {
		return false
	}
	sigBytes, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	sig, err := btcecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false
	}
	return sig.Verify(digest, pub)
}

// ToECDSA exposes the standard library representation for callers that
// need to interoperate with crypto/ecdsa directly.
func ToECDSA(priv *btcec.PrivateKey) *ecdsa.PrivateKey {
	return priv.ToECDSA()
}
