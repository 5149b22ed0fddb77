package srp

import (
	"math/big"

	"golang.org/x/crypto/blake2s"
)

// HashTranscript concatenates parts and returns their BLAKE2s-256 digest.
// Every SRP derivation in this package (k, x, u, K, and the directional
// session keys) goes through this single function so that the hash
// choice lives in exactly one place.
func HashTranscript(parts ...[]byte) []byte {
	h, err := blake2s.New256(nil)
	if err != nil {
		// blake2s.New256 only errors on a bad key, and we never pass one.
		panic("srp: blake2s init: " + err.Error())
	}
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// HashToInt hashes parts and interprets the digest as a big-endian integer,
// used for the SRP scrambling parameter u and the private key derivation x.
func HashToInt(parts ...[]byte) *big.Int {
	return new(big.Int).SetBytes(HashTranscript(parts...))
}
