package srp

import (
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecryptionFailed is returned by Open when the ciphertext fails
// authentication. It is intentionally generic: distinguishing "bad key"
// from "tampered ciphertext" would leak information to an attacker.
var ErrDecryptionFailed = errors.New("srp: decryption failed")

// SessionKeys holds the two directional AEAD keys derived from the SRP
// shared secret K. Using separate keys per direction, rather than one key
// for both, avoids nonce reuse between the client's and router's streams
// without requiring the two sides to coordinate a nonce offset.
type SessionKeys struct {
	ClientToRouter [32]byte
	RouterToClient [32]byte
}

// DeriveSessionKeys expands the raw SRP shared secret K into the two
// directional session keys via domain-separated hashing.
func DeriveSessionKeys(K []byte) SessionKeys {
	var keys SessionKeys
	copy(keys.ClientToRouter[:], HashTranscript(K, []byte("c2r")))
	copy(keys.RouterToClient[:], HashTranscript(K, []byte("r2c")))
	return keys
}

// Cipher wraps one directional AEAD key with a monotonically increasing
// nonce counter, mirroring the counter-nonce discipline of a Noise
// CipherState: the caller must serialize calls to Seal (and, separately,
// to Open) because the nonce advances on every call.
type Cipher struct {
	aead    interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
		Overhead() int
	}
	counter uint64
}

// NewCipher constructs a Cipher from a 32-byte key.
func NewCipher(key [32]byte) (*Cipher, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

func (c *Cipher) nonce() []byte {
	n := make([]byte, c.aead.NonceSize())
	binary.LittleEndian.PutUint64(n[c.aead.NonceSize()-8:], c.counter)
	c.counter++
	return n
}

// Seal encrypts plaintext, appending the result to dst and advancing the
// nonce counter.
func (c *Cipher) Seal(dst, plaintext []byte) []byte {
	return c.aead.Seal(dst, c.nonce(), plaintext, nil)
}

// Open decrypts ciphertext, appending the result to dst and advancing the
// nonce counter. Returns ErrDecryptionFailed on any authentication failure.
func (c *Cipher) Open(dst, ciphertext []byte) ([]byte, error) {
	out, err := c.aead.Open(dst, c.nonce(), ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return out, nil
}

// Overhead returns the AEAD tag size in bytes.
func (c *Cipher) Overhead() int {
	return c.aead.Overhead()
}
