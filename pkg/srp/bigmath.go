package srp

import (
	"crypto/rand"
	"math/big"
)

// ModExp computes base^exp mod m using math/big's Int.Exp. The modulus is
// always the public group prime N. Exponents are often secret (a, b, x,
// a + u*x), and in ClientSharedSecret the base B - k*g^x is derived from the
// secret x as well. Int.Exp is not documented as constant-time.
func ModExp(base, exp, m *big.Int) *big.Int {
	return new(big.Int).Exp(base, exp, m)
}

// MulMod computes a*b mod m.
func MulMod(a, b, m *big.Int) *big.Int {
	r := new(big.Int).Mul(a, b)
	return r.Mod(r, m)
}

// AddMod computes a+b mod m.
func AddMod(a, b, m *big.Int) *big.Int {
	r := new(big.Int).Add(a, b)
	return r.Mod(r, m)
}

// Sub computes a-b mod m, always returning a non-negative representative.
func Sub(a, b, m *big.Int) *big.Int {
	r := new(big.Int).Sub(a, b)
	return r.Mod(r, m)
}

// RandomExponent draws a uniformly random value in [1, N-1] from a
// cryptographic source, using rejection sampling so the result is
// unbiased regardless of how N's bit length compares to a byte boundary.
func RandomExponent(N *big.Int) (*big.Int, error) {
	// N-1 is the exclusive upper bound for rand.Int, which already
	// samples uniformly over [0, max) by rejection internally.
	// Shifting [0, N-2] up by one gives [1, N-1].
	max := new(big.Int).Sub(N, big.NewInt(1))
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return nil, err
	}
	return v.Add(v, big.NewInt(1)), nil
}

// Pad left-pads x's big-endian encoding with zero bytes to exactly n
// bytes. RFC 5054 requires this before hashing public values together so
// that the hash input length doesn't leak information about leading
// zero bytes of A or B.
func Pad(x *big.Int, n int) []byte {
	b := x.Bytes()
	if len(b) >= n {
		return b
	}
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}

// IsZeroModN reports whether x mod N is zero, the "abort if I receive B ==
// 0 (mod N)" / "abort if A == 0 (mod N)" safeguard from the SRP-6a design.
func IsZeroModN(x, N *big.Int) bool {
	return new(big.Int).Mod(x, N).Sign() == 0
}

// Wipe zeros a big.Int's underlying word storage in place, the math/big
// equivalent of bufpool.Wipe for the secret exponents and intermediate
// values (a, A, s-as-bytes, B) the authenticator must destroy at handshake
// completion.
func Wipe(x *big.Int) {
	if x == nil {
		return
	}
	bits := x.Bits()
	for i := range bits {
		bits[i] = 0
	}
	x.SetInt64(0)
}
