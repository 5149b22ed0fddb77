package srp

import (
	"errors"
	"math/big"
)

// ErrInvalidPublicValue is returned when a peer's public SRP value is
// congruent to zero modulo N — the SRP-6a safeguard against a peer that
// tries to force the shared secret to a known value.
var ErrInvalidPublicValue = errors.New("srp: public value is zero mod N")

// ClientEphemeral is the client's half of the key exchange: a freshly
// drawn secret exponent a and its corresponding public value A = g^a mod N.
type ClientEphemeral struct {
	Secret *big.Int
	Public *big.Int
}

// NewClientEphemeral draws a and computes A = g^a mod N.
func NewClientEphemeral(grp *Group) (*ClientEphemeral, error) {
	a, err := RandomExponent(grp.N)
	if err != nil {
		return nil, err
	}
	A := ModExp(grp.g, a, grp.N)
	if IsZeroModN(A, grp.N) {
		// Astronomically unlikely for a safe prime group; re-draw rather
		// than ever hand the router a degenerate public value.
		return NewClientEphemeral(grp)
	}
	return &ClientEphemeral{Secret: a, Public: A}, nil
}

// ClientSharedSecret computes the SRP-6a shared secret K on the client
// side, given the server's salt s and public value B, and the client's
// username/password. It implements:
//
//	x = H(s || H(username || ":" || password))
//	k = H(N || PAD(g))
//	u = H(PAD(A) || PAD(B))
//	S = (B - k*g^x)^(a + u*x) mod N
//	K = H(S)
//
// Returns ErrInvalidPublicValue if B ≡ 0 (mod N) or u == 0, per the
// SRP-6a safeguards.
func ClientSharedSecret(grp *Group, eph *ClientEphemeral, username, password string, salt []byte, B *big.Int) ([]byte, error) {
	if IsZeroModN(B, grp.N) {
		return nil, ErrInvalidPublicValue
	}

	u := HashToInt(Pad(eph.Public, grp.Size()), Pad(B, grp.Size()))
	if u.Sign() == 0 {
		return nil, ErrInvalidPublicValue
	}

	identityHash := HashTranscript([]byte(username), []byte(":"), []byte(password))
	x := HashToInt(salt, identityHash)

	k := HashToInt(grp.N.Bytes(), Pad(grp.g, grp.Size()))

	gx := ModExp(grp.g, x, grp.N)
	kgx := MulMod(k, gx, grp.N)

	base := Sub(B, kgx, grp.N)
	// The exponent a + u*x is never reduced mod N: N is not the order of
	// the group <g>, so reducing the exponent would change the result.
	// big.Int.Exp handles arbitrarily large exponents directly.
	exp := new(big.Int).Add(eph.Secret, new(big.Int).Mul(u, x))

	S := ModExp(base, exp, grp.N)
	return HashTranscript(S.Bytes()), nil
}
