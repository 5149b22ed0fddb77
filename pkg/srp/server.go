package srp

import "math/big"

// The production client in this module never plays the server role; these
// helpers exist so the auth package's tests can stand up a conforming (and
// a deliberately misbehaving) mock router without re-implementing SRP math
// in the test files.

// Verifier computes the password verifier v = g^x mod N that a conforming
// mock router stores against a username, given the same salt it will send
// during the handshake.
func Verifier(grp *Group, username, password string, salt []byte) *big.Int {
	identityHash := HashTranscript([]byte(username), []byte(":"), []byte(password))
	x := HashToInt(salt, identityHash)
	return ModExp(grp.g, x, grp.N)
}

// ServerEphemeral is the mock router's half of the exchange: a secret
// exponent b and the public value B = k*v + g^b mod N.
type ServerEphemeral struct {
	Secret *big.Int
	Public *big.Int
}

// NewServerEphemeral draws b and computes B from the stored verifier v.
func NewServerEphemeral(grp *Group, v *big.Int) (*ServerEphemeral, error) {
	b, err := RandomExponent(grp.N)
	if err != nil {
		return nil, err
	}
	k := HashToInt(grp.N.Bytes(), Pad(grp.g, grp.Size()))
	kv := MulMod(k, v, grp.N)
	gb := ModExp(grp.g, b, grp.N)
	B := AddMod(kv, gb, grp.N)
	return &ServerEphemeral{Secret: b, Public: B}, nil
}

// ServerSharedSecret computes K on the mock router side:
//
//	u = H(PAD(A) || PAD(B))
//	S = (A * v^u)^b mod N
//	K = H(S)
func ServerSharedSecret(grp *Group, eph *ServerEphemeral, v, A *big.Int) ([]byte, error) {
	if IsZeroModN(A, grp.N) {
		return nil, ErrInvalidPublicValue
	}

	u := HashToInt(Pad(A, grp.Size()), Pad(eph.Public, grp.Size()))
	if u.Sign() == 0 {
		return nil, ErrInvalidPublicValue
	}

	vu := ModExp(v, u, grp.N)
	base := MulMod(A, vu, grp.N)
	S := ModExp(base, eph.Secret, grp.N)
	return HashTranscript(S.Bytes()), nil
}
