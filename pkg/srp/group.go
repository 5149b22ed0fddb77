package srp

import "math/big"

// Group holds the safe prime and generator a client and router must agree
// on out of band. This module ships the RFC 5054 2048-bit group; it is the
// only group this controller negotiates, so unlike a general SRP library
// there is no group-selection message in the handshake.
type Group struct {
	N *big.Int
	g *big.Int
	// size is len(N) in bytes; used to pad public values per RFC 5054 so
	// that H(PAD(A), PAD(B)) and H(N, PAD(g)) are computed consistently
	// regardless of leading zero bytes in the big-endian encoding.
	size int
}

var group2048 = mustGroup(
	"AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B855F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773BCA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB694B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73",
	2,
)

// DefaultGroup returns the RFC 5054 2048-bit group used by this controller.
func DefaultGroup() *Group {
	return group2048
}

func mustGroup(hexN string, g int64) *Group {
	N, ok := new(big.Int).SetString(hexN, 16)
	if !ok {
		panic("srp: invalid group prime")
	}
	return &Group{
		N:    N,
		g:    big.NewInt(g),
		size: (N.BitLen() + 7) / 8,
	}
}

// Size returns the byte length of N, used for padding public values.
func (grp *Group) Size() int {
	return grp.size
}

// Generator returns the group generator g.
func (grp *Group) Generator() *big.Int {
	return grp.g
}
