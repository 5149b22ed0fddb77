// Package bufpool provides the shared buffer pools the channel and auth
// packages use for secret material and frame assembly, adapted from
// portal/utils/pool.Buffer64K (plain reusable byte slices) and
// portal/core/cryptoops's bytebufferpool-backed secure memory pool
// (wipe-on-release buffers for key material).
package bufpool

import (
	"sync"

	"github.com/valyala/bytebufferpool"
)

// Frame provides reusable buffers sized for one length-prefixed channel
// frame. Using *[]byte avoids the interface-boxing allocation sync.Pool
// would otherwise incur for a bare []byte — the same reasoning behind
// portal/utils/pool's Buffer64K.
var Frame = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 4096)
		return &b
	},
}

// Get returns a buffer from the pool truncated to zero length.
func Get() *[]byte {
	b := Frame.Get().(*[]byte)
	*b = (*b)[:0]
	return b
}

// Put wipes and returns a buffer to the pool.
func Put(b *[]byte) {
	Wipe(*b)
	Frame.Put(b)
}

// Wipe overwrites the full capacity of b with zeros. Used for buffers that
// held secret material (SRP scratch values, derived session keys) so they
// don't linger in freed or pooled memory.
func Wipe(b []byte) {
	b = b[:cap(b)]
	for i := range b {
		b[i] = 0
	}
}

// secureMemory pools buffers specifically for material that must be wiped
// before reuse — SRP transcript scratch space and ciphertext staging —
// mirroring cryptoops's _secureMemoryPool.
var secureMemory bytebufferpool.Pool

// AcquireSecure returns a zero-length buffer with at least n bytes of
// capacity, from a pool dedicated to secret-bearing data.
func AcquireSecure(n int) *bytebufferpool.ByteBuffer {
	buf := secureMemory.Get()
	if cap(buf.B) < n {
		Wipe(buf.B)
		buf.B = make([]byte, 0, n)
	}
	buf.B = buf.B[:0]
	return buf
}

// ReleaseSecure wipes buf's contents and returns it to the secure pool.
func ReleaseSecure(buf *bytebufferpool.ByteBuffer) {
	Wipe(buf.B)
	secureMemory.Put(buf)
}
