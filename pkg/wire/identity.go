package wire

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
)

var sessionLogMagic = []byte("ROUTER_CONTROLLER_V1_SESSION_LOG_ID")
var shortIDEncoding = base32.NewEncoding("ABCDEFGHIJKLMNOPQRSTUVWXYZ234567").WithPadding(base32.NoPadding)

// DeriveSessionLogID returns a short, stable, one-way identifier for
// hostID: an HMAC-SHA256 keyed on a fixed protocol string, truncated and
// base32-encoded. Log lines use this instead of the raw host id so
// correlating a session across log lines doesn't require echoing the
// account-identifying number itself.
func DeriveSessionLogID(hostID HostID) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(hostID))
	h := hmac.New(sha256.New, sessionLogMagic)
	h.Write(buf[:])
	sum := h.Sum(nil)
	return shortIDEncoding.EncodeToString(sum[:10])
}
