// Package wire implements the length-prefixed frame format and the
// structured message schema exchanged between the client router controller
// and the router, both during the SRP handshake and afterward on the
// reserved session channel.
package wire

import "fmt"

// MessageType tags the payload that follows a frame's length prefix.
type MessageType byte

const (
	MsgClientHello MessageType = iota + 1
	MsgServerHello
	MsgIdentify
	MsgServerKeyExchange
	MsgClientKeyExchange
	MsgSessionChallenge
	MsgSessionResponse
	MsgPeerToRouter
	MsgRouterToPeer
)

func (t MessageType) String() string {
	switch t {
	case MsgClientHello:
		return "ClientHello"
	case MsgServerHello:
		return "ServerHello"
	case MsgIdentify:
		return "Identify"
	case MsgServerKeyExchange:
		return "ServerKeyExchange"
	case MsgClientKeyExchange:
		return "ClientKeyExchange"
	case MsgSessionChallenge:
		return "SessionChallenge"
	case MsgSessionResponse:
		return "SessionResponse"
	case MsgPeerToRouter:
		return "PeerToRouter"
	case MsgRouterToPeer:
		return "RouterToPeer"
	default:
		return fmt.Sprintf("MessageType(%d)", byte(t))
	}
}

// HostID identifies a target host. The zero value is reserved and invalid.
type HostID uint64

// InvalidHostID is the reserved zero value; connectTo must never be called
// with it.
const InvalidHostID HostID = 0

// Version is a totally ordered (major, minor, patch) triple advertised by
// both peers during the handshake.
type Version struct {
	Major, Minor, Patch uint8
}

// Version226 gates channel-id multiplexing: a router reporting a peer
// version at or above this enables it.
var Version226 = Version{Major: 2, Minor: 6, Patch: 0}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// other, comparing major then minor then patch.
func (v Version) Compare(other Version) int {
	if v.Major != other.Major {
		return cmpU8(v.Major, other.Major)
	}
	if v.Minor != other.Minor {
		return cmpU8(v.Minor, other.Minor)
	}
	return cmpU8(v.Patch, other.Patch)
}

// AtLeast reports whether v >= other.
func (v Version) AtLeast(other Version) bool {
	return v.Compare(other) >= 0
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

func cmpU8(a, b uint8) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// AuthMethod enumerates the handshake methods a ClientHello can advertise.
// This controller only ever advertises and accepts MethodSRP.
type AuthMethod byte

const (
	MethodSRP AuthMethod = 1
)

// IdentifyMethod is the tag carried by the Identify message.
type IdentifyMethod byte

const (
	IdentifySRP IdentifyMethod = 1
)

// SessionType tags the kind of session being negotiated. This controller
// always requests SessionTypeClient.
type SessionType byte

const (
	SessionTypeClient SessionType = 1
	SessionTypeHost   SessionType = 2
)

// RouterErrorCode is carried by a ConnectionOffer to report whether the
// router was able to reach the requested host.
type RouterErrorCode byte

const (
	RouterSuccess RouterErrorCode = iota
	RouterPeerNotFound
	RouterAccessDenied
	RouterKeyPoolEmpty
	RouterUnknownError
)

// PeerRole identifies which side of a relay connection a ConnectionOffer
// describes.
type PeerRole byte

const (
	PeerRoleClient PeerRole = 1
	PeerRoleHost   PeerRole = 2
)

// HostStatusValue is carried by a HostStatus message.
type HostStatusValue byte

const (
	HostOnline HostStatusValue = iota
	HostOffline
)
