// Package relay adapts a router's connection offer into a usable data
// channel: dialing the relay coordinates the offer carries and sealing
// traffic with an AEAD key derived from the offer's keying material. The
// real relay negotiation protocol (how the router and the two peers agree
// on those coordinates) is out of scope here; this package only consumes
// the offer once issued.
package relay

import (
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/router-controller/pkg/channel"
	"github.com/gosuda/router-controller/pkg/srp"
	"github.com/gosuda/router-controller/pkg/wire"
)

// ErrInvalidOffer is returned synchronously by Start when the offer itself
// is malformed (no relay coordinates), before any dial is attempted.
var ErrInvalidOffer = errors.New("relay: offer carries no relay coordinates")

// Listener receives the outcome of a relay connection attempt. Exactly one
// of OnRelayConnectionReady or OnRelayConnectionError is delivered.
type Listener interface {
	OnRelayConnectionReady(ch channel.Channel)
	OnRelayConnectionError(err error)
}

// Peer opens a data channel described by a router's connection offer.
type Peer interface {
	Start(offer wire.ConnectionOffer, listener Listener) error
}

// DialingPeer is the default Peer: it dials the offer's relay address over
// TCP and wraps the resulting channel so its traffic is sealed with an
// AEAD key derived from the offer's keying material.
type DialingPeer struct{}

// NewDialingPeer constructs a DialingPeer.
func NewDialingPeer() *DialingPeer {
	return &DialingPeer{}
}

// Start validates the offer synchronously and, if well-formed, dials in
// the background; the outcome is always reported via listener, never via
// Start's return value, except for this synchronous pre-flight check.
func (p *DialingPeer) Start(offer wire.ConnectionOffer, listener Listener) error {
	if offer.RelayAddress == "" || offer.RelayPort == 0 {
		return ErrInvalidOffer
	}

	go func() {
		addr := fmt.Sprintf("%s:%d", offer.RelayAddress, offer.RelayPort)
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			log.Error().Err(err).Str("addr", addr).Msg("relay: dial failed")
			listener.OnRelayConnectionError(err)
			return
		}

		keys := srp.DeriveSessionKeys(offer.KeyingMaterial)
		sendCipher, err := srp.NewCipher(keys.ClientToRouter)
		if err != nil {
			conn.Close()
			listener.OnRelayConnectionError(err)
			return
		}
		recvCipher, err := srp.NewCipher(keys.RouterToClient)
		if err != nil {
			conn.Close()
			listener.OnRelayConnectionError(err)
			return
		}

		inner := channel.NewTCPChannelFromConn(conn)
		enc := newEncryptedChannel(inner, sendCipher, recvCipher)
		log.Info().Str("addr", addr).Msg("relay: data channel ready")
		listener.OnRelayConnectionReady(enc)
	}()
	return nil
}
