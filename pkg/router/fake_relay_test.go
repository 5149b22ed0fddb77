package router

import (
	"github.com/gosuda/router-controller/pkg/channel"
	"github.com/gosuda/router-controller/pkg/relay"
	"github.com/gosuda/router-controller/pkg/wire"
)

// fakeRelayPeer is a scripted relay.Peer: it reports success with a given
// channel.Channel, or a given error, without dialing anything.
type fakeRelayPeer struct {
	result channel.Channel
	err    error
}

func (f *fakeRelayPeer) Start(offer wire.ConnectionOffer, listener relay.Listener) error {
	if f.err != nil {
		go listener.OnRelayConnectionError(f.err)
		return nil
	}
	go listener.OnRelayConnectionReady(f.result)
	return nil
}

// noopChannel is a channel.Channel that does nothing; it stands in for the
// "data channel" a relay peer would hand back, when the test only cares
// that OnHostConnected fired with something.
type noopChannel struct{}

func (noopChannel) Connect(addr string, port uint16) error { return nil }
func (noopChannel) Send(channelID uint8, data []byte) error { return nil }
func (noopChannel) SetListener(l channel.Listener)          {}
func (noopChannel) Pause()                                  {}
func (noopChannel) Resume()                                 {}
func (noopChannel) SetKeepAlive(enabled bool) error          { return nil }
func (noopChannel) SetNoDelay(enabled bool) error            { return nil }
func (noopChannel) SetChannelIDSupport(enabled bool)         {}
func (noopChannel) Close() error                             { return nil }
