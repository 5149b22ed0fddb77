package relay

import (
	"github.com/gosuda/router-controller/pkg/channel"
	"github.com/gosuda/router-controller/pkg/srp"
)

// encryptedChannel wraps an inner channel.Channel so every message crossing
// it is AEAD-sealed, mirroring the same directional-cipher-over-a-raw-
// transport layering the authenticator installs for the router session
// channel — the relay data channel gets the identical treatment, just with
// keys derived from the offer's keying material instead of SRP's K.
type encryptedChannel struct {
	inner      channel.Channel
	sendCipher *srp.Cipher
	recvCipher *srp.Cipher

	listener channel.Listener
}

func newEncryptedChannel(inner channel.Channel, sendCipher, recvCipher *srp.Cipher) *encryptedChannel {
	e := &encryptedChannel{inner: inner, sendCipher: sendCipher, recvCipher: recvCipher}
	inner.SetListener(e)
	return e
}

func (e *encryptedChannel) Connect(addr string, port uint16) error {
	return e.inner.Connect(addr, port)
}

func (e *encryptedChannel) Send(channelID uint8, data []byte) error {
	ct := e.sendCipher.Seal(nil, data)
	return e.inner.Send(channelID, ct)
}

func (e *encryptedChannel) SetListener(l channel.Listener) {
	e.listener = l
}

func (e *encryptedChannel) Pause()  { e.inner.Pause() }
func (e *encryptedChannel) Resume() { e.inner.Resume() }

func (e *encryptedChannel) SetKeepAlive(enabled bool) error { return e.inner.SetKeepAlive(enabled) }
func (e *encryptedChannel) SetNoDelay(enabled bool) error   { return e.inner.SetNoDelay(enabled) }

func (e *encryptedChannel) SetChannelIDSupport(enabled bool) {
	e.inner.SetChannelIDSupport(enabled)
}

func (e *encryptedChannel) Close() error {
	return e.inner.Close()
}

// --- channel.Listener, receiving from the inner raw channel ---

func (e *encryptedChannel) OnConnected() {
	if e.listener != nil {
		e.listener.OnConnected()
	}
}

func (e *encryptedChannel) OnDisconnected(code channel.DisconnectCode) {
	if e.listener != nil {
		e.listener.OnDisconnected(code)
	}
}

func (e *encryptedChannel) OnMessageReceived(channelID uint8, data []byte) {
	plain, err := e.recvCipher.Open(nil, data)
	if err != nil {
		e.inner.Close()
		return
	}
	if e.listener != nil {
		e.listener.OnMessageReceived(channelID, plain)
	}
}

func (e *encryptedChannel) OnMessageWritten(channelID uint8, data []byte, pending int) {
	if e.listener != nil {
		e.listener.OnMessageWritten(channelID, data, pending)
	}
}
