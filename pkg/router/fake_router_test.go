package router

import (
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/gosuda/router-controller/pkg/channel"
	"github.com/gosuda/router-controller/pkg/srp"
	"github.com/gosuda/router-controller/pkg/wire"
)

// fakeRouter plays a complete router: it drives the real SRP handshake
// (so Controller exercises its real Authenticator and AEAD ciphers end to
// end) and then lets the test script whatever RouterToPeer replies a
// scenario needs on the session channel.
type fakeRouter struct {
	ch       channel.Channel
	username string
	password string
	version  wire.Version

	grp  *srp.Group
	salt []byte
	v    *big.Int
	eph  *srp.ServerEphemeral

	transcript [][]byte

	sendCipher *srp.Cipher
	recvCipher *srp.Cipher

	ready    chan struct{}
	incoming chan *wire.PeerToRouter

	// mutateKeyExchange sends a ServerKeyExchange with a corrupted public
	// value B, so the client's derived shared secret never matches the
	// router's and the handshake fails during authentication itself.
	mutateKeyExchange bool

	// sessionUp is set once the SessionResponse verifies; only then is
	// incoming traffic treated as sealed session-channel messages, so no
	// Open attempt advances recvCipher's nonce during the handshake.
	sessionUp bool
}

func newFakeRouter(username, password string, version wire.Version) *fakeRouter {
	return &fakeRouter{
		username: username,
		password: password,
		version:  version,
		grp:      srp.DefaultGroup(),
		salt:     []byte("routertestsaltbytes"),
		ready:    make(chan struct{}, 1),
		incoming: make(chan *wire.PeerToRouter, 16),
	}
}

func (f *fakeRouter) sendMsg(msg any) {
	data, err := wire.Encode(msg)
	if err != nil {
		return
	}
	f.transcript = append(f.transcript, data)
	_ = f.ch.Send(channel.SessionChannelID, data)
}

func (f *fakeRouter) reply(msg *wire.RouterToPeer) {
	data, err := wire.Encode(msg)
	if err != nil {
		return
	}
	ct := f.sendCipher.Seal(nil, data)
	// serverCh never enables channel-id support, so for a client at or above
	// wire.Version226 the channel-id prefix is written here by hand.
	if f.version.AtLeast(wire.Version226) {
		ct = append([]byte{channel.SessionChannelID}, ct...)
	}
	_ = f.ch.Send(channel.SessionChannelID, ct)
}

func (f *fakeRouter) OnConnected()                                {}
func (f *fakeRouter) OnDisconnected(code channel.DisconnectCode)  {}
func (f *fakeRouter) OnMessageWritten(channelID uint8, data []byte, pending int) {}

func (f *fakeRouter) OnMessageReceived(channelID uint8, data []byte) {
	if f.sessionUp {
		// A client at or above wire.Version226 prefixes each frame with its
		// channel id, which serverCh delivers as the first payload byte.
		if f.version.AtLeast(wire.Version226) {
			if len(data) < 1 {
				return
			}
			data = data[1:]
		}
		plain, err := f.recvCipher.Open(nil, data)
		if err == nil {
			msgType, payload, _, err := wire.DecodeFrame(plain)
			if err != nil {
				return
			}
			msg, err := wire.Decode(msgType, payload)
			if err != nil {
				return
			}
			if ptr, ok := msg.(*wire.PeerToRouter); ok {
				select {
				case f.incoming <- ptr:
				default:
				}
				return
			}
		}
	}

	msgType, payload, _, err := wire.DecodeFrame(data)
	if err != nil {
		return
	}
	msg, err := wire.Decode(msgType, payload)
	if err != nil {
		return
	}

	switch v := msg.(type) {
	case *wire.ClientHello:
		f.transcript = append(f.transcript, data)
		f.sendMsg(&wire.ServerHello{Method: wire.MethodSRP, ServerVersion: f.version, NonceS: []byte("nonceserverbytes")})
	case *wire.Identify:
		f.transcript = append(f.transcript, data)
		f.v = srp.Verifier(f.grp, f.username, f.password, f.salt)
		eph, err := srp.NewServerEphemeral(f.grp, f.v)
		if err != nil {
			return
		}
		f.eph = eph
		b := eph.Public
		if f.mutateKeyExchange {
			b = new(big.Int).Xor(b, big.NewInt(1))
		}
		f.sendMsg(&wire.ServerKeyExchange{N: f.grp.N, G: f.grp.Generator(), Salt: f.salt, B: b})
	case *wire.ClientKeyExchange:
		f.transcript = append(f.transcript, data)
		K, err := srp.ServerSharedSecret(f.grp, f.eph, f.v, v.A)
		if err != nil {
			return
		}
		bound := srp.HashTranscript(append([][]byte{K}, f.transcript...)...)
		keys := srp.DeriveSessionKeys(bound)
		sendCipher, err := srp.NewCipher(keys.RouterToClient)
		if err != nil {
			return
		}
		recvCipher, err := srp.NewCipher(keys.ClientToRouter)
		if err != nil {
			return
		}
		f.sendCipher = sendCipher
		f.recvCipher = recvCipher

		payload := &wire.SessionChallengePayload{
			ServerChallenge:     []byte("fixed-challenge-nonce"),
			PeerVersion:         f.version,
			AllowedSessionTypes: []wire.SessionType{wire.SessionTypeClient},
		}
		ct := f.sendCipher.Seal(nil, payload.Marshal())
		f.sendMsg(&wire.SessionChallenge{Ciphertext: ct})
	case *wire.SessionResponse:
		if _, err := f.recvCipher.Open(nil, v.Ciphertext); err == nil {
			f.sessionUp = true
			select {
			case f.ready <- struct{}{}:
			default:
			}
		}
	}
}

// listenerPair opens a real loopback TCP pair.
func listenerPair(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	acceptedCh := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			acceptedCh <- c
		}
	}()

	c, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	select {
	case s := <-acceptedCh:
		return c, s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accept")
	}
	return nil, nil
}

// newTestController wires a Controller to one end of a real loopback pair
// whose other end is driven by a fakeRouter, with a short wait-for-host
// interval so S2-style scenarios don't need to sleep 5s. hostID, waitForHost
// and delegate are installed before the handshake runs, mirroring ConnectTo,
// since Controller sends its first ConnectionRequest automatically as soon
// as authentication completes.
func newTestController(t *testing.T, username, password string, version wire.Version, hostID wire.HostID, waitForHost bool, delegate Delegate) (*Controller, *fakeRouter, func()) {
	t.Helper()
	clientConn, serverConn := listenerPair(t)

	clientCh := channel.NewTCPChannelFromConn(clientConn)
	serverCh := channel.NewTCPChannelFromConn(serverConn)

	fr := newFakeRouter(username, password, version)
	fr.ch = serverCh
	serverCh.SetListener(fr)

	c := New(NewRouterConfig("unused", 0, username, password))
	c.waitInterval = 50 * time.Millisecond
	c.ch = clientCh
	c.phase = PhaseConnecting
	c.hostID = hostID
	c.waitForHost = waitForHost
	c.delegate = delegate
	clientCh.SetListener(c)

	cleanup := func() {
		_ = clientCh.Close()
		_ = serverCh.Close()
	}

	// Controller normally enters via ConnectTo -> Channel.Connect ->
	// OnConnected; here the loopback pair is already connected, so drive
	// OnConnected directly, matching what Connect's dial goroutine would
	// have delivered.
	c.OnConnected()

	select {
	case <-fr.ready:
	case <-time.After(3 * time.Second):
		t.Fatal("handshake with fake router did not complete")
	}
	// Give onAuthComplete's callback (delivered on the dispatch loop) a
	// moment to send the automatic first ConnectionRequest before the test
	// starts scripting replies.
	time.Sleep(20 * time.Millisecond)

	return c, fr, cleanup
}
