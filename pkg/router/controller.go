// Package router implements the client-side router controller: it drives
// a channel.Channel through connect -> authenticate -> request-host, and
// dispatches the router's session-channel replies until a relay peer
// delivers a data channel or a terminal error occurs.
package router

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/router-controller/pkg/auth"
	"github.com/gosuda/router-controller/pkg/channel"
	"github.com/gosuda/router-controller/pkg/relay"
	"github.com/gosuda/router-controller/pkg/srp"
	"github.com/gosuda/router-controller/pkg/wire"
)

// waitForHostInterval is the fixed poll period for the WaitingForHost
// loop, per the protocol's "5 seconds" contract.
const waitForHostInterval = 5 * time.Second

// ErrInvalidHostID is returned by ConnectTo when hostID is InvalidHostID.
var ErrInvalidHostID = errors.New("router: host id must not be InvalidHostID")

// ErrNilDelegate is returned by ConnectTo when delegate is nil.
var ErrNilDelegate = errors.New("router: delegate must not be nil")

// Controller drives one router session. One instance serves exactly one
// call to ConnectTo; repeated calls on the same instance are undefined,
// matching the "one instance, one session" contract.
type Controller struct {
	cfg              RouterConfig
	relayPeerFactory func() relay.Peer

	mu          sync.Mutex
	phase       ControllerPhase
	ch          channel.Channel
	hostID      wire.HostID
	waitForHost bool
	delegate    Delegate

	peerVersion wire.Version
	sendCipher  *srp.Cipher
	recvCipher  *srp.Cipher

	relayPeer relay.Peer
	waitTimer *time.Timer

	stats Stats

	terminalOnce sync.Once
	closeOnce    sync.Once
	done         bool

	// waitInterval overrides waitForHostInterval; only package tests set
	// this, to exercise the WaitingForHost loop without sleeping 5s.
	waitInterval time.Duration
}

// New constructs a Controller that dials cfg's router address.
func New(cfg RouterConfig) *Controller {
	return &Controller{
		cfg:              cfg,
		relayPeerFactory: func() relay.Peer { return relay.NewDialingPeer() },
		phase:            PhaseIdle,
		waitInterval:     waitForHostInterval,
	}
}

// Phase returns the controller's current lifecycle phase.
func (c *Controller) Phase() ControllerPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Stats returns a snapshot of session traffic counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// ConnectTo begins the session: dial the router, authenticate, and
// request hostID. Results arrive exclusively through delegate's callbacks.
// ctx bounds the WaitingForHost poll loop; canceling it is the documented
// escape hatch for an otherwise-unbounded wait (see Close for the
// alternative, synchronous teardown).
func (c *Controller) ConnectTo(ctx context.Context, hostID wire.HostID, waitForHost bool, delegate Delegate) error {
	if hostID == wire.InvalidHostID {
		return ErrInvalidHostID
	}
	if delegate == nil {
		return ErrNilDelegate
	}

	c.mu.Lock()
	c.hostID = hostID
	c.waitForHost = waitForHost
	c.delegate = delegate
	c.phase = PhaseConnecting
	c.mu.Unlock()

	go c.watchContext(ctx)

	ch := channel.NewTCPChannel()
	c.mu.Lock()
	c.ch = ch
	c.mu.Unlock()
	ch.SetListener(c)

	log.Info().Str("addr", c.cfg.Address()).Uint16("port", c.cfg.Port()).Msg("router: connecting")
	return ch.Connect(c.cfg.Address(), c.cfg.Port())
}

// watchContext terminates the session if ctx is canceled while waiting,
// giving ConnectTo's ctx a concrete effect on the otherwise-unbounded
// WaitingForHost poll.
func (c *Controller) watchContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	<-ctx.Done()
	c.mu.Lock()
	already := c.done
	c.mu.Unlock()
	if already {
		return
	}
	log.Info().Msg("router: context canceled, closing session")
	c.Close()
}

// --- channel.Listener: this controller is the listener until the
// authenticator takes over, and again once it hands the channel back. ---

func (c *Controller) OnConnected() {
	c.mu.Lock()
	ch := c.ch
	c.phase = PhaseAuthenticating
	c.mu.Unlock()

	if err := ch.SetKeepAlive(true); err != nil {
		log.Error().Err(err).Msg("router: SetKeepAlive failed")
	}
	if err := ch.SetNoDelay(true); err != nil {
		log.Error().Err(err).Msg("router: SetNoDelay failed")
	}

	a := auth.New(c.cfg.Username(), c.cfg.password, wire.Version226)
	a.Start(ch, func(err error) {
		c.onAuthComplete(a, err)
	})
}

func (c *Controller) OnDisconnected(code channel.DisconnectCode) {
	log.Error().Str("code", code.String()).Msg("router: channel disconnected")
	c.cancelWaitTimer()
	c.terminate(networkError(code))
}

func (c *Controller) OnMessageWritten(channelID uint8, data []byte, pending int) {}

func (c *Controller) OnMessageReceived(channelID uint8, data []byte) {
	c.mu.Lock()
	recvCipher := c.recvCipher
	c.stats.BytesReceived += uint64(len(data))
	c.mu.Unlock()

	if recvCipher == nil {
		log.Error().Msg("router: message received before session keys installed")
		return
	}
	plain, err := recvCipher.Open(nil, data)
	if err != nil {
		log.Error().Err(err).Msg("router: failed to open session message")
		c.terminate(routerError(RouterErrUnknown))
		return
	}

	msgType, payload, _, err := wire.DecodeFrame(plain)
	if err != nil {
		log.Error().Err(err).Msg("router: malformed session frame")
		c.terminate(routerError(RouterErrUnknown))
		return
	}
	msg, err := wire.Decode(msgType, payload)
	if err != nil {
		log.Error().Err(err).Msg("router: malformed session message")
		c.terminate(routerError(RouterErrUnknown))
		return
	}

	rtp, ok := msg.(*wire.RouterToPeer)
	if !ok {
		log.Warn().Str("type", msgType.String()).Msg("router: unexpected message type on session channel, ignoring")
		return
	}

	switch {
	case rtp.ConnectionOffer != nil:
		c.handleConnectionOffer(rtp.ConnectionOffer)
	case rtp.HostStatus != nil:
		c.handleHostStatus(rtp.HostStatus)
	default:
		log.Warn().Msg("router: unrecognized RouterToPeer tag, ignoring")
	}
}

func (c *Controller) onAuthComplete(a *auth.Authenticator, err error) {
	if err != nil {
		log.Error().Err(err).Msg("router: authentication failed")
		c.terminate(authenticationError(err))
		return
	}

	peerVersion := a.PeerVersion()
	sendCipher, recvCipher := a.SessionCiphers()
	ch := a.TakeChannel()

	c.mu.Lock()
	c.peerVersion = peerVersion
	c.sendCipher = sendCipher
	c.recvCipher = recvCipher
	c.ch = ch
	c.phase = PhaseRequestingHost
	c.stats.SessionStart = time.Now()
	delegate := c.delegate
	c.mu.Unlock()

	ch.SetListener(c)
	if peerVersion.AtLeast(wire.Version226) {
		ch.SetChannelIDSupport(true)
	}

	if delegate != nil {
		delegate.OnRouterConnected(peerVersion)
	} else {
		log.Warn().Msg("router: no delegate installed, skipping OnRouterConnected")
	}

	ch.Resume()
	c.sendConnectionRequest()
}

func (c *Controller) sendConnectionRequest() {
	c.mu.Lock()
	hostID := c.hostID
	c.phase = PhaseRequestingHost
	c.mu.Unlock()

	log.Debug().Str("session", wire.DeriveSessionLogID(hostID)).Msg("router: requesting host")
	msg := &wire.PeerToRouter{ConnectionRequest: &wire.ConnectionRequest{HostID: hostID}}
	c.send(msg)
}

func (c *Controller) sendCheckHostStatus() {
	c.mu.Lock()
	hostID := c.hostID
	c.mu.Unlock()

	msg := &wire.PeerToRouter{CheckHostStatus: &wire.CheckHostStatus{HostID: hostID}}
	c.send(msg)
}

func (c *Controller) send(msg any) {
	data, err := wire.Encode(msg)
	if err != nil {
		log.Error().Err(err).Msg("router: encode failed")
		return
	}

	c.mu.Lock()
	ch := c.ch
	sendCipher := c.sendCipher
	c.mu.Unlock()
	if ch == nil || sendCipher == nil {
		return
	}

	ct := sendCipher.Seal(nil, data)
	if err := ch.Send(channel.SessionChannelID, ct); err != nil {
		log.Error().Err(err).Msg("router: send failed")
		return
	}
	c.mu.Lock()
	c.stats.BytesSent += uint64(len(ct))
	c.mu.Unlock()
}

func (c *Controller) handleConnectionOffer(offer *wire.ConnectionOffer) {
	c.mu.Lock()
	if c.relayPeer != nil {
		c.mu.Unlock()
		log.Warn().Msg("router: duplicate connection_offer, dropping")
		return
	}
	c.mu.Unlock()

	switch offer.ErrorCode {
	case wire.RouterSuccess:
		if offer.PeerRole != wire.PeerRoleClient {
			c.terminate(routerError(RouterErrUnknown))
			return
		}
		c.startRelay(*offer)
	case wire.RouterPeerNotFound:
		c.mu.Lock()
		waitForHost := c.waitForHost
		c.mu.Unlock()
		if waitForHost {
			c.enterWaitingForHost()
		} else {
			c.terminate(routerError(RouterErrPeerNotFound))
		}
	case wire.RouterAccessDenied:
		c.terminate(routerError(RouterErrAccessDenied))
	case wire.RouterKeyPoolEmpty:
		c.terminate(routerError(RouterErrKeyPoolEmpty))
	default:
		c.terminate(routerError(RouterErrUnknown))
	}
}

func (c *Controller) handleHostStatus(hs *wire.HostStatus) {
	if hs.Status == wire.HostOnline {
		c.sendConnectionRequest()
		return
	}
	c.enterWaitingForHost()
}

func (c *Controller) enterWaitingForHost() {
	c.mu.Lock()
	c.phase = PhaseWaitingForHost
	delegate := c.delegate
	hostID := c.hostID
	c.mu.Unlock()

	log.Info().Str("session", wire.DeriveSessionLogID(hostID)).Msg("router: host offline, waiting")
	if delegate != nil {
		delegate.OnHostAwaiting()
	} else {
		log.Warn().Msg("router: no delegate installed, skipping OnHostAwaiting")
	}
	c.armWaitTimer()
}

func (c *Controller) armWaitTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.waitTimer != nil {
		c.waitTimer.Stop()
	}
	c.waitTimer = time.AfterFunc(c.waitInterval, c.onWaitTimerFire)
}

func (c *Controller) cancelWaitTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.waitTimer != nil {
		c.waitTimer.Stop()
		c.waitTimer = nil
	}
}

// onWaitTimerFire runs on its own goroutine (time.AfterFunc, not the
// channel's dispatch loop); like every other controller path it reads the
// shared fields under c.mu.
func (c *Controller) onWaitTimerFire() {
	c.mu.Lock()
	phase := c.phase
	done := c.done
	c.mu.Unlock()
	if done || phase != PhaseWaitingForHost {
		return
	}
	c.sendCheckHostStatus()
}

func (c *Controller) startRelay(offer wire.ConnectionOffer) {
	c.mu.Lock()
	c.phase = PhaseRelaying
	peer := c.relayPeerFactory()
	c.relayPeer = peer
	c.mu.Unlock()

	if err := peer.Start(offer, c); err != nil {
		log.Error().Err(err).Msg("router: relay peer start failed")
		c.terminate(routerError(RouterErrRelayError))
	}
}

// --- relay.Listener ---

func (c *Controller) OnRelayConnectionReady(dataChannel channel.Channel) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	delegate := c.delegate
	c.mu.Unlock()

	c.terminalOnce.Do(func() {
		c.mu.Lock()
		c.done = true
		c.mu.Unlock()
		if delegate != nil {
			delegate.OnHostConnected(dataChannel)
		} else {
			log.Warn().Msg("router: no delegate installed, skipping OnHostConnected")
		}
	})
}

func (c *Controller) OnRelayConnectionError(err error) {
	log.Error().Err(err).Msg("router: relay connection failed")
	c.terminate(routerError(RouterErrRelayError))
}

// terminate delivers err to the delegate exactly once (shared with the
// success path via terminalOnce, since the two are mutually exclusive),
// cancels the wait timer, and marks the session done so later callbacks
// are suppressed.
func (c *Controller) terminate(err *ControllerError) {
	c.cancelWaitTimer()

	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	delegate := c.delegate
	c.phase = PhaseTerminated
	c.mu.Unlock()

	c.terminalOnce.Do(func() {
		c.mu.Lock()
		c.done = true
		c.mu.Unlock()
		if delegate != nil {
			delegate.OnErrorOccurred(err)
		} else {
			log.Warn().Msg("router: no delegate installed, skipping OnErrorOccurred")
		}
	})
}

// Close tears down the session: cancels the wait timer and closes the
// router channel (which stops its dispatch loop and fires no further
// callbacks). A relay peer already started, and any data channel it has
// handed to the delegate, are not closed. No delegate callback is guaranteed by Close itself; OnDisconnected, if the
// close races with an in-flight read, may still fire once.
func (c *Controller) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancelWaitTimer()
		c.mu.Lock()
		ch := c.ch
		c.done = true
		c.phase = PhaseTerminated
		c.mu.Unlock()
		if ch != nil {
			err = ch.Close()
		}
	})
	return err
}
