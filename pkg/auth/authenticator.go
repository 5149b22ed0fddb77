// Package auth implements the client-side SRP-6a handshake: the
// Authenticator takes exclusive ownership of a channel.Channel, drives it
// through the protocol states enumerated by State, and hands the
// channel back — still paused — once authentication succeeds or fails.
package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/router-controller/internal/bufpool"
	"github.com/gosuda/router-controller/pkg/channel"
	"github.com/gosuda/router-controller/pkg/srp"
	"github.com/gosuda/router-controller/pkg/wire"
)

// State is the authenticator's explicit protocol state, kept as data
// (rather than implicit in call stacks) so each transition is independently
// loggable and testable.
type State int

const (
	StateSendClientHello State = iota
	StateReadServerHello
	StateSendIdentify
	StateReadServerKeyExchange
	StateSendClientKeyExchange
	StateReadSessionChallenge
	StateSendSessionResponse
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSendClientHello:
		return "SendClientHello"
	case StateReadServerHello:
		return "ReadServerHello"
	case StateSendIdentify:
		return "SendIdentify"
	case StateReadServerKeyExchange:
		return "ReadServerKeyExchange"
	case StateSendClientKeyExchange:
		return "SendClientKeyExchange"
	case StateReadSessionChallenge:
		return "ReadSessionChallenge"
	case StateSendSessionResponse:
		return "SendSessionResponse"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// srpState is the authenticator's scratch big-integer material, zeroed at
// handshake completion per the "big integers are destroyed" invariant.
type srpState struct {
	grp  *srp.Group
	salt []byte
	B    *big.Int
	eph  *srp.ClientEphemeral
}

func (s *srpState) wipe() {
	if s == nil {
		return
	}
	bufpool.Wipe(s.salt)
	if s.B != nil {
		srp.Wipe(s.B)
	}
	if s.eph != nil {
		srp.Wipe(s.eph.Secret)
		srp.Wipe(s.eph.Public)
	}
}

// Authenticator drives the SRP handshake over a channel it owns
// exclusively until completion.
type Authenticator struct {
	username string
	password string
	clientVersion wire.Version

	ch    channel.Channel
	state State

	srp srpState

	nonceC []byte

	peerVersion wire.Version

	sendCipher *srp.Cipher // client → router, installed after key exchange
	recvCipher *srp.Cipher // router → client

	// transcript accumulates the raw encoded bytes of every pre-session
	// message, in exchange order, so the session keys can be bound to the
	// whole handshake rather than just K. Without this, a tampered
	// ServerHello or ServerKeyExchange field that ModExp/IsZeroModN don't
	// already reject (a version byte, a nonce) would go undetected.
	transcript [][]byte

	completeOnce sync.Once
	onComplete   func(err error)
}

// New constructs an Authenticator for the given credentials and the
// client's own advertised version.
func New(username, password string, clientVersion wire.Version) *Authenticator {
	return &Authenticator{
		username:      username,
		password:      password,
		clientVersion: clientVersion,
		state:         StateSendClientHello,
	}
}

// Start takes ownership of ch (installing itself as the sole listener) and
// begins the handshake by sending ClientHello. onComplete is invoked
// exactly once, with nil on success (state Done) or a *Error on failure
// (state Failed).
func (a *Authenticator) Start(ch channel.Channel, onComplete func(err error)) {
	a.ch = ch
	a.onComplete = onComplete
	ch.SetListener(a)

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		a.fail(ErrUnknown, fmt.Errorf("generate nonce: %w", err))
		return
	}
	a.nonceC = nonce

	hello := &wire.ClientHello{
		SupportedMethods: []wire.AuthMethod{wire.MethodSRP},
		ClientVersion:    a.clientVersion,
		NonceC:           nonce,
	}
	if !a.send(hello) {
		return
	}
	a.state = StateReadServerHello
	log.Debug().Str("state", a.state.String()).Msg("auth: sent ClientHello")
}

// PeerVersion returns the router's version. After a successful handshake it
// is the value authenticated inside the sealed SessionChallenge; after a
// failure past ReadServerHello it is the unauthenticated ServerHello value.
func (a *Authenticator) PeerVersion() wire.Version {
	return a.peerVersion
}

// TakeChannel returns the channel, still paused, transferring ownership
// back to the caller. The caller must install its own listener before
// calling Resume.
func (a *Authenticator) TakeChannel() channel.Channel {
	return a.ch
}

// SessionCiphers returns the directional AEAD ciphers installed after the
// key exchange, for use by the router controller's session-channel
// traffic. Only valid after a successful handshake.
func (a *Authenticator) SessionCiphers() (send, recv *srp.Cipher) {
	return a.sendCipher, a.recvCipher
}

func (a *Authenticator) send(msg any) bool {
	data, err := wire.Encode(msg)
	if err != nil {
		a.fail(ErrProtocol, fmt.Errorf("encode %T: %w", msg, err))
		return false
	}
	if err := a.ch.Send(channel.SessionChannelID, data); err != nil {
		a.fail(ErrNetwork, fmt.Errorf("send %T: %w", msg, err))
		return false
	}
	if a.state < StateReadSessionChallenge {
		a.transcript = append(a.transcript, data)
	}
	return true
}

// --- channel.Listener ---

func (a *Authenticator) OnConnected() {
	// The controller starts the authenticator only after the channel has
	// already reported connected; a further OnConnected here would be a
	// channel implementation bug, not a protocol event. Nothing to do.
}

func (a *Authenticator) OnDisconnected(code channel.DisconnectCode) {
	a.fail(ErrNetwork, fmt.Errorf("channel disconnected: %s", code))
}

func (a *Authenticator) OnMessageWritten(channelID uint8, data []byte, pending int) {
	// Every send this authenticator makes is followed by a state change
	// triggered at the recv side, not the write-ack side; nothing to do.
}

func (a *Authenticator) OnMessageReceived(channelID uint8, data []byte) {
	msgType, payload, _, err := wire.DecodeFrame(data)
	if err != nil {
		a.fail(ErrProtocol, fmt.Errorf("decode frame: %w", err))
		return
	}
	msg, err := wire.Decode(msgType, payload)
	if err != nil {
		a.fail(ErrProtocol, fmt.Errorf("decode message: %w", err))
		return
	}

	if a.state == StateReadServerHello || a.state == StateReadServerKeyExchange {
		a.transcript = append(a.transcript, data)
	}

	switch a.state {
	case StateReadServerHello:
		a.onServerHello(msg)
	case StateReadServerKeyExchange:
		a.onServerKeyExchange(msg)
	case StateReadSessionChallenge:
		a.onSessionChallenge(msg)
	default:
		a.fail(ErrProtocol, fmt.Errorf("unexpected message %v in state %s", msgType, a.state))
	}
}

func (a *Authenticator) onServerHello(msg any) {
	sh, ok := msg.(*wire.ServerHello)
	if !ok {
		a.fail(ErrProtocol, fmt.Errorf("expected ServerHello, got %T", msg))
		return
	}
	if sh.Method != wire.MethodSRP {
		a.fail(ErrProtocol, fmt.Errorf("unsupported method %d", sh.Method))
		return
	}
	a.peerVersion = sh.ServerVersion

	a.state = StateSendIdentify
	identify := &wire.Identify{
		Identify: wire.IdentifySRP,
		Username: a.username,
	}
	if !a.send(identify) {
		return
	}
	a.state = StateReadServerKeyExchange
	log.Debug().Str("state", a.state.String()).Msg("auth: sent Identify")
}

func (a *Authenticator) onServerKeyExchange(msg any) {
	ske, ok := msg.(*wire.ServerKeyExchange)
	if !ok {
		a.fail(ErrProtocol, fmt.Errorf("expected ServerKeyExchange, got %T", msg))
		return
	}

	grp := srp.DefaultGroup()
	if ske.N.Cmp(grp.N) != 0 || ske.G.Cmp(grp.Generator()) != 0 {
		a.fail(ErrVersionDenied, fmt.Errorf("router offered an unrecognized SRP group"))
		return
	}
	if srp.IsZeroModN(ske.B, grp.N) {
		a.fail(ErrKeyExchangeFailure, fmt.Errorf("server public value B is zero mod N"))
		return
	}

	eph, err := srp.NewClientEphemeral(grp)
	if err != nil {
		a.fail(ErrUnknown, fmt.Errorf("generate client ephemeral: %w", err))
		return
	}

	a.srp = srpState{grp: grp, salt: ske.Salt, B: ske.B, eph: eph}

	a.state = StateSendClientKeyExchange
	K, err := srp.ClientSharedSecret(grp, eph, a.username, a.password, ske.Salt, ske.B)
	if err != nil {
		a.fail(ErrKeyExchangeFailure, fmt.Errorf("compute shared secret: %w", err))
		return
	}

	if !a.send(&wire.ClientKeyExchange{A: eph.Public}) {
		return
	}

	// Bind the derived keys to the full pre-ciphertext transcript, not just
	// K: a single tampered byte anywhere in ServerHello or ServerKeyExchange
	// must still change the session keys, even fields (version, nonce) that
	// ModExp/IsZeroModN never inspect.
	bound := srp.HashTranscript(append([][]byte{K}, a.transcript...)...)
	keys := srp.DeriveSessionKeys(bound)
	bufpool.Wipe(bound)
	sendCipher, err := srp.NewCipher(keys.ClientToRouter)
	if err != nil {
		a.fail(ErrKeyExchangeFailure, fmt.Errorf("install send cipher: %w", err))
		return
	}
	recvCipher, err := srp.NewCipher(keys.RouterToClient)
	if err != nil {
		a.fail(ErrKeyExchangeFailure, fmt.Errorf("install recv cipher: %w", err))
		return
	}
	a.sendCipher = sendCipher
	a.recvCipher = recvCipher
	bufpool.Wipe(K)
	bufpool.Wipe(keys.ClientToRouter[:])
	bufpool.Wipe(keys.RouterToClient[:])

	a.state = StateReadSessionChallenge
	log.Debug().Str("state", a.state.String()).Msg("auth: sent ClientKeyExchange, session keys installed")
}

func (a *Authenticator) onSessionChallenge(msg any) {
	sc, ok := msg.(*wire.SessionChallenge)
	if !ok {
		a.fail(ErrProtocol, fmt.Errorf("expected SessionChallenge, got %T", msg))
		return
	}

	plain, err := a.recvCipher.Open(nil, sc.Ciphertext)
	if err != nil {
		a.fail(ErrKeyExchangeFailure, fmt.Errorf("open session challenge: %w", err))
		return
	}
	payload, err := wire.UnmarshalSessionChallengePayload(plain)
	if err != nil {
		a.fail(ErrProtocol, fmt.Errorf("decode session challenge payload: %w", err))
		return
	}

	// payload.PeerVersion rode inside the AEAD-sealed challenge, authenticated
	// by the transcript-bound session keys; sh.ServerVersion (assigned onto
	// a.peerVersion provisionally in onServerHello) never left the plaintext
	// ServerHello and cannot be trusted on its own. Require them to agree and
	// let the validated value win.
	if payload.PeerVersion != a.peerVersion {
		a.fail(ErrVersionDenied, fmt.Errorf("server version mismatch: ServerHello=%s SessionChallenge=%s", a.peerVersion, payload.PeerVersion))
		return
	}
	a.peerVersion = payload.PeerVersion

	allowed := false
	for _, st := range payload.AllowedSessionTypes {
		if st == wire.SessionTypeClient {
			allowed = true
			break
		}
	}
	if !allowed {
		a.fail(ErrSessionDenied, fmt.Errorf("router does not allow SessionTypeClient"))
		return
	}

	response := srp.HashTranscript([]byte("session-response"), payload.ServerChallenge)
	responsePayload := &wire.SessionResponsePayload{
		SessionType:   wire.SessionTypeClient,
		ChosenVersion: a.peerVersion,
		Response:      response,
	}
	ciphertext := a.sendCipher.Seal(nil, responsePayload.Marshal())

	a.state = StateSendSessionResponse
	if !a.send(&wire.SessionResponse{Ciphertext: ciphertext}) {
		return
	}

	a.succeed()
}

func (a *Authenticator) succeed() {
	a.state = StateDone
	a.srp.wipe()
	a.ch.Pause()
	log.Info().Str("peer_version", a.peerVersion.String()).Msg("auth: handshake complete")
	a.completeOnce.Do(func() {
		if a.onComplete != nil {
			a.onComplete(nil)
		}
	})
}

func (a *Authenticator) fail(code ErrorCode, cause error) {
	a.state = StateFailed
	a.srp.wipe()
	if a.ch != nil {
		a.ch.Pause()
	}
	log.Error().Err(cause).Str("code", code.String()).Msg("auth: handshake failed")
	a.completeOnce.Do(func() {
		if a.onComplete != nil {
			a.onComplete(&Error{Code: code})
		}
	})
}
