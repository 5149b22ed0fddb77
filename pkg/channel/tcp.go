package channel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/router-controller/internal/bufpool"
)

// maxMessageSize bounds a single raw channel message so a confused or
// hostile peer cannot force an unbounded read allocation.
const maxMessageSize = 1 << 24

// frameHeaderSize is the 4-byte big-endian length prefix every raw channel
// frame carries, mirroring cryptoops.SecureConnection's length-prefix
// framing one layer below the Noise ciphertext.
const frameHeaderSize = 4

type eventKind int

const (
	eventConnected eventKind = iota
	eventDisconnected
	eventMessageReceived
	eventMessageWritten
)

type event struct {
	kind      eventKind
	code      DisconnectCode
	channelID uint8
	data      []byte
	pending   int
}

// TCPChannel is a Channel backed by a real TCP connection. A single reader
// goroutine turns the raw stream into discrete events; a single dispatch
// goroutine drains those events and invokes the installed Listener one at
// a time, in order, so the authenticator and controller never observe
// concurrent callbacks and need no locking of their own fields.
type TCPChannel struct {
	listenerMu sync.Mutex
	listener   Listener

	connMu    sync.Mutex
	conn      net.Conn
	connected bool

	writeMu sync.Mutex

	channelIDMu      sync.RWMutex
	channelIDSupport bool

	queueMu sync.Mutex
	queueCV *sync.Cond
	queue   []event
	paused  bool
	closed  bool

	connectOnce sync.Once
	closeOnce   sync.Once
}

// NewTCPChannel constructs a channel ready to Connect. Its dispatch loop
// starts immediately; an event it dispatches while no listener is
// installed is dropped, so the caller installs a listener before Connect.
func NewTCPChannel() *TCPChannel {
	t := &TCPChannel{}
	t.queueCV = sync.NewCond(&t.queueMu)
	go t.dispatchLoop()
	return t
}

// NewTCPChannelFromConn wraps an already-established net.Conn as a
// connected Channel, for callers that dial or accept the socket themselves
// (the relay peer's offer-directed dial, and test harnesses that need a
// real loopback pair without going through Connect's async dial path).
func NewTCPChannelFromConn(conn net.Conn) *TCPChannel {
	t := &TCPChannel{conn: conn, connected: true}
	t.queueCV = sync.NewCond(&t.queueMu)
	t.connectOnce.Do(func() {})
	go t.dispatchLoop()
	go t.readLoop(conn)
	return t
}

func (t *TCPChannel) SetListener(l Listener) {
	t.listenerMu.Lock()
	t.listener = l
	t.listenerMu.Unlock()
}

func (t *TCPChannel) listenerSnapshot() Listener {
	t.listenerMu.Lock()
	defer t.listenerMu.Unlock()
	return t.listener
}

func (t *TCPChannel) Pause() {
	t.queueMu.Lock()
	t.paused = true
	t.queueMu.Unlock()
}

func (t *TCPChannel) Resume() {
	t.queueMu.Lock()
	t.paused = false
	t.queueMu.Unlock()
	t.queueCV.Broadcast()
}

func (t *TCPChannel) SetChannelIDSupport(enabled bool) {
	t.channelIDMu.Lock()
	t.channelIDSupport = enabled
	t.channelIDMu.Unlock()
}

func (t *TCPChannel) channelIDEnabled() bool {
	t.channelIDMu.RLock()
	defer t.channelIDMu.RUnlock()
	return t.channelIDSupport
}

// Connect dials addr:port in the background and reports the outcome via
// OnConnected/OnDisconnected on whatever listener is installed at the time
// the dial resolves.
func (t *TCPChannel) Connect(addr string, port uint16) error {
	started := false
	t.connectOnce.Do(func() { started = true })
	if !started {
		return ErrAlreadyConnected
	}

	go func() {
		conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", addr, port))
		if err != nil {
			log.Error().Err(err).Str("addr", addr).Uint16("port", port).Msg("channel: dial failed")
			t.enqueue(event{kind: eventDisconnected, code: dialErrorCode(err)})
			return
		}
		t.connMu.Lock()
		t.conn = conn
		t.connected = true
		t.connMu.Unlock()

		t.enqueue(event{kind: eventConnected})
		go t.readLoop(conn)
	}()
	return nil
}

// readLoop reads each frame's body into a pooled scratch buffer (mirroring
// cryptoops.SecureConnection.Read's acquireBuffer/releaseBuffer around the
// ciphertext it reads off the wire) and copies the final payload out of it
// before enqueuing: the scratch buffer is reused by the very next iteration,
// but the enqueued event outlives that iteration — the authenticator's
// transcript, in particular, retains the slice it's handed indefinitely.
func (t *TCPChannel) readLoop(conn net.Conn) {
	lenBuf := make([]byte, frameHeaderSize)
	scratch := bufpool.Get()
	defer bufpool.Put(scratch)
	for {
		if _, err := io.ReadFull(conn, lenBuf); err != nil {
			t.enqueue(event{kind: eventDisconnected, code: readErrorCode(err)})
			return
		}
		n := binary.BigEndian.Uint32(lenBuf)
		if n == 0 || n > maxMessageSize {
			t.enqueue(event{kind: eventDisconnected, code: DisconnectReset})
			return
		}
		if uint32(cap(*scratch)) < n {
			*scratch = make([]byte, n)
		} else {
			*scratch = (*scratch)[:n]
		}
		if _, err := io.ReadFull(conn, *scratch); err != nil {
			t.enqueue(event{kind: eventDisconnected, code: readErrorCode(err)})
			return
		}

		channelID := SessionChannelID
		payload := *scratch
		if t.channelIDEnabled() {
			if len(payload) < 1 {
				t.enqueue(event{kind: eventDisconnected, code: DisconnectReset})
				return
			}
			channelID = payload[0]
			payload = payload[1:]
		}
		out := make([]byte, len(payload))
		copy(out, payload)
		t.enqueue(event{kind: eventMessageReceived, channelID: channelID, data: out})
	}
}

// Send serializes data as one length-prefixed (and, once channel-id
// multiplexing is enabled, channel-id-prefixed) frame. Writes are
// serialized under writeMu since TCP delivery order on the wire must match
// call order. The frame itself is assembled in a pooled buffer, released
// once conn.Write returns — the same acquire/write/release scope
// cryptoops.SecureConnection.writeFragment uses around its ciphertext
// buffer, since nothing here needs the frame bytes to outlive the call.
func (t *TCPChannel) Send(channelID uint8, data []byte) error {
	t.connMu.Lock()
	conn := t.conn
	connected := t.connected
	t.connMu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	bodyLen := len(data)
	if t.channelIDEnabled() {
		bodyLen++
	}
	total := frameHeaderSize + bodyLen

	frameBuf := bufpool.Get()
	defer bufpool.Put(frameBuf)
	if cap(*frameBuf) < total {
		*frameBuf = make([]byte, total)
	} else {
		*frameBuf = (*frameBuf)[:total]
	}
	frame := *frameBuf

	binary.BigEndian.PutUint32(frame[:frameHeaderSize], uint32(bodyLen))
	if t.channelIDEnabled() {
		frame[frameHeaderSize] = channelID
		copy(frame[frameHeaderSize+1:], data)
	} else {
		copy(frame[frameHeaderSize:], data)
	}

	if _, err := conn.Write(frame); err != nil {
		t.enqueue(event{kind: eventDisconnected, code: writeErrorCode(err)})
		return err
	}
	t.enqueue(event{kind: eventMessageWritten, channelID: channelID, data: data})
	return nil
}

func (t *TCPChannel) SetKeepAlive(enabled bool) error {
	t.connMu.Lock()
	conn := t.conn
	t.connMu.Unlock()
	if tc, ok := conn.(*net.TCPConn); ok {
		return tc.SetKeepAlive(enabled)
	}
	return nil
}

func (t *TCPChannel) SetNoDelay(enabled bool) error {
	t.connMu.Lock()
	conn := t.conn
	t.connMu.Unlock()
	if tc, ok := conn.(*net.TCPConn); ok {
		return tc.SetNoDelay(enabled)
	}
	return nil
}

// Close tears down the connection and stops the dispatch loop. No further
// listener callbacks fire once Close returns.
func (t *TCPChannel) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.queueMu.Lock()
		t.closed = true
		t.queueMu.Unlock()
		t.queueCV.Broadcast()

		t.connMu.Lock()
		conn := t.conn
		t.connected = false
		t.connMu.Unlock()
		if conn != nil {
			err = conn.Close()
		}
	})
	return err
}

func (t *TCPChannel) enqueue(ev event) {
	t.queueMu.Lock()
	if t.closed {
		t.queueMu.Unlock()
		return
	}
	t.queue = append(t.queue, ev)
	t.queueMu.Unlock()
	t.queueCV.Signal()
}

// dispatchLoop is the channel's single serializing goroutine: every
// listener callback it invokes happens strictly after the previous one
// returns, and pause/resume gate this loop rather than the socket reader,
// so bytes already read off the wire are buffered, never dropped.
func (t *TCPChannel) dispatchLoop() {
	for {
		t.queueMu.Lock()
		for !t.closed && (len(t.queue) == 0 || t.paused) {
			t.queueCV.Wait()
		}
		if t.closed {
			t.queueMu.Unlock()
			return
		}
		ev := t.queue[0]
		t.queue = t.queue[1:]
		t.queueMu.Unlock()

		t.deliver(ev)

		if ev.kind == eventDisconnected {
			return
		}
	}
}

func (t *TCPChannel) deliver(ev event) {
	l := t.listenerSnapshot()
	if l == nil {
		return
	}
	switch ev.kind {
	case eventConnected:
		l.OnConnected()
	case eventDisconnected:
		l.OnDisconnected(ev.code)
	case eventMessageReceived:
		l.OnMessageReceived(ev.channelID, ev.data)
	case eventMessageWritten:
		t.queueMu.Lock()
		pending := len(t.queue)
		t.queueMu.Unlock()
		l.OnMessageWritten(ev.channelID, ev.data, pending)
	}
}

func dialErrorCode(err error) DisconnectCode {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return DisconnectTimeout
		}
	}
	return DisconnectRefused
}

func readErrorCode(err error) DisconnectCode {
	if errors.Is(err, io.EOF) {
		return DisconnectClosedByPeer
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return DisconnectTimeout
		}
	}
	return DisconnectReset
}

func writeErrorCode(err error) DisconnectCode {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return DisconnectTimeout
		}
	}
	return DisconnectReset
}
