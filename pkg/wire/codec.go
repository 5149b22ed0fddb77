package wire

import "encoding/binary"

// FrameHeaderSize is the length of a frame's length prefix plus type tag,
// mirroring the teacher's length-prefix-then-header layout in
// serdes.Packet.Serialize.
const FrameHeaderSize = 4 + 1

// MaxFrameSize bounds a single frame's payload so a malicious or confused
// peer cannot force an unbounded read buffer.
const MaxFrameSize = 1 << 20

// EncodeFrame prepends a 4-byte big-endian length (covering the type byte
// and payload) and a 1-byte message type to payload.
func EncodeFrame(t MessageType, payload []byte) []byte {
	out := make([]byte, FrameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(out[0:4], uint32(1+len(payload)))
	out[4] = byte(t)
	copy(out[5:], payload)
	return out
}

// DecodeFrame extracts one frame from the front of data. On success it
// returns the message type, its payload, and the number of bytes consumed
// from data. If data does not yet hold a complete frame it returns
// ErrTruncated and the caller should retry once more bytes arrive.
func DecodeFrame(data []byte) (t MessageType, payload []byte, consumed int, err error) {
	if len(data) < 4 {
		return 0, nil, 0, ErrTruncated
	}
	bodyLen := binary.BigEndian.Uint32(data[0:4])
	if bodyLen == 0 {
		return 0, nil, 0, ErrInvalidMessage
	}
	if bodyLen > MaxFrameSize {
		return 0, nil, 0, ErrFrameTooLarge
	}
	total := 4 + int(bodyLen)
	if len(data) < total {
		return 0, nil, 0, ErrTruncated
	}
	t = MessageType(data[4])
	payload = make([]byte, bodyLen-1)
	copy(payload, data[5:total])
	return t, payload, total, nil
}

// --- low-level field helpers, mirroring serdes.Header's manual
// binary.BigEndian field-by-field encoding. ---

func putUint16Bytes(dst []byte, b []byte) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(b)))
	return append(dst, b...)
}

func getUint16Bytes(data []byte) (b []byte, rest []byte, err error) {
	if len(data) < 2 {
		return nil, nil, ErrInvalidMessage
	}
	n := binary.BigEndian.Uint16(data[0:2])
	data = data[2:]
	if len(data) < int(n) {
		return nil, nil, ErrInvalidMessage
	}
	out := make([]byte, n)
	copy(out, data[:n])
	return out, data[n:], nil
}

func putString16(dst []byte, s string) []byte {
	return putUint16Bytes(dst, []byte(s))
}

func getString16(data []byte) (s string, rest []byte, err error) {
	b, rest, err := getUint16Bytes(data)
	if err != nil {
		return "", nil, err
	}
	return string(b), rest, nil
}

func putVersion(dst []byte, v Version) []byte {
	return append(dst, v.Major, v.Minor, v.Patch)
}

func getVersion(data []byte) (v Version, rest []byte, err error) {
	if len(data) < 3 {
		return Version{}, nil, ErrInvalidMessage
	}
	return Version{Major: data[0], Minor: data[1], Patch: data[2]}, data[3:], nil
}

func putUint64(dst []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(dst, v)
}

func getUint64(data []byte) (v uint64, rest []byte, err error) {
	if len(data) < 8 {
		return 0, nil, ErrInvalidMessage
	}
	return binary.BigEndian.Uint64(data[0:8]), data[8:], nil
}

func putUint16(dst []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(dst, v)
}

func getUint16(data []byte) (v uint16, rest []byte, err error) {
	if len(data) < 2 {
		return 0, nil, ErrInvalidMessage
	}
	return binary.BigEndian.Uint16(data[0:2]), data[2:], nil
}

func requireEmpty(data []byte) error {
	if len(data) != 0 {
		return ErrInvalidMessage
	}
	return nil
}

// Encode marshals a concrete message value into a ready-to-send frame.
// msg must be one of the message struct types defined in messages.go.
func Encode(msg any) ([]byte, error) {
	switch m := msg.(type) {
	case *ClientHello:
		return EncodeFrame(MsgClientHello, m.Marshal()), nil
	case *ServerHello:
		return EncodeFrame(MsgServerHello, m.Marshal()), nil
	case *Identify:
		return EncodeFrame(MsgIdentify, m.Marshal()), nil
	case *ServerKeyExchange:
		return EncodeFrame(MsgServerKeyExchange, m.Marshal()), nil
	case *ClientKeyExchange:
		return EncodeFrame(MsgClientKeyExchange, m.Marshal()), nil
	case *SessionChallenge:
		return EncodeFrame(MsgSessionChallenge, m.Marshal()), nil
	case *SessionResponse:
		return EncodeFrame(MsgSessionResponse, m.Marshal()), nil
	case *PeerToRouter:
		return EncodeFrame(MsgPeerToRouter, m.Marshal()), nil
	case *RouterToPeer:
		return EncodeFrame(MsgRouterToPeer, m.Marshal()), nil
	default:
		return nil, ErrInvalidMessage
	}
}

// Decode parses payload (as extracted by DecodeFrame) according to t and
// returns the concrete message struct as any.
func Decode(t MessageType, payload []byte) (any, error) {
	switch t {
	case MsgClientHello:
		return UnmarshalClientHello(payload)
	case MsgServerHello:
		return UnmarshalServerHello(payload)
	case MsgIdentify:
		return UnmarshalIdentify(payload)
	case MsgServerKeyExchange:
		return UnmarshalServerKeyExchange(payload)
	case MsgClientKeyExchange:
		return UnmarshalClientKeyExchange(payload)
	case MsgSessionChallenge:
		return UnmarshalSessionChallenge(payload)
	case MsgSessionResponse:
		return UnmarshalSessionResponse(payload)
	case MsgPeerToRouter:
		return UnmarshalPeerToRouter(payload)
	case MsgRouterToPeer:
		return UnmarshalRouterToPeer(payload)
	default:
		return nil, ErrInvalidMessage
	}
}
