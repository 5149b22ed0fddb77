package wire

import "math/big"

// ClientHello is the first message a client sends: the set of auth methods
// it supports, its own version, and a fresh nonce.
type ClientHello struct {
	SupportedMethods []AuthMethod
	ClientVersion    Version
	NonceC           []byte
}

func (m *ClientHello) Marshal() []byte {
	methods := make([]byte, len(m.SupportedMethods))
	for i, am := range m.SupportedMethods {
		methods[i] = byte(am)
	}
	var dst []byte
	dst = putUint16Bytes(dst, methods)
	dst = putVersion(dst, m.ClientVersion)
	dst = putUint16Bytes(dst, m.NonceC)
	return dst
}

func UnmarshalClientHello(data []byte) (*ClientHello, error) {
	methods, rest, err := getUint16Bytes(data)
	if err != nil {
		return nil, err
	}
	ver, rest, err := getVersion(rest)
	if err != nil {
		return nil, err
	}
	nonce, rest, err := getUint16Bytes(rest)
	if err != nil {
		return nil, err
	}
	if err := requireEmpty(rest); err != nil {
		return nil, err
	}
	ams := make([]AuthMethod, len(methods))
	for i, b := range methods {
		ams[i] = AuthMethod(b)
	}
	return &ClientHello{SupportedMethods: ams, ClientVersion: ver, NonceC: nonce}, nil
}

// ServerHello answers a ClientHello: the chosen method, the router's
// version, and its own nonce.
type ServerHello struct {
	Method        AuthMethod
	ServerVersion Version
	NonceS        []byte
}

func (m *ServerHello) Marshal() []byte {
	dst := []byte{byte(m.Method)}
	dst = putVersion(dst, m.ServerVersion)
	dst = putUint16Bytes(dst, m.NonceS)
	return dst
}

func UnmarshalServerHello(data []byte) (*ServerHello, error) {
	if len(data) < 1 {
		return nil, ErrInvalidMessage
	}
	method := AuthMethod(data[0])
	ver, rest, err := getVersion(data[1:])
	if err != nil {
		return nil, err
	}
	nonce, rest, err := getUint16Bytes(rest)
	if err != nil {
		return nil, err
	}
	if err := requireEmpty(rest); err != nil {
		return nil, err
	}
	return &ServerHello{Method: method, ServerVersion: ver, NonceS: nonce}, nil
}

// Identify carries the client's claimed identity once SRP is selected.
type Identify struct {
	Identify    IdentifyMethod
	Username    string
	DisplayName string
}

func (m *Identify) Marshal() []byte {
	dst := []byte{byte(m.Identify)}
	dst = putString16(dst, m.Username)
	dst = putString16(dst, m.DisplayName)
	return dst
}

func UnmarshalIdentify(data []byte) (*Identify, error) {
	if len(data) < 1 {
		return nil, ErrInvalidMessage
	}
	id := IdentifyMethod(data[0])
	username, rest, err := getString16(data[1:])
	if err != nil {
		return nil, err
	}
	displayName, rest, err := getString16(rest)
	if err != nil {
		return nil, err
	}
	if err := requireEmpty(rest); err != nil {
		return nil, err
	}
	return &Identify{Identify: id, Username: username, DisplayName: displayName}, nil
}

// ServerKeyExchange carries the SRP group parameters, the user's salt, and
// the server's public ephemeral value B.
type ServerKeyExchange struct {
	N    *big.Int
	G    *big.Int
	Salt []byte
	B    *big.Int
}

func (m *ServerKeyExchange) Marshal() []byte {
	var dst []byte
	dst = putUint16Bytes(dst, m.N.Bytes())
	dst = putUint16Bytes(dst, m.G.Bytes())
	dst = putUint16Bytes(dst, m.Salt)
	dst = putUint16Bytes(dst, m.B.Bytes())
	return dst
}

func UnmarshalServerKeyExchange(data []byte) (*ServerKeyExchange, error) {
	nb, rest, err := getUint16Bytes(data)
	if err != nil {
		return nil, err
	}
	gb, rest, err := getUint16Bytes(rest)
	if err != nil {
		return nil, err
	}
	salt, rest, err := getUint16Bytes(rest)
	if err != nil {
		return nil, err
	}
	bb, rest, err := getUint16Bytes(rest)
	if err != nil {
		return nil, err
	}
	if err := requireEmpty(rest); err != nil {
		return nil, err
	}
	return &ServerKeyExchange{
		N:    new(big.Int).SetBytes(nb),
		G:    new(big.Int).SetBytes(gb),
		Salt: salt,
		B:    new(big.Int).SetBytes(bb),
	}, nil
}

// ClientKeyExchange carries the client's public ephemeral value A.
type ClientKeyExchange struct {
	A *big.Int
}

func (m *ClientKeyExchange) Marshal() []byte {
	return putUint16Bytes(nil, m.A.Bytes())
}

func UnmarshalClientKeyExchange(data []byte) (*ClientKeyExchange, error) {
	ab, rest, err := getUint16Bytes(data)
	if err != nil {
		return nil, err
	}
	if err := requireEmpty(rest); err != nil {
		return nil, err
	}
	return &ClientKeyExchange{A: new(big.Int).SetBytes(ab)}, nil
}

// SessionChallenge is sent encrypted under the freshly derived
// router-to-client session key; its ciphertext decodes to a
// SessionChallengePayload once opened.
type SessionChallenge struct {
	Ciphertext []byte
}

func (m *SessionChallenge) Marshal() []byte {
	return putUint16Bytes(nil, m.Ciphertext)
}

func UnmarshalSessionChallenge(data []byte) (*SessionChallenge, error) {
	ct, rest, err := getUint16Bytes(data)
	if err != nil {
		return nil, err
	}
	if err := requireEmpty(rest); err != nil {
		return nil, err
	}
	return &SessionChallenge{Ciphertext: ct}, nil
}

// SessionChallengePayload is the plaintext sealed inside SessionChallenge:
// a fresh challenge nonce the client must prove knowledge of K over, the
// router's peer version, and the session types it will accept.
type SessionChallengePayload struct {
	ServerChallenge     []byte
	PeerVersion         Version
	AllowedSessionTypes []SessionType
}

func (m *SessionChallengePayload) Marshal() []byte {
	var dst []byte
	dst = putUint16Bytes(dst, m.ServerChallenge)
	dst = putVersion(dst, m.PeerVersion)
	types := make([]byte, len(m.AllowedSessionTypes))
	for i, s := range m.AllowedSessionTypes {
		types[i] = byte(s)
	}
	dst = putUint16Bytes(dst, types)
	return dst
}

func UnmarshalSessionChallengePayload(data []byte) (*SessionChallengePayload, error) {
	challenge, rest, err := getUint16Bytes(data)
	if err != nil {
		return nil, err
	}
	ver, rest, err := getVersion(rest)
	if err != nil {
		return nil, err
	}
	types, rest, err := getUint16Bytes(rest)
	if err != nil {
		return nil, err
	}
	if err := requireEmpty(rest); err != nil {
		return nil, err
	}
	sts := make([]SessionType, len(types))
	for i, b := range types {
		sts[i] = SessionType(b)
	}
	return &SessionChallengePayload{ServerChallenge: challenge, PeerVersion: ver, AllowedSessionTypes: sts}, nil
}

// SessionResponse is sent encrypted under the client-to-router session
// key; its ciphertext decodes to a SessionResponsePayload.
type SessionResponse struct {
	Ciphertext []byte
}

func (m *SessionResponse) Marshal() []byte {
	return putUint16Bytes(nil, m.Ciphertext)
}

func UnmarshalSessionResponse(data []byte) (*SessionResponse, error) {
	ct, rest, err := getUint16Bytes(data)
	if err != nil {
		return nil, err
	}
	if err := requireEmpty(rest); err != nil {
		return nil, err
	}
	return &SessionResponse{Ciphertext: ct}, nil
}

// SessionResponsePayload is the plaintext sealed inside SessionResponse:
// the session type and version the client is choosing, plus proof of
// knowledge of K over the server's challenge.
type SessionResponsePayload struct {
	SessionType   SessionType
	ChosenVersion Version
	Response      []byte
}

func (m *SessionResponsePayload) Marshal() []byte {
	dst := []byte{byte(m.SessionType)}
	dst = putVersion(dst, m.ChosenVersion)
	dst = putUint16Bytes(dst, m.Response)
	return dst
}

func UnmarshalSessionResponsePayload(data []byte) (*SessionResponsePayload, error) {
	if len(data) < 1 {
		return nil, ErrInvalidMessage
	}
	st := SessionType(data[0])
	ver, rest, err := getVersion(data[1:])
	if err != nil {
		return nil, err
	}
	resp, rest, err := getUint16Bytes(rest)
	if err != nil {
		return nil, err
	}
	if err := requireEmpty(rest); err != nil {
		return nil, err
	}
	return &SessionResponsePayload{SessionType: st, ChosenVersion: ver, Response: resp}, nil
}

// --- post-handshake session-channel traffic: PeerToRouter / RouterToPeer ---

const (
	tagConnectionRequest byte = 1
	tagCheckHostStatus   byte = 2
	tagConnectionOffer   byte = 1
	tagHostStatus        byte = 2
)

// ConnectionRequest asks the router to connect the client to host_id.
type ConnectionRequest struct {
	HostID HostID
}

// CheckHostStatus asks the router whether host_id is currently online.
type CheckHostStatus struct {
	HostID HostID
}

// PeerToRouter is the tagged union of messages the client sends on the
// session channel after authentication. Exactly one field is non-nil.
type PeerToRouter struct {
	ConnectionRequest *ConnectionRequest
	CheckHostStatus   *CheckHostStatus
}

func (m *PeerToRouter) Marshal() []byte {
	switch {
	case m.ConnectionRequest != nil:
		dst := []byte{tagConnectionRequest}
		return putUint64(dst, uint64(m.ConnectionRequest.HostID))
	case m.CheckHostStatus != nil:
		dst := []byte{tagCheckHostStatus}
		return putUint64(dst, uint64(m.CheckHostStatus.HostID))
	default:
		return nil
	}
}

func UnmarshalPeerToRouter(data []byte) (*PeerToRouter, error) {
	if len(data) < 1 {
		return nil, ErrInvalidMessage
	}
	tag := data[0]
	hostID, rest, err := getUint64(data[1:])
	if err != nil {
		return nil, err
	}
	if err := requireEmpty(rest); err != nil {
		return nil, err
	}
	switch tag {
	case tagConnectionRequest:
		return &PeerToRouter{ConnectionRequest: &ConnectionRequest{HostID: HostID(hostID)}}, nil
	case tagCheckHostStatus:
		return &PeerToRouter{CheckHostStatus: &CheckHostStatus{HostID: HostID(hostID)}}, nil
	default:
		return nil, ErrUnknownTag
	}
}

// ConnectionOffer is the router's reply to a ConnectionRequest: either the
// relay coordinates and keying material to reach the host, or an error
// code explaining why it could not be reached.
type ConnectionOffer struct {
	ErrorCode      RouterErrorCode
	PeerRole       PeerRole
	RelayAddress   string
	RelayPort      uint16
	KeyingMaterial []byte
}

// HostStatus reports whether the previously requested host is reachable.
type HostStatus struct {
	Status HostStatusValue
}

// RouterToPeer is the tagged union of messages the router sends on the
// session channel. Exactly one field is non-nil.
type RouterToPeer struct {
	ConnectionOffer *ConnectionOffer
	HostStatus      *HostStatus
}

func (m *RouterToPeer) Marshal() []byte {
	switch {
	case m.ConnectionOffer != nil:
		o := m.ConnectionOffer
		dst := []byte{tagConnectionOffer, byte(o.ErrorCode), byte(o.PeerRole)}
		dst = putString16(dst, o.RelayAddress)
		dst = putUint16(dst, o.RelayPort)
		dst = putUint16Bytes(dst, o.KeyingMaterial)
		return dst
	case m.HostStatus != nil:
		return []byte{tagHostStatus, byte(m.HostStatus.Status)}
	default:
		return nil
	}
}

func UnmarshalRouterToPeer(data []byte) (*RouterToPeer, error) {
	if len(data) < 1 {
		return nil, ErrInvalidMessage
	}
	tag := data[0]
	switch tag {
	case tagConnectionOffer:
		if len(data) < 3 {
			return nil, ErrInvalidMessage
		}
		errCode := RouterErrorCode(data[1])
		role := PeerRole(data[2])
		addr, rest, err := getString16(data[3:])
		if err != nil {
			return nil, err
		}
		port, rest, err := getUint16(rest)
		if err != nil {
			return nil, err
		}
		keying, rest, err := getUint16Bytes(rest)
		if err != nil {
			return nil, err
		}
		if err := requireEmpty(rest); err != nil {
			return nil, err
		}
		return &RouterToPeer{ConnectionOffer: &ConnectionOffer{
			ErrorCode:      errCode,
			PeerRole:       role,
			RelayAddress:   addr,
			RelayPort:      port,
			KeyingMaterial: keying,
		}}, nil
	case tagHostStatus:
		if len(data) < 2 {
			return nil, ErrInvalidMessage
		}
		if err := requireEmpty(data[2:]); err != nil {
			return nil, err
		}
		return &RouterToPeer{HostStatus: &HostStatus{Status: HostStatusValue(data[1])}}, nil
	default:
		return nil, ErrUnknownTag
	}
}
