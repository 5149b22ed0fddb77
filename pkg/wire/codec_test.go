package wire

import (
	"bytes"
	"math/big"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	payload := []byte("hello router")
	frame := EncodeFrame(MsgIdentify, payload)

	gotType, gotPayload, consumed, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if gotType != MsgIdentify {
		t.Fatalf("type = %v, want %v", gotType, MsgIdentify)
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Fatalf("payload = %q, want %q", gotPayload, payload)
	}
	if consumed != len(frame) {
		t.Fatalf("consumed = %d, want %d", consumed, len(frame))
	}
}

func TestFrameTruncated(t *testing.T) {
	frame := EncodeFrame(MsgIdentify, []byte("hello"))
	for n := 0; n < len(frame); n++ {
		if _, _, _, err := DecodeFrame(frame[:n]); err != ErrTruncated {
			t.Fatalf("DecodeFrame(%d bytes) error = %v, want ErrTruncated", n, err)
		}
	}
}

func TestFrameTwoInBuffer(t *testing.T) {
	a := EncodeFrame(MsgClientHello, []byte("first"))
	b := EncodeFrame(MsgServerHello, []byte("second"))
	buf := append(append([]byte{}, a...), b...)

	t1, p1, n1, err := DecodeFrame(buf)
	if err != nil {
		t.Fatalf("DecodeFrame first: %v", err)
	}
	if t1 != MsgClientHello || string(p1) != "first" {
		t.Fatalf("first frame = %v %q", t1, p1)
	}

	t2, p2, n2, err := DecodeFrame(buf[n1:])
	if err != nil {
		t.Fatalf("DecodeFrame second: %v", err)
	}
	if t2 != MsgServerHello || string(p2) != "second" {
		t.Fatalf("second frame = %v %q", t2, p2)
	}
	if n1+n2 != len(buf) {
		t.Fatalf("consumed %d+%d, want %d", n1, n2, len(buf))
	}
}

func TestClientHelloRoundTrip(t *testing.T) {
	want := &ClientHello{
		SupportedMethods: []AuthMethod{MethodSRP},
		ClientVersion:    Version{2, 7, 0},
		NonceC:           []byte{1, 2, 3, 4},
	}
	data, err := Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	msgType, payload, _, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	got, err := Decode(msgType, payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	ch, ok := got.(*ClientHello)
	if !ok {
		t.Fatalf("Decode returned %T, want *ClientHello", got)
	}
	if ch.ClientVersion != want.ClientVersion || !bytes.Equal(ch.NonceC, want.NonceC) {
		t.Fatalf("round trip mismatch: got %+v want %+v", ch, want)
	}
	if len(ch.SupportedMethods) != 1 || ch.SupportedMethods[0] != MethodSRP {
		t.Fatalf("SupportedMethods = %v, want [MethodSRP]", ch.SupportedMethods)
	}
}

func TestServerKeyExchangeRoundTrip(t *testing.T) {
	want := &ServerKeyExchange{
		N:    big.NewInt(0).SetBytes([]byte{0xAC, 0x6B, 0xDB}),
		G:    big.NewInt(2),
		Salt: []byte("saltsaltsalt"),
		B:    big.NewInt(987654321),
	}
	data, err := Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	msgType, payload, _, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	got, err := Decode(msgType, payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	ske, ok := got.(*ServerKeyExchange)
	if !ok {
		t.Fatalf("Decode returned %T, want *ServerKeyExchange", got)
	}
	if ske.N.Cmp(want.N) != 0 || ske.G.Cmp(want.G) != 0 || ske.B.Cmp(want.B) != 0 {
		t.Fatalf("round trip mismatch: got %+v want %+v", ske, want)
	}
	if !bytes.Equal(ske.Salt, want.Salt) {
		t.Fatalf("Salt mismatch: got %x want %x", ske.Salt, want.Salt)
	}
}

func TestPeerToRouterRoundTrip(t *testing.T) {
	cases := []*PeerToRouter{
		{ConnectionRequest: &ConnectionRequest{HostID: 42}},
		{CheckHostStatus: &CheckHostStatus{HostID: 7}},
	}
	for _, want := range cases {
		data, err := Encode(want)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		msgType, payload, _, err := DecodeFrame(data)
		if err != nil {
			t.Fatalf("DecodeFrame: %v", err)
		}
		got, err := Decode(msgType, payload)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		ptr, ok := got.(*PeerToRouter)
		if !ok {
			t.Fatalf("Decode returned %T, want *PeerToRouter", got)
		}
		switch {
		case want.ConnectionRequest != nil:
			if ptr.ConnectionRequest == nil || ptr.ConnectionRequest.HostID != want.ConnectionRequest.HostID {
				t.Fatalf("ConnectionRequest mismatch: got %+v want %+v", ptr.ConnectionRequest, want.ConnectionRequest)
			}
		case want.CheckHostStatus != nil:
			if ptr.CheckHostStatus == nil || ptr.CheckHostStatus.HostID != want.CheckHostStatus.HostID {
				t.Fatalf("CheckHostStatus mismatch: got %+v want %+v", ptr.CheckHostStatus, want.CheckHostStatus)
			}
		}
	}
}

func TestRouterToPeerConnectionOfferRoundTrip(t *testing.T) {
	want := &RouterToPeer{ConnectionOffer: &ConnectionOffer{
		ErrorCode:      RouterSuccess,
		PeerRole:       PeerRoleClient,
		RelayAddress:   "relay.example.net",
		RelayPort:      8443,
		KeyingMaterial: []byte{9, 9, 9, 9},
	}}
	data, err := Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	msgType, payload, _, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	got, err := Decode(msgType, payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	rtp, ok := got.(*RouterToPeer)
	if !ok || rtp.ConnectionOffer == nil {
		t.Fatalf("Decode returned %T, want *RouterToPeer with ConnectionOffer", got)
	}
	o := rtp.ConnectionOffer
	if o.ErrorCode != want.ConnectionOffer.ErrorCode || o.PeerRole != want.ConnectionOffer.PeerRole ||
		o.RelayAddress != want.ConnectionOffer.RelayAddress || o.RelayPort != want.ConnectionOffer.RelayPort ||
		!bytes.Equal(o.KeyingMaterial, want.ConnectionOffer.KeyingMaterial) {
		t.Fatalf("round trip mismatch: got %+v want %+v", o, want.ConnectionOffer)
	}
}

func TestRouterToPeerHostStatusRoundTrip(t *testing.T) {
	want := &RouterToPeer{HostStatus: &HostStatus{Status: HostOffline}}
	data, err := Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	msgType, payload, _, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	got, err := Decode(msgType, payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	rtp, ok := got.(*RouterToPeer)
	if !ok || rtp.HostStatus == nil {
		t.Fatalf("Decode returned %T, want *RouterToPeer with HostStatus", got)
	}
	if rtp.HostStatus.Status != HostOffline {
		t.Fatalf("Status = %v, want HostOffline", rtp.HostStatus.Status)
	}
}

func TestSessionChallengePayloadRoundTrip(t *testing.T) {
	want := &SessionChallengePayload{
		ServerChallenge:     []byte("challenge-nonce"),
		PeerVersion:         Version{2, 7, 0},
		AllowedSessionTypes: []SessionType{SessionTypeClient, SessionTypeHost},
	}
	data := want.Marshal()
	got, err := UnmarshalSessionChallengePayload(data)
	if err != nil {
		t.Fatalf("UnmarshalSessionChallengePayload: %v", err)
	}
	if !bytes.Equal(got.ServerChallenge, want.ServerChallenge) || got.PeerVersion != want.PeerVersion {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
	if len(got.AllowedSessionTypes) != 2 || got.AllowedSessionTypes[0] != SessionTypeClient {
		t.Fatalf("AllowedSessionTypes = %v", got.AllowedSessionTypes)
	}
}

func TestSessionResponsePayloadRoundTrip(t *testing.T) {
	want := &SessionResponsePayload{
		SessionType:   SessionTypeClient,
		ChosenVersion: Version{2, 7, 0},
		Response:      []byte("proof-of-k"),
	}
	data := want.Marshal()
	got, err := UnmarshalSessionResponsePayload(data)
	if err != nil {
		t.Fatalf("UnmarshalSessionResponsePayload: %v", err)
	}
	if got.SessionType != want.SessionType || got.ChosenVersion != want.ChosenVersion || !bytes.Equal(got.Response, want.Response) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestDecodeInvalidMessage(t *testing.T) {
	// A ClientHello payload truncated mid-field must be ErrInvalidMessage,
	// not a panic, and distinguishable from ErrTruncated at the frame level.
	if _, err := UnmarshalClientHello([]byte{0, 5, 1, 2}); err != ErrInvalidMessage {
		t.Fatalf("error = %v, want ErrInvalidMessage", err)
	}
}

func TestDecodeUnknownUnionTag(t *testing.T) {
	if _, err := UnmarshalPeerToRouter([]byte{0xFF, 0, 0, 0, 0, 0, 0, 0, 0}); err != ErrUnknownTag {
		t.Fatalf("error = %v, want ErrUnknownTag", err)
	}
}

func TestVersionCompare(t *testing.T) {
	v259 := Version{2, 5, 9}
	v260 := Version{2, 6, 0}
	if v259.AtLeast(Version226) {
		t.Fatal("2.5.9 should not be >= 2.6.0")
	}
	if !v260.AtLeast(Version226) {
		t.Fatal("2.6.0 should be >= 2.6.0")
	}
	if v259.Compare(v260) >= 0 {
		t.Fatal("2.5.9 should compare less than 2.6.0")
	}
}
