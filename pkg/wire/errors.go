package wire

import "errors"

// ErrTruncated is returned by DecodeFrame when the buffer does not yet
// contain a complete frame; the caller should buffer more bytes and retry,
// not treat it as a protocol violation.
var ErrTruncated = errors.New("wire: frame truncated")

// ErrInvalidMessage is returned when a buffer contains a complete frame or
// field whose contents cannot be parsed as the expected message — as
// opposed to ErrTruncated, this is fatal to the connection.
var ErrInvalidMessage = errors.New("wire: invalid message")

// ErrFrameTooLarge is returned by DecodeFrame when a declared frame length
// exceeds MaxFrameSize, guarding against a peer trying to force an
// unbounded allocation.
var ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")

// ErrUnknownTag is returned when a tagged union (PeerToRouter,
// RouterToPeer) carries a sub-tag this codec does not recognize.
var ErrUnknownTag = errors.New("wire: unknown union tag")
