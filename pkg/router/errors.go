package router

import (
	"fmt"

	"github.com/gosuda/router-controller/pkg/auth"
	"github.com/gosuda/router-controller/pkg/channel"
)

// ControllerErrorKind is the top-level tag of a ControllerError.
type ControllerErrorKind int

const (
	KindNetwork ControllerErrorKind = iota
	KindAuthentication
	KindRouter
)

func (k ControllerErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuthentication:
		return "authentication"
	case KindRouter:
		return "router"
	default:
		return "unknown"
	}
}

// RouterErrorKind enumerates the router-originated failure codes carried
// by a ControllerError{Kind: KindRouter}.
type RouterErrorKind int

const (
	RouterErrPeerNotFound RouterErrorKind = iota
	RouterErrAccessDenied
	RouterErrKeyPoolEmpty
	RouterErrRelayError
	RouterErrUnknown
)

func (k RouterErrorKind) String() string {
	switch k {
	case RouterErrPeerNotFound:
		return "peer not found"
	case RouterErrAccessDenied:
		return "access denied"
	case RouterErrKeyPoolEmpty:
		return "key pool empty"
	case RouterErrRelayError:
		return "relay error"
	default:
		return "unknown"
	}
}

// ControllerError is the single error type delivered to Delegate.OnErrorOccurred.
// Exactly one of NetworkCode, AuthCode, RouterCode is meaningful, selected
// by Kind.
type ControllerError struct {
	Kind ControllerErrorKind

	NetworkCode channel.DisconnectCode
	AuthCode    *auth.Error
	RouterCode  RouterErrorKind
}

func (e *ControllerError) Error() string {
	switch e.Kind {
	case KindNetwork:
		return fmt.Sprintf("router: network error: %s", e.NetworkCode)
	case KindAuthentication:
		return fmt.Sprintf("router: authentication error: %v", e.AuthCode)
	case KindRouter:
		return fmt.Sprintf("router: router error: %s", e.RouterCode)
	default:
		return "router: unknown error"
	}
}

func networkError(code channel.DisconnectCode) *ControllerError {
	return &ControllerError{Kind: KindNetwork, NetworkCode: code}
}

func authenticationError(err error) *ControllerError {
	ce := &ControllerError{Kind: KindAuthentication}
	if ae, ok := err.(*auth.Error); ok {
		ce.AuthCode = ae
	}
	return ce
}

func routerError(kind RouterErrorKind) *ControllerError {
	return &ControllerError{Kind: KindRouter, RouterCode: kind}
}
