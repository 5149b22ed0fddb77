package router

import (
	"github.com/gosuda/router-controller/pkg/channel"
	"github.com/gosuda/router-controller/pkg/wire"
)

// Delegate receives the controller's session lifecycle events. ConnectTo
// rejects a nil Delegate with ErrNilDelegate; every callback site still
// checks for nil and logs instead of calling.
type Delegate interface {
	// OnRouterConnected fires once authentication succeeds, carrying the
	// router's validated version.
	OnRouterConnected(routerVersion wire.Version)

	// OnHostAwaiting fires each time the controller enters WaitingForHost.
	OnHostAwaiting()

	// OnHostConnected fires once a relay data channel to the host is
	// ready. At most one of OnHostConnected/OnErrorOccurred fires per
	// session.
	OnHostConnected(dataChannel channel.Channel)

	// OnErrorOccurred is terminal for the session.
	OnErrorOccurred(err *ControllerError)
}
