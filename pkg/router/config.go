package router

// RouterConfig holds the router's address and the credentials used to
// authenticate against it. Immutable once constructed.
type RouterConfig struct {
	address  string
	port     uint16
	username string
	password string
}

// NewRouterConfig constructs a RouterConfig for dialing address:port with
// the given SRP credentials.
func NewRouterConfig(address string, port uint16, username, password string) RouterConfig {
	return RouterConfig{address: address, port: port, username: username, password: password}
}

func (c RouterConfig) Address() string  { return c.address }
func (c RouterConfig) Port() uint16     { return c.port }
func (c RouterConfig) Username() string { return c.username }
