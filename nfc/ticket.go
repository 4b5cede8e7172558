package nfc

import (
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// DefaultPort is the proxy daemon port on the hypervisor.
	DefaultPort = 902
	// DefaultService is the plaintext NFC service name.
	DefaultService = "nfc"
)

// Ticket is the connection ticket issued by the management API.
type Ticket struct {
	Host       string
	Port       int
	SessionID  string
	Thumbprint string
	Service    string
}

// Addr returns host:port for dialing.
func (t Ticket) Addr() string {
	port := t.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(port))
}

// ServiceName returns the configured service or DefaultService.
func (t Ticket) ServiceName() string {
	if t.Service == "" {
		return DefaultService
	}
	return t.Service
}

// Secure reports whether the service name asks for a TLS channel.
func (t Ticket) Secure() bool {
	return strings.HasSuffix(strings.ToLower(t.ServiceName()), "ssl")
}

// Validate checks the fields the handshake cannot run without.
func (t Ticket) Validate() error {
	if strings.TrimSpace(t.Host) == "" {
		return errors.New("ticket: missing host")
	}
	if t.Port < 0 || t.Port > 65535 {
		return errors.Errorf("ticket: invalid port %d", t.Port)
	}
	if strings.TrimSpace(t.SessionID) == "" {
		return errors.New("ticket: missing session id")
	}
	if strings.ContainsAny(t.SessionID+t.ServiceName(), "\r\n ") {
		return errors.New("ticket: session id and service must be single tokens")
	}
	return nil
}
