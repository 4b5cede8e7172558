// Package nfc implements a Network File Copy client that reaches the
// hypervisor file service through the authentication proxy daemon.
//
// A Client is single-threaded: every call blocks until its exchange is
// complete and callers must serialize access themselves.
package nfc

import (
	"net"

	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
	"go.uber.org/zap"

	"github.com/xtaci/nfccp/crypto"
	"github.com/xtaci/nfccp/protocol"
)

// State is the position of a client in the connection lifecycle.
type State int

const (
	StateUnconnected State = iota
	StateConnected
	StateGreetingRead
	StateProxyNegotiated
	StateTLSUpgraded
	StateBinaryReady
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnected:
		return "connected"
	case StateGreetingRead:
		return "greeting-read"
	case StateProxyNegotiated:
		return "proxy-negotiated"
	case StateTLSUpgraded:
		return "tls-upgraded"
	case StateBinaryReady:
		return "binary-ready"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Options tune a Client. The zero value is usable.
type Options struct {
	Logger   *zap.Logger
	Registry metrics.Registry
}

// Client moves files over one NFC session.
type Client struct {
	ticket Ticket
	log    *zap.Logger
	caps   crypto.Capabilities
	stats  *Stats

	state State
	raw   net.Conn
	conn  net.Conn

	peerThumbprint string
	failed         []string
}

// New returns an unconnected client for ticket.
func New(ticket Ticket, opts Options) (*Client, error) {
	if err := ticket.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		ticket: ticket,
		log:    log.With(zap.String("host", ticket.Host), zap.String("service", ticket.ServiceName())),
		caps:   crypto.Probe(),
		stats:  newStats(opts.Registry),
	}, nil
}

// State returns the current lifecycle state.
func (c *Client) State() State { return c.state }

// Ticket returns the ticket the client was built from.
func (c *Client) Ticket() Ticket { return c.ticket }

// Stats returns the transfer counters of this client.
func (c *Client) Stats() *Stats { return c.stats }

// PeerThumbprint returns the thumbprint the TLS peer was verified against,
// or "" on a plaintext session.
func (c *Client) PeerThumbprint() string { return c.peerThumbprint }

// FailedPaths returns the paths that failed in the last batch call.
func (c *Client) FailedPaths() []string {
	return append([]string(nil), c.failed...)
}

func (c *Client) resetFailures() {
	c.failed = c.failed[:0]
}

// batchFailed records targets as failed and builds the returned error.
func (c *Client) batchFailed(op string, cause error, targets ...string) error {
	c.failed = append(c.failed, targets...)
	c.stats.Failures.Inc(int64(len(targets)))
	c.log.Warn("batch failed", zap.String("op", op), zap.Strings("paths", targets), zap.Error(cause))
	return &BatchError{Op: op, Failed: c.FailedPaths(), Err: cause}
}

// Ping sends a ping and waits for the echo.
func (c *Client) Ping() error {
	if err := c.send(&protocol.Ping{}, nil); err != nil {
		return err
	}
	if _, _, err := c.expect(protocol.TypePing); err != nil {
		return classify("ping", err)
	}
	return nil
}

// Disconnect sends session-complete and closes the socket. Errors are
// discarded so they cannot mask the failure that triggered cleanup.
func (c *Client) Disconnect() {
	if c.state == StateBinaryReady && c.conn != nil {
		_ = protocol.WriteMessage(c.conn, &protocol.SessionComplete{}, nil)
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	if c.raw != nil {
		_ = c.raw.Close()
	}
	if c.state != StateUnconnected && c.state != StateTerminated {
		c.log.Debug("session closed", zap.Stringer("state", c.state))
	}
	c.conn, c.raw = nil, nil
	c.state = StateTerminated
}

// Close is Disconnect for use with defer and io.Closer. It always returns nil.
func (c *Client) Close() error {
	c.Disconnect()
	return nil
}

func (c *Client) ready() error {
	if c.state != StateBinaryReady || c.conn == nil {
		return errors.Wrapf(ErrNotConnected, "state %s", c.state)
	}
	return nil
}

func (c *Client) send(msg protocol.Message, tail []byte) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := protocol.WriteMessage(c.conn, msg, tail); err != nil {
		c.state = StateTerminated
		return errors.Wrapf(err, "send %s", msg.Type())
	}
	return nil
}

// read returns the next message and its tail. Read errors and a
// session-complete from the peer move the client to StateTerminated.
func (c *Client) read() (protocol.Message, []byte, error) {
	if err := c.ready(); err != nil {
		return nil, nil, err
	}
	msg, err := protocol.ReadMessage(c.conn)
	if err != nil {
		c.state = StateTerminated
		return nil, nil, err
	}
	if msg.Type() == protocol.TypeSessionComplete {
		c.log.Info("peer completed the session")
		c.state = StateTerminated
	}
	tail, err := protocol.ReadTail(c.conn, msg)
	if err != nil {
		c.state = StateTerminated
		return msg, nil, err
	}
	return msg, tail, nil
}

// expect is read that fails unless the message has type want.
func (c *Client) expect(want protocol.MsgType) (protocol.Message, []byte, error) {
	msg, tail, err := c.read()
	if err != nil {
		return msg, nil, err
	}
	if msg.Type() != want {
		c.state = StateTerminated
		return msg, nil, &protocol.UnexpectedError{Want: want, Got: msg.Type()}
	}
	return msg, tail, nil
}
