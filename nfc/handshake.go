package nfc

import (
	"crypto/tls"
	"net"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/xtaci/nfccp/crypto"
	"github.com/xtaci/nfccp/protocol"
)

// Connect dials the proxy daemon, negotiates the session and leaves the
// client in StateBinaryReady. A zero timeout leaves the dial unbounded.
// Failures are never retried and release the socket.
func (c *Client) Connect(timeout time.Duration) error {
	if c.state != StateUnconnected {
		return errors.Errorf("nfc: connect in state %s", c.state)
	}
	dialer := net.Dialer{Timeout: timeout}
	raw, err := dialer.Dial("tcp", c.ticket.Addr())
	if err != nil {
		c.state = StateTerminated
		return newError(KindConnection, "dial "+c.ticket.Addr(), err)
	}
	c.raw = raw
	c.state = StateConnected
	c.log.Debug("connected", zap.String("addr", c.ticket.Addr()))

	if err := c.handshake(raw); err != nil {
		c.log.Error("handshake failed", zap.Stringer("state", c.state), zap.Error(err))
		_ = raw.Close()
		c.raw, c.conn = nil, nil
		c.state = StateTerminated
		return err
	}
	c.log.Info("session ready", zap.Bool("tls", c.peerThumbprint != ""))
	return nil
}

func (c *Client) handshake(raw net.Conn) error {
	proxy := newProxyConn(raw)

	greeting, err := proxy.readReply()
	if err != nil {
		return newError(KindHandshake, "greeting", err)
	}
	if greeting.Code != codeGreeting {
		return newError(KindHandshake, "greeting", errors.Errorf("unexpected greeting %q", greeting))
	}
	c.state = StateGreetingRead
	tlsRequired := strings.Contains(greeting.Text, sslRequiredMarker)
	secure := c.ticket.Secure() || tlsRequired
	if secure && !c.caps.TLS {
		return newError(KindHandshake, "greeting", errors.New("secure channel required but TLS is unavailable"))
	}
	c.log.Debug("greeting", zap.String("text", greeting.Text), zap.Bool("tls_required", tlsRequired))

	resp, err := proxy.command("SESSION", c.ticket.SessionID)
	if err != nil {
		return newError(KindHandshake, "session", err)
	}
	if resp.Code != codeOK {
		return newError(KindHandshake, "session", errors.Errorf("session rejected: %s", resp))
	}

	var token *memguard.LockedBuffer
	tokenText := plaintextToken
	if c.ticket.Secure() {
		token = crypto.NewToken(protocol.TokenSize)
		defer token.Destroy()
		tokenText = crypto.TokenHex(token)
	}
	resp, err = proxy.command("THUMBPRINT", tokenText)
	if err != nil {
		return newError(KindHandshake, "thumbprint", err)
	}
	thumbprint := c.ticket.Thumbprint
	if resp.Code == codeOK && resp.Text != "" {
		thumbprint = strings.Fields(resp.Text)[0]
	}

	resp, err = proxy.command("PROXY", c.ticket.ServiceName())
	if err != nil {
		return newError(KindHandshake, "proxy", err)
	}
	if resp.Code != codeOK {
		return newError(KindHandshake, "proxy", errors.Wrap(ErrProxyRejected, resp.String()))
	}
	c.state = StateProxyNegotiated

	var conn net.Conn = &bufferedConn{Conn: raw, r: proxy.r}
	if secure {
		tlsConn, err := c.upgrade(conn, thumbprint)
		if err != nil {
			return err
		}
		conn = tlsConn
		c.state = StateTLSUpgraded
	}

	if token != nil {
		hello := &protocol.ClientRandom{Version: protocol.ProtocolVersion}
		copy(hello.Token[:], token.Bytes())
		if err := protocol.WriteMessage(conn, hello, nil); err != nil {
			return newError(KindHandshake, "client-random", err)
		}
	}
	c.conn = conn
	c.state = StateBinaryReady
	return nil
}

// upgrade runs TLS over the proxied socket and pins the peer certificate.
// Chain validation is replaced by the thumbprint check.
func (c *Client) upgrade(conn net.Conn, thumbprint string) (*tls.Conn, error) {
	tlsConn := tls.Client(conn, &tls.Config{
		ServerName:         c.ticket.Host,
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS12,
	})
	if err := tlsConn.Handshake(); err != nil {
		return nil, newError(KindHandshake, "tls", err)
	}
	if err := crypto.VerifyThumbprint(tlsConn.ConnectionState(), thumbprint); err != nil {
		return nil, newError(KindAuthentication, "tls", err)
	}
	c.peerThumbprint = crypto.NormalizeThumbprint(thumbprint)
	return tlsConn, nil
}
