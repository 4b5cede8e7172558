package nfc

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Proxy daemon reply codes.
const (
	codeGreeting = 220
	codeOK       = 200
)

const (
	// sslRequiredMarker in the greeting makes the TLS upgrade mandatory.
	sslRequiredMarker = "SSL Required"
	// plaintextToken replaces the random token on non-secure services.
	plaintextToken = "plaintext"
	maxLineLength  = 4096
)

// reply is one "<code> <text>" line from the proxy daemon.
type reply struct {
	Code int
	Text string
}

func (r reply) String() string {
	return fmt.Sprintf("%d %s", r.Code, r.Text)
}

// proxyConn speaks the CRLF line protocol of the proxy daemon.
type proxyConn struct {
	conn net.Conn
	r    *bufio.Reader
}

func newProxyConn(conn net.Conn) *proxyConn {
	return &proxyConn{conn: conn, r: bufio.NewReaderSize(conn, maxLineLength)}
}

// readReply reads and parses one reply line.
func (p *proxyConn) readReply() (reply, error) {
	line, err := p.r.ReadSlice('\n')
	if err != nil {
		if err == bufio.ErrBufferFull {
			return reply{}, errors.Errorf("proxy line exceeds %d bytes", maxLineLength)
		}
		return reply{}, errors.Wrap(err, "read proxy reply")
	}
	return parseReply(strings.TrimRight(string(line), "\r\n"))
}

func parseReply(line string) (reply, error) {
	if len(line) < 3 {
		return reply{}, errors.Errorf("malformed proxy reply %q", line)
	}
	code, err := strconv.Atoi(line[:3])
	if err != nil || code < 100 {
		return reply{}, errors.Errorf("malformed proxy reply %q", line)
	}
	return reply{Code: code, Text: strings.TrimSpace(line[3:])}, nil
}

// command sends one CRLF-terminated command and reads its reply.
func (p *proxyConn) command(verb, arg string) (reply, error) {
	if _, err := fmt.Fprintf(p.conn, "%s %s\r\n", verb, arg); err != nil {
		return reply{}, errors.Wrapf(err, "send %s", verb)
	}
	return p.readReply()
}

// bufferedConn reads through the line reader so bytes it buffered past the
// last reply are not lost when the binary protocol takes over.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}
