package nfc

import (
	"bufio"
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xtaci/nfccp/protocol"
)

const (
	testSession        = "52b6-session-ticket"
	plainGreeting      = "220 VMware Authentication Daemon Version 1.10: SSL not Required, MKSDisplayProtocol:VNC"
	sslGreeting        = "220 VMware Authentication Daemon Version 1.10: SSL Required, MKSDisplayProtocol:VNC"
	defaultProxyReply  = "200 Connect to nfc"
	peerFinishDeadline = 5 * time.Second
)

// peerConfig scripts the proxy daemon side of a fake hypervisor.
type peerConfig struct {
	greeting   string
	thumbprint string
	proxyReply string
	cert       *tls.Certificate
	// expectRandom makes the peer read a client-random frame before serve.
	expectRandom bool
	serve        func(rw io.ReadWriter) error
}

type fakePeer struct {
	cfg          peerConfig
	ln           net.Listener
	done         chan error
	commands     []string
	clientRandom *protocol.ClientRandom
}

func startPeer(t *testing.T, cfg peerConfig) *fakePeer {
	t.Helper()
	if cfg.greeting == "" {
		cfg.greeting = plainGreeting
	}
	if cfg.proxyReply == "" {
		cfg.proxyReply = defaultProxyReply
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	p := &fakePeer{cfg: cfg, ln: ln, done: make(chan error, 1)}
	go func() { p.done <- p.run() }()
	t.Cleanup(func() { ln.Close() })
	return p
}

func (p *fakePeer) ticket(service, thumbprint string) Ticket {
	addr := p.ln.Addr().(*net.TCPAddr)
	return Ticket{
		Host:       "127.0.0.1",
		Port:       addr.Port,
		SessionID:  testSession,
		Thumbprint: thumbprint,
		Service:    service,
	}
}

// wait returns the peer's exit error once it finished.
func (p *fakePeer) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-p.done:
		return err
	case <-time.After(peerFinishDeadline):
		t.Fatal("fake peer did not finish")
		return nil
	}
}

func (p *fakePeer) run() error {
	conn, err := p.ln.Accept()
	if err != nil {
		return err
	}
	defer conn.Close()
	r := bufio.NewReader(conn)

	if _, err := fmt.Fprintf(conn, "%s\r\n", p.cfg.greeting); err != nil {
		return err
	}
	if !strings.HasPrefix(p.cfg.greeting, "220") {
		return nil
	}
	for i := 0; i < 3; i++ {
		line, err := r.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		p.commands = append(p.commands, line)
		verb, _, _ := strings.Cut(line, " ")
		var resp string
		switch verb {
		case "SESSION":
			resp = "200 session ok"
		case "THUMBPRINT":
			if p.cfg.thumbprint != "" {
				resp = "200 " + p.cfg.thumbprint
			} else {
				resp = "500 thumbprint unavailable"
			}
		case "PROXY":
			resp = p.cfg.proxyReply
		default:
			resp = "500 unknown command"
		}
		if _, err := fmt.Fprintf(conn, "%s\r\n", resp); err != nil {
			return err
		}
		if verb == "PROXY" && !strings.HasPrefix(resp, "200") {
			return nil
		}
	}

	var rw net.Conn = &bufferedConn{Conn: conn, r: r}
	if p.cfg.cert != nil {
		tlsConn := tls.Server(rw, &tls.Config{Certificates: []tls.Certificate{*p.cfg.cert}})
		if err := tlsConn.Handshake(); err != nil {
			return err
		}
		rw = tlsConn
	}
	if p.cfg.expectRandom {
		msg, err := protocol.ReadMessage(rw)
		if err != nil {
			return err
		}
		hello, ok := msg.(*protocol.ClientRandom)
		if !ok {
			return fmt.Errorf("expected client-random, got %s", msg.Type())
		}
		p.clientRandom = hello
	}
	if p.cfg.serve != nil {
		return p.cfg.serve(rw)
	}
	return nil
}

// datastore is a minimal file service used as the binary-phase handler.
type datastore struct {
	files       map[string][]byte
	props       map[string]protocol.FileProperties
	nameLists   [][]string
	failIndices []uint16
	completed   bool
}

func newDatastore() *datastore {
	return &datastore{files: map[string][]byte{}, props: map[string]protocol.FileProperties{}}
}

func (d *datastore) serve(rw io.ReadWriter) error {
	for {
		msg, err := protocol.ReadMessage(rw)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		tail, err := protocol.ReadTail(rw, msg)
		if err != nil {
			return err
		}
		switch m := msg.(type) {
		case *protocol.SessionComplete:
			d.completed = true
			return nil
		case *protocol.Ping:
			if err := protocol.WriteMessage(rw, &protocol.Ping{}, nil); err != nil {
				return err
			}
		case *protocol.PutFile:
			path, err := protocol.DecodePath(tail)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if _, err := protocol.ReceiveChunks(rw, &buf); err != nil {
				return err
			}
			d.files[path] = buf.Bytes()
			d.props[path] = m.Properties()
			if err := protocol.WriteMessage(rw, &protocol.PutFileDone{}, nil); err != nil {
				return err
			}
		case *protocol.GetFile:
			path, err := protocol.DecodePath(tail)
			if err != nil {
				return err
			}
			data, ok := d.files[path]
			if !ok {
				blob := protocol.EncodeFailureIndices([]uint16{0})
				status := &protocol.FileOpStatus{ErrorSize: uint32(len(blob)), Failed: 1}
				if err := protocol.WriteMessage(rw, status, blob); err != nil {
					return err
				}
				continue
			}
			put, ptail := protocol.NewPutFile(path, protocol.FileProperties{Type: protocol.TypeForPath(path), Size: uint64(len(data))})
			if err := protocol.WriteMessage(rw, put, ptail); err != nil {
				return err
			}
			if _, err := protocol.SendChunks(rw, bytes.NewReader(data)); err != nil {
				return err
			}
			if _, _, err := protocol.Expect(rw, protocol.TypePutFileDone); err != nil {
				return err
			}
		case *protocol.Delete, *protocol.Rename:
			names, err := protocol.DecodeNames(tail)
			if err != nil {
				return err
			}
			d.nameLists = append(d.nameLists, names)
			var blob []byte
			if len(d.failIndices) > 0 {
				blob = protocol.EncodeFailureIndices(d.failIndices)
			}
			status := &protocol.FileOpStatus{
				ErrorSize: uint32(len(blob)),
				Failed:    uint32(len(d.failIndices)),
				Succeeded: uint32(len(names) - len(d.failIndices)),
			}
			if err := protocol.WriteMessage(rw, status, blob); err != nil {
				return err
			}
		default:
			return fmt.Errorf("datastore: unexpected %s", msg.Type())
		}
	}
}

// testCertificate returns a self-signed certificate and its SHA-1
// thumbprint in colon-separated upper-case form.
func testCertificate(t *testing.T) (*tls.Certificate, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	sum := sha1.Sum(der)
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = strings.ToUpper(hex.EncodeToString([]byte{b}))
	}
	return &tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, strings.Join(parts, ":")
}

// connectedClient starts a plaintext peer backed by store and connects.
func connectedClient(t *testing.T, store *datastore) (*Client, *fakePeer) {
	t.Helper()
	peer := startPeer(t, peerConfig{serve: store.serve})
	client, err := New(peer.ticket("nfc", ""), Options{})
	require.NoError(t, err)
	require.NoError(t, client.Connect(time.Second))
	t.Cleanup(func() { client.Close() })
	return client, peer
}
