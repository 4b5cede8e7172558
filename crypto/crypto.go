package crypto

import (
	stdcrypto "crypto"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"os"
	"sync"

	"github.com/awnumar/memguard"
	"golang.org/x/term"
)

// Capabilities lists what the running binary can offer the handshake.
type Capabilities struct {
	TLS    bool
	Hashes []stdcrypto.Hash
}

var probeOnce = sync.OnceValue(probeCapabilities)

// Probe returns the capabilities of this process, computed on first use.
func Probe() Capabilities {
	return probeOnce()
}

func probeCapabilities() Capabilities {
	var caps Capabilities
	for _, h := range []stdcrypto.Hash{stdcrypto.SHA1, stdcrypto.SHA256, stdcrypto.SHA512} {
		if h.Available() {
			caps.Hashes = append(caps.Hashes, h)
		}
	}
	caps.TLS = len(tls.CipherSuites()) > 0 && len(caps.Hashes) == 3
	return caps
}

// NewToken returns size random bytes held in locked memory. The caller
// destroys the buffer once the handshake no longer needs it.
func NewToken(size int) *memguard.LockedBuffer {
	return memguard.NewBufferRandom(size)
}

// TokenHex renders a token the way it is sent in the THUMBPRINT command.
func TokenHex(token *memguard.LockedBuffer) string {
	return hex.EncodeToString(token.Bytes())
}

// PromptSecret reads a secret from the terminal without echo.
func PromptSecret(prompt string) (*memguard.LockedBuffer, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	return memguard.NewBufferFromBytes(secret), nil
}

// IsTerminal reports whether stdin is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
