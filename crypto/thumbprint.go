package crypto

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"crypto/tls"
	"encoding/hex"
	"hash"
	"strings"

	"github.com/pkg/errors"
)

// Hex lengths of the supported thumbprint digests.
const (
	SHA1HexLen   = 2 * sha1.Size
	SHA256HexLen = 2 * sha256.Size
	SHA512HexLen = 2 * sha512.Size
)

// ErrUnsupportedThumbprint is returned for thumbprints of no known digest length.
var ErrUnsupportedThumbprint = errors.New("unsupported thumbprint length")

// ErrNoPeerCertificate is returned when the TLS peer presented no certificate.
var ErrNoPeerCertificate = errors.New("peer presented no certificate")

// MismatchError reports a peer certificate that does not hash to the pinned
// thumbprint.
type MismatchError struct {
	Expected string
	Actual   string
}

func (e *MismatchError) Error() string {
	return "certificate thumbprint mismatch: expected " + e.Expected + ", got " + e.Actual
}

// NormalizeThumbprint lowercases t and strips ':' separators and spaces.
func NormalizeThumbprint(t string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == ':' || r == ' ' || r == '-':
			return -1
		case r >= 'A' && r <= 'F':
			return r + ('a' - 'A')
		default:
			return r
		}
	}, strings.TrimSpace(t))
}

// HashFor selects the digest implied by the thumbprint length.
func HashFor(thumbprint string) (func() hash.Hash, error) {
	normalized := NormalizeThumbprint(thumbprint)
	if _, err := hex.DecodeString(normalized); err != nil {
		return nil, errors.Wrapf(ErrUnsupportedThumbprint, "thumbprint %q is not hex", thumbprint)
	}
	switch len(normalized) {
	case SHA1HexLen:
		return sha1.New, nil
	case SHA256HexLen:
		return sha256.New, nil
	case SHA512HexLen:
		return sha512.New, nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedThumbprint, "%d hex characters", len(normalized))
	}
}

// Fingerprint hashes a DER certificate with the digest implied by thumbprint
// and returns lowercase hex.
func Fingerprint(der []byte, thumbprint string) (string, error) {
	newHash, err := HashFor(thumbprint)
	if err != nil {
		return "", err
	}
	h := newHash()
	h.Write(der)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyThumbprint checks the leaf certificate of an established TLS
// connection against the pinned thumbprint.
func VerifyThumbprint(state tls.ConnectionState, thumbprint string) error {
	if len(state.PeerCertificates) == 0 {
		return ErrNoPeerCertificate
	}
	actual, err := Fingerprint(state.PeerCertificates[0].Raw, thumbprint)
	if err != nil {
		return err
	}
	expected := NormalizeThumbprint(thumbprint)
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) != 1 {
		return &MismatchError{Expected: expected, Actual: actual}
	}
	return nil
}

// IsMismatch reports whether err is a thumbprint mismatch.
func IsMismatch(err error) bool {
	var mismatch *MismatchError
	return errors.As(err, &mismatch)
}
