package nfc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/xtaci/nfccp/crypto"
	"github.com/xtaci/nfccp/protocol"
)

func TestPropertiesVariants(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vm.vmx")
	require.NoError(t, os.WriteFile(path, []byte("config"), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := DefaultProperties().forLocal(f)
	require.NoError(t, err)
	require.Equal(t, protocol.FileProperties{Type: protocol.FileText, Flags: protocol.DefaultFlags, Size: 6, SpaceRequired: 6}, got)

	got, err = FlagsOnly(protocol.FlagTextConvert).forLocal(f)
	require.NoError(t, err)
	require.Equal(t, protocol.FlagTextConvert, got.Flags)
	require.EqualValues(t, 6, got.Size)

	full := protocol.FileProperties{Type: protocol.FileDisk, Size: 1}
	got, err = FullProperties(full).forLocal(f)
	require.NoError(t, err)
	require.Equal(t, full, got)

	require.Equal(t, protocol.FileDisk, DefaultProperties().forRemote("[ds] a.vmdk").Type)
	require.Equal(t, protocol.FlagOverwrite, DefaultProperties().forRemote("a").Flags)
	require.Equal(t, protocol.FlagThinProvision, FlagsOnly(protocol.FlagThinProvision).forRemote("a").Flags)
	require.Equal(t, full, FullProperties(full).forRemote("a"))

	require.Equal(t, "default", DefaultProperties().String())
	require.Equal(t, "flags", FlagsOnly(0).String())
	require.Equal(t, "full", FullProperties(full).String())
}

func TestTicket(t *testing.T) {
	tk := Ticket{Host: "esx01", SessionID: "s"}
	require.NoError(t, tk.Validate())
	require.Equal(t, "esx01:902", tk.Addr())
	require.Equal(t, DefaultService, tk.ServiceName())
	require.False(t, tk.Secure())

	tk.Service = "nfcssl"
	tk.Port = 9443
	require.True(t, tk.Secure())
	require.Equal(t, "esx01:9443", tk.Addr())

	require.Error(t, Ticket{SessionID: "s"}.Validate())
	require.Error(t, Ticket{Host: "h"}.Validate())
	require.Error(t, Ticket{Host: "h", SessionID: "a b"}.Validate())
	require.Error(t, Ticket{Host: "h", SessionID: "s", Port: 70000}.Validate())

	_, err := New(Ticket{}, Options{})
	require.Error(t, err)
}

func TestErrorClassification(t *testing.T) {
	require.Equal(t, KindUnknown, KindOf(nil))
	require.Equal(t, KindUnknown, KindOf(errors.New("plain")))

	authErr := newError(KindAuthentication, "tls", &crypto.MismatchError{Expected: "aa", Actual: "bb"})
	require.True(t, IsAuthError(authErr))
	require.Contains(t, authErr.Error(), "authentication")

	dropped := classify("get", &protocol.UnexpectedError{Want: protocol.TypePutFile, Got: protocol.TypeSessionComplete})
	require.ErrorIs(t, dropped, ErrDroppedConnection)

	violation := classify("get", &protocol.UnexpectedError{Want: protocol.TypePutFile, Got: protocol.TypePing})
	require.True(t, IsProtocolError(violation))

	mismatch := classify("tls", errors.Wrap(&crypto.MismatchError{Expected: "aa", Actual: "bb"}, "verify"))
	require.True(t, IsAuthError(mismatch))

	batch := &BatchError{Op: "delete", Failed: []string{"a"}, Err: violation}
	require.Equal(t, KindProtocol, KindOf(batch))
	require.Equal(t, KindPartial, KindOf(&BatchError{Op: "delete", Err: errors.New("x")}))
	require.Contains(t, batch.Error(), "1 item(s) failed")

	require.Nil(t, classify("x", nil))
}

func TestStateString(t *testing.T) {
	require.Equal(t, "binary-ready", StateBinaryReady.String())
	require.Equal(t, "terminated", StateTerminated.String())
	require.Equal(t, "unknown", State(99).String())
}
