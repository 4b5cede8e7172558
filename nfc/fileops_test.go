package nfc

import (
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xtaci/nfccp/protocol"
)

func TestDeleteFilesEmptyIsNoop(t *testing.T) {
	client, err := New(Ticket{Host: "127.0.0.1", SessionID: testSession}, Options{})
	require.NoError(t, err)
	// Not connected: an I/O attempt would fail.
	require.NoError(t, client.DeleteFiles(nil))
	require.NoError(t, client.RenameFiles([]RenamePair{}))
	require.Empty(t, client.FailedPaths())
}

func TestDeleteFilesSuccess(t *testing.T) {
	store := newDatastore()
	client, peer := connectedClient(t, store)

	require.NoError(t, client.DeleteFiles([]string{"[ds1] a", "[ds1] b"}))
	require.Empty(t, client.FailedPaths())
	client.Disconnect()
	require.NoError(t, peer.wait(t))
	require.Equal(t, [][]string{{"[ds1] a", "[ds1] b"}}, store.nameLists)
}

func TestDeleteFilesReportsFailedIndex(t *testing.T) {
	store := newDatastore()
	store.failIndices = []uint16{1}
	client, peer := connectedClient(t, store)

	names := []string{"[ds1] a", "[ds1] b", "[ds1] c"}
	err := client.DeleteFiles(names)
	require.Error(t, err)
	require.Equal(t, []string{"[ds1] b"}, client.FailedPaths())
	require.Equal(t, KindPartial, KindOf(err))

	// Failures do not leak into the next call.
	store.failIndices = nil
	require.NoError(t, client.DeleteFiles(names[:1]))
	require.Empty(t, client.FailedPaths())

	client.Disconnect()
	require.NoError(t, peer.wait(t))
}

func TestDeleteFilesDeduplicatesIndices(t *testing.T) {
	store := newDatastore()
	store.failIndices = []uint16{2, 0, 2}
	client, peer := connectedClient(t, store)

	require.Error(t, client.DeleteFiles([]string{"x", "y", "z"}))
	require.Equal(t, []string{"z", "x"}, client.FailedPaths())
	client.Disconnect()
	require.NoError(t, peer.wait(t))
}

func TestRenameFilesFlattensPairs(t *testing.T) {
	store := newDatastore()
	client, peer := connectedClient(t, store)

	pairs := []RenamePair{{From: "a", To: "b"}, {From: "c", To: "d"}}
	require.NoError(t, client.RenameFiles(pairs))
	client.Disconnect()
	require.NoError(t, peer.wait(t))
	require.Equal(t, [][]string{{"a", "b", "c", "d"}}, store.nameLists)
}

func TestRenameFilesReportsSource(t *testing.T) {
	store := newDatastore()
	store.failIndices = []uint16{1}
	client, peer := connectedClient(t, store)

	pairs := []RenamePair{{From: "a", To: "b"}, {From: "c", To: "d"}}
	err := client.RenameFiles(pairs)
	require.Error(t, err)
	require.Equal(t, []string{"c"}, client.FailedPaths())
	client.Disconnect()
	require.NoError(t, peer.wait(t))
}

func TestDeleteFilesRejectsInvalidNames(t *testing.T) {
	store := newDatastore()
	client, peer := connectedClient(t, store)

	err := client.DeleteFiles([]string{"ok", ""})
	require.Error(t, err)
	require.Equal(t, []string{"ok", ""}, client.FailedPaths())
	// Nothing was sent, so the session is intact.
	require.NoError(t, client.Ping())
	client.Disconnect()
	require.NoError(t, peer.wait(t))
	require.Empty(t, store.nameLists)
}

// statusPeer answers one name-list request with a scripted status.
func statusPeer(t *testing.T, status *protocol.FileOpStatus, blob []byte) (*Client, *fakePeer) {
	t.Helper()
	reply, err := protocol.Encode(status, blob)
	require.NoError(t, err)
	return rawStatusPeer(t, reply)
}

// rawStatusPeer answers one name-list request with reply verbatim, then
// hangs up.
func rawStatusPeer(t *testing.T, reply []byte) (*Client, *fakePeer) {
	t.Helper()
	serve := func(rw io.ReadWriter) error {
		msg, err := protocol.ReadMessage(rw)
		if err != nil {
			return err
		}
		if _, err := protocol.ReadTail(rw, msg); err != nil {
			return err
		}
		_, err = rw.Write(reply)
		return err
	}
	peer := startPeer(t, peerConfig{serve: serve})
	client, err := New(peer.ticket("nfc", ""), Options{})
	require.NoError(t, err)
	require.NoError(t, client.Connect(time.Second))
	t.Cleanup(func() { client.Close() })
	return client, peer
}

// statusFrame builds a file-op-status frame whose size fields need not
// match the bytes that follow.
func statusFrame(errorSize, dataSize, failed uint32, tail []byte) []byte {
	frame := make([]byte, protocol.FrameSize, protocol.FrameSize+len(tail))
	binary.LittleEndian.PutUint32(frame[0:], uint32(protocol.TypeFileOpStatus))
	binary.LittleEndian.PutUint32(frame[4:], errorSize)
	binary.LittleEndian.PutUint32(frame[8:], dataSize)
	binary.LittleEndian.PutUint32(frame[12:], failed)
	return append(frame, tail...)
}

func TestDeleteFilesStatusSizeOverflow(t *testing.T) {
	// 4 + 0xFFFFFFFE wraps to 2 in 32-bit arithmetic.
	client, peer := rawStatusPeer(t, statusFrame(4, 0xFFFFFFFE, 1, []byte{0x01, 0x00}))

	var err error
	require.NotPanics(t, func() { err = client.DeleteFiles([]string{"a", "b"}) })
	require.True(t, IsProtocolError(err))
	require.Equal(t, KindProtocol, KindOf(err))
	require.Equal(t, []string{"a", "b"}, client.FailedPaths())
	require.Equal(t, StateTerminated, client.State())
	require.NoError(t, peer.wait(t))
}

func TestDeleteFilesStatusTailShorterThanDeclared(t *testing.T) {
	client, peer := rawStatusPeer(t, statusFrame(4, 0, 1, []byte{0x01, 0x00}))

	var err error
	require.NotPanics(t, func() { err = client.DeleteFiles([]string{"a", "b"}) })
	require.Error(t, err)
	require.Equal(t, []string{"a", "b"}, client.FailedPaths())
	require.Equal(t, StateTerminated, client.State())
	require.NoError(t, peer.wait(t))
}

func TestDeleteFilesIndexOutOfRange(t *testing.T) {
	blob := protocol.EncodeFailureIndices([]uint16{7})
	client, peer := statusPeer(t, &protocol.FileOpStatus{ErrorSize: uint32(len(blob)), Failed: 1}, blob)

	err := client.DeleteFiles([]string{"a", "b"})
	require.True(t, IsProtocolError(err))
	require.Equal(t, []string{"a", "b"}, client.FailedPaths())
	require.NoError(t, peer.wait(t))
}

func TestDeleteFilesOddFailureList(t *testing.T) {
	blob := []byte{0x01, 0x00, 0xFF}
	client, peer := statusPeer(t, &protocol.FileOpStatus{ErrorSize: uint32(len(blob)), Failed: 1}, blob)

	err := client.DeleteFiles([]string{"a", "b"})
	require.True(t, IsProtocolError(err))
	require.Equal(t, []string{"a", "b"}, client.FailedPaths())
	require.NoError(t, peer.wait(t))
}

func TestDeleteFilesFailuresWithoutIndices(t *testing.T) {
	client, peer := statusPeer(t, &protocol.FileOpStatus{Failed: 2}, nil)

	require.Error(t, client.DeleteFiles([]string{"a", "b"}))
	require.Equal(t, []string{"a", "b"}, client.FailedPaths())
	require.NoError(t, peer.wait(t))
}

func TestDeleteFilesUnexpectedReply(t *testing.T) {
	serve := func(rw io.ReadWriter) error {
		if _, _, err := protocol.Expect(rw, protocol.TypeDelete); err != nil {
			return err
		}
		return protocol.WriteMessage(rw, &protocol.Ping{}, nil)
	}
	peer := startPeer(t, peerConfig{serve: serve})
	client, err := New(peer.ticket("nfc", ""), Options{})
	require.NoError(t, err)
	require.NoError(t, client.Connect(time.Second))
	defer client.Close()

	err = client.DeleteFiles([]string{"a"})
	require.Equal(t, KindProtocol, KindOf(err))
	require.Equal(t, StateTerminated, client.State())
	require.NoError(t, peer.wait(t))
}
