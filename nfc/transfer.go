package nfc

import (
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/xtaci/nfccp/protocol"
)

// FilePair names one file on each side of a transfer.
type FilePair struct {
	Local  string
	Remote string
}

// PutFiles uploads each Local file to its Remote path in order. On the first
// failure the failed pair and every pair not yet attempted are recorded in
// FailedPaths by remote path; completed pairs are kept.
func (c *Client) PutFiles(pairs []FilePair, props Properties) error {
	c.resetFailures()
	for i, pair := range pairs {
		if err := c.putFile(pair, props); err != nil {
			return c.batchFailed("put", err, remoteTargets(pairs[i:])...)
		}
	}
	return nil
}

// GetFiles downloads each Remote file to its Local path in order. Failures
// are recorded by local path with the same rules as PutFiles.
func (c *Client) GetFiles(pairs []FilePair, props Properties) error {
	c.resetFailures()
	for i, pair := range pairs {
		if err := c.getFile(pair, props); err != nil {
			return c.batchFailed("get", err, localTargets(pairs[i:])...)
		}
	}
	return nil
}

func (c *Client) putFile(pair FilePair, props Properties) error {
	if err := c.ready(); err != nil {
		return err
	}
	f, err := os.Open(pair.Local)
	if err != nil {
		return errors.Wrap(err, "put")
	}
	defer f.Close()
	fp, err := props.forLocal(f)
	if err != nil {
		return errors.Wrap(err, "put")
	}

	req, tail := protocol.NewPutFile(pair.Remote, fp)
	if err := c.send(req, tail); err != nil {
		return err
	}
	sent, err := protocol.SendChunks(c.conn, f)
	c.stats.BytesSent.Mark(int64(sent))
	if err != nil {
		c.state = StateTerminated
		return errors.Wrapf(err, "put %s", pair.Local)
	}
	if _, _, err := c.expect(protocol.TypePutFileDone); err != nil {
		return classify("put "+pair.Remote, err)
	}
	c.stats.FilesSent.Inc(1)
	c.log.Info("put file",
		zap.String("local", pair.Local),
		zap.String("remote", pair.Remote),
		zap.Stringer("type", fp.Type),
		zap.String("size", humanize.Bytes(sent)))
	return nil
}

func (c *Client) getFile(pair FilePair, props Properties) error {
	if pair.Local == "" {
		return errors.New("get: missing local destination path")
	}
	if info, err := os.Stat(pair.Local); err == nil && info.IsDir() {
		return errors.Errorf("get: %s is a directory", pair.Local)
	}
	req, tail := protocol.NewGetFile(pair.Remote, props.forRemote(pair.Remote))
	if err := c.send(req, tail); err != nil {
		return err
	}

	msg, tail, err := c.read()
	if err != nil {
		return classify("get "+pair.Remote, err)
	}
	var put *protocol.PutFile
	switch m := msg.(type) {
	case *protocol.PutFile:
		put = m
	case *protocol.FileOpStatus:
		return errors.Errorf("get %s: peer refused the file (%d failed)", pair.Remote, m.Failed)
	default:
		c.state = StateTerminated
		return classify("get "+pair.Remote, &protocol.UnexpectedError{Want: protocol.TypePutFile, Got: msg.Type()})
	}
	remoteName, err := protocol.DecodePath(tail)
	if err != nil {
		c.state = StateTerminated
		return classify("get "+pair.Remote, err)
	}

	received, writeErr, err := c.receiveInto(pair.Local)
	c.stats.BytesReceived.Mark(int64(received))
	if err != nil {
		return classify("get "+pair.Remote, err)
	}
	if err := c.send(&protocol.PutFileDone{}, nil); err != nil {
		return err
	}
	if writeErr != nil {
		return writeErr
	}
	c.stats.FilesReceived.Inc(1)
	if received != put.Size {
		c.log.Debug("size differs from declared", zap.String("remote", remoteName), zap.Uint64("declared", put.Size), zap.Uint64("received", received))
	}
	c.log.Info("got file",
		zap.String("remote", remoteName),
		zap.String("local", pair.Local),
		zap.Stringer("type", protocol.FileType(put.FileType)),
		zap.String("size", humanize.Bytes(received)))
	return nil
}

// receiveInto streams the pending file-data sequence into path. Local
// write failures are returned separately as writeErr; the stream is still
// drained so the session stays usable.
func (c *Client) receiveInto(path string) (received uint64, writeErr error, err error) {
	sink := &drainWriter{}
	f, createErr := createLocal(path)
	if createErr != nil {
		sink.err = createErr
	} else {
		defer f.Close()
		sink.w = f
	}
	received, err = protocol.ReceiveChunks(c.conn, sink)
	if err != nil {
		c.state = StateTerminated
		return received, nil, err
	}
	if sink.err != nil {
		return received, sink.err, nil
	}
	if err := f.Sync(); err != nil {
		return received, errors.Wrapf(err, "sync %s", path), nil
	}
	return received, nil, nil
}

// drainWriter forwards to w until the first error, then discards.
type drainWriter struct {
	w   io.Writer
	err error
}

func (d *drainWriter) Write(p []byte) (int, error) {
	if d.err != nil {
		return len(p), nil
	}
	if _, err := d.w.Write(p); err != nil {
		d.err = errors.Wrap(err, "write local file")
	}
	return len(p), nil
}

func createLocal(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create parent of %s", path)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	return f, errors.Wrapf(err, "create %s", path)
}

func remoteTargets(pairs []FilePair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.Remote
	}
	return out
}

func localTargets(pairs []FilePair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.Local
	}
	return out
}
