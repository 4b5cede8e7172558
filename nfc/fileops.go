package nfc

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/xtaci/nfccp/protocol"
)

// RenamePair moves From to To on the datastore.
type RenamePair struct {
	From string
	To   string
}

// DeleteFiles removes names on the peer. An empty list is a no-op that
// performs no I/O. Paths the peer reports as failed are in FailedPaths.
func (c *Client) DeleteFiles(names []string) error {
	c.resetFailures()
	if len(names) == 0 {
		return nil
	}
	msg, tail, err := protocol.NewDelete(names, 0)
	if err != nil {
		return c.batchFailed("delete", err, names...)
	}
	return c.nameListOp("delete", msg, tail, names)
}

// RenameFiles renames each pair on the peer. An empty list is a no-op that
// performs no I/O. Failed pairs are reported by their From path.
func (c *Client) RenameFiles(pairs []RenamePair) error {
	c.resetFailures()
	if len(pairs) == 0 {
		return nil
	}
	sources := make([]string, len(pairs))
	flat := make([]string, 0, 2*len(pairs))
	for i, p := range pairs {
		sources[i] = p.From
		flat = append(flat, p.From, p.To)
	}
	msg, tail, err := protocol.NewRename(flat, 0)
	if err != nil {
		return c.batchFailed("rename", err, sources...)
	}
	return c.nameListOp("rename", msg, tail, sources)
}

// nameListOp sends one name-list request and resolves the failure indices
// of the status reply against names.
func (c *Client) nameListOp(op string, msg protocol.Message, tail []byte, names []string) error {
	if err := c.send(msg, tail); err != nil {
		return c.batchFailed(op, err, names...)
	}
	reply, blob, err := c.expect(protocol.TypeFileOpStatus)
	if err != nil {
		return c.batchFailed(op, classify(op, err), names...)
	}
	status := reply.(*protocol.FileOpStatus)
	c.log.Debug("file operation status",
		zap.String("op", op),
		zap.Uint32("failed", status.Failed),
		zap.Uint32("succeeded", status.Succeeded))
	if status.Failed == 0 {
		return nil
	}

	if uint64(status.ErrorSize) > uint64(len(blob)) {
		err := errors.Wrapf(protocol.ErrProtocolViolation, "status declares %d failure bytes, tail holds %d", status.ErrorSize, len(blob))
		return c.batchFailed(op, classify(op, err), names...)
	}
	indices, err := protocol.DecodeFailureIndices(blob[:status.ErrorSize])
	if err != nil {
		return c.batchFailed(op, classify(op, err), names...)
	}
	if len(indices) == 0 {
		return c.batchFailed(op, errors.Errorf("%s: peer reported %d failures without indices", op, status.Failed), names...)
	}
	failed := make([]string, 0, len(indices))
	seen := make(map[uint16]bool, len(indices))
	for _, idx := range indices {
		if int(idx) >= len(names) {
			err := errors.Wrapf(protocol.ErrProtocolViolation, "failure index %d outside list of %d", idx, len(names))
			return c.batchFailed(op, classify(op, err), names...)
		}
		if !seen[idx] {
			seen[idx] = true
			failed = append(failed, names[idx])
		}
	}
	return c.batchFailed(op, errors.Errorf("%s: %d of %d items failed", op, len(failed), len(names)), failed...)
}
