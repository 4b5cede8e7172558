package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	cli "github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xtaci/nfccp/nfc"
)

// newLogger builds the console logger used by every command.
func newLogger(w io.Writer, debug bool) *zap.Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "ts",
		LevelKey:    "level",
		MessageKey:  "msg",
		EncodeTime:  zapcore.ISO8601TimeEncoder,
		EncodeLevel: zapcore.CapitalLevelEncoder,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(w), level)
	return zap.New(core)
}

// openClient resolves the ticket, connects and checks the TLS peer against
// known_hosts. The caller closes the returned client.
func openClient(c *cli.Context, log *zap.Logger) (*nfc.Client, error) {
	ticket, timeout, err := resolveTicket(c)
	if err != nil {
		return nil, err
	}
	if ticket.Thumbprint == "" {
		known, ok, err := knownThumbprint(ticket.Host)
		if err != nil {
			return nil, err
		}
		if ok {
			log.Debug("using known thumbprint", zap.String("host", ticket.Host))
			ticket.Thumbprint = known
		}
	}

	client, err := nfc.New(ticket, nfc.Options{Logger: log})
	if err != nil {
		return nil, err
	}
	if err := client.Connect(timeout); err != nil {
		return nil, err
	}
	if tp := client.PeerThumbprint(); tp != "" {
		if err := ensureTrustedHost(ticket.Host, tp, c.Bool("accept-new")); err != nil {
			client.Close()
			return nil, err
		}
	}
	return client, nil
}

// withClient runs fn on a connected client and prints the transfer summary.
func withClient(c *cli.Context, fn func(*nfc.Client) error) error {
	log := newLogger(os.Stderr, c.Bool("debug"))
	defer log.Sync()

	client, err := openClient(c, log)
	if err != nil {
		if nfc.IsAuthError(err) {
			return cli.Exit(fmt.Sprintf("refusing host: %v", err), 2)
		}
		return err
	}
	defer client.Close()

	err = fn(client)
	printSummary(c.App.ErrWriter, client.Stats().Snapshot())
	return reportBatch(c.App.ErrWriter, err)
}

// reportBatch lists the failed paths of a batch error and converts it to
// a non-zero exit.
func reportBatch(w io.Writer, err error) error {
	if err == nil {
		return nil
	}
	var batch *nfc.BatchError
	if !errors.As(err, &batch) {
		return err
	}
	for _, p := range batch.Failed {
		fmt.Fprintf(w, "failed: %s\n", p)
	}
	return cli.Exit(err.Error(), 1)
}

func printSummary(w io.Writer, s nfc.StatsSnapshot) {
	if s.FilesSent == 0 && s.FilesReceived == 0 && s.Failures == 0 {
		return
	}
	fmt.Fprintf(w, "sent %d file(s), %s; received %d file(s), %s; %d failed\n",
		s.FilesSent, humanize.Bytes(uint64(s.BytesSent)),
		s.FilesReceived, humanize.Bytes(uint64(s.BytesReceived)),
		s.Failures)
}
