package main

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	cli "github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/xtaci/nfccp/crypto"
	"github.com/xtaci/nfccp/nfc"
)

// ticketFile is the YAML form of a connection ticket.
type ticketFile struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Session        string `yaml:"session"`
	Thumbprint     string `yaml:"thumbprint"`
	Service        string `yaml:"service"`
	ConnectTimeout string `yaml:"connect_timeout"`
}

// promptSession asks for the session id when no source provided one.
var promptSession = promptSessionFromTerminal

// loadTicketFile reads path, expands environment variables and decodes it.
func loadTicketFile(path string) (*ticketFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("ticket file not found: %s", path)
		}
		return nil, errors.Wrapf(err, "read ticket file %s", path)
	}
	var tf ticketFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &tf); err != nil {
		return nil, errors.Wrapf(err, "invalid YAML in %s", path)
	}
	return &tf, nil
}

// timeout parses connect_timeout, returning zero when unset.
func (tf *ticketFile) timeout() (time.Duration, error) {
	if strings.TrimSpace(tf.ConnectTimeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(tf.ConnectTimeout))
	if err != nil {
		return 0, errors.Wrapf(err, "connect_timeout %q", tf.ConnectTimeout)
	}
	if d < 0 {
		return 0, errors.Errorf("connect_timeout %q is negative", tf.ConnectTimeout)
	}
	return d, nil
}

// resolveTicket merges the ticket file with flags; flags that were set win.
func resolveTicket(c *cli.Context) (nfc.Ticket, time.Duration, error) {
	tf := &ticketFile{}
	if path := c.String("ticket"); path != "" {
		loaded, err := loadTicketFile(path)
		if err != nil {
			return nfc.Ticket{}, 0, err
		}
		tf = loaded
	}
	timeout, err := tf.timeout()
	if err != nil {
		return nfc.Ticket{}, 0, err
	}
	if c.IsSet("timeout") {
		timeout = c.Duration("timeout")
	}
	if timeout == 0 {
		timeout = defaultConnectTimeout
	}

	ticket := nfc.Ticket{
		Host:       resolveString(c, "host", tf.Host),
		Port:       resolveInt(c, "port", tf.Port),
		SessionID:  resolveString(c, "session", tf.Session),
		Thumbprint: resolveString(c, "thumbprint", tf.Thumbprint),
		Service:    resolveString(c, "service", tf.Service),
	}
	if ticket.SessionID == "" && ticket.Host != "" {
		session, err := promptSession(ticket.Host)
		if err != nil {
			return nfc.Ticket{}, 0, err
		}
		ticket.SessionID = session
	}
	return ticket, timeout, ticket.Validate()
}

func resolveString(c *cli.Context, name, fromFile string) string {
	if c.IsSet(name) {
		return strings.TrimSpace(c.String(name))
	}
	return strings.TrimSpace(fromFile)
}

func resolveInt(c *cli.Context, name string, fromFile int) int {
	if c.IsSet(name) {
		return c.Int(name)
	}
	return fromFile
}

func promptSessionFromTerminal(host string) (string, error) {
	if !crypto.IsTerminal() {
		return "", errors.New("no session id given and stdin is not a terminal")
	}
	secret, err := crypto.PromptSecret("Session ticket for " + host + ": ")
	if err != nil {
		return "", errors.Wrap(err, "read session id")
	}
	defer secret.Destroy()
	return strings.TrimSpace(string(secret.Bytes())), nil
}
