package main

import (
	"fmt"
	"log"
	"os"

	"github.com/awnumar/memguard"
	cli "github.com/urfave/cli/v2"

	"github.com/xtaci/nfccp/protocol"
)

// main dispatches the file service commands.
func main() {
	memguard.CatchInterrupt()
	defer memguard.Purge()

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "nfccp",
		Usage: "Copy, delete and rename files on a hypervisor datastore over NFC",
		Flags: globalFlags(),
		Commands: []*cli.Command{
			{
				Name:      "put",
				Usage:     "Upload local files to the datastore",
				ArgsUsage: "LOCAL REMOTE [LOCAL REMOTE ...]",
				Flags:     fileFlags(),
				Action:    runPutCommand,
			},
			{
				Name:      "get",
				Usage:     "Download datastore files to local paths",
				ArgsUsage: "REMOTE LOCAL [REMOTE LOCAL ...]",
				Flags:     fileFlags(),
				Action:    runGetCommand,
			},
			{
				Name:      "rm",
				Usage:     "Delete datastore files",
				ArgsUsage: "REMOTE [REMOTE ...]",
				Action:    runRmCommand,
			},
			{
				Name:      "mv",
				Usage:     "Rename datastore files",
				ArgsUsage: "FROM TO [FROM TO ...]",
				Action:    runMvCommand,
			},
			{
				Name:   "ping",
				Usage:  "Check that the file service answers",
				Action: runPingCommand,
			},
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "ticket", Aliases: []string{"t"}, EnvVars: []string{"NFCCP_TICKET"}, Usage: "path to a YAML connection ticket"},
		&cli.StringFlag{Name: "host", Aliases: []string{"H"}, Usage: "hypervisor host name or address"},
		&cli.IntFlag{Name: "port", Aliases: []string{"P"}, Usage: "proxy daemon port (default 902)"},
		&cli.StringFlag{Name: "session", Aliases: []string{"s"}, EnvVars: []string{"NFCCP_SESSION"}, Usage: "session ticket id (prompted when missing)"},
		&cli.StringFlag{Name: "thumbprint", Usage: "pinned certificate thumbprint (SHA-1, SHA-256 or SHA-512 hex)"},
		&cli.StringFlag{Name: "service", Usage: "proxied service name; a name ending in ssl requests TLS (default nfc)"},
		&cli.DurationFlag{Name: "timeout", Usage: "connect timeout (default 30s)"},
		&cli.BoolFlag{Name: "accept-new", Usage: "trust a new or changed host thumbprint without prompting"},
		&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
	}
}

func fileFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "thin", Usage: "create disks thin-provisioned"},
		&cli.BoolFlag{Name: "disk-convert", Usage: "convert disk images to the datastore format"},
		&cli.BoolFlag{Name: "text-convert", Usage: "convert line endings of text files"},
		&cli.BoolFlag{Name: "no-overwrite", Usage: "fail instead of replacing an existing destination"},
		&cli.BoolFlag{Name: "create-alternate", Usage: "pick an alternate name when the destination exists"},
	}
}

// fileFlagsSet reports whether any file flag was given, and the resulting mask.
func fileFlagsSet(c *cli.Context) (protocol.FileFlags, bool) {
	flags := protocol.DefaultFlags
	set := false
	for _, f := range []struct {
		name string
		bit  protocol.FileFlags
	}{
		{"thin", protocol.FlagThinProvision},
		{"disk-convert", protocol.FlagDiskConvert},
		{"text-convert", protocol.FlagTextConvert},
		{"create-alternate", protocol.FlagCreateAlternate},
	} {
		if c.Bool(f.name) {
			flags |= f.bit
			set = true
		}
	}
	if c.Bool("no-overwrite") {
		flags &^= protocol.FlagOverwrite
		set = true
	}
	return flags, set
}

// exitWithExample formats an error message with an example and exits.
func exitWithExample(message, example string) error {
	return cli.Exit(fmt.Sprintf("%s\nExample: %s", message, example), 1)
}
