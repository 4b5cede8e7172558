package main

import (
	"fmt"
	"strings"

	cli "github.com/urfave/cli/v2"

	"github.com/xtaci/nfccp/nfc"
)

func runRmCommand(c *cli.Context) error {
	names := c.Args().Slice()
	if len(names) == 0 {
		return exitWithExample("rm command requires at least one remote path", exampleRm)
	}
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			return exitWithExample("rm command requires non-empty paths", exampleRm)
		}
	}
	return withClient(c, func(client *nfc.Client) error {
		return client.DeleteFiles(names)
	})
}

func runMvCommand(c *cli.Context) error {
	args, err := parsePairs(c.Args().Slice())
	if err != nil {
		return exitWithExample("mv: "+err.Error(), exampleMv)
	}
	pairs := make([]nfc.RenamePair, len(args))
	for i, a := range args {
		pairs[i] = nfc.RenamePair{From: a[0], To: a[1]}
	}
	return withClient(c, func(client *nfc.Client) error {
		return client.RenameFiles(pairs)
	})
}

func runPingCommand(c *cli.Context) error {
	if c.NArg() != 0 {
		return exitWithExample("ping takes no arguments", examplePing)
	}
	return withClient(c, func(client *nfc.Client) error {
		if err := client.Ping(); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s: file service is alive\n", client.Ticket().Addr())
		return nil
	})
}
