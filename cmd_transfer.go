package main

import (
	"strings"

	"github.com/pkg/errors"
	cli "github.com/urfave/cli/v2"

	"github.com/xtaci/nfccp/nfc"
)

func runPutCommand(c *cli.Context) error {
	args, err := parsePairs(c.Args().Slice())
	if err != nil {
		return exitWithExample("put: "+err.Error(), examplePut)
	}
	pairs := make([]nfc.FilePair, len(args))
	for i, a := range args {
		pairs[i] = nfc.FilePair{Local: a[0], Remote: a[1]}
	}
	props := propertiesFromFlags(c)
	return withClient(c, func(client *nfc.Client) error {
		return client.PutFiles(pairs, props)
	})
}

func runGetCommand(c *cli.Context) error {
	args, err := parsePairs(c.Args().Slice())
	if err != nil {
		return exitWithExample("get: "+err.Error(), exampleGet)
	}
	pairs := make([]nfc.FilePair, len(args))
	for i, a := range args {
		pairs[i] = nfc.FilePair{Remote: a[0], Local: a[1]}
	}
	props := propertiesFromFlags(c)
	return withClient(c, func(client *nfc.Client) error {
		return client.GetFiles(pairs, props)
	})
}

func propertiesFromFlags(c *cli.Context) nfc.Properties {
	if flags, ok := fileFlagsSet(c); ok {
		return nfc.FlagsOnly(flags)
	}
	return nfc.DefaultProperties()
}

// parsePairs groups args into (first, second) pairs.
func parsePairs(args []string) ([][2]string, error) {
	if len(args) == 0 {
		return nil, errors.New("requires at least one source and destination")
	}
	if len(args)%2 != 0 {
		return nil, errors.Errorf("arguments must come in source/destination pairs, got %d", len(args))
	}
	pairs := make([][2]string, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		src, dst := strings.TrimSpace(args[i]), strings.TrimSpace(args[i+1])
		if src == "" || dst == "" {
			return nil, errors.Errorf("pair %d has an empty path", i/2+1)
		}
		pairs = append(pairs, [2]string{src, dst})
	}
	return pairs, nil
}
