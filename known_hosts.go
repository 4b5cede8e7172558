package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/xtaci/nfccp/crypto"
)

var (
	knownHostsDirOverride string
	promptHostApproval    = promptUserForThumbprint
)

// knownThumbprint returns the stored thumbprint for host, if any.
func knownThumbprint(host string) (string, bool, error) {
	path, err := knownHostsPath()
	if err != nil {
		return "", false, err
	}
	entries, err := readKnownHosts(path)
	if err != nil {
		return "", false, err
	}
	tp, ok := entries[host]
	return tp, ok, nil
}

// ensureTrustedHost checks the verified peer thumbprint against known_hosts.
// New hosts are prompted for unless acceptNew is set; a changed thumbprint
// is refused unless acceptNew is set, in which case it replaces the entry.
func ensureTrustedHost(host, thumbprint string, acceptNew bool) error {
	thumbprint = crypto.NormalizeThumbprint(thumbprint)
	if thumbprint == "" {
		return errors.New("empty thumbprint")
	}
	path, err := knownHostsPath()
	if err != nil {
		return err
	}
	existing, err := readKnownHosts(path)
	if err != nil {
		return err
	}
	if known, ok := existing[host]; ok {
		if known == thumbprint {
			return nil
		}
		if !acceptNew {
			return errors.Errorf("host %s thumbprint changed (known %s, got %s); rerun with --accept-new to trust it", host, known, thumbprint)
		}
		existing[host] = thumbprint
		return writeKnownHosts(path, existing)
	}
	if !acceptNew {
		accepted, err := promptHostApproval(host, thumbprint)
		if err != nil {
			return err
		}
		if !accepted {
			return errors.New("host thumbprint rejected by user")
		}
	}
	return appendKnownHost(path, host, thumbprint)
}

func knownHostsPath() (string, error) {
	dir := knownHostsDirOverride
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, stateDirName)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "known_hosts"), nil
}

func readKnownHosts(path string) (map[string]string, error) {
	entries := make(map[string]string)
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return entries, nil
		}
		return nil, err
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		entries[parts[0]] = crypto.NormalizeThumbprint(parts[1])
	}
	return entries, scanner.Err()
}

func appendKnownHost(path, host, thumbprint string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%s %s\n", host, thumbprint)
	return err
}

// writeKnownHosts replaces the file with entries sorted by host.
func writeKnownHosts(path string, entries map[string]string) error {
	hosts := make([]string, 0, len(entries))
	for h := range entries {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	var b strings.Builder
	for _, h := range hosts {
		fmt.Fprintf(&b, "%s %s\n", h, entries[h])
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func promptUserForThumbprint(host, thumbprint string) (bool, error) {
	fmt.Fprintf(os.Stderr, "The authenticity of %s can't be established.\nCertificate thumbprint: %s\nTrust this host? (yes/no) ", host, thumbprint)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
