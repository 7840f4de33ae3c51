// Package cloudinit generates first-boot configuration for an instance
// and serves it over an ephemeral local HTTP endpoint.
package cloudinit

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// CollectKeys gathers the operator's public key material from
// ~/.ssh/*.pub. Files that do not parse as authorized keys are skipped.
// Zero keys is not an error: the VM still boots, just without automated
// key injection.
func CollectKeys() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	paths, err := filepath.Glob(filepath.Join(home, ".ssh", "*.pub"))
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		line := strings.TrimSpace(string(data))
		if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line)); err != nil {
			continue
		}
		keys = append(keys, line)
	}

	return keys, nil
}
