package fetch

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"crusader-launcher/internal/logging"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// defaultKeyPaths lists the private keys tried when no key or password is given
func defaultKeyPaths() []string {
	home, err := homedir.Dir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_rsa"),
		filepath.Join(home, ".ssh", "id_ecdsa"),
	}
}

func expandKeyFile(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand key path %s: %w", path, err)
	}
	return expanded, nil
}

// authMethods resolves authentication in order: key file, password, default keys, agent
func authMethods(config SSHConfig) ([]ssh.AuthMethod, error) {
	sugar := logging.Named("fetch")

	if config.KeyFile != "" {
		keyFile, err := expandKeyFile(config.KeyFile)
		if err != nil {
			return nil, err
		}
		key, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read SSH key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse SSH key: %w", err)
		}
		sugar.Debugf("Using SSH key from: %s", keyFile)
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}

	if config.Password != "" {
		sugar.Debugf("Using password authentication")
		return []ssh.AuthMethod{ssh.Password(config.Password)}, nil
	}

	sugar.Debugf("Checking for SSH keys in default locations")
	var methods []ssh.AuthMethod
	for _, keyPath := range defaultKeyPaths() {
		key, err := os.ReadFile(keyPath)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			continue // passphrase protected or unsupported
		}
		sugar.Debugf("Using SSH key: %s", keyPath)
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if agentAuth, err := sshAgentAuth(); err == nil {
		methods = append(methods, agentAuth)
	}

	if len(methods) == 0 {
		return nil, errors.New("no SSH keys found in default locations and no SSH agent available")
	}
	return methods, nil
}

// sshAgentAuth attempts to connect to SSH agent for authentication
func sshAgentAuth() (ssh.AuthMethod, error) {
	agentSock := os.Getenv("SSH_AUTH_SOCK")
	if agentSock == "" {
		return nil, errors.New("SSH_AUTH_SOCK not set")
	}

	conn, err := net.Dial("unix", agentSock)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SSH agent: %w", err)
	}

	agentClient := agent.NewClient(conn)
	return ssh.PublicKeysCallback(agentClient.Signers), nil
}

// hostKeyCallback verifies against ~/.ssh/known_hosts when it exists
func hostKeyCallback() ssh.HostKeyCallback {
	sugar := logging.Named("fetch")

	knownHosts, err := homedir.Expand("~/.ssh/known_hosts")
	if err == nil {
		if cb, err := knownhosts.New(knownHosts); err == nil {
			return cb
		}
	}

	sugar.Warnf("No usable known_hosts file, host key will not be verified")
	return ssh.InsecureIgnoreHostKey()
}
