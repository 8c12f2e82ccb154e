package sshbatch

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/crypto/ssh"
)

const dialTimeout = 10 * time.Second

// commandRunner executes a single command line on a remote host and
// returns its captured stdout/stderr, abstracting the SSH dial/session
// dance so the allocator logic can be tested against a fake.
type commandRunner interface {
	Run(ctx context.Context, host, command string) (stdout, stderr string, err error)
}

// sshRunner is the production commandRunner: one short-lived SSH
// connection and session per command, authenticated with a private key.
type sshRunner struct {
	user    string
	keyPath string
}

func newSSHRunner(user, keyPath string) *sshRunner {
	return &sshRunner{user: user, keyPath: keyPath}
}

func (r *sshRunner) Run(ctx context.Context, host, command string) (string, string, error) {
	signer, err := loadSigner(r.keyPath)
	if err != nil {
		return "", "", fmt.Errorf("loading ssh key %q: %w", r.keyPath, err)
	}

	clientCfg := &ssh.ClientConfig{
		User:            r.user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // entry nodes are trusted infrastructure, keyed by config
		Timeout:         dialTimeout,
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", host+":22")
	if err != nil {
		return "", "", fmt.Errorf("dialing %s: %w", host, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, host+":22", clientCfg)
	if err != nil {
		return "", "", fmt.Errorf("ssh handshake with %s: %w", host, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("opening ssh session on %s: %w", host, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return stdout.String(), stderr.String(), ctx.Err()
	case err := <-done:
		return stdout.String(), stderr.String(), err
	}
}

func loadSigner(path string) (ssh.Signer, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(key)
}
