package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/sourceplane/hostcheck/internal/model"
	"golang.org/x/crypto/ssh"
)

// SSHConfig holds the connection settings shared by every step
type SSHConfig struct {
	User        string
	Port        int
	KeyPath     string
	DialTimeout time.Duration
}

// SSHTransport opens a fresh authenticated SSH connection for every command.
//
// Host keys are not verified. Targets are assumed to be reached over a
// trusted management network; this is a trust assumption, not a control.
type SSHTransport struct {
	user        string
	port        int
	signer      ssh.Signer
	dialTimeout time.Duration
}

// NewSSHTransport reads the private key at cfg.KeyPath and builds a transport
func NewSSHTransport(cfg SSHConfig) (*SSHTransport, error) {
	keyPath, err := expandHome(cfg.KeyPath)
	if err != nil {
		return nil, err
	}
	pem, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key %s: %w", keyPath, err)
	}
	return NewSSHTransportWithSigner(cfg.User, cfg.Port, signer, cfg.DialTimeout), nil
}

// NewSSHTransportWithSigner builds a transport from an already loaded key
func NewSSHTransportWithSigner(user string, port int, signer ssh.Signer, dialTimeout time.Duration) *SSHTransport {
	if port == 0 {
		port = 22
	}
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	return &SSHTransport{
		user:        user,
		port:        port,
		signer:      signer,
		dialTimeout: dialTimeout,
	}
}

// Run connects, runs cmd without a pseudo-terminal and disconnects
func (t *SSHTransport) Run(ctx context.Context, host, cmd string) (*Output, error) {
	addr := t.address(host)

	dialer := net.Dialer{Timeout: t.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	// Closing the socket unblocks both the handshake and a running command
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	clientCfg := &ssh.ClientConfig{
		User:            t.user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(t.signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         t.dialTimeout,
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		conn.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	client := ssh.NewClient(c, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("open session on %s: %w", addr, err)
	}
	defer session.Close()

	stdout := &cappedBuffer{limit: model.StdoutCap + 1}
	stderr := &cappedBuffer{limit: model.StderrCap + 1}
	session.Stdout = stdout
	session.Stderr = stderr

	err = session.Run(cmd)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	out := &Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitStatus()
			return out, nil
		}
		return nil, fmt.Errorf("run on %s: %w", addr, err)
	}
	return out, nil
}

func (t *SSHTransport) address(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(t.port))
}

// cappedBuffer keeps at most limit bytes and silently discards the rest, so
// a chatty remote command cannot exhaust memory. Callers size limit one byte
// past the output cap to detect truncation.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}

func expandHome(path string) (string, error) {
	if len(path) < 2 || path[:2] != "~/" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return home + path[1:], nil
}
