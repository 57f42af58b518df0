// Package sftpstore connects to the document file store over SFTP using the
// short-lived credentials the documents service hands out.
package sftpstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"path"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/verbi-app/verbi/internal/api"
	"github.com/verbi-app/verbi/internal/library"
)

// ErrInvalidAddress means the credentials did not name a usable host:port.
var ErrInvalidAddress = errors.New("sftpstore: invalid address")

// Options configures a Dialer.
type Options struct {
	// Timeout bounds the TCP dial and SSH handshake. Zero means no limit
	// beyond the context.
	Timeout time.Duration

	// KnownHosts is an OpenSSH known_hosts file. Empty accepts any host key.
	KnownHosts string
}

// Dialer opens SFTP sessions. It satisfies library.Connector.
type Dialer struct {
	opts   Options
	logger *slog.Logger
}

// NewDialer creates a Dialer.
func NewDialer(opts Options, logger *slog.Logger) *Dialer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Dialer{opts: opts, logger: logger}
}

// Connect dials creds.Host:creds.Port and starts an SFTP session
// authenticated with the credential password.
func (d *Dialer) Connect(ctx context.Context, creds api.FileCredentials) (library.Conn, error) {
	addr, err := address(creds)
	if err != nil {
		return nil, err
	}

	hostKeys, err := d.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	cfg := &ssh.ClientConfig{
		User:            creds.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(creds.Password)},
		HostKeyCallback: hostKeys,
		Timeout:         d.opts.Timeout,
	}

	dialer := net.Dialer{Timeout: d.opts.Timeout}

	nc, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("sftpstore: dialing %s: %w", addr, ctx.Err())
		}

		return nil, fmt.Errorf("sftpstore: dialing %s: %w", addr, err)
	}

	sshClient, err := handshake(ctx, nc, addr, cfg, d.opts.Timeout)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("sftpstore: ssh handshake with %s: %w", addr, err)
	}

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("sftpstore: starting sftp session: %w", err)
	}

	d.logger.Debug("sftp session opened", slog.String("addr", addr), slog.String("user", creds.Username))

	return &Conn{ssh: sshClient, sftp: client}, nil
}

// handshake runs the SSH handshake on nc, aborting on ctx cancellation or
// after timeout.
func handshake(ctx context.Context, nc net.Conn, addr string, cfg *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error) {
	if timeout > 0 {
		if err := nc.SetDeadline(time.Now().Add(timeout)); err != nil {
			return nil, err
		}
	}

	stop := context.AfterFunc(ctx, func() { nc.Close() })
	defer stop()

	c, chans, reqs, err := ssh.NewClientConn(nc, addr, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, err
	}

	if err := nc.SetDeadline(time.Time{}); err != nil {
		c.Close()
		return nil, err
	}

	return ssh.NewClient(c, chans, reqs), nil
}

func (d *Dialer) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if d.opts.KnownHosts == "" {
		d.logger.Warn("no known_hosts configured, accepting any file store host key")
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // opt-in via known_hosts
	}

	cb, err := knownhosts.New(d.opts.KnownHosts)
	if err != nil {
		return nil, fmt.Errorf("sftpstore: loading known hosts: %w", err)
	}

	return cb, nil
}

// address joins host and port, defaulting the port to 22.
func address(creds api.FileCredentials) (string, error) {
	if creds.Host == "" {
		return "", fmt.Errorf("%w: empty host", ErrInvalidAddress)
	}

	port := creds.Port
	if port == "" {
		port = "22"
	}

	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return "", fmt.Errorf("%w: port %q", ErrInvalidAddress, creds.Port)
	}

	return net.JoinHostPort(creds.Host, port), nil
}

// Conn is one SFTP session. Transfers may run concurrently.
type Conn struct {
	ssh  *ssh.Client
	sftp *sftp.Client
}

// Download copies the remote file into w.
func (c *Conn) Download(ctx context.Context, remote string, w io.Writer) (int64, error) {
	f, err := c.sftp.Open(remote)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", remote, err)
	}
	defer f.Close()

	stop := context.AfterFunc(ctx, func() { f.Close() })
	defer stop()

	n, err := io.Copy(w, f)
	if ctx.Err() != nil {
		return n, ctx.Err()
	}

	if err != nil {
		return n, fmt.Errorf("reading %s: %w", remote, err)
	}

	return n, nil
}

// Upload writes r to remote, creating parent directories as needed.
func (c *Conn) Upload(ctx context.Context, r io.Reader, remote string) (int64, error) {
	if err := c.sftp.MkdirAll(path.Dir(remote)); err != nil {
		return 0, fmt.Errorf("creating %s: %w", path.Dir(remote), err)
	}

	f, err := c.sftp.Create(remote)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", remote, err)
	}

	stop := context.AfterFunc(ctx, func() { f.Close() })
	defer stop()

	n, err := io.Copy(f, r)
	if ctx.Err() != nil {
		f.Close()
		return n, ctx.Err()
	}

	if err != nil {
		f.Close()
		return n, fmt.Errorf("writing %s: %w", remote, err)
	}

	if err := f.Close(); err != nil {
		return n, fmt.Errorf("closing %s: %w", remote, err)
	}

	return n, nil
}

// Close ends the SFTP session and the SSH connection under it.
func (c *Conn) Close() error {
	return errors.Join(c.sftp.Close(), c.ssh.Close())
}
