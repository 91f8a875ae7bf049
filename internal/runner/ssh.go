package runner

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// SSHOptions configures the connection to a single target host.
type SSHOptions struct {
	Address  string
	Port     int
	User     string
	KeyPath  string
	Password string
	Timeout  time.Duration
}

// SSH reaches a remote host's crontab over a single SSH connection.
type SSH struct {
	logger zerolog.Logger
	client *ssh.Client
	addr   string
}

// DialSSH connects to the target host. Dial and handshake failures are
// classified as ErrUnreachable so the provisioner can report the host as
// down rather than misconfigured.
func DialSSH(ctx context.Context, logger zerolog.Logger, opts SSHOptions) (*SSH, error) {
	if opts.Port == 0 {
		opts.Port = 22
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.User == "" {
		return nil, fmt.Errorf("ssh user is empty")
	}

	auth, err := authMethods(opts)
	if err != nil {
		return nil, err
	}

	cfg := &ssh.ClientConfig{
		User:            opts.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         opts.Timeout,
	}

	addr := net.JoinHostPort(opts.Address, strconv.Itoa(opts.Port))

	dialer := net.Dialer{Timeout: opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w: %v", addr, ErrUnreachable, err)
	}

	// The SSH handshake has no context support; bound it with a deadline
	// on the underlying connection.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(opts.Timeout))
	}

	cconn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w: %v", addr, ErrUnreachable, err)
	}
	_ = conn.SetDeadline(time.Time{})

	return &SSH{
		logger: logger.With().Str("runner", "ssh").Str("addr", addr).Logger(),
		client: ssh.NewClient(cconn, chans, reqs),
		addr:   addr,
	}, nil
}

func authMethods(opts SSHOptions) ([]ssh.AuthMethod, error) {
	var auth []ssh.AuthMethod
	if opts.KeyPath != "" {
		key, err := os.ReadFile(opts.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("read ssh key %s: %w", opts.KeyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse ssh key %s: %w", opts.KeyPath, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if opts.Password != "" {
		auth = append(auth, ssh.Password(opts.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("no ssh auth configured for %s (need key_path or SSH_PASSWORD)", opts.Address)
	}
	return auth, nil
}

func (s *SSH) ReadCrontab(ctx context.Context, user string) (string, error) {
	stdout, stderr, err := s.run(ctx, crontabCommand(user, "-l"), "")
	if err != nil {
		if isEmptyCrontab(stderr) {
			return "", nil
		}
		return "", classifyCrontabError("read", user, stderr, err)
	}
	return stdout, nil
}

func (s *SSH) WriteCrontab(ctx context.Context, user, content string) error {
	_, stderr, err := s.run(ctx, crontabCommand(user, "-"), content)
	if err != nil {
		return classifyCrontabError("write", user, stderr, err)
	}
	s.logger.Debug().Str("user", user).Int("bytes", len(content)).Msg("crontab written")
	return nil
}

func (s *SSH) Close() error {
	return s.client.Close()
}

// run executes one command in a fresh session, feeding stdin and
// capturing both output streams. The context cancels the session.
func (s *SSH) run(ctx context.Context, cmd, stdin string) (string, string, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("ssh session %s: %w", s.addr, err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdin = strings.NewReader(stdin)
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- sess.Run(cmd) }()

	select {
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		return stdout.String(), stderr.String(), ctx.Err()
	case err := <-done:
		return stdout.String(), stderr.String(), err
	}
}
