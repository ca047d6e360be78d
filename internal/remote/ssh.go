package remote

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"vidingest/internal/hasher"
)

// MaxLineBytes bounds a single line of remote output.
const MaxLineBytes = 1 << 20

// Runner executes a command on a host and streams its stdout line by line.
// Returning an error from onLine stops the command.
type Runner interface {
	Run(ctx context.Context, command string, onLine func(string) error) error
}

// Conn is an established connection to a remote host.
type Conn interface {
	Runner
	// Open opens a file for reading by its path as the remote filesystem sees it.
	Open(path string) (hasher.File, error)
	Close() error
}

// Dialer establishes connections to endpoints.
type Dialer interface {
	Dial(ctx context.Context, endpoint Endpoint) (Conn, error)
}

// SSHDialer dials endpoints over SSH.
type SSHDialer struct{}

// Dial connects and authenticates. The TCP dial honours ctx directly; the SSH
// handshake is raced against ctx and the socket is closed on cancellation.
func (SSHDialer) Dial(ctx context.Context, endpoint Endpoint) (Conn, error) {
	cfg, err := clientConfig(endpoint)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{Timeout: endpoint.Timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", endpoint.Address())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint.Address(), err)
	}

	type handshake struct {
		client *ssh.Client
		err    error
	}
	result := make(chan handshake, 1)
	go func() {
		c, chans, reqs, err := ssh.NewClientConn(netConn, endpoint.Address(), cfg)
		if err != nil {
			result <- handshake{err: err}
			return
		}
		result <- handshake{client: ssh.NewClient(c, chans, reqs)}
	}()

	select {
	case <-ctx.Done():
		_ = netConn.Close()
		if r := <-result; r.client != nil {
			_ = r.client.Close()
		}
		return nil, ctx.Err()
	case r := <-result:
		if r.err != nil {
			_ = netConn.Close()
			return nil, fmt.Errorf("ssh handshake with %s: %w", endpoint.Address(), r.err)
		}
		return &sshConn{client: r.client}, nil
	}
}

func clientConfig(endpoint Endpoint) (*ssh.ClientConfig, error) {
	auth, err := authMethods(endpoint)
	if err != nil {
		return nil, err
	}
	callback, err := hostKeyCallback(endpoint)
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		User:            endpoint.User,
		Auth:            auth,
		HostKeyCallback: callback,
		Timeout:         endpoint.Timeout,
	}, nil
}

func authMethods(endpoint Endpoint) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if path := strings.TrimSpace(endpoint.IdentityFile); path != "" {
		key, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read identity file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse identity file %s: %w", path, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if strings.TrimSpace(endpoint.PasswordEnv) != "" {
		password, err := endpoint.password()
		if err != nil {
			return nil, err
		}
		methods = append(methods, ssh.Password(password))
	}
	if len(methods) == 0 {
		return nil, errors.New("no authentication method configured")
	}
	return methods, nil
}

func hostKeyCallback(endpoint Endpoint) (ssh.HostKeyCallback, error) {
	if endpoint.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec
	}
	path := strings.TrimSpace(endpoint.KnownHostsFile)
	if path == "" {
		return nil, errors.New("known_hosts_file is required for host key verification")
	}
	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("load known hosts %s: %w", path, err)
	}
	return callback, nil
}

type sshConn struct {
	client *ssh.Client

	mu   sync.Mutex
	sftp *sftp.Client
}

func (c *sshConn) Run(ctx context.Context, command string, onLine func(string) error) error {
	session, err := c.client.NewSession()
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	stdout, err := session.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := newTailBuffer(4096)
	session.Stderr = stderr

	if err := session.Start(command); err != nil {
		return fmt.Errorf("start remote command: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Signal(ssh.SIGKILL)
			_ = session.Close()
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
	for scanner.Scan() {
		if onLine == nil {
			continue
		}
		if err := onLine(scanner.Text()); err != nil {
			_ = session.Signal(ssh.SIGTERM)
			return err
		}
	}
	scanErr := scanner.Err()
	waitErr := session.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if scanErr != nil {
		return fmt.Errorf("read remote output: %w", scanErr)
	}
	if waitErr != nil {
		return commandError(waitErr, stderr.String())
	}
	return nil
}

func commandError(err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		if stderr != "" {
			return fmt.Errorf("remote command exited with status %d: %s", exitErr.ExitStatus(), stderr)
		}
		return fmt.Errorf("remote command exited with status %d", exitErr.ExitStatus())
	}
	var missing *ssh.ExitMissingError
	if errors.As(err, &missing) {
		return fmt.Errorf("remote command ended without exit status: %w", err)
	}
	return fmt.Errorf("wait remote command: %w", err)
}

func (c *sshConn) Open(path string) (hasher.File, error) {
	client, err := c.sftpClient()
	if err != nil {
		return nil, err
	}
	file, err := client.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sftp open %s: %w", path, err)
	}
	return file, nil
}

func (c *sshConn) sftpClient() (*sftp.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sftp != nil {
		return c.sftp, nil
	}
	client, err := sftp.NewClient(c.client)
	if err != nil {
		return nil, fmt.Errorf("start sftp subsystem: %w", err)
	}
	c.sftp = client
	return client, nil
}

func (c *sshConn) Close() error {
	c.mu.Lock()
	var errs []error
	if c.sftp != nil {
		errs = append(errs, c.sftp.Close())
		c.sftp = nil
	}
	c.mu.Unlock()
	errs = append(errs, c.client.Close())
	return errors.Join(errs...)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
