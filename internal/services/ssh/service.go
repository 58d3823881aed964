// Package ssh establishes the remote sessions used to run the dump command
// and to transfer the artifact.
package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/fgeck/mysql-remote-backup/internal/backup"
	"github.com/fgeck/mysql-remote-backup/internal/models"
	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Host key verification policies.
const (
	// PolicyAutoAdd accepts any host key, matching the permissive
	// trust-on-first-use behavior this tool has always had.
	PolicyAutoAdd = "auto-add"
	// PolicyKnownHosts verifies hosts against an OpenSSH known_hosts file.
	PolicyKnownHosts = "known-hosts"
)

// sftpMaxPacket bounds SFTP request sizes for broad server compatibility.
const sftpMaxPacket = 1 << 15

// Service defines the interface for establishing SSH connections.
type Service interface {
	Connect(ctx context.Context, cfg models.SSHConfig) (Client, error)
}

// Client wraps ssh.Client for mocking. A client is exclusively owned by
// one backup run and must be closed on every exit path.
type Client interface {
	NewSession() (Session, error)
	SFTP() (*sftp.Client, error)
	Close() error
}

// Session wraps ssh.Session for mocking. A session executes a single
// command.
type Session interface {
	Run(cmd string) (*models.CommandResult, error)
	Close() error
}

// ClientFactory creates SSH clients.
type ClientFactory interface {
	NewClient(network, addr string, config *ssh.ClientConfig) (Client, error)
}

// DefaultClientFactory is the default SSH client factory.
type DefaultClientFactory struct{}

// NewClient dials a new SSH connection.
func (f *DefaultClientFactory) NewClient(network, addr string, config *ssh.ClientConfig) (Client, error) {
	client, err := ssh.Dial(network, addr, config)
	if err != nil {
		return nil, err
	}
	return &defaultClient{client: client}, nil
}

type defaultClient struct {
	client *ssh.Client
}

func (c *defaultClient) NewSession() (Session, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, err
	}
	return &defaultSession{session: session}, nil
}

func (c *defaultClient) SFTP() (*sftp.Client, error) {
	return sftp.NewClient(c.client, sftp.MaxPacket(sftpMaxPacket))
}

func (c *defaultClient) Close() error {
	return c.client.Close()
}

type defaultSession struct {
	session *ssh.Session
}

// Run executes cmd and captures its output. A nonzero remote exit status
// is reported through the result, not the returned error; transport
// failures are returned as errors.
func (s *defaultSession) Run(cmd string) (*models.CommandResult, error) {
	var stdout, stderr bytes.Buffer
	s.session.Stdout = &stdout
	s.session.Stderr = &stderr

	err := s.session.Run(cmd)
	result := &models.CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitStatus = exitErr.ExitStatus()
			return result, nil
		}
		return nil, err
	}

	return result, nil
}

func (s *defaultSession) Close() error {
	return s.session.Close()
}

// Impl implements the SSH Service interface.
type Impl struct {
	clientFactory ClientFactory
	logger        zerolog.Logger
}

// New creates a new SSH service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		clientFactory: &DefaultClientFactory{},
		logger:        logger,
	}
}

// NewWithClientFactory creates a new SSH service with a custom client factory (for testing).
func NewWithClientFactory(logger zerolog.Logger, factory ClientFactory) *Impl {
	return &Impl{
		clientFactory: factory,
		logger:        logger,
	}
}

// buildConfig loads and parses the key material and resolves the host key
// policy. It never touches the network: unusable key material fails the
// run before any dial attempt.
func (s *Impl) buildConfig(cfg models.SSHConfig) (*ssh.ClientConfig, error) {
	if cfg.KeyPath == "" {
		return nil, &backup.ConfigurationError{Key: "SSH_KEY_PATH", Reason: "is required"}
	}

	key, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, &backup.ConfigurationError{Key: "SSH_KEY_PATH", Reason: "failed to read private key", Err: err}
	}

	var signer ssh.Signer
	if cfg.KeyPassphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(cfg.KeyPassphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(key)
	}
	if err != nil {
		return nil, &backup.ConfigurationError{Key: "SSH_KEY_PATH", Reason: "failed to parse private key", Err: err}
	}

	hostKeyCallback, err := s.hostKeyCallback(cfg)
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User: cfg.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         cfg.ConnectTimeout,
	}, nil
}

func (s *Impl) hostKeyCallback(cfg models.SSHConfig) (ssh.HostKeyCallback, error) {
	switch cfg.HostKeyPolicy {
	case PolicyAutoAdd, "":
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // documented default policy
	case PolicyKnownHosts:
		file := cfg.KnownHostsFile
		if file == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, &backup.ConfigurationError{Key: "SSH_KNOWN_HOSTS_FILE", Reason: "cannot resolve home directory", Err: err}
			}
			file = filepath.Join(home, ".ssh", "known_hosts")
		}
		callback, err := knownhosts.New(file)
		if err != nil {
			return nil, &backup.ConfigurationError{Key: "SSH_KNOWN_HOSTS_FILE", Reason: "failed to load known hosts", Err: err}
		}
		return callback, nil
	default:
		return nil, &backup.ConfigurationError{Key: "SSH_HOST_KEY_POLICY", Reason: "must be one of: auto-add, known-hosts"}
	}
}

// Connect opens an SSH connection to the configured host. Key material is
// read and parsed before dialing.
func (s *Impl) Connect(ctx context.Context, cfg models.SSHConfig) (Client, error) {
	s.logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("user", cfg.User).
		Msg("connecting to remote host")

	sshConfig, err := s.buildConfig(cfg)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))

	// Dial in a goroutine so the attempt can be abandoned on ctx cancel.
	clientChan := make(chan struct {
		client Client
		err    error
	}, 1)

	go func() {
		client, err := s.clientFactory.NewClient("tcp", addr, sshConfig)
		clientChan <- struct {
			client Client
			err    error
		}{client, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-clientChan:
		if res.err != nil {
			return nil, &backup.ConnectionError{Addr: addr, Err: res.err}
		}
		s.logger.Debug().Str("addr", addr).Msg("connection established")
		return res.client, nil
	}
}
