package ssh

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fgeck/mysql-remote-backup/internal/backup"
	"github.com/fgeck/mysql-remote-backup/internal/models"
	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// Mock implementations
type mockSession struct {
	runFunc   func(cmd string) (*models.CommandResult, error)
	closeFunc func() error
}

func (m *mockSession) Run(cmd string) (*models.CommandResult, error) {
	if m.runFunc != nil {
		return m.runFunc(cmd)
	}
	return &models.CommandResult{}, nil
}

func (m *mockSession) Close() error {
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

type mockClient struct {
	newSessionFunc func() (Session, error)
	sftpFunc       func() (*sftp.Client, error)
	closeFunc      func() error
}

func (m *mockClient) NewSession() (Session, error) {
	if m.newSessionFunc != nil {
		return m.newSessionFunc()
	}
	return &mockSession{}, nil
}

func (m *mockClient) SFTP() (*sftp.Client, error) {
	if m.sftpFunc != nil {
		return m.sftpFunc()
	}
	return nil, errors.New("sftp not available in mock")
}

func (m *mockClient) Close() error {
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

type mockClientFactory struct {
	newClientFunc func(network, addr string, config *ssh.ClientConfig) (Client, error)
}

func (m *mockClientFactory) NewClient(network, addr string, config *ssh.ClientConfig) (Client, error) {
	if m.newClientFunc != nil {
		return m.newClientFunc(network, addr, config)
	}
	return &mockClient{}, nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// generateTestKey generates a valid ed25519 key for testing using crypto/ed25519.
func generateTestKey(t *testing.T) []byte {
	t.Helper()

	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	pemBlock, err := ssh.MarshalPrivateKey(privateKey, "")
	require.NoError(t, err)

	return pem.EncodeToMemory(pemBlock)
}

// generateEncryptedTestKey generates an ed25519 key protected by passphrase.
func generateEncryptedTestKey(t *testing.T, passphrase string) []byte {
	t.Helper()

	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	pemBlock, err := ssh.MarshalPrivateKeyWithPassphrase(privateKey, "", []byte(passphrase))
	require.NoError(t, err)

	return pem.EncodeToMemory(pemBlock)
}

func writeTestKey(t *testing.T, key []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, key, 0o600))

	return path
}

func testConfig(t *testing.T) models.SSHConfig {
	return models.SSHConfig{
		Host:    "192.168.1.100",
		Port:    22,
		User:    "backup",
		KeyPath: writeTestKey(t, generateTestKey(t)),
	}
}

func TestConnect_Success(t *testing.T) {
	var capturedAddr string
	var capturedConfig *ssh.ClientConfig

	factory := &mockClientFactory{
		newClientFunc: func(network, addr string, config *ssh.ClientConfig) (Client, error) {
			capturedAddr = addr
			capturedConfig = config
			return &mockClient{}, nil
		},
	}

	svc := NewWithClientFactory(testLogger(), factory)
	client, err := svc.Connect(context.Background(), testConfig(t))

	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, "192.168.1.100:22", capturedAddr)
	require.NotNil(t, capturedConfig)
	assert.Equal(t, "backup", capturedConfig.User)
	assert.Len(t, capturedConfig.Auth, 1)
}

func TestConnect_DialFailure(t *testing.T) {
	factory := &mockClientFactory{
		newClientFunc: func(network, addr string, config *ssh.ClientConfig) (Client, error) {
			return nil, errors.New("connection refused")
		},
	}

	svc := NewWithClientFactory(testLogger(), factory)
	_, err := svc.Connect(context.Background(), testConfig(t))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to 192.168.1.100:22")

	var connErr *backup.ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, "192.168.1.100:22", connErr.Addr)
}

func TestConnect_MissingKeyFile(t *testing.T) {
	dialed := false
	factory := &mockClientFactory{
		newClientFunc: func(network, addr string, config *ssh.ClientConfig) (Client, error) {
			dialed = true
			return &mockClient{}, nil
		},
	}

	svc := NewWithClientFactory(testLogger(), factory)
	cfg := testConfig(t)
	cfg.KeyPath = "/nonexistent/id_ed25519"

	_, err := svc.Connect(context.Background(), cfg)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read private key")
	assert.False(t, dialed)

	var cfgErr *backup.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "SSH_KEY_PATH", cfgErr.Key)
}

func TestConnect_InvalidKey(t *testing.T) {
	dialed := false
	factory := &mockClientFactory{
		newClientFunc: func(network, addr string, config *ssh.ClientConfig) (Client, error) {
			dialed = true
			return &mockClient{}, nil
		},
	}

	svc := NewWithClientFactory(testLogger(), factory)
	cfg := testConfig(t)
	cfg.KeyPath = writeTestKey(t, []byte("invalid key"))

	_, err := svc.Connect(context.Background(), cfg)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse private key")
	assert.False(t, dialed)
}

func TestConnect_EmptyKeyPath(t *testing.T) {
	svc := NewWithClientFactory(testLogger(), &mockClientFactory{})
	cfg := testConfig(t)
	cfg.KeyPath = ""

	_, err := svc.Connect(context.Background(), cfg)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "SSH_KEY_PATH is required")
}

func TestConnect_EncryptedKey(t *testing.T) {
	factory := &mockClientFactory{}
	svc := NewWithClientFactory(testLogger(), factory)

	cfg := testConfig(t)
	cfg.KeyPath = writeTestKey(t, generateEncryptedTestKey(t, "correct horse"))
	cfg.KeyPassphrase = "correct horse"

	client, err := svc.Connect(context.Background(), cfg)

	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestConnect_EncryptedKeyWrongPassphrase(t *testing.T) {
	dialed := false
	factory := &mockClientFactory{
		newClientFunc: func(network, addr string, config *ssh.ClientConfig) (Client, error) {
			dialed = true
			return &mockClient{}, nil
		},
	}

	svc := NewWithClientFactory(testLogger(), factory)
	cfg := testConfig(t)
	cfg.KeyPath = writeTestKey(t, generateEncryptedTestKey(t, "correct horse"))
	cfg.KeyPassphrase = "wrong"

	_, err := svc.Connect(context.Background(), cfg)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse private key")
	assert.False(t, dialed)
}

func TestConnect_ContextCancelled(t *testing.T) {
	factory := &mockClientFactory{
		newClientFunc: func(network, addr string, config *ssh.ClientConfig) (Client, error) {
			// Simulate slow connection
			time.Sleep(100 * time.Millisecond)
			return &mockClient{}, nil
		},
	}

	svc := NewWithClientFactory(testLogger(), factory)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := svc.Connect(ctx, testConfig(t))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConnect_UnknownPolicyDoesNotDial(t *testing.T) {
	dialed := false
	factory := &mockClientFactory{
		newClientFunc: func(network, addr string, config *ssh.ClientConfig) (Client, error) {
			dialed = true
			return &mockClient{}, nil
		},
	}

	svc := NewWithClientFactory(testLogger(), factory)
	cfg := testConfig(t)
	cfg.HostKeyPolicy = "strict"

	_, err := svc.Connect(context.Background(), cfg)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "SSH_HOST_KEY_POLICY must be one of")
	assert.False(t, dialed)
}

func TestBuildConfig_Defaults(t *testing.T) {
	svc := NewWithClientFactory(testLogger(), &mockClientFactory{})

	sshConfig, err := svc.buildConfig(testConfig(t))

	require.NoError(t, err)
	assert.Equal(t, "backup", sshConfig.User)
	assert.NotNil(t, sshConfig.HostKeyCallback)
	assert.Zero(t, sshConfig.Timeout) // No timeout unless configured
}

func TestBuildConfig_ConnectTimeout(t *testing.T) {
	svc := NewWithClientFactory(testLogger(), &mockClientFactory{})

	cfg := testConfig(t)
	cfg.ConnectTimeout = 5 * time.Second

	sshConfig, err := svc.buildConfig(cfg)

	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, sshConfig.Timeout)
}

func TestBuildConfig_AutoAddPolicy(t *testing.T) {
	svc := NewWithClientFactory(testLogger(), &mockClientFactory{})

	cfg := testConfig(t)
	cfg.HostKeyPolicy = PolicyAutoAdd

	sshConfig, err := svc.buildConfig(cfg)

	require.NoError(t, err)
	assert.NotNil(t, sshConfig.HostKeyCallback)
}

func TestBuildConfig_KnownHostsPolicy(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)

	knownHosts := filepath.Join(t.TempDir(), "known_hosts")
	line := "192.168.1.100 " + string(ssh.MarshalAuthorizedKey(sshPub))
	require.NoError(t, os.WriteFile(knownHosts, []byte(line), 0o600))

	svc := NewWithClientFactory(testLogger(), &mockClientFactory{})

	cfg := testConfig(t)
	cfg.HostKeyPolicy = PolicyKnownHosts
	cfg.KnownHostsFile = knownHosts

	sshConfig, err := svc.buildConfig(cfg)

	require.NoError(t, err)
	assert.NotNil(t, sshConfig.HostKeyCallback)
}

func TestBuildConfig_KnownHostsFileMissing(t *testing.T) {
	svc := NewWithClientFactory(testLogger(), &mockClientFactory{})

	cfg := testConfig(t)
	cfg.HostKeyPolicy = PolicyKnownHosts
	cfg.KnownHostsFile = filepath.Join(t.TempDir(), "missing_known_hosts")

	_, err := svc.buildConfig(cfg)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load known hosts")
}
