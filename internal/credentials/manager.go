// Package credentials reads and writes age-encrypted credential files.
package credentials

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
	"gopkg.in/yaml.v3"
)

// Credentials holds the secrets that can be sourced from an encrypted file
// instead of the process environment.
type Credentials struct {
	DBPassword       string `yaml:"db_password,omitempty"`
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase,omitempty"`
}

// Manager encrypts and decrypts a credentials file with an X25519 key pair.
// A manager built from an identity file can only decrypt; one built from a
// recipient file can only encrypt.
type Manager struct {
	credsFile string
	key       string
	isPublic  bool
}

// NewManager creates a manager that decrypts credsFile with the age
// identity stored at identityPath.
func NewManager(credsFile, identityPath string) (*Manager, error) {
	key, err := loadIdentity(identityPath)
	if err != nil {
		return nil, err
	}

	return &Manager{
		credsFile: credsFile,
		key:       key,
		isPublic:  false,
	}, nil
}

// NewEncryptionManager creates a manager that encrypts credentials for the
// age recipient stored at recipientPath.
func NewEncryptionManager(credsFile, recipientPath string) (*Manager, error) {
	key, err := loadRecipient(recipientPath)
	if err != nil {
		return nil, err
	}

	return &Manager{
		credsFile: credsFile,
		key:       key,
		isPublic:  true,
	}, nil
}

// Load decrypts and parses the credentials file.
func (m *Manager) Load() (*Credentials, error) {
	if m.isPublic {
		return nil, fmt.Errorf("cannot decrypt with a recipient key")
	}

	encrypted, err := os.ReadFile(m.credsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read encrypted file: %w", err)
	}

	identity, err := age.ParseX25519Identity(m.key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse identity: %w", err)
	}

	decrypted, err := decrypt(encrypted, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}

	var creds Credentials
	if err := yaml.Unmarshal(decrypted, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse decrypted credentials: %w", err)
	}

	return &creds, nil
}

// EncryptFile validates the plaintext YAML at inputPath and writes its
// encrypted form to the credentials file.
func (m *Manager) EncryptFile(inputPath string) error {
	if !m.isPublic {
		return fmt.Errorf("cannot encrypt with an identity key")
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	// Parse to catch malformed files before they are encrypted.
	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return fmt.Errorf("invalid credentials format: %w", err)
	}

	recipient, err := age.ParseX25519Recipient(m.key)
	if err != nil {
		return fmt.Errorf("failed to parse recipient: %w", err)
	}

	encrypted, err := encrypt(data, recipient)
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	return os.WriteFile(m.credsFile, encrypted, 0o600)
}

func encrypt(data []byte, recipient age.Recipient) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, err
	}

	if _, err := w.Write(data); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decrypt(encrypted []byte, identity age.Identity) ([]byte, error) {
	reader, err := age.Decrypt(bytes.NewReader(encrypted), identity)
	if err != nil {
		return nil, err
	}

	return io.ReadAll(reader)
}

func loadIdentity(keyFile string) (string, error) {
	key, err := loadKeyLine(keyFile)
	if err != nil {
		return "", fmt.Errorf("failed to read identity file: %w", err)
	}
	if !strings.HasPrefix(key, "AGE-SECRET-KEY-") {
		return "", fmt.Errorf("invalid identity format in %s", keyFile)
	}

	return key, nil
}

func loadRecipient(keyFile string) (string, error) {
	key, err := loadKeyLine(keyFile)
	if err != nil {
		return "", fmt.Errorf("failed to read recipient file: %w", err)
	}
	if !strings.HasPrefix(key, "age1") {
		return "", fmt.Errorf("invalid recipient format in %s", keyFile)
	}

	return key, nil
}

// loadKeyLine returns the first non-comment line of an age key file.
// age-keygen writes "#" comment lines above the key itself.
func loadKeyLine(keyFile string) (string, error) {
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return "", err
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line, nil
	}

	return "", fmt.Errorf("no key found in %s", keyFile)
}
