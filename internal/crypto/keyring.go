package crypto

import (
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
)

// Keyring provides secure key storage abstraction
type Keyring interface {
	GetKey() (string, error)
	SetKey(password string) error
	DeleteKey() error
	IsAvailable() bool
}

const (
	ServiceName = "invoicer"
	KeyName     = "db-encryption-key"

	// KeyEnv supplies the database key without touching the OS keyring
	KeyEnv = "INVOICER_DB_KEY"
)

var ErrKeyNotFound = errors.New("encryption key not found")

// NewKeyring returns a keyring that prefers INVOICER_DB_KEY and otherwise
// uses the OS keychain (macOS Keychain, Secret Service, Windows Credential
// Manager)
func NewKeyring() Keyring {
	return &systemKeyring{}
}

type systemKeyring struct{}

// GetKey retrieves the encryption key from the environment or the keychain
func (k *systemKeyring) GetKey() (string, error) {
	if key := os.Getenv(KeyEnv); key != "" {
		return key, nil
	}

	key, err := keyring.Get(ServiceName, KeyName)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to retrieve key from keychain: %w", err)
	}

	if key == "" {
		return "", errors.New("encryption key is empty")
	}

	return key, nil
}

// SetKey stores the encryption key in the keychain
func (k *systemKeyring) SetKey(password string) error {
	if password == "" {
		return errors.New("password cannot be empty")
	}

	if err := keyring.Set(ServiceName, KeyName, password); err != nil {
		return fmt.Errorf("failed to store key in keychain (set %s instead): %w", KeyEnv, err)
	}

	return nil
}

// DeleteKey removes the encryption key from the keychain
func (k *systemKeyring) DeleteKey() error {
	err := keyring.Delete(ServiceName, KeyName)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("failed to delete key from keychain: %w", err)
	}

	return nil
}

// IsAvailable reports whether a key can be stored, either through the
// environment or a working keychain
func (k *systemKeyring) IsAvailable() bool {
	if os.Getenv(KeyEnv) != "" {
		return true
	}

	// Test keychain availability with a throwaway key
	testKey := "__invoicer_availability_test__"
	if err := keyring.Set(ServiceName, testKey, "test"); err != nil {
		return false
	}

	_ = keyring.Delete(ServiceName, testKey)
	return true
}
