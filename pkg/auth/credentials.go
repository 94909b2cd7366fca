// Package auth stores the secrets the archiver needs: service API tokens,
// app passwords and the photo-frame account. Storage prefers the system
// keychain, falls back to an encrypted file, and reads environment
// variables as a last resort.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Credential holds the secrets for one service, keyed by service name
// ("bluesky", "mastodon", "twitter", "frame").
type Credential struct {
	Service      string            `json:"service"`
	Username     string            `json:"username,omitempty"`
	Password     string            `json:"password,omitempty"`
	Token        string            `json:"token,omitempty"`
	Cookies      map[string]string `json:"cookies,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves credentials for a service
	Store(cred *Credential) error

	// Retrieve gets credentials for a specific service
	Retrieve(service string) (*Credential, error)

	// List returns all stored credentials
	List() ([]*Credential, error)

	// Delete removes credentials for a specific service
	Delete(service string) error

	// Exists checks if credentials exist for a service
	Exists(service string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a new credential manager with appropriate storage backends
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	// Try keyring first (system keychain)
	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	// Always add encrypted file store as fallback
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	// Add environment store as last resort
	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves credentials using the first available store
func (m *Manager) Store(cred *Credential) error {
	if cred.Service == "" {
		return errors.New("service is required")
	}
	if cred.Password == "" && cred.Token == "" && len(cred.Cookies) == 0 {
		return errors.New("credential has no secret material")
	}

	cred.LastModified = time.Now()

	// Try each store in order
	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(cred); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets credentials from the first store that has them
func (m *Manager) Retrieve(service string) (*Credential, error) {
	for _, store := range m.stores {
		if cred, err := store.Retrieve(service); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("credentials not found for service: %s", service)
}

// List returns all stored credentials from all stores
func (m *Manager) List() ([]*Credential, error) {
	credMap := make(map[string]*Credential)

	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, cred := range creds {
			// Use the most recently modified version
			if existing, ok := credMap[cred.Service]; !ok || cred.LastModified.After(existing.LastModified) {
				credMap[cred.Service] = cred
			}
		}
	}

	var result []*Credential
	for _, cred := range credMap {
		result = append(result, cred)
	}

	return result, nil
}

// Delete removes credentials from all stores
func (m *Manager) Delete(service string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(service); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("credentials not found for service: %s", service)
	}

	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "favescreen")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "favescreen")
	default: // Linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "favescreen")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "favescreen")
		}
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Sanitize creates a copy of the credential with secret material masked
func Sanitize(cred *Credential) *Credential {
	if cred == nil {
		return nil
	}

	masked := &Credential{
		Service:      cred.Service,
		Username:     cred.Username,
		Password:     maskString(cred.Password),
		Token:        maskString(cred.Token),
		LastModified: cred.LastModified,
	}
	if len(cred.Cookies) > 0 {
		masked.Cookies = make(map[string]string, len(cred.Cookies))
		for name, value := range cred.Cookies {
			masked.Cookies[name] = maskString(value)
		}
	}
	return masked
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
