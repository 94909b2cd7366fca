package auth

import (
	"encoding/json"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "favescreen"
	keyringPrefix  = "service_"
)

// KeyringStore implements CredentialStore using the system keychain
type KeyringStore struct{}

// NewKeyringStore creates a new keyring-based credential store
func NewKeyringStore() (*KeyringStore, error) {
	// Test if keyring is available
	testKey := "test_availability"
	err := keyring.Set(keyringService, testKey, "test")
	if err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves credentials to the system keychain
func (k *KeyringStore) Store(cred *Credential) error {
	if cred == nil || cred.Service == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	key := keyringPrefix + cred.Service
	if err := keyring.Set(keyringService, key, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	return nil
}

// Retrieve gets credentials from the system keychain
func (k *KeyringStore) Retrieve(service string) (*Credential, error) {
	if service == "" {
		return nil, ErrInvalidCredentials
	}

	key := keyringPrefix + service
	data, err := keyring.Get(keyringService, key)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}

	return &cred, nil
}

// List returns all stored credentials from the keychain.
// go-keyring cannot enumerate keys, so the known service names are probed.
func (k *KeyringStore) List() ([]*Credential, error) {
	var creds []*Credential
	for _, service := range []string{"bluesky", "mastodon", "twitter", "frame"} {
		if cred, err := k.Retrieve(service); err == nil {
			creds = append(creds, cred)
		}
	}
	return creds, nil
}

// Delete removes credentials from the system keychain
func (k *KeyringStore) Delete(service string) error {
	if service == "" {
		return ErrInvalidCredentials
	}

	key := keyringPrefix + service
	err := keyring.Delete(keyringService, key)
	if err != nil {
		if err == keyring.ErrNotFound {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	return nil
}

// Exists checks if credentials exist in the keychain
func (k *KeyringStore) Exists(service string) bool {
	if service == "" {
		return false
	}

	key := keyringPrefix + service
	_, err := keyring.Get(keyringService, key)
	return err == nil
}
