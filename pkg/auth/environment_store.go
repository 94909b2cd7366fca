package auth

import (
	"os"
	"strings"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables,
// mainly for headless and CI runs where no keychain is available. For a
// service NAME it reads FAVESCREEN_NAME_USERNAME, FAVESCREEN_NAME_PASSWORD
// and FAVESCREEN_NAME_TOKEN.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables
func (e *EnvironmentStore) Retrieve(service string) (*Credential, error) {
	if service == "" {
		return nil, ErrInvalidCredentials
	}

	prefix := "FAVESCREEN_" + strings.ToUpper(service) + "_"
	username := os.Getenv(prefix + "USERNAME")
	password := os.Getenv(prefix + "PASSWORD")
	token := os.Getenv(prefix + "TOKEN")

	if password == "" && token == "" {
		return nil, ErrCredentialsNotFound
	}

	return &Credential{
		Service:      service,
		Username:     username,
		Password:     password,
		Token:        token,
		LastModified: time.Now(),
	}, nil
}

// List returns the credentials present in the environment
func (e *EnvironmentStore) List() ([]*Credential, error) {
	var creds []*Credential
	for _, service := range []string{"bluesky", "mastodon", "twitter", "frame"} {
		if cred, err := e.Retrieve(service); err == nil {
			creds = append(creds, cred)
		}
	}
	return creds, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(service string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(service string) bool {
	_, err := e.Retrieve(service)
	return err == nil
}
