// Package state persists the companion's local state: the identity provider's
// account list, the active account and user preferences. Values are stored as
// JSON strings under fixed keys, the same shape the web app keeps in local
// storage.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Keys of the persisted state.
const (
	KeyLastLoggedInUser       = "lastLoggedInUser"
	KeyIdentityUsers          = "identityUsers"
	KeyLastIdentityServiceURL = "lastIdentityServiceURL"
	KeyLongPost               = "longPost"
)

// ErrNotFound is returned by Get when a key has no value.
var ErrNotFound = errors.New("state key not found")

// Store is a string key/value store.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// GetJSON decodes the value stored under key into v.
func GetJSON(s Store, key string, v any) error {
	raw, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// SetJSON stores v encoded as JSON under key.
func SetJSON(s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(key, string(raw))
}
