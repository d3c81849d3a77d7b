package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bitcloutplus/cli/pkg/identity"
	"github.com/tidwall/gjson"
)

// ErrUnknownAccount is returned when switching to an account the provider
// never reported.
var ErrUnknownAccount = errors.New("account is not logged in")

// User is one account of the provider's users object.
type User struct {
	PublicKey string
	Session   identity.Session
}

// Accounts is the account view of a Store.
type Accounts struct {
	store Store
}

func NewAccounts(store Store) *Accounts {
	return &Accounts{store: store}
}

// ActivePublicKey returns the logged in account.
func (a *Accounts) ActivePublicKey() (string, error) {
	var pk string
	err := GetJSON(a.store, KeyLastLoggedInUser, &pk)
	if errors.Is(err, ErrNotFound) || (err == nil && pk == "") {
		return "", identity.ErrNoSession
	}
	if err != nil {
		return "", err
	}
	return pk, nil
}

// CurrentSession returns the provider credentials of the logged in account.
func (a *Accounts) CurrentSession() (identity.Session, error) {
	pk, err := a.ActivePublicKey()
	if err != nil {
		return identity.Session{}, err
	}
	users, err := a.Users()
	if err != nil {
		return identity.Session{}, err
	}
	for _, u := range users {
		if u.PublicKey == pk {
			return u.Session, nil
		}
	}
	return identity.Session{}, fmt.Errorf("%w: no credentials stored for %s", identity.ErrNoSession, pk)
}

// Users returns the stored accounts in the order the provider listed them.
func (a *Accounts) Users() ([]User, error) {
	raw, err := a.store.Get(KeyIdentityUsers)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("decode %s: invalid json", KeyIdentityUsers)
	}

	var users []User
	var decodeErr error
	gjson.Parse(raw).ForEach(func(key, value gjson.Result) bool {
		var s identity.Session
		if err := json.Unmarshal([]byte(value.Raw), &s); err != nil {
			decodeErr = fmt.Errorf("decode user %s: %w", key.String(), err)
			return false
		}
		s.PublicKey = key.String()
		users = append(users, User{PublicKey: key.String(), Session: s})
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return users, nil
}

// ReplaceUsers stores the provider's users object verbatim and switches to
// its first account. An empty list logs the user out.
func (a *Accounts) ReplaceUsers(raw json.RawMessage, publicKeys []string) (string, error) {
	if err := a.store.Set(KeyIdentityUsers, string(raw)); err != nil {
		return "", err
	}
	if len(publicKeys) == 0 {
		return "", a.store.Delete(KeyLastLoggedInUser)
	}
	if err := SetJSON(a.store, KeyLastLoggedInUser, publicKeys[0]); err != nil {
		return "", err
	}
	return publicKeys[0], nil
}

// Switch makes publicKey the logged in account.
func (a *Accounts) Switch(publicKey string) error {
	users, err := a.Users()
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.PublicKey == publicKey {
			return SetJSON(a.store, KeyLastLoggedInUser, publicKey)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownAccount, publicKey)
}

// IdentityServiceURL returns the provider the accounts were issued by.
func (a *Accounts) IdentityServiceURL() (string, error) {
	var u string
	err := GetJSON(a.store, KeyLastIdentityServiceURL, &u)
	if errors.Is(err, ErrNotFound) || (err == nil && u == "") {
		return identity.DefaultProviderURL, nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(u, "/"), nil
}

func (a *Accounts) SetIdentityServiceURL(u string) error {
	return SetJSON(a.store, KeyLastIdentityServiceURL, strings.TrimSuffix(u, "/"))
}

// LongPost reports whether long posts are enabled. The flag is initialised to
// true the first time it is read.
func LongPost(s Store) (bool, error) {
	var enabled bool
	err := GetJSON(s, KeyLongPost, &enabled)
	if errors.Is(err, ErrNotFound) {
		return true, SetJSON(s, KeyLongPost, true)
	}
	if err != nil {
		return false, err
	}
	return enabled, nil
}

func SetLongPost(s Store, enabled bool) error {
	return SetJSON(s, KeyLongPost, enabled)
}
