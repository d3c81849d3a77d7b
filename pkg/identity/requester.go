package identity

import (
	"context"
	"errors"
	"fmt"
)

// SessionSource yields the credentials of the active account.
type SessionSource interface {
	CurrentSession() (Session, error)
}

// Requester starts correlated requests: it registers the request, then
// sends it through the channel. A request that could not be sent is dropped
// from the registry again.
type Requester struct {
	registry *Registry
	channel  *Channel
	sessions SessionSource
}

func NewRequester(registry *Registry, channel *Channel, sessions SessionSource) *Requester {
	return &Requester{registry: registry, channel: channel, sessions: sessions}
}

func (q *Requester) session() (Session, error) {
	if q.sessions == nil {
		return Session{}, ErrNoSession
	}
	s, err := q.sessions.CurrentSession()
	if errors.Is(err, ErrNoSession) {
		return Session{}, err
	}
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	return s, nil
}

func (q *Requester) start(kind Kind, reqContext string, send func(s Session, id string) error) (string, error) {
	s, err := q.session()
	if err != nil {
		return "", err
	}
	id := q.registry.Register(kind, reqContext)
	if err := send(s, id); err != nil {
		q.registry.Abandon(id)
		return "", err
	}
	return id, nil
}

// Sign asks the provider to sign transactionHex for the active account and
// returns the request's correlation id.
func (q *Requester) Sign(ctx context.Context, transactionHex string) (string, error) {
	return q.start(KindSign, transactionHex, func(s Session, id string) error {
		return q.channel.SendSign(ctx, s, transactionHex, id)
	})
}

// Jwt asks the provider for a JWT of the active account.
func (q *Requester) Jwt(ctx context.Context) (string, error) {
	return q.start(KindJwt, "", func(s Session, id string) error {
		return q.channel.RequestJwt(ctx, s, id)
	})
}

// Decrypt asks the provider to decrypt encryptedHex for the active account.
func (q *Requester) Decrypt(ctx context.Context, encryptedHex string) (string, error) {
	return q.start(KindDecrypt, encryptedHex, func(s Session, id string) error {
		return q.channel.RequestDecrypt(ctx, s, []string{encryptedHex}, id)
	})
}

// Encrypt asks the provider to encrypt message for recipientPublicKey.
func (q *Requester) Encrypt(ctx context.Context, recipientPublicKey, message string) (string, error) {
	return q.start(KindEncrypt, recipientPublicKey, func(s Session, id string) error {
		return q.channel.RequestEncrypt(ctx, s, recipientPublicKey, message, id)
	})
}

// Abandon stops tracking a request the caller no longer waits for.
func (q *Requester) Abandon(id string) bool {
	return q.registry.Abandon(id)
}
