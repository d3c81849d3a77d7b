package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type FakeSessions struct {
	Session Session
	Err     error
}

func (f *FakeSessions) CurrentSession() (Session, error) {
	return f.Session, f.Err
}

func TestRequester_Sign(t *testing.T) {
	poster := &FakePoster{}
	registry := NewRegistry()
	q := NewRequester(registry, NewChannel(poster, NewPopups(&FakeOpener{}, nil), ""), &FakeSessions{Session: testSession})

	id, err := q.Sign(context.Background(), "ab12")
	require.NoError(t, err)

	pending, ok := registry.Pending(KindSign)
	require.True(t, ok)
	assert.Equal(t, id, pending.CorrelationID)
	assert.Equal(t, "ab12", pending.Context)
	assert.Equal(t, id, poster.Last().ID)
	assert.Equal(t, "ab12", poster.Last().Payload["transactionHex"])
}

func TestRequester_NoSession(t *testing.T) {
	registry := NewRegistry()
	q := NewRequester(registry, NewChannel(&FakePoster{}, NewPopups(&FakeOpener{}, nil), ""), &FakeSessions{Err: errors.New("no users stored")})

	_, err := q.Jwt(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Equal(t, 0, registry.Len())

	q = NewRequester(registry, NewChannel(&FakePoster{}, NewPopups(&FakeOpener{}, nil), ""), nil)
	_, err = q.Sign(context.Background(), "ab")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRequester_SendFailureDropsRequest(t *testing.T) {
	registry := NewRegistry()
	q := NewRequester(registry, NewChannel(nil, NewPopups(&FakeOpener{}, nil), ""), &FakeSessions{Session: testSession})

	_, err := q.Decrypt(context.Background(), "cipher")
	assert.ErrorIs(t, err, ErrNoIdentity)
	assert.Equal(t, 0, registry.Len())
}

func TestRequester_EncryptAndAbandon(t *testing.T) {
	poster := &FakePoster{}
	registry := NewRegistry()
	q := NewRequester(registry, NewChannel(poster, NewPopups(&FakeOpener{}, nil), ""), &FakeSessions{Session: testSession})

	id, err := q.Encrypt(context.Background(), "BC1YLbob", "secret")
	require.NoError(t, err)
	assert.Equal(t, "encrypt", poster.Last().Method)

	assert.True(t, q.Abandon(id))
	assert.False(t, registry.Matches(id))
}
