package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bitcloutplus/cli/pkg/identity"
	"github.com/bitcloutplus/cli/pkg/node"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type FakeNode struct {
	CountFunc func(ctx context.Context, publicKey string) (*node.UnreadNotificationsCount, error)
	Metadata  []node.NotificationMetadata
	SetErr    error
}

func (f *FakeNode) GetUnreadNotificationsCount(ctx context.Context, publicKey string) (*node.UnreadNotificationsCount, error) {
	if f.CountFunc != nil {
		return f.CountFunc(ctx, publicKey)
	}
	return &node.UnreadNotificationsCount{NotificationsCount: 3, LastUnreadNotificationIndex: 42}, nil
}

func (f *FakeNode) SetNotificationMetadata(ctx context.Context, md node.NotificationMetadata) error {
	f.Metadata = append(f.Metadata, md)
	return f.SetErr
}

type fakeAccount string

func (a fakeAccount) ActivePublicKey() (string, error) {
	if a == "" {
		return "", identity.ErrNoSession
	}
	return string(a), nil
}

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func signToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

func newService(n Node, pk string) *Service {
	s := NewService(n, fakeAccount(pk), nil)
	s.now = func() time.Time { return now }
	return s
}

func TestService_MarkRead(t *testing.T) {
	n := &FakeNode{}
	s := newService(n, "BC1YLalice")
	token := signToken(t, now.Add(time.Minute))

	require.NoError(t, s.MarkRead(context.Background(), token))

	require.Len(t, n.Metadata, 1)
	assert.Equal(t, node.NotificationMetadata{
		PublicKeyBase58Check:        "BC1YLalice",
		LastSeenIndex:               42,
		LastUnreadNotificationIndex: 42,
		UnreadNotifications:         0,
		JWT:                         token,
	}, n.Metadata[0])
}

func TestService_MarkReadRejects(t *testing.T) {
	tests := []struct {
		name    string
		token   func(t *testing.T) string
		pk      string
		wantErr error
		errMsg  string
	}{
		{
			name:    "expired token",
			token:   func(t *testing.T) string { return signToken(t, now.Add(-time.Second)) },
			pk:      "BC1YLalice",
			wantErr: ErrExpiredJWT,
		},
		{
			name:   "garbage token",
			token:  func(t *testing.T) string { return "not-a-jwt" },
			pk:     "BC1YLalice",
			errMsg: "parse jwt",
		},
		{
			name:   "empty token",
			token:  func(t *testing.T) string { return "" },
			pk:     "BC1YLalice",
			errMsg: "empty jwt",
		},
		{
			name:    "logged out",
			token:   func(t *testing.T) string { return signToken(t, now.Add(time.Hour)) },
			wantErr: identity.ErrNoSession,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &FakeNode{}
			err := newService(n, tt.pk).MarkRead(context.Background(), tt.token(t))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
			assert.Empty(t, n.Metadata)
		})
	}
}

func TestService_MarkReadCountFailure(t *testing.T) {
	n := &FakeNode{CountFunc: func(ctx context.Context, publicKey string) (*node.UnreadNotificationsCount, error) {
		return nil, errors.New("boom")
	}}
	err := newService(n, "BC1YLalice").MarkRead(context.Background(), signToken(t, now.Add(time.Hour)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get unread notifications")
	assert.Empty(t, n.Metadata)
}

func TestService_Count(t *testing.T) {
	var asked string
	n := &FakeNode{CountFunc: func(ctx context.Context, publicKey string) (*node.UnreadNotificationsCount, error) {
		asked = publicKey
		return &node.UnreadNotificationsCount{NotificationsCount: 7}, nil
	}}

	count, err := newService(n, "BC1YLbob").Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), count.NotificationsCount)
	assert.Equal(t, "BC1YLbob", asked)
}
