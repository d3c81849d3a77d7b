// Package notifications reads and acknowledges the logged in account's
// notifications on the node.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bitcloutplus/cli/pkg/node"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pterm/pterm"
)

// ErrExpiredJWT is returned when the identity provider's token expired before
// it could be used.
var ErrExpiredJWT = errors.New("identity jwt has expired")

// Node is the subset of the node API the service calls.
type Node interface {
	GetUnreadNotificationsCount(ctx context.Context, publicKey string) (*node.UnreadNotificationsCount, error)
	SetNotificationMetadata(ctx context.Context, md node.NotificationMetadata) error
}

// ActiveAccount yields the logged in public key.
type ActiveAccount interface {
	ActivePublicKey() (string, error)
}

type Service struct {
	node     Node
	accounts ActiveAccount
	log      *pterm.Logger
	now      func() time.Time
}

func NewService(n Node, accounts ActiveAccount, log *pterm.Logger) *Service {
	if log == nil {
		log = pterm.DefaultLogger.WithWriter(io.Discard)
	}
	return &Service{node: n, accounts: accounts, log: log, now: time.Now}
}

// Count returns the unread notifications of the logged in account.
func (s *Service) Count(ctx context.Context) (*node.UnreadNotificationsCount, error) {
	pk, err := s.accounts.ActivePublicKey()
	if err != nil {
		return nil, err
	}
	return s.node.GetUnreadNotificationsCount(ctx, pk)
}

// MarkRead marks every notification of the logged in account as seen. The
// JWT authenticates the write and must come from the identity provider.
func (s *Service) MarkRead(ctx context.Context, token string) error {
	if err := s.checkExpiry(token); err != nil {
		return err
	}
	pk, err := s.accounts.ActivePublicKey()
	if err != nil {
		return err
	}

	count, err := s.node.GetUnreadNotificationsCount(ctx, pk)
	if err != nil {
		return fmt.Errorf("get unread notifications: %w", err)
	}
	index := count.LastUnreadNotificationIndex
	md := node.NotificationMetadata{
		PublicKeyBase58Check:        pk,
		LastSeenIndex:               index,
		LastUnreadNotificationIndex: index,
		UnreadNotifications:         0,
		JWT:                         token,
	}
	if err := s.node.SetNotificationMetadata(ctx, md); err != nil {
		return fmt.Errorf("set notification metadata: %w", err)
	}
	s.log.Debug("notifications marked read", s.log.Args("public_key", pk, "index", index))
	return nil
}

// checkExpiry inspects the token without verifying it; the node does that.
func (s *Service) checkExpiry(token string) error {
	if token == "" {
		return fmt.Errorf("empty jwt")
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("parse jwt: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return fmt.Errorf("parse jwt: %w", err)
	}
	if exp != nil && !exp.After(s.now()) {
		return ErrExpiredJWT
	}
	return nil
}
