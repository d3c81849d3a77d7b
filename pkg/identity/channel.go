package identity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Poster delivers a message to the provider frame embedded in the host page.
// Implementations return ErrNoIdentity when no frame is attached.
type Poster interface {
	Post(ctx context.Context, msg OutboundMessage) error
}

// Channel sends requests to the identity provider, either to its embedded
// frame or by opening one of its pages in a popup.
type Channel struct {
	poster      Poster
	popups      *Popups
	providerURL string
}

func NewChannel(poster Poster, popups *Popups, providerURL string) *Channel {
	if strings.TrimSpace(providerURL) == "" {
		providerURL = DefaultProviderURL
	}
	return &Channel{
		poster:      poster,
		popups:      popups,
		providerURL: strings.TrimRight(providerURL, "/"),
	}
}

// ProviderURL returns the base URL popups are opened on.
func (c *Channel) ProviderURL() string {
	return c.providerURL
}

// Popups returns the popup owner the channel opens windows through.
func (c *Channel) Popups() *Popups {
	return c.popups
}

func (c *Channel) post(ctx context.Context, id, method string, payload map[string]any) error {
	if c.poster == nil {
		return ErrNoIdentity
	}
	err := c.poster.Post(ctx, OutboundMessage{
		ID:      id,
		Service: serviceName,
		Method:  method,
		Payload: payload,
	})
	if err != nil && !errors.Is(err, ErrNoIdentity) {
		return fmt.Errorf("post %s request: %w", method, err)
	}
	return err
}

// SendSign asks the provider to sign transactionHex.
func (c *Channel) SendSign(ctx context.Context, s Session, transactionHex, id string) error {
	payload := credentials(s)
	payload["transactionHex"] = transactionHex
	return c.post(ctx, id, "sign", payload)
}

// RequestJwt asks the provider for a JWT of the session's account.
func (c *Channel) RequestJwt(ctx context.Context, s Session, id string) error {
	return c.post(ctx, id, "jwt", credentials(s))
}

// RequestDecrypt asks the provider to decrypt messages addressed to the
// session's account.
func (c *Channel) RequestDecrypt(ctx context.Context, s Session, encryptedHexes []string, id string) error {
	payload := credentials(s)
	payload["encryptedHexes"] = encryptedHexes
	return c.post(ctx, id, "decrypt", payload)
}

// RequestEncrypt asks the provider to encrypt message for recipientPublicKey.
func (c *Channel) RequestEncrypt(ctx context.Context, s Session, recipientPublicKey, message, id string) error {
	payload := credentials(s)
	payload["recipientPublicKey"] = recipientPublicKey
	payload["message"] = message
	return c.post(ctx, id, "encrypt", payload)
}

// ApproveURL returns the provider page that approves transactionHex.
func (c *Channel) ApproveURL(transactionHex string) string {
	return c.providerURL + "/approve?tx=" + url.QueryEscape(transactionHex)
}

func (c *Channel) open(ctx context.Context, pageURL string) error {
	if c.popups == nil {
		return ErrNoPopups
	}
	return c.popups.Open(ctx, pageURL)
}

// OpenApprovalPopup opens the provider's approval page for transactionHex.
func (c *Channel) OpenApprovalPopup(ctx context.Context, transactionHex string) error {
	return c.open(ctx, c.ApproveURL(transactionHex))
}

// OpenLogoutPopup opens the provider's logout page for publicKey.
func (c *Channel) OpenLogoutPopup(ctx context.Context, publicKey string) error {
	return c.open(ctx, c.providerURL+"/logout?publicKey="+url.QueryEscape(publicKey))
}

// OpenLoginPopup opens the provider's login page requesting accessLevel.
func (c *Channel) OpenLoginPopup(ctx context.Context, accessLevel int) error {
	return c.open(ctx, c.providerURL+"/log-in?accessLevelRequest="+strconv.Itoa(accessLevel))
}
