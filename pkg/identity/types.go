// Package identity implements the signing handshake with the DeSo identity
// provider: outbound requests are tagged with a correlation id, responses
// arrive asynchronously over a message channel and are routed back to the
// request that produced them.
package identity

import (
	"errors"
	"io"
	"time"

	"github.com/pterm/pterm"
)

// Kind is the intent of an outstanding request.
type Kind string

const (
	KindSign    Kind = "sign"
	KindJwt     Kind = "jwt"
	KindDecrypt Kind = "decrypt"
	KindEncrypt Kind = "encrypt"
)

const (
	// DefaultProviderURL is the identity service the web app uses.
	DefaultProviderURL = "https://identity.deso.org"

	// PopupFeatures are the window features every provider popup opens with.
	PopupFeatures = "toolbar=no, width=800, height=1000, top=0, left=0"

	serviceName = "identity"
)

var (
	// ErrNoIdentity means no provider frame is connected to post to.
	ErrNoIdentity = errors.New("no identity provider available")
	// ErrNoPopups means the channel has no way to open provider pages.
	ErrNoPopups = errors.New("identity popups unavailable")
	// ErrNoSession means there is no logged in account to act for.
	ErrNoSession = errors.New("no logged in identity")
	// ErrAbandoned is reported when a caller stops waiting for a response.
	ErrAbandoned = errors.New("identity request abandoned")
)

// PendingRequest is an outbound request waiting for its response.
type PendingRequest struct {
	CorrelationID string
	Kind          Kind
	CreatedAt     time.Time
	// Context is kind specific: the unsigned transaction hex for KindSign,
	// the ciphertext for KindDecrypt, the recipient for KindEncrypt.
	Context string
}

// Session holds the credentials the provider issued for an account. They are
// opaque to this package and forwarded verbatim.
type Session struct {
	PublicKey        string `json:"publicKey"`
	AccessLevel      int    `json:"accessLevel"`
	AccessLevelHmac  string `json:"accessLevelHmac"`
	EncryptedSeedHex string `json:"encryptedSeedHex"`
}

// OutboundMessage is posted to the provider frame.
type OutboundMessage struct {
	ID      string         `json:"id"`
	Service string         `json:"service"`
	Method  string         `json:"method"`
	Payload map[string]any `json:"payload"`
}

func credentials(s Session) map[string]any {
	return map[string]any{
		"accessLevel":      s.AccessLevel,
		"accessLevelHmac":  s.AccessLevelHmac,
		"encryptedSeedHex": s.EncryptedSeedHex,
	}
}

func discardLogger() *pterm.Logger {
	return pterm.DefaultLogger.WithWriter(io.Discard)
}
