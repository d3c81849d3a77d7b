package identity

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// MethodLogin marks messages sent by a provider popup when it finishes. They
// are not correlated with a pending request.
const MethodLogin = "login"

// Message is an inbound message from the provider frame or a popup.
type Message struct {
	ID      string          `json:"id"`
	Service string          `json:"service,omitempty"`
	Method  string          `json:"method"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ParseMessage decodes the data of a browser message event.
func ParseMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("invalid identity message: %w", err)
	}
	return m, nil
}

// HasPayload reports whether the message carries a payload object.
func (m Message) HasPayload() bool {
	return truthy(gjson.ParseBytes(m.Payload))
}

// Response is the decoded payload of an inbound message. Exactly one of the
// concrete types below is produced for each payload.
type Response interface {
	responseType() string
}

// SignedTransaction carries a transaction the provider signed.
type SignedTransaction struct {
	SignedTransactionHex string
}

// ApprovalRequired means the provider needs the user to approve the
// transaction in a popup before it signs it.
type ApprovalRequired struct {
	// SignedTransactionHex is set when the provider sent a signature along
	// with the flag.
	SignedTransactionHex string
}

// EncryptedUnlockable is unlockable content encrypted for a recipient.
type EncryptedUnlockable struct {
	EncryptedMessage string
}

// DecryptedUnlockable is unlockable content in plain text.
type DecryptedUnlockable struct {
	Text string
}

// JWT is a token the provider issued for the active account.
type JWT struct {
	Token string
}

// AccountList is the provider's account list after a login or logout.
type AccountList struct {
	// Raw is the users object exactly as the provider sent it.
	Raw json.RawMessage
	// PublicKeys lists the accounts in the provider's order.
	PublicKeys []string
}

// Malformed is a payload that matched no known shape.
type Malformed struct {
	Reason string
}

func (SignedTransaction) responseType() string   { return "signed-transaction" }
func (ApprovalRequired) responseType() string    { return "approval-required" }
func (EncryptedUnlockable) responseType() string { return "unlockable-encrypted" }
func (DecryptedUnlockable) responseType() string { return "unlockable-decrypted" }
func (JWT) responseType() string                 { return "jwt" }
func (AccountList) responseType() string         { return "account-list" }
func (Malformed) responseType() string           { return "malformed" }

// ResponseType names the variant of r, for logs.
func ResponseType(r Response) string {
	if r == nil {
		return "none"
	}
	return r.responseType()
}

// ClassifyLogin decodes the payload of a login message.
func ClassifyLogin(payload json.RawMessage) Response {
	p := gjson.ParseBytes(payload)
	if hex := p.Get("signedTransactionHex"); truthy(hex) {
		return SignedTransaction{SignedTransactionHex: hex.String()}
	}
	if users := p.Get("users"); users.IsObject() {
		list := AccountList{Raw: json.RawMessage(users.Raw)}
		users.ForEach(func(key, _ gjson.Result) bool {
			list.PublicKeys = append(list.PublicKeys, key.String())
			return true
		})
		return list
	}
	return Malformed{Reason: "login payload has neither signedTransactionHex nor users"}
}

// ClassifyResponse decodes the payload of a correlated response. Fields are
// checked in a fixed order: encryptedMessage, decryptedHexes, jwt, then the
// sign-transaction fields.
func ClassifyResponse(payload json.RawMessage) Response {
	p := gjson.ParseBytes(payload)
	if !truthy(p) {
		return Malformed{Reason: "empty payload"}
	}

	if msg := p.Get("encryptedMessage"); truthy(msg) {
		return EncryptedUnlockable{EncryptedMessage: msg.String()}
	}

	if hexes := p.Get("decryptedHexes"); truthy(hexes) {
		var text string
		hexes.ForEach(func(_, value gjson.Result) bool {
			text = value.String()
			return false
		})
		if text == "" {
			return Malformed{Reason: "decryptedHexes has no value"}
		}
		return DecryptedUnlockable{Text: text}
	}

	if token := p.Get("jwt"); truthy(token) {
		return JWT{Token: token.String()}
	}

	signed := p.Get("signedTransactionHex")
	if truthy(p.Get("approvalRequired")) {
		return ApprovalRequired{SignedTransactionHex: signed.String()}
	}
	if truthy(signed) {
		return SignedTransaction{SignedTransactionHex: signed.String()}
	}
	return Malformed{Reason: "payload matches no response shape"}
}

func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.True, gjson.JSON:
		return true
	case gjson.String:
		return r.Str != ""
	case gjson.Number:
		return r.Num != 0
	default:
		return false
	}
}
