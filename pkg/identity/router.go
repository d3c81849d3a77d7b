package identity

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/bitcloutplus/cli/pkg/txn"
	"github.com/pterm/pterm"
)

// Accounts is the persisted account list the router reads and, after a
// login or logout, replaces.
type Accounts interface {
	ActivePublicKey() (string, error)
	// ReplaceUsers stores the provider's users object and activates the
	// first account. It returns the newly active public key, "" when the
	// list is empty.
	ReplaceUsers(raw json.RawMessage, publicKeys []string) (string, error)
}

// TransactionResolver submits a signed transaction and resolves where the
// user goes next.
type TransactionResolver interface {
	Resolve(ctx context.Context, signedTransactionHex, actingPublicKey, currentPath string) (*txn.Outcome, error)
}

// NotificationMarker acknowledges the active account's notifications.
type NotificationMarker interface {
	MarkRead(ctx context.Context, jwt string) error
}

// UnlockableHandler receives unlockable NFT content from the provider.
type UnlockableHandler interface {
	OnEncrypted(ctx context.Context, encryptedMessage string) error
	OnDecrypted(ctx context.Context, text string) error
}

// EventType classifies what a routed message led to.
type EventType string

const (
	EventSubmitted           EventType = "submitted"
	EventSubmitFailed        EventType = "submit-failed"
	EventApprovalRequested   EventType = "approval-requested"
	EventAccountsReplaced    EventType = "accounts-replaced"
	EventNotificationsRead   EventType = "notifications-read"
	EventUnlockableEncrypted EventType = "unlockable-encrypted"
	EventUnlockableDecrypted EventType = "unlockable-decrypted"
	EventMalformed           EventType = "malformed"
	EventHandlerFailed       EventType = "handler-failed"
)

// Event reports the effect of a routed message.
type Event struct {
	Type EventType
	// CorrelationID is the request the event completes. Events caused by a
	// login message carry the id of the sign request awaiting approval, if
	// any.
	CorrelationID string
	Kind          Kind
	Outcome       *txn.Outcome
	PublicKey     string
	Text          string
	Err           error
}

// RouterConfig wires a Router to its collaborators. Only Registry and
// Channel are required.
type RouterConfig struct {
	Registry      *Registry
	Channel       *Channel
	Accounts      Accounts
	Resolver      TransactionResolver
	Navigator     txn.Navigator
	Notifications NotificationMarker
	Unlockables   UnlockableHandler
	// Observer is called synchronously for every event. It must not call
	// back into the router.
	Observer func(Event)
	Logger   *pterm.Logger
}

type approval struct {
	correlationID  string
	transactionHex string
}

// Router routes inbound provider messages to the request they answer and
// performs the follow-up action. Handle calls are serialized.
type Router struct {
	cfg RouterConfig
	log *pterm.Logger

	mu       sync.Mutex
	awaiting *approval
}

func NewRouter(cfg RouterConfig) *Router {
	log := cfg.Logger
	if log == nil {
		log = discardLogger()
	}
	return &Router{cfg: cfg, log: log}
}

// AwaitingApproval returns the transaction waiting for the user to approve
// it in a popup.
func (r *Router) AwaitingApproval() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.awaiting == nil {
		return "", false
	}
	return r.awaiting.transactionHex, true
}

// Handle routes m. It reports whether the message was acted on; messages
// answering no pending request are dropped without any effect.
func (r *Router) Handle(ctx context.Context, m Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.Method == MethodLogin {
		r.handleLogin(ctx, m)
		return true
	}

	if !m.HasPayload() {
		r.log.Trace("dropping message without payload", r.log.Args("id", m.ID, "method", m.Method))
		return false
	}
	req, ok := r.cfg.Registry.Consume(m.ID)
	if !ok {
		r.log.Trace("dropping uncorrelated message", r.log.Args("id", m.ID, "method", m.Method))
		return false
	}

	resp := ClassifyResponse(m.Payload)
	r.log.Debug("routing response", r.log.Args("id", req.CorrelationID, "kind", req.Kind, "response", ResponseType(resp)))

	switch resp := resp.(type) {
	case EncryptedUnlockable:
		r.emit(Event{Type: EventUnlockableEncrypted, CorrelationID: req.CorrelationID, Kind: req.Kind, Text: resp.EncryptedMessage})
		if h := r.cfg.Unlockables; h != nil {
			r.handlerResult(req, h.OnEncrypted(ctx, resp.EncryptedMessage))
		}
	case DecryptedUnlockable:
		r.emit(Event{Type: EventUnlockableDecrypted, CorrelationID: req.CorrelationID, Kind: req.Kind, Text: resp.Text})
		if h := r.cfg.Unlockables; h != nil {
			r.handlerResult(req, h.OnDecrypted(ctx, resp.Text))
		}
	case JWT:
		r.markRead(ctx, req, resp.Token)
	case ApprovalRequired:
		r.requestApproval(ctx, req, resp)
	case SignedTransaction:
		r.submit(ctx, req.CorrelationID, req.Kind, resp.SignedTransactionHex)
	case Malformed:
		r.malformed(req.CorrelationID, req.Kind, resp)
	}
	return true
}

func (r *Router) handleLogin(ctx context.Context, m Message) {
	if popups := r.cfg.Channel.Popups(); popups != nil {
		url := popups.URL()
		if closed, err := popups.CloseCurrent(); err != nil {
			r.log.Warn("failed to close identity popup", r.log.Args("url", url, "error", err))
		} else if closed {
			r.log.Debug("closed identity popup", r.log.Args("url", url))
		}
	}

	var correlationID string
	if r.awaiting != nil {
		correlationID = r.awaiting.correlationID
	}

	switch resp := ClassifyLogin(m.Payload).(type) {
	case SignedTransaction:
		r.submit(ctx, correlationID, KindSign, resp.SignedTransactionHex)
	case AccountList:
		r.replaceAccounts(resp)
	case Malformed:
		r.malformed(correlationID, "", resp)
	}
}

func (r *Router) replaceAccounts(list AccountList) {
	if r.cfg.Accounts == nil {
		r.log.Warn("no account store to replace users in")
		r.emit(Event{Type: EventHandlerFailed, Err: errors.New("no account store")})
		return
	}
	active, err := r.cfg.Accounts.ReplaceUsers(list.Raw, list.PublicKeys)
	if err != nil {
		r.log.Warn("failed to replace accounts", r.log.Args("error", err))
		r.emit(Event{Type: EventHandlerFailed, Err: err})
		return
	}
	r.log.Info("accounts replaced", r.log.Args("accounts", len(list.PublicKeys), "active", active))
	r.emit(Event{Type: EventAccountsReplaced, PublicKey: active})
}

func (r *Router) requestApproval(ctx context.Context, req PendingRequest, resp ApprovalRequired) {
	if req.Kind == KindSign && req.Context != "" {
		r.awaiting = &approval{correlationID: req.CorrelationID, transactionHex: req.Context}
		if err := r.cfg.Channel.OpenApprovalPopup(ctx, req.Context); err != nil {
			r.awaiting = nil
			r.log.Warn("failed to open approval popup", r.log.Args("error", err))
			r.emit(Event{Type: EventHandlerFailed, CorrelationID: req.CorrelationID, Kind: req.Kind, Err: err})
			return
		}
		r.emit(Event{
			Type:          EventApprovalRequested,
			CorrelationID: req.CorrelationID,
			Kind:          req.Kind,
			Text:          r.cfg.Channel.ApproveURL(req.Context),
		})
		return
	}
	if resp.SignedTransactionHex != "" {
		r.submit(ctx, req.CorrelationID, req.Kind, resp.SignedTransactionHex)
		return
	}
	r.malformed(req.CorrelationID, req.Kind, Malformed{Reason: "approval required but no transaction is pending"})
}

func (r *Router) submit(ctx context.Context, correlationID string, kind Kind, signedHex string) {
	r.awaiting = nil

	if r.cfg.Resolver == nil {
		r.emit(Event{Type: EventSubmitFailed, CorrelationID: correlationID, Kind: kind, Err: errors.New("no transaction resolver")})
		return
	}

	var acting string
	if r.cfg.Accounts != nil {
		acting, _ = r.cfg.Accounts.ActivePublicKey()
	}
	var current string
	if r.cfg.Navigator != nil {
		current = r.cfg.Navigator.CurrentPath()
	}

	out, err := r.cfg.Resolver.Resolve(ctx, signedHex, acting, current)
	if err != nil {
		r.log.Warn("transaction submission failed", r.log.Args("id", correlationID, "error", err))
		r.emit(Event{Type: EventSubmitFailed, CorrelationID: correlationID, Kind: kind, Err: err})
		return
	}
	if err := txn.Apply(ctx, r.cfg.Navigator, out); err != nil {
		r.log.Warn("failed to apply transaction outcome", r.log.Args("path", out.Path, "error", err))
	}
	r.emit(Event{Type: EventSubmitted, CorrelationID: correlationID, Kind: kind, Outcome: out})
}

func (r *Router) markRead(ctx context.Context, req PendingRequest, token string) {
	if r.cfg.Notifications == nil {
		r.log.Debug("no notification marker, ignoring jwt")
		return
	}
	if err := r.cfg.Notifications.MarkRead(ctx, token); err != nil {
		r.handlerResult(req, err)
		return
	}
	r.emit(Event{Type: EventNotificationsRead, CorrelationID: req.CorrelationID, Kind: req.Kind})
}

func (r *Router) handlerResult(req PendingRequest, err error) {
	if err == nil {
		return
	}
	r.log.Warn("identity response handler failed", r.log.Args("id", req.CorrelationID, "kind", req.Kind, "error", err))
	r.emit(Event{Type: EventHandlerFailed, CorrelationID: req.CorrelationID, Kind: req.Kind, Err: err})
}

func (r *Router) malformed(correlationID string, kind Kind, m Malformed) {
	r.log.Warn("ignoring malformed identity response", r.log.Args("id", correlationID, "reason", m.Reason))
	r.emit(Event{Type: EventMalformed, CorrelationID: correlationID, Kind: kind, Text: m.Reason})
}

func (r *Router) emit(e Event) {
	if r.cfg.Observer != nil {
		r.cfg.Observer(e)
	}
}
