// Package txn submits signed transactions to the node and decides where the
// user lands once a transaction is accepted.
package txn

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/bitcloutplus/cli/pkg/node"
	"github.com/bitcloutplus/cli/pkg/routes"
	"github.com/pterm/pterm"
)

// Action is what the host page should do after a transaction.
type Action string

const (
	ActionNavigate Action = "navigate"
	ActionReload   Action = "reload"
)

// Outcome is the resolved follow-up of a submitted transaction.
type Outcome struct {
	Action Action
	// Path is the app path to navigate to, or the reloaded path.
	Path       string
	TxnHashHex string
}

// Submitter broadcasts signed transactions.
type Submitter interface {
	SubmitTransaction(ctx context.Context, signedTransactionHex string) (*node.SubmitTransactionResponse, error)
}

// ProfileLookup resolves a public key to its profile.
type ProfileLookup interface {
	GetProfileByPublicKey(ctx context.Context, publicKey string) (*node.Profile, error)
}

// Navigator applies an outcome to wherever the user is looking.
type Navigator interface {
	CurrentPath() string
	Navigate(ctx context.Context, path string) error
	Reload(ctx context.Context) error
}

// Resolver submits a signed transaction and resolves its outcome.
type Resolver struct {
	submitter Submitter
	profiles  ProfileLookup
	log       *pterm.Logger
}

func NewResolver(submitter Submitter, profiles ProfileLookup, log *pterm.Logger) *Resolver {
	if log == nil {
		log = pterm.DefaultLogger.WithWriter(io.Discard)
	}
	return &Resolver{submitter: submitter, profiles: profiles, log: log}
}

// Resolve submits signedTransactionHex on behalf of actingPublicKey. The
// returned outcome depends on what the node reports the transaction created:
// a post leads to the post page, an NFT operation to the NFT page (or a
// reload when the user is already in an NFT transfer or burn flow), anything
// else to the acting user's profile.
func (r *Resolver) Resolve(ctx context.Context, signedTransactionHex, actingPublicKey, currentPath string) (*Outcome, error) {
	if signedTransactionHex == "" {
		return nil, errors.New("no signed transaction to submit")
	}

	res, err := r.submitter.SubmitTransaction(ctx, signedTransactionHex)
	if err != nil {
		return nil, fmt.Errorf("submit transaction: %w", err)
	}
	r.log.Debug("transaction submitted", r.log.Args("txn_hash", res.TxnHashHex))

	out := &Outcome{Action: ActionNavigate, TxnHashHex: res.TxnHashHex}

	if post := res.PostEntryResponse; post != nil && post.PostHashHex != "" {
		out.Path = routes.PostPath(post.PostHashHex)
		return out, nil
	}

	if res.Transaction != nil && len(res.Transaction.TxnMeta.NFTPostHash) > 0 {
		if routes.IsNFTFlowPath(currentPath) {
			out.Action = ActionReload
			out.Path = currentPath
			return out, nil
		}
		out.Path = routes.NFTPath(hex.EncodeToString(res.Transaction.TxnMeta.NFTPostHash))
		return out, nil
	}

	out.Path = routes.ProfilePath(r.displayName(ctx, actingPublicKey))
	return out, nil
}

func (r *Resolver) displayName(ctx context.Context, publicKey string) string {
	if r.profiles == nil || publicKey == "" {
		return publicKey
	}
	profile, err := r.profiles.GetProfileByPublicKey(ctx, publicKey)
	if err != nil || profile.Username == "" {
		r.log.Debug("falling back to public key for profile path", r.log.Args("public_key", publicKey, "error", err))
		return publicKey
	}
	return profile.Username
}

// Apply performs the outcome on nav.
func Apply(ctx context.Context, nav Navigator, out *Outcome) error {
	if nav == nil || out == nil {
		return nil
	}
	if out.Action == ActionReload {
		return nav.Reload(ctx)
	}
	return nav.Navigate(ctx, out.Path)
}
