// Package nft drives the NFT flows of the companion: a transaction is
// constructed on the node and handed to the identity provider for signing.
// The signed transaction reaches the node through the identity router.
package nft

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/bitcloutplus/cli/pkg/node"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
)

var (
	// ErrNotOwner is returned when the logged in account owns no entry with
	// the requested serial number.
	ErrNotOwner = errors.New("serial number is not owned by the logged in account")
	// ErrNoUnlockable is returned when a transfer asks to carry unlockable
	// content the owner's entry does not have.
	ErrNoUnlockable = errors.New("nft entry has no unlockable content")
	// ErrNoTransfer is returned when unlockable content arrives while no
	// transfer is in progress.
	ErrNoTransfer = errors.New("no nft transfer in progress")
)

// Node is the subset of the node API the flows call.
type Node interface {
	GetNFTsForUser(ctx context.Context, publicKey string) (map[string]node.NFTPost, error)
	GetNFTEntriesForPost(ctx context.Context, readerPublicKey, postHashHex string) (*node.NFTPost, error)
	BurnNFT(ctx context.Context, req node.BurnNFTRequest) (*node.TransactionResponse, error)
	TransferNFT(ctx context.Context, req node.TransferNFTRequest) (*node.TransactionResponse, error)
	AcceptNFTTransfer(ctx context.Context, req node.AcceptNFTTransferRequest) (*node.TransactionResponse, error)
}

// Signer starts identity requests and returns their correlation ids.
type Signer interface {
	Sign(ctx context.Context, transactionHex string) (string, error)
	Decrypt(ctx context.Context, encryptedHex string) (string, error)
	Encrypt(ctx context.Context, recipientPublicKey, message string) (string, error)
}

// ActiveAccount yields the logged in public key.
type ActiveAccount interface {
	ActivePublicKey() (string, error)
}

// Transfer is an NFT transfer waiting for its unlockable content to be
// re-encrypted for the recipient.
type Transfer struct {
	Sender       string
	Recipient    string
	PostHashHex  string
	SerialNumber uint64
}

// Flows runs the NFT flows for the logged in account. It also receives the
// provider's unlockable content responses and continues the transfer they
// belong to.
type Flows struct {
	node     Node
	signer   Signer
	accounts ActiveAccount
	log      *pterm.Logger

	mu      sync.Mutex
	pending *Transfer
	// OnRequest, when set, is told the correlation id of every identity
	// request a flow starts: signatures and unlockable decrypt or encrypt.
	OnRequest func(correlationID string)
}

func NewFlows(n Node, signer Signer, accounts ActiveAccount, log *pterm.Logger) *Flows {
	if log == nil {
		log = pterm.DefaultLogger.WithWriter(io.Discard)
	}
	return &Flows{node: n, signer: signer, accounts: accounts, log: log}
}

// PendingTransfers returns the NFTs transferred to the logged in account
// that still wait for acceptance. Only pending serial entries are kept.
func (f *Flows) PendingTransfers(ctx context.Context) ([]node.NFTPost, error) {
	pk, err := f.accounts.ActivePublicKey()
	if err != nil {
		return nil, err
	}
	nfts, err := f.node.GetNFTsForUser(ctx, pk)
	if err != nil {
		return nil, fmt.Errorf("get nfts: %w", err)
	}
	return PendingOnly(nfts), nil
}

// PendingOnly filters nfts down to the posts with at least one pending
// entry, sorted by post hash.
func PendingOnly(nfts map[string]node.NFTPost) []node.NFTPost {
	keys := lo.Keys(nfts)
	sort.Strings(keys)

	var out []node.NFTPost
	for _, k := range keys {
		post := nfts[k]
		pending := lo.Filter(post.NFTEntryResponses, func(e node.NFTEntry, _ int) bool {
			return e.IsPending
		})
		if len(pending) == 0 {
			continue
		}
		post.NFTEntryResponses = pending
		out = append(out, post)
	}
	return out
}

// OwnedEntries returns the serial entries of a post owned by publicKey.
func (f *Flows) OwnedEntries(ctx context.Context, postHashHex string) ([]node.NFTEntry, error) {
	pk, err := f.accounts.ActivePublicKey()
	if err != nil {
		return nil, err
	}
	return f.ownedEntries(ctx, pk, postHashHex)
}

func (f *Flows) ownedEntries(ctx context.Context, pk, postHashHex string) ([]node.NFTEntry, error) {
	post, err := f.node.GetNFTEntriesForPost(ctx, pk, postHashHex)
	if err != nil {
		return nil, fmt.Errorf("get nft entries: %w", err)
	}
	return lo.Filter(post.NFTEntryResponses, func(e node.NFTEntry, _ int) bool {
		return e.OwnerPublicKeyBase58Check == pk
	}), nil
}

func (f *Flows) ownedEntry(ctx context.Context, pk, postHashHex string, serial uint64) (node.NFTEntry, error) {
	entries, err := f.ownedEntries(ctx, pk, postHashHex)
	if err != nil {
		return node.NFTEntry{}, err
	}
	entry, ok := lo.Find(entries, func(e node.NFTEntry) bool { return e.SerialNumber == serial })
	if !ok {
		return node.NFTEntry{}, fmt.Errorf("%w: %s #%d", ErrNotOwner, postHashHex, serial)
	}
	return entry, nil
}

// Burn constructs a burn of an owned serial and requests its signature.
func (f *Flows) Burn(ctx context.Context, postHashHex string, serial uint64) (string, error) {
	pk, err := f.accounts.ActivePublicKey()
	if err != nil {
		return "", err
	}
	if _, err := f.ownedEntry(ctx, pk, postHashHex, serial); err != nil {
		return "", err
	}
	tx, err := f.node.BurnNFT(ctx, node.BurnNFTRequest{
		UpdaterPublicKeyBase58Check: pk,
		NFTPostHashHex:              postHashHex,
		SerialNumber:                serial,
	})
	if err != nil {
		return "", fmt.Errorf("create burn-nft transaction: %w", err)
	}
	return f.sign(ctx, tx)
}

// Accept constructs the acceptance of a pending transfer and requests its
// signature.
func (f *Flows) Accept(ctx context.Context, postHashHex string, serial uint64) (string, error) {
	pk, err := f.accounts.ActivePublicKey()
	if err != nil {
		return "", err
	}
	tx, err := f.node.AcceptNFTTransfer(ctx, node.AcceptNFTTransferRequest{
		UpdaterPublicKeyBase58Check: pk,
		NFTPostHashHex:              postHashHex,
		SerialNumber:                serial,
	})
	if err != nil {
		return "", fmt.Errorf("create accept-nft-transfer transaction: %w", err)
	}
	return f.sign(ctx, tx)
}

// Transfer sends an owned serial to recipient. Without unlockable content the
// transaction is constructed and signed right away. With it, the owner's copy
// is first decrypted and re-encrypted for the recipient; the returned id is
// then the decrypt request's and the transfer continues in OnDecrypted and
// OnEncrypted.
func (f *Flows) Transfer(ctx context.Context, postHashHex string, serial uint64, recipient string, unlockable bool) (string, error) {
	pk, err := f.accounts.ActivePublicKey()
	if err != nil {
		return "", err
	}
	entry, err := f.ownedEntry(ctx, pk, postHashHex, serial)
	if err != nil {
		return "", err
	}
	t := Transfer{Sender: pk, Recipient: recipient, PostHashHex: postHashHex, SerialNumber: serial}

	if !unlockable {
		return f.transfer(ctx, t, "")
	}
	if entry.EncryptedUnlockableText == "" {
		return "", ErrNoUnlockable
	}

	f.mu.Lock()
	f.pending = &t
	f.mu.Unlock()

	id, err := f.signer.Decrypt(ctx, entry.EncryptedUnlockableText)
	if err != nil {
		f.clearPending()
		return "", fmt.Errorf("decrypt unlockable content: %w", err)
	}
	f.log.Debug("waiting for unlockable content", f.log.Args("post", postHashHex, "serial", serial, "id", id))
	f.started(id)
	return id, nil
}

// Pending returns the transfer waiting for unlockable content.
func (f *Flows) Pending() (Transfer, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending == nil {
		return Transfer{}, false
	}
	return *f.pending, true
}

// OnDecrypted re-encrypts the owner's unlockable text for the recipient.
func (f *Flows) OnDecrypted(ctx context.Context, text string) error {
	t, ok := f.Pending()
	if !ok {
		return ErrNoTransfer
	}
	id, err := f.signer.Encrypt(ctx, t.Recipient, text)
	if err != nil {
		f.clearPending()
		return fmt.Errorf("encrypt unlockable content: %w", err)
	}
	f.started(id)
	return nil
}

// OnEncrypted constructs the transfer carrying the recipient's copy of the
// unlockable content and requests its signature.
func (f *Flows) OnEncrypted(ctx context.Context, encryptedMessage string) error {
	t, ok := f.Pending()
	if !ok {
		return ErrNoTransfer
	}
	f.clearPending()
	_, err := f.transfer(ctx, t, encryptedMessage)
	return err
}

func (f *Flows) transfer(ctx context.Context, t Transfer, encryptedUnlockable string) (string, error) {
	tx, err := f.node.TransferNFT(ctx, node.TransferNFTRequest{
		SenderPublicKeyBase58Check:   t.Sender,
		ReceiverPublicKeyBase58Check: t.Recipient,
		NFTPostHashHex:               t.PostHashHex,
		SerialNumber:                 t.SerialNumber,
		EncryptedUnlockableText:      encryptedUnlockable,
	})
	if err != nil {
		return "", fmt.Errorf("create transfer-nft transaction: %w", err)
	}
	return f.sign(ctx, tx)
}

func (f *Flows) sign(ctx context.Context, tx *node.TransactionResponse) (string, error) {
	id, err := f.signer.Sign(ctx, tx.TransactionHex)
	if err != nil {
		return "", err
	}
	f.log.Debug("sign requested", f.log.Args("id", id, "fee_nanos", tx.FeeNanos))
	f.started(id)
	return id, nil
}

func (f *Flows) started(id string) {
	if f.OnRequest != nil {
		f.OnRequest(id)
	}
}

func (f *Flows) clearPending() {
	f.mu.Lock()
	f.pending = nil
	f.mu.Unlock()
}
