package nft

import (
	"context"
	"errors"
	"testing"

	"github.com/bitcloutplus/cli/pkg/identity"
	"github.com/bitcloutplus/cli/pkg/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "BC1YLalice"
	bob   = "BC1YLbob"
)

type FakeNode struct {
	NFTs      map[string]node.NFTPost
	Entries   []node.NFTEntry
	Burns     []node.BurnNFTRequest
	Transfers []node.TransferNFTRequest
	Accepts   []node.AcceptNFTTransferRequest
	TxErr     error
}

func (f *FakeNode) GetNFTsForUser(ctx context.Context, publicKey string) (map[string]node.NFTPost, error) {
	return f.NFTs, nil
}

func (f *FakeNode) GetNFTEntriesForPost(ctx context.Context, reader, postHashHex string) (*node.NFTPost, error) {
	return &node.NFTPost{NFTEntryResponses: f.Entries}, nil
}

func (f *FakeNode) BurnNFT(ctx context.Context, req node.BurnNFTRequest) (*node.TransactionResponse, error) {
	f.Burns = append(f.Burns, req)
	return f.tx("burn")
}

func (f *FakeNode) TransferNFT(ctx context.Context, req node.TransferNFTRequest) (*node.TransactionResponse, error) {
	f.Transfers = append(f.Transfers, req)
	return f.tx("transfer")
}

func (f *FakeNode) AcceptNFTTransfer(ctx context.Context, req node.AcceptNFTTransferRequest) (*node.TransactionResponse, error) {
	f.Accepts = append(f.Accepts, req)
	return f.tx("accept")
}

func (f *FakeNode) tx(hex string) (*node.TransactionResponse, error) {
	if f.TxErr != nil {
		return nil, f.TxErr
	}
	return &node.TransactionResponse{TransactionHex: hex}, nil
}

type FakeSigner struct {
	Signed     []string
	Decrypted  []string
	Encrypted  []string
	DecryptErr error
}

func (f *FakeSigner) Sign(ctx context.Context, hex string) (string, error) {
	f.Signed = append(f.Signed, hex)
	return "sign-id", nil
}

func (f *FakeSigner) Decrypt(ctx context.Context, encryptedHex string) (string, error) {
	if f.DecryptErr != nil {
		return "", f.DecryptErr
	}
	f.Decrypted = append(f.Decrypted, encryptedHex)
	return "decrypt-id", nil
}

func (f *FakeSigner) Encrypt(ctx context.Context, recipient, message string) (string, error) {
	f.Encrypted = append(f.Encrypted, recipient+":"+message)
	return "encrypt-id", nil
}

type fakeAccount string

func (a fakeAccount) ActivePublicKey() (string, error) {
	if a == "" {
		return "", identity.ErrNoSession
	}
	return string(a), nil
}

func ownedEntries() []node.NFTEntry {
	return []node.NFTEntry{
		{OwnerPublicKeyBase58Check: alice, SerialNumber: 1, EncryptedUnlockableText: "alice-cipher"},
		{OwnerPublicKeyBase58Check: bob, SerialNumber: 2},
		{OwnerPublicKeyBase58Check: alice, SerialNumber: 3},
	}
}

func TestPendingOnly(t *testing.T) {
	nfts := map[string]node.NFTPost{
		"bb": {
			PostEntryResponse: &node.PostEntryResponse{PostHashHex: "bb"},
			NFTEntryResponses: []node.NFTEntry{{SerialNumber: 1, IsPending: true}, {SerialNumber: 2}},
		},
		"aa": {
			PostEntryResponse: &node.PostEntryResponse{PostHashHex: "aa"},
			NFTEntryResponses: []node.NFTEntry{{SerialNumber: 4, IsPending: true}},
		},
		"cc": {
			PostEntryResponse: &node.PostEntryResponse{PostHashHex: "cc"},
			NFTEntryResponses: []node.NFTEntry{{SerialNumber: 9}},
		},
	}

	pending := PendingOnly(nfts)

	require.Len(t, pending, 2)
	assert.Equal(t, "aa", pending[0].PostEntryResponse.PostHashHex)
	assert.Equal(t, "bb", pending[1].PostEntryResponse.PostHashHex)
	assert.Equal(t, []node.NFTEntry{{SerialNumber: 1, IsPending: true}}, pending[1].NFTEntryResponses)
	assert.Empty(t, PendingOnly(nil))
}

func TestFlows_OwnedEntries(t *testing.T) {
	f := NewFlows(&FakeNode{Entries: ownedEntries()}, nil, fakeAccount(alice), nil)

	entries, err := f.OwnedEntries(context.Background(), "cafe")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(1), entries[0].SerialNumber)
	assert.Equal(t, uint64(3), entries[1].SerialNumber)

	_, err = NewFlows(&FakeNode{}, nil, fakeAccount(""), nil).OwnedEntries(context.Background(), "cafe")
	assert.ErrorIs(t, err, identity.ErrNoSession)
}

func TestFlows_Burn(t *testing.T) {
	n := &FakeNode{Entries: ownedEntries()}
	s := &FakeSigner{}
	f := NewFlows(n, s, fakeAccount(alice), nil)
	var requested []string
	f.OnRequest = func(id string) { requested = append(requested, id) }

	id, err := f.Burn(context.Background(), "cafe", 3)
	require.NoError(t, err)
	assert.Equal(t, "sign-id", id)
	assert.Equal(t, []string{"sign-id"}, requested)
	assert.Equal(t, []node.BurnNFTRequest{{UpdaterPublicKeyBase58Check: alice, NFTPostHashHex: "cafe", SerialNumber: 3}}, n.Burns)
	assert.Equal(t, []string{"burn"}, s.Signed)

	_, err = f.Burn(context.Background(), "cafe", 2)
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Len(t, n.Burns, 1)
}

func TestFlows_Accept(t *testing.T) {
	n := &FakeNode{}
	s := &FakeSigner{}
	f := NewFlows(n, s, fakeAccount(bob), nil)

	_, err := f.Accept(context.Background(), "cafe", 2)
	require.NoError(t, err)
	assert.Equal(t, bob, n.Accepts[0].UpdaterPublicKeyBase58Check)
	assert.Equal(t, []string{"accept"}, s.Signed)

	n.TxErr = errors.New("insufficient balance")
	_, err = f.Accept(context.Background(), "cafe", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create accept-nft-transfer transaction")
}

func TestFlows_TransferWithoutUnlockable(t *testing.T) {
	n := &FakeNode{Entries: ownedEntries()}
	s := &FakeSigner{}
	f := NewFlows(n, s, fakeAccount(alice), nil)

	_, err := f.Transfer(context.Background(), "cafe", 1, bob, false)
	require.NoError(t, err)

	require.Len(t, n.Transfers, 1)
	assert.Equal(t, node.TransferNFTRequest{
		SenderPublicKeyBase58Check:   alice,
		ReceiverPublicKeyBase58Check: bob,
		NFTPostHashHex:               "cafe",
		SerialNumber:                 1,
	}, n.Transfers[0])
	assert.Empty(t, s.Decrypted)
	_, pending := f.Pending()
	assert.False(t, pending)
}

func TestFlows_TransferWithUnlockable(t *testing.T) {
	n := &FakeNode{Entries: ownedEntries()}
	s := &FakeSigner{}
	f := NewFlows(n, s, fakeAccount(alice), nil)
	var requested []string
	f.OnRequest = func(id string) { requested = append(requested, id) }

	id, err := f.Transfer(context.Background(), "cafe", 1, bob, true)
	require.NoError(t, err)
	assert.Equal(t, "decrypt-id", id)
	assert.Equal(t, []string{"alice-cipher"}, s.Decrypted)
	assert.Empty(t, n.Transfers)

	require.NoError(t, f.OnDecrypted(context.Background(), "the secret"))
	assert.Equal(t, []string{bob + ":the secret"}, s.Encrypted)
	assert.Empty(t, n.Transfers)

	require.NoError(t, f.OnEncrypted(context.Background(), "bob-cipher"))
	require.Len(t, n.Transfers, 1)
	assert.Equal(t, "bob-cipher", n.Transfers[0].EncryptedUnlockableText)
	assert.Equal(t, []string{"transfer"}, s.Signed)

	_, pending := f.Pending()
	assert.False(t, pending)
	assert.ErrorIs(t, f.OnEncrypted(context.Background(), "again"), ErrNoTransfer)
	assert.Equal(t, []string{"decrypt-id", "encrypt-id", "sign-id"}, requested)
}

func TestFlows_TransferUnlockableErrors(t *testing.T) {
	t.Run("entry without unlockable", func(t *testing.T) {
		f := NewFlows(&FakeNode{Entries: ownedEntries()}, &FakeSigner{}, fakeAccount(alice), nil)
		_, err := f.Transfer(context.Background(), "cafe", 3, bob, true)
		assert.ErrorIs(t, err, ErrNoUnlockable)
	})

	t.Run("decrypt request fails", func(t *testing.T) {
		f := NewFlows(&FakeNode{Entries: ownedEntries()}, &FakeSigner{DecryptErr: identity.ErrNoIdentity}, fakeAccount(alice), nil)
		_, err := f.Transfer(context.Background(), "cafe", 1, bob, true)
		assert.ErrorIs(t, err, identity.ErrNoIdentity)
		_, pending := f.Pending()
		assert.False(t, pending)
	})

	t.Run("content without transfer", func(t *testing.T) {
		f := NewFlows(&FakeNode{}, &FakeSigner{}, fakeAccount(alice), nil)
		assert.ErrorIs(t, f.OnDecrypted(context.Background(), "x"), ErrNoTransfer)
	})

	t.Run("logged out", func(t *testing.T) {
		f := NewFlows(&FakeNode{}, &FakeSigner{}, fakeAccount(""), nil)
		_, err := f.Transfer(context.Background(), "cafe", 1, bob, false)
		assert.ErrorIs(t, err, identity.ErrNoSession)
	})
}

func TestFlows_PendingTransfers(t *testing.T) {
	n := &FakeNode{NFTs: map[string]node.NFTPost{
		"aa": {NFTEntryResponses: []node.NFTEntry{{SerialNumber: 1, IsPending: true}}},
	}}
	f := NewFlows(n, &FakeSigner{}, fakeAccount(bob), nil)

	pending, err := f.PendingTransfers(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
