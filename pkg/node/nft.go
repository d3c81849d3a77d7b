package node

import (
	"context"
	"errors"
)

// ErrNoTransaction is returned when a construction endpoint answered without
// a transaction to sign.
var ErrNoTransaction = errors.New("node returned no transaction")

// GetNFTsForUser returns the user's NFTs keyed by post hash.
func (c *Client) GetNFTsForUser(ctx context.Context, publicKey string) (map[string]NFTPost, error) {
	var out struct {
		NFTsMap map[string]NFTPost `json:"NFTsMap"`
	}
	body := map[string]string{
		"UserPublicKeyBase58Check":   publicKey,
		"ReaderPublicKeyBase58Check": publicKey,
	}
	if err := c.lookup(ctx, "get-nfts-for-user", body, &out); err != nil {
		return nil, err
	}
	return out.NFTsMap, nil
}

// GetNFTEntriesForPost returns the serial entries of an NFT post.
func (c *Client) GetNFTEntriesForPost(ctx context.Context, readerPublicKey, postHashHex string) (*NFTPost, error) {
	var out NFTPost
	body := map[string]string{
		"ReaderPublicKeyBase58Check": readerPublicKey,
		"PostHashHex":                postHashHex,
	}
	if err := c.lookup(ctx, "get-nft-entries-for-nft-post", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BurnNFT constructs an unsigned burn transaction.
func (c *Client) BurnNFT(ctx context.Context, req BurnNFTRequest) (*TransactionResponse, error) {
	if req.MinFeeRateNanosPerKB == 0 {
		req.MinFeeRateNanosPerKB = DefaultMinFeeRateNanosPerKB
	}
	return c.construct(ctx, "burn-nft", req)
}

// TransferNFT constructs an unsigned transfer transaction.
func (c *Client) TransferNFT(ctx context.Context, req TransferNFTRequest) (*TransactionResponse, error) {
	if req.MinFeeRateNanosPerKB == 0 {
		req.MinFeeRateNanosPerKB = DefaultMinFeeRateNanosPerKB
	}
	return c.construct(ctx, "transfer-nft", req)
}

// AcceptNFTTransfer constructs an unsigned accept-transfer transaction.
func (c *Client) AcceptNFTTransfer(ctx context.Context, req AcceptNFTTransferRequest) (*TransactionResponse, error) {
	if req.MinFeeRateNanosPerKB == 0 {
		req.MinFeeRateNanosPerKB = DefaultMinFeeRateNanosPerKB
	}
	return c.construct(ctx, "accept-nft-transfer", req)
}

func (c *Client) construct(ctx context.Context, endpoint string, body any) (*TransactionResponse, error) {
	var out TransactionResponse
	if err := c.post(ctx, endpoint, body, &out); err != nil {
		return nil, err
	}
	if out.TransactionHex == "" {
		return nil, ErrNoTransaction
	}
	return &out, nil
}
