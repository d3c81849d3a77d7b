package node

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultMinFeeRateNanosPerKB is the fee rate sent with transaction
// construction requests.
const DefaultMinFeeRateNanosPerKB = 1000

// HashBytes is a hash as the node serializes it: either a JSON array of byte
// values or a base64 string.
type HashBytes []byte

func (h *HashBytes) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null" || trimmed == "":
		*h = nil
		return nil
	case strings.HasPrefix(trimmed, "["):
		var values []int
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("invalid hash array: %w", err)
		}
		out := make([]byte, len(values))
		for i, v := range values {
			if v < 0 || v > 255 {
				return fmt.Errorf("invalid hash byte %d at index %d", v, i)
			}
			out[i] = byte(v)
		}
		*h = out
		return nil
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("invalid hash string: %w", err)
		}
		*h = decoded
		return nil
	}
	return fmt.Errorf("unsupported hash encoding: %s", trimmed)
}

type TxnMeta struct {
	NFTPostHash HashBytes `json:"NFTPostHash,omitempty"`
}

type Transaction struct {
	TxnMeta TxnMeta `json:"TxnMeta"`
}

// PostEntryResponse is the subset of a post the CLI reads.
type PostEntryResponse struct {
	PostHashHex                string   `json:"PostHashHex"`
	PosterPublicKeyBase58Check string   `json:"PosterPublicKeyBase58Check"`
	Body                       string   `json:"Body"`
	ImageURLs                  []string `json:"ImageURLs"`
	IsNFT                      bool     `json:"IsNFT"`
	NumNFTCopies               uint64   `json:"NumNFTCopies"`
	HasUnlockable              bool     `json:"HasUnlockable"`
	ProfileEntryResponse       *Profile `json:"ProfileEntryResponse,omitempty"`
}

type SubmitTransactionResponse struct {
	TxnHashHex        string             `json:"TxnHashHex"`
	Transaction       *Transaction       `json:"Transaction,omitempty"`
	PostEntryResponse *PostEntryResponse `json:"PostEntryResponse,omitempty"`
}

type Profile struct {
	PublicKeyBase58Check string `json:"PublicKeyBase58Check"`
	Username             string `json:"Username"`
	Description          string `json:"Description"`
	CoinPriceDeSoNanos   uint64 `json:"CoinPriceDeSoNanos"`
}

type UnreadNotificationsCount struct {
	NotificationsCount          int64 `json:"NotificationsCount"`
	LastUnreadNotificationIndex int64 `json:"LastUnreadNotificationIndex"`
	UpdateMetadata              bool  `json:"UpdateMetadata"`
}

type NotificationMetadata struct {
	PublicKeyBase58Check        string `json:"PublicKeyBase58Check"`
	LastSeenIndex               int64  `json:"LastSeenIndex"`
	LastUnreadNotificationIndex int64  `json:"LastUnreadNotificationIndex"`
	UnreadNotifications         int64  `json:"UnreadNotifications"`
	JWT                         string `json:"JWT"`
}

type NFTEntry struct {
	OwnerPublicKeyBase58Check string `json:"OwnerPublicKeyBase58Check"`
	SerialNumber              uint64 `json:"SerialNumber"`
	IsForSale                 bool   `json:"IsForSale"`
	IsPending                 bool   `json:"IsPending"`
	MinBidAmountNanos         uint64 `json:"MinBidAmountNanos"`
	EncryptedUnlockableText   string `json:"EncryptedUnlockableText"`
}

// NFTPost groups a post with its NFT serial entries.
type NFTPost struct {
	PostEntryResponse *PostEntryResponse `json:"PostEntryResponse"`
	NFTEntryResponses []NFTEntry         `json:"NFTEntryResponses"`
}

// TransactionResponse is returned by endpoints that construct an unsigned
// transaction.
type TransactionResponse struct {
	TransactionHex string `json:"TransactionHex"`
	TxnHashHex     string `json:"TxnHashHex"`
	FeeNanos       uint64 `json:"FeeNanos"`
}

type BurnNFTRequest struct {
	UpdaterPublicKeyBase58Check string `json:"UpdaterPublicKeyBase58Check"`
	NFTPostHashHex              string `json:"NFTPostHashHex"`
	SerialNumber                uint64 `json:"SerialNumber"`
	MinFeeRateNanosPerKB        uint64 `json:"MinFeeRateNanosPerKB"`
}

type TransferNFTRequest struct {
	SenderPublicKeyBase58Check   string `json:"SenderPublicKeyBase58Check"`
	ReceiverPublicKeyBase58Check string `json:"ReceiverPublicKeyBase58Check"`
	NFTPostHashHex               string `json:"NFTPostHashHex"`
	SerialNumber                 uint64 `json:"SerialNumber"`
	EncryptedUnlockableText      string `json:"EncryptedUnlockableText,omitempty"`
	MinFeeRateNanosPerKB         uint64 `json:"MinFeeRateNanosPerKB"`
}

type AcceptNFTTransferRequest struct {
	UpdaterPublicKeyBase58Check string `json:"UpdaterPublicKeyBase58Check"`
	NFTPostHashHex              string `json:"NFTPostHashHex"`
	SerialNumber                uint64 `json:"SerialNumber"`
	MinFeeRateNanosPerKB        uint64 `json:"MinFeeRateNanosPerKB"`
}
